package enrichment

import (
	"context"
	"testing"

	"github.com/adshield/fraud-service/internal/models"
)

func newTestEnricher(t *testing.T) *GeoIPEnricher {
	t.Helper()
	e, err := NewGeoIPEnricher(Config{Pepper: []byte("test-pepper")})
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	return e
}

func TestEnrichFillsFingerprints(t *testing.T) {
	e := newTestEnricher(t)
	defer e.Close()

	click := models.ClickEvent{
		UserID:    "u1",
		DeviceID:  "d1",
		IP:        "203.0.113.10",
		AdID:      "a1",
		UserAgent: "Mozilla/5.0",
	}
	got := e.Enrich(context.Background(), click)

	if got.DeviceFingerprint == "" {
		t.Fatal("device fingerprint not filled")
	}
	if got.IPFingerprint == "" {
		t.Fatal("ip fingerprint not filled")
	}
	if got.DeviceFingerprint == got.IPFingerprint {
		t.Fatal("device and ip fingerprints collide")
	}
}

func TestEnrichIsDeterministic(t *testing.T) {
	e := newTestEnricher(t)
	defer e.Close()

	click := models.ClickEvent{UserID: "u1", DeviceID: "d1", IP: "203.0.113.10", AdID: "a1"}
	first := e.Enrich(context.Background(), click)
	second := e.Enrich(context.Background(), click)

	if first.DeviceFingerprint != second.DeviceFingerprint {
		t.Fatal("device fingerprint differs between runs")
	}
	if first.IPFingerprint != second.IPFingerprint {
		t.Fatal("ip fingerprint differs between runs")
	}
}

func TestEnrichPepperChangesFingerprint(t *testing.T) {
	a, err := NewGeoIPEnricher(Config{Pepper: []byte("pepper-a")})
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	defer a.Close()
	b, err := NewGeoIPEnricher(Config{Pepper: []byte("pepper-b")})
	if err != nil {
		t.Fatalf("new enricher: %v", err)
	}
	defer b.Close()

	click := models.ClickEvent{UserID: "u1", DeviceID: "d1", IP: "203.0.113.10", AdID: "a1"}
	if a.Enrich(context.Background(), click).IPFingerprint == b.Enrich(context.Background(), click).IPFingerprint {
		t.Fatal("different peppers produced the same fingerprint")
	}
}

func TestEnrichPreservesCallerValues(t *testing.T) {
	e := newTestEnricher(t)
	defer e.Close()

	click := models.ClickEvent{
		UserID:            "u1",
		DeviceID:          "d1",
		IP:                "203.0.113.10",
		AdID:              "a1",
		DeviceFingerprint: "supplied-device-fp",
		IPFingerprint:     "supplied-ip-fp",
		IPInfo:            &models.IPInfo{Country: "US", Proxy: true},
	}
	got := e.Enrich(context.Background(), click)

	if got.DeviceFingerprint != "supplied-device-fp" || got.IPFingerprint != "supplied-ip-fp" {
		t.Fatalf("caller fingerprints overwritten: %+v", got)
	}
	if got.IPInfo == nil || !got.IPInfo.Proxy {
		t.Fatalf("caller ip info overwritten: %+v", got.IPInfo)
	}
}

func TestEnrichWithoutDatabasesLeavesIPInfoNil(t *testing.T) {
	e := newTestEnricher(t)
	defer e.Close()

	got := e.Enrich(context.Background(), models.ClickEvent{UserID: "u1", DeviceID: "d1", IP: "203.0.113.10", AdID: "a1"})
	if got.IPInfo != nil {
		t.Fatalf("ip info resolved without databases: %+v", got.IPInfo)
	}
}

func TestDefaultASNTables(t *testing.T) {
	dc := defaultDatacenterASNs()
	for _, asn := range []uint{14061, 16509, 24940, 20473, 8075, 15169, 63949, 16276} {
		if _, ok := dc[asn]; !ok {
			t.Fatalf("ASN %d missing from datacenter table", asn)
		}
	}
	if _, ok := defaultVPNASNs()[9009]; !ok {
		t.Fatal("ASN 9009 missing from vpn table")
	}
	if _, ok := defaultProxyASNs()[13335]; !ok {
		t.Fatal("ASN 13335 missing from proxy table")
	}
}
