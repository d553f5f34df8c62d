package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"net"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/adshield/fraud-service/internal/util/logger"
	"github.com/oschwald/geoip2-golang"
)

// GeoIPEnricher derives privacy-preserving fingerprints and network
// intelligence for a click. It never fails: anything it cannot resolve is
// left as the caller supplied it.
type GeoIPEnricher struct {
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
	pepper     []byte

	datacenterASNs map[uint]string
	vpnASNs        map[uint]string
	proxyASNs      map[uint]string
}

// Config for the enricher. Either database path may be empty, in which case
// the corresponding lookups are skipped.
type Config struct {
	CityDBPath string
	ASNDBPath  string
	Pepper     []byte
}

// NewGeoIPEnricher opens the MaxMind databases found at the configured
// paths. Missing databases degrade to fingerprint-only enrichment.
func NewGeoIPEnricher(cfg Config) (*GeoIPEnricher, error) {
	e := &GeoIPEnricher{
		pepper:         cfg.Pepper,
		datacenterASNs: defaultDatacenterASNs(),
		vpnASNs:        defaultVPNASNs(),
		proxyASNs:      defaultProxyASNs(),
	}

	if cfg.CityDBPath != "" {
		r, err := geoip2.Open(cfg.CityDBPath)
		if err != nil {
			return nil, err
		}
		e.cityReader = r
	}
	if cfg.ASNDBPath != "" {
		r, err := geoip2.Open(cfg.ASNDBPath)
		if err != nil {
			if e.cityReader != nil {
				e.cityReader.Close()
			}
			return nil, err
		}
		e.asnReader = r
	}
	return e, nil
}

// Close releases the MaxMind readers.
func (e *GeoIPEnricher) Close() {
	if e.cityReader != nil {
		e.cityReader.Close()
	}
	if e.asnReader != nil {
		e.asnReader.Close()
	}
}

// Enrich fills deviceFingerprint, ipFingerprint and ipInfo when absent.
func (e *GeoIPEnricher) Enrich(ctx context.Context, click models.ClickEvent) models.ClickEvent {
	enriched := click

	if enriched.DeviceFingerprint == "" && enriched.DeviceID != "" {
		enriched.DeviceFingerprint = e.scopedHash("device", enriched.DeviceID+"|"+enriched.UserAgent)
	}
	if enriched.IPFingerprint == "" && enriched.IP != "" {
		enriched.IPFingerprint = e.scopedHash("ip", enriched.IP)
	}
	if enriched.IPInfo == nil && enriched.IP != "" {
		enriched.IPInfo = e.lookupIP(enriched.IP)
	}
	return enriched
}

func (e *GeoIPEnricher) lookupIP(ipStr string) *models.IPInfo {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}

	info := &models.IPInfo{}
	resolved := false

	if e.cityReader != nil {
		record, err := e.cityReader.City(ip)
		if err != nil {
			logger.Debugf("geoip city lookup failed for %s: %v", ipStr, err)
		} else {
			info.Country = record.Country.IsoCode
			if len(record.Subdivisions) > 0 {
				info.Region = record.Subdivisions[0].Names["en"]
			}
			info.City = record.City.Names["en"]
			resolved = true
		}
	}

	if e.asnReader != nil {
		record, err := e.asnReader.ASN(ip)
		if err != nil {
			logger.Debugf("geoip asn lookup failed for %s: %v", ipStr, err)
		} else {
			asn := uint(record.AutonomousSystemNumber)
			if _, ok := e.datacenterASNs[asn]; ok {
				info.Datacenter = true
			}
			if _, ok := e.vpnASNs[asn]; ok {
				info.VPN = true
			}
			if _, ok := e.proxyASNs[asn]; ok {
				info.Proxy = true
			}
			resolved = true
		}
	}

	if !resolved {
		return nil
	}
	return info
}

func (e *GeoIPEnricher) scopedHash(scope, data string) string {
	h := sha256.New()
	h.Write([]byte(scope))
	h.Write([]byte{0})
	h.Write(e.pepper)
	h.Write([]byte{0})
	h.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Known hosting/cloud ASNs. Traffic from these networks is not residential
// and is treated as near-certain automation.
func defaultDatacenterASNs() map[uint]string {
	return map[uint]string{
		14061: "DigitalOcean",
		16509: "Amazon.com",
		24940: "Hetzner Online",
		20473: "Choopa, LLC (Vultr)",
		8075:  "Microsoft Azure",
		15169: "Google Cloud",
		63949: "Akamai (Linode)",
		16276: "OVH",
	}
}

func defaultVPNASNs() map[uint]string {
	return map[uint]string{
		9009:   "M247 (NordVPN, Surfshark exits)",
		212238: "Datacamp (CDN77 VPN exits)",
		60068:  "Datacamp Limited",
	}
}

func defaultProxyASNs() map[uint]string {
	return map[uint]string{
		13335: "Cloudflare (WARP)",
		59930: "Proxy providers",
	}
}
