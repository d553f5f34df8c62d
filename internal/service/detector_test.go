package service

import (
	"context"
	"testing"
	"time"

	"github.com/adshield/fraud-service/internal/models"
)

type failingCounterStore struct{}

func (failingCounterStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return 0, errStore
}

func (failingCounterStore) Get(ctx context.Context, key string) (int64, error) {
	return 0, errStore
}

type failingReputationStore struct{}

func (failingReputationStore) Score(ctx context.Context, entity models.EntityType, id string) (int, error) {
	return 0, errStore
}

func (failingReputationStore) Raise(ctx context.Context, entity models.EntityType, id string, candidate int) (int, error) {
	return 0, errStore
}

func (failingReputationStore) Bump(ctx context.Context, entity models.EntityType, id string, delta int) (int, error) {
	return 0, errStore
}

type failingLastClickStore struct{}

func (failingLastClickStore) LastClick(ctx context.Context, userID string) (time.Time, bool, error) {
	return time.Time{}, false, errStore
}

func (failingLastClickStore) SetLastClick(ctx context.Context, userID string, t time.Time, ttl time.Duration) error {
	return errStore
}

func TestDetectRejectsMissingFields(t *testing.T) {
	checker, _, _, _ := newTestChecker(nil)
	d := NewDetector(checker, 0)

	cases := []func(*models.ClickEvent){
		func(c *models.ClickEvent) { c.UserID = "" },
		func(c *models.ClickEvent) { c.DeviceID = "" },
		func(c *models.ClickEvent) { c.IP = "" },
		func(c *models.ClickEvent) { c.AdID = "" },
	}
	for i, mutate := range cases {
		click := testClick(testBase)
		mutate(&click)

		result := d.Detect(context.Background(), click)
		if !result.IsFraudulent || result.Score != 100 {
			t.Fatalf("case %d: fraudulent=%v score=%d, want true/100", i, result.IsFraudulent, result.Score)
		}
		if len(result.Reasons) != 1 || result.Reasons[0] != "Missing required data" {
			t.Fatalf("case %d: reasons = %v", i, result.Reasons)
		}
	}
}

func TestDetectCleanFirstClick(t *testing.T) {
	checker, _, _, _ := newTestChecker(nil)
	d := NewDetector(checker, 0)

	result := d.Detect(context.Background(), testClick(testBase))
	if result.IsFraudulent {
		t.Fatalf("first click flagged fraudulent: %+v", result)
	}
	if result.Score >= DefaultFraudScoreThreshold {
		t.Fatalf("first click score = %d", result.Score)
	}
}

func TestDetectZeroSignalsScoreZero(t *testing.T) {
	checker := NewSignalChecker(failingCounterStore{}, NewMemoryReputationStore(), NewMemoryLastClickStore(), &stubRecent{}, Thresholds{})
	d := NewDetector(checker, 0)

	result := d.Detect(context.Background(), testClick(testBase))
	if result.IsFraudulent || result.Score != 0 {
		t.Fatalf("fraudulent=%v score=%d, want false/0", result.IsFraudulent, result.Score)
	}
	if len(result.Reasons) != 0 {
		t.Fatalf("reasons for zero-signal click: %v", result.Reasons)
	}
}

func TestDetectFailsOpenWhenAllStoresDown(t *testing.T) {
	checker := NewSignalChecker(failingCounterStore{}, failingReputationStore{}, failingLastClickStore{}, &stubRecent{err: errStore}, Thresholds{})
	d := NewDetector(checker, 0)

	result := d.Detect(context.Background(), testClick(testBase))
	if result.IsFraudulent {
		t.Fatalf("infrastructure failure blocked the click: %+v", result)
	}
	if result.Score != 0 {
		t.Fatalf("degraded score = %d, want 0", result.Score)
	}
}

func TestDetectRapidBurstIsFraudulent(t *testing.T) {
	counters := NewMemoryCounterStore()
	reputation := NewMemoryReputationStore()
	lastClicks := NewMemoryLastClickStore()
	recent := &stubRecent{}
	checker := NewSignalChecker(counters, reputation, lastClicks, recent, Thresholds{})
	d := NewDetector(checker, 0)

	var result models.FraudResult
	for i := 0; i < 15; i++ {
		ts := testBase.Add(time.Duration(i) * 100 * time.Millisecond)
		recent.stamps = append(recent.stamps, models.ClickStamp{Timestamp: ts})
		result = d.Detect(context.Background(), testClick(ts))
	}

	if !result.IsFraudulent {
		t.Fatalf("15 clicks 100ms apart not flagged: score=%d reasons=%v", result.Score, result.Reasons)
	}
	if result.Score < DefaultFraudScoreThreshold {
		t.Fatalf("burst score = %d, want >= %d", result.Score, DefaultFraudScoreThreshold)
	}
	if _, ok := result.Details[models.SignalInterval]; !ok {
		t.Fatalf("interval signal missing from details: %v", result.Details)
	}
	if _, ok := result.Details[models.SignalFrequency]; !ok {
		t.Fatalf("frequency signal missing from details: %v", result.Details)
	}
}

func TestDetectDatacenterTrafficDominates(t *testing.T) {
	checker, _, _, _ := newTestChecker(nil)
	d := NewDetector(checker, 0)

	click := testClick(testBase)
	click.IPInfo = &models.IPInfo{Datacenter: true}

	result := d.Detect(context.Background(), click)
	ip, ok := result.Details[models.SignalIP]
	if !ok {
		t.Fatalf("ip signal missing: %v", result.Details)
	}
	if ip.Score != 90 {
		t.Fatalf("datacenter ip score = %d, want 90", ip.Score)
	}
}

func TestSignalWeights(t *testing.T) {
	want := map[models.SignalType]int{
		models.SignalFrequency: 3,
		models.SignalInterval:  4,
		models.SignalPattern:   2,
		models.SignalDevice:    2,
		models.SignalIP:        3,
		models.SignalCTR:       2,
	}
	for typ, w := range want {
		if got := signalWeight(typ); got != w {
			t.Fatalf("weight(%s) = %d, want %d", typ, got, w)
		}
	}
}
