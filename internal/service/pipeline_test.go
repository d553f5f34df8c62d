package service

import (
	"context"
	"testing"
	"time"

	"github.com/adshield/fraud-service/internal/models"
)

type captureRecorder struct {
	clicks     []models.ClickEvent
	fraudulent []bool
	counts     []int64 // returned in call order by CountClicksSince
	err        error
}

func (r *captureRecorder) SaveClick(ctx context.Context, click models.ClickEvent, fraudulent bool, score int) error {
	r.clicks = append(r.clicks, click)
	r.fraudulent = append(r.fraudulent, fraudulent)
	return r.err
}

func (r *captureRecorder) CountClicksSince(ctx context.Context, since time.Time) (int64, error) {
	if len(r.counts) == 0 {
		return 0, r.err
	}
	n := r.counts[0]
	r.counts = r.counts[1:]
	return n, r.err
}

type panicEnricher struct{}

func (panicEnricher) Enrich(ctx context.Context, click models.ClickEvent) models.ClickEvent {
	panic("enricher exploded")
}

func newTestPipeline(recorder ClickRecorder) (*Pipeline, *MemoryCounterStore, *MemoryReputationStore, *captureSink) {
	counters := NewMemoryCounterStore()
	reputation := NewMemoryReputationStore()
	lastClicks := NewMemoryLastClickStore()
	sink := &captureSink{}

	checker := NewSignalChecker(counters, reputation, lastClicks, &stubRecent{}, Thresholds{})
	detector := NewDetector(checker, 0)
	tracker := NewTracker(sink, reputation, counters, nil)

	return NewPipeline(nil, detector, tracker, counters, recorder), counters, reputation, sink
}

func TestProcessAllowsCleanClick(t *testing.T) {
	recorder := &captureRecorder{}
	pipeline, counters, _, sink := newTestPipeline(recorder)

	click := testClick(testBase)
	out := pipeline.Process(context.Background(), click)

	if !out.Allowed {
		t.Fatalf("clean click denied: %+v", out.FraudResult)
	}
	if out.Err != "" {
		t.Fatalf("unexpected degradation: %s", out.Err)
	}
	if len(recorder.clicks) != 1 || recorder.fraudulent[0] {
		t.Fatalf("click not recorded as clean: %v", recorder.fraudulent)
	}
	if len(sink.records) != 0 {
		t.Fatalf("clean click produced %d activity records", len(sink.records))
	}
	if n, _ := counters.Get(context.Background(), clickDayKey(click.UserID, click.AdID, click.Time())); n != 1 {
		t.Fatalf("daily click counter = %d, want 1", n)
	}
}

func TestProcessDeniesAndTracksFraud(t *testing.T) {
	recorder := &captureRecorder{}
	pipeline, counters, reputation, sink := newTestPipeline(recorder)
	ctx := context.Background()

	var out Outcome
	click := testClick(testBase)
	for i := 0; i < 20; i++ {
		click.TimestampMillis = testBase.Add(time.Duration(i) * 50 * time.Millisecond).UnixMilli()
		out = pipeline.Process(ctx, click)
	}

	if out.Allowed {
		t.Fatalf("burst click allowed: score=%d", out.FraudResult.Score)
	}
	if len(sink.records) == 0 {
		t.Fatal("no suspicious activity recorded for fraudulent clicks")
	}
	if got, _ := reputation.Score(ctx, models.EntityUser, click.UserID); got == 0 {
		t.Fatal("user reputation untouched after fraudulent clicks")
	}
	if len(recorder.clicks) != 20 {
		t.Fatalf("recorded %d clicks, want all 20", len(recorder.clicks))
	}

	// Denied clicks stay out of the CTR baseline.
	dayClicks, _ := counters.Get(ctx, clickDayKey(click.UserID, click.AdID, click.Time()))
	if dayClicks >= 20 {
		t.Fatalf("daily click counter %d includes denied clicks", dayClicks)
	}
}

func TestProcessMissingFieldsDenied(t *testing.T) {
	recorder := &captureRecorder{}
	pipeline, _, _, sink := newTestPipeline(recorder)

	click := testClick(testBase)
	click.AdID = ""
	out := pipeline.Process(context.Background(), click)

	if out.Allowed {
		t.Fatal("click with missing ad id allowed")
	}
	if out.FraudResult == nil || out.FraudResult.Score != 100 {
		t.Fatalf("fraud result = %+v", out.FraudResult)
	}
	if len(sink.records) != 1 {
		t.Fatalf("saved %d activity records, want 1", len(sink.records))
	}
}

func TestProcessFailsOpenOnPanic(t *testing.T) {
	counters := NewMemoryCounterStore()
	checker := NewSignalChecker(counters, NewMemoryReputationStore(), NewMemoryLastClickStore(), &stubRecent{}, Thresholds{})
	pipeline := NewPipeline(panicEnricher{}, NewDetector(checker, 0), nil, counters, nil)

	out := pipeline.Process(context.Background(), testClick(testBase))
	if !out.Allowed {
		t.Fatal("panic in enrichment blocked the click")
	}
	if out.Err == "" {
		t.Fatal("degraded outcome carries no error detail")
	}
}

func TestRecordImpressionFeedsCTR(t *testing.T) {
	recorder := &captureRecorder{}
	pipeline, counters, _, _ := newTestPipeline(recorder)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := pipeline.RecordImpression(ctx, "user-1", "ad-1"); err != nil {
			t.Fatalf("record impression: %v", err)
		}
	}
	if n, _ := counters.Get(ctx, impressionDayKey("user-1", "ad-1", time.Now())); n != 3 {
		t.Fatalf("impression counter = %d, want 3", n)
	}
}

func TestStatistics(t *testing.T) {
	recorder := &captureRecorder{counts: []int64{200, 1000}}
	pipeline, counters, _, _ := newTestPipeline(recorder)
	ctx := context.Background()

	now := time.Now()
	counters.Set(metricHourKey("fraud_clicks", now), 20, time.Hour)
	counters.Set(metricDayKey("fraud_clicks", now), 100, 24*time.Hour)

	stats, err := pipeline.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalClicksHour != 200 || stats.TotalClicksDay != 1000 {
		t.Fatalf("totals = %d/%d", stats.TotalClicksHour, stats.TotalClicksDay)
	}
	if stats.FraudClicksHour != 20 || stats.FraudClicksDay != 100 {
		t.Fatalf("fraud counts = %d/%d", stats.FraudClicksHour, stats.FraudClicksDay)
	}
	if stats.FraudRateHour != 10 || stats.FraudRateDay != 10 {
		t.Fatalf("fraud rates = %v/%v", stats.FraudRateHour, stats.FraudRateDay)
	}
}
