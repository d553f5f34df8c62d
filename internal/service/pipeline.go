package service

import (
	"context"
	"time"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/adshield/fraud-service/internal/util/logger"
)

// Enricher fills in fingerprints and network intelligence for a raw click.
// Implementations never fail; on any problem they return the click unchanged.
type Enricher interface {
	Enrich(ctx context.Context, click models.ClickEvent) models.ClickEvent
}

// ClickRecorder persists processed clicks to the analytics store and serves
// volume queries for statistics.
type ClickRecorder interface {
	SaveClick(ctx context.Context, click models.ClickEvent, fraudulent bool, score int) error
	CountClicksSince(ctx context.Context, since time.Time) (int64, error)
}

// Outcome is the pipeline's answer for one click. Err is set when the
// decision was degraded by an internal fault; the click is allowed in that
// case, availability beats blocking one suspicious click.
type Outcome struct {
	Allowed     bool                `json:"allowed"`
	FraudResult *models.FraudResult `json:"fraudResult,omitempty"`
	Click       models.ClickEvent   `json:"click"`
	Err         string              `json:"error,omitempty"`
}

// Pipeline is the entry point for click processing: enrichment, detection,
// activity tracking, analytics recording.
type Pipeline struct {
	enricher Enricher
	detector *Detector
	tracker  *Tracker
	counters CounterStore
	clicks   ClickRecorder
}

func NewPipeline(enricher Enricher, detector *Detector, tracker *Tracker, counters CounterStore, clicks ClickRecorder) *Pipeline {
	return &Pipeline{
		enricher: enricher,
		detector: detector,
		tracker:  tracker,
		counters: counters,
		clicks:   clicks,
	}
}

// Process runs one click through the pipeline. It never returns an error:
// every failure mode degrades to a structured outcome.
func (p *Pipeline) Process(ctx context.Context, raw models.ClickEvent) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("click pipeline panic: %v", r)
			out = Outcome{Allowed: true, Click: raw, Err: "internal error in click processing"}
		}
	}()

	click := raw
	if p.enricher != nil {
		click = p.enricher.Enrich(ctx, raw)
	}

	result := p.detector.Detect(ctx, click)

	if result.IsFraudulent && p.tracker != nil {
		p.tracker.Track(ctx, click, result)
	}

	p.recordClick(ctx, click, result)

	return Outcome{
		Allowed:     !result.IsFraudulent,
		FraudResult: &result,
		Click:       click,
	}
}

// RecordImpression increments the daily impression counter the CTR check
// reads. Called by the ad-serving side when an ad is shown.
func (p *Pipeline) RecordImpression(ctx context.Context, userID, adID string) error {
	_, err := p.counters.Increment(ctx, impressionDayKey(userID, adID, time.Now()), 24*time.Hour)
	return err
}

func (p *Pipeline) recordClick(ctx context.Context, click models.ClickEvent, result models.FraudResult) {
	if p.clicks != nil {
		if err := p.clicks.SaveClick(ctx, click, result.IsFraudulent, result.Score); err != nil {
			logger.Warnf("save click event: %v", err)
		}
	}
	// The CTR counter only reflects accepted clicks; denied traffic must not
	// poison the rate it is compared against.
	if !result.IsFraudulent {
		if _, err := p.counters.Increment(ctx, clickDayKey(click.UserID, click.AdID, click.Time()), 24*time.Hour); err != nil {
			logger.Warnf("increment click day counter: %v", err)
		}
	}
}

// Statistics summarizes click and fraud volume for the current hour and day.
func (p *Pipeline) Statistics(ctx context.Context) (models.FraudStatistics, error) {
	now := time.Now()
	stats := models.FraudStatistics{}

	if p.clicks != nil {
		var err error
		stats.TotalClicksHour, err = p.clicks.CountClicksSince(ctx, time.UnixMilli(HourWindow(now)))
		if err != nil {
			return stats, err
		}
		stats.TotalClicksDay, err = p.clicks.CountClicksSince(ctx, time.UnixMilli(DayWindow(now)))
		if err != nil {
			return stats, err
		}
	}

	var err error
	stats.FraudClicksHour, err = p.counters.Get(ctx, metricHourKey("fraud_clicks", now))
	if err != nil {
		return stats, err
	}
	stats.FraudClicksDay, err = p.counters.Get(ctx, metricDayKey("fraud_clicks", now))
	if err != nil {
		return stats, err
	}

	if stats.TotalClicksHour > 0 {
		stats.FraudRateHour = float64(stats.FraudClicksHour) / float64(stats.TotalClicksHour) * 100
	}
	if stats.TotalClicksDay > 0 {
		stats.FraudRateDay = float64(stats.FraudClicksDay) / float64(stats.TotalClicksDay) * 100
	}
	return stats, nil
}
