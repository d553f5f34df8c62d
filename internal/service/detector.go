package service

import (
	"context"
	"math"
	"sync"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/adshield/fraud-service/internal/util/logger"
)

// DefaultFraudScoreThreshold is the overall score at and above which a click
// is rejected.
const DefaultFraudScoreThreshold = 70

// Detector fans a click out to all signal checks and combines their scores
// into one verdict.
type Detector struct {
	checker   *SignalChecker
	threshold int
}

func NewDetector(checker *SignalChecker, threshold int) *Detector {
	if threshold <= 0 {
		threshold = DefaultFraudScoreThreshold
	}
	return &Detector{checker: checker, threshold: threshold}
}

type checkFunc func(ctx context.Context, click models.ClickEvent) (models.SignalResult, error)

// Detect runs all checks concurrently and returns the weighted verdict.
// Malformed input is maximally suspicious; internal faults fail open so an
// infrastructure problem never blocks legitimate traffic.
func (d *Detector) Detect(ctx context.Context, click models.ClickEvent) (result models.FraudResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("fraud detection panic: %v", r)
			result = models.FraudResult{
				IsFraudulent: false,
				Score:        0,
				Reasons:      []string{"Error in fraud detection"},
				Details:      map[models.SignalType]models.SignalResult{},
			}
		}
	}()

	result = models.FraudResult{
		Reasons: []string{},
		Details: map[models.SignalType]models.SignalResult{},
	}

	if click.UserID == "" || click.DeviceID == "" || click.IP == "" || click.AdID == "" {
		result.IsFraudulent = true
		result.Score = 100
		result.Reasons = append(result.Reasons, "Missing required data")
		return result
	}

	checks := []struct {
		typ models.SignalType
		fn  checkFunc
	}{
		{models.SignalFrequency, d.checker.checkFrequency},
		{models.SignalInterval, d.checker.checkInterval},
		{models.SignalPattern, d.checker.checkPattern},
		{models.SignalDevice, d.checker.checkDeviceReputation},
		{models.SignalIP, d.checker.checkIPReputation},
		{models.SignalCTR, d.checker.checkCTR},
	}

	results := make([]models.SignalResult, len(checks))
	var wg sync.WaitGroup
	for i, c := range checks {
		wg.Add(1)
		go func(i int, typ models.SignalType, fn checkFunc) {
			defer wg.Done()
			results[i] = evaluate(ctx, click, typ, fn)
		}(i, c.typ, c.fn)
	}
	wg.Wait()

	// Weighted average over contributing signals only. A zero-score check is
	// excluded rather than counted as a vote for innocence.
	var totalScore, totalWeight int
	for _, check := range results {
		if check.Score > 0 {
			result.Reasons = append(result.Reasons, check.Reason)
			result.Details[check.Type] = check
			totalScore += check.Score * check.Weight
			totalWeight += check.Weight
		}
	}
	if totalWeight > 0 {
		result.Score = int(math.Round(float64(totalScore) / float64(totalWeight)))
	}
	result.IsFraudulent = result.Score >= d.threshold

	return result
}

// evaluate shields the combiner from check failures: any error or panic
// becomes a zero-score result tagged with the failure, so aggregation never
// needs its own error branches.
func evaluate(ctx context.Context, click models.ClickEvent, typ models.SignalType, fn checkFunc) (out models.SignalResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("signal check %s panic: %v", typ, r)
			out = degradedResult(typ, "panic")
		}
	}()

	res, err := fn(ctx, click)
	if err != nil {
		logger.Warnf("signal check %s degraded: %v", typ, err)
		res.Score = 0
		if res.Details == nil {
			res.Details = map[string]any{}
		}
		res.Details["error"] = err.Error()
		return res
	}
	return res
}

func degradedResult(typ models.SignalType, cause string) models.SignalResult {
	return models.SignalResult{
		Type:    typ,
		Weight:  signalWeight(typ),
		Reason:  "Error checking " + string(typ),
		Details: map[string]any{"error": cause},
	}
}
