package service

import (
	"context"
	"math"
	"time"

	"github.com/adshield/fraud-service/internal/models"
)

// Default detection thresholds. Overridable through config; zero values fall
// back to these.
const (
	DefaultMaxClicksPerUserHour   = 10
	DefaultMaxClicksPerIPHour     = 20
	DefaultMaxClicksPerDeviceHour = 15
	DefaultMaxClicksPerAdUserDay  = 5
	DefaultMinClickInterval       = 500 * time.Millisecond
	DefaultSuspiciousCTRPercent   = 20.0
)

// Thresholds carries the tunable limits each signal scores against.
type Thresholds struct {
	MaxClicksPerUserHour   int
	MaxClicksPerIPHour     int
	MaxClicksPerDeviceHour int
	MaxClicksPerAdUserDay  int
	MinClickInterval       time.Duration
	SuspiciousCTRPercent   float64
}

func (t Thresholds) withDefaults() Thresholds {
	if t.MaxClicksPerUserHour <= 0 {
		t.MaxClicksPerUserHour = DefaultMaxClicksPerUserHour
	}
	if t.MaxClicksPerIPHour <= 0 {
		t.MaxClicksPerIPHour = DefaultMaxClicksPerIPHour
	}
	if t.MaxClicksPerDeviceHour <= 0 {
		t.MaxClicksPerDeviceHour = DefaultMaxClicksPerDeviceHour
	}
	if t.MaxClicksPerAdUserDay <= 0 {
		t.MaxClicksPerAdUserDay = DefaultMaxClicksPerAdUserDay
	}
	if t.MinClickInterval <= 0 {
		t.MinClickInterval = DefaultMinClickInterval
	}
	if t.SuspiciousCTRPercent <= 0 {
		t.SuspiciousCTRPercent = DefaultSuspiciousCTRPercent
	}
	return t
}

// signalWeight is the fixed weight per signal type. The exhaustive switch
// keeps the table reviewable when a new signal is added.
func signalWeight(t models.SignalType) int {
	switch t {
	case models.SignalFrequency:
		return 3
	case models.SignalInterval:
		// Tightest timing is the strongest bot signal.
		return 4
	case models.SignalPattern:
		return 2
	case models.SignalDevice:
		return 2
	case models.SignalIP:
		return 3
	case models.SignalCTR:
		return 2
	}
	return 1
}

// ratioScore maps count/threshold onto 0-100, capped.
func ratioScore(count int64, threshold int) int {
	if threshold <= 0 {
		return 0
	}
	score := int(math.Round(float64(count) / float64(threshold) * 100))
	if score > 100 {
		score = 100
	}
	return score
}

// SignalChecker runs the individual fraud heuristics. Each check only
// mutates its own counters and may run concurrently with the others.
type SignalChecker struct {
	counters   CounterStore
	reputation ReputationStore
	lastClicks LastClickStore
	recent     RecentClickQuerier
	thresholds Thresholds
}

func NewSignalChecker(counters CounterStore, reputation ReputationStore, lastClicks LastClickStore, recent RecentClickQuerier, thresholds Thresholds) *SignalChecker {
	return &SignalChecker{
		counters:   counters,
		reputation: reputation,
		lastClicks: lastClicks,
		recent:     recent,
		thresholds: thresholds.withDefaults(),
	}
}

func newSignalResult(t models.SignalType, reason string) models.SignalResult {
	return models.SignalResult{
		Type:    t,
		Weight:  signalWeight(t),
		Reason:  reason,
		Details: map[string]any{},
	}
}

// checkFrequency scores the user's hourly click volume and the per-ad daily
// volume, taking the worse of the two.
func (s *SignalChecker) checkFrequency(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalFrequency, "Excessive clicks")
	now := click.Time()

	userHourClicks, err := s.counters.Increment(ctx, userHourKey(click.UserID, now), time.Hour)
	if err != nil {
		return result, err
	}
	result.Score = ratioScore(userHourClicks, s.thresholds.MaxClicksPerUserHour)
	result.Details["userHourClicks"] = userHourClicks
	result.Details["userHourThreshold"] = s.thresholds.MaxClicksPerUserHour

	userAdDayClicks, err := s.counters.Increment(ctx, userAdDayKey(click.UserID, click.AdID, now), 24*time.Hour)
	if err != nil {
		return result, err
	}
	if adDayScore := ratioScore(userAdDayClicks, s.thresholds.MaxClicksPerAdUserDay); adDayScore > result.Score {
		result.Score = adDayScore
	}
	result.Details["userAdDayClicks"] = userAdDayClicks
	result.Details["userAdDayThreshold"] = s.thresholds.MaxClicksPerAdUserDay

	return result, nil
}

// checkInterval compares the click against the user's previous click time.
func (s *SignalChecker) checkInterval(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalInterval, "Clicks too close together")
	now := click.Time()

	last, found, err := s.lastClicks.LastClick(ctx, click.UserID)
	if err != nil {
		return result, err
	}
	if found {
		interval := now.Sub(last)
		if interval < s.thresholds.MinClickInterval {
			if interval <= 0 {
				result.Score = 100
			} else {
				score := int(math.Round(float64(s.thresholds.MinClickInterval.Milliseconds()) / float64(interval.Milliseconds()) * 100))
				if score > 100 {
					score = 100
				}
				result.Score = score
			}
			result.Details["intervalMillis"] = interval.Milliseconds()
			result.Details["thresholdMillis"] = s.thresholds.MinClickInterval.Milliseconds()
		}
	}

	if err := s.lastClicks.SetLastClick(ctx, click.UserID, now, time.Hour); err != nil {
		return result, err
	}
	return result, nil
}

// checkPattern looks for bot-like regularity across the user's clicks in the
// last 10 minutes. Fewer than 3 clicks is insufficient evidence, score 0.
func (s *SignalChecker) checkPattern(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalPattern, "Suspicious click pattern")
	now := click.Time()

	clicks, err := s.recent.ClicksByUser(ctx, click.UserID, now.Add(-10*time.Minute))
	if err != nil {
		return result, err
	}
	if len(clicks) < 3 {
		return result, nil
	}

	intervals := make([]float64, 0, len(clicks)-1)
	for i := 1; i < len(clicks); i++ {
		intervals = append(intervals, float64(clicks[i].Timestamp.Sub(clicks[i-1].Timestamp).Milliseconds()))
	}

	var sum float64
	for _, v := range intervals {
		sum += v
	}
	mean := sum / float64(len(intervals))

	var variance float64
	for _, v := range intervals {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(intervals))
	stdDev := math.Sqrt(variance)

	// Low deviation at small mean intervals means machine-regular clicking.
	if stdDev < 200 && mean < 2000 {
		if stdDev == 0 {
			result.Score = 100
		} else {
			score := int(math.Round(200 / stdDev * 50))
			if score > 100 {
				score = 100
			}
			result.Score = score
		}
		result.Details["stdDevMillis"] = stdDev
		result.Details["meanMillis"] = mean
		result.Details["clickCount"] = len(clicks)
	}
	return result, nil
}

// checkDeviceReputation combines the device's hourly click volume with its
// stored reputation, plus the same for the device fingerprint when present.
func (s *SignalChecker) checkDeviceReputation(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalDevice, "Suspicious device")
	now := click.Time()

	deviceHourClicks, err := s.counters.Increment(ctx, deviceHourKey(click.DeviceID, now), time.Hour)
	if err != nil {
		return result, err
	}
	result.Score = ratioScore(deviceHourClicks, s.thresholds.MaxClicksPerDeviceHour)
	result.Details["deviceHourClicks"] = deviceHourClicks
	result.Details["deviceHourThreshold"] = s.thresholds.MaxClicksPerDeviceHour

	deviceScore, err := s.reputation.Score(ctx, models.EntityDevice, click.DeviceID)
	if err != nil {
		return result, err
	}
	if deviceScore > 0 {
		if deviceScore > result.Score {
			result.Score = deviceScore
		}
		result.Details["reputationScore"] = deviceScore
	}

	if click.DeviceFingerprint != "" {
		fpScore, err := s.reputation.Score(ctx, models.EntityDeviceFingerprint, click.DeviceFingerprint)
		if err != nil {
			return result, err
		}
		if fpScore > 0 {
			if fpScore > result.Score {
				result.Score = fpScore
			}
			result.Details["fingerprintReputationScore"] = fpScore
		}

		fpHourClicks, err := s.counters.Increment(ctx, deviceFingerprintHourKey(click.DeviceFingerprint, now), time.Hour)
		if err != nil {
			return result, err
		}
		if fpCounterScore := ratioScore(fpHourClicks, s.thresholds.MaxClicksPerDeviceHour); fpCounterScore > result.Score {
			result.Score = fpCounterScore
		}
		result.Details["fingerprintHourClicks"] = fpHourClicks
	}

	return result, nil
}

// checkIPReputation combines the IP's hourly click volume with stored
// reputation, then applies floors for proxy, VPN and datacenter traffic.
func (s *SignalChecker) checkIPReputation(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalIP, "Suspicious IP address")
	now := click.Time()

	ipHourClicks, err := s.counters.Increment(ctx, ipHourKey(click.IP, now), time.Hour)
	if err != nil {
		return result, err
	}
	result.Score = ratioScore(ipHourClicks, s.thresholds.MaxClicksPerIPHour)
	result.Details["ipHourClicks"] = ipHourClicks
	result.Details["ipHourThreshold"] = s.thresholds.MaxClicksPerIPHour

	ipScore, err := s.reputation.Score(ctx, models.EntityIP, click.IP)
	if err != nil {
		return result, err
	}
	if ipScore > 0 {
		if ipScore > result.Score {
			result.Score = ipScore
		}
		result.Details["reputationScore"] = ipScore
	}

	if click.IPFingerprint != "" {
		fpScore, err := s.reputation.Score(ctx, models.EntityIPFingerprint, click.IPFingerprint)
		if err != nil {
			return result, err
		}
		if fpScore > 0 {
			if fpScore > result.Score {
				result.Score = fpScore
			}
			result.Details["fingerprintReputationScore"] = fpScore
		}
	}

	if info := click.IPInfo; info != nil {
		if info.Proxy {
			if result.Score < 70 {
				result.Score = 70
			}
			result.Details["proxy"] = true
			result.Reason = "Proxy detected"
		}
		if info.VPN {
			if result.Score < 80 {
				result.Score = 80
			}
			result.Details["vpn"] = true
			result.Reason = "VPN detected"
		}
		if info.Datacenter {
			if result.Score < 90 {
				result.Score = 90
			}
			result.Details["datacenter"] = true
			result.Reason = "Datacenter IP detected"
		}
	}

	return result, nil
}

// checkCTR scores today's click-through rate for this user and ad. The daily
// impression and click counters are owned by the ad-serving side; this check
// only reads them.
func (s *SignalChecker) checkCTR(ctx context.Context, click models.ClickEvent) (models.SignalResult, error) {
	result := newSignalResult(models.SignalCTR, "Abnormal click-through rate")
	now := click.Time()

	impressions, err := s.counters.Get(ctx, impressionDayKey(click.UserID, click.AdID, now))
	if err != nil {
		return result, err
	}
	clicks, err := s.counters.Get(ctx, clickDayKey(click.UserID, click.AdID, now))
	if err != nil {
		return result, err
	}

	if impressions > 0 && clicks > 0 {
		ctr := float64(clicks) / float64(impressions) * 100
		if ctr > s.thresholds.SuspiciousCTRPercent {
			score := int(math.Round(ctr / s.thresholds.SuspiciousCTRPercent * 100))
			if score > 100 {
				score = 100
			}
			result.Score = score
			result.Details["ctr"] = ctr
			result.Details["impressions"] = impressions
			result.Details["clicks"] = clicks
			result.Details["threshold"] = s.thresholds.SuspiciousCTRPercent
		}
	}
	return result, nil
}
