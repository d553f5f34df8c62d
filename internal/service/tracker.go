package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/adshield/fraud-service/internal/models"
	"github.com/adshield/fraud-service/internal/util/logger"
	"github.com/google/uuid"
)

// AlertPublisher receives high and critical activities for the notification
// pipeline. Implementations must not block the caller.
type AlertPublisher interface {
	PublishAlert(rec models.SuspiciousActivityRecord)
}

// Tracker records fraudulent verdicts: it classifies the activity, persists
// the record, pushes reputation updates, and bumps the fraud metrics the
// statistics endpoint reads.
type Tracker struct {
	activities ActivitySink
	reputation ReputationStore
	counters   CounterStore
	alerts     AlertPublisher
}

func NewTracker(activities ActivitySink, reputation ReputationStore, counters CounterStore, alerts AlertPublisher) *Tracker {
	return &Tracker{
		activities: activities,
		reputation: reputation,
		counters:   counters,
		alerts:     alerts,
	}
}

// severityDelta is the additive reputation penalty for repeat offenders, on
// top of the raise-to-score update.
func severityDelta(s models.Severity) int {
	switch s {
	case models.SeverityLow:
		return 1
	case models.SeverityMedium:
		return 5
	case models.SeverityHigh:
		return 15
	case models.SeverityCritical:
		return 30
	}
	return 0
}

// ClassifySeverity buckets a fraud score.
func ClassifySeverity(score int) models.Severity {
	switch {
	case score >= 90:
		return models.SeverityCritical
	case score >= 70:
		return models.SeverityHigh
	case score >= 50:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// ClassifyActivity picks the activity type from the dominant signal. Network
// intelligence outranks pattern evidence, which outranks device and generic
// IP volume.
func ClassifyActivity(result models.FraudResult) models.ActivityType {
	ip, hasIP := result.Details[models.SignalIP]
	if hasIP {
		if flag, _ := ip.Details["proxy"].(bool); flag {
			return models.ActivityProxyUsage
		}
		if flag, _ := ip.Details["vpn"].(bool); flag {
			return models.ActivityVPNUsage
		}
		if flag, _ := ip.Details["datacenter"].(bool); flag {
			return models.ActivityDatacenterUsage
		}
	}
	if pattern, ok := result.Details[models.SignalPattern]; ok && pattern.Score > 0 {
		return models.ActivitySuspiciousPattern
	}
	if device, ok := result.Details[models.SignalDevice]; ok && device.Score > 0 {
		return models.ActivitySuspiciousDevice
	}
	if hasIP && ip.Score > 0 {
		return models.ActivitySuspiciousIP
	}
	return models.ActivityClickFraud
}

// Track handles one fraudulent verdict. The activity write and the
// reputation updates are independent: each failure is logged and neither
// rolls back the other, both are safe to retry.
func (t *Tracker) Track(ctx context.Context, click models.ClickEvent, result models.FraudResult) {
	severity := ClassifySeverity(result.Score)
	activityType := ClassifyActivity(result)

	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		logger.Warnf("marshal fraud details: %v", err)
		detailsJSON = nil
	}

	rec := models.SuspiciousActivityRecord{
		ID:              uuid.New(),
		ActivityType:    activityType,
		Severity:        severity,
		UserID:          click.UserID,
		DeviceID:        click.DeviceID,
		IP:              click.IP,
		AdID:            click.AdID,
		Score:           result.Score,
		Reasons:         result.Reasons,
		Details:         string(detailsJSON),
		TimestampMillis: click.Time().UnixMilli(),
	}

	if t.activities != nil {
		if err := t.activities.SaveActivity(ctx, rec); err != nil {
			logger.Errorf("save suspicious activity: %v", err)
		}
	}

	t.raiseReputations(ctx, click, result.Score, severity)
	t.recordMetrics(ctx, click, activityType)

	if t.alerts != nil && (severity == models.SeverityHigh || severity == models.SeverityCritical) {
		t.alerts.PublishAlert(rec)
	}
}

func (t *Tracker) raiseReputations(ctx context.Context, click models.ClickEvent, score int, severity models.Severity) {
	delta := severityDelta(severity)

	raise := func(entity models.EntityType, id string) {
		if id == "" {
			return
		}
		if _, err := t.reputation.Raise(ctx, entity, id, score); err != nil {
			logger.Errorf("raise %s reputation for %s: %v", entity, id, err)
			return
		}
		if _, err := t.reputation.Bump(ctx, entity, id, delta); err != nil {
			logger.Errorf("bump %s reputation for %s: %v", entity, id, err)
		}
	}

	raise(models.EntityUser, click.UserID)
	raise(models.EntityDevice, click.DeviceID)
	raise(models.EntityIP, click.IP)
	raise(models.EntityDeviceFingerprint, click.DeviceFingerprint)
	raise(models.EntityIPFingerprint, click.IPFingerprint)
}

func (t *Tracker) recordMetrics(ctx context.Context, click models.ClickEvent, activityType models.ActivityType) {
	now := click.Time()
	names := []string{"fraud_clicks"}
	switch activityType {
	case models.ActivityProxyUsage:
		names = append(names, "proxy_fraud_clicks")
	case models.ActivityVPNUsage:
		names = append(names, "vpn_fraud_clicks")
	case models.ActivityDatacenterUsage:
		names = append(names, "datacenter_fraud_clicks")
	}
	for _, name := range names {
		if _, err := t.counters.Increment(ctx, metricHourKey(name, now), time.Hour); err != nil {
			logger.Warnf("increment %s hour metric: %v", name, err)
		}
		if _, err := t.counters.Increment(ctx, metricDayKey(name, now), 24*time.Hour); err != nil {
			logger.Warnf("increment %s day metric: %v", name, err)
		}
	}
}

// IsSuspicious reports whether an entity's reputation meets the caller's
// threshold, along with the raw score. The engine itself never bans; policy
// stays with the caller.
func (t *Tracker) IsSuspicious(ctx context.Context, entity models.EntityType, id string, threshold int) (bool, int, error) {
	score, err := t.reputation.Score(ctx, entity, id)
	if err != nil {
		return false, 0, err
	}
	return score >= threshold, score, nil
}
