package service

import (
	"context"
	"fmt"
	"time"

	"github.com/adshield/fraud-service/internal/models"
)

// CounterStore is an atomic, TTL-bounded counter keyed by namespaced window
// strings. Increments on the same key are never lost; expiry is handled by
// the backing store.
type CounterStore interface {
	// Increment atomically increments key and returns the new count,
	// creating the entry with the given TTL when absent.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current count, 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)
}

// ReputationStore persists per-entity risk scores. Scores only go up; they
// heal exclusively through TTL expiry.
type ReputationStore interface {
	// Score returns the current reputation score, 0 when unknown.
	Score(ctx context.Context, entity models.EntityType, id string) (int, error)
	// Raise atomically sets score = max(existing, candidate) and resets the
	// entity-type TTL. Returns the stored score.
	Raise(ctx context.Context, entity models.EntityType, id string, candidate int) (int, error)
	// Bump atomically adds delta to the score, capped at 100, and resets the
	// entity-type TTL. Returns the stored score.
	Bump(ctx context.Context, entity models.EntityType, id string, delta int) (int, error)
}

// LastClickStore remembers the most recent click time per user for the
// interval check.
type LastClickStore interface {
	LastClick(ctx context.Context, userID string) (time.Time, bool, error)
	SetLastClick(ctx context.Context, userID string, t time.Time, ttl time.Duration) error
}

// RecentClickQuerier returns a user's clicks since a point in time, ordered
// by timestamp ascending. Backed by the analytics store.
type RecentClickQuerier interface {
	ClicksByUser(ctx context.Context, userID string, since time.Time) ([]models.ClickStamp, error)
}

// ActivitySink persists suspicious activity records.
type ActivitySink interface {
	SaveActivity(ctx context.Context, rec models.SuspiciousActivityRecord) error
}

// ReputationTTL returns the retention window for an entity type. Device and
// user penalties outlast IP penalties because IPs are reassigned far more
// often than devices change hands.
func ReputationTTL(entity models.EntityType) time.Duration {
	switch entity {
	case models.EntityIP, models.EntityIPFingerprint:
		return 7 * 24 * time.Hour
	default:
		return 30 * 24 * time.Hour
	}
}

// --- Window math and key schema ---

const (
	clickKeyPrefix      = "fraud:click:"
	deviceKeyPrefix     = "fraud:device:"
	ipKeyPrefix         = "fraud:ip:"
	reputationKeyPrefix = "fraud:reputation:"
	analyticsKeyPrefix  = "analytics:"
	metricKeyPrefix     = "fraud:metric:"
)

// HourWindow floors t to the start of its hour window, in epoch millis.
func HourWindow(t time.Time) int64 {
	const hourMillis = 60 * 60 * 1000
	return t.UnixMilli() / hourMillis * hourMillis
}

// DayWindow floors t to the start of its day window, in epoch millis.
func DayWindow(t time.Time) int64 {
	const dayMillis = 24 * 60 * 60 * 1000
	return t.UnixMilli() / dayMillis * dayMillis
}

func userHourKey(userID string, t time.Time) string {
	return fmt.Sprintf("%suser:%s:hour:%d", clickKeyPrefix, userID, HourWindow(t))
}

func userAdDayKey(userID, adID string, t time.Time) string {
	return fmt.Sprintf("%suser:%s:ad:%s:day:%d", clickKeyPrefix, userID, adID, DayWindow(t))
}

func lastClickKey(userID string) string {
	return clickKeyPrefix + "user:" + userID + ":last"
}

func deviceHourKey(deviceID string, t time.Time) string {
	return fmt.Sprintf("%s%s:hour:%d", deviceKeyPrefix, deviceID, HourWindow(t))
}

func deviceFingerprintHourKey(fingerprint string, t time.Time) string {
	return fmt.Sprintf("%sfingerprint:%s:hour:%d", deviceKeyPrefix, fingerprint, HourWindow(t))
}

func ipHourKey(ip string, t time.Time) string {
	return fmt.Sprintf("%s%s:hour:%d", ipKeyPrefix, ip, HourWindow(t))
}

func reputationKey(entity models.EntityType, id string) string {
	return fmt.Sprintf("%s%s:%s", reputationKeyPrefix, entity, id)
}

func impressionDayKey(userID, adID string, t time.Time) string {
	return fmt.Sprintf("%simpression:user:%s:ad:%s:day:%d", analyticsKeyPrefix, userID, adID, DayWindow(t))
}

func clickDayKey(userID, adID string, t time.Time) string {
	return fmt.Sprintf("%sclick:user:%s:ad:%s:day:%d", analyticsKeyPrefix, userID, adID, DayWindow(t))
}

func metricHourKey(name string, t time.Time) string {
	return fmt.Sprintf("%s%s:hour:%d", metricKeyPrefix, name, HourWindow(t))
}

func metricDayKey(name string, t time.Time) string {
	return fmt.Sprintf("%s%s:day:%d", metricKeyPrefix, name, DayWindow(t))
}
