package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType identifies the kind of actor a reputation score is attached to.
type EntityType string

const (
	EntityUser              EntityType = "user"
	EntityDevice            EntityType = "device"
	EntityIP                EntityType = "ip"
	EntityDeviceFingerprint EntityType = "device_fingerprint"
	EntityIPFingerprint     EntityType = "ip_fingerprint"
)

// SignalType identifies one fraud heuristic.
type SignalType string

const (
	SignalFrequency SignalType = "frequency"
	SignalInterval  SignalType = "interval"
	SignalPattern   SignalType = "pattern"
	SignalDevice    SignalType = "device"
	SignalIP        SignalType = "ip"
	SignalCTR       SignalType = "ctr"
)

// ActivityType classifies a recorded suspicious activity.
type ActivityType string

const (
	ActivityClickFraud        ActivityType = "click_fraud"
	ActivityImpressionFraud   ActivityType = "impression_fraud"
	ActivityAbnormalTraffic   ActivityType = "abnormal_traffic"
	ActivityProxyUsage        ActivityType = "proxy_usage"
	ActivityVPNUsage          ActivityType = "vpn_usage"
	ActivityDatacenterUsage   ActivityType = "datacenter_usage"
	ActivitySuspiciousDevice  ActivityType = "suspicious_device"
	ActivitySuspiciousIP      ActivityType = "suspicious_ip"
	ActivitySuspiciousPattern ActivityType = "suspicious_pattern"
)

// Severity buckets a fraud score for activity classification and alerting.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IPInfo carries network intelligence attached to a click by enrichment.
type IPInfo struct {
	Country    string `json:"country,omitempty"`
	Region     string `json:"region,omitempty"`
	City       string `json:"city,omitempty"`
	Proxy      bool   `json:"proxy"`
	VPN        bool   `json:"vpn"`
	Datacenter bool   `json:"datacenter"`
}

// ClickEvent is the immutable input to fraud detection. Fingerprints and
// IPInfo are optional and filled in by enrichment when absent.
type ClickEvent struct {
	UserID            string  `json:"userId"`
	DeviceID          string  `json:"deviceId"`
	IP                string  `json:"ip"`
	AdID              string  `json:"adId"`
	TimestampMillis   int64   `json:"timestamp"`
	UserAgent         string  `json:"userAgent,omitempty"`
	DeviceFingerprint string  `json:"deviceFingerprint,omitempty"`
	IPFingerprint     string  `json:"ipFingerprint,omitempty"`
	IPInfo            *IPInfo `json:"ipInfo,omitempty"`
}

// Time returns the click time, falling back to the current time when the
// caller supplied no timestamp.
func (c ClickEvent) Time() time.Time {
	if c.TimestampMillis <= 0 {
		return time.Now()
	}
	return time.UnixMilli(c.TimestampMillis)
}

// SignalResult is one heuristic's verdict about a single click.
type SignalResult struct {
	Type    SignalType     `json:"type"`
	Score   int            `json:"score"`  // 0-100, higher = more suspicious
	Weight  int            `json:"weight"` // fixed per signal type
	Reason  string         `json:"reason"`
	Details map[string]any `json:"details,omitempty"`
}

// FraudResult is the combined verdict for one click.
type FraudResult struct {
	IsFraudulent bool                        `json:"isFraudulent"`
	Score        int                         `json:"score"`
	Reasons      []string                    `json:"reasons"`
	Details      map[SignalType]SignalResult `json:"details"`
}

// SuspiciousActivityRecord is the append-only audit row written for every
// fraudulent verdict.
type SuspiciousActivityRecord struct {
	ID              uuid.UUID    `json:"id"`
	ActivityType    ActivityType `json:"activityType"`
	Severity        Severity     `json:"severity"`
	UserID          string       `json:"userId"`
	DeviceID        string       `json:"deviceId"`
	IP              string       `json:"ip"`
	AdID            string       `json:"adId"`
	Score           int          `json:"score"`
	Reasons         []string     `json:"reasons"`
	Details         string       `json:"details,omitempty"`
	TimestampMillis int64        `json:"timestamp"`
}

// ClickStamp is the minimal projection of a past click used by the pattern
// check.
type ClickStamp struct {
	Timestamp time.Time `json:"timestamp"`
}

// FraudStatistics summarizes click and fraud volume over the current hour
// and day windows.
type FraudStatistics struct {
	TotalClicksHour int64   `json:"totalClicksHour"`
	TotalClicksDay  int64   `json:"totalClicksDay"`
	FraudClicksHour int64   `json:"fraudClicksHour"`
	FraudClicksDay  int64   `json:"fraudClicksDay"`
	FraudRateHour   float64 `json:"fraudRateHour"`
	FraudRateDay    float64 `json:"fraudRateDay"`
}
