package telemetry

import "time"

// FraudAlertEvent is published for high and critical suspicious activities
// so the notification pipeline can fan out to operators.
type FraudAlertEvent struct {
	Timestamp    time.Time `json:"@timestamp"`
	ActivityType string    `json:"activity_type"`
	Severity     string    `json:"severity"`
	UserID       string    `json:"user_id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	IP           string    `json:"ip,omitempty"`
	AdID         string    `json:"ad_id,omitempty"`
	Score        int       `json:"score"`
	Reasons      []string  `json:"reasons,omitempty"`
}
