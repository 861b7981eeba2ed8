package model

import "time"

// Event kinds carried on the outreach.events topic.
const (
	EventEnrolled   = "enrolled"
	EventDispatched = "dispatched"
	EventSkipped    = "skipped"
	EventThrottled  = "throttled"
	EventFailed     = "failed"
	EventCompleted  = "completed"
	EventReplayed   = "replayed"
)

// Envelope is the payload published to Kafka (via Debezium outbox SMT) for
// every enrollment transition.
type Envelope struct {
	ID           string    `json:"id"` // event ULID
	Kind         string    `json:"kind"`
	EnrollmentID int64     `json:"enrollment_id"`
	PersonKey    string    `json:"person_key"`
	CampaignID   string    `json:"campaign_id"`
	SequenceID   string    `json:"sequence_id"`
	Step         int       `json:"step"`
	Channel      string    `json:"channel"`
	Reason       string    `json:"reason,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
