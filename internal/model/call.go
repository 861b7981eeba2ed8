package model

import "time"

type CallStatus string

const (
	CallQueued    CallStatus = "queued"
	CallCompleted CallStatus = "completed"
	CallNoAnswer  CallStatus = "no_answer"
	CallFailed    CallStatus = "failed"
)

// VoiceCall maps a provider call id back to the enrollment that placed it.
type VoiceCall struct {
	CallID          string     `db:"call_id"`
	EnrollmentID    int64      `db:"enrollment_id"`
	PersonKey       string     `db:"person_key"`
	CampaignID      string     `db:"campaign_id"`
	Phone           string     `db:"phone"`
	Status          CallStatus `db:"status"`
	Transcript      string     `db:"transcript"`
	RecordingURL    string     `db:"recording_url"`
	DurationSeconds int        `db:"duration_seconds"`
	CreatedAt       time.Time  `db:"created_at"`
	CompletedAt     *time.Time `db:"completed_at"`
}

// CallEvent is the completion payload delivered by the voice provider, either
// through the webhook or the callbacks topic.
type CallEvent struct {
	CallID       string  `json:"call_id"`
	Status       string  `json:"status"`
	Completed    bool    `json:"completed"`
	Transcript   string  `json:"concatenated_transcript"`
	RecordingURL string  `json:"recording_url"`
	CallLength   float64 `json:"call_length"` // minutes
	AnsweredBy   string  `json:"answered_by"`
	ErrorMessage string  `json:"error_message"`
}

// ResolvedStatus maps provider fields to a CallStatus.
func (e CallEvent) ResolvedStatus() CallStatus {
	switch {
	case e.ErrorMessage != "" || e.Status == "failed":
		return CallFailed
	case e.AnsweredBy == "no-answer" || e.Status == "no-answer" || e.Status == "no_answer":
		return CallNoAnswer
	case e.Completed || e.Status == "completed":
		return CallCompleted
	default:
		return CallStatus(e.Status)
	}
}
