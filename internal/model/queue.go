package model

import "time"

type QueueStatus string

const (
	QueueQueued     QueueStatus = "queued"
	QueueProcessing QueueStatus = "processing"
	QueueSkipped    QueueStatus = "skipped"
	QueueSuppressed QueueStatus = "suppressed"
	QueueRejected   QueueStatus = "rejected"
	QueueEnriched   QueueStatus = "enriched"
	QueueFailed     QueueStatus = "failed"
)

func (s QueueStatus) String() string { return string(s) }

// Queue notes recorded with terminal evaluation outcomes.
const (
	NoteBelowThreshold = "below_threshold"
	NoteSuppressed     = "suppressed"
	NoteFresh          = "fresh"
	NoteRecentRequest  = "recent_request"
	NoteNoMatch        = "no_match"
)

// QueueItem is a row in apollo_queue.
type QueueItem struct {
	ID                   int64       `db:"id"`
	PersonKey            string      `db:"person_key"`
	CampaignID           string      `db:"campaign_id"`
	Status               QueueStatus `db:"status"`
	RequestHash          string      `db:"request_hash"`
	RevealPersonalEmails bool        `db:"reveal_personal_emails"`
	RevealPhoneNumber    bool        `db:"reveal_phone_number"`
	Note                 string      `db:"note"`
	Error                string      `db:"last_error"`
	ClaimToken           string      `db:"claim_token"`
	CreatedAt            time.Time   `db:"created_at"`
	UpdatedAt            time.Time   `db:"updated_at"`
}
