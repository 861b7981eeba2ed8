package model

import (
	"encoding/json"
	"time"
)

type EnrollmentStatus string

const (
	EnrollmentPending   EnrollmentStatus = "pending"
	EnrollmentInFlight  EnrollmentStatus = "in_flight"
	EnrollmentThrottled EnrollmentStatus = "throttled"
	EnrollmentCompleted EnrollmentStatus = "completed"
	EnrollmentFailed    EnrollmentStatus = "failed"
	EnrollmentSkipped   EnrollmentStatus = "skipped"
)

func (s EnrollmentStatus) String() string { return string(s) }

// Terminal reports whether no further poll will pick the enrollment up.
func (s EnrollmentStatus) Terminal() bool {
	return s == EnrollmentCompleted || s == EnrollmentFailed
}

// Enrollment is a row in outreach_log: one person moving through one
// campaign's sequence.
type Enrollment struct {
	ID             int64            `db:"id"`
	PersonKey      string           `db:"person_key"`
	CampaignID     string           `db:"campaign_id"`
	SequenceID     string           `db:"sequence_id"`
	Step           int              `db:"sequence_step"`
	Channel        string           `db:"channel"`
	Status         EnrollmentStatus `db:"status"`
	SentAt         *time.Time       `db:"sent_at"`
	NextActionAt   time.Time        `db:"next_action_at"`
	ActionMetadata json.RawMessage  `db:"action_metadata"`
	SenderEmail    string           `db:"sender_email"`
	ClaimToken     string           `db:"claim_token"`
	ClaimedAt      *time.Time       `db:"claimed_at"`
	LastError      string           `db:"last_error"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`
}

// Sequence is a row in sequences. Steps holds the JSON encoded step list.
type Sequence struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Category    string          `db:"category"`
	Steps       json.RawMessage `db:"steps"`
	IsSystem    bool            `db:"is_system_template"`
	CreatedAt   time.Time       `db:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"`
}
