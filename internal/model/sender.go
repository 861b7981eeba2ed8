package model

import "time"

// Sender is a row in sender_signatures carrying the warmup state.
type Sender struct {
	Email             string     `db:"email"`
	FullName          string     `db:"full_name"`
	Title             string     `db:"title"`
	Company           string     `db:"company"`
	Phone             string     `db:"phone"`
	SignatureHTML     string     `db:"signature_html"`
	WarmupEnabled     bool       `db:"warmup_enabled"`
	WarmupDay         int        `db:"warmup_day"`
	RampSchedule      string     `db:"ramp_schedule"`
	CurrentDailyLimit int        `db:"current_daily_limit"`
	WarmupStartedAt   *time.Time `db:"warmup_started_at"`
	LastWarmupCheck   *time.Time `db:"last_warmup_check"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

type SendType string

const (
	SendCampaign SendType = "campaign"
	SendWarmup   SendType = "warmup"
)

// WarmupSend is one append-only row of the warmup_sends ledger.
type WarmupSend struct {
	ID             int64     `db:"id"`
	SenderEmail    string    `db:"sender_email"`
	RecipientEmail string    `db:"recipient_email"`
	SendType       SendType  `db:"send_type"`
	WarmupDay      int       `db:"warmup_day"`
	SentAt         time.Time `db:"sent_at"`
}
