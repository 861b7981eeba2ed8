package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

const senderColumns = `
	email, full_name, title, company, phone, signature_html, warmup_enabled,
	warmup_day, ramp_schedule, current_daily_limit, warmup_started_at,
	last_warmup_check, created_at, updated_at`

// SendersRepository persists sender signatures and their warmup state.
type SendersRepository interface {
	Get(ctx context.Context, email string) (*model.Sender, error)
	ListWarmupEnabled(ctx context.Context) ([]model.Sender, error)
	Upsert(ctx context.Context, s model.Sender) error
	SaveWarmup(ctx context.Context, s model.Sender) error
}

type SendersRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSendersRepository(db *sqlx.DB) *SendersRepositoryImpl {
	return &SendersRepositoryImpl{db: db, now: time.Now}
}

var _ SendersRepository = (*SendersRepositoryImpl)(nil)

func (r *SendersRepositoryImpl) Get(ctx context.Context, email string) (*model.Sender, error) {
	var s model.Sender
	err := r.db.GetContext(ctx, &s, `SELECT `+senderColumns+` FROM sender_signatures WHERE email = ? LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SendersRepositoryImpl) ListWarmupEnabled(ctx context.Context) ([]model.Sender, error) {
	var rows []model.Sender
	err := r.db.SelectContext(ctx, &rows, `SELECT `+senderColumns+` FROM sender_signatures WHERE warmup_enabled = 1 ORDER BY email`)
	return rows, err
}

// Upsert writes profile fields only; warmup columns are owned by SaveWarmup.
func (r *SendersRepositoryImpl) Upsert(ctx context.Context, s model.Sender) error {
	now := r.now().UTC()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sender_signatures
			(email, full_name, title, company, phone, signature_html, warmup_enabled,
			 warmup_day, ramp_schedule, current_daily_limit, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, 0, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			full_name = VALUES(full_name),
			title = VALUES(title),
			company = VALUES(company),
			phone = VALUES(phone),
			signature_html = VALUES(signature_html),
			updated_at = VALUES(updated_at)
	`, s.Email, s.FullName, s.Title, s.Company, s.Phone, s.SignatureHTML,
		s.RampSchedule, s.CurrentDailyLimit, now, now)
	return err
}

func (r *SendersRepositoryImpl) SaveWarmup(ctx context.Context, s model.Sender) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sender_signatures
		   SET warmup_enabled = ?, warmup_day = ?, ramp_schedule = ?, current_daily_limit = ?,
		       warmup_started_at = ?, last_warmup_check = ?, updated_at = ?
		 WHERE email = ?
	`, s.WarmupEnabled, s.WarmupDay, s.RampSchedule, s.CurrentDailyLimit,
		s.WarmupStartedAt, s.LastWarmupCheck, r.now().UTC(), s.Email)
	return err
}
