package repository

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// WarmupLedgerRepository is the append-only warmup_sends ledger.
type WarmupLedgerRepository interface {
	Append(ctx context.Context, s model.WarmupSend) error
	CountSince(ctx context.Context, sender string, since time.Time) (int, error)
}

type WarmupLedgerRepositoryImpl struct {
	db *sqlx.DB
}

func NewWarmupLedgerRepository(db *sqlx.DB) *WarmupLedgerRepositoryImpl {
	return &WarmupLedgerRepositoryImpl{db: db}
}

var _ WarmupLedgerRepository = (*WarmupLedgerRepositoryImpl)(nil)

func (r *WarmupLedgerRepositoryImpl) Append(ctx context.Context, s model.WarmupSend) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO warmup_sends (sender_email, recipient_email, send_type, warmup_day, sent_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.SenderEmail, s.RecipientEmail, s.SendType, s.WarmupDay, s.SentAt)
	return err
}

func (r *WarmupLedgerRepositoryImpl) CountSince(ctx context.Context, sender string, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM warmup_sends WHERE sender_email = ? AND sent_at >= ?
	`, sender, since)
	return n, err
}
