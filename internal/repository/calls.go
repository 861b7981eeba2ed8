package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// CallsRepository tracks voice calls placed by the orchestrator until the
// provider reports completion.
type CallsRepository interface {
	Insert(ctx context.Context, c model.VoiceCall) error
	Get(ctx context.Context, callID string) (*model.VoiceCall, error)
	// Complete records the outcome once; later deliveries of the same call are no-ops.
	Complete(ctx context.Context, c model.VoiceCall) (bool, error)
}

type CallsRepositoryImpl struct {
	db *sqlx.DB
}

func NewCallsRepository(db *sqlx.DB) *CallsRepositoryImpl {
	return &CallsRepositoryImpl{db: db}
}

var _ CallsRepository = (*CallsRepositoryImpl)(nil)

func (r *CallsRepositoryImpl) Insert(ctx context.Context, c model.VoiceCall) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO voice_calls (call_id, enrollment_id, person_key, campaign_id, phone, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE call_id = call_id
	`, c.CallID, c.EnrollmentID, c.PersonKey, c.CampaignID, c.Phone, c.Status, c.CreatedAt)
	return err
}

func (r *CallsRepositoryImpl) Get(ctx context.Context, callID string) (*model.VoiceCall, error) {
	var c model.VoiceCall
	err := r.db.GetContext(ctx, &c, `
		SELECT call_id, enrollment_id, person_key, campaign_id, phone, status, transcript,
		       recording_url, duration_seconds, created_at, completed_at
		  FROM voice_calls
		 WHERE call_id = ? LIMIT 1
	`, callID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CallsRepositoryImpl) Complete(ctx context.Context, c model.VoiceCall) (bool, error) {
	completedAt := time.Now().UTC()
	if c.CompletedAt != nil {
		completedAt = *c.CompletedAt
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE voice_calls
		   SET status = ?, transcript = ?, recording_url = ?, duration_seconds = ?, completed_at = ?
		 WHERE call_id = ? AND completed_at IS NULL
	`, c.Status, c.Transcript, c.RecordingURL, c.DurationSeconds, completedAt, c.CallID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
