package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

var (
	ErrAlreadyEnrolled = errors.New("person already enrolled in campaign")
	ErrClaimLost       = errors.New("enrollment claim lost")
)

const enrollmentColumns = `
	id, person_key, campaign_id, sequence_id, sequence_step, channel, status,
	sent_at, next_action_at, action_metadata, sender_email, claim_token,
	claimed_at, last_error, created_at, updated_at`

// Transition is the state written when a claimed enrollment is released.
type Transition struct {
	Status       model.EnrollmentStatus
	Step         int
	Channel      string
	NextActionAt time.Time
	SentAt       *time.Time // nil keeps the previous value
	Metadata     json.RawMessage
	LastError    string
}

// OutreachRepository owns outreach_log. Every state change also writes an
// outbox event in the same transaction.
type OutreachRepository interface {
	Create(ctx context.Context, e model.Enrollment, ev model.Envelope) (int64, error)
	Get(ctx context.Context, id int64) (*model.Enrollment, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]model.Enrollment, error)
	// Claim moves a due enrollment to in_flight. Exactly one caller wins.
	Claim(ctx context.Context, id int64, token string, now time.Time) (bool, error)
	// Release writes the outcome of a claimed dispatch.
	Release(ctx context.Context, id int64, token string, tr Transition, ev model.Envelope) error
	ExpireClaims(ctx context.Context, claimedBefore time.Time) (int64, error)
	Replay(ctx context.Context, id int64, now time.Time, ev model.Envelope) (bool, error)
	LastSentAt(ctx context.Context, personKey string) (*time.Time, error)
	CountByStatus(ctx context.Context, sequenceID string) (map[model.EnrollmentStatus]int, error)
}

type OutreachRepositoryImpl struct {
	db     *sqlx.DB
	outbox OutboxRepository
	now    func() time.Time
}

func NewOutreachRepository(db *sqlx.DB, outbox OutboxRepository) *OutreachRepositoryImpl {
	return &OutreachRepositoryImpl{db: db, outbox: outbox, now: time.Now}
}

var _ OutreachRepository = (*OutreachRepositoryImpl)(nil)

func (r *OutreachRepositoryImpl) Create(ctx context.Context, e model.Enrollment, ev model.Envelope) (int64, error) {
	var id int64
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		now := r.now().UTC()
		res, err := tx.ExecContext(ctx, `
			INSERT INTO outreach_log (
				person_key, campaign_id, sequence_id, sequence_step, channel, status,
				next_action_at, action_metadata, sender_email, claim_token, last_error,
				created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?, ?)
		`, e.PersonKey, e.CampaignID, e.SequenceID, e.Step, e.Channel, e.Status,
			e.NextActionAt, []byte(e.ActionMetadata), e.SenderEmail, now, now)
		if isDuplicateKey(err) {
			return ErrAlreadyEnrolled
		}
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		ev.EnrollmentID = id
		return r.outbox.InsertEnvelope(ctx, tx, ev)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *OutreachRepositoryImpl) Get(ctx context.Context, id int64) (*model.Enrollment, error) {
	var e model.Enrollment
	err := r.db.GetContext(ctx, &e, `SELECT `+enrollmentColumns+` FROM outreach_log WHERE id = ? LIMIT 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListDue returns pending and throttled enrollments whose next action is due,
// oldest first.
func (r *OutreachRepositoryImpl) ListDue(ctx context.Context, now time.Time, limit int) ([]model.Enrollment, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []model.Enrollment
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+enrollmentColumns+`
		  FROM outreach_log
		 WHERE status IN ('pending', 'throttled')
		   AND next_action_at <= ?
		 ORDER BY next_action_at, id
		 LIMIT ?
	`, now, limit)
	return rows, err
}

func (r *OutreachRepositoryImpl) Claim(ctx context.Context, id int64, token string, now time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_log
		   SET status = 'in_flight', claim_token = ?, claimed_at = ?, updated_at = ?
		 WHERE id = ?
		   AND status IN ('pending', 'throttled')
		   AND next_action_at <= ?
	`, token, now, now, id, now)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *OutreachRepositoryImpl) Release(ctx context.Context, id int64, token string, tr Transition, ev model.Envelope) error {
	return withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE outreach_log
			   SET status = ?, sequence_step = ?, channel = ?, next_action_at = ?,
			       sent_at = COALESCE(?, sent_at), action_metadata = ?, last_error = ?,
			       claim_token = '', claimed_at = NULL, updated_at = ?
			 WHERE id = ? AND claim_token = ? AND status = 'in_flight'
		`, tr.Status, tr.Step, tr.Channel, tr.NextActionAt, tr.SentAt, []byte(tr.Metadata),
			tr.LastError, r.now().UTC(), id, token)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n != 1 {
			return fmt.Errorf("enrollment %d: %w", id, ErrClaimLost)
		}
		ev.EnrollmentID = id
		return r.outbox.InsertEnvelope(ctx, tx, ev)
	})
}

// ExpireClaims fails in_flight rows whose claim outlived the dispatch window.
func (r *OutreachRepositoryImpl) ExpireClaims(ctx context.Context, claimedBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outreach_log
		   SET status = 'failed', last_error = 'claim_expired', claim_token = '', updated_at = ?
		 WHERE status = 'in_flight' AND claimed_at < ?
	`, r.now().UTC(), claimedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Replay resets a failed enrollment to pending at its current step.
func (r *OutreachRepositoryImpl) Replay(ctx context.Context, id int64, now time.Time, ev model.Envelope) (bool, error) {
	var ok bool
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE outreach_log
			   SET status = 'pending', next_action_at = ?, last_error = '', updated_at = ?
			 WHERE id = ? AND status = 'failed'
		`, now, now, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if ok = n == 1; !ok {
			return nil
		}
		ev.EnrollmentID = id
		return r.outbox.InsertEnvelope(ctx, tx, ev)
	})
	return ok, err
}

func (r *OutreachRepositoryImpl) LastSentAt(ctx context.Context, personKey string) (*time.Time, error) {
	var ts sql.NullTime
	err := r.db.GetContext(ctx, &ts, `SELECT MAX(sent_at) FROM outreach_log WHERE person_key = ?`, personKey)
	if err != nil {
		return nil, err
	}
	if !ts.Valid {
		return nil, nil
	}
	return &ts.Time, nil
}

func (r *OutreachRepositoryImpl) CountByStatus(ctx context.Context, sequenceID string) (map[model.EnrollmentStatus]int, error) {
	var rows []struct {
		Status model.EnrollmentStatus `db:"status"`
		N      int                    `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS n
		  FROM outreach_log
		 WHERE sequence_id = ?
		 GROUP BY status
	`, sequenceID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.EnrollmentStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
