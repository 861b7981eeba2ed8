package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

const queueColumns = `
	id, person_key, campaign_id, status, request_hash, reveal_personal_emails,
	reveal_phone_number, note, last_error, claim_token, created_at, updated_at`

// EnrichmentQueueRepository persists apollo_queue rows.
type EnrichmentQueueRepository interface {
	Insert(ctx context.Context, item model.QueueItem) (int64, error)
	// InsertDeduped stores item as queued unless a request with the same hash
	// was issued for the person at or after since; then it is stored as
	// skipped with note recent_request. The returned item carries the id and
	// final status.
	InsertDeduped(ctx context.Context, item model.QueueItem, since time.Time) (model.QueueItem, error)
	// Claim atomically moves up to limit queued rows to processing under token.
	Claim(ctx context.Context, token string, limit int) ([]model.QueueItem, error)
	Finish(ctx context.Context, ids []int64, status model.QueueStatus, note, errMsg string) error
	// ReleaseStale returns processing rows claimed before cutoff to the queue.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error)
	CountByStatus(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error)
}

type EnrichmentQueueRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewEnrichmentQueueRepository(db *sqlx.DB) *EnrichmentQueueRepositoryImpl {
	return &EnrichmentQueueRepositoryImpl{db: db, now: time.Now}
}

var _ EnrichmentQueueRepository = (*EnrichmentQueueRepositoryImpl)(nil)

func (r *EnrichmentQueueRepositoryImpl) Insert(ctx context.Context, it model.QueueItem) (int64, error) {
	return insertQueueItem(ctx, r.db, it, r.now().UTC())
}

// InsertDeduped holds the person row lock across the dedup check and the
// insert, so concurrent submissions of one request yield a single queued row.
func (r *EnrichmentQueueRepositoryImpl) InsertDeduped(ctx context.Context, it model.QueueItem, since time.Time) (model.QueueItem, error) {
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var key string
		if err := tx.GetContext(ctx, &key, `
			SELECT person_key FROM leads_people WHERE person_key = ? FOR UPDATE
		`, it.PersonKey); err != nil {
			return fmt.Errorf("lock person %s: %w", it.PersonKey, err)
		}

		issued, err := requestIssuedSince(ctx, tx, it.PersonKey, it.RequestHash, since)
		if err != nil {
			return err
		}
		it.Status, it.Note = model.QueueQueued, ""
		if issued {
			it.Status, it.Note = model.QueueSkipped, model.NoteRecentRequest
		}

		it.ID, err = insertQueueItem(ctx, tx, it, r.now().UTC())
		return err
	})
	if err != nil {
		return model.QueueItem{}, err
	}
	return it, nil
}

func insertQueueItem(ctx context.Context, db sqlx.ExecerContext, it model.QueueItem, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO apollo_queue (
			person_key, campaign_id, status, request_hash, reveal_personal_emails,
			reveal_phone_number, note, last_error, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, it.PersonKey, it.CampaignID, it.Status, it.RequestHash, it.RevealPersonalEmails,
		it.RevealPhoneNumber, it.Note, it.Error, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func requestIssuedSince(ctx context.Context, q sqlx.QueryerContext, personKey, requestHash string, since time.Time) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		SELECT COUNT(*)
		  FROM apollo_queue
		 WHERE person_key = ?
		   AND request_hash = ?
		   AND status IN ('queued', 'processing', 'enriched', 'failed')
		   AND updated_at >= ?
	`, personKey, requestHash, since)
	if err != nil {
		return false, fmt.Errorf("request dedup for %s: %w", personKey, err)
	}
	return n > 0, nil
}

func (r *EnrichmentQueueRepositoryImpl) Claim(ctx context.Context, token string, limit int) ([]model.QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []model.QueueItem
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE apollo_queue
			   SET status = 'processing', claim_token = ?, updated_at = ?
			 WHERE status = 'queued'
			 ORDER BY created_at, id
			 LIMIT ?
		`, token, r.now().UTC(), limit)
		if err != nil {
			return err
		}
		return tx.SelectContext(ctx, &items, `
			SELECT `+queueColumns+`
			  FROM apollo_queue
			 WHERE claim_token = ? AND status = 'processing'
			 ORDER BY created_at, id
		`, token)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *EnrichmentQueueRepositoryImpl) Finish(ctx context.Context, ids []int64, status model.QueueStatus, note, errMsg string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`
		UPDATE apollo_queue
		   SET status = ?, note = ?, last_error = ?, updated_at = ?
		 WHERE id IN (?) AND status = 'processing'
	`, status, note, errMsg, r.now().UTC(), ids)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, r.db.Rebind(q), args...)
	return err
}

func (r *EnrichmentQueueRepositoryImpl) ReleaseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE apollo_queue
		   SET status = 'queued', claim_token = '', updated_at = ?
		 WHERE status = 'processing' AND updated_at < ?
	`, r.now().UTC(), cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *EnrichmentQueueRepositoryImpl) CountByStatus(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error) {
	var rows []struct {
		Status model.QueueStatus `db:"status"`
		N      int               `db:"n"`
	}
	err := r.db.SelectContext(ctx, &rows, `
		SELECT status, COUNT(*) AS n
		  FROM apollo_queue
		 WHERE campaign_id = ?
		 GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, err
	}
	out := make(map[model.QueueStatus]int, len(rows))
	for _, r := range rows {
		out[r.Status] = r.N
	}
	return out, nil
}
