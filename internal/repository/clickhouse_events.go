package repository

import (
	"context"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// CHEventsRepository appends enrollment events to ClickHouse.
type CHEventsRepository interface {
	InsertBatch(ctx context.Context, events []model.Envelope) error
}

type chEventsRepository struct {
	ch *sqlx.DB // ClickHouse connection
}

func NewCHEventsRepository(ch *sqlx.DB) CHEventsRepository {
	return &chEventsRepository{ch: ch}
}

// InsertBatch uses one prepared statement per batch; clickhouse-go turns it
// into a single block insert on commit.
func (r *chEventsRepository) InsertBatch(ctx context.Context, events []model.Envelope) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := r.ch.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO outreach.outreach_events
			(id, kind, enrollment_id, person_key, campaign_id, sequence_id, step, channel, reason, occurred_at)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.Kind, e.EnrollmentID, e.PersonKey, e.CampaignID,
			e.SequenceID, int32(e.Step), e.Channel, e.Reason, e.OccurredAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}
