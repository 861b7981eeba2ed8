package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

// SequencesRepository stores sequences and their exploded steps. Rows are
// never updated once written; edits are new sequences.
type SequencesRepository interface {
	Create(ctx context.Context, seq model.Sequence, steps []model.StepDef) error
	// EnsureSystem inserts a system template unless its id already exists.
	EnsureSystem(ctx context.Context, seq model.Sequence, steps []model.StepDef) (bool, error)
	Get(ctx context.Context, id string) (*model.Sequence, error)
	List(ctx context.Context) ([]model.Sequence, error)
}

type SequencesRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewSequencesRepository(db *sqlx.DB) *SequencesRepositoryImpl {
	return &SequencesRepositoryImpl{db: db, now: time.Now}
}

var _ SequencesRepository = (*SequencesRepositoryImpl)(nil)

func (r *SequencesRepositoryImpl) Create(ctx context.Context, seq model.Sequence, steps []model.StepDef) error {
	_, err := r.insert(ctx, "INSERT", seq, steps)
	return err
}

func (r *SequencesRepositoryImpl) EnsureSystem(ctx context.Context, seq model.Sequence, steps []model.StepDef) (bool, error) {
	seq.IsSystem = true
	return r.insert(ctx, "INSERT IGNORE", seq, steps)
}

func (r *SequencesRepositoryImpl) insert(ctx context.Context, verb string, seq model.Sequence, steps []model.StepDef) (bool, error) {
	var created bool
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		now := r.now().UTC()
		res, err := tx.ExecContext(ctx, verb+` INTO sequences
			(id, name, description, category, steps, is_system_template, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, seq.ID, seq.Name, seq.Description, seq.Category, []byte(seq.Steps), seq.IsSystem, now, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if created = n == 1; !created {
			return nil
		}
		for i, s := range steps {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO sequence_steps (sequence_id, step_index, step_type, delay_days, template, subject, body, script, message)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, seq.ID, i, s.Type, s.DelayDays, s.Template, s.Subject, s.Body, s.Script, s.Message)
			if err != nil {
				return err
			}
		}
		return nil
	})
	return created, err
}

func (r *SequencesRepositoryImpl) Get(ctx context.Context, id string) (*model.Sequence, error) {
	var s model.Sequence
	err := r.db.GetContext(ctx, &s, `
		SELECT id, name, description, category, steps, is_system_template, created_at, updated_at
		  FROM sequences
		 WHERE id = ? LIMIT 1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SequencesRepositoryImpl) List(ctx context.Context) ([]model.Sequence, error) {
	var rows []model.Sequence
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, name, description, category, steps, is_system_template, created_at, updated_at
		  FROM sequences
		 ORDER BY is_system_template DESC, name
	`)
	return rows, err
}
