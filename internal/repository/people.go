package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/identity"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmoiron/sqlx"
)

const personColumns = `
	person_key,
	COALESCE(provider_id, '') AS provider_id,
	COALESCE(network_url_norm, '') AS network_url_norm,
	COALESCE(email_norm, '') AS email_norm,
	company_key, first_name, last_name, title, seniority, department,
	email_status, phone, job_start_date, icp_match, icp_score,
	strategy_assignment, readiness_score, source, enriched_at,
	enrichment_request_hash, network_connection_status, network_connected_at,
	last_call_attempt_at, last_call_status, created_at, updated_at`

// PeopleRepository is the only writer of leads_people.
type PeopleRepository interface {
	// Upsert resolves the canonical key, merges with any row that shares the
	// key or one of its identifiers and returns the stored key.
	Upsert(ctx context.Context, p model.Person, companyDomain string) (string, error)
	GetByKey(ctx context.Context, key string) (*model.Person, error)
	GetByEmail(ctx context.Context, email string) (*model.Person, error)
	RecordCallAttempt(ctx context.Context, key, status string, at time.Time) error
	RecordNetworkStatus(ctx context.Context, key, status string, at time.Time) error
}

type PeopleRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewPeopleRepository(db *sqlx.DB) *PeopleRepositoryImpl {
	return &PeopleRepositoryImpl{db: db, now: time.Now}
}

var _ PeopleRepository = (*PeopleRepositoryImpl)(nil)

// Upsert retries once when a concurrent insert wins the unique index.
func (r *PeopleRepositoryImpl) Upsert(ctx context.Context, p model.Person, companyDomain string) (string, error) {
	p.ProviderID = strings.TrimSpace(p.ProviderID)
	p.NetworkURL = identity.NormalizeNetworkURL(p.NetworkURL)
	p.Email = identity.NormalizeEmail(p.Email)

	key := identity.PersonKey(identity.Person{
		ProviderID:    p.ProviderID,
		NetworkURL:    p.NetworkURL,
		Email:         p.Email,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		CompanyDomain: companyDomain,
		Title:         p.Title,
	})

	stored, err := r.upsertOnce(ctx, key, p)
	if isDuplicateKey(err) {
		stored, err = r.upsertOnce(ctx, key, p)
	}
	if err != nil {
		return "", fmt.Errorf("upsert person %s: %w", key, err)
	}
	return stored, nil
}

func (r *PeopleRepositoryImpl) upsertOnce(ctx context.Context, key string, in model.Person) (string, error) {
	var stored string
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var matches []model.Person
		err := tx.SelectContext(ctx, &matches, `
			SELECT `+personColumns+`
			  FROM leads_people
			 WHERE person_key = ?
			    OR provider_id = ?
			    OR network_url_norm = ?
			    OR email_norm = ?
			 FOR UPDATE
		`, key, nullIfEmpty(in.ProviderID), nullIfEmpty(in.NetworkURL), nullIfEmpty(in.Email))
		if err != nil {
			return err
		}

		now := r.now().UTC()
		if len(matches) == 0 {
			in.Key = key
			in.CreatedAt, in.UpdatedAt = now, now
			stored = key
			return insertPerson(ctx, tx, in)
		}

		primary := pickPrimary(matches, key)
		releaseHeldIdentifiers(&in, matches, primary.Key)
		merged := MergePerson(primary, in)
		merged.UpdatedAt = now

		merged.Key = primary.Key
		if primary.Key != key && identity.Rank(key) < identity.Rank(primary.Key) {
			if err := rekeyPerson(ctx, tx, primary.Key, key); err != nil {
				return err
			}
			merged.Key = key
		}
		stored = merged.Key
		return updatePerson(ctx, tx, primary.Key, merged)
	})
	return stored, err
}

// pickPrimary prefers the row already stored under key, then the row with
// the strongest key.
func pickPrimary(rows []model.Person, key string) model.Person {
	best := rows[0]
	for _, row := range rows {
		if row.Key == key {
			return row
		}
		if identity.Rank(row.Key) < identity.Rank(best.Key) {
			best = row
		}
	}
	return best
}

// releaseHeldIdentifiers drops identifiers that belong to another row so the
// merged update cannot collide on a unique index.
func releaseHeldIdentifiers(in *model.Person, rows []model.Person, primaryKey string) {
	for _, row := range rows {
		if row.Key == primaryKey {
			continue
		}
		if in.ProviderID != "" && row.ProviderID == in.ProviderID {
			in.ProviderID = ""
		}
		if in.NetworkURL != "" && row.NetworkURL == in.NetworkURL {
			in.NetworkURL = ""
		}
		if in.Email != "" && row.Email == in.Email {
			in.Email = ""
		}
	}
}

func rekeyPerson(ctx context.Context, tx *sqlx.Tx, from, to string) error {
	for _, table := range []string{"outreach_log", "apollo_queue", "voice_calls"} {
		q := fmt.Sprintf(`UPDATE %s SET person_key = ? WHERE person_key = ?`, table)
		if _, err := tx.ExecContext(ctx, q, to, from); err != nil {
			return fmt.Errorf("rekey %s: %w", table, err)
		}
	}
	return nil
}

func insertPerson(ctx context.Context, tx *sqlx.Tx, p model.Person) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leads_people (
			person_key, provider_id, network_url_norm, email_norm, company_key,
			first_name, last_name, title, seniority, department, email_status,
			phone, job_start_date, icp_match, icp_score, strategy_assignment,
			readiness_score, source, enriched_at, enrichment_request_hash,
			network_connection_status, network_connected_at, last_call_attempt_at,
			last_call_status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.Key, nullIfEmpty(p.ProviderID), nullIfEmpty(p.NetworkURL), nullIfEmpty(p.Email), p.CompanyKey,
		p.FirstName, p.LastName, p.Title, p.Seniority, p.Department, p.EmailStatus,
		p.Phone, p.JobStartDate, p.ICPMatch, p.ICPScore, p.Strategy,
		p.ReadinessScore, p.Source, p.EnrichedAt, p.RequestHash,
		p.NetworkConnectionStatus, p.NetworkConnectedAt, p.LastCallAttemptAt,
		p.LastCallStatus, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func updatePerson(ctx context.Context, tx *sqlx.Tx, currentKey string, p model.Person) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE leads_people
		   SET person_key = ?, provider_id = ?, network_url_norm = ?, email_norm = ?,
		       company_key = ?, first_name = ?, last_name = ?, title = ?, seniority = ?,
		       department = ?, email_status = ?, phone = ?, job_start_date = ?,
		       icp_match = ?, icp_score = ?, strategy_assignment = ?, readiness_score = ?,
		       source = ?, enriched_at = ?, enrichment_request_hash = ?,
		       network_connection_status = ?, network_connected_at = ?,
		       last_call_attempt_at = ?, last_call_status = ?, updated_at = ?
		 WHERE person_key = ?
	`,
		p.Key, nullIfEmpty(p.ProviderID), nullIfEmpty(p.NetworkURL), nullIfEmpty(p.Email),
		p.CompanyKey, p.FirstName, p.LastName, p.Title, p.Seniority,
		p.Department, p.EmailStatus, p.Phone, p.JobStartDate,
		p.ICPMatch, p.ICPScore, p.Strategy, p.ReadinessScore,
		p.Source, p.EnrichedAt, p.RequestHash,
		p.NetworkConnectionStatus, p.NetworkConnectedAt,
		p.LastCallAttemptAt, p.LastCallStatus, p.UpdatedAt,
		currentKey,
	)
	return err
}

func (r *PeopleRepositoryImpl) GetByKey(ctx context.Context, key string) (*model.Person, error) {
	return r.getOne(ctx, `SELECT `+personColumns+` FROM leads_people WHERE person_key = ? LIMIT 1`, key)
}

func (r *PeopleRepositoryImpl) GetByEmail(ctx context.Context, email string) (*model.Person, error) {
	return r.getOne(ctx, `SELECT `+personColumns+` FROM leads_people WHERE email_norm = ? LIMIT 1`, identity.NormalizeEmail(email))
}

func (r *PeopleRepositoryImpl) getOne(ctx context.Context, q string, arg any) (*model.Person, error) {
	var p model.Person
	err := r.db.GetContext(ctx, &p, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// RecordCallAttempt stamps the latest voice outcome on the person.
func (r *PeopleRepositoryImpl) RecordCallAttempt(ctx context.Context, key, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads_people
		   SET last_call_attempt_at = ?, last_call_status = ?, updated_at = ?
		 WHERE person_key = ?
	`, at, status, r.now().UTC(), key)
	return err
}

// RecordNetworkStatus stamps the professional-network connection state.
func (r *PeopleRepositoryImpl) RecordNetworkStatus(ctx context.Context, key, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE leads_people
		   SET network_connection_status = ?, network_connected_at = ?, updated_at = ?
		 WHERE person_key = ?
	`, status, at, r.now().UTC(), key)
	return err
}
