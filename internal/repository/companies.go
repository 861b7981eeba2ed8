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

const companyColumns = `
	company_key,
	COALESCE(provider_org_id, '') AS provider_org_id,
	COALESCE(domain_norm, '') AS domain_norm,
	name, hq_city, hq_state, industry, employee_count, estimated_revenue,
	technologies, wms_system, equipment_signals, controls_roles_hiring,
	job_postings_count, job_postings_relevant, locations, enriched_at,
	created_at, updated_at`

// CompaniesRepository is the only writer of leads_company.
type CompaniesRepository interface {
	Upsert(ctx context.Context, c model.Company) (string, error)
	GetByKey(ctx context.Context, key string) (*model.Company, error)
}

type CompaniesRepositoryImpl struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewCompaniesRepository(db *sqlx.DB) *CompaniesRepositoryImpl {
	return &CompaniesRepositoryImpl{db: db, now: time.Now}
}

var _ CompaniesRepository = (*CompaniesRepositoryImpl)(nil)

func (r *CompaniesRepositoryImpl) Upsert(ctx context.Context, c model.Company) (string, error) {
	c.ProviderOrgID = strings.TrimSpace(c.ProviderOrgID)
	c.Domain = identity.NormalizeDomain(c.Domain)

	key := identity.CompanyKey(identity.Company{
		ProviderOrgID: c.ProviderOrgID,
		Domain:        c.Domain,
		Name:          c.Name,
		City:          c.City,
		State:         c.State,
	})

	stored, err := r.upsertOnce(ctx, key, c)
	if isDuplicateKey(err) {
		stored, err = r.upsertOnce(ctx, key, c)
	}
	if err != nil {
		return "", fmt.Errorf("upsert company %s: %w", key, err)
	}
	return stored, nil
}

func (r *CompaniesRepositoryImpl) upsertOnce(ctx context.Context, key string, in model.Company) (string, error) {
	var stored string
	err := withTx(ctx, r.db, nil, func(tx *sqlx.Tx) error {
		var matches []model.Company
		err := tx.SelectContext(ctx, &matches, `
			SELECT `+companyColumns+`
			  FROM leads_company
			 WHERE company_key = ?
			    OR provider_org_id = ?
			    OR domain_norm = ?
			 FOR UPDATE
		`, key, nullIfEmpty(in.ProviderOrgID), nullIfEmpty(in.Domain))
		if err != nil {
			return err
		}

		now := r.now().UTC()
		if len(matches) == 0 {
			in.Key = key
			in.CreatedAt, in.UpdatedAt = now, now
			stored = key
			return r.insert(ctx, tx, in)
		}

		primary := matches[0]
		for _, m := range matches {
			if m.Key == key {
				primary = m
				break
			}
			if identity.Rank(m.Key) < identity.Rank(primary.Key) {
				primary = m
			}
		}
		for _, m := range matches {
			if m.Key == primary.Key {
				continue
			}
			if m.ProviderOrgID == in.ProviderOrgID {
				in.ProviderOrgID = ""
			}
			if m.Domain == in.Domain {
				in.Domain = ""
			}
		}

		merged := MergeCompany(primary, in)
		merged.UpdatedAt = now
		if primary.Key != key && identity.Rank(key) < identity.Rank(primary.Key) {
			if _, err := tx.ExecContext(ctx, `UPDATE leads_people SET company_key = ? WHERE company_key = ?`, key, primary.Key); err != nil {
				return fmt.Errorf("rekey leads_people: %w", err)
			}
			merged.Key = key
		}
		stored = merged.Key
		return r.update(ctx, tx, primary.Key, merged)
	})
	return stored, err
}

func (r *CompaniesRepositoryImpl) insert(ctx context.Context, tx *sqlx.Tx, c model.Company) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO leads_company (
			company_key, provider_org_id, domain_norm, name, hq_city, hq_state,
			industry, employee_count, estimated_revenue, technologies, wms_system,
			equipment_signals, controls_roles_hiring, job_postings_count,
			job_postings_relevant, locations, enriched_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Key, nullIfEmpty(c.ProviderOrgID), nullIfEmpty(c.Domain), c.Name, c.City, c.State,
		c.Industry, c.EmployeeCount, c.EstimatedRevenue, c.Technologies, c.WMSSystem,
		c.EquipmentSignals, c.ControlsRolesHiring, c.JobPostingsCount,
		c.JobPostingsRelevant, c.Locations, c.EnrichedAt, c.CreatedAt, c.UpdatedAt,
	)
	return err
}

func (r *CompaniesRepositoryImpl) update(ctx context.Context, tx *sqlx.Tx, currentKey string, c model.Company) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE leads_company
		   SET company_key = ?, provider_org_id = ?, domain_norm = ?, name = ?,
		       hq_city = ?, hq_state = ?, industry = ?, employee_count = ?,
		       estimated_revenue = ?, technologies = ?, wms_system = ?,
		       equipment_signals = ?, controls_roles_hiring = ?, job_postings_count = ?,
		       job_postings_relevant = ?, locations = ?, enriched_at = ?, updated_at = ?
		 WHERE company_key = ?
	`,
		c.Key, nullIfEmpty(c.ProviderOrgID), nullIfEmpty(c.Domain), c.Name,
		c.City, c.State, c.Industry, c.EmployeeCount,
		c.EstimatedRevenue, c.Technologies, c.WMSSystem,
		c.EquipmentSignals, c.ControlsRolesHiring, c.JobPostingsCount,
		c.JobPostingsRelevant, c.Locations, c.EnrichedAt, c.UpdatedAt,
		currentKey,
	)
	return err
}

func (r *CompaniesRepositoryImpl) GetByKey(ctx context.Context, key string) (*model.Company, error) {
	var c model.Company
	err := r.db.GetContext(ctx, &c, `SELECT `+companyColumns+` FROM leads_company WHERE company_key = ? LIMIT 1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
