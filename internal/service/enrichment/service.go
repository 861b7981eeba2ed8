// Package enrichment gates calls to the enrichment provider behind ICP,
// suppression and request dedup rules, and folds provider responses back
// into the entity store.
package enrichment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/identity"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/scoring"
	"github.com/jmehdipour/outreach-engine/internal/util"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const day = 24 * time.Hour

type Config struct {
	MinICPScore       int
	SuppressionDays   int
	PersonTTL         time.Duration
	CompanyTTL        time.Duration
	BatchSize         int
	RequestsPerSecond float64 // provider pacing; <= 0 disables
	Thresholds        scoring.Thresholds
}

func (c *Config) applyDefaults() {
	if c.MinICPScore <= 0 {
		c.MinICPScore = 2
	}
	if c.SuppressionDays <= 0 {
		c.SuppressionDays = 180
	}
	if c.PersonTTL <= 0 {
		c.PersonTTL = 90 * day
	}
	if c.CompanyTTL <= 0 {
		c.CompanyTTL = 180 * day
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.Thresholds == (scoring.Thresholds{}) {
		c.Thresholds = scoring.DefaultThresholds
	}
}

// ContactHistory answers the suppression question from outreach history.
type ContactHistory interface {
	LastSentAt(ctx context.Context, personKey string) (*time.Time, error)
}

// Candidate is a person/company pair considered for enrichment.
type Candidate struct {
	Person               model.Person
	Company              model.Company
	CampaignID           string
	RevealPersonalEmails bool
	RevealPhoneNumber    bool
}

type Service struct {
	people    repository.PeopleRepository
	companies repository.CompaniesRepository
	queue     repository.EnrichmentQueueRepository
	history   ContactHistory
	provider  dispatcher.EnrichmentProvider
	limiter   *rate.Limiter
	cfg       Config
	log       *zap.Logger
	now       func() time.Time
}

func NewService(
	people repository.PeopleRepository,
	companies repository.CompaniesRepository,
	queue repository.EnrichmentQueueRepository,
	history ContactHistory,
	provider dispatcher.EnrichmentProvider,
	cfg Config,
	log *zap.Logger,
) *Service {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Service{
		people:    people,
		companies: companies,
		queue:     queue,
		history:   history,
		provider:  provider,
		limiter:   rate.NewLimiter(limit, 1),
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Enqueue scores and stores the candidate, then records exactly one queue row
// whose status is the first matching rule: rejected, suppressed, skipped
// (fresh), skipped (recent_request), queued.
func (s *Service) Enqueue(ctx context.Context, c Candidate) (model.QueueItem, error) {
	now := s.now().UTC()

	company, err := s.storeCompany(ctx, c.Company)
	if err != nil {
		return model.QueueItem{}, err
	}
	c.Person.CompanyKey = company.Key

	person, err := s.storeScored(ctx, c.Person, company, now)
	if err != nil {
		return model.QueueItem{}, err
	}

	item := model.QueueItem{
		PersonKey:            person.Key,
		CampaignID:           c.CampaignID,
		RequestHash:          identity.RequestHash(person.Key, c.RevealPersonalEmails, c.RevealPhoneNumber),
		RevealPersonalEmails: c.RevealPersonalEmails,
		RevealPhoneNumber:    c.RevealPhoneNumber,
	}
	item.Status, item.Note, err = s.evaluate(ctx, person, now)
	if err != nil {
		return model.QueueItem{}, err
	}

	// the request-hash check runs with the insert so concurrent submissions
	// of one request queue it once
	if item.Status == model.QueueQueued {
		item, err = s.queue.InsertDeduped(ctx, item, now.Add(-s.cfg.PersonTTL))
	} else {
		item.ID, err = s.queue.Insert(ctx, item)
	}
	if err != nil {
		return model.QueueItem{}, fmt.Errorf("insert queue item for %s: %w", person.Key, err)
	}
	metrics.EnrichmentTotal.WithLabelValues(item.Status.String(), item.Note).Inc()
	return item, nil
}

// evaluate applies the rules that do not depend on queue history; a queued
// result is still subject to request dedup at insert time.
func (s *Service) evaluate(ctx context.Context, p *model.Person, now time.Time) (model.QueueStatus, string, error) {
	if p.ICPScore < s.cfg.MinICPScore {
		return model.QueueRejected, model.NoteBelowThreshold, nil
	}

	last, err := s.history.LastSentAt(ctx, p.Key)
	if err != nil {
		return "", "", fmt.Errorf("last contact for %s: %w", p.Key, err)
	}
	if last != nil && now.Sub(*last) < time.Duration(s.cfg.SuppressionDays)*day {
		return model.QueueSuppressed, model.NoteSuppressed, nil
	}

	if p.Enriched(now, s.cfg.PersonTTL) && p.HasIdentifier() {
		return model.QueueSkipped, model.NoteFresh, nil
	}

	return model.QueueQueued, "", nil
}

// storeCompany upserts a company when it carries anything identifying and
// returns the stored row. An anonymous company comes back zero-valued.
func (s *Service) storeCompany(ctx context.Context, c model.Company) (model.Company, error) {
	if c.ProviderOrgID == "" && c.Domain == "" && c.Name == "" {
		return model.Company{}, nil
	}
	key, err := s.companies.Upsert(ctx, c)
	if err != nil {
		return model.Company{}, err
	}
	stored, err := s.companies.GetByKey(ctx, key)
	if err != nil {
		return model.Company{}, err
	}
	if stored == nil {
		return model.Company{}, fmt.Errorf("company %s vanished after upsert", key)
	}
	return *stored, nil
}

// storeScored upserts p, scores the merged row against company and persists
// the assessment. The returned person is the stored row.
func (s *Service) storeScored(ctx context.Context, p model.Person, company model.Company, now time.Time) (*model.Person, error) {
	key, err := s.people.Upsert(ctx, p, company.Domain)
	if err != nil {
		return nil, err
	}
	stored, err := s.people.GetByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("person %s vanished after upsert", key)
	}

	a := scoring.Score(scoring.ExtractFeatures(*stored, company, now), s.cfg.Thresholds)
	a.Apply(stored)
	if _, err := s.people.Upsert(ctx, *stored, company.Domain); err != nil {
		return nil, err
	}
	// scores never regress in storage
	return s.people.GetByKey(ctx, key)
}

// Summary returns queue status counts for a campaign.
func (s *Service) Summary(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error) {
	return s.queue.CountByStatus(ctx, campaignID)
}

// Recover returns rows stuck in processing longer than olderThan to the queue.
func (s *Service) Recover(ctx context.Context, olderThan time.Duration) (int64, error) {
	return s.queue.ReleaseStale(ctx, s.now().UTC().Add(-olderThan))
}

// newToken is swapped in tests.
var newToken = util.New
