package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/identity"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/scoring"
	"go.uber.org/zap"
)

// BatchResult counts the outcomes of one ProcessBatch call.
type BatchResult struct {
	Claimed  int
	Requests int
	Enriched int
	NoMatch  int
	Failed   int
}

type revealFlags struct {
	personalEmails bool
	phoneNumber    bool
}

// pending is a claimed queue row with the person it refers to.
type pending struct {
	item    model.QueueItem
	person  model.Person
	company model.Company
}

// ProcessBatch claims up to BatchSize queued rows and resolves them through
// bulk match requests. Rows sharing reveal flags share requests.
func (s *Service) ProcessBatch(ctx context.Context) (BatchResult, error) {
	var res BatchResult

	items, err := s.queue.Claim(ctx, newToken(), s.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("claim queue batch: %w", err)
	}
	res.Claimed = len(items)
	if len(items) == 0 {
		return res, nil
	}

	var order []revealFlags
	groups := make(map[revealFlags][]pending)
	for _, it := range items {
		p, err := s.loadPending(ctx, it)
		if err != nil {
			s.log.Error("load queued person", zap.String("person_key", it.PersonKey), zap.Error(err))
			s.finish(ctx, []int64{it.ID}, model.QueueFailed, "", err.Error())
			res.Failed++
			continue
		}
		f := revealFlags{it.RevealPersonalEmails, it.RevealPhoneNumber}
		if _, ok := groups[f]; !ok {
			order = append(order, f)
		}
		groups[f] = append(groups[f], p)
	}

	for _, f := range order {
		group := groups[f]
		for start := 0; start < len(group); start += dispatcher.MaxBulkMatch {
			chunk := group[start:min(start+dispatcher.MaxBulkMatch, len(group))]
			if err := s.processChunk(ctx, f, chunk, &res); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

func (s *Service) loadPending(ctx context.Context, it model.QueueItem) (pending, error) {
	p, err := s.people.GetByKey(ctx, it.PersonKey)
	if err != nil {
		return pending{}, err
	}
	if p == nil {
		return pending{}, fmt.Errorf("person %s not found", it.PersonKey)
	}
	out := pending{item: it, person: *p}
	if p.CompanyKey != "" {
		c, err := s.companies.GetByKey(ctx, p.CompanyKey)
		if err != nil {
			return pending{}, err
		}
		if c != nil {
			out.company = *c
		}
	}
	return out, nil
}

// processChunk only returns an error when the context is done; provider and
// per-row failures are recorded on the queue rows.
func (s *Service) processChunk(ctx context.Context, f revealFlags, chunk []pending, res *BatchResult) error {
	ids := make([]int64, 0, len(chunk))
	req := dispatcher.MatchRequest{
		RevealPersonalEmails: f.personalEmails,
		RevealPhoneNumber:    f.phoneNumber,
	}
	for _, p := range chunk {
		ids = append(ids, p.item.ID)
		req.Details = append(req.Details, dispatcher.PersonDetails{
			ID:               p.person.ProviderID,
			Email:            p.person.Email,
			FirstName:        p.person.FirstName,
			LastName:         p.person.LastName,
			OrganizationName: p.company.Name,
			Domain:           p.company.Domain,
			NetworkURL:       p.person.NetworkURL,
		})
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	res.Requests++
	matches, err := s.provider.BulkMatchPeople(ctx, req)
	if err != nil {
		s.log.Warn("bulk match failed", zap.Int("items", len(chunk)), zap.Error(err))
		s.finish(ctx, ids, model.QueueFailed, "", err.Error())
		res.Failed += len(chunk)
		return nil
	}

	idx := indexMatches(matches)
	var enriched, unmatched []int64
	for _, p := range chunk {
		m, ok := idx.lookup(p.person)
		if !ok {
			unmatched = append(unmatched, p.item.ID)
			continue
		}
		if err := s.applyMatch(ctx, p, m); err != nil {
			s.log.Error("apply match", zap.String("person_key", p.person.Key), zap.Error(err))
			s.finish(ctx, []int64{p.item.ID}, model.QueueFailed, "", err.Error())
			res.Failed++
			continue
		}
		enriched = append(enriched, p.item.ID)
	}

	s.finish(ctx, unmatched, model.QueueFailed, model.NoteNoMatch, "")
	s.finish(ctx, enriched, model.QueueEnriched, "", "")
	res.NoMatch += len(unmatched)
	res.Enriched += len(enriched)
	return nil
}

func (s *Service) finish(ctx context.Context, ids []int64, status model.QueueStatus, note, errMsg string) {
	if len(ids) == 0 {
		return
	}
	if err := s.queue.Finish(ctx, ids, status, note, errMsg); err != nil {
		s.log.Error("finish queue items", zap.Int64s("ids", ids), zap.Error(err))
		return
	}
	metrics.EnrichmentTotal.WithLabelValues(status.String(), note).Add(float64(len(ids)))
}

type matchIndex struct {
	byProvider map[string]dispatcher.MatchedPerson
	byEmail    map[string]dispatcher.MatchedPerson
	byURL      map[string]dispatcher.MatchedPerson
}

func indexMatches(ms []dispatcher.MatchedPerson) matchIndex {
	idx := matchIndex{
		byProvider: make(map[string]dispatcher.MatchedPerson, len(ms)),
		byEmail:    make(map[string]dispatcher.MatchedPerson, len(ms)),
		byURL:      make(map[string]dispatcher.MatchedPerson, len(ms)),
	}
	for _, m := range ms {
		if m.ProviderID != "" {
			idx.byProvider[m.ProviderID] = m
		}
		if e := identity.NormalizeEmail(m.Email); e != "" {
			idx.byEmail[e] = m
		}
		if u := identity.NormalizeNetworkURL(m.NetworkURL); u != "" {
			idx.byURL[u] = m
		}
	}
	return idx
}

// lookup matches by provider id, then email, then network URL.
func (idx matchIndex) lookup(p model.Person) (dispatcher.MatchedPerson, bool) {
	if p.ProviderID != "" {
		if m, ok := idx.byProvider[p.ProviderID]; ok {
			return m, true
		}
	}
	if p.Email != "" {
		if m, ok := idx.byEmail[identity.NormalizeEmail(p.Email)]; ok {
			return m, true
		}
	}
	if p.NetworkURL != "" {
		if m, ok := idx.byURL[identity.NormalizeNetworkURL(p.NetworkURL)]; ok {
			return m, true
		}
	}
	return dispatcher.MatchedPerson{}, false
}

func (s *Service) applyMatch(ctx context.Context, p pending, m dispatcher.MatchedPerson) error {
	now := s.now().UTC()

	company, err := s.refreshCompany(ctx, p.company, m.Organization, now)
	if err != nil {
		return err
	}

	person := p.person
	person.ProviderID = m.ProviderID
	person.Email = m.Email
	person.EmailStatus = m.EmailStatus
	person.FirstName = m.FirstName
	person.LastName = m.LastName
	person.Title = m.Title
	person.Seniority = m.Seniority
	if len(m.Departments) > 0 {
		person.Department = m.Departments[0]
	}
	person.NetworkURL = m.NetworkURL
	person.Phone = m.Phone
	person.JobStartDate = m.JobStartDate
	person.EnrichedAt = &now
	person.RequestHash = p.item.RequestHash
	if company.Key != "" {
		person.CompanyKey = company.Key
	}

	if _, err := s.storeScored(ctx, person, company, now); err != nil {
		return err
	}
	return nil
}

// refreshCompany folds the matched organization into the stored company and
// re-enriches it when its enrichment is older than CompanyTTL.
func (s *Service) refreshCompany(ctx context.Context, current model.Company, org *dispatcher.MatchedOrganization, now time.Time) (model.Company, error) {
	c := current
	if org != nil {
		if c.Key == "" {
			key := identity.CompanyKey(identity.Company{ProviderOrgID: org.ID, Domain: org.PrimaryDomain, Name: org.Name, City: org.City, State: org.State})
			if existing, err := s.companies.GetByKey(ctx, key); err != nil {
				return model.Company{}, err
			} else if existing != nil {
				c = *existing
			}
		}
		c.ProviderOrgID = firstNonEmpty(c.ProviderOrgID, org.ID)
		c.Domain = firstNonEmpty(c.Domain, org.PrimaryDomain)
		c.Name = firstNonEmpty(org.Name, c.Name)
		c.Industry = firstNonEmpty(org.Industry, c.Industry)
		if org.EstimatedEmployees > 0 {
			c.EmployeeCount = org.EstimatedEmployees
		}
		c.City = firstNonEmpty(org.City, c.City)
		c.State = firstNonEmpty(org.State, c.State)
	}
	if c.ProviderOrgID == "" && c.Domain == "" && c.Name == "" {
		return c, nil
	}

	if c.Domain != "" && !c.Enriched(now, s.cfg.CompanyTTL) {
		if err := s.limiter.Wait(ctx); err != nil {
			return model.Company{}, err
		}
		prof, err := s.provider.EnrichCompany(ctx, c.Domain)
		switch {
		case err != nil:
			s.log.Warn("company enrichment failed", zap.String("domain", c.Domain), zap.Error(err))
		case prof != nil:
			applyProfile(&c, *prof, now)
		}
	}

	return s.storeCompany(ctx, c)
}

func applyProfile(c *model.Company, prof dispatcher.CompanyProfile, now time.Time) {
	c.ProviderOrgID = firstNonEmpty(c.ProviderOrgID, prof.ProviderOrgID)
	c.Name = firstNonEmpty(prof.Name, c.Name)
	c.Industry = firstNonEmpty(prof.Industry, c.Industry)
	if prof.EmployeeCount > 0 {
		c.EmployeeCount = prof.EmployeeCount
	}
	c.EstimatedRevenue = firstNonEmpty(prof.EstimatedRevenue, c.EstimatedRevenue)
	c.Technologies = model.StringList(prof.Technologies)
	c.WMSSystem = scoring.DetectWMS(prof.Technologies)
	c.EquipmentSignals = model.StringList(scoring.DetectEquipmentSignals(prof.Technologies, prof.Description))
	c.JobPostingsCount = prof.JobOpenings
	c.City = firstNonEmpty(prof.City, c.City)
	c.State = firstNonEmpty(prof.State, c.State)
	if len(prof.Locations) > 0 {
		c.Locations = model.StringList(prof.Locations)
	}
	c.EnrichedAt = &now
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
