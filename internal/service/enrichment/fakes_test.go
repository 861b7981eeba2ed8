package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/identity"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakePeople struct {
	mu   sync.Mutex
	rows map[string]model.Person
}

func newFakePeople() *fakePeople { return &fakePeople{rows: map[string]model.Person{}} }

func personKeyOf(p model.Person, domain string) string {
	return identity.PersonKey(identity.Person{
		ProviderID: p.ProviderID, NetworkURL: p.NetworkURL, Email: p.Email,
		FirstName: p.FirstName, LastName: p.LastName, CompanyDomain: domain, Title: p.Title,
	})
}

func (f *fakePeople) Upsert(_ context.Context, p model.Person, domain string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Email = identity.NormalizeEmail(p.Email)
	p.NetworkURL = identity.NormalizeNetworkURL(p.NetworkURL)

	for key, existing := range f.rows {
		same := key == personKeyOf(p, domain) ||
			(p.ProviderID != "" && existing.ProviderID == p.ProviderID) ||
			(p.Email != "" && existing.Email == p.Email) ||
			(p.NetworkURL != "" && existing.NetworkURL == p.NetworkURL)
		if !same {
			continue
		}
		merged := repository.MergePerson(existing, p)
		delete(f.rows, key)
		merged.Key = personKeyOf(merged, domain)
		f.rows[merged.Key] = merged
		return merged.Key, nil
	}
	p.Key = personKeyOf(p, domain)
	f.rows[p.Key] = p
	return p.Key, nil
}

func (f *fakePeople) GetByKey(_ context.Context, key string) (*model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakePeople) GetByEmail(_ context.Context, email string) (*model.Person, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.rows {
		if p.Email == identity.NormalizeEmail(email) {
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePeople) RecordCallAttempt(context.Context, string, string, time.Time) error { return nil }

func (f *fakePeople) RecordNetworkStatus(context.Context, string, string, time.Time) error {
	return nil
}

func (f *fakePeople) byEmail(email string) model.Person {
	p, _ := f.GetByEmail(context.Background(), email)
	if p == nil {
		return model.Person{}
	}
	return *p
}

type fakeCompanies struct {
	mu   sync.Mutex
	rows map[string]model.Company
}

func newFakeCompanies() *fakeCompanies { return &fakeCompanies{rows: map[string]model.Company{}} }

func (f *fakeCompanies) Upsert(_ context.Context, c model.Company) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := identity.CompanyKey(identity.Company{
		ProviderOrgID: c.ProviderOrgID, Domain: c.Domain, Name: c.Name, City: c.City, State: c.State,
	})
	if existing, ok := f.rows[key]; ok {
		c = repository.MergeCompany(existing, c)
	}
	c.Key = key
	f.rows[key] = c
	return key, nil
}

func (f *fakeCompanies) GetByKey(_ context.Context, key string) (*model.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.rows[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type fakeQueue struct {
	mu    sync.Mutex
	items []model.QueueItem
	now   time.Time
}

func (f *fakeQueue) Insert(_ context.Context, it model.QueueItem) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.ID = int64(len(f.items) + 1)
	it.CreatedAt, it.UpdatedAt = f.now, f.now
	f.items = append(f.items, it)
	return it.ID, nil
}

func (f *fakeQueue) InsertDeduped(_ context.Context, it model.QueueItem, since time.Time) (model.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.Status, it.Note = model.QueueQueued, ""
	for _, prev := range f.items {
		switch prev.Status {
		case model.QueueQueued, model.QueueProcessing, model.QueueEnriched, model.QueueFailed:
		default:
			continue
		}
		if prev.PersonKey == it.PersonKey && prev.RequestHash == it.RequestHash && !prev.UpdatedAt.Before(since) {
			it.Status, it.Note = model.QueueSkipped, model.NoteRecentRequest
			break
		}
	}
	it.ID = int64(len(f.items) + 1)
	it.CreatedAt, it.UpdatedAt = f.now, f.now
	f.items = append(f.items, it)
	return it, nil
}

func (f *fakeQueue) Claim(_ context.Context, token string, limit int) ([]model.QueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.QueueItem
	for i := range f.items {
		if len(out) == limit {
			break
		}
		if f.items[i].Status != model.QueueQueued {
			continue
		}
		f.items[i].Status = model.QueueProcessing
		f.items[i].ClaimToken = token
		out = append(out, f.items[i])
	}
	return out, nil
}

func (f *fakeQueue) Finish(_ context.Context, ids []int64, status model.QueueStatus, note, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		it := &f.items[id-1]
		it.Status, it.Note, it.Error = status, note, errMsg
	}
	return nil
}

func (f *fakeQueue) ReleaseStale(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeQueue) CountByStatus(_ context.Context, campaignID string) (map[model.QueueStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[model.QueueStatus]int{}
	for _, it := range f.items {
		if it.CampaignID == campaignID {
			out[it.Status]++
		}
	}
	return out, nil
}

func (f *fakeQueue) item(id int64) model.QueueItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id-1]
}

type fakeHistory map[string]time.Time

func (h fakeHistory) LastSentAt(_ context.Context, key string) (*time.Time, error) {
	t, ok := h[key]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

type fakeProvider struct {
	mu        sync.Mutex
	match     func(req dispatcher.MatchRequest) ([]dispatcher.MatchedPerson, error)
	profiles  map[string]dispatcher.CompanyProfile
	requests  []dispatcher.MatchRequest
	companies []string
}

func (f *fakeProvider) BulkMatchPeople(_ context.Context, req dispatcher.MatchRequest) ([]dispatcher.MatchedPerson, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.match == nil {
		return nil, nil
	}
	return f.match(req)
}

func (f *fakeProvider) EnrichCompany(_ context.Context, domain string) (*dispatcher.CompanyProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.companies = append(f.companies, domain)
	p, ok := f.profiles[domain]
	if !ok {
		return nil, errors.New("unknown domain")
	}
	return &p, nil
}
