package sequence

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
)

var t0 = time.Date(2026, 6, 1, 14, 0, 0, 0, time.UTC)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeOutreach struct {
	mu     sync.Mutex
	rows   map[int64]*model.Enrollment
	events []model.Envelope
	nextID int64
}

func newFakeOutreach() *fakeOutreach { return &fakeOutreach{rows: map[int64]*model.Enrollment{}} }

var _ repository.OutreachRepository = (*fakeOutreach)(nil)

func (f *fakeOutreach) Create(_ context.Context, e model.Enrollment, ev model.Envelope) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.PersonKey == e.PersonKey && r.CampaignID == e.CampaignID {
			return 0, repository.ErrAlreadyEnrolled
		}
	}
	f.nextID++
	e.ID = f.nextID
	f.rows[e.ID] = &e
	ev.EnrollmentID = e.ID
	f.events = append(f.events, ev)
	return e.ID, nil
}

func (f *fakeOutreach) Get(_ context.Context, id int64) (*model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeOutreach) ListDue(_ context.Context, now time.Time, limit int) ([]model.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Enrollment
	for _, r := range f.rows {
		if (r.Status == model.EnrollmentPending || r.Status == model.EnrollmentThrottled) && !r.NextActionAt.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].NextActionAt.Equal(out[j].NextActionAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].NextActionAt.Before(out[j].NextActionAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeOutreach) Claim(_ context.Context, id int64, token string, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || (r.Status != model.EnrollmentPending && r.Status != model.EnrollmentThrottled) || r.NextActionAt.After(now) {
		return false, nil
	}
	r.Status = model.EnrollmentInFlight
	r.ClaimToken = token
	r.ClaimedAt = &now
	return true, nil
}

func (f *fakeOutreach) Release(_ context.Context, id int64, token string, tr repository.Transition, ev model.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.ClaimToken != token || r.Status != model.EnrollmentInFlight {
		return repository.ErrClaimLost
	}
	r.Status = tr.Status
	r.Step = tr.Step
	r.Channel = tr.Channel
	r.NextActionAt = tr.NextActionAt
	if tr.SentAt != nil {
		r.SentAt = tr.SentAt
	}
	r.ActionMetadata = tr.Metadata
	r.LastError = tr.LastError
	r.ClaimToken = ""
	r.ClaimedAt = nil
	ev.EnrollmentID = id
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeOutreach) ExpireClaims(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.Status == model.EnrollmentInFlight && r.ClaimedAt != nil && r.ClaimedAt.Before(before) {
			r.Status = model.EnrollmentFailed
			r.LastError = "claim_expired"
			r.ClaimToken = ""
			n++
		}
	}
	return n, nil
}

func (f *fakeOutreach) Replay(_ context.Context, id int64, now time.Time, ev model.Envelope) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok || r.Status != model.EnrollmentFailed {
		return false, nil
	}
	r.Status = model.EnrollmentPending
	r.NextActionAt = now
	r.LastError = ""
	f.events = append(f.events, ev)
	return true, nil
}

func (f *fakeOutreach) LastSentAt(_ context.Context, key string) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var last *time.Time
	for _, r := range f.rows {
		if r.PersonKey == key && r.SentAt != nil && (last == nil || r.SentAt.After(*last)) {
			last = r.SentAt
		}
	}
	return last, nil
}

func (f *fakeOutreach) CountByStatus(_ context.Context, sequenceID string) (map[model.EnrollmentStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[model.EnrollmentStatus]int{}
	for _, r := range f.rows {
		if r.SequenceID == sequenceID {
			out[r.Status]++
		}
	}
	return out, nil
}

func (f *fakeOutreach) row(id int64) model.Enrollment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.rows[id]
}

func (f *fakeOutreach) eventKinds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	kinds := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

type fakeSequences struct {
	mu   sync.Mutex
	rows map[string]model.Sequence
}

func (f *fakeSequences) Create(_ context.Context, seq model.Sequence, _ []model.StepDef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[seq.ID] = seq
	return nil
}

func (f *fakeSequences) EnsureSystem(_ context.Context, seq model.Sequence, _ []model.StepDef) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[seq.ID]; ok {
		return false, nil
	}
	seq.IsSystem = true
	f.rows[seq.ID] = seq
	return true, nil
}

func (f *fakeSequences) Get(_ context.Context, id string) (*model.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSequences) List(context.Context) ([]model.Sequence, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Sequence, 0, len(f.rows))
	for _, s := range f.rows {
		out = append(out, s)
	}
	return out, nil
}

type fakePeople struct {
	mu       sync.Mutex
	rows     map[string]model.Person
	calls    map[string]string
	networks map[string]string
}

func newFakePeople(ps ...model.Person) *fakePeople {
	f := &fakePeople{rows: map[string]model.Person{}, calls: map[string]string{}, networks: map[string]string{}}
	for _, p := range ps {
		f.rows[p.Key] = p
	}
	return f
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

func (f *fakePeople) RecordCallAttempt(_ context.Context, key, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key] = status
	return nil
}

func (f *fakePeople) RecordNetworkStatus(_ context.Context, key, status string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.networks[key] = status
	return nil
}

type fakeCompanies map[string]model.Company

func (f fakeCompanies) GetByKey(_ context.Context, key string) (*model.Company, error) {
	c, ok := f[key]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type fakeSenders map[string]model.Sender

func (f fakeSenders) Get(_ context.Context, email string) (*model.Sender, error) {
	s, ok := f[email]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

type fakeCalls struct {
	mu       sync.Mutex
	rows     []model.VoiceCall
	failures int // Insert fails this many times before succeeding
	attempts int
}

func (f *fakeCalls) Insert(ctx context.Context, c model.VoiceCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.failures > 0 {
		f.failures--
		return errors.New("deadlock found")
	}
	f.rows = append(f.rows, c)
	return nil
}

// fakeReserver enforces a flat per-sender limit.
type fakeReserver struct {
	mu    sync.Mutex
	limit int
	used  map[string]int
}

func (f *fakeReserver) Reserve(ctx context.Context, sender, _ string, send func(context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[sender] >= f.limit {
		return &apperr.RateLimitExceeded{Scope: "sender:" + sender, Limit: f.limit}
	}
	if err := send(ctx); err != nil {
		return err
	}
	f.used[sender]++
	return nil
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []dispatcher.Email
	err  error
	// block waits for ctx cancellation before returning
	block bool
}

func (f *fakeEmail) Send(ctx context.Context, msg dispatcher.Email) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeVoice struct {
	mu   sync.Mutex
	reqs []dispatcher.CallRequest
}

func (f *fakeVoice) ScheduleCall(_ context.Context, req dispatcher.CallRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	return "call-1", nil
}

type fakeNetwork struct {
	mu       sync.Mutex
	connects []string
	messages []string
	ok       bool
}

func (f *fakeNetwork) Connect(_ context.Context, url, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, url)
	return f.ok, nil
}

func (f *fakeNetwork) Message(_ context.Context, url, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, url)
	return f.ok, nil
}
