package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// fakeSource serves queued messages and then blocks until ctx is done.
type fakeSource struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func newFakeSource(values ...string) *fakeSource {
	s := &fakeSource{}
	for i, v := range values {
		s.queue = append(s.queue, kafka.Message{Offset: int64(i), Value: []byte(v)})
	}
	return s
}

func (s *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	s.mu.Lock()
	if len(s.queue) > 0 {
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (s *fakeSource) Commit(_ context.Context, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = append(s.committed, msgs...)
	return nil
}

func (s *fakeSource) committedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.committed)
}

type fakeCH struct {
	mu       sync.Mutex
	failures int
	batches  [][]model.Envelope
}

func (f *fakeCH) InsertBatch(_ context.Context, events []model.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("clickhouse unavailable")
	}
	f.batches = append(f.batches, append([]model.Envelope(nil), events...))
	return nil
}

func (f *fakeCH) stored() []model.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Envelope
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

type fakeCompleter struct {
	mu      sync.Mutex
	results []error // consumed in order; nil = applied
	seen    []string
	known   map[string]bool
}

func (f *fakeCompleter) Complete(_ context.Context, ev model.CallEvent) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, ev.CallID)
	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return false, err
		}
	}
	if f.known[ev.CallID] {
		return false, nil
	}
	if f.known == nil {
		f.known = map[string]bool{}
	}
	f.known[ev.CallID] = true
	return true, nil
}

type fakeOutbox struct {
	rows      []model.OutboxEvent
	deleted   []int64
	attempted []int64
}

func (f *fakeOutbox) Insert(context.Context, *sqlx.Tx, string, string, string, []byte) error {
	return nil
}

func (f *fakeOutbox) InsertEnvelope(context.Context, *sqlx.Tx, model.Envelope) error { return nil }

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]model.OutboxEvent, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

func (f *fakeOutbox) Delete(_ context.Context, ids []int64) error {
	f.deleted = append(f.deleted, ids...)
	gone := make(map[int64]bool, len(ids))
	for _, id := range ids {
		gone[id] = true
	}
	kept := f.rows[:0]
	for _, r := range f.rows {
		if !gone[r.ID] {
			kept = append(kept, r)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeOutbox) MarkAttempt(_ context.Context, ids []int64) error {
	f.attempted = append(f.attempted, ids...)
	return nil
}

type fakeBatches struct {
	results   []enrichment.BatchResult
	calls     int
	recovered int
}

func (f *fakeBatches) ProcessBatch(context.Context) (enrichment.BatchResult, error) {
	f.calls++
	if len(f.results) == 0 {
		return enrichment.BatchResult{}, nil
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func (f *fakeBatches) Recover(context.Context, time.Duration) (int64, error) {
	f.recovered++
	return 0, nil
}

type fakeLock struct {
	free     bool
	released int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) { return l.free, nil }
func (l *fakeLock) Release(context.Context) error         { l.released++; return nil }

type countingAdvancer struct{ calls int }

func (a *countingAdvancer) AdvanceAll(context.Context) (int, error) {
	a.calls++
	return 2, nil
}

type fakePublisher struct {
	err  error
	sent []kafka.Message
}

func (p *fakePublisher) Publish(_ context.Context, msgs ...kafka.Message) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, msgs...)
	return nil
}

func zapNop() *zap.Logger { return zap.NewNop() }
