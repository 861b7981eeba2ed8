package warmup

import (
	"context"
	"sync"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/model"
)

type fakeSenders struct {
	mu   sync.Mutex
	rows map[string]model.Sender
}

func newFakeSenders(senders ...model.Sender) *fakeSenders {
	f := &fakeSenders{rows: make(map[string]model.Sender)}
	for _, s := range senders {
		f.rows[s.Email] = s
	}
	return f
}

func (f *fakeSenders) Get(_ context.Context, email string) (*model.Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[email]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeSenders) ListWarmupEnabled(_ context.Context) ([]model.Sender, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Sender
	for _, s := range f.rows {
		if s.WarmupEnabled {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSenders) Upsert(_ context.Context, s model.Sender) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.Email] = s
	return nil
}

func (f *fakeSenders) SaveWarmup(ctx context.Context, s model.Sender) error {
	return f.Upsert(ctx, s)
}

type fakeLedger struct {
	mu        sync.Mutex
	rows      []model.WarmupSend
	appendErr error
}

func (f *fakeLedger) Append(ctx context.Context, s model.WarmupSend) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.rows = append(f.rows, s)
	return nil
}

func (f *fakeLedger) CountSince(_ context.Context, sender string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.SenderEmail == sender && !r.SentAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeLedger) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
