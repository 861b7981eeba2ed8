package dispatcher

import (
	"context"
	"sync/atomic"
)

// EmailBackend is one delivery route with its own health state.
type EmailBackend interface {
	Name() string
	Ready() bool
	Send(ctx context.Context, msg Email) error
}

// EmailRouter spreads sends round-robin across healthy backends. A message
// goes to exactly one backend; a send error is returned, not retried
// elsewhere, since the first backend may already have delivered it.
type EmailRouter struct {
	backends          []EmailBackend
	roundRobinCounter atomic.Uint64
}

func NewEmailRouter(backends ...EmailBackend) *EmailRouter {
	return &EmailRouter{backends: backends}
}

var _ EmailDelivery = (*EmailRouter)(nil)

func (r *EmailRouter) selectBackend() (EmailBackend, error) {
	healthy := make([]EmailBackend, 0, len(r.backends))
	for _, b := range r.backends {
		if b.Ready() {
			healthy = append(healthy, b)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := r.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (r *EmailRouter) Send(ctx context.Context, msg Email) error {
	b, err := r.selectBackend()
	if err != nil {
		return err
	}
	return b.Send(ctx, msg)
}
