package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

type Publisher interface {
	Publish(ctx context.Context, msgs ...kafka.Message) error
}

var _ Publisher = (*kafka.Producer)(nil)

// OutboxRelay publishes outbox rows in id order and deletes them once the
// broker has acknowledged. Deployments with a CDC connector on the outbox
// table do not run it.
type OutboxRelay struct {
	Outbox    repository.OutboxRepository
	Publisher Publisher
	Log       *zap.Logger

	Interval  time.Duration
	BatchSize int
}

func NewOutboxRelay(outbox repository.OutboxRepository, pub Publisher, log *zap.Logger) *OutboxRelay {
	return &OutboxRelay{Outbox: outbox, Publisher: pub, Log: log, Interval: time.Second, BatchSize: 500}
}

func (w *OutboxRelay) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Second
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	every(ctx, w.Interval, func(ctx context.Context) {
		// drain while full batches keep coming
		for ctx.Err() == nil {
			n, err := w.RelayOnce(ctx)
			if err != nil {
				w.Log.Error("outbox relay", zap.Error(err))
				return
			}
			if n < w.BatchSize {
				return
			}
		}
	})
	return nil
}

// RelayOnce publishes one batch and returns how many rows it moved.
func (w *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	rows, err := w.Outbox.FetchPending(ctx, w.BatchSize)
	if err != nil || len(rows) == 0 {
		return 0, err
	}

	msgs := make([]kafka.Message, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, kafka.Message{
			Topic: r.Topic,
			Key:   []byte(r.AggregateID),
			Value: r.Payload,
		})
		ids = append(ids, r.ID)
	}

	if err := w.Publisher.Publish(ctx, msgs...); err != nil {
		if merr := w.Outbox.MarkAttempt(ctx, ids); merr != nil {
			w.Log.Warn("outbox mark attempt", zap.Error(merr))
		}
		return 0, err
	}
	if err := w.Outbox.Delete(ctx, ids); err != nil {
		// rows will be published again; consumers dedup on event id
		return 0, err
	}
	metrics.OutboxRelayed.Add(float64(len(rows)))
	return len(rows), nil
}
