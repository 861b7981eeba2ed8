package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// EventSink copies enrollment events from Kafka into ClickHouse:
// - a fetcher goroutine reads the topic,
// - a batch writer flushes on size or time,
// - offsets are committed only after the batch is stored.
type EventSink struct {
	Consumer MessageSource
	Events   repository.CHEventsRepository
	Log      *zap.Logger

	BatchSize int
	BatchWait time.Duration
}

func NewEventSink(consumer MessageSource, events repository.CHEventsRepository, log *zap.Logger) *EventSink {
	return &EventSink{
		Consumer:  consumer,
		Events:    events,
		Log:       log,
		BatchSize: 500,
		BatchWait: 2 * time.Second,
	}
}

// Run blocks until ctx is cancelled, flushing what it holds on the way out.
func (w *EventSink) Run(ctx context.Context) error {
	if w.BatchSize <= 0 {
		w.BatchSize = 500
	}
	if w.BatchWait <= 0 {
		w.BatchWait = 2 * time.Second
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	msgs := make(chan kafka.Message, w.BatchSize*2)
	go fetchLoop(ctx, w.Consumer, msgs, w.Log)

	w.runBatchWriter(ctx, msgs)
	return nil
}

func (w *EventSink) runBatchWriter(ctx context.Context, in <-chan kafka.Message) {
	tick := time.NewTicker(w.BatchWait)
	defer tick.Stop()

	var (
		events  = make([]model.Envelope, 0, w.BatchSize)
		pending = make([]kafka.Message, 0, w.BatchSize)
	)

	flush := func(ctx context.Context) {
		if len(pending) == 0 {
			return
		}
		if len(events) > 0 {
			if err := w.Events.InsertBatch(ctx, events); err != nil {
				// keep the batch; the next tick retries it
				w.Log.Error("clickhouse insert", zap.Int("events", len(events)), zap.Error(err))
				return
			}
		}
		if err := w.Consumer.Commit(ctx, pending...); err != nil {
			w.Log.Error("kafka commit", zap.Error(err))
		}
		metrics.EventsWritten.Add(float64(len(events)))
		w.Log.Debug("events flushed", zap.Int("events", len(events)), zap.Int("messages", len(pending)))
		events = events[:0]
		pending = pending[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush(context.WithoutCancel(ctx))
			return

		case m, ok := <-in:
			if !ok {
				flush(context.WithoutCancel(ctx))
				return
			}
			pending = append(pending, m)
			var ev model.Envelope
			if err := kafka.Decode(m, &ev); err != nil || ev.ID == "" {
				// poison: committed with the batch, never stored
				w.Log.Warn("bad event payload", zap.Int64("offset", m.Offset), zap.Error(err))
			} else {
				events = append(events, ev)
			}
			if len(pending) >= w.BatchSize {
				flush(ctx)
			}

		case <-tick.C:
			flush(ctx)
		}
	}
}
