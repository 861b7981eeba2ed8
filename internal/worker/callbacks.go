package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"go.uber.org/zap"
)

type CallCompleter interface {
	Complete(ctx context.Context, ev model.CallEvent) (bool, error)
}

// CallbackConsumer applies voice provider completion events published to
// Kafka. Bad or unknown events are committed and dropped; storage errors
// are retried a few times before the message is given up.
type CallbackConsumer struct {
	Consumer MessageSource
	Calls    CallCompleter
	Log      *zap.Logger

	MaxAttempts int
	Backoff     time.Duration
}

func NewCallbackConsumer(consumer MessageSource, calls CallCompleter, log *zap.Logger) *CallbackConsumer {
	return &CallbackConsumer{
		Consumer:    consumer,
		Calls:       calls,
		Log:         log,
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

func (w *CallbackConsumer) Run(ctx context.Context) error {
	if w.MaxAttempts <= 0 {
		w.MaxAttempts = 3
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}

	msgs := make(chan kafka.Message, 64)
	go fetchLoop(ctx, w.Consumer, msgs, w.Log)

	for m := range msgs {
		w.processOne(ctx, m)
	}
	return nil
}

func (w *CallbackConsumer) processOne(ctx context.Context, m kafka.Message) {
	defer func() {
		if err := w.Consumer.Commit(ctx, m); err != nil && ctx.Err() == nil {
			w.Log.Error("kafka commit", zap.Error(err))
		}
	}()

	var ev model.CallEvent
	if err := kafka.Decode(m, &ev); err != nil {
		metrics.CallbacksTotal.WithLabelValues("kafka", "rejected").Inc()
		w.Log.Warn("bad call event", zap.Int64("offset", m.Offset), zap.Error(err))
		return
	}

	log := w.Log.With(zap.String("call_id", ev.CallID))
	for attempt := 1; ; attempt++ {
		applied, err := w.Calls.Complete(ctx, ev)
		switch {
		case err == nil && applied:
			metrics.CallbacksTotal.WithLabelValues("kafka", "applied").Inc()
			return
		case err == nil:
			metrics.CallbacksTotal.WithLabelValues("kafka", "duplicate").Inc()
			return
		case apperr.IsValidation(err) || apperr.IsNotFound(err):
			metrics.CallbacksTotal.WithLabelValues("kafka", "rejected").Inc()
			log.Warn("call event rejected", zap.Error(err))
			return
		}

		if attempt >= w.MaxAttempts || ctx.Err() != nil {
			metrics.CallbacksTotal.WithLabelValues("kafka", "error").Inc()
			log.Error("call event dropped", zap.Int("attempts", attempt), zap.Error(err))
			return
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.Backoff * time.Duration(attempt)):
		}
	}
}
