package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/distlock"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/jmehdipour/outreach-engine/internal/service/sequence"
	"go.uber.org/zap"
)

// every runs fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			fn(ctx)
		}
	}
}

type SequencePoller interface {
	PollOnce(ctx context.Context) (sequence.PollResult, error)
}

// Poller drives the sequence orchestrator. Several pollers may run against
// one database; the per-enrollment claim keeps dispatch single.
type Poller struct {
	Sequences SequencePoller
	Log       *zap.Logger

	Interval time.Duration
}

func NewPoller(seq SequencePoller, log *zap.Logger) *Poller {
	return &Poller{Sequences: seq, Log: log, Interval: time.Minute}
}

func (w *Poller) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	every(ctx, w.Interval, w.tick)
	return nil
}

func (w *Poller) tick(ctx context.Context) {
	res, err := w.Sequences.PollOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.Log.Error("poll failed", zap.Error(err))
		}
		return
	}
	if res.Due == 0 && res.Expired == 0 {
		return
	}
	w.Log.Info("poll done",
		zap.Int64("expired", res.Expired),
		zap.Int("due", res.Due),
		zap.Int("sent", res.Sent),
		zap.Int("throttled", res.Throttled),
		zap.Int("failed", res.Failed),
		zap.Int("completed", res.Completed),
		zap.Int("lost", res.Lost),
	)
}

type BatchProcessor interface {
	ProcessBatch(ctx context.Context) (enrichment.BatchResult, error)
	Recover(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Enricher drains the enrichment queue each tick. Claims left in processing
// by a crashed run are returned to queued first.
type Enricher struct {
	Queue BatchProcessor
	Log   *zap.Logger

	Interval   time.Duration
	StaleAfter time.Duration
	MaxBatches int // per tick; 0 = until the queue is empty
}

func NewEnricher(q BatchProcessor, log *zap.Logger) *Enricher {
	return &Enricher{Queue: q, Log: log, Interval: time.Minute, StaleAfter: 15 * time.Minute}
}

func (w *Enricher) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Minute
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	every(ctx, w.Interval, w.tick)
	return nil
}

func (w *Enricher) tick(ctx context.Context) {
	if w.StaleAfter > 0 {
		n, err := w.Queue.Recover(ctx, w.StaleAfter)
		if err != nil {
			w.Log.Error("recover stale claims", zap.Error(err))
		} else if n > 0 {
			w.Log.Warn("requeued stale enrichment claims", zap.Int64("rows", n))
		}
	}

	for i := 0; w.MaxBatches <= 0 || i < w.MaxBatches; i++ {
		if ctx.Err() != nil {
			return
		}
		res, err := w.Queue.ProcessBatch(ctx)
		if err != nil {
			w.Log.Error("enrichment batch failed", zap.Error(err))
			return
		}
		if res.Claimed == 0 {
			return
		}
		w.Log.Info("enrichment batch",
			zap.Int("claimed", res.Claimed),
			zap.Int("requests", res.Requests),
			zap.Int("enriched", res.Enriched),
			zap.Int("no_match", res.NoMatch),
			zap.Int("failed", res.Failed),
		)
	}
}

type WarmupAdvancer interface {
	AdvanceAll(ctx context.Context) (int, error)
}

// Warmup advances every enabled sender once per tick. The lock keeps a
// fleet of instances from racing on the same day boundary.
type Warmup struct {
	Senders WarmupAdvancer
	Lock    distlock.Locker
	Log     *zap.Logger

	Interval time.Duration
}

func NewWarmup(a WarmupAdvancer, lock distlock.Locker, log *zap.Logger) *Warmup {
	return &Warmup{Senders: a, Lock: lock, Log: log, Interval: time.Hour}
}

func (w *Warmup) Run(ctx context.Context) error {
	if w.Interval <= 0 {
		w.Interval = time.Hour
	}
	if w.Lock == nil {
		w.Lock = distlock.Noop{}
	}
	if w.Log == nil {
		w.Log = zap.NewNop()
	}
	every(ctx, w.Interval, w.tick)
	return nil
}

func (w *Warmup) tick(ctx context.Context) {
	ok, err := w.Lock.Acquire(ctx)
	if err != nil {
		w.Log.Error("warmup lock", zap.Error(err))
		return
	}
	if !ok {
		w.Log.Debug("warmup tick held elsewhere")
		return
	}
	defer func() {
		if err := w.Lock.Release(context.WithoutCancel(ctx)); err != nil {
			w.Log.Warn("warmup lock release", zap.Error(err))
		}
	}()

	n, err := w.Senders.AdvanceAll(ctx)
	if err != nil {
		w.Log.Error("warmup advance", zap.Error(err))
		return
	}
	if n > 0 {
		w.Log.Info("warmup advanced", zap.Int("senders", n))
	}
}
