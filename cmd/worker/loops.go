package worker

import (
	"github.com/jmehdipour/outreach-engine/internal/app"
	"github.com/jmehdipour/outreach-engine/internal/distlock"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/jmehdipour/outreach-engine/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pollerCmd = &cobra.Command{
	Use:   "poller",
	Short: "Dispatch due sequence steps",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer stop()

		a, err := app.New(ctx, cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		w := worker.NewPoller(a.Sequences, logger.Log.Named("poller"))
		if cfg.Sequence.PollInterval > 0 {
			w.Interval = cfg.Sequence.PollInterval
		}

		logger.Log.Info("poller started",
			zap.Duration("interval", w.Interval),
			zap.Int("batch", cfg.Sequence.PollBatch),
			zap.Duration("dispatch_timeout", cfg.Sequence.DispatchTimeout))
		return w.Run(ctx)
	},
}

var enricherCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Process the enrichment queue in provider-sized batches",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer stop()

		a, err := app.New(ctx, cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		w := worker.NewEnricher(a.Enrichment, logger.Log.Named("enricher"))
		if cfg.Enrichment.Interval > 0 {
			w.Interval = cfg.Enrichment.Interval
		}
		if cfg.Enrichment.StaleAfter > 0 {
			w.StaleAfter = cfg.Enrichment.StaleAfter
		}

		logger.Log.Info("enricher started",
			zap.Duration("interval", w.Interval),
			zap.Int("batch_size", cfg.Enrichment.BatchSize),
			zap.Float64("rps", cfg.Enrichment.RequestsPerSecond))
		return w.Run(ctx)
	},
}

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Advance sender warmup schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer stop()

		a, err := app.New(ctx, cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		lock := distlock.NewRedisLock(a.Redis, "warmup:advance", cfg.Warmup.LockTTL)
		w := worker.NewWarmup(a.Warmup, lock, logger.Log.Named("warmup"))
		if cfg.Warmup.Interval > 0 {
			w.Interval = cfg.Warmup.Interval
		}

		logger.Log.Info("warmup worker started", zap.Duration("interval", w.Interval))
		return w.Run(ctx)
	},
}
