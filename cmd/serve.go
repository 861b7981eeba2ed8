package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/app"
	"github.com/jmehdipour/outreach-engine/internal/config"
	httpSrv "github.com/jmehdipour/outreach-engine/internal/http"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run HTTP server (health, metrics, webhooks, admin hooks)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		defer func() { _ = logger.Log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		a, err := app.New(cmd.Context(), cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		server := httpSrv.NewServer(cfg, httpSrv.Deps{
			Sequences:  a.Sequences,
			Enrichment: a.Enrichment,
			Warmup:     a.Warmup,
			Calls:      a.Calls,
			Redis:      a.Redis,
		}, logger.Log.Named("http"))

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start(cfg.HTTP.Addr)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-sigCh:
			logger.Log.Info("signal received, shutting down", zap.String("signal", sig.String()))
		case err := <-errCh:
			if err != nil {
				logger.Log.Error("http server exited", zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)

		return nil
	},
}
