package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// NewWorkerCmd returns the parent "worker" command.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers",
	}
	// attach subcommands
	cmd.AddCommand(pollerCmd)
	cmd.AddCommand(enricherCmd)
	cmd.AddCommand(warmupCmd)
	cmd.AddCommand(eventsCmd)
	cmd.AddCommand(callbacksCmd)
	cmd.AddCommand(relayCmd)

	return cmd
}

// setup loads config, initialises logging and metrics, and returns a context
// cancelled on SIGINT/SIGTERM.
func setup(cmd *cobra.Command) (config.Config, context.Context, context.CancelFunc, error) {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Log.Level)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	return cfg, ctx, stop, nil
}
