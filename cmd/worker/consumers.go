package worker

import (
	"fmt"

	"github.com/jmehdipour/outreach-engine/internal/app"
	"github.com/jmehdipour/outreach-engine/internal/db"
	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Copy enrollment events from Kafka into ClickHouse",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer stop()

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()

		kc := kafka.ConfigFor(cfg.Kafka, cfg.Kafka.EventsTopic, "events")
		consumer := kafka.NewConsumerFromConfig(kc)
		defer consumer.Close()

		w := worker.NewEventSink(consumer, repository.NewCHEventsRepository(chDB), logger.Log.Named("events"))
		if cfg.Events.BatchSize > 0 {
			w.BatchSize = cfg.Events.BatchSize
		}
		if cfg.Events.BatchWait > 0 {
			w.BatchWait = cfg.Events.BatchWait
		}

		logger.Log.Info("events sink started",
			zap.String("topic", kc.Topic),
			zap.String("group", kc.GroupID),
			zap.Int("batch_size", w.BatchSize),
			zap.Duration("batch_wait", w.BatchWait))
		return w.Run(ctx)
	},
}

var callbacksCmd = &cobra.Command{
	Use:   "callbacks",
	Short: "Apply voice call completion events from Kafka",
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

		kc := kafka.ConfigFor(cfg.Kafka, cfg.Kafka.CallbacksTopic, "callbacks")
		consumer := kafka.NewConsumerFromConfig(kc)
		defer consumer.Close()

		w := worker.NewCallbackConsumer(consumer, a.Calls, logger.Log.Named("callbacks"))

		logger.Log.Info("callback consumer started", zap.String("topic", kc.Topic), zap.String("group", kc.GroupID))
		return w.Run(ctx)
	},
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Publish outbox rows to Kafka (when no CDC connector is deployed)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, ctx, stop, err := setup(cmd)
		if err != nil {
			return err
		}
		defer stop()

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()

		w := worker.NewOutboxRelay(repository.NewOutboxRepository(sqlDB), producer, logger.Log.Named("relay"))

		logger.Log.Info("outbox relay started", zap.Strings("brokers", cfg.Kafka.Brokers))
		return w.Run(ctx)
	},
}
