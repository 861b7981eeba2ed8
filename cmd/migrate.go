package cmd

import (
	"fmt"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmehdipour/outreach-engine/internal/db"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateClickHouse bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations (MySQL, optionally ClickHouse)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		ctx := cmd.Context()

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer sqlDB.Close()

		applied, err := db.NewMigrator(sqlDB, db.MySQLMigrations(), logger.Log).Up(ctx)
		if err != nil {
			return fmt.Errorf("mysql migrations: %w", err)
		}
		logger.Log.Info("mysql schema up to date", zap.Strings("applied", applied))

		if !migrateClickHouse {
			return nil
		}
		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer chDB.Close()
		if err := db.ApplyAll(ctx, chDB, db.ClickHouseMigrations()); err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		logger.Log.Info("clickhouse schema up to date")
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateClickHouse, "clickhouse", true, "also create the ClickHouse events table")
}
