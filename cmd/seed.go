package cmd

import (
	"fmt"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmehdipour/outreach-engine/internal/db"
	"github.com/jmehdipour/outreach-engine/internal/logger"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/service/sequence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedDemoSenders bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed system sequence templates and demo senders",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level)
		ctx := cmd.Context()

		// 2) connect MySQL
		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		seqSvc := sequence.NewService(sequence.Deps{
			Sequences: repository.NewSequencesRepository(sqlDB),
		}, sequence.Config{}, logger.Log)

		created, err := seqSvc.SeedSystem(ctx)
		if err != nil {
			return err
		}
		logger.Log.Info("system sequences seeded", zap.Int("created", created))

		if !seedDemoSenders {
			return nil
		}
		senders := repository.NewSendersRepository(sqlDB)
		for _, s := range demoSenders() {
			if err := senders.Upsert(ctx, s); err != nil {
				return fmt.Errorf("seed sender %s: %w", s.Email, err)
			}
		}
		logger.Log.Info("demo senders seeded", zap.Int("count", len(demoSenders())))
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedDemoSenders, "demo-senders", false, "also upsert demo sender signatures")
}

// demoSenders are deterministic, so re-running seed only refreshes them.
func demoSenders() []model.Sender {
	return []model.Sender{
		{
			Email:             "alex@outreach.example",
			FullName:          "Alex Rivera",
			Title:             "Automation Consultant",
			Company:           "Outreach Example",
			Phone:             "+15125550100",
			SignatureHTML:     "<p>Alex Rivera<br>Automation Consultant</p>",
			RampSchedule:      "moderate",
			CurrentDailyLimit: 50,
		},
		{
			Email:             "sam@outreach.example",
			FullName:          "Sam Chen",
			Title:             "Solutions Engineer",
			Company:           "Outreach Example",
			Phone:             "+15125550101",
			SignatureHTML:     "<p>Sam Chen<br>Solutions Engineer</p>",
			RampSchedule:      "conservative",
			CurrentDailyLimit: 50,
		},
	}
}
