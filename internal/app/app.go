// Package app assembles repositories, collaborators and services from config
// for the serve and worker commands.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmehdipour/outreach-engine/internal/db"
	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/distlock"
	"github.com/jmehdipour/outreach-engine/internal/ratelimit"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/scoring"
	"github.com/jmehdipour/outreach-engine/internal/service/calls"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/jmehdipour/outreach-engine/internal/service/sequence"
	"github.com/jmehdipour/outreach-engine/internal/service/warmup"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// App owns the MySQL and Redis handles; Close releases both.
type App struct {
	Cfg   config.Config
	Log   *zap.Logger
	MySQL *sqlx.DB
	Redis *redis.Client

	Outbox   repository.OutboxRepository
	People   *repository.PeopleRepositoryImpl
	Senders  *repository.SendersRepositoryImpl
	Outreach *repository.OutreachRepositoryImpl

	Enrichment *enrichment.Service
	Warmup     *warmup.Service
	Sequences  *sequence.Service
	Calls      *calls.Service
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	mysqlDB, err := db.OpenMySQL(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}
	rdb, err := db.OpenRedis(cfg.Redis)
	if err != nil {
		_ = mysqlDB.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	a := &App{Cfg: cfg, Log: log, MySQL: mysqlDB, Redis: rdb}
	if err := a.wire(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire(ctx context.Context) error {
	cfg := a.Cfg

	// repos (MySQL)
	a.Outbox = repository.NewOutboxRepository(a.MySQL)
	a.People = repository.NewPeopleRepository(a.MySQL)
	a.Senders = repository.NewSendersRepository(a.MySQL)
	a.Outreach = repository.NewOutreachRepository(a.MySQL, a.Outbox)
	companies := repository.NewCompaniesRepository(a.MySQL)
	queue := repository.NewEnrichmentQueueRepository(a.MySQL)
	sequences := repository.NewSequencesRepository(a.MySQL)
	ledger := repository.NewWarmupLedgerRepository(a.MySQL)
	callsRepo := repository.NewCallsRepository(a.MySQL)

	// collaborators
	email, err := a.emailDelivery(ctx)
	if err != nil {
		return err
	}
	var voice dispatcher.VoiceProvider = dispatcher.Disabled{Name: "voice"}
	if v := cfg.Providers.Voice; v.Enabled && strings.TrimSpace(v.BaseURL) != "" {
		voice = dispatcher.NewVoiceClient(httpConfig(v.ProviderConfig), v.Voice, v.MaxDurationMin)
	}
	var network dispatcher.NetworkAutomation = dispatcher.Disabled{Name: "network"}
	if n := cfg.Providers.Network; n.Enabled && strings.TrimSpace(n.BaseURL) != "" {
		network = dispatcher.NewNetworkClient(httpConfig(n))
	}
	provider := dispatcher.NewEnrichmentClient(httpConfig(cfg.Providers.Enrichment))

	thresholds := scoring.DefaultThresholds
	if cfg.Scoring.ReadinessThreshold > 0 {
		thresholds.Readiness = cfg.Scoring.ReadinessThreshold
	}
	if cfg.Scoring.HysteresisBand > 0 {
		thresholds.Band = cfg.Scoring.HysteresisBand
	}

	// services
	a.Enrichment = enrichment.NewService(a.People, companies, queue, a.Outreach, provider, enrichment.Config{
		MinICPScore:       cfg.Enrichment.MinICPScore,
		SuppressionDays:   cfg.Enrichment.SuppressionDays,
		PersonTTL:         cfg.Enrichment.PersonTTL,
		CompanyTTL:        cfg.Enrichment.CompanyTTL,
		BatchSize:         cfg.Enrichment.BatchSize,
		RequestsPerSecond: cfg.Enrichment.RequestsPerSecond,
		Thresholds:        thresholds,
	}, a.Log.Named("enrichment"))

	senderLocks := func(email string) distlock.Locker {
		return distlock.NewRedisLock(a.Redis, "warmup:"+email, cfg.Warmup.SenderLockTTL)
	}
	a.Warmup = warmup.NewService(a.Senders, ledger, a.Log.Named("warmup"),
		warmup.WithSenderLocks(senderLocks, cfg.Warmup.SenderLockWait))

	a.Sequences = sequence.NewService(sequence.Deps{
		Sequences:  sequences,
		Outreach:   a.Outreach,
		People:     a.People,
		Companies:  companies,
		Senders:    a.Senders,
		Calls:      callsRepo,
		Warmup:     a.Warmup,
		Email:      email,
		Voice:      voice,
		Network:    network,
		NetworkCap: ratelimit.NewRedisCounter(a.Redis, "cap"),
	}, sequence.Config{
		PollBatch:       cfg.Sequence.PollBatch,
		DispatchTimeout: cfg.Sequence.DispatchTimeout,
		ClaimTTL:        cfg.Sequence.ClaimTTL,
		ThrottleDelay:   cfg.Sequence.ThrottleDelay,
		DefaultSender:   cfg.Sequence.DefaultSender,
		NetworkDailyCap: cfg.Sequence.NetworkDailyCap,
		VoiceWebhookURL: cfg.Sequence.VoiceWebhookURL,
	}, a.Log.Named("sequence"))

	a.Calls = calls.NewService(callsRepo, a.People, a.Log.Named("calls"))
	return nil
}

// emailDelivery routes through SES when enabled; the log backend is always
// present in dry-run mode and is the fallback when nothing else is set up.
func (a *App) emailDelivery(ctx context.Context) (dispatcher.EmailDelivery, error) {
	p := a.Cfg.Providers
	var backends []dispatcher.EmailBackend
	if p.SES.Enabled && !p.DryRunEmail {
		ses, err := dispatcher.NewSESBackend(ctx, dispatcher.SESConfig{
			Region:    p.SES.Region,
			AccessKey: p.SES.AccessKeyID,
			SecretKey: p.SES.SecretAccessKey,
			ConfigSet: p.SES.ConfigSet,
		})
		if err != nil {
			return nil, fmt.Errorf("ses: %w", err)
		}
		backends = append(backends, ses)
	}
	if len(backends) == 0 {
		a.Log.Warn("email runs in dry-run mode; messages are logged, not sent")
		backends = append(backends, dispatcher.NewLogBackend(a.Log.Named("email")))
	}
	return dispatcher.NewEmailRouter(backends...), nil
}

func httpConfig(p config.ProviderConfig) dispatcher.HTTPConfig {
	return dispatcher.HTTPConfig{
		Name:          p.Name,
		BaseURL:       strings.TrimRight(p.BaseURL, "/"),
		APIKey:        p.APIKey,
		APIKeyHeader:  p.APIKeyHeader,
		TimeoutMs:     p.TimeoutMs,
		FailThreshold: p.Breaker.FailThreshold,
		OpenForMs:     p.Breaker.OpenForMs,
		MaxRetries:    p.MaxRetries,
	}
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.MySQL != nil {
		_ = a.MySQL.Close()
	}
}
