package http

import (
	"context"
	"net/http"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/config"
	"github.com/jmehdipour/outreach-engine/internal/http/middleware"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/service/enrichment"
	"github.com/jmehdipour/outreach-engine/internal/service/sequence"
	"github.com/jmehdipour/outreach-engine/internal/service/warmup"
	"github.com/labstack/echo/v4"
	echoMid "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Sequences interface {
	CreateSequence(ctx context.Context, name, description, category string, defs []model.StepDef) (model.Sequence, error)
	Enroll(ctx context.Context, req sequence.EnrollRequest) (int64, error)
	Replay(ctx context.Context, id int64) error
	Status(ctx context.Context, sequenceID string) (map[model.EnrollmentStatus]int, error)
}

type Enrichment interface {
	Enqueue(ctx context.Context, c enrichment.Candidate) (model.QueueItem, error)
	Summary(ctx context.Context, campaignID string) (map[model.QueueStatus]int, error)
}

type Warmup interface {
	Enable(ctx context.Context, email, scheduleName string) error
	Disable(ctx context.Context, email string) error
	Status(ctx context.Context, email string) (warmup.Status, error)
}

type Calls interface {
	Complete(ctx context.Context, ev model.CallEvent) (bool, error)
}

// Deps are the services behind the operational surface. Redis is optional;
// without it the per-client rate limit is off.
type Deps struct {
	Sequences  Sequences
	Enrichment Enrichment
	Warmup     Warmup
	Calls      Calls
	Redis      *redis.Client
}

type Server struct {
	e   *echo.Echo
	log *zap.Logger
}

// NewServer wires routes. Metrics must already be registered on the default
// registry by the caller.
func NewServer(cfg config.Config, d Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	// echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.Log.Level))
	e.Use(echoMid.Recover(), echoMid.Logger())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// health
	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })

	// provider callbacks
	e.POST("/webhooks/voice", voiceWebhookHandler(d.Calls, logger), middleware.WebhookSecretMiddleware(cfg.Auth.WebhookSecret))

	// middlewares
	authMW := middleware.APIKeyMiddleware(cfg.Auth.APIKeys)
	rlMW := middleware.RateLimitMiddleware(middleware.RateLimitConfig{
		Redis:          d.Redis,
		RPS:            cfg.RateLimit.RPS,
		KeyPrefix:      "rl:client:",
		Window:         time.Second,
		RetryAfterHint: true,
	})

	// routes
	v1 := e.Group("/v1", authMW, rlMW)
	v1.POST("/sequences", createSequenceHandler(d.Sequences, logger))
	v1.GET("/sequences/:id/status", sequenceStatusHandler(d.Sequences, logger))
	v1.POST("/enrollments", enrollHandler(d.Sequences, logger))
	v1.POST("/enrollments/:id/replay", replayHandler(d.Sequences, logger))
	v1.POST("/enrichment/candidates", enqueueCandidateHandler(d.Enrichment, logger))
	v1.GET("/enrichment/summary", enrichmentSummaryHandler(d.Enrichment, logger))
	v1.PUT("/senders/:email/warmup", enableWarmupHandler(d.Warmup, logger))
	v1.DELETE("/senders/:email/warmup", disableWarmupHandler(d.Warmup, logger))
	v1.GET("/senders/:email/warmup", warmupStatusHandler(d.Warmup, logger))

	return &Server{e: e, log: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.e }

func (s *Server) Start(addr string) error {
	s.log.Info("http: listening", zap.String("addr", addr))
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error { return s.e.Shutdown(ctx) }

// echoLevel maps the service log level onto echo's own logger, which only
// covers framework messages; request logs go through the Logger middleware.
func echoLevel(level string) log.Lvl {
	switch level {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	default:
		return log.INFO
	}
}
