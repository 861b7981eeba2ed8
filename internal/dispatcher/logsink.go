package dispatcher

import (
	"context"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"go.uber.org/zap"
)

// LogBackend accepts every message and only logs it. It is the default email
// route when no real provider is configured.
type LogBackend struct {
	log *zap.Logger
}

func NewLogBackend(log *zap.Logger) *LogBackend {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogBackend{log: log}
}

var _ EmailBackend = (*LogBackend)(nil)

func (b *LogBackend) Name() string { return "log" }
func (b *LogBackend) Ready() bool  { return true }

func (b *LogBackend) Send(_ context.Context, msg Email) error {
	if msg.To == "" {
		return apperr.Provider("log", "send_email", errEmptyRecipient)
	}
	b.log.Info("email (dry run)",
		zap.String("from", msg.From),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
