package worker

import (
	"context"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/kafka"
	"go.uber.org/zap"
)

// MessageSource is the part of kafka.Consumer the consumers need.
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

var _ MessageSource = (*kafka.Consumer)(nil)

// fetchLoop feeds out until ctx is done; fetch errors back off briefly.
func fetchLoop(ctx context.Context, src MessageSource, out chan<- kafka.Message, log *zap.Logger) {
	defer close(out)
	for {
		m, err := src.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("kafka fetch", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(200 * time.Millisecond):
			}
			continue
		}
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}
}
