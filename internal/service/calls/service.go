// Package calls folds asynchronous voice-call outcomes back into call
// records and the person's last call status.
package calls

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// CallStamper records the latest call outcome on a person.
type CallStamper interface {
	RecordCallAttempt(ctx context.Context, key, status string, at time.Time) error
}

type Service struct {
	calls  repository.CallsRepository
	people CallStamper
	log    *zap.Logger
	now    func() time.Time
}

func NewService(calls repository.CallsRepository, people CallStamper, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{calls: calls, people: people, log: log, now: time.Now}
}

// Complete applies a provider completion event. Redelivered events for an
// already completed call report false and change nothing.
func (s *Service) Complete(ctx context.Context, ev model.CallEvent) (bool, error) {
	if ev.CallID == "" {
		return false, apperr.Validation("call_id", "required")
	}
	status := ev.ResolvedStatus()
	if status == "" {
		return false, apperr.Validation("status", "missing")
	}

	call, err := s.calls.Get(ctx, ev.CallID)
	if err != nil {
		return false, fmt.Errorf("load call %s: %w", ev.CallID, err)
	}
	if call == nil {
		return false, apperr.NotFound("voice_call", ev.CallID)
	}

	now := s.now().UTC()
	updated, err := s.calls.Complete(ctx, model.VoiceCall{
		CallID:          ev.CallID,
		Status:          status,
		Transcript:      ev.Transcript,
		RecordingURL:    ev.RecordingURL,
		DurationSeconds: int(math.Round(ev.CallLength * 60)),
		CompletedAt:     &now,
	})
	if err != nil {
		return false, fmt.Errorf("complete call %s: %w", ev.CallID, err)
	}
	if !updated {
		s.log.Debug("call already completed", zap.String("call_id", ev.CallID))
		return false, nil
	}

	if err := s.people.RecordCallAttempt(ctx, call.PersonKey, string(status), now); err != nil {
		return true, fmt.Errorf("stamp call status on %s: %w", call.PersonKey, err)
	}
	s.log.Info("voice call completed",
		zap.String("call_id", ev.CallID),
		zap.String("person_key", call.PersonKey),
		zap.String("status", string(status)))
	return true, nil
}
