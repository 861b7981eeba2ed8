package dispatcher

import (
	"context"
	"errors"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
)

var ErrDisabled = errors.New("channel disabled")

// Disabled stands in for a voice or network collaborator that is switched
// off in config. Calls fail; network touches report "not delivered" so the
// enrollment moves on.
type Disabled struct{ Name string }

var (
	_ VoiceProvider     = Disabled{}
	_ NetworkAutomation = Disabled{}
)

func (d Disabled) ScheduleCall(context.Context, CallRequest) (string, error) {
	return "", apperr.Provider(d.Name, "schedule_call", ErrDisabled)
}

func (Disabled) Connect(context.Context, string, string) (bool, error) { return false, nil }
func (Disabled) Message(context.Context, string, string) (bool, error) { return false, nil }
