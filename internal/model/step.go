package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
)

type StepType string

const (
	StepEmail          StepType = "email"
	StepCall           StepType = "call"
	StepNetworkConnect StepType = "linkedin_connect"
	StepNetworkMessage StepType = "linkedin_message"
	StepWait           StepType = "wait"
)

// Channels recorded on outreach_log rows.
const (
	ChannelEmail   = "email"
	ChannelVoice   = "voice"
	ChannelNetwork = "network"
	ChannelWait    = "wait"
)

// Step is one entry of a sequence. The set of implementations is closed.
type Step interface {
	Kind() StepType
	Delay() int
	Channel() string
	isStep()
}

type EmailStep struct {
	DelayDays int
	Template  string
	Subject   string
	Body      string
}

type CallStep struct {
	DelayDays int
	Script    string
}

type NetworkConnectStep struct {
	DelayDays int
	Message   string
}

type NetworkMessageStep struct {
	DelayDays int
	Message   string
}

type WaitStep struct {
	DelayDays int
}

func (s EmailStep) Kind() StepType          { return StepEmail }
func (s CallStep) Kind() StepType           { return StepCall }
func (s NetworkConnectStep) Kind() StepType { return StepNetworkConnect }
func (s NetworkMessageStep) Kind() StepType { return StepNetworkMessage }
func (s WaitStep) Kind() StepType           { return StepWait }

func (s EmailStep) Delay() int          { return s.DelayDays }
func (s CallStep) Delay() int           { return s.DelayDays }
func (s NetworkConnectStep) Delay() int { return s.DelayDays }
func (s NetworkMessageStep) Delay() int { return s.DelayDays }
func (s WaitStep) Delay() int           { return s.DelayDays }

func (s EmailStep) Channel() string          { return ChannelEmail }
func (s CallStep) Channel() string           { return ChannelVoice }
func (s NetworkConnectStep) Channel() string { return ChannelNetwork }
func (s NetworkMessageStep) Channel() string { return ChannelNetwork }
func (s WaitStep) Channel() string           { return ChannelWait }

func (EmailStep) isStep()          {}
func (CallStep) isStep()           {}
func (NetworkConnectStep) isStep() {}
func (NetworkMessageStep) isStep() {}
func (WaitStep) isStep()           {}

// StepDef is the stored and wire form of a step.
type StepDef struct {
	Type      StepType `json:"type" yaml:"type"`
	DelayDays int      `json:"delay_days" yaml:"delay_days"`
	Template  string   `json:"template,omitempty" yaml:"template,omitempty"`
	Subject   string   `json:"subject,omitempty" yaml:"subject,omitempty"`
	Body      string   `json:"body,omitempty" yaml:"body,omitempty"`
	Script    string   `json:"script,omitempty" yaml:"script,omitempty"`
	Message   string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Decode converts the wire form into its typed variant.
func (d StepDef) Decode() (Step, error) {
	if d.DelayDays < 0 {
		return nil, apperr.Validation("delay_days", "must not be negative")
	}
	switch StepType(strings.ToLower(strings.TrimSpace(string(d.Type)))) {
	case StepEmail:
		if strings.TrimSpace(d.Subject) == "" && strings.TrimSpace(d.Body) == "" {
			return nil, apperr.Validation("email", "subject or body required")
		}
		return EmailStep{DelayDays: d.DelayDays, Template: d.Template, Subject: d.Subject, Body: d.Body}, nil
	case StepCall:
		return CallStep{DelayDays: d.DelayDays, Script: d.Script}, nil
	case StepNetworkConnect:
		return NetworkConnectStep{DelayDays: d.DelayDays, Message: d.Message}, nil
	case StepNetworkMessage:
		return NetworkMessageStep{DelayDays: d.DelayDays, Message: d.Message}, nil
	case StepWait:
		return WaitStep{DelayDays: d.DelayDays}, nil
	default:
		return nil, apperr.Validation("type", fmt.Sprintf("unknown step type %q", d.Type))
	}
}

// EncodeStep converts a typed step back into its wire form.
func EncodeStep(s Step) StepDef {
	switch v := s.(type) {
	case EmailStep:
		return StepDef{Type: StepEmail, DelayDays: v.DelayDays, Template: v.Template, Subject: v.Subject, Body: v.Body}
	case CallStep:
		return StepDef{Type: StepCall, DelayDays: v.DelayDays, Script: v.Script}
	case NetworkConnectStep:
		return StepDef{Type: StepNetworkConnect, DelayDays: v.DelayDays, Message: v.Message}
	case NetworkMessageStep:
		return StepDef{Type: StepNetworkMessage, DelayDays: v.DelayDays, Message: v.Message}
	case WaitStep:
		return StepDef{Type: StepWait, DelayDays: v.DelayDays}
	default:
		return StepDef{}
	}
}

// DecodeSteps validates every definition. The error names the offending index.
func DecodeSteps(defs []StepDef) ([]Step, error) {
	if len(defs) == 0 {
		return nil, apperr.Validation("steps", "sequence needs at least one step")
	}
	steps := make([]Step, 0, len(defs))
	for i, d := range defs {
		s, err := d.Decode()
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps = append(steps, s)
	}
	return steps, nil
}

// ParseSteps decodes a stored JSON step list.
func ParseSteps(raw []byte) ([]Step, error) {
	var defs []StepDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, apperr.Validation("steps", err.Error())
	}
	return DecodeSteps(defs)
}

// MarshalSteps encodes typed steps as stored JSON.
func MarshalSteps(steps []Step) ([]byte, error) {
	defs := make([]StepDef, 0, len(steps))
	for _, s := range steps {
		defs = append(defs, EncodeStep(s))
	}
	return json.Marshal(defs)
}
