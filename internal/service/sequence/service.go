// Package sequence drives enrollments through their multi-channel outreach
// sequences. Each due enrollment is claimed with a conditional update before
// any collaborator is called, so concurrent pollers never double-dispatch.
package sequence

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/ratelimit"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/util"
	"go.uber.org/zap"
)

const day = 24 * time.Hour

// NetworkScope is the counter scope of the global network daily cap.
const NetworkScope = "network"

type Config struct {
	PollBatch       int
	DispatchTimeout time.Duration
	ClaimTTL        time.Duration
	ThrottleDelay   time.Duration
	DefaultSender   string
	NetworkDailyCap int
	VoiceWebhookURL string
}

func (c *Config) applyDefaults() {
	if c.PollBatch <= 0 {
		c.PollBatch = 100
	}
	if c.DispatchTimeout <= 0 {
		c.DispatchTimeout = 30 * time.Second
	}
	if c.ClaimTTL <= 0 {
		c.ClaimTTL = 10 * time.Minute
	}
	if c.ThrottleDelay <= 0 {
		c.ThrottleDelay = day
	}
}

// People is the slice of the entity store the orchestrator reads and stamps.
type People interface {
	GetByKey(ctx context.Context, key string) (*model.Person, error)
	RecordCallAttempt(ctx context.Context, key, status string, at time.Time) error
	RecordNetworkStatus(ctx context.Context, key, status string, at time.Time) error
}

type Companies interface {
	GetByKey(ctx context.Context, key string) (*model.Company, error)
}

type Senders interface {
	Get(ctx context.Context, email string) (*model.Sender, error)
}

type Calls interface {
	Insert(ctx context.Context, c model.VoiceCall) error
}

// Reserver gates a send on the sender's daily budget; see warmup.Service.
type Reserver interface {
	Reserve(ctx context.Context, sender, recipient string, send func(context.Context) error) error
}

// Deps are the stores and collaborators a Service drives.
type Deps struct {
	Sequences  repository.SequencesRepository
	Outreach   repository.OutreachRepository
	People     People
	Companies  Companies
	Senders    Senders
	Calls      Calls
	Warmup     Reserver
	Email      dispatcher.EmailDelivery
	Voice      dispatcher.VoiceProvider
	Network    dispatcher.NetworkAutomation
	NetworkCap ratelimit.DailyCounter
}

type Service struct {
	sequences  repository.SequencesRepository
	outreach   repository.OutreachRepository
	people     People
	companies  Companies
	senders    Senders
	calls      Calls
	warmup     Reserver
	email      dispatcher.EmailDelivery
	voice      dispatcher.VoiceProvider
	network    dispatcher.NetworkAutomation
	networkCap ratelimit.DailyCounter

	render   *Renderer
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
	newToken func() string
}

func NewService(d Deps, cfg Config, log *zap.Logger) *Service {
	cfg.applyDefaults()
	if log == nil {
		log = zap.NewNop()
	}
	if d.NetworkCap == nil {
		d.NetworkCap = ratelimit.NewMemoryCounter()
	}
	return &Service{
		sequences:  d.Sequences,
		outreach:   d.Outreach,
		people:     d.People,
		companies:  d.Companies,
		senders:    d.Senders,
		calls:      d.Calls,
		warmup:     d.Warmup,
		email:      d.Email,
		voice:      d.Voice,
		network:    d.Network,
		networkCap: d.NetworkCap,
		render:     NewRenderer(),
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		newToken:   util.New,
	}
}

// CreateSequence validates every step and stores a new immutable sequence.
func (s *Service) CreateSequence(ctx context.Context, name, description, category string, defs []model.StepDef) (model.Sequence, error) {
	if strings.TrimSpace(name) == "" {
		return model.Sequence{}, apperr.Validation("name", "required")
	}
	steps, err := model.DecodeSteps(defs)
	if err != nil {
		return model.Sequence{}, err
	}
	for i, st := range steps {
		for _, src := range stepSources(st) {
			if err := s.render.Validate(src); err != nil {
				return model.Sequence{}, fmt.Errorf("steps[%d]: %w", i, apperr.Validation("template", err.Error()))
			}
		}
	}
	raw, err := model.MarshalSteps(steps)
	if err != nil {
		return model.Sequence{}, err
	}
	seq := model.Sequence{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		Category:    category,
		Steps:       raw,
	}
	normalized := make([]model.StepDef, 0, len(steps))
	for _, st := range steps {
		normalized = append(normalized, model.EncodeStep(st))
	}
	if err := s.sequences.Create(ctx, seq, normalized); err != nil {
		return model.Sequence{}, fmt.Errorf("create sequence: %w", err)
	}
	return seq, nil
}

func stepSources(st model.Step) []string {
	switch v := st.(type) {
	case model.EmailStep:
		return []string{v.Subject, v.Body, v.Template}
	case model.CallStep:
		return []string{v.Script}
	case model.NetworkConnectStep:
		return []string{v.Message}
	case model.NetworkMessageStep:
		return []string{v.Message}
	default:
		return nil
	}
}

// EnrollRequest places one person on one campaign's sequence.
type EnrollRequest struct {
	PersonKey   string `json:"person_key"`
	CampaignID  string `json:"campaign_id"`
	SequenceID  string `json:"sequence_id"`
	SenderEmail string `json:"sender_email"`
}

// Enroll creates the enrollment at step 0, due after the first step's delay.
func (s *Service) Enroll(ctx context.Context, req EnrollRequest) (int64, error) {
	if req.PersonKey == "" {
		return 0, apperr.Validation("person_key", "required")
	}
	if req.CampaignID == "" {
		return 0, apperr.Validation("campaign_id", "required")
	}
	steps, err := s.loadSteps(ctx, req.SequenceID)
	if err != nil {
		return 0, err
	}
	p, err := s.people.GetByKey(ctx, req.PersonKey)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, apperr.NotFound("person", req.PersonKey)
	}

	now := s.now().UTC()
	first := steps[0]
	e := model.Enrollment{
		PersonKey:      req.PersonKey,
		CampaignID:     req.CampaignID,
		SequenceID:     req.SequenceID,
		Step:           0,
		Channel:        first.Channel(),
		Status:         model.EnrollmentPending,
		NextActionAt:   now.Add(time.Duration(first.Delay()) * day),
		ActionMetadata: stepMetadata(first),
		SenderEmail:    req.SenderEmail,
	}
	id, err := s.outreach.Create(ctx, e, s.event(model.EventEnrolled, e, 0, first.Channel(), ""))
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Service) loadSteps(ctx context.Context, sequenceID string) ([]model.Step, error) {
	seq, err := s.sequences.Get(ctx, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("load sequence %s: %w", sequenceID, err)
	}
	if seq == nil {
		return nil, apperr.NotFound("sequence", sequenceID)
	}
	return model.ParseSteps(seq.Steps)
}

// Replay resets a failed enrollment to pending at its current step.
func (s *Service) Replay(ctx context.Context, id int64) error {
	e, err := s.outreach.Get(ctx, id)
	if err != nil {
		return err
	}
	if e == nil {
		return apperr.NotFound("enrollment", fmt.Sprint(id))
	}
	if e.Status != model.EnrollmentFailed {
		return apperr.Validation("status", "only failed enrollments can be replayed, got "+e.Status.String())
	}
	ok, err := s.outreach.Replay(ctx, id, s.now().UTC(), s.event(model.EventReplayed, *e, e.Step, e.Channel, ""))
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Validation("status", "enrollment changed state during replay")
	}
	return nil
}

// Status counts the enrollments of a sequence per status.
func (s *Service) Status(ctx context.Context, sequenceID string) (map[model.EnrollmentStatus]int, error) {
	return s.outreach.CountByStatus(ctx, sequenceID)
}

func (s *Service) event(kind string, e model.Enrollment, step int, channel, reason string) model.Envelope {
	return model.Envelope{
		ID:           util.New(),
		Kind:         kind,
		EnrollmentID: e.ID,
		PersonKey:    e.PersonKey,
		CampaignID:   e.CampaignID,
		SequenceID:   e.SequenceID,
		Step:         step,
		Channel:      channel,
		Reason:       reason,
		OccurredAt:   s.now().UTC(),
	}
}

func stepMetadata(st model.Step) json.RawMessage {
	raw, err := json.Marshal(model.EncodeStep(st))
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}
