// Package warmup ramps per-sender daily send caps and keeps the send ledger.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/distlock"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"go.uber.org/zap"
)

// Status is the operator view of a sender's warmup progress.
type Status struct {
	SenderEmail     string     `json:"sender_email"`
	WarmupEnabled   bool       `json:"warmup_enabled"`
	WarmupDay       int        `json:"warmup_day,omitempty"`
	TotalDays       int        `json:"total_days,omitempty"`
	ProgressPercent int        `json:"progress_percent,omitempty"`
	RampSchedule    string     `json:"ramp_schedule,omitempty"`
	DailyLimit      int        `json:"daily_limit"`
	SendsToday      int        `json:"sends_today"`
	RemainingToday  int        `json:"remaining_today"`
	DaysUntilFull   int        `json:"days_until_full"`
	StartedAt       *time.Time `json:"warmup_started_at,omitempty"`
	LastCheck       *time.Time `json:"last_check,omitempty"`
}

// LockFunc returns the cross-process lock guarding one sender's budget.
type LockFunc func(email string) distlock.Locker

// Option configures a Service.
type Option func(*Service)

// WithSenderLocks makes Reserve hold the sender's shared lock, waiting up to
// wait for it, so every process sending as that sender shares one cap.
func WithSenderLocks(f LockFunc, wait time.Duration) Option {
	return func(s *Service) {
		s.senderLock = f
		if wait > 0 {
			s.lockWait = wait
		}
	}
}

// Service is the warmup controller. Reserve serializes check, dispatch and
// record per sender: in-process through a mutex, across processes through
// the sender lock.
type Service struct {
	senders repository.SendersRepository
	ledger  repository.WarmupLedgerRepository
	log     *zap.Logger
	now     func() time.Time

	senderLock LockFunc
	lockWait   time.Duration
	lockPoll   time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(senders repository.SendersRepository, ledger repository.WarmupLedgerRepository, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		senders:    senders,
		ledger:     ledger,
		log:        log,
		now:        time.Now,
		senderLock: func(string) distlock.Locker { return distlock.Noop{} },
		lockWait:   5 * time.Second,
		lockPoll:   20 * time.Millisecond,
		locks:      make(map[string]*sync.Mutex),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// DailyLimit reports the sender's cap: the ceiling when warmup is off, else
// the ramp value for its current day.
func DailyLimit(s model.Sender) int {
	if !s.WarmupEnabled {
		return Ceiling
	}
	return LimitForDay(s.RampSchedule, s.WarmupDay)
}

func (s *Service) sender(ctx context.Context, email string) (*model.Sender, error) {
	snd, err := s.senders.Get(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("load sender %s: %w", email, err)
	}
	if snd == nil {
		return nil, apperr.NotFound("sender", email)
	}
	return snd, nil
}

func (s *Service) lockFor(email string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[email]
	if !ok {
		l = &sync.Mutex{}
		s.locks[email] = l
	}
	return l
}

func (s *Service) DailyLimit(ctx context.Context, email string) (int, error) {
	snd, err := s.sender(ctx, email)
	if err != nil {
		return 0, err
	}
	return DailyLimit(*snd), nil
}

// SendsToday counts ledger rows since UTC midnight, campaign and warmup alike.
func (s *Service) SendsToday(ctx context.Context, email string) (int, error) {
	now := s.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.ledger.CountSince(ctx, email, midnight)
}

func (s *Service) CanSend(ctx context.Context, email string) (bool, error) {
	limit, err := s.DailyLimit(ctx, email)
	if err != nil {
		return false, err
	}
	sent, err := s.SendsToday(ctx, email)
	if err != nil {
		return false, err
	}
	return sent < limit, nil
}

func (s *Service) RecordSend(ctx context.Context, email, recipient string, typ model.SendType) error {
	snd, err := s.sender(ctx, email)
	if err != nil {
		return err
	}
	return s.ledger.Append(ctx, model.WarmupSend{
		SenderEmail:    email,
		RecipientEmail: recipient,
		SendType:       typ,
		WarmupDay:      snd.WarmupDay,
		SentAt:         s.now().UTC(),
	})
}

// Reserve runs send under the sender's lock when today's budget allows and
// records it on success. At the cap, or when the shared lock stays busy past
// the wait, it returns *apperr.RateLimitExceeded without calling send. Once
// send succeeds Reserve reports success even if the ledger write fails.
func (s *Service) Reserve(ctx context.Context, email, recipient string, send func(context.Context) error) error {
	l := s.lockFor(email)
	l.Lock()
	defer l.Unlock()

	snd, err := s.sender(ctx, email)
	if err != nil {
		return err
	}
	limit := DailyLimit(*snd)

	shared := s.senderLock(email)
	if err := s.acquire(ctx, shared); err != nil {
		if errors.Is(err, errLockBusy) {
			return &apperr.RateLimitExceeded{Scope: "sender:" + email, Limit: limit}
		}
		return err
	}
	defer func() {
		if err := shared.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("release sender lock", zap.String("sender", email), zap.Error(err))
		}
	}()

	sent, err := s.SendsToday(ctx, email)
	if err != nil {
		return err
	}
	if sent >= limit {
		return &apperr.RateLimitExceeded{Scope: "sender:" + email, Limit: limit}
	}

	if err := send(ctx); err != nil {
		return err
	}
	err = s.ledger.Append(context.WithoutCancel(ctx), model.WarmupSend{
		SenderEmail:    email,
		RecipientEmail: recipient,
		SendType:       model.SendCampaign,
		WarmupDay:      snd.WarmupDay,
		SentAt:         s.now().UTC(),
	})
	if err != nil {
		// the message is out; failing here would mark it undelivered
		s.log.Error("record warmup send",
			zap.String("sender", email),
			zap.String("recipient", recipient),
			zap.Error(err),
		)
	}
	return nil
}

var errLockBusy = errors.New("sender lock busy")

// acquire polls the shared lock until it is taken, ctx ends or lockWait runs out.
func (s *Service) acquire(ctx context.Context, l distlock.Locker) error {
	deadline := time.NewTimer(s.lockWait)
	defer deadline.Stop()
	for {
		ok, err := l.Acquire(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return errLockBusy
		case <-time.After(s.lockPoll):
		}
	}
}

// AdvanceDay moves an enabled sender one day up its ramp when at least 24h
// passed since the last check. It reports whether the day changed.
func (s *Service) AdvanceDay(ctx context.Context, email string) (bool, error) {
	snd, err := s.sender(ctx, email)
	if err != nil {
		return false, err
	}
	return s.advance(ctx, snd)
}

func (s *Service) advance(ctx context.Context, snd *model.Sender) (bool, error) {
	if !snd.WarmupEnabled {
		return false, nil
	}
	ref := snd.LastWarmupCheck
	if ref == nil {
		ref = snd.WarmupStartedAt
	}
	now := s.now().UTC()
	if ref == nil || now.Sub(*ref) < 24*time.Hour {
		return false, nil
	}

	snd.WarmupDay = max(snd.WarmupDay, 1) + 1
	snd.CurrentDailyLimit = LimitForDay(snd.RampSchedule, snd.WarmupDay)
	snd.LastWarmupCheck = &now
	if err := s.senders.SaveWarmup(ctx, *snd); err != nil {
		return false, fmt.Errorf("advance sender %s: %w", snd.Email, err)
	}
	s.log.Info("warmup day advanced",
		zap.String("sender", snd.Email),
		zap.Int("day", snd.WarmupDay),
		zap.Int("daily_limit", snd.CurrentDailyLimit),
	)
	return true, nil
}

// AdvanceAll runs AdvanceDay for every enabled sender. A failing sender is
// logged and skipped.
func (s *Service) AdvanceAll(ctx context.Context) (int, error) {
	senders, err := s.senders.ListWarmupEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list warmup senders: %w", err)
	}
	advanced := 0
	for i := range senders {
		ok, err := s.advance(ctx, &senders[i])
		if err != nil {
			s.log.Error("advance warmup", zap.String("sender", senders[i].Email), zap.Error(err))
			continue
		}
		if ok {
			advanced++
		}
	}
	return advanced, nil
}

func (s *Service) Enable(ctx context.Context, email, scheduleName string) error {
	if scheduleName == "" {
		scheduleName = DefaultSchedule
	}
	if _, ok := Schedules[scheduleName]; !ok {
		return apperr.Validation("ramp_schedule", fmt.Sprintf("unknown schedule %q", scheduleName))
	}
	snd, err := s.sender(ctx, email)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	snd.WarmupEnabled = true
	snd.WarmupDay = 1
	snd.RampSchedule = scheduleName
	snd.CurrentDailyLimit = LimitForDay(scheduleName, 1)
	snd.WarmupStartedAt = &now
	snd.LastWarmupCheck = &now
	return s.senders.SaveWarmup(ctx, *snd)
}

// Disable lifts the cap to the ceiling at once. Day and ledger are kept.
func (s *Service) Disable(ctx context.Context, email string) error {
	snd, err := s.sender(ctx, email)
	if err != nil {
		return err
	}
	snd.WarmupEnabled = false
	snd.CurrentDailyLimit = Ceiling
	return s.senders.SaveWarmup(ctx, *snd)
}

func (s *Service) Status(ctx context.Context, email string) (Status, error) {
	snd, err := s.sender(ctx, email)
	if err != nil {
		return Status{}, err
	}
	sent, err := s.SendsToday(ctx, email)
	if err != nil {
		return Status{}, err
	}
	limit := DailyLimit(*snd)
	st := Status{
		SenderEmail:    email,
		WarmupEnabled:  snd.WarmupEnabled,
		DailyLimit:     limit,
		SendsToday:     sent,
		RemainingToday: max(0, limit-sent),
	}
	if !snd.WarmupEnabled {
		return st, nil
	}
	total := len(schedule(snd.RampSchedule))
	day := max(snd.WarmupDay, 1)
	st.WarmupDay = day
	st.TotalDays = total
	st.ProgressPercent = min(100, day*100/total)
	st.RampSchedule = snd.RampSchedule
	st.DaysUntilFull = max(0, total-day)
	st.StartedAt = snd.WarmupStartedAt
	st.LastCheck = snd.LastWarmupCheck
	return st, nil
}
