package sequence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmehdipour/outreach-engine/internal/apperr"
	"github.com/jmehdipour/outreach-engine/internal/dispatcher"
	"github.com/jmehdipour/outreach-engine/internal/metrics"
	"github.com/jmehdipour/outreach-engine/internal/model"
	"github.com/jmehdipour/outreach-engine/internal/repository"
	"github.com/jmehdipour/outreach-engine/internal/util"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// PollResult counts what one poll cycle did.
type PollResult struct {
	Expired   int64
	Due       int
	Lost      int
	Sent      int
	Waited    int
	Skipped   int
	Throttled int
	Failed    int
	Completed int
	Errors    int
}

type outcomeKind int

const (
	outcomeSent outcomeKind = iota
	outcomeWaited
	outcomeSkipped
	outcomeThrottled
	outcomeFailed
)

func (k outcomeKind) String() string {
	switch k {
	case outcomeSent:
		return "sent"
	case outcomeWaited:
		return "waited"
	case outcomeSkipped:
		return "skipped"
	case outcomeThrottled:
		return "throttled"
	default:
		return "failed"
	}
}

type outcome struct {
	kind   outcomeKind
	reason string
}

func sent() outcome                   { return outcome{kind: outcomeSent} }
func waited() outcome                 { return outcome{kind: outcomeWaited} }
func skipped(reason string) outcome   { return outcome{kind: outcomeSkipped, reason: reason} }
func throttled(reason string) outcome { return outcome{kind: outcomeThrottled, reason: reason} }

func failed(format string, a ...any) outcome {
	return outcome{kind: outcomeFailed, reason: fmt.Sprintf(format, a...)}
}

// PollOnce runs one pass over due enrollments. Storage errors on one
// enrollment are logged and counted; the pass moves on.
func (s *Service) PollOnce(ctx context.Context) (PollResult, error) {
	timer := prometheus.NewTimer(metrics.PollDuration)
	defer timer.ObserveDuration()

	var res PollResult
	now := s.now().UTC()

	expired, err := s.outreach.ExpireClaims(ctx, now.Add(-s.cfg.ClaimTTL))
	if err != nil {
		return res, fmt.Errorf("expire claims: %w", err)
	}
	res.Expired = expired

	due, err := s.outreach.ListDue(ctx, now, s.cfg.PollBatch)
	if err != nil {
		return res, fmt.Errorf("list due enrollments: %w", err)
	}
	res.Due = len(due)

	for _, e := range due {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		s.handle(ctx, e, &res)
	}
	return res, nil
}

func (s *Service) handle(ctx context.Context, e model.Enrollment, res *PollResult) {
	log := s.log.With(zap.Int64("enrollment_id", e.ID), zap.String("person_key", e.PersonKey))

	token := s.newToken()
	won, err := s.outreach.Claim(ctx, e.ID, token, s.now().UTC())
	if err != nil {
		log.Error("claim enrollment", zap.Error(err))
		res.Errors++
		return
	}
	if !won {
		metrics.ClaimsLostTotal.Inc()
		res.Lost++
		return
	}

	steps, err := s.loadSteps(ctx, e.SequenceID)
	if err != nil {
		s.release(ctx, log, e, token, nil, e.Step, failed("load sequence: %v", err), res)
		return
	}
	if e.Step >= len(steps) {
		s.release(ctx, log, e, token, steps, e.Step, waited(), res)
		return
	}
	step := steps[e.Step]

	out := s.dispatch(ctx, e, step)
	metrics.DispatchTotal.WithLabelValues(step.Channel(), out.kind.String()).Inc()
	if out.kind == outcomeFailed {
		log.Warn("dispatch failed", zap.String("channel", step.Channel()), zap.String("reason", out.reason))
	}
	s.release(ctx, log, e, token, steps, e.Step, out, res)
}

// dispatch runs one step under the dispatch timeout. Collaborator errors are
// folded into the outcome.
func (s *Service) dispatch(ctx context.Context, e model.Enrollment, step model.Step) outcome {
	p, err := s.people.GetByKey(ctx, e.PersonKey)
	if err != nil {
		return failed("load person: %v", err)
	}
	if p == nil {
		return failed("person %s not found", e.PersonKey)
	}
	var c model.Company
	if p.CompanyKey != "" {
		stored, err := s.companies.GetByKey(ctx, p.CompanyKey)
		if err != nil {
			return failed("load company: %v", err)
		}
		if stored != nil {
			c = *stored
		}
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	var out outcome
	switch st := step.(type) {
	case model.EmailStep:
		out = s.sendEmail(dctx, e, st, *p, c)
	case model.CallStep:
		out = s.placeCall(dctx, e, st, *p, c)
	case model.NetworkConnectStep:
		out = s.networkTouch(dctx, *p, c, st.Message, true)
	case model.NetworkMessageStep:
		out = s.networkTouch(dctx, *p, c, st.Message, false)
	case model.WaitStep:
		out = waited()
	default:
		out = failed("unsupported step %T", step)
	}
	if out.kind == outcomeFailed && errors.Is(dctx.Err(), context.DeadlineExceeded) {
		out.reason = "timeout: " + out.reason
	}
	return out
}

func (s *Service) senderFor(e model.Enrollment) string {
	if e.SenderEmail != "" {
		return e.SenderEmail
	}
	return s.cfg.DefaultSender
}

func (s *Service) sendEmail(ctx context.Context, e model.Enrollment, st model.EmailStep, p model.Person, c model.Company) outcome {
	if p.Email == "" {
		return skipped("no_email")
	}
	from := s.senderFor(e)
	if from == "" {
		return failed("no sender configured")
	}
	snd, err := s.senders.Get(ctx, from)
	if err != nil {
		return failed("load sender: %v", err)
	}

	vars := templateVars(p, c, snd)
	subject, err := s.render.Render(st.Subject, vars)
	if err != nil {
		return failed("render subject: %v", err)
	}
	body, err := s.render.Render(st.Body, vars)
	if err != nil {
		return failed("render body: %v", err)
	}
	html := body
	if st.Template != "" {
		if html, err = s.render.Render(st.Template, vars); err != nil {
			return failed("render template: %v", err)
		}
	}
	msg := dispatcher.Email{
		From:    from,
		To:      p.Email,
		Subject: subject,
		HTML:    html,
		Text:    body,
		Tags: map[string]string{
			"campaign_id":   e.CampaignID,
			"enrollment_id": strconv.FormatInt(e.ID, 10),
		},
	}
	if snd != nil {
		msg.FromName = snd.FullName
	}

	err = s.warmup.Reserve(ctx, from, p.Email, func(ctx context.Context) error {
		return s.email.Send(ctx, msg)
	})
	var limited *apperr.RateLimitExceeded
	switch {
	case errors.As(err, &limited):
		return throttled(limited.Error())
	case err != nil:
		return failed("%v", err)
	}
	return sent()
}

func (s *Service) placeCall(ctx context.Context, e model.Enrollment, st model.CallStep, p model.Person, c model.Company) outcome {
	phone := util.NormalizePhone(p.Phone)
	if phone == "" {
		return skipped("no_phone")
	}
	script, err := s.render.Render(st.Script, templateVars(p, c, nil))
	if err != nil {
		return failed("render script: %v", err)
	}

	callID, err := s.voice.ScheduleCall(ctx, dispatcher.CallRequest{
		Phone:      phone,
		Script:     script,
		WebhookURL: s.cfg.VoiceWebhookURL,
		Metadata: map[string]string{
			"enrollment_id": strconv.FormatInt(e.ID, 10),
			"person_key":    e.PersonKey,
			"campaign_id":   e.CampaignID,
		},
	})
	if err != nil {
		return failed("%v", err)
	}

	// the provider accepted the call; its bookkeeping must not depend on
	// what is left of the dispatch deadline
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), callRecordTimeout)
	defer cancel()

	now := s.now().UTC()
	out := sent()
	err = s.recordCall(rctx, model.VoiceCall{
		CallID:       callID,
		EnrollmentID: e.ID,
		PersonKey:    e.PersonKey,
		CampaignID:   e.CampaignID,
		Phone:        phone,
		Status:       model.CallQueued,
		CreatedAt:    now,
	})
	if err != nil {
		s.log.Error("record voice call", zap.String("call_id", callID), zap.Error(err))
		out.reason = fmt.Sprintf("call %s not recorded: %v", callID, err)
	}
	if err := s.people.RecordCallAttempt(rctx, e.PersonKey, string(model.CallQueued), now); err != nil {
		s.log.Error("record call attempt", zap.String("person_key", e.PersonKey), zap.Error(err))
	}
	return out
}

var (
	callRecordAttempts = 3
	callRecordBackoff  = 200 * time.Millisecond
	callRecordTimeout  = 10 * time.Second
)

// recordCall inserts the call row with a short linear backoff between attempts.
func (s *Service) recordCall(ctx context.Context, c model.VoiceCall) error {
	var err error
	for attempt := 0; attempt < callRecordAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt) * callRecordBackoff):
			}
		}
		if err = s.calls.Insert(ctx, c); err == nil {
			return nil
		}
	}
	return err
}

// networkTouch advances whatever the automation reports; only a missing URL
// or the global cap stop it.
func (s *Service) networkTouch(ctx context.Context, p model.Person, c model.Company, message string, connect bool) outcome {
	if p.NetworkURL == "" {
		return skipped("no_network_url")
	}
	now := s.now().UTC()
	ok, err := s.networkCap.Take(ctx, NetworkScope, s.cfg.NetworkDailyCap, now)
	if err != nil {
		return throttled("network cap unavailable: " + err.Error())
	}
	if !ok {
		return throttled((&apperr.RateLimitExceeded{Scope: NetworkScope, Limit: s.cfg.NetworkDailyCap}).Error())
	}

	text, err := s.render.Render(message, templateVars(p, c, nil))
	if err != nil {
		return failed("render message: %v", err)
	}
	url := "https://" + p.NetworkURL
	var delivered bool
	if connect {
		delivered, err = s.network.Connect(ctx, url, text)
	} else {
		delivered, err = s.network.Message(ctx, url, text)
	}
	if err != nil || !delivered {
		s.log.Info("network touch not delivered",
			zap.String("person_key", p.Key), zap.Bool("connect", connect), zap.Error(err))
		if connect {
			s.recordNetwork(ctx, p.Key, "failed", now)
		}
		return skipped("network_not_delivered")
	}
	if connect {
		s.recordNetwork(ctx, p.Key, "requested", now)
	}
	return sent()
}

func (s *Service) recordNetwork(ctx context.Context, key, status string, at time.Time) {
	if err := s.people.RecordNetworkStatus(ctx, key, status, at); err != nil {
		s.log.Error("record network status", zap.String("person_key", key), zap.Error(err))
	}
}

// release writes the state after a dispatch. Sent and skipped steps advance;
// throttled ones stay on the same step; failures are terminal.
func (s *Service) release(ctx context.Context, log *zap.Logger, e model.Enrollment, token string, steps []model.Step, idx int, out outcome, res *PollResult) {
	now := s.now().UTC()
	channel := e.Channel
	if idx < len(steps) {
		channel = steps[idx].Channel()
	}

	tr := repository.Transition{
		Step:     idx,
		Channel:  channel,
		Metadata: e.ActionMetadata,
	}
	var ev model.Envelope

	switch out.kind {
	case outcomeThrottled:
		tr.Status = model.EnrollmentThrottled
		tr.NextActionAt = now.Add(s.cfg.ThrottleDelay)
		ev = s.event(model.EventThrottled, e, idx, channel, out.reason)
		res.Throttled++
	case outcomeFailed:
		tr.Status = model.EnrollmentFailed
		tr.NextActionAt = now
		tr.LastError = out.reason
		ev = s.event(model.EventFailed, e, idx, channel, out.reason)
		res.Failed++
	default:
		kind := model.EventDispatched
		switch out.kind {
		case outcomeSent:
			tr.SentAt = &now
			tr.LastError = out.reason
			res.Sent++
		case outcomeWaited:
			res.Waited++
		case outcomeSkipped:
			kind = model.EventSkipped
			res.Skipped++
		}
		if next := idx + 1; next < len(steps) {
			tr.Status = model.EnrollmentPending
			tr.Step = next
			tr.Channel = steps[next].Channel()
			tr.NextActionAt = now.Add(time.Duration(steps[next].Delay()) * day)
			tr.Metadata = stepMetadata(steps[next])
		} else {
			tr.Status = model.EnrollmentCompleted
			tr.NextActionAt = now
			kind = model.EventCompleted
			res.Completed++
		}
		ev = s.event(kind, e, idx, channel, out.reason)
	}

	if err := s.outreach.Release(ctx, e.ID, token, tr, ev); err != nil {
		if errors.Is(err, repository.ErrClaimLost) {
			log.Warn("claim lost before release")
			metrics.ClaimsLostTotal.Inc()
			res.Lost++
			return
		}
		log.Error("release enrollment", zap.Error(err))
		res.Errors++
	}
}
