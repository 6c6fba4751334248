// internal/service/delivery.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sony/gobreaker"

	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/observability"
)

// ErrTransportUnavailable marks an invocation-level transport failure:
// the whole pass should stop and the campaign stays resumable. It is
// distinct from a per-recipient send failure, which is recorded on the
// attempt and never aborts the batch.
var ErrTransportUnavailable = errors.New("mail transport unavailable")

// DeliverResult reports one bounded send pass. TotalSent/TotalFailed are
// cumulative across all passes of the current send, not per-pass.
type DeliverResult struct {
	CampaignID     int  `json:"campaign_id"`
	SentThisPass   int  `json:"sent_this_pass"`
	FailedThisPass int  `json:"failed_this_pass"`
	TotalSent      int  `json:"total_sent"`
	TotalFailed    int  `json:"total_failed"`
	Remaining      int  `json:"remaining"`
	RequiresResume bool `json:"requires_resume"`
}

// StartSend freezes the recipient filter, resolves the audience, moves the
// campaign draft -> sending and runs the first deliver pass. Resolution
// failure aborts before any attempt row exists, leaving the campaign in
// draft.
func (s *CampaignService) StartSend(ctx context.Context, campaignID int) (*DeliverResult, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(c, model.StatusSending); err != nil {
		return nil, err
	}

	snap, err := s.Resolver.Resolve(filterOf(c))
	if err != nil {
		return nil, err
	}

	if err := s.transition(c, model.StatusSending); err != nil {
		return nil, err
	}
	if err := s.CampaignRepo.UpdateCounters(c.ID, snap.Total(), 0, 0); err != nil {
		return nil, err
	}
	if err := s.seedAttempts(c.ID, snap.Recipients); err != nil {
		return nil, err
	}

	return s.Deliver(ctx, campaignID)
}

// ResumeSend performs one more deliver pass.
func (s *CampaignService) ResumeSend(ctx context.Context, campaignID int) (*DeliverResult, error) {
	return s.Deliver(ctx, campaignID)
}

// Deliver runs one bounded batch: select pending attempts in insertion
// order, dispatch each with per-recipient variables substituted, record
// outcomes, then recompute the cumulative counters from the attempt table
// (the single source of truth for progress). Re-invoking on a fully sent
// campaign is a safe no-op.
func (s *CampaignService) Deliver(ctx context.Context, campaignID int) (*DeliverResult, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	if c.Status == model.StatusSent {
		return &DeliverResult{
			CampaignID:  c.ID,
			TotalSent:   c.SuccessfulSends,
			TotalFailed: c.FailedSends,
		}, nil
	}
	if c.Status != model.StatusSending && c.Status != model.StatusRecurring {
		return nil, fmt.Errorf("campaign %d is not deliverable in status %s", c.ID, c.Status)
	}

	if c.Status == model.StatusRecurring {
		// Cycles are opened by FireDue; between cycles a deliver call is
		// a no-op rather than an excuse to reseed and send.
		counts, err := s.AttemptRepo.CountByStatus(c.ID)
		if err != nil {
			return nil, err
		}
		if counts[model.AttemptPending]+counts[model.AttemptSent]+counts[model.AttemptFailed] == 0 {
			return &DeliverResult{
				CampaignID:  c.ID,
				TotalSent:   c.SuccessfulSends,
				TotalFailed: c.FailedSends,
			}, nil
		}
	}

	if err := s.ensureSeeded(c); err != nil {
		return nil, err
	}

	batch, err := s.AttemptRepo.ListPending(c.ID, s.batchSize())
	if err != nil {
		return nil, err
	}

	sentThisPass, failedThisPass := 0, 0
	var invocationErr error

	for _, attempt := range batch {
		vars := s.templateVars(attempt.FirstName, attempt.UnsubscribeToken)
		subject := RenderTemplate(c.Subject, vars)
		body := RenderTemplate(c.Body, vars)

		sendErr := s.dispatch(ctx, attempt.Email, subject, body)
		if errors.Is(sendErr, ErrTransportUnavailable) {
			// Whole-batch transport outage: unprocessed attempts stay
			// pending and are retried on the next pass.
			invocationErr = sendErr
			break
		}

		if sendErr != nil {
			claimed, err := s.AttemptRepo.MarkResult(attempt.ID, model.AttemptFailed, sendErr.Error())
			if err != nil {
				return nil, err
			}
			if claimed {
				failedThisPass++
				observability.MailSend.WithLabelValues("failed").Inc()
			}
			continue
		}

		claimed, err := s.AttemptRepo.MarkResult(attempt.ID, model.AttemptSent, "")
		if err != nil {
			return nil, err
		}
		if claimed {
			sentThisPass++
			observability.MailSend.WithLabelValues("sent").Inc()
		}
	}

	counts, err := s.AttemptRepo.CountByStatus(c.ID)
	if err != nil {
		return nil, err
	}
	totalSent := counts[model.AttemptSent]
	totalFailed := counts[model.AttemptFailed]
	if err := s.CampaignRepo.UpdateCounters(c.ID, c.TotalRecipients, totalSent, totalFailed); err != nil {
		return nil, err
	}
	c.SuccessfulSends = totalSent
	c.FailedSends = totalFailed

	if invocationErr != nil {
		observability.DeliverPasses.WithLabelValues("interrupted").Inc()
		return nil, fmt.Errorf("deliver pass for campaign %d interrupted: %w", c.ID, invocationErr)
	}

	remaining := c.Remaining()
	requiresResume := remaining > 0

	if !requiresResume && c.Status == model.StatusSending {
		if err := s.transition(c, model.StatusSent); err != nil {
			return nil, err
		}
	}

	observability.DeliverPasses.WithLabelValues("ok").Inc()
	return &DeliverResult{
		CampaignID:     c.ID,
		SentThisPass:   sentThisPass,
		FailedThisPass: failedThisPass,
		TotalSent:      totalSent,
		TotalFailed:    totalFailed,
		Remaining:      remaining,
		RequiresResume: requiresResume,
	}, nil
}

// ensureSeeded makes the first pass self-sufficient: when the attempt set
// does not yet cover the resolved audience, resolve and seed it. Seeding
// is idempotent, so redundant calls cannot duplicate rows.
func (s *CampaignService) ensureSeeded(c *model.Campaign) error {
	counts, err := s.AttemptRepo.CountByStatus(c.ID)
	if err != nil {
		return err
	}
	existing := counts[model.AttemptPending] + counts[model.AttemptSent] + counts[model.AttemptFailed]
	if c.TotalRecipients > 0 && existing >= c.TotalRecipients {
		return nil
	}

	snap, err := s.Resolver.Resolve(filterOf(c))
	if err != nil {
		return err
	}
	if err := s.seedAttempts(c.ID, snap.Recipients); err != nil {
		return err
	}
	if c.TotalRecipients != snap.Total() {
		if err := s.CampaignRepo.UpdateCounters(c.ID, snap.Total(), counts[model.AttemptSent], counts[model.AttemptFailed]); err != nil {
			return err
		}
		c.TotalRecipients = snap.Total()
	}
	return nil
}

func (s *CampaignService) seedAttempts(campaignID int, recipients []model.Recipient) error {
	attempts := make([]model.RecipientAttempt, len(recipients))
	for i, rec := range recipients {
		attempts[i] = model.RecipientAttempt{
			CampaignID:       campaignID,
			Email:            rec.Email,
			FirstName:        rec.FirstName,
			UnsubscribeToken: ulid.Make().String(),
		}
	}
	return s.AttemptRepo.Seed(campaignID, attempts)
}

// dispatch sends one email through the rate limiter and circuit breaker.
// A breaker that is open (or a limiter that cannot grant a token) means
// the transport as a whole is unavailable, not that this recipient failed.
func (s *CampaignService) dispatch(ctx context.Context, to, subject, body string) error {
	if s.Limiter != nil {
		if err := s.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
		}
	}

	call := func() (interface{}, error) {
		start := time.Now()
		err := s.Mailer.Send(ctx, to, subject, body)
		observability.MailLatency.Observe(time.Since(start).Seconds())
		return nil, err
	}

	if s.Breaker == nil {
		_, err := call()
		return err
	}

	_, err := s.Breaker.Execute(call)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrTransportUnavailable, err)
	}
	return err
}
