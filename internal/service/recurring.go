// internal/service/recurring.go
package service

import (
	"context"
	"fmt"

	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/observability"
	"github.com/rocketman0418/campaign-engine/internal/schedule"
)

// ScheduleRecurring moves a draft to recurring and computes the first
// next_run_at from now. A paused campaign re-entering here gets a fresh
// schedule rather than a stale one.
func (s *CampaignService) ScheduleRecurring(campaignID int, freq model.Frequency, customIntervalDays, sendHour int) (*model.Campaign, error) {
	if sendHour < 0 || sendHour > 23 {
		return nil, fmt.Errorf("send_hour must be between 0 and 23")
	}
	switch freq {
	case model.FrequencyDaily, model.FrequencyWeekly, model.FrequencyBiweekly, model.FrequencyMonthly:
	case model.FrequencyCustom:
		if customIntervalDays < 1 {
			return nil, fmt.Errorf("custom_interval_days must be at least 1")
		}
	default:
		return nil, fmt.Errorf("unknown frequency %q", freq)
	}

	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(c, model.StatusRecurring); err != nil {
		return nil, err
	}

	next := schedule.NextRun(freq, customIntervalDays, sendHour, s.now(), s.Zone)
	if err := s.CampaignRepo.SetRecurrence(c.ID, freq, customIntervalDays, sendHour, next); err != nil {
		return nil, err
	}

	c.Status = model.StatusRecurring
	c.IsRecurring = true
	c.Frequency = freq
	c.CustomIntervalDays = customIntervalDays
	c.SendHour = sendHour
	c.NextRunAt = &next
	return c, nil
}

// PauseRecurring reverts a recurring campaign to draft. Recurrence fields
// are retained so the campaign can be resumed later with a recomputed
// next_run_at.
func (s *CampaignService) PauseRecurring(campaignID int) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusRecurring {
		return nil, appErrors.NewInvalidTransition(c.ID, c.Status, model.StatusDraft)
	}
	if err := s.transition(c, model.StatusDraft); err != nil {
		return nil, err
	}
	return c, nil
}

// FireDue runs one recurring cycle to completion, then records the run and
// recomputes next_run_at from the fire time.
//
// A cycle still holding pending attempts (a previous invocation stopped on
// a transport outage) is resumed, not reset; only a finished cycle's
// attempts are cleared before reseeding.
func (s *CampaignService) FireDue(ctx context.Context, campaignID int) (*RunResult, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusRecurring {
		return nil, fmt.Errorf("campaign %d is not recurring", campaignID)
	}
	firedAt := s.now()
	if c.NextRunAt == nil || firedAt.Before(*c.NextRunAt) {
		return nil, appErrors.ErrNotDue
	}

	counts, err := s.AttemptRepo.CountByStatus(c.ID)
	if err != nil {
		return nil, err
	}
	existing := counts[model.AttemptPending] + counts[model.AttemptSent] + counts[model.AttemptFailed]
	midCycle := existing > 0 && counts[model.AttemptPending] > 0

	if !midCycle {
		// Resolution failure aborts here, before the previous cycle's
		// rows are touched; the campaign stays recurring unchanged.
		snap, err := s.Resolver.Resolve(filterOf(c))
		if err != nil {
			observability.Fires.WithLabelValues("resolution_failed").Inc()
			return nil, err
		}
		if err := s.AttemptRepo.DeleteForCampaign(c.ID); err != nil {
			return nil, err
		}
		if err := s.CampaignRepo.UpdateCounters(c.ID, snap.Total(), 0, 0); err != nil {
			return nil, err
		}
		c.TotalRecipients = snap.Total()
		c.SuccessfulSends = 0
		c.FailedSends = 0
		if err := s.seedAttempts(c.ID, snap.Recipients); err != nil {
			return nil, err
		}
	}

	result, err := s.RunToCompletion(ctx, campaignID)
	if err != nil {
		observability.Fires.WithLabelValues("interrupted").Inc()
		return result, err
	}

	next := schedule.NextRun(c.Frequency, c.CustomIntervalDays, c.SendHour, firedAt, s.Zone)
	if err := s.CampaignRepo.CompleteRun(c.ID, firedAt, next); err != nil {
		return result, err
	}

	observability.Fires.WithLabelValues("ok").Inc()
	return result, nil
}

// FireScheduled runs a due one-shot campaign: scheduled -> sending, then
// the resume loop until completion.
func (s *CampaignService) FireScheduled(ctx context.Context, campaignID int) (*RunResult, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != model.StatusScheduled {
		return nil, fmt.Errorf("campaign %d is not scheduled", campaignID)
	}
	if c.ScheduledAt == nil || s.now().Before(*c.ScheduledAt) {
		return nil, appErrors.ErrNotDue
	}

	snap, err := s.Resolver.Resolve(filterOf(c))
	if err != nil {
		observability.Fires.WithLabelValues("resolution_failed").Inc()
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

	result, err := s.RunToCompletion(ctx, campaignID)
	if err != nil {
		observability.Fires.WithLabelValues("interrupted").Inc()
		return result, err
	}
	observability.Fires.WithLabelValues("ok").Inc()
	return result, nil
}
