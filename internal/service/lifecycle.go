package service

import (
	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
)

// validTransitions is the authoritative lifecycle. A paused recurring
// campaign is represented as draft with recurrence fields retained, so
// "pause" is recurring -> draft and "resume" is the normal draft ->
// recurring path with a freshly computed next run.
var validTransitions = map[model.Status][]model.Status{
	model.StatusDraft:     {model.StatusScheduled, model.StatusSending, model.StatusRecurring},
	model.StatusScheduled: {model.StatusSending},
	model.StatusSending:   {model.StatusSending, model.StatusSent},
	model.StatusRecurring: {model.StatusRecurring, model.StatusDraft},
	model.StatusSent:      {},
}

func canTransition(from, to model.Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(c *model.Campaign, to model.Status) error {
	if !canTransition(c.Status, to) {
		return appErrors.NewInvalidTransition(c.ID, c.Status, to)
	}
	return nil
}

// transition validates and persists a status change. A campaign is never
// marked sent while any recipient attempt remains pending.
func (s *CampaignService) transition(c *model.Campaign, to model.Status) error {
	if err := checkTransition(c, to); err != nil {
		return err
	}
	if to == model.StatusSent && c.Remaining() != 0 {
		return appErrors.NewInvalidTransition(c.ID, c.Status, to)
	}
	if err := s.CampaignRepo.UpdateStatus(c.ID, to); err != nil {
		return err
	}
	c.Status = to
	return nil
}
