// internal/service/campaign_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/repository"
	"github.com/rocketman0418/campaign-engine/internal/resolver"
)

// Sender dispatches one rendered email to the external mail transport.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type CampaignService struct {
	CampaignRepo repository.CampaignRepositoryInterface
	AttemptRepo  repository.AttemptRepositoryInterface
	Audience     repository.AudienceRepositoryInterface
	Resolver     *resolver.Resolver
	Mailer       Sender

	Limiter *rate.Limiter
	Breaker *gobreaker.CircuitBreaker

	Zone               *time.Location
	BatchSize          int
	UnsubscribeBaseURL string

	// Now is the clock; tests override it. Nil means time.Now.
	Now func() time.Time
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *CampaignService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return 50
}

func (s *CampaignService) CreateCampaign(name, subject, body string, groups []model.GroupTag, explicitIDs []int, scheduledAt *string) (*model.Campaign, error) {
	c := &model.Campaign{
		Name:        name,
		Subject:     subject,
		Body:        body,
		Status:      model.StatusDraft,
		Groups:      groups,
		ExplicitIDs: explicitIDs,
	}

	if scheduledAt != nil {
		t, err := time.Parse(time.RFC3339, *scheduledAt)
		if err != nil {
			return nil, err
		}
		c.ScheduledAt = &t
	}

	if err := s.CampaignRepo.Create(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ScheduleCampaign moves a draft to scheduled for a one-shot future send.
// The recipient filter is frozen from this point.
func (s *CampaignService) ScheduleCampaign(campaignID int, at time.Time) (*model.Campaign, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(c, model.StatusScheduled); err != nil {
		return nil, err
	}
	if !at.After(s.now()) {
		return nil, fmt.Errorf("scheduled_for must be in the future")
	}
	if err := s.CampaignRepo.SetSchedule(c.ID, at); err != nil {
		return nil, err
	}
	c.Status = model.StatusScheduled
	c.ScheduledAt = &at
	return c, nil
}

// ListCampaigns fetches campaigns with pagination
func (s *CampaignService) ListCampaigns(page, pageSize int, status string) ([]model.Campaign, map[string]int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	offset := (page - 1) * pageSize

	ptrs, total, err := s.CampaignRepo.ListCampaigns(offset, pageSize, status)
	if err != nil {
		return nil, nil, err
	}

	campaigns := make([]model.Campaign, len(ptrs))
	for i, c := range ptrs {
		campaigns[i] = *c
	}

	totalPages := (total + pageSize - 1) / pageSize
	pagination := map[string]int{
		"page":        page,
		"page_size":   pageSize,
		"total_count": total,
		"total_pages": totalPages,
	}

	return campaigns, pagination, nil
}

type CampaignDetails struct {
	Campaign  model.Campaign `json:"campaign"`
	Stats     map[string]int `json:"stats"`
	Remaining int            `json:"remaining"`
}

func (s *CampaignService) GetCampaignDetailsWithStats(campaignID int) (*CampaignDetails, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return nil, err
	}

	counts, err := s.AttemptRepo.CountByStatus(campaignID)
	if err != nil {
		return nil, err
	}

	stats := map[string]int{
		"total":   c.TotalRecipients,
		"pending": counts[model.AttemptPending],
		"sent":    counts[model.AttemptSent],
		"failed":  counts[model.AttemptFailed],
	}

	return &CampaignDetails{
		Campaign:  *c,
		Stats:     stats,
		Remaining: c.Remaining(),
	}, nil
}

// RecipientCount resolves the campaign's filter without sending, so the UI
// can show "N recipients selected". Resolution is read-only and stable for
// an unchanged audience.
func (s *CampaignService) RecipientCount(campaignID int) (int, map[model.GroupTag]int, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return 0, nil, err
	}
	snap, err := s.Resolver.Resolve(filterOf(c))
	if err != nil {
		return 0, nil, err
	}
	return snap.Total(), snap.CountByGroup, nil
}

// RenderPreview renders the campaign content for one concrete user without
// dispatching anything.
func (s *CampaignService) RenderPreview(campaignID, userID int, overrideBody *string) (string, error) {
	c, err := s.CampaignRepo.GetByID(campaignID)
	if err != nil {
		return "", err
	}

	users, err := s.Audience.UsersByIDs([]int{userID})
	if err != nil {
		return "", err
	}
	if len(users) == 0 {
		return "", fmt.Errorf("user %d not found", userID)
	}

	body := c.Body
	if overrideBody != nil && *overrideBody != "" {
		body = *overrideBody
	}
	if body == "" {
		return "", fmt.Errorf("template cannot be empty")
	}

	return RenderTemplate(body, s.templateVars(users[0].FirstName, "preview")), nil
}

func filterOf(c *model.Campaign) resolver.Filter {
	return resolver.Filter{Groups: c.Groups, ExplicitIDs: c.ExplicitIDs}
}
