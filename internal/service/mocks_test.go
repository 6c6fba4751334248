package service_test

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
)

// In-memory repositories standing in for Postgres.

type mockCampaignRepo struct {
	mu        sync.Mutex
	nextID    int
	campaigns map[int]*model.Campaign
}

func newMockCampaignRepo() *mockCampaignRepo {
	return &mockCampaignRepo{nextID: 1, campaigns: map[int]*model.Campaign{}}
}

func (m *mockCampaignRepo) Create(c *model.Campaign) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.nextID
	m.nextID++
	if c.Status == "" {
		c.Status = model.StatusDraft
	}
	cp := *c
	m.campaigns[c.ID] = &cp
	return nil
}

func (m *mockCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *c
	return &cp, nil
}

func (m *mockCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if status == "" || string(c.Status) == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *mockCampaignRepo) UpdateStatus(campaignID int, status model.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = status
	return nil
}

func (m *mockCampaignRepo) UpdateCounters(campaignID, total, successful, failed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.TotalRecipients = total
	c.SuccessfulSends = successful
	c.FailedSends = failed
	return nil
}

func (m *mockCampaignRepo) SetSchedule(campaignID int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = model.StatusScheduled
	c.ScheduledAt = &at
	return nil
}

func (m *mockCampaignRepo) SetRecurrence(campaignID int, freq model.Frequency, customDays, sendHour int, nextRunAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.Status = model.StatusRecurring
	c.IsRecurring = true
	c.Frequency = freq
	c.CustomIntervalDays = customDays
	c.SendHour = sendHour
	c.NextRunAt = &nextRunAt
	return nil
}

func (m *mockCampaignRepo) CompleteRun(campaignID int, firedAt, nextRunAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[campaignID]
	if !ok {
		return appErrors.NewCampaignNotFound(campaignID)
	}
	c.RunCount++
	c.LastRunAt = &firedAt
	c.NextRunAt = &nextRunAt
	return nil
}

func (m *mockCampaignRepo) ListDueRecurring(now time.Time) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == model.StatusRecurring && c.NextRunAt != nil && !c.NextRunAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockCampaignRepo) ListDueScheduled(now time.Time) ([]*model.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Campaign{}
	for _, c := range m.campaigns {
		if c.Status == model.StatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockAttemptRepo struct {
	mu       sync.Mutex
	nextID   int
	attempts []*model.RecipientAttempt
}

func newMockAttemptRepo() *mockAttemptRepo {
	return &mockAttemptRepo{nextID: 1}
}

func (m *mockAttemptRepo) Seed(campaignID int, attempts []model.RecipientAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range attempts {
		exists := false
		for _, have := range m.attempts {
			if have.CampaignID == campaignID && have.Email == a.Email {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		cp := a
		cp.ID = m.nextID
		m.nextID++
		cp.CampaignID = campaignID
		cp.Status = model.AttemptPending
		m.attempts = append(m.attempts, &cp)
	}
	return nil
}

func (m *mockAttemptRepo) ListPending(campaignID, limit int) ([]*model.RecipientAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.RecipientAttempt{}
	for _, a := range m.attempts {
		if a.CampaignID == campaignID && a.Status == model.AttemptPending {
			cp := *a
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *mockAttemptRepo) MarkResult(attemptID int, status model.AttemptStatus, lastError string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.attempts {
		if a.ID == attemptID {
			if a.Status != model.AttemptPending {
				return false, nil
			}
			a.Status = status
			a.LastError = lastError
			return true, nil
		}
	}
	return false, fmt.Errorf("attempt %d not found", attemptID)
}

func (m *mockAttemptRepo) CountByStatus(campaignID int) (map[model.AttemptStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[model.AttemptStatus]int{
		model.AttemptPending: 0,
		model.AttemptSent:    0,
		model.AttemptFailed:  0,
	}
	for _, a := range m.attempts {
		if a.CampaignID == campaignID {
			counts[a.Status]++
		}
	}
	return counts, nil
}

func (m *mockAttemptRepo) DeleteForCampaign(campaignID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.attempts[:0]
	for _, a := range m.attempts {
		if a.CampaignID != campaignID {
			kept = append(kept, a)
		}
	}
	m.attempts = kept
	return nil
}

func (m *mockAttemptRepo) count(campaignID int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.CampaignID == campaignID {
			n++
		}
	}
	return n
}

type mockAudience struct {
	users     []model.Recipient
	leads     []model.Recipient
	marketing []model.Recipient
	err       error
}

func (m *mockAudience) RegisteredUsers() ([]model.Recipient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users, nil
}

func (m *mockAudience) UnconvertedLeads() ([]model.Recipient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.leads, nil
}

func (m *mockAudience) MarketingContacts() ([]model.Recipient, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.marketing, nil
}

func (m *mockAudience) UsersByIDs(ids []int) ([]model.Recipient, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []model.Recipient{}
	for _, id := range ids {
		for _, u := range m.users {
			if u.ID == id {
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// fakeSender lets each test script transport outcomes per address.
type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	fail   map[string]error
	errAll error
}

func (f *fakeSender) Send(_ context.Context, to, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errAll != nil {
		return f.errAll
	}
	if err, ok := f.fail[to]; ok {
		return err
	}
	f.sent = append(f.sent, to)
	return nil
}

func (f *fakeSender) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}
