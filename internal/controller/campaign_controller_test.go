package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rocketman0418/campaign-engine/internal/controller"
	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/resolver"
	"github.com/rocketman0418/campaign-engine/internal/service"
)

// --- Mock Repositories ---

type stubCampaignRepo struct {
	campaign *model.Campaign
}

func (m *stubCampaignRepo) Create(c *model.Campaign) error {
	c.ID = 1
	m.campaign = c
	return nil
}

func (m *stubCampaignRepo) GetByID(id int) (*model.Campaign, error) {
	if m.campaign == nil || m.campaign.ID != id {
		return nil, appErrors.NewCampaignNotFound(id)
	}
	cp := *m.campaign
	return &cp, nil
}

func (m *stubCampaignRepo) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	if m.campaign == nil {
		return []*model.Campaign{}, 0, nil
	}
	return []*model.Campaign{m.campaign}, 1, nil
}

func (m *stubCampaignRepo) UpdateStatus(id int, status model.Status) error {
	m.campaign.Status = status
	return nil
}

func (m *stubCampaignRepo) UpdateCounters(id, total, successful, failed int) error {
	m.campaign.TotalRecipients = total
	m.campaign.SuccessfulSends = successful
	m.campaign.FailedSends = failed
	return nil
}

func (m *stubCampaignRepo) SetSchedule(id int, at time.Time) error {
	m.campaign.Status = model.StatusScheduled
	m.campaign.ScheduledAt = &at
	return nil
}

func (m *stubCampaignRepo) SetRecurrence(id int, freq model.Frequency, customDays, sendHour int, nextRunAt time.Time) error {
	m.campaign.Status = model.StatusRecurring
	m.campaign.IsRecurring = true
	m.campaign.Frequency = freq
	m.campaign.CustomIntervalDays = customDays
	m.campaign.SendHour = sendHour
	m.campaign.NextRunAt = &nextRunAt
	return nil
}

func (m *stubCampaignRepo) CompleteRun(id int, firedAt, nextRunAt time.Time) error { return nil }

func (m *stubCampaignRepo) ListDueRecurring(now time.Time) ([]*model.Campaign, error) {
	return nil, nil
}

func (m *stubCampaignRepo) ListDueScheduled(now time.Time) ([]*model.Campaign, error) {
	return nil, nil
}

type stubAttemptRepo struct {
	attempts []*model.RecipientAttempt
}

func (m *stubAttemptRepo) Seed(campaignID int, attempts []model.RecipientAttempt) error {
	for _, a := range attempts {
		cp := a
		cp.ID = len(m.attempts) + 1
		cp.CampaignID = campaignID
		cp.Status = model.AttemptPending
		m.attempts = append(m.attempts, &cp)
	}
	return nil
}

func (m *stubAttemptRepo) ListPending(campaignID, limit int) ([]*model.RecipientAttempt, error) {
	out := []*model.RecipientAttempt{}
	for _, a := range m.attempts {
		if a.Status == model.AttemptPending && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *stubAttemptRepo) MarkResult(attemptID int, status model.AttemptStatus, lastError string) (bool, error) {
	for _, a := range m.attempts {
		if a.ID == attemptID && a.Status == model.AttemptPending {
			a.Status = status
			a.LastError = lastError
			return true, nil
		}
	}
	return false, nil
}

func (m *stubAttemptRepo) CountByStatus(campaignID int) (map[model.AttemptStatus]int, error) {
	counts := map[model.AttemptStatus]int{}
	for _, a := range m.attempts {
		counts[a.Status]++
	}
	return counts, nil
}

func (m *stubAttemptRepo) DeleteForCampaign(campaignID int) error {
	m.attempts = nil
	return nil
}

type stubAudience struct{}

func (stubAudience) RegisteredUsers() ([]model.Recipient, error) {
	return []model.Recipient{
		{ID: 1, Email: "alice@example.com", FirstName: "Alice"},
		{ID: 2, Email: "bob@example.com", FirstName: "Bob"},
	}, nil
}

func (stubAudience) UnconvertedLeads() ([]model.Recipient, error)  { return nil, nil }
func (stubAudience) MarketingContacts() ([]model.Recipient, error) { return nil, nil }
func (stubAudience) UsersByIDs(ids []int) ([]model.Recipient, error) {
	return []model.Recipient{{ID: 1, Email: "alice@example.com", FirstName: "Alice"}}, nil
}

type senderFunc func(to, subject, body string) error

func (f senderFunc) Send(_ context.Context, to, subject, body string) error {
	return f(to, subject, body)
}

// --- Test Functions ---

func newRouter(campaignRepo *stubCampaignRepo, attemptRepo *stubAttemptRepo) *chi.Mux {
	audience := stubAudience{}
	svc := &service.CampaignService{
		CampaignRepo:       campaignRepo,
		AttemptRepo:        attemptRepo,
		Audience:           audience,
		Resolver:           resolver.New(audience),
		Mailer:             senderFunc(func(to, subject, body string) error { return nil }),
		Zone:               time.UTC,
		BatchSize:          50,
		UnsubscribeBaseURL: "https://example.com/unsubscribe",
	}

	ctrl := &controller.CampaignController{CampaignService: svc}
	r := chi.NewRouter()
	ctrl.Routes(r)
	return r
}

func TestCreateCampaignEndpoint(t *testing.T) {
	r := newRouter(&stubCampaignRepo{}, &stubAttemptRepo{})

	body, _ := json.Marshal(map[string]interface{}{
		"name":    "Launch",
		"subject": "Hello {first_name}",
		"body":    "Welcome!",
		"groups":  []string{"all_registered_users"},
	})
	req := httptest.NewRequest("POST", "/campaigns", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created model.Campaign
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	if created.Status != model.StatusDraft {
		t.Fatalf("expected draft, got %s", created.Status)
	}
}

func TestPersonalizedPreviewEndpoint(t *testing.T) {
	campaignRepo := &stubCampaignRepo{campaign: &model.Campaign{
		ID:      1,
		Subject: "Hello {first_name}",
		Body:    "Hi {first_name}!",
		Status:  model.StatusDraft,
	}}
	r := newRouter(campaignRepo, &stubAttemptRepo{})

	body, _ := json.Marshal(map[string]interface{}{"user_id": 1})
	req := httptest.NewRequest("POST", "/campaigns/1/preview", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res map[string]string
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res["rendered"], "Alice") {
		t.Errorf("expected 'Alice' in rendered preview, got %q", res["rendered"])
	}
}

func TestStartSendEndpoint(t *testing.T) {
	campaignRepo := &stubCampaignRepo{campaign: &model.Campaign{
		ID:      1,
		Subject: "Hello {first_name}",
		Body:    "Hi {first_name}!",
		Status:  model.StatusDraft,
		Groups:  []model.GroupTag{model.GroupAllRegisteredUsers},
	}}
	r := newRouter(campaignRepo, &stubAttemptRepo{})

	req := httptest.NewRequest("POST", "/campaigns/1/send", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var res service.DeliverResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.TotalSent != 2 || res.Remaining != 0 || res.RequiresResume {
		t.Fatalf("unexpected deliver result: %+v", res)
	}
}

func TestSendOnMissingCampaignReturns404(t *testing.T) {
	r := newRouter(&stubCampaignRepo{}, &stubAttemptRepo{})

	req := httptest.NewRequest("POST", "/campaigns/99/send", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPauseOnDraftReturnsConflict(t *testing.T) {
	campaignRepo := &stubCampaignRepo{campaign: &model.Campaign{ID: 1, Status: model.StatusDraft}}
	r := newRouter(campaignRepo, &stubAttemptRepo{})

	req := httptest.NewRequest("POST", "/campaigns/1/pause", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}
