// internal/controller/campaign_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/rocketman0418/campaign-engine/internal/errors"
	"github.com/rocketman0418/campaign-engine/internal/model"
	"github.com/rocketman0418/campaign-engine/internal/observability"
	"github.com/rocketman0418/campaign-engine/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
}

func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/campaigns", c.CreateCampaign)
	r.Get("/campaigns", c.ListCampaigns)
	r.Get("/campaigns/{id}", c.GetCampaignDetails)
	r.Get("/campaigns/{id}/recipient-count", c.RecipientCount)
	r.Post("/campaigns/{id}/preview", c.PersonalizedPreview)
	r.Post("/campaigns/{id}/send", c.StartSend)
	r.Post("/campaigns/{id}/resume", c.ResumeSend)
	r.Post("/campaigns/{id}/schedule", c.ScheduleCampaign)
	r.Post("/campaigns/{id}/recurring", c.ScheduleRecurring)
	r.Post("/campaigns/{id}/pause", c.PauseRecurring)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name        string           `json:"name"`
		Subject     string           `json:"subject"`
		Body        string           `json:"body"`
		Groups      []model.GroupTag `json:"groups"`
		ExplicitIDs []int            `json:"explicit_ids"`
		ScheduledAt *string          `json:"scheduled_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(body.Name, body.Subject, body.Body, body.Groups, body.ExplicitIDs, body.ScheduledAt)
	if err != nil {
		writeError(w, "create", err)
		return
	}
	writeJSON(w, "create", http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	status := r.URL.Query().Get("status")

	campaigns, pagination, err := c.CampaignService.ListCampaigns(page, pageSize, status)
	if err != nil {
		writeError(w, "list", err)
		return
	}
	writeJSON(w, "list", http.StatusOK, map[string]interface{}{
		"campaigns":  campaigns,
		"pagination": pagination,
	})
}

func (c *CampaignController) GetCampaignDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	details, err := c.CampaignService.GetCampaignDetailsWithStats(id)
	if err != nil {
		writeError(w, "details", err)
		return
	}
	writeJSON(w, "details", http.StatusOK, details)
}

func (c *CampaignController) RecipientCount(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	total, byGroup, err := c.CampaignService.RecipientCount(id)
	if err != nil {
		writeError(w, "recipient_count", err)
		return
	}
	writeJSON(w, "recipient_count", http.StatusOK, map[string]interface{}{
		"total":    total,
		"by_group": byGroup,
	})
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID       int     `json:"user_id"`
		OverrideBody *string `json:"override_body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(id, body.UserID, body.OverrideBody)
	if err != nil {
		writeError(w, "preview", err)
		return
	}
	writeJSON(w, "preview", http.StatusOK, map[string]string{"rendered": rendered})
}

func (c *CampaignController) StartSend(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	result, err := c.CampaignService.StartSend(r.Context(), id)
	if err != nil {
		writeError(w, "send", err)
		return
	}
	writeJSON(w, "send", http.StatusOK, result)
}

func (c *CampaignController) ResumeSend(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	result, err := c.CampaignService.ResumeSend(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrTransportUnavailable) {
			writeJSON(w, "resume", http.StatusServiceUnavailable, map[string]interface{}{
				"error":     "transport unavailable, resume later",
				"resumable": true,
			})
			return
		}
		writeError(w, "resume", err)
		return
	}
	writeJSON(w, "resume", http.StatusOK, result)
}

func (c *CampaignController) ScheduleCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		ScheduledFor string `json:"scheduled_for"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	at, err := time.Parse(time.RFC3339, body.ScheduledFor)
	if err != nil {
		http.Error(w, "scheduled_for must be RFC3339", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.ScheduleCampaign(id, at)
	if err != nil {
		writeError(w, "schedule", err)
		return
	}
	writeJSON(w, "schedule", http.StatusOK, campaign)
}

func (c *CampaignController) ScheduleRecurring(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var body struct {
		Frequency          model.Frequency `json:"frequency"`
		CustomIntervalDays int             `json:"custom_interval_days"`
		SendHour           int             `json:"send_hour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	campaign, err := c.CampaignService.ScheduleRecurring(id, body.Frequency, body.CustomIntervalDays, body.SendHour)
	if err != nil {
		writeError(w, "recurring", err)
		return
	}
	writeJSON(w, "recurring", http.StatusOK, campaign)
}

func (c *CampaignController) PauseRecurring(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	campaign, err := c.CampaignService.PauseRecurring(id)
	if err != nil {
		writeError(w, "pause", err)
		return
	}
	writeJSON(w, "pause", http.StatusOK, campaign)
}

func campaignID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, endpoint string, status int, payload interface{}) {
	observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError

	var notFound *appErrors.ErrCampaignNotFound
	var invalid *appErrors.ErrInvalidTransition
	var resolution *appErrors.ErrResolution
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		status = http.StatusConflict
	case errors.As(err, &resolution):
		status = http.StatusBadGateway
	}

	observability.APIRequests.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
	http.Error(w, err.Error(), status)
}
