package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/plan-it/planit/internal/domain"
)

func (h *Handlers) RegisterVolunteer(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		EventID     uuid.UUID `json:"eventId"`
		UserID      string    `json:"userId"`
		AccessLevel string    `json:"accessLevel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EventID == uuid.Nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "missing eventId or userId")
		return
	}

	event, err := h.repo.GetEvent(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !event.NeedVolunteers {
		writeError(w, http.StatusBadRequest, "event is not looking for volunteers")
		return
	}

	accessLevel := req.AccessLevel
	if accessLevel == "" {
		accessLevel = "basic"
	}
	volunteer := domain.Volunteer{
		ID:          uuid.New(),
		EventID:     req.EventID,
		UserID:      req.UserID,
		AccessLevel: accessLevel,
		CreatedAt:   time.Now(),
	}
	if err := h.repo.RegisterVolunteer(r.Context(), volunteer); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, http.StatusConflict, "already volunteering for this event")
			return
		}
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{"id": volunteer.ID})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListUserVolunteering(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	volunteers, err := h.repo.ListVolunteersByUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(volunteers))
	for i, v := range volunteers {
		resp[i] = map[string]interface{}{
			"id":          v.ID,
			"eventId":     v.EventID,
			"accessLevel": v.AccessLevel,
			"createdAt":   v.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateSponsorshipSession opens a hosted payment session for a sponsorship
// pledge. The sponsorship row is stored Pending keyed by the session id and
// flips to Completed when the payment webhook arrives.
func (h *Handlers) CreateSponsorshipSession(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		EventID   uuid.UUID `json:"eventId"`
		SponsorID string    `json:"sponsorId"`
		Amount    float64   `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EventID == uuid.Nil || req.SponsorID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "missing eventId, sponsorId or amount")
		return
	}

	event, err := h.repo.GetEvent(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !event.NeedSponsorship {
		writeError(w, http.StatusBadRequest, "event is not looking for sponsors")
		return
	}

	sponsorship := domain.Sponsorship{
		ID:        uuid.New(),
		EventID:   req.EventID,
		SponsorID: req.SponsorID,
		Amount:    req.Amount,
		Status:    domain.SponsorshipPending,
		CreatedAt: time.Now(),
	}

	sessionID, url, err := h.payments.CreateSponsorshipSession(r.Context(), event.Title, sponsorship)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	sponsorship.SessionID = sessionID
	if err := h.repo.InsertSponsorship(r.Context(), sponsorship); err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": sessionID,
		"url":       url,
	})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListEventSponsorships(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	sponsorships, err := h.repo.ListSponsorshipsByEvent(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(sponsorships))
	for i, s := range sponsorships {
		resp[i] = map[string]interface{}{
			"id":        s.ID,
			"sponsorId": s.SponsorID,
			"amount":    s.Amount,
			"status":    s.Status,
			"createdAt": s.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("user-id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user-id header")
		return
	}

	docs, err := h.notifications.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(docs))
	for i, d := range docs {
		resp[i] = map[string]interface{}{
			"id":        d.ID,
			"message":   d.Message,
			"read":      d.Read,
			"createdAt": d.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("user-id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "missing user-id header")
		return
	}

	if err := h.notifications.MarkAllRead(r.Context(), userID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Notifications marked as read"})
}
