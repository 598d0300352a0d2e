package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plan-it/planit/internal/domain"
)

type eventRequest struct {
	OrganizerID       string    `json:"organizerId"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StartsAt          time.Time `json:"startsAt"`
	Location          string    `json:"location"`
	MaxAttendees      int       `json:"maxAttendees"`
	TicketPrice       float64   `json:"ticketPrice"`
	Recurrence        string    `json:"recurrence"`
	RecurrenceEnd     time.Time `json:"recurrenceEnd"`
	NeedVolunteers    bool      `json:"needVolunteers"`
	NeedSponsorship   bool      `json:"needSponsorship"`
	SponsorshipTarget float64   `json:"sponsorshipTarget"`
}

type eventResponse struct {
	ID                uuid.UUID `json:"id"`
	OrganizerID       string    `json:"organizerId"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	StartsAt          time.Time `json:"startsAt"`
	Location          string    `json:"location"`
	MaxAttendees      int       `json:"maxAttendees"`
	TicketPrice       float64   `json:"ticketPrice"`
	Recurrence        string    `json:"recurrence"`
	RecurrenceEnd     time.Time `json:"recurrenceEnd,omitempty"`
	NeedVolunteers    bool      `json:"needVolunteers"`
	NeedSponsorship   bool      `json:"needSponsorship"`
	SponsorshipTarget float64   `json:"sponsorshipTarget"`
}

func toEventResponse(e *domain.Event) eventResponse {
	return eventResponse{
		ID:                e.ID,
		OrganizerID:       e.OrganizerID,
		Title:             e.Title,
		Description:       e.Description,
		StartsAt:          e.StartsAt,
		Location:          e.Location,
		MaxAttendees:      e.MaxAttendees,
		TicketPrice:       e.TicketPrice,
		Recurrence:        string(e.Recurrence),
		RecurrenceEnd:     e.RecurrenceEnd,
		NeedVolunteers:    e.NeedVolunteers,
		NeedSponsorship:   e.NeedSponsorship,
		SponsorshipTarget: e.SponsorshipTarget,
	}
}

// CreateEvent persists the event together with its full instance series.
// A recurring event is expanded up front, one instance per occurrence, in
// the same transaction.
func (h *Handlers) CreateEvent(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.OrganizerID == "" || req.Title == "" || req.MaxAttendees <= 0 || req.StartsAt.IsZero() {
		writeError(w, http.StatusBadRequest, "missing required event fields")
		return
	}

	recurrence, err := domain.ParseRecurrence(req.Recurrence)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurrence")
		return
	}

	now := time.Now()
	event := domain.Event{
		ID:                uuid.New(),
		OrganizerID:       req.OrganizerID,
		Title:             req.Title,
		Description:       req.Description,
		StartsAt:          req.StartsAt,
		Location:          req.Location,
		MaxAttendees:      req.MaxAttendees,
		TicketPrice:       req.TicketPrice,
		Recurrence:        recurrence,
		RecurrenceEnd:     req.RecurrenceEnd,
		NeedVolunteers:    req.NeedVolunteers,
		NeedSponsorship:   req.NeedSponsorship,
		SponsorshipTarget: req.SponsorshipTarget,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	instances := domain.ExpandInstances(event)

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		return h.repo.CreateEvent(r.Context(), tx, event, instances)
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.audit.LogEvent(r.Context(), "event.created", event.OrganizerID, map[string]interface{}{
		"event_id":  event.ID.String(),
		"title":     event.Title,
		"instances": len(instances),
	}); err != nil {
		h.logger.WithField("event_id", event.ID).Warn("audit log failed", err)
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Event created successfully",
		"event":   toEventResponse(&event),
	})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	event, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(event))
}

func (h *Handlers) ListOrganizerEvents(w http.ResponseWriter, r *http.Request) {
	organizerID := r.URL.Query().Get("organizerId")
	if organizerID == "" {
		writeError(w, http.StatusBadRequest, "missing organizerId")
		return
	}

	events, err := h.repo.ListEventsByOrganizer(r.Context(), organizerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]eventResponse, len(events))
	for i := range events {
		resp[i] = toEventResponse(&events[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	existing, err := h.repo.GetEvent(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Title != "" {
		existing.Title = req.Title
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Location != "" {
		existing.Location = req.Location
	}
	if req.MaxAttendees > 0 {
		existing.MaxAttendees = req.MaxAttendees
	}
	if req.TicketPrice > 0 {
		existing.TicketPrice = req.TicketPrice
	}
	existing.NeedVolunteers = req.NeedVolunteers
	existing.NeedSponsorship = req.NeedSponsorship
	if req.SponsorshipTarget > 0 {
		existing.SponsorshipTarget = req.SponsorshipTarget
	}
	existing.UpdatedAt = time.Now()

	updated, err := h.repo.UpdateEvent(r.Context(), *existing)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventResponse(updated))
}

func (h *Handlers) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	if err := h.repo.DeleteEvent(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"message": "Event deleted successfully"})
}

func (h *Handlers) ListEventInstances(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	instances, err := h.repo.ListInstances(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(instances))
	for i, inst := range instances {
		resp[i] = map[string]interface{}{
			"id":          inst.ID,
			"eventId":     inst.EventID,
			"startsAt":    inst.StartsAt,
			"location":    inst.Location,
			"ticketsSold": inst.TicketsSold,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListEventsNeedingVolunteers(w http.ResponseWriter, r *http.Request) {
	events, counts, err := h.repo.ListEventsNeedingVolunteers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(events))
	for i := range events {
		resp[i] = map[string]interface{}{
			"event":          toEventResponse(&events[i]),
			"volunteerCount": counts[i],
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
