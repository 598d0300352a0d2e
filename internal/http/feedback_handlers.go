package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plan-it/planit/internal/adapters/crdb"
	"github.com/plan-it/planit/internal/domain"
)

func (h *Handlers) CreateEventQuery(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		EventID uuid.UUID `json:"eventId"`
		Email   string    `json:"email"`
		Query   string    `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.EventID == uuid.Nil || req.Email == "" || req.Query == "" {
		writeError(w, http.StatusBadRequest, "missing eventId, email or query")
		return
	}

	user, err := h.repo.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeDomainError(w, errors.Wrapf(err, "user %s", req.Email))
		return
	}
	event, err := h.repo.GetEvent(r.Context(), req.EventID)
	if err != nil {
		writeDomainError(w, errors.Wrapf(err, "event %s", req.EventID))
		return
	}

	query := domain.EventQuery{
		ID:          uuid.New(),
		EventID:     event.ID,
		OrganizerID: event.OrganizerID,
		UserID:      user.ExternalID,
		Email:       req.Email,
		Query:       req.Query,
		CreatedAt:   time.Now(),
	}
	if err := h.repo.InsertEventQuery(r.Context(), query); err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":      query.ID,
		"message": "Query submitted successfully",
	})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListEventQueries(w http.ResponseWriter, r *http.Request) {
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	queries, err := h.repo.ListEventQueries(r.Context(), eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(queries))
	for i, q := range queries {
		resp[i] = map[string]interface{}{
			"id":        q.ID,
			"userId":    q.UserID,
			"email":     q.Email,
			"query":     q.Query,
			"createdAt": q.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// OrganizerQueryCounts gives an organizer the per-event question backlog.
func (h *Handlers) OrganizerQueryCounts(w http.ResponseWriter, r *http.Request) {
	organizerID := chi.URLParam(r, "organizerId")

	counts, err := h.repo.CountQueriesByOrganizer(r.Context(), organizerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

func (h *Handlers) CreateReview(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		Name   string `json:"name"`
		Rating int    `json:"rating"`
		Review string `json:"review"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" || req.Review == "" {
		writeError(w, http.StatusBadRequest, "missing name, rating or review")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		writeError(w, http.StatusBadRequest, "rating must be between 1 and 5")
		return
	}

	review := domain.Review{
		ID:        uuid.New(),
		Name:      req.Name,
		Rating:    req.Rating,
		Review:    req.Review,
		CreatedAt: time.Now(),
	}
	if err := h.repo.InsertReview(r.Context(), review); err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        review.ID,
		"name":      review.Name,
		"rating":    review.Rating,
		"review":    review.Review,
		"createdAt": review.CreatedAt.Format(time.RFC3339),
	})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListRecentReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.repo.ListRecentReviews(r.Context(), 5)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(reviews))
	for i, rev := range reviews {
		resp[i] = map[string]interface{}{
			"id":        rev.ID,
			"name":      rev.Name,
			"rating":    rev.Rating,
			"review":    rev.Review,
			"createdAt": rev.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubscribeNewsletter stores the subscriber and queues the welcome mail through
// the outbox so the notifier sends it after commit.
func (h *Handlers) SubscribeNewsletter(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "missing email")
		return
	}

	payload, err := json.Marshal(map[string]string{"email": req.Email})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	err = h.repo.WithTx(r.Context(), func(tx pgx.Tx) error {
		if err := h.repo.SubscribeNewsletter(r.Context(), tx, req.Email, time.Now()); err != nil {
			return err
		}
		return h.repo.InsertOutbox(r.Context(), tx, crdb.OutboxRecord{
			ID:            uuid.New(),
			AggregateType: "newsletter",
			AggregateID:   uuid.New(),
			EventType:     "newsletter.subscribed",
			Payload:       payload,
			DedupeKey:     "newsletter:" + req.Email,
		})
	})
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			writeError(w, http.StatusBadRequest, "this email is already subscribed")
			return
		}
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Subscription successful. Check your email!",
	})
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) ListNewsletterSubscribers(w http.ResponseWriter, r *http.Request) {
	subscribers, err := h.repo.ListNewsletterSubscribers(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(subscribers))
	for i, s := range subscribers {
		resp[i] = map[string]interface{}{
			"email":        s.Email,
			"subscribedAt": s.SubscribedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
