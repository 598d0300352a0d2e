package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	stripe "github.com/stripe/stripe-go/v82"

	"github.com/plan-it/planit/internal/domain"
)

type cartLineRequest struct {
	EventInstanceID uuid.UUID `json:"eventInstanceId"`
	EventID         uuid.UUID `json:"eventId"`
	Name            string    `json:"name"`
	Quantity        int       `json:"quantity"`
	Price           float64   `json:"price"`
}

type checkoutRequest struct {
	UserID      string            `json:"userId"`
	Tickets     []cartLineRequest `json:"tickets"`
	TotalAmount float64           `json:"totalAmount"`
	SessionID   string            `json:"sessionId"`
}

func (req checkoutRequest) cart() domain.Cart {
	lines := make([]domain.CartLine, len(req.Tickets))
	for i, t := range req.Tickets {
		lines[i] = domain.CartLine{
			InstanceID: t.EventInstanceID,
			EventID:    t.EventID,
			Name:       t.Name,
			Quantity:   t.Quantity,
			Price:      t.Price,
		}
	}
	return domain.Cart{UserID: req.UserID, Lines: lines, TotalAmount: req.TotalAmount}
}

type orderLineResponse struct {
	EventInstanceID uuid.UUID `json:"eventInstanceId"`
	EventID         uuid.UUID `json:"eventId"`
	Quantity        int       `json:"quantity"`
	Price           float64   `json:"price"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	UserID        string              `json:"userId"`
	Tickets       []orderLineResponse `json:"tickets"`
	TotalAmount   float64             `json:"totalAmount"`
	PaymentStatus string              `json:"paymentStatus"`
	OrderStatus   string              `json:"orderStatus"`
	CreatedAt     string              `json:"createdAt"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	lines := make([]orderLineResponse, len(o.Lines))
	for i, l := range o.Lines {
		lines[i] = orderLineResponse{
			EventInstanceID: l.InstanceID,
			EventID:         l.EventID,
			Quantity:        l.Quantity,
			Price:           l.Price,
		}
	}
	return orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Tickets:       lines,
		TotalAmount:   o.TotalAmount,
		PaymentStatus: string(o.PaymentStatus),
		OrderStatus:   string(o.OrderStatus),
		CreatedAt:     o.CreatedAt.Format(time.RFC3339),
	}
}

// CreateOrder serves both checkout flows. Without a sessionId the order is
// settled synchronously with payment collected on delivery. With a sessionId
// it finalizes a paid hosted session, which is idempotent: replays return
// the order created by the first call.
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var order *domain.Order
	var err error
	if req.SessionID != "" {
		order, err = h.orchestrator.Finalize(r.Context(), req.SessionID)
	} else {
		order, err = h.orchestrator.PlaceOrder(r.Context(), req.cart())
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if err := h.audit.LogOrder(r.Context(), *order); err != nil {
		h.logger.WithField("order_id", order.ID).Warn("audit log failed", err)
	}

	data := writeJSON(w, http.StatusCreated, toOrderResponse(order))
	h.record(r, http.StatusCreated, data)
}

func (h *Handlers) CreateStripeSession(w http.ResponseWriter, r *http.Request) {
	if h.replay(w, r) {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID, url, err := h.orchestrator.CreateSession(r.Context(), req.cart())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, map[string]interface{}{
		"sessionId": sessionID,
		"url":       url,
	})
	h.record(r, http.StatusCreated, data)
}

// StripeWebhook is the authoritative finalizer for hosted sessions. Payment
// states that cannot be acted on are acknowledged with 200 so the provider
// stops redelivering; only infrastructure failures return 5xx.
func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	event, err := h.payments.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		writeError(w, http.StatusBadRequest, "invalid event data")
		return
	}

	log := h.logger.WithField("session_id", sess.ID)
	switch event.Type {
	case "checkout.session.completed":
		if sess.Metadata["sponsorshipId"] != "" {
			if err := h.repo.CompleteSponsorshipBySession(r.Context(), sess.ID); err != nil {
				log.Error("sponsorship completion failed", err)
				writeError(w, http.StatusInternalServerError, "sponsorship completion failed")
				return
			}
			break
		}
		if _, err := h.orchestrator.Finalize(r.Context(), sess.ID); err != nil {
			var capacityErr *domain.CapacityError
			var capErr *domain.CapError
			if errors.Is(err, domain.ErrNotFound) || errors.As(err, &capacityErr) || errors.As(err, &capErr) {
				// Redelivery will not change the outcome; acknowledge and
				// leave reconciliation to support tooling.
				log.Warn("finalize rejected", err)
				break
			}
			log.Error("finalize failed", err)
			writeError(w, http.StatusInternalServerError, "finalize failed")
			return
		}
	case "checkout.session.expired":
		if sess.Metadata["sponsorshipId"] == "" {
			if err := h.orchestrator.Abandon(r.Context(), sess.ID); err != nil {
				log.Warn("abandon failed", err)
			}
		}
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handlers) UserTicketCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	eventID, err := uuid.Parse(chi.URLParam(r, "eventId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	booked, err := h.guard.TicketsAlreadyBooked(r.Context(), userID, eventID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalTicketsBooked": booked,
		"cap":                h.guard.Cap(),
	})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (h *Handlers) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	list, err := h.orders.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListOrganizerOrders(w http.ResponseWriter, r *http.Request) {
	organizerID := r.URL.Query().Get("organizerId")
	if organizerID == "" {
		writeError(w, http.StatusBadRequest, "missing organizerId")
		return
	}

	list, err := h.orders.ListForOrganizer(r.Context(), organizerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]orderResponse, len(list))
	for i := range list {
		resp[i] = toOrderResponse(&list[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) SalesSummary(w http.ResponseWriter, r *http.Request) {
	organizerID := r.URL.Query().Get("organizerId")
	if organizerID == "" {
		writeError(w, http.StatusBadRequest, "missing organizerId")
		return
	}

	summary, err := h.repo.OrganizerSalesSummary(r.Context(), organizerID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
