package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/plan-it/planit/internal/adapters/crdb"
	mongoadapter "github.com/plan-it/planit/internal/adapters/mongo"
	stripeadapter "github.com/plan-it/planit/internal/adapters/stripe"
	"github.com/plan-it/planit/internal/checkout"
	"github.com/plan-it/planit/internal/config"
	"github.com/plan-it/planit/internal/domain"
	"github.com/plan-it/planit/internal/idempotency"
	"github.com/plan-it/planit/internal/observability"
	"github.com/plan-it/planit/internal/orders"
	"github.com/plan-it/planit/internal/purchasecap"
)

type Handlers struct {
	cfg           *config.Config
	repo          *crdb.Repository
	orchestrator  *checkout.Orchestrator
	guard         *purchasecap.Guard
	orders        *orders.Ledger
	payments      *stripeadapter.Payments
	notifications *mongoadapter.NotificationStore
	audit         *mongoadapter.AuditLogger
	idemp         *idempotency.Idempotency
	logger        observability.Logger
}

func NewHandlers(
	cfg *config.Config,
	repo *crdb.Repository,
	orchestrator *checkout.Orchestrator,
	guard *purchasecap.Guard,
	orderLedger *orders.Ledger,
	payments *stripeadapter.Payments,
	notifications *mongoadapter.NotificationStore,
	audit *mongoadapter.AuditLogger,
	idemp *idempotency.Idempotency,
	logger observability.Logger,
) *Handlers {
	return &Handlers{
		cfg:           cfg,
		repo:          repo,
		orchestrator:  orchestrator,
		guard:         guard,
		orders:        orderLedger,
		payments:      payments,
		notifications: notifications,
		audit:         audit,
		idemp:         idemp,
		logger:        logger,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}

// writeDomainError maps the domain error taxonomy onto HTTP statuses. The
// capacity and cap errors keep their full message so clients can show the
// remaining-spots text verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	var capacityErr *domain.CapacityError
	var capErr *domain.CapError
	var paymentErr *domain.PaymentProviderError
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &capacityErr):
		writeError(w, http.StatusBadRequest, capacityErr.Error())
	case errors.As(err, &capErr):
		writeError(w, http.StatusBadRequest, capErr.Error())
	case errors.Is(err, domain.ErrSerializationFailure):
		writeError(w, http.StatusConflict, "conflict, try again")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &paymentErr):
		writeError(w, http.StatusBadGateway, "payment provider error")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// replay returns true when the request carries an Idempotency-Key whose
// response was already recorded, in which case the stored response has been
// written.
func (h *Handlers) replay(w http.ResponseWriter, r *http.Request) bool {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		h.logger.WithField("key", key).Warn("idempotency lookup failed", err)
		return false
	}
	if existing == nil {
		return false
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(existing.Status)
	w.Write(existing.Result)
	return true
}

func (h *Handlers) record(r *http.Request, status int, data []byte) {
	key := r.Header.Get("Idempotency-Key")
	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data}); err != nil {
		h.logger.WithField("key", key).Warn("idempotency store failed", err)
	}
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
