package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

type Store interface {
	InsertOrder(ctx context.Context, tx pgx.Tx, order domain.Order) error
	InsertOrderIfAbsent(ctx context.Context, tx pgx.Tx, order domain.Order) (bool, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error)
	ListOrdersForOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error)
	UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, next domain.PaymentStatus) error
	CancelOrder(ctx context.Context, orderID uuid.UUID) error
}

// Ledger is the append-only record of purchases. It never touches the
// capacity counters; the checkout orchestrator sequences both.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) Create(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	return l.store.InsertOrder(ctx, tx, order)
}

// CreateIfAbsent is the idempotency point for deferred-payment finalization:
// creation is keyed on the provider session id, so replays insert nothing.
func (l *Ledger) CreateIfAbsent(ctx context.Context, tx pgx.Tx, order domain.Order) (bool, error) {
	if order.SessionID == "" {
		return false, domain.ErrInvalidInput
	}
	return l.store.InsertOrderIfAbsent(ctx, tx, order)
}

func (l *Ledger) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return l.store.GetOrder(ctx, orderID)
}

func (l *Ledger) BySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	return l.store.GetOrderBySession(ctx, sessionID)
}

func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return l.store.ListOrdersForUser(ctx, userID)
}

func (l *Ledger) ListForOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error) {
	return l.store.ListOrdersForOrganizer(ctx, organizerID)
}

// CompletePayment and FailPayment settle the payment axis; both are terminal
// and only valid from Pending.
func (l *Ledger) CompletePayment(ctx context.Context, orderID uuid.UUID) error {
	return l.store.UpdateOrderPaymentStatus(ctx, orderID, domain.PaymentCompleted)
}

func (l *Ledger) FailPayment(ctx context.Context, orderID uuid.UUID) error {
	return l.store.UpdateOrderPaymentStatus(ctx, orderID, domain.PaymentFailed)
}

func (l *Ledger) Cancel(ctx context.Context, orderID uuid.UUID) error {
	return l.store.CancelOrder(ctx, orderID)
}
