package capacity

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/adapters/crdb"
)

type Store interface {
	InstanceCapacity(ctx context.Context, instanceID uuid.UUID) (*crdb.InstanceCapacity, error)
	CommitCapacity(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID, qty int) error
}

// Ledger is the authoritative count of tickets sold per event instance and
// the only component allowed to mutate it.
type Ledger struct {
	store Store
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store}
}

type Availability struct {
	OK         bool
	Remaining  int
	EventID    uuid.UUID
	EventTitle string
}

// CheckAvailability is advisory: it lets a checkout fail fast with a precise
// message, but the authoritative re-check is the conditional increment in
// Commit, which runs as close to the write as possible.
func (l *Ledger) CheckAvailability(ctx context.Context, instanceID uuid.UUID, qty int) (Availability, error) {
	info, err := l.store.InstanceCapacity(ctx, instanceID)
	if err != nil {
		return Availability{}, err
	}
	return Availability{
		OK:         info.TicketsSold+qty <= info.MaxAttendees,
		Remaining:  info.Remaining(),
		EventID:    info.EventID,
		EventTitle: info.EventTitle,
	}, nil
}

// Commit increments tickets_sold by qty, failing with a CapacityError when
// the increment would exceed the parent event's maxAttendees. Concurrent
// commits against one instance serialize in the storage layer.
func (l *Ledger) Commit(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID, qty int) error {
	return l.store.CommitCapacity(ctx, tx, instanceID, qty)
}
