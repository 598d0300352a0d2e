package purchasecap

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

type Store interface {
	SumTicketsForUserEvent(ctx context.Context, userID string, eventID uuid.UUID) (int, error)
	SumTicketsForUserEventTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID) (int, error)
}

// Guard enforces the per-user ticket cap. The cap bucket is the parent
// event, so booking different instances of one recurring event draws from
// the same allowance.
type Guard struct {
	store Store
	cap   int
}

func NewGuard(store Store, cap int) *Guard {
	return &Guard{store: store, cap: cap}
}

func (g *Guard) Cap() int {
	return g.cap
}

func (g *Guard) TicketsAlreadyBooked(ctx context.Context, userID string, eventID uuid.UUID) (int, error) {
	return g.store.SumTicketsForUserEvent(ctx, userID, eventID)
}

func (g *Guard) CanAdd(ctx context.Context, userID string, eventID uuid.UUID, qty int) (bool, int, error) {
	booked, err := g.store.SumTicketsForUserEvent(ctx, userID, eventID)
	if err != nil {
		return false, 0, err
	}
	return booked+qty <= g.cap, booked, nil
}

// CheckTx re-runs the cap check inside the checkout transaction, where the
// serializable isolation makes the read-then-insert safe against concurrent
// orders by the same user.
func (g *Guard) CheckTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID, qty int) error {
	booked, err := g.store.SumTicketsForUserEventTx(ctx, tx, userID, eventID)
	if err != nil {
		return err
	}
	if booked+qty > g.cap {
		return &domain.CapError{EventID: eventID, AlreadyBooked: booked, Cap: g.cap}
	}
	return nil
}

// AssertWithinCapTx validates the invariant after an order's lines are
// already visible to the transaction: the user's total for the event,
// including the new lines, must not exceed the cap.
func (g *Guard) AssertWithinCapTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID, added int) error {
	booked, err := g.store.SumTicketsForUserEventTx(ctx, tx, userID, eventID)
	if err != nil {
		return err
	}
	if booked > g.cap {
		return &domain.CapError{EventID: eventID, AlreadyBooked: booked - added, Cap: g.cap}
	}
	return nil
}
