package purchasecap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/plan-it/planit/internal/domain"
	"github.com/plan-it/planit/internal/purchasecap"
)

type fixedStore struct {
	booked int
}

func (s fixedStore) SumTicketsForUserEvent(ctx context.Context, userID string, eventID uuid.UUID) (int, error) {
	return s.booked, nil
}

func (s fixedStore) SumTicketsForUserEventTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID) (int, error) {
	return s.booked, nil
}

func TestGuard_CanAdd(t *testing.T) {
	guard := purchasecap.NewGuard(fixedStore{booked: 1}, 2)

	ok, booked, err := guard.CanAdd(context.Background(), "u", uuid.New(), 1)
	if err != nil || !ok {
		t.Fatalf("expected 1+1 within cap 2, got ok=%v err=%v", ok, err)
	}
	if booked != 1 {
		t.Errorf("expected booked=1, got %d", booked)
	}

	ok, _, err = guard.CanAdd(context.Background(), "u", uuid.New(), 2)
	if err != nil || ok {
		t.Fatalf("expected 1+2 over cap 2 to be rejected, got ok=%v err=%v", ok, err)
	}
}

func TestGuard_CheckTx(t *testing.T) {
	guard := purchasecap.NewGuard(fixedStore{booked: 2}, 2)

	err := guard.CheckTx(context.Background(), nil, "u", uuid.New(), 1)
	var capErr *domain.CapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapError, got %v", err)
	}
	if capErr.AlreadyBooked != 2 || capErr.Cap != 2 {
		t.Errorf("unexpected error fields: %+v", capErr)
	}

	guard = purchasecap.NewGuard(fixedStore{booked: 0}, 2)
	if err := guard.CheckTx(context.Background(), nil, "u", uuid.New(), 2); err != nil {
		t.Errorf("expected 0+2 at cap to pass, got %v", err)
	}
}

func TestGuard_AssertWithinCapTx(t *testing.T) {
	// Post-insert form: the store already counts the added tickets.
	guard := purchasecap.NewGuard(fixedStore{booked: 3}, 2)

	err := guard.AssertWithinCapTx(context.Background(), nil, "u", uuid.New(), 2)
	var capErr *domain.CapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapError, got %v", err)
	}
	if capErr.AlreadyBooked != 1 {
		t.Errorf("expected prior bookings reported as 1, got %d", capErr.AlreadyBooked)
	}

	guard = purchasecap.NewGuard(fixedStore{booked: 2}, 2)
	if err := guard.AssertWithinCapTx(context.Background(), nil, "u", uuid.New(), 2); err != nil {
		t.Errorf("expected exactly-at-cap to pass, got %v", err)
	}
}
