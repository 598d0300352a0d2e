package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

// InstanceCapacity is the read model the checkout validates against: the
// instance's sold counter joined with its parent event's limit.
type InstanceCapacity struct {
	InstanceID   uuid.UUID
	EventID      uuid.UUID
	EventTitle   string
	MaxAttendees int
	TicketsSold  int
}

func (c InstanceCapacity) Remaining() int {
	return c.MaxAttendees - c.TicketsSold
}

func (r *Repository) InstanceCapacity(ctx context.Context, instanceID uuid.UUID) (*InstanceCapacity, error) {
	return instanceCapacity(ctx, r.pool, instanceID)
}

func (r *Repository) InstanceCapacityTx(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID) (*InstanceCapacity, error) {
	return instanceCapacity(ctx, tx, instanceID)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func instanceCapacity(ctx context.Context, q querier, instanceID uuid.UUID) (*InstanceCapacity, error) {
	var c InstanceCapacity
	err := q.QueryRow(ctx, `
		SELECT i.id, e.id, e.title, e.max_attendees, i.tickets_sold
		FROM event_instances i JOIN events e ON e.id = i.event_id
		WHERE i.id = $1
	`, instanceID).Scan(&c.InstanceID, &c.EventID, &c.EventTitle, &c.MaxAttendees, &c.TicketsSold)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CommitCapacity is the sole mutator of tickets_sold. The increment is
// conditional on the parent event's max_attendees so that concurrent
// checkouts can never jointly overshoot capacity; a failed condition is
// reported as a CapacityError carrying the remaining count.
func (r *Repository) CommitCapacity(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID, qty int) error {
	result, err := tx.Exec(ctx, `
		UPDATE event_instances SET tickets_sold = tickets_sold + $2
		WHERE id = $1
		  AND tickets_sold + $2 <= (SELECT max_attendees FROM events WHERE id = event_instances.event_id)
	`, instanceID, qty)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	info, err := instanceCapacity(ctx, tx, instanceID)
	if err != nil {
		return err
	}
	return &domain.CapacityError{
		EventID:    info.EventID,
		EventTitle: info.EventTitle,
		Remaining:  info.Remaining(),
	}
}
