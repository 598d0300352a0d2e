package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ReminderRow pairs one ticket holder with one upcoming instance. The sweep
// that produces these is read-only with respect to tickets_sold.
type ReminderRow struct {
	InstanceID uuid.UUID
	EventID    uuid.UUID
	EventTitle string
	StartsAt   time.Time
	Location   string
	UserID     string
}

func (r *Repository) ListUpcomingAttendees(ctx context.Context, from, to time.Time) ([]ReminderRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT i.id, e.id, e.title, i.starts_at, i.location, o.user_id
		FROM event_instances i
		JOIN events e ON e.id = i.event_id
		JOIN order_lines ol ON ol.instance_id = i.id
		JOIN orders o ON o.id = ol.order_id
		WHERE i.starts_at >= $1 AND i.starts_at < $2
		  AND o.order_status = 'Confirmed' AND o.payment_status <> 'Failed'
		ORDER BY i.starts_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReminderRow
	for rows.Next() {
		var row ReminderRow
		if err := rows.Scan(&row.InstanceID, &row.EventID, &row.EventTitle, &row.StartsAt, &row.Location, &row.UserID); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
