package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

// CreateEvent persists an event template together with its expanded
// occurrences so a half-created recurring event can never be booked.
func (r *Repository) CreateEvent(ctx context.Context, tx pgx.Tx, e domain.Event, instances []domain.EventInstance) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO events (id, organizer_id, title, description, starts_at, location,
			max_attendees, ticket_price, recurrence, recurrence_end,
			need_volunteers, need_sponsorship, sponsorship_target, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now(), now())
	`, e.ID, e.OrganizerID, e.Title, e.Description, e.StartsAt, e.Location,
		e.MaxAttendees, e.TicketPrice, e.Recurrence, e.RecurrenceEnd,
		e.NeedVolunteers, e.NeedSponsorship, e.SponsorshipTarget)
	if err != nil {
		return err
	}

	for _, inst := range instances {
		_, err := tx.Exec(ctx, `
			INSERT INTO event_instances (id, event_id, starts_at, location, tickets_sold)
			VALUES ($1, $2, $3, $4, 0)
		`, inst.ID, inst.EventID, inst.StartsAt, inst.Location)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, organizer_id, title, description, starts_at, location,
			max_attendees, ticket_price, recurrence, recurrence_end,
			need_volunteers, need_sponsorship, sponsorship_target, created_at, updated_at
		FROM events WHERE id = $1
	`, id)
	return scanEvent(row)
}

func (r *Repository) ListEventsByOrganizer(ctx context.Context, organizerID string) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organizer_id, title, description, starts_at, location,
			max_attendees, ticket_price, recurrence, recurrence_end,
			need_volunteers, need_sponsorship, sponsorship_target, created_at, updated_at
		FROM events WHERE organizer_id = $1 ORDER BY starts_at
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// UpdateEvent refuses to lower max_attendees below what any occurrence has
// already sold, so tickets_sold <= max_attendees keeps holding after edits.
func (r *Repository) UpdateEvent(ctx context.Context, e domain.Event) (*domain.Event, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE events SET title = $2, description = $3, starts_at = $4, location = $5,
			max_attendees = $6, ticket_price = $7, need_volunteers = $8,
			need_sponsorship = $9, sponsorship_target = $10, updated_at = now()
		WHERE id = $1 AND NOT EXISTS (
			SELECT 1 FROM event_instances i WHERE i.event_id = events.id AND i.tickets_sold > $6
		)
		RETURNING id, organizer_id, title, description, starts_at, location,
			max_attendees, ticket_price, recurrence, recurrence_end,
			need_volunteers, need_sponsorship, sponsorship_target, created_at, updated_at
	`, e.ID, e.Title, e.Description, e.StartsAt, e.Location,
		e.MaxAttendees, e.TicketPrice, e.NeedVolunteers, e.NeedSponsorship, e.SponsorshipTarget)
	ev, err := scanEvent(row)
	if errors.Is(err, domain.ErrNotFound) {
		var sold int
		qerr := r.pool.QueryRow(ctx, `
			SELECT coalesce(max(tickets_sold), 0) FROM event_instances WHERE event_id = $1
		`, e.ID).Scan(&sold)
		if qerr == nil && sold > e.MaxAttendees {
			return nil, errors.Wrapf(domain.ErrConflict,
				"cannot set maxAttendees to %d: an occurrence of event %s already sold %d tickets", e.MaxAttendees, e.ID, sold)
		}
	}
	return ev, err
}

// DeleteEvent cascades to event_instances through the FK.
func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListInstances(ctx context.Context, eventID uuid.UUID) ([]domain.EventInstance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, starts_at, location, tickets_sold
		FROM event_instances WHERE event_id = $1 ORDER BY starts_at
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EventInstance
	for rows.Next() {
		var inst domain.EventInstance
		if err := rows.Scan(&inst.ID, &inst.EventID, &inst.StartsAt, &inst.Location, &inst.TicketsSold); err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	return out, rows.Err()
}

func (r *Repository) ListEventsNeedingVolunteers(ctx context.Context) ([]domain.Event, []int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.organizer_id, e.title, e.description, e.starts_at, e.location,
			e.max_attendees, e.ticket_price, e.recurrence, e.recurrence_end,
			e.need_volunteers, e.need_sponsorship, e.sponsorship_target, e.created_at, e.updated_at,
			(SELECT count(*) FROM volunteers v WHERE v.event_id = e.id)
		FROM events e WHERE e.need_volunteers ORDER BY e.starts_at
	`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var events []domain.Event
	var counts []int
	for rows.Next() {
		var e domain.Event
		var n int
		err := rows.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.StartsAt, &e.Location,
			&e.MaxAttendees, &e.TicketPrice, &e.Recurrence, &e.RecurrenceEnd,
			&e.NeedVolunteers, &e.NeedSponsorship, &e.SponsorshipTarget, &e.CreatedAt, &e.UpdatedAt, &n)
		if err != nil {
			return nil, nil, err
		}
		events = append(events, e)
		counts = append(counts, n)
	}
	return events, counts, rows.Err()
}

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Title, &e.Description, &e.StartsAt, &e.Location,
		&e.MaxAttendees, &e.TicketPrice, &e.Recurrence, &e.RecurrenceEnd,
		&e.NeedVolunteers, &e.NeedSponsorship, &e.SponsorshipTarget, &e.CreatedAt, &e.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
