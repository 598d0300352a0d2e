package crdb

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

func (r *Repository) InsertEventQuery(ctx context.Context, q domain.EventQuery) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_queries (id, event_id, organizer_id, user_id, email, query, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, q.ID, q.EventID, q.OrganizerID, q.UserID, q.Email, q.Query)
	return err
}

func (r *Repository) ListEventQueries(ctx context.Context, eventID uuid.UUID) ([]domain.EventQuery, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, organizer_id, user_id, email, query, created_at
		FROM event_queries WHERE event_id = $1 ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.EventQuery
	for rows.Next() {
		var q domain.EventQuery
		if err := rows.Scan(&q.ID, &q.EventID, &q.OrganizerID, &q.UserID, &q.Email, &q.Query, &q.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// EventQueryCount pairs an organizer's event with how many open questions it
// has collected.
type EventQueryCount struct {
	EventID uuid.UUID `json:"eventId"`
	Title   string    `json:"title"`
	Count   int       `json:"queryCount"`
}

func (r *Repository) CountQueriesByOrganizer(ctx context.Context, organizerID string) ([]EventQueryCount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, e.title, (SELECT count(*) FROM event_queries q WHERE q.event_id = e.id)
		FROM events e WHERE e.organizer_id = $1 ORDER BY e.starts_at
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventQueryCount
	for rows.Next() {
		var c EventQueryCount
		if err := rows.Scan(&c.EventID, &c.Title, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) InsertReview(ctx context.Context, rev domain.Review) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO reviews (id, name, rating, review, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, rev.ID, rev.Name, rev.Rating, rev.Review)
	return err
}

func (r *Repository) ListRecentReviews(ctx context.Context, limit int) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, rating, review, created_at
		FROM reviews ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(&rev.ID, &rev.Name, &rev.Rating, &rev.Review, &rev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

// SubscribeNewsletter inserts inside the caller's transaction so the welcome
// mail outbox record commits atomically with the subscription.
func (r *Repository) SubscribeNewsletter(ctx context.Context, tx pgx.Tx, email string, subscribedAt time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO newsletter_subscribers (email, subscribed_at)
		VALUES ($1, $2)
	`, email, subscribedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) ListNewsletterSubscribers(ctx context.Context) ([]domain.NewsletterSubscriber, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT email, subscribed_at
		FROM newsletter_subscribers ORDER BY subscribed_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.NewsletterSubscriber
	for rows.Next() {
		var s domain.NewsletterSubscriber
		if err := rows.Scan(&s.Email, &s.SubscribedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
