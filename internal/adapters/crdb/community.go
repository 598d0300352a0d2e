package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

func (r *Repository) RegisterVolunteer(ctx context.Context, v domain.Volunteer) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO volunteers (id, event_id, user_id, access_level, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, v.ID, v.EventID, v.UserID, v.AccessLevel)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

func (r *Repository) ListVolunteersByUser(ctx context.Context, userID string) ([]domain.Volunteer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, user_id, access_level, created_at
		FROM volunteers WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Volunteer
	for rows.Next() {
		var v domain.Volunteer
		if err := rows.Scan(&v.ID, &v.EventID, &v.UserID, &v.AccessLevel, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *Repository) InsertSponsorship(ctx context.Context, s domain.Sponsorship) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sponsorships (id, event_id, sponsor_id, amount, status, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
	`, s.ID, s.EventID, s.SponsorID, s.Amount, s.Status, s.SessionID)
	return err
}

// CompleteSponsorshipBySession is idempotent: a second webhook delivery for
// the same session updates nothing.
func (r *Repository) CompleteSponsorshipBySession(ctx context.Context, sessionID string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE sponsorships SET status = $2
		WHERE session_id = $1 AND status = $3
	`, sessionID, domain.SponsorshipCompleted, domain.SponsorshipPending)
	return err
}

func (r *Repository) ListSponsorshipsByEvent(ctx context.Context, eventID uuid.UUID) ([]domain.Sponsorship, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, event_id, sponsor_id, amount, status, COALESCE(session_id, ''), created_at
		FROM sponsorships WHERE event_id = $1 ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Sponsorship
	for rows.Next() {
		var s domain.Sponsorship
		if err := rows.Scan(&s.ID, &s.EventID, &s.SponsorID, &s.Amount, &s.Status, &s.SessionID, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) CreateOrganizerRequest(ctx context.Context, req domain.OrganizerRequest) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO organizer_requests (id, user_id, message, status, created_at)
		VALUES ($1, $2, $3, $4, now())
	`, req.ID, req.UserID, req.Message, req.Status)
	return err
}

func (r *Repository) ListOrganizerRequests(ctx context.Context, status domain.RequestStatus) ([]domain.OrganizerRequest, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, message, status, created_at
		FROM organizer_requests WHERE status = $1 ORDER BY created_at
	`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.OrganizerRequest
	for rows.Next() {
		var req domain.OrganizerRequest
		if err := rows.Scan(&req.ID, &req.UserID, &req.Message, &req.Status, &req.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// DecideOrganizerRequest settles a pending request; approval promotes the
// requesting user to organizer in the same transaction.
func (r *Repository) DecideOrganizerRequest(ctx context.Context, id uuid.UUID, approve bool) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		status := domain.RequestRejected
		if approve {
			status = domain.RequestApproved
		}

		var userID string
		err := tx.QueryRow(ctx, `
			UPDATE organizer_requests SET status = $2
			WHERE id = $1 AND status = $3
			RETURNING user_id
		`, id, status, domain.RequestPending).Scan(&userID)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		if !approve {
			return nil
		}
		result, err := tx.Exec(ctx, `
			UPDATE users SET role = $2 WHERE external_id = $1
		`, userID, domain.RoleOrganizer)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}
