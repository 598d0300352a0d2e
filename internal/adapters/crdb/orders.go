package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/domain"
)

func (r *Repository) InsertOrder(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	var session any
	if order.SessionID != "" {
		session = order.SessionID
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, total_amount, payment_status, order_status, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, order.ID, order.UserID, order.TotalAmount, order.PaymentStatus, order.OrderStatus, session, order.CreatedAt)
	if err != nil {
		return err
	}
	return insertOrderLines(ctx, tx, order)
}

// InsertOrderIfAbsent keys order creation on the payment session id, so a
// duplicate finalize attempt inserts nothing and reports created=false.
func (r *Repository) InsertOrderIfAbsent(ctx context.Context, tx pgx.Tx, order domain.Order) (bool, error) {
	result, err := tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, total_amount, payment_status, order_status, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) WHERE session_id IS NOT NULL DO NOTHING
	`, order.ID, order.UserID, order.TotalAmount, order.PaymentStatus, order.OrderStatus, order.SessionID, order.CreatedAt)
	if err != nil {
		return false, err
	}
	if result.RowsAffected() == 0 {
		return false, nil
	}
	return true, insertOrderLines(ctx, tx, order)
}

func insertOrderLines(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	for _, line := range order.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO order_lines (order_id, instance_id, event_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, line.InstanceID, line.EventID, line.Quantity, line.Price)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, total_amount, payment_status, order_status, COALESCE(session_id, ''), created_at
		FROM orders WHERE id = $1
	`, orderID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	order.Lines, err = r.orderLines(ctx, order.ID)
	return order, err
}

func (r *Repository) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, user_id, total_amount, payment_status, order_status, COALESCE(session_id, ''), created_at
		FROM orders WHERE session_id = $1
	`, sessionID)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	order.Lines, err = r.orderLines(ctx, order.ID)
	return order, err
}

func (r *Repository) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, total_amount, payment_status, order_status, COALESCE(session_id, ''), created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

// ListOrdersForOrganizer joins through event_instances to event ownership.
func (r *Repository) ListOrdersForOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT o.id, o.user_id, o.total_amount, o.payment_status, o.order_status,
			COALESCE(o.session_id, ''), o.created_at
		FROM orders o
		JOIN order_lines ol ON ol.order_id = o.id
		JOIN events e ON e.id = ol.event_id
		WHERE e.organizer_id = $1
		ORDER BY o.created_at DESC
	`, organizerID)
	if err != nil {
		return nil, err
	}
	return r.collectOrders(ctx, rows)
}

// SumTicketsForUserEvent feeds the purchase cap: total quantity this user has
// booked for the event across all their non-cancelled orders, any instance.
func (r *Repository) SumTicketsForUserEvent(ctx context.Context, userID string, eventID uuid.UUID) (int, error) {
	return sumTicketsForUserEvent(ctx, r.pool, userID, eventID)
}

func (r *Repository) SumTicketsForUserEventTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID) (int, error) {
	return sumTicketsForUserEvent(ctx, tx, userID, eventID)
}

func sumTicketsForUserEvent(ctx context.Context, q querier, userID string, eventID uuid.UUID) (int, error) {
	var total int
	err := q.QueryRow(ctx, `
		SELECT COALESCE(sum(ol.quantity), 0)
		FROM order_lines ol
		JOIN orders o ON o.id = ol.order_id
		WHERE o.user_id = $1 AND ol.event_id = $2 AND o.order_status <> $3
	`, userID, eventID, domain.OrderCancelled).Scan(&total)
	return total, err
}

func (r *Repository) UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, next domain.PaymentStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET payment_status = $2
		WHERE id = $1 AND payment_status = $3
	`, orderID, next, domain.PaymentPending)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

func (r *Repository) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET order_status = $2
		WHERE id = $1 AND order_status = $3
	`, orderID, domain.OrderCancelled, domain.OrderConfirmed)
	if err != nil {
		return err
	}
	if result.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

type SalesSummary struct {
	TotalTickets int                          `json:"totalTickets"`
	TotalRevenue float64                      `json:"totalRevenue"`
	StatusCounts map[domain.PaymentStatus]int `json:"paymentStatusCounts"`
}

func (r *Repository) OrganizerSalesSummary(ctx context.Context, organizerID string) (*SalesSummary, error) {
	s := &SalesSummary{StatusCounts: map[domain.PaymentStatus]int{}}

	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(ol.quantity), 0)
		FROM order_lines ol
		JOIN events e ON e.id = ol.event_id
		WHERE e.organizer_id = $1
	`, organizerID).Scan(&s.TotalTickets)
	if err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COALESCE(sum(o.total_amount), 0)
		FROM orders o
		WHERE o.payment_status = $2 AND EXISTS (
			SELECT 1 FROM order_lines ol JOIN events e ON e.id = ol.event_id
			WHERE ol.order_id = o.id AND e.organizer_id = $1
		)
	`, organizerID, domain.PaymentCompleted).Scan(&s.TotalRevenue)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT o.payment_status, count(DISTINCT o.id)
		FROM orders o
		JOIN order_lines ol ON ol.order_id = o.id
		JOIN events e ON e.id = ol.event_id
		WHERE e.organizer_id = $1
		GROUP BY o.payment_status
	`, organizerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st domain.PaymentStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		s.StatusCounts[st] = n
	}
	return s, rows.Err()
}

func (r *Repository) orderLines(ctx context.Context, orderID uuid.UUID) ([]domain.OrderLine, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT instance_id, event_id, quantity, price
		FROM order_lines WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.InstanceID, &l.EventID, &l.Quantity, &l.Price); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *Repository) collectOrders(ctx context.Context, rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		orders = append(orders, *o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		lines, err := r.orderLines(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Lines = lines
	}
	return orders, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.PaymentStatus, &o.OrderStatus, &o.SessionID, &o.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
