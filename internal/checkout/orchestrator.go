package checkout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/plan-it/planit/internal/adapters/crdb"
	"github.com/plan-it/planit/internal/capacity"
	"github.com/plan-it/planit/internal/domain"
	"github.com/plan-it/planit/internal/observability"
	"github.com/plan-it/planit/internal/orders"
	"github.com/plan-it/planit/internal/purchasecap"
	"golang.org/x/sync/errgroup"
)

const txRetries = 3

type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

type UserDirectory interface {
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)
}

type CartStore interface {
	Stash(ctx context.Context, sessionID string, cart domain.Cart, ttl time.Duration) error
	Load(ctx context.Context, sessionID string) (*domain.Cart, error)
	Discard(ctx context.Context, sessionID string) error
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, cart domain.Cart) (id, url string, err error)
}

type OutboxWriter interface {
	InsertOutbox(ctx context.Context, tx pgx.Tx, record crdb.OutboxRecord) error
}

// Orchestrator is the only component that calls both the capacity ledger and
// the order ledger for a cart. Flow A settles synchronously (pay on
// delivery); Flow B defers order creation until the hosted payment session
// succeeds.
type Orchestrator struct {
	db       TxRunner
	users    UserDirectory
	ledger   *capacity.Ledger
	guard    *purchasecap.Guard
	orders   *orders.Ledger
	carts    CartStore
	payments PaymentProvider
	outbox   OutboxWriter
	cartTTL  time.Duration
	logger   observability.Logger
}

func NewOrchestrator(
	db TxRunner,
	users UserDirectory,
	ledger *capacity.Ledger,
	guard *purchasecap.Guard,
	orderLedger *orders.Ledger,
	carts CartStore,
	payments PaymentProvider,
	outbox OutboxWriter,
	cartTTL time.Duration,
	logger observability.Logger,
) *Orchestrator {
	return &Orchestrator{
		db:       db,
		users:    users,
		ledger:   ledger,
		guard:    guard,
		orders:   orderLedger,
		carts:    carts,
		payments: payments,
		outbox:   outbox,
		cartTTL:  cartTTL,
		logger:   logger,
	}
}

// validate runs every pre-checkout check without mutating anything: the user
// exists, every instance and its parent event exist, the advisory capacity
// check passes, and the per-event purchase cap holds. The cart's line
// EventIDs are overwritten with the authoritative parent ids so later cap
// accounting cannot be skewed by client input.
func (o *Orchestrator) validate(ctx context.Context, cart *domain.Cart) error {
	if err := cart.Validate(); err != nil {
		return err
	}

	if _, err := o.users.GetUserByExternalID(ctx, cart.UserID); err != nil {
		return err
	}

	avs := make([]capacity.Availability, len(cart.Lines))
	g, gctx := errgroup.WithContext(ctx)
	for i, line := range cart.Lines {
		g.Go(func() error {
			av, err := o.ledger.CheckAvailability(gctx, line.InstanceID, line.Quantity)
			if err != nil {
				return errors.Wrapf(err, "line %s", line.InstanceID)
			}
			avs[i] = av
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	perEvent := map[uuid.UUID]int{}
	for i := range cart.Lines {
		av := avs[i]
		if !av.OK {
			observability.CapacityRejections.Inc()
			return &domain.CapacityError{EventID: av.EventID, EventTitle: av.EventTitle, Remaining: av.Remaining}
		}
		cart.Lines[i].EventID = av.EventID
		perEvent[av.EventID] += cart.Lines[i].Quantity
	}

	for eventID, qty := range perEvent {
		ok, booked, err := o.guard.CanAdd(ctx, cart.UserID, eventID, qty)
		if err != nil {
			return err
		}
		if !ok {
			observability.CapRejections.Inc()
			return &domain.CapError{EventID: eventID, AlreadyBooked: booked, Cap: o.guard.Cap()}
		}
	}
	return nil
}

// PlaceOrder is Flow A: all checks, then order creation and capacity commits
// in one serializable transaction. A failure on any line aborts the whole
// cart; no partial order or partial increment can ever be observed.
func (o *Orchestrator) PlaceOrder(ctx context.Context, cart domain.Cart) (*domain.Order, error) {
	if err := o.validate(ctx, &cart); err != nil {
		observability.CheckoutsTotal.WithLabelValues("sync", "rejected").Inc()
		return nil, err
	}

	order := domain.NewOrder(cart, domain.PaymentPending)
	err := o.runTx(ctx, func(tx pgx.Tx) error {
		return o.settle(ctx, tx, cart, order)
	})
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("sync", "failed").Inc()
		return nil, err
	}

	observability.CheckoutsTotal.WithLabelValues("sync", "completed").Inc()
	return &order, nil
}

// CreateSession is Flow B's first half: validate, open the hosted payment
// session, and stash the cart under the session id. No order exists and no
// capacity is reserved until the payment succeeds, so an abandoned session
// leaks nothing.
func (o *Orchestrator) CreateSession(ctx context.Context, cart domain.Cart) (string, string, error) {
	if err := o.validate(ctx, &cart); err != nil {
		observability.CheckoutsTotal.WithLabelValues("session", "rejected").Inc()
		return "", "", err
	}

	sessionID, url, err := o.payments.CreateCheckoutSession(ctx, cart)
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("session", "failed").Inc()
		return "", "", err
	}

	if err := o.carts.Stash(ctx, sessionID, cart, o.cartTTL); err != nil {
		return "", "", err
	}
	observability.CheckoutsTotal.WithLabelValues("session", "created").Inc()
	return sessionID, url, nil
}

// Finalize is Flow B's second half and must be safe to call any number of
// times per session: order creation is keyed on the session id, and the
// capacity commits only run in the transaction that actually inserts the
// order. Duplicate callbacks and page reloads observe the already-created
// order instead of a failure.
func (o *Orchestrator) Finalize(ctx context.Context, sessionID string) (*domain.Order, error) {
	cart, err := o.carts.Load(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		// Cart already consumed (or expired). If an order exists for the
		// session this is a replayed callback; surface the original result.
		if existing, err := o.orders.BySession(ctx, sessionID); err == nil {
			return existing, nil
		}
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	order := domain.NewOrder(*cart, domain.PaymentCompleted)
	order.SessionID = sessionID

	var result *domain.Order
	err = o.runTx(ctx, func(tx pgx.Tx) error {
		created, err := o.orders.CreateIfAbsent(ctx, tx, order)
		if err != nil {
			return err
		}
		if !created {
			result = nil
			return nil
		}
		result = &order
		// The order's lines are already visible inside this transaction,
		// so assert the post-insert form of the cap invariant.
		for eventID, qty := range perEventQuantities(*cart) {
			if err := o.guard.AssertWithinCapTx(ctx, tx, cart.UserID, eventID, qty); err != nil {
				return err
			}
		}
		return o.commitLines(ctx, tx, *cart, order)
	})
	if err != nil {
		observability.CheckoutsTotal.WithLabelValues("finalize", "failed").Inc()
		return nil, err
	}

	if result == nil {
		observability.CheckoutsTotal.WithLabelValues("finalize", "duplicate").Inc()
		return o.orders.BySession(ctx, sessionID)
	}

	if err := o.carts.Discard(ctx, sessionID); err != nil {
		o.logger.WithField("session_id", sessionID).Warn("failed to discard finalized cart", err)
	}
	observability.CheckoutsTotal.WithLabelValues("finalize", "completed").Inc()
	return result, nil
}

// Abandon discards the stashed cart after a cancelled or expired payment
// session. Capacity was never touched, so there is nothing to release.
func (o *Orchestrator) Abandon(ctx context.Context, sessionID string) error {
	return o.carts.Discard(ctx, sessionID)
}

// settle performs the mutations for a validated cart: cap re-checks inside
// the transaction first, then the order row, then the conditional capacity
// increments. Order matters: no order may be persisted before every line has
// passed its checks.
func (o *Orchestrator) settle(ctx context.Context, tx pgx.Tx, cart domain.Cart, order domain.Order) error {
	if err := o.capCheckTx(ctx, tx, cart); err != nil {
		return err
	}
	if err := o.orders.Create(ctx, tx, order); err != nil {
		return err
	}
	return o.commitLines(ctx, tx, cart, order)
}

func (o *Orchestrator) capCheckTx(ctx context.Context, tx pgx.Tx, cart domain.Cart) error {
	for eventID, qty := range perEventQuantities(cart) {
		if err := o.guard.CheckTx(ctx, tx, cart.UserID, eventID, qty); err != nil {
			return err
		}
	}
	return nil
}

func perEventQuantities(cart domain.Cart) map[uuid.UUID]int {
	perEvent := map[uuid.UUID]int{}
	for _, line := range cart.Lines {
		perEvent[line.EventID] += line.Quantity
	}
	return perEvent
}

func (o *Orchestrator) commitLines(ctx context.Context, tx pgx.Tx, cart domain.Cart, order domain.Order) error {
	for _, line := range cart.Lines {
		if err := o.ledger.Commit(ctx, tx, line.InstanceID, line.Quantity); err != nil {
			return err
		}
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"order_id":       order.ID,
		"user_id":        order.UserID,
		"total_amount":   order.TotalAmount,
		"payment_status": order.PaymentStatus,
	})
	return o.outbox.InsertOutbox(ctx, tx, crdb.OutboxRecord{
		ID:            uuid.New(),
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     "order.created",
		Payload:       payload,
		DedupeKey:     order.ID.String(),
	})
}

// runTx retries serialization failures so that a losing concurrent checkout
// is re-evaluated and gets a definitive answer (success or a capacity/cap
// rejection) instead of a transient conflict.
func (o *Orchestrator) runTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	var err error
	for attempt := 0; attempt < txRetries; attempt++ {
		err = o.db.WithTx(ctx, fn)
		if !errors.Is(err, domain.ErrSerializationFailure) {
			return err
		}
	}
	return err
}
