package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/plan-it/planit/internal/adapters/crdb"
	"github.com/plan-it/planit/internal/capacity"
	"github.com/plan-it/planit/internal/checkout"
	"github.com/plan-it/planit/internal/domain"
	"github.com/plan-it/planit/internal/observability"
	"github.com/plan-it/planit/internal/orders"
	"github.com/plan-it/planit/internal/purchasecap"
)

// memStore is an in-memory stand-in for the storage layer. WithTx snapshots
// state before running the callback and restores it on error, mirroring a
// rolled-back transaction.
type memStore struct {
	mu        sync.Mutex
	txMu      sync.Mutex
	users     map[string]domain.User
	instances map[uuid.UUID]crdb.InstanceCapacity
	orders    map[uuid.UUID]domain.Order
	sessions  map[string]uuid.UUID
	outbox    []crdb.OutboxRecord

	txFailures int
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[string]domain.User{},
		instances: map[uuid.UUID]crdb.InstanceCapacity{},
		orders:    map[uuid.UUID]domain.Order{},
		sessions:  map[string]uuid.UUID{},
	}
}

func (s *memStore) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	// Serialize whole transactions so a rollback cannot clobber a commit
	// that landed in between, matching serializable isolation closely
	// enough for these tests.
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	if s.txFailures > 0 {
		s.txFailures--
		s.mu.Unlock()
		return domain.ErrSerializationFailure
	}
	instances := make(map[uuid.UUID]crdb.InstanceCapacity, len(s.instances))
	for k, v := range s.instances {
		instances[k] = v
	}
	ordersCopy := make(map[uuid.UUID]domain.Order, len(s.orders))
	for k, v := range s.orders {
		ordersCopy[k] = v
	}
	sessions := make(map[string]uuid.UUID, len(s.sessions))
	for k, v := range s.sessions {
		sessions[k] = v
	}
	outbox := append([]crdb.OutboxRecord(nil), s.outbox...)
	s.mu.Unlock()

	if err := fn(nil); err != nil {
		s.mu.Lock()
		s.instances = instances
		s.orders = ordersCopy
		s.sessions = sessions
		s.outbox = outbox
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *memStore) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[externalID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *memStore) InstanceCapacity(ctx context.Context, instanceID uuid.UUID) (*crdb.InstanceCapacity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.instances[instanceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &info, nil
}

func (s *memStore) CommitCapacity(ctx context.Context, tx pgx.Tx, instanceID uuid.UUID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.instances[instanceID]
	if !ok {
		return domain.ErrNotFound
	}
	if info.TicketsSold+qty > info.MaxAttendees {
		return &domain.CapacityError{
			EventID:    info.EventID,
			EventTitle: info.EventTitle,
			Remaining:  info.MaxAttendees - info.TicketsSold,
		}
	}
	info.TicketsSold += qty
	s.instances[instanceID] = info
	return nil
}

func (s *memStore) sumTickets(userID string, eventID uuid.UUID) int {
	total := 0
	for _, o := range s.orders {
		if o.UserID != userID || o.OrderStatus == domain.OrderCancelled {
			continue
		}
		for _, l := range o.Lines {
			if l.EventID == eventID {
				total += l.Quantity
			}
		}
	}
	return total
}

func (s *memStore) SumTicketsForUserEvent(ctx context.Context, userID string, eventID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sumTickets(userID, eventID), nil
}

func (s *memStore) SumTicketsForUserEventTx(ctx context.Context, tx pgx.Tx, userID string, eventID uuid.UUID) (int, error) {
	return s.SumTicketsForUserEvent(ctx, userID, eventID)
}

func (s *memStore) InsertOrder(ctx context.Context, tx pgx.Tx, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	return nil
}

func (s *memStore) InsertOrderIfAbsent(ctx context.Context, tx pgx.Tx, order domain.Order) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[order.SessionID]; ok {
		return false, nil
	}
	s.sessions[order.SessionID] = order.ID
	s.orders[order.ID] = order
	return true, nil
}

func (s *memStore) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (s *memStore) GetOrderBySession(ctx context.Context, sessionID string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o := s.orders[id]
	return &o, nil
}

func (s *memStore) ListOrdersForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return nil, nil
}

func (s *memStore) ListOrdersForOrganizer(ctx context.Context, organizerID string) ([]domain.Order, error) {
	return nil, nil
}

func (s *memStore) UpdateOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, next domain.PaymentStatus) error {
	return nil
}

func (s *memStore) CancelOrder(ctx context.Context, orderID uuid.UUID) error {
	return nil
}

func (s *memStore) InsertOutbox(ctx context.Context, tx pgx.Tx, record crdb.OutboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox = append(s.outbox, record)
	return nil
}

type memCarts struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func newMemCarts() *memCarts {
	return &memCarts{carts: map[string]domain.Cart{}}
}

func (c *memCarts) Stash(ctx context.Context, sessionID string, cart domain.Cart, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.carts[sessionID] = cart
	return nil
}

func (c *memCarts) Load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.carts[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cart, nil
}

func (c *memCarts) Discard(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.carts, sessionID)
	return nil
}

type fakePayments struct {
	sessions int
	fail     bool
}

func (p *fakePayments) CreateCheckoutSession(ctx context.Context, cart domain.Cart) (string, string, error) {
	if p.fail {
		return "", "", &domain.PaymentProviderError{Err: errors.New("provider down")}
	}
	p.sessions++
	id := "cs_test_" + uuid.NewString()
	return id, "https://pay.example/" + id, nil
}

type fixture struct {
	store  *memStore
	carts  *memCarts
	pay    *fakePayments
	orch   *checkout.Orchestrator
	userID string
}

func newFixture(t *testing.T, capLimit int) *fixture {
	t.Helper()
	store := newMemStore()
	carts := newMemCarts()
	pay := &fakePayments{}

	store.users["user-1"] = domain.User{ExternalID: "user-1", Email: "u1@example.com", Role: domain.RoleCustomer}

	orch := checkout.NewOrchestrator(
		store, store,
		capacity.NewLedger(store),
		purchasecap.NewGuard(store, capLimit),
		orders.NewLedger(store),
		carts, pay, store,
		30*time.Minute,
		observability.NewLogger(),
	)
	return &fixture{store: store, carts: carts, pay: pay, orch: orch, userID: "user-1"}
}

func (f *fixture) addInstance(eventID uuid.UUID, title string, max, sold int) uuid.UUID {
	id := uuid.New()
	f.store.instances[id] = crdb.InstanceCapacity{
		InstanceID:   id,
		EventID:      eventID,
		EventTitle:   title,
		MaxAttendees: max,
		TicketsSold:  sold,
	}
	return id
}

func cartFor(userID string, lines ...domain.CartLine) domain.Cart {
	total := 0.0
	for _, l := range lines {
		total += l.Price * float64(l.Quantity)
	}
	return domain.Cart{UserID: userID, Lines: lines, TotalAmount: total}
}

func TestPlaceOrder_Succeeds(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	order, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 25},
	))
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPending, order.PaymentStatus)
	require.Equal(t, domain.OrderConfirmed, order.OrderStatus)
	require.Equal(t, 50.0, order.TotalAmount)

	require.Equal(t, 2, f.store.instances[instID].TicketsSold)
	require.Len(t, f.store.outbox, 1)
	require.Equal(t, "order.created", f.store.outbox[0].EventType)
	require.Equal(t, order.ID.String(), f.store.outbox[0].DedupeKey)
}

func TestPlaceOrder_RejectsWhenSoldOut(t *testing.T) {
	f := newFixture(t, 5)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Workshop", 10, 9)

	_, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 10},
	))

	var capacityErr *domain.CapacityError
	require.ErrorAs(t, err, &capacityErr)
	require.Equal(t, 1, capacityErr.Remaining)
	require.Contains(t, capacityErr.Error(), "Workshop")
	require.Contains(t, capacityErr.Error(), "Available spots: 1")

	require.Equal(t, 9, f.store.instances[instID].TicketsSold)
	require.Empty(t, f.store.orders)
}

func TestPlaceOrder_EnforcesPerEventCap(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	inst1 := f.addInstance(eventID, "Recurring", 100, 0)
	inst2 := f.addInstance(eventID, "Recurring", 100, 0)

	// Two instances of the same event share one cap bucket.
	_, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: inst1, Quantity: 2, Price: 10},
		domain.CartLine{InstanceID: inst2, Quantity: 1, Price: 10},
	))

	var capErr *domain.CapError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, eventID, capErr.EventID)
	require.Empty(t, f.store.orders)
	require.Equal(t, 0, f.store.instances[inst1].TicketsSold)
}

func TestPlaceOrder_CapCountsPriorOrders(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 100, 0)

	_, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 10},
	))
	require.NoError(t, err)

	_, err = f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 10},
	))
	var capErr *domain.CapError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, 2, capErr.AlreadyBooked)
	require.Equal(t, 2, f.store.instances[instID].TicketsSold)
}

func TestPlaceOrder_AllOrNothing(t *testing.T) {
	f := newFixture(t, 10)
	event1 := uuid.New()
	event2 := uuid.New()
	open := f.addInstance(event1, "Open", 100, 0)
	full := f.addInstance(event2, "Full", 5, 5)

	_, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: open, Quantity: 1, Price: 10},
		domain.CartLine{InstanceID: full, Quantity: 1, Price: 10},
	))
	require.Error(t, err)

	// The passing line must not leave a partial increment or order behind.
	require.Equal(t, 0, f.store.instances[open].TicketsSold)
	require.Empty(t, f.store.orders)
	require.Empty(t, f.store.outbox)
}

func TestPlaceOrder_RetriesSerializationFailures(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Contended", 10, 0)
	f.store.txFailures = 2

	order, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 10},
	))
	require.NoError(t, err)
	require.NotNil(t, order)
	require.Equal(t, 1, f.store.instances[instID].TicketsSold)
}

func TestPlaceOrder_GivesUpAfterRetryBudget(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Contended", 10, 0)
	f.store.txFailures = 10

	_, err := f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 10},
	))
	require.ErrorIs(t, err, domain.ErrSerializationFailure)
}

func TestPlaceOrder_UnknownUser(t *testing.T) {
	f := newFixture(t, 2)
	instID := f.addInstance(uuid.New(), "Concert", 10, 0)

	_, err := f.orch.PlaceOrder(context.Background(), cartFor("ghost",
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 10},
	))
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPlaceOrder_ConcurrentOversellPrevented(t *testing.T) {
	f := newFixture(t, 1)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Hot show", 10, 0)

	for i := 0; i < 20; i++ {
		f.store.users[uuid.NewString()] = domain.User{}
	}
	userIDs := make([]string, 0, 20)
	for id := range f.store.users {
		userIDs = append(userIDs, id)
	}

	var wg sync.WaitGroup
	for _, uid := range userIDs {
		wg.Add(1)
		go func(uid string) {
			defer wg.Done()
			f.orch.PlaceOrder(context.Background(), cartFor(uid,
				domain.CartLine{InstanceID: instID, Quantity: 1, Price: 10},
			))
		}(uid)
	}
	wg.Wait()

	require.LessOrEqual(t, f.store.instances[instID].TicketsSold, 10)
	require.Equal(t, f.store.instances[instID].TicketsSold, len(f.store.orders))
}

func TestCreateSession_StashesCart(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	sessionID, url, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 25, Name: "Concert"},
	))
	require.NoError(t, err)
	require.NotEmpty(t, sessionID)
	require.NotEmpty(t, url)

	// No order and no capacity movement before payment.
	require.Empty(t, f.store.orders)
	require.Equal(t, 0, f.store.instances[instID].TicketsSold)

	cart, err := f.carts.Load(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, f.userID, cart.UserID)
}

func TestCreateSession_RejectsBeforeProvider(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Tiny venue", 1, 1)

	_, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 25},
	))
	var capacityErr *domain.CapacityError
	require.ErrorAs(t, err, &capacityErr)
	require.Zero(t, f.pay.sessions)
}

func TestFinalize_CreatesCompletedOrder(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	sessionID, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 25},
	))
	require.NoError(t, err)

	order, err := f.orch.Finalize(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentCompleted, order.PaymentStatus)
	require.Equal(t, sessionID, order.SessionID)
	require.Equal(t, 2, f.store.instances[instID].TicketsSold)

	// The cart is consumed.
	_, err = f.carts.Load(context.Background(), sessionID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalize_ReplaySafe(t *testing.T) {
	f := newFixture(t, 4)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	sessionID, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 25},
	))
	require.NoError(t, err)

	first, err := f.orch.Finalize(context.Background(), sessionID)
	require.NoError(t, err)

	// Webhook redelivery and the client success page both call again.
	for i := 0; i < 3; i++ {
		again, err := f.orch.Finalize(context.Background(), sessionID)
		require.NoError(t, err)
		require.Equal(t, first.ID, again.ID)
	}

	require.Equal(t, 2, f.store.instances[instID].TicketsSold)
	require.Len(t, f.store.orders, 1)
	require.Len(t, f.store.outbox, 1)
}

func TestFinalize_DuplicateWithCartStillPresent(t *testing.T) {
	f := newFixture(t, 4)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	sessionID, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 25},
	))
	require.NoError(t, err)

	first, err := f.orch.Finalize(context.Background(), sessionID)
	require.NoError(t, err)

	// Re-stash to simulate the second caller racing ahead of the discard.
	require.NoError(t, f.carts.Stash(context.Background(), sessionID, cartFor(f.userID,
		domain.CartLine{InstanceID: instID, EventID: eventID, Quantity: 1, Price: 25},
	), time.Minute))

	again, err := f.orch.Finalize(context.Background(), sessionID)
	require.NoError(t, err)
	require.Equal(t, first.ID, again.ID)
	require.Equal(t, 1, f.store.instances[instID].TicketsSold)
}

func TestFinalize_UnknownSession(t *testing.T) {
	f := newFixture(t, 2)

	_, err := f.orch.Finalize(context.Background(), "cs_test_missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFinalize_RejectsOverCap(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 100, 0)

	sessionID, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 25},
	))
	require.NoError(t, err)

	// The user maxes out their allowance between session creation and the
	// payment callback.
	_, err = f.orch.PlaceOrder(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 2, Price: 25},
	))
	require.NoError(t, err)

	_, err = f.orch.Finalize(context.Background(), sessionID)
	var capErr *domain.CapError
	require.ErrorAs(t, err, &capErr)
	require.Equal(t, 2, capErr.AlreadyBooked)

	// Only the synchronous order's tickets are committed.
	require.Equal(t, 2, f.store.instances[instID].TicketsSold)
	require.Len(t, f.store.orders, 1)
}

func TestAbandon_DiscardsCart(t *testing.T) {
	f := newFixture(t, 2)
	eventID := uuid.New()
	instID := f.addInstance(eventID, "Concert", 10, 0)

	sessionID, _, err := f.orch.CreateSession(context.Background(), cartFor(f.userID,
		domain.CartLine{InstanceID: instID, Quantity: 1, Price: 25},
	))
	require.NoError(t, err)

	require.NoError(t, f.orch.Abandon(context.Background(), sessionID))
	_, err = f.carts.Load(context.Background(), sessionID)
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, 0, f.store.instances[instID].TicketsSold)
}
