package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plan-it/planit/internal/adapters/crdb"
	mongoadapter "github.com/plan-it/planit/internal/adapters/mongo"
	redisadapter "github.com/plan-it/planit/internal/adapters/redis"
	stripeadapter "github.com/plan-it/planit/internal/adapters/stripe"
	"github.com/plan-it/planit/internal/capacity"
	"github.com/plan-it/planit/internal/checkout"
	"github.com/plan-it/planit/internal/config"
	httphandler "github.com/plan-it/planit/internal/http"
	"github.com/plan-it/planit/internal/idempotency"
	"github.com/plan-it/planit/internal/observability"
	"github.com/plan-it/planit/internal/orders"
	"github.com/plan-it/planit/internal/purchasecap"
	"github.com/plan-it/planit/internal/rateLimit"
)

func TestIntegration_CheckoutFlow(t *testing.T) {
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp", "8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer crdbContainer.Terminate(ctx)

	mongoContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer mongoContainer.Terminate(ctx)

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForExec([]string{"redis-cli", "ping"}),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	defer redisContainer.Terminate(ctx)

	crdbHost, err := crdbContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	crdbPort, err := crdbContainer.MappedPort(ctx, "26257")
	if err != nil {
		t.Fatal(err)
	}
	mongoHost, err := mongoContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	mongoPort, err := mongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		t.Fatal(err)
	}
	redisHost, err := redisContainer.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		CRDBDSN:     "postgresql://root@" + crdbHost + ":" + crdbPort.Port() + "/planit?sslmode=disable",
		MongoURI:    "mongodb://" + mongoHost + ":" + mongoPort.Port(),
		RedisAddr:   redisHost + ":" + redisPort.Port(),
		PurchaseCap: 2,
		CartTTL:     30 * time.Minute,
	}

	pool, err := pgxpool.New(ctx, cfg.CRDBDSN)
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Close()
	if _, err := pool.Exec(ctx, `CREATE DATABASE IF NOT EXISTS planit`); err != nil {
		t.Fatal(err)
	}
	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatal(err)
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		t.Fatal(err)
	}
	defer mongoClient.Disconnect(ctx)
	mongoDB := mongoClient.Database("planit")
	logger := observability.NewLogger()
	notifications := mongoadapter.NewNotificationStore(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	payments := stripeadapter.NewPayments(cfg)
	guard := purchasecap.NewGuard(repo, cfg.PurchaseCap)
	orderLedger := orders.NewLedger(repo)
	orchestrator := checkout.NewOrchestrator(
		repo, repo, capacity.NewLedger(repo), guard, orderLedger,
		redisCache, payments, repo, cfg.CartTTL, logger,
	)

	handlers := httphandler.NewHandlers(
		cfg, repo, orchestrator, guard, orderLedger,
		payments, notifications, audit, idemp, logger,
	)
	srv := httptest.NewServer(httphandler.SetupRouter(handlers, logger, rl, idemp))
	defer srv.Close()

	post := func(path string, body map[string]interface{}, key string) (*http.Response, []byte) {
		t.Helper()
		data, _ := json.Marshal(body)
		req, _ := http.NewRequest("POST", srv.URL+path, bytes.NewReader(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", key)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return resp, respBody
	}

	// Register a user.
	resp, _ := post("/users", map[string]interface{}{
		"id":    "user-1",
		"name":  "Test User",
		"email": "test@example.com",
	}, uuid.NewString())
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /users, got %d", resp.StatusCode)
	}

	// Create an event with three seats.
	resp, body := post("/event", map[string]interface{}{
		"organizerId":  "org-1",
		"title":        "Integration Night",
		"startsAt":     time.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"location":     "Hall A",
		"maxAttendees": 3,
		"ticketPrice":  25.0,
	}, uuid.NewString())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from /event, got %d: %s", resp.StatusCode, body)
	}
	var eventResp struct {
		Event struct {
			ID uuid.UUID `json:"id"`
		} `json:"event"`
	}
	if err := json.Unmarshal(body, &eventResp); err != nil {
		t.Fatal(err)
	}

	instResp, err := http.Get(srv.URL + "/event/" + eventResp.Event.ID.String() + "/instances")
	if err != nil {
		t.Fatal(err)
	}
	instBody, _ := io.ReadAll(instResp.Body)
	instResp.Body.Close()
	var instances []struct {
		ID uuid.UUID `json:"id"`
	}
	if err := json.Unmarshal(instBody, &instances); err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 {
		t.Fatalf("expected 1 instance, got %d", len(instances))
	}

	// Place a pay-on-delivery order for two tickets.
	orderReq := map[string]interface{}{
		"userId": "user-1",
		"tickets": []map[string]interface{}{
			{"eventInstanceId": instances[0].ID.String(), "quantity": 2, "price": 25.0},
		},
		"totalAmount": 50.0,
	}
	orderKey := uuid.NewString()
	resp, body = post("/order", orderReq, orderKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 from /order, got %d: %s", resp.StatusCode, body)
	}
	var orderResp struct {
		ID            uuid.UUID `json:"id"`
		PaymentStatus string    `json:"paymentStatus"`
	}
	if err := json.Unmarshal(body, &orderResp); err != nil {
		t.Fatal(err)
	}
	if orderResp.PaymentStatus != "Pending" {
		t.Errorf("expected Pending payment, got %s", orderResp.PaymentStatus)
	}

	// Replaying the same Idempotency-Key must not create a second order.
	resp, replayBody := post("/order", orderReq, orderKey)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", resp.StatusCode)
	}
	if !bytes.Equal(body, replayBody) {
		t.Error("expected replay to return the recorded response")
	}

	// The purchase cap (2) is now exhausted for this user and event.
	resp, body = post("/order", map[string]interface{}{
		"userId": "user-1",
		"tickets": []map[string]interface{}{
			{"eventInstanceId": instances[0].ID.String(), "quantity": 1, "price": 25.0},
		},
		"totalAmount": 25.0,
	}, uuid.NewString())
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected cap rejection 400, got %d: %s", resp.StatusCode, body)
	}

	// Ticket count reflects the single successful order.
	countResp, err := http.Get(srv.URL + "/user-ticket-count/user-1/" + eventResp.Event.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	countBody, _ := io.ReadAll(countResp.Body)
	countResp.Body.Close()
	var count struct {
		TotalTicketsBooked int `json:"totalTicketsBooked"`
	}
	if err := json.Unmarshal(countBody, &count); err != nil {
		t.Fatal(err)
	}
	if count.TotalTicketsBooked != 2 {
		t.Errorf("expected 2 tickets booked, got %d", count.TotalTicketsBooked)
	}
}
