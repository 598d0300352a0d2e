package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("planit")
	notifications := mongoadapter.NewNotificationStore(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	redisCache := redisadapter.NewCache(redisClient)
	redisIdemp := redisadapter.NewIdempotency(redisClient)
	idemp := idempotency.NewIdempotency(redisIdemp, time.Hour)
	rl := rateLimit.NewRateLimiter(redisCache)

	payments := stripeadapter.NewPayments(cfg)

	capLedger := capacity.NewLedger(repo)
	guard := purchasecap.NewGuard(repo, cfg.PurchaseCap)
	orderLedger := orders.NewLedger(repo)
	orchestrator := checkout.NewOrchestrator(
		repo, repo, capLedger, guard, orderLedger,
		redisCache, payments, repo, cfg.CartTTL, logger,
	)

	handlers := httphandler.NewHandlers(
		cfg, repo, orchestrator, guard, orderLedger,
		payments, notifications, audit, idemp, logger,
	)

	r := httphandler.SetupRouter(handlers, logger, rl, idemp)

	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
