package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/plan-it/planit/internal/adapters/crdb"
	mongoadapter "github.com/plan-it/planit/internal/adapters/mongo"
	"github.com/plan-it/planit/internal/adapters/rabbit"
	"github.com/plan-it/planit/internal/config"
	"github.com/plan-it/planit/internal/mailer"
	"github.com/plan-it/planit/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.CRDBDSN)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	notifications := mongoadapter.NewNotificationStore(mongoClient.Database("planit"), logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})

	mail, err := mailer.NewMailer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create mailer: %v", err)
	}

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, "notifications", "order.*", "event.reminder", "newsletter.subscribed")
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}

	notifier := &Notifier{
		repo:          repo,
		notifications: notifications,
		redis:         redisClient,
		mailer:        mail,
		logger:        logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	go notifier.Run(ctx, deliveries)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown notifier")
}

type Notifier struct {
	repo          *crdb.Repository
	notifications *mongoadapter.NotificationStore
	redis         *redisclient.Client
	mailer        *mailer.Mailer
	logger        observability.Logger
}

func (n *Notifier) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			n.handle(ctx, d)
		}
	}
}

// handle processes one delivery at-least-once. The outbox publisher can
// redeliver with the same MessageId, so a 24h dedupe window in redis keeps
// users from being notified twice.
func (n *Notifier) handle(ctx context.Context, d amqp.Delivery) {
	if d.MessageId != "" {
		fresh, err := n.redis.SetNX(ctx, "notified:"+d.MessageId, 1, 24*time.Hour).Result()
		if err == nil && !fresh {
			d.Ack(false)
			return
		}
	}

	var err error
	switch d.RoutingKey {
	case "order.created":
		err = n.handleOrderCreated(ctx, d.Body)
	case "event.reminder":
		err = n.handleEventReminder(ctx, d.Body)
	case "newsletter.subscribed":
		err = n.handleNewsletterSubscribed(ctx, d.Body)
	default:
		d.Ack(false)
		return
	}
	if err != nil {
		n.logger.WithField("routing_key", d.RoutingKey).Error("failed to handle delivery", err)
		d.Nack(false, true)
		return
	}
	d.Ack(false)
}

func (n *Notifier) handleOrderCreated(ctx context.Context, body []byte) error {
	var payload struct {
		OrderID     string  `json:"order_id"`
		UserID      string  `json:"user_id"`
		TotalAmount float64 `json:"total_amount"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}

	message := fmt.Sprintf("Your order %s has been confirmed. Total: $%.2f", payload.OrderID, payload.TotalAmount)
	if err := n.notifications.Add(ctx, payload.UserID, message); err != nil {
		return err
	}

	user, err := n.repo.GetUserByExternalID(ctx, payload.UserID)
	if err != nil {
		// The in-app notification is stored; email is best effort.
		n.logger.WithField("user_id", payload.UserID).Warn("user lookup for email failed", err)
		return nil
	}
	if err := n.mailer.Send(ctx, user.Email, "Order confirmed", message); err != nil {
		n.logger.WithField("user_id", payload.UserID).Warn("order email failed", err)
	}
	return nil
}

func (n *Notifier) handleNewsletterSubscribed(ctx context.Context, body []byte) error {
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}

	message := "Thanks for subscribing to the Plan-It newsletter. You will hear about new events first."
	if err := n.mailer.Send(ctx, payload.Email, "Welcome to the Plan-It newsletter", message); err != nil {
		n.logger.WithField("email", payload.Email).Warn("subscription email failed", err)
	}
	return nil
}

func (n *Notifier) handleEventReminder(ctx context.Context, body []byte) error {
	var payload struct {
		UserID   string `json:"user_id"`
		Title    string `json:"title"`
		StartsAt string `json:"starts_at"`
		Location string `json:"location"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return err
	}

	message := fmt.Sprintf("Reminder: %s starts at %s (%s)", payload.Title, payload.StartsAt, payload.Location)
	if err := n.notifications.Add(ctx, payload.UserID, message); err != nil {
		return err
	}

	user, err := n.repo.GetUserByExternalID(ctx, payload.UserID)
	if err != nil {
		n.logger.WithField("user_id", payload.UserID).Warn("user lookup for email failed", err)
		return nil
	}
	if err := n.mailer.Send(ctx, user.Email, "Upcoming event reminder", message); err != nil {
		n.logger.WithField("user_id", payload.UserID).Warn("reminder email failed", err)
	}
	return nil
}
