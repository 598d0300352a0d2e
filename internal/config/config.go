package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	CRDBDSN      string
	MongoURI     string
	RedisAddr    string
	RabbitURL    string
	OTLPEndpoint string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPPass string
	MailFrom string

	PurchaseCap int
	CartTTL     time.Duration
	ReminderDue time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cap := envInt("PURCHASE_CAP", 2)

	cartTTL, _ := time.ParseDuration(os.Getenv("CART_TTL"))
	if cartTTL == 0 {
		cartTTL = 30 * time.Minute
	}

	reminderDue, _ := time.ParseDuration(os.Getenv("REMINDER_DUE"))
	if reminderDue == 0 {
		reminderDue = 24 * time.Hour
	}

	return &Config{
		CRDBDSN:      os.Getenv("CRDB_DSN"),
		MongoURI:     os.Getenv("MONGO_URI"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		RabbitURL:    os.Getenv("RABBIT_URL"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		CheckoutSuccessURL:  envDefault("CHECKOUT_SUCCESS_URL", "http://localhost:3000/order-success?payment=success"),
		CheckoutCancelURL:   envDefault("CHECKOUT_CANCEL_URL", "http://localhost:3000/payment-cancelled"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: envInt("SMTP_PORT", 587),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),
		MailFrom: envDefault("MAIL_FROM", "no-reply@plan-it.local"),

		PurchaseCap: cap,
		CartTTL:     cartTTL,
		ReminderDue: reminderDue,
	}, nil
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}
