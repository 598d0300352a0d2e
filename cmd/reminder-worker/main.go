package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/plan-it/planit/internal/adapters/crdb"
	"github.com/plan-it/planit/internal/config"
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

	worker := &ReminderWorker{repo: repo, due: cfg.ReminderDue, logger: logger}

	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("failed to create scheduler: %v", err)
	}
	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(9, 0, 0))),
		gocron.NewTask(worker.Sweep, context.Background()),
	)
	if err != nil {
		log.Fatalf("failed to schedule reminder job: %v", err)
	}
	sched.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	if err := sched.Shutdown(); err != nil {
		logger.Error("scheduler shutdown failed", err)
	}
	logger.Info("Shutdown reminder worker")
}

type ReminderWorker struct {
	repo   *crdb.Repository
	due    time.Duration
	logger observability.Logger
}

// Sweep finds every ticket holder whose event instance starts within the
// next reminder window and queues one reminder per attendee through the
// outbox. The job runs daily and the window is a day wide, so each instance
// is swept exactly once.
func (w *ReminderWorker) Sweep(ctx context.Context) {
	from := time.Now().Add(w.due)
	to := from.Add(24 * time.Hour)

	attendees, err := w.repo.ListUpcomingAttendees(ctx, from, to)
	if err != nil {
		w.logger.Error("failed to list upcoming attendees", err)
		return
	}
	if len(attendees) == 0 {
		return
	}

	err = w.repo.WithTx(ctx, func(tx pgx.Tx) error {
		for _, a := range attendees {
			payload, _ := json.Marshal(map[string]interface{}{
				"user_id":     a.UserID,
				"event_id":    a.EventID,
				"instance_id": a.InstanceID,
				"title":       a.EventTitle,
				"starts_at":   a.StartsAt.Format(time.RFC3339),
				"location":    a.Location,
			})
			record := crdb.OutboxRecord{
				ID:            uuid.New(),
				AggregateType: "event_instance",
				AggregateID:   a.InstanceID,
				EventType:     "event.reminder",
				Payload:       payload,
				DedupeKey:     "reminder:" + a.InstanceID.String() + ":" + a.UserID,
			}
			if err := w.repo.InsertOutbox(ctx, tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		w.logger.Error("failed to queue reminders", err)
		return
	}
	w.logger.WithField("count", len(attendees)).Info("queued event reminders")
}
