package outbox

import (
	"context"
	"time"

	"github.com/plan-it/planit/internal/adapters/crdb"
	"github.com/plan-it/planit/internal/adapters/rabbit"
	"github.com/plan-it/planit/internal/observability"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	repo      *crdb.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *crdb.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

// Run drains NEW outbox rows to the topic exchange. Rows are only marked
// published after a successful publish; a crash in between republishes with
// the same dedupe key, so consumers must deduplicate on MessageId.
func (p *Publisher) Run(ctx context.Context, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.drain(ctx, batch)
		}
	}
}

func (p *Publisher) drain(ctx context.Context, batch int) {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batch)
	if err != nil {
		p.logger.WithError(err).Error("failed to read outbox")
		return
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			p.logger.WithField("outbox_id", rec.ID).WithError(err).Error("failed to publish outbox record")
			continue
		}
		observability.OutboxLag.Set(time.Since(rec.CreatedAt).Seconds())
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.WithField("outbox_id", rec.ID).WithError(err).Error("failed to mark outbox record published")
		}
	}
}
