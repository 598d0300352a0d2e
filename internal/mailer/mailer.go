package mailer

import (
	"context"

	"github.com/wneessen/go-mail"

	"github.com/plan-it/planit/internal/config"
	"github.com/plan-it/planit/internal/observability"
)

// Mailer sends transactional email over SMTP. A Mailer with no host
// configured is a no-op, which keeps local development working without a
// mail relay.
type Mailer struct {
	client *mail.Client
	from   string
	logger observability.Logger
}

func NewMailer(cfg *config.Config, logger observability.Logger) (*Mailer, error) {
	if cfg.SMTPHost == "" {
		return &Mailer{from: cfg.MailFrom, logger: logger}, nil
	}

	client, err := mail.NewClient(
		cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPass),
	)
	if err != nil {
		return nil, err
	}
	return &Mailer{client: client, from: cfg.MailFrom, logger: logger}, nil
}

func (m *Mailer) Send(ctx context.Context, to, subject, body string) error {
	if m.client == nil {
		m.logger.WithField("to", to).Info("mailer disabled, skipping: " + subject)
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return err
	}
	if err := msg.To(to); err != nil {
		return err
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	return m.client.DialAndSendWithContext(ctx, msg)
}
