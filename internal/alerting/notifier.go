package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	mail "github.com/wneessen/go-mail"
)

// Request is one notification to deliver.
type Request struct {
	To      string
	Subject string
	Body    string
}

// Notifier defines the delivery transport. Failures are reported to the
// caller and never retried here.
type Notifier interface {
	Send(ctx context.Context, req Request) error
}

// SMTPOptions parameterise the mail transport.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

// SMTPNotifier delivers notifications as plain-text email.
type SMTPNotifier struct {
	opts   SMTPOptions
	client *mail.Client
	logger zerolog.Logger
}

// NewSMTPNotifier constructs the mail notifier.
func NewSMTPNotifier(opts SMTPOptions, logger zerolog.Logger) (*SMTPNotifier, error) {
	if opts.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if opts.From == "" {
		return nil, errors.New("smtp from address required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	clientOpts := []mail.Option{
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if opts.Port > 0 {
		clientOpts = append(clientOpts, mail.WithPort(opts.Port))
	}
	if opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(opts.Username),
			mail.WithPassword(opts.Password),
		)
	}

	client, err := mail.NewClient(opts.Host, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPNotifier{
		opts:   opts,
		client: client,
		logger: logger.With().Str("component", "smtp_notifier").Logger(),
	}, nil
}

// Send delivers one message.
func (n *SMTPNotifier) Send(ctx context.Context, req Request) error {
	if req.To == "" {
		return errors.New("recipient address required")
	}

	msg := mail.NewMsg()
	if err := msg.From(n.opts.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(req.To); err != nil {
		return fmt.Errorf("set recipient %s: %w", req.To, err)
	}
	msg.Subject(req.Subject)
	msg.SetBodyString(mail.TypeTextPlain, req.Body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", req.To, err)
	}

	n.logger.Info().Str("to", req.To).Str("subject", req.Subject).Msg("mail sent")
	return nil
}

var _ Notifier = (*SMTPNotifier)(nil)
