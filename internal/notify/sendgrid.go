package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

const (
	defaultSendTimeout = 10 * time.Second
	defaultSendRetries = 2
	defaultRetryBase   = 500 * time.Millisecond
)

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer sends reports as HTML email.
type SendGridMailer struct {
	client    mailSender
	from      *mail.Email
	timeout   time.Duration
	retries   uint64
	retryBase time.Duration
}

// NewSendGridMailer builds a mailer for apiKey sending from fromAddress.
func NewSendGridMailer(apiKey, fromAddress string, timeout time.Duration) (*SendGridMailer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("sendgrid api key required")
	}
	return newSendGridMailer(sendgrid.NewSendClient(apiKey), fromAddress, timeout)
}

func newSendGridMailer(client mailSender, fromAddress string, timeout time.Duration) (*SendGridMailer, error) {
	if strings.TrimSpace(fromAddress) == "" {
		return nil, errors.New("sendgrid sender address required")
	}
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	return &SendGridMailer{
		client:    client,
		from:      mail.NewEmail("Mealbox", strings.TrimSpace(fromAddress)),
		timeout:   timeout,
		retries:   defaultSendRetries,
		retryBase: defaultRetryBase,
	}, nil
}

// Send delivers msg to all recipients in one email. 5xx and 429 responses
// are retried with exponential backoff.
func (m *SendGridMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "build email")
	}
	email := m.build(msg)

	backoff := retry.WithMaxRetries(m.retries, retry.NewExponential(m.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		sendCtx, cancel := context.WithTimeout(ctx, m.timeout)
		defer cancel()

		resp, err := m.client.SendWithContext(sendCtx, email)
		if err != nil {
			return retry.RetryableError(err)
		}
		switch {
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			return retry.RetryableError(fmt.Errorf("sendgrid status %d", resp.StatusCode))
		case resp.StatusCode >= 300:
			return fmt.Errorf("sendgrid status %d: %s", resp.StatusCode, resp.Body)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "send email")
	}
	return nil
}

func (m *SendGridMailer) build(msg Message) *mail.SGMailV3 {
	email := mail.NewV3Mail()
	email.SetFrom(m.from)
	email.Subject = msg.Subject

	p := mail.NewPersonalization()
	for _, r := range msg.Recipients {
		p.AddTos(mail.NewEmail("", r))
	}
	email.AddPersonalizations(p)
	email.AddContent(mail.NewContent("text/html", msg.Body))
	return email
}
