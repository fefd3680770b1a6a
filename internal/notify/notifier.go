// Package notify delivers operational reports to the support team.
package notify

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/multierr"
)

// Message is one report. Body is rendered HTML.
type Message struct {
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
	Body       string   `json:"body"`
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("notification subject required")
	}
	if len(m.Recipients) == 0 {
		return errors.New("notification recipients required")
	}
	return nil
}

// Notifier sends a message. Callers treat failures as best-effort.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Noop drops every message.
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, msg Message) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, msg))
	}
	return errs
}
