// Package notify defines the outbound-notification capability the engine
// consumes. Rendering and delivery belong to the implementation; the
// engine only supplies a template tag and a context payload.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is one delivery request.
type Message struct {
	Channel     string
	RecipientID string
	TemplateTag string
	Context     map[string]any
}

// Notifier attempts delivery of a single message and reports the outcome.
// A failure never rolls back the state change that produced the message;
// the persisted offer is the source of truth.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, msg Message) error

func (f Func) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// LogNotifier writes every message to the log instead of delivering it.
// Used in development and as the default sink when no real sender is
// configured.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.Info().
		Str("channel", msg.Channel).
		Str("recipient_id", msg.RecipientID).
		Str("template", msg.TemplateTag).
		Interface("context", msg.Context).
		Msg("notification dispatched")
	return nil
}
