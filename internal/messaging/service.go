// Package messaging provides the notification dispatch layer for the
// automation agents.
//
// A Dispatcher fans a message out to one named channel (email, chat, sms).
// It never returns an error to the caller: transport failures are logged and
// reported as a boolean, and channels that are not configured are no-ops
// that report success so agents proceed without blocking on unconfigured
// transports.
package messaging

import (
	"context"
	"log/slog"

	"github.com/edumesones/clientflow-pro/internal/models"
)

// Sender delivers a message over a single transport.
type Sender interface {
	// Send delivers body to recipient. Subject may be empty for transports
	// without one (SMS, chat).
	Send(ctx context.Context, recipient, subject, body string) error
}

// Opts holds the per-channel senders for a Dispatcher.
type Opts struct {
	senders map[models.Channel]Sender
}

// Option defines a configuration option for a Dispatcher.
type Option func(*Opts)

// WithSender registers a sender for the given channel, enabling it.
func WithSender(channel models.Channel, s Sender) Option {
	return func(o *Opts) { o.senders[channel] = s }
}

// Dispatcher routes outgoing notifications to per-channel senders.
type Dispatcher struct {
	senders map[models.Channel]Sender
}

// NewDispatcher creates a Dispatcher with the configured channel senders.
// Channels without a registered sender are treated as disabled.
func NewDispatcher(opts ...Option) *Dispatcher {
	cfg := Opts{senders: make(map[models.Channel]Sender)}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Dispatcher{senders: cfg.senders}
}

// Send delivers a message over the named channel and reports success.
// Disabled channels succeed without sending; invalid input and transport
// errors report failure. Send never panics and never returns an error.
func (d *Dispatcher) Send(ctx context.Context, channel models.Channel, recipient, subject, body string) bool {
	if !models.IsValidChannel(channel) {
		slog.Warn("Dispatcher.Send: unknown channel", "channel", channel)
		return false
	}
	if recipient == "" {
		slog.Warn("Dispatcher.Send: empty recipient", "channel", channel)
		return false
	}

	sender, ok := d.senders[channel]
	if !ok {
		slog.Debug("Dispatcher.Send: channel disabled, skipping", "channel", channel, "to", recipient)
		return true
	}

	if err := sender.Send(ctx, recipient, subject, body); err != nil {
		slog.Error("Dispatcher.Send failed", "error", err, "channel", channel, "to", recipient)
		return false
	}
	slog.Debug("Dispatcher.Send succeeded", "channel", channel, "to", recipient)
	return true
}

// Enabled reports whether the named channel has a registered sender.
func (d *Dispatcher) Enabled(channel models.Channel) bool {
	_, ok := d.senders[channel]
	return ok
}
