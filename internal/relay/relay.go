// Package relay persists outgoing private messages and pushes them to the
// receiver's live channels.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/registry"
	"github.com/cwrk-planet/chat-service/internal/store"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

// Locator resolves the live channels of a participant.
type Locator interface {
	ChannelsFor(identity string) []registry.Channel
}

type Relay struct {
	store      store.Appender
	channels   Locator
	log        *slog.Logger
	maxContent int
}

type Option func(*Relay)

// WithMaxContentLength rejects longer contents; n <= 0 disables the check.
func WithMaxContentLength(n int) Option {
	return func(r *Relay) { r.maxContent = n }
}

func New(st store.Appender, channels Locator, log *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		store:      st,
		channels:   channels,
		log:        log.With("component", "relay"),
		maxContent: 4000,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send validates and persists the message, then pushes it to every channel
// bound to the receiver. Nothing is pushed unless persistence succeeded;
// push failures are logged and do not fail the call.
func (r *Relay) Send(ctx context.Context, sender, receiver, content string) (domain.Message, error) {
	msg := domain.Message{SenderID: sender, ReceiverID: receiver, Content: content}
	if err := msg.Validate(r.maxContent); err != nil {
		metrics.MessagesRejected.WithLabelValues("validation").Inc()
		return domain.Message{}, err
	}

	start := time.Now()
	saved, err := r.store.Append(ctx, msg)
	metrics.StoreDuration.WithLabelValues("append").Observe(time.Since(start).Seconds())
	if err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = domain.NewStorageError("append", err)
		}
		metrics.MessagesRejected.WithLabelValues("storage").Inc()
		r.log.ErrorContext(ctx, "persist message failed",
			append(logger.Args(logger.AttrsFromCtx(ctx)),
				"sender", sender, "receiver", receiver, "err", err)...)
		return domain.Message{}, err
	}
	metrics.MessagesRelayed.Inc()

	delivered := r.fanout(ctx, saved)
	r.log.DebugContext(ctx, "message relayed",
		"id", saved.ID, "sender", saved.SenderID, "receiver", saved.ReceiverID, "delivered", delivered)
	return saved, nil
}

func (r *Relay) fanout(ctx context.Context, msg domain.Message) int {
	delivered := 0
	for _, ch := range r.channels.ChannelsFor(msg.ReceiverID) {
		if err := ch.Push(msg); err != nil {
			derr := &domain.DeliveryError{Identity: msg.ReceiverID, Err: err}
			metrics.Deliveries.WithLabelValues("failed").Inc()
			r.log.WarnContext(ctx, "push failed", "channel", ch.ID(), "id", msg.ID, "err", derr)
			continue
		}
		metrics.Deliveries.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}
