// Package gateway owns the channel lifecycle: it opens sessions, binds them
// to an identity on join, relays chat events from bound sessions and unbinds
// them on leave or close.
package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/metrics"
	"github.com/cwrk-planet/chat-service/internal/registry"
)

type Binder interface {
	Bind(identity string, ch registry.Channel) registry.Binding
	Unbind(ch registry.Channel) (registry.Binding, bool)
}

type Sender interface {
	Send(ctx context.Context, sender, receiver, content string) (domain.Message, error)
}

// Gateway drives session state and is shared by all connections.
type Gateway struct {
	binder Binder
	relay  Sender
	log    *slog.Logger
	now    func() time.Time
}

func New(binder Binder, relay Sender, log *slog.Logger) *Gateway {
	return &Gateway{
		binder: binder,
		relay:  relay,
		log:    log.With("component", "gateway"),
		now:    time.Now,
	}
}

func (g *Gateway) Open(ch registry.Channel) *Session {
	metrics.SessionEvents.WithLabelValues("open").Inc()
	g.log.Debug("session opened", "channel", ch.ID())
	return &Session{ch: ch, openedAt: g.now(), state: StateOpen}
}

// Join binds the session to identity. Joining a bound session under a new
// identity replaces its binding. The identity is trusted as presented.
func (g *Gateway) Join(s *Session, identity string) error {
	if err := domain.ValidateIdentity("user_id", identity); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return domain.ErrSessionClosed
	}
	prev := s.identity
	g.binder.Bind(identity, s.ch)
	s.state = StateBound
	s.identity = identity

	metrics.SessionEvents.WithLabelValues("join").Inc()
	if prev != "" && prev != identity {
		g.log.Info("session rebound", "channel", s.ch.ID(), "from", prev, "to", identity)
	} else {
		g.log.Info("session joined", "channel", s.ch.ID(), "user", identity)
	}
	return nil
}

// Chat relays a message from the session's identity to receiver. The
// session lock is not held while relaying, so Close never waits on storage.
func (g *Gateway) Chat(ctx context.Context, s *Session, receiver, content string) (domain.Message, error) {
	s.mu.Lock()
	state, sender := s.state, s.identity
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return domain.Message{}, domain.ErrSessionClosed
	case StateOpen:
		return domain.Message{}, domain.ErrNotJoined
	}
	return g.relay.Send(ctx, sender, receiver, content)
}

// Leave unbinds a bound session and returns it to the open state.
func (g *Gateway) Leave(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return domain.ErrSessionClosed
	case StateOpen:
		return domain.ErrNotJoined
	}
	g.binder.Unbind(s.ch)
	g.log.Info("session left", "channel", s.ch.ID(), "user", s.identity)
	s.state = StateOpen
	s.identity = ""
	metrics.SessionEvents.WithLabelValues("leave").Inc()
	return nil
}

// Close moves the session to closed from any state. Idempotent.
func (g *Gateway) Close(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateClosed {
		return
	}
	if s.state == StateBound {
		g.binder.Unbind(s.ch)
	}
	g.log.Debug("session closed", "channel", s.ch.ID(), "user", s.identity,
		"duration", g.now().Sub(s.openedAt).String())
	s.state = StateClosed
	s.identity = ""
	metrics.SessionEvents.WithLabelValues("close").Inc()
}
