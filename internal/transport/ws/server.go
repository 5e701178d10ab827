// Package ws serves the chat websocket: it upgrades connections, turns each
// into a gateway session and dispatches inbound events to it.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/auth"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/gateway"
	"github.com/cwrk-planet/chat-service/internal/registry"
	"github.com/cwrk-planet/chat-service/internal/validation"
	"github.com/cwrk-planet/chat-service/pkg/logger"
)

type Gateway interface {
	Open(ch registry.Channel) *gateway.Session
	Join(s *gateway.Session, identity string) error
	Chat(ctx context.Context, s *gateway.Session, receiver, content string) (domain.Message, error)
	Leave(s *gateway.Session) error
	Close(s *gateway.Session)
}

// TokenVerifier resolves an access token to the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type Options struct {
	PingInterval   time.Duration
	ReadLimit      int64
	SendQueue      int
	// AllowedOrigins lists browser origins; empty means same host only.
	AllowedOrigins []string
	// Verifier is optional. When set, connections need a valid token and
	// may only join as the token's identity.
	Verifier TokenVerifier
}

type Server struct {
	upgrader websocket.Upgrader
	gw       Gateway
	log      *slog.Logger
	opts     Options

	mu    sync.Mutex
	conns map[*wsConn]struct{}
}

func NewServer(gw Gateway, log *slog.Logger, opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 15 * time.Second
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 1 << 20
	}
	if opts.SendQueue <= 0 {
		opts.SendQueue = 256
	}
	s := &Server{
		gw:    gw,
		log:   log.With("component", "ws"),
		opts:  opts,
		conns: make(map[*wsConn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// HandleWS serves GET /ws?access_token=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := s.log.With(logger.Args(logger.AttrsFromCtx(ctx))...)

	var tokenID string
	if s.opts.Verifier != nil {
		id, err := s.opts.Verifier.Verify(auth.TokenFromRequest(r))
		if err != nil {
			log.Info("ws unauthorized", "err", err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		tokenID = id
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		log.Warn("ws upgrade failed", "err", err)
		return
	}

	c := newWsConn(conn, s.opts.SendQueue, tokenID)
	s.track(c)
	defer s.untrack(c)

	sess := s.gw.Open(c)
	log = log.With("channel", c.ID())

	go c.writeLoop(s.opts.PingInterval)
	s.readLoop(ctx, log, c, sess)

	s.gw.Close(sess)
	if err := c.Close(); err != nil {
		log.Debug("ws close failed", "err", err)
	}
}

// readLoop handles the connection's events one at a time, in arrival order.
func (s *Server) readLoop(ctx context.Context, log *slog.Logger, c *wsConn, sess *gateway.Session) {
	c.conn.SetReadLimit(s.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("ws read failed", "err", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingInterval))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reply(log, c, errorMessage(CodeBadRequest, "malformed frame"))
			continue
		}
		s.dispatch(ctx, log, c, sess, env)
	}
}

func (s *Server) dispatch(ctx context.Context, log *slog.Logger, c *wsConn, sess *gateway.Session, env Envelope) {
	switch env.Type {
	case TypeJoin:
		var p JoinPayload
		if err := s.decodeValid(env.Payload, &p); err != nil {
			s.replyErr(log, c, err)
			return
		}
		if c.tokenID != "" && p.UserID != c.tokenID {
			log.Warn("ws join identity mismatch", "user", p.UserID)
			s.reply(log, c, errorMessage(CodeForbidden, "user_id does not match token"))
			return
		}
		if err := s.gw.Join(sess, p.UserID); err != nil {
			s.replyErr(log, c, err)
			return
		}
		s.reply(log, c, Message{Type: TypeJoined, Payload: JoinedPayload{UserID: sess.Identity()}})

	case TypePrivateMessage, TypeChat:
		var p ChatPayload
		if err := s.decodeValid(env.Payload, &p); err != nil {
			s.replyErr(log, c, err)
			return
		}
		msg, err := s.gw.Chat(ctx, sess, p.ReceiverID, p.Content)
		if err != nil {
			s.replyErr(log, c, err)
			return
		}
		s.reply(log, c, ack(msg))

	case TypeLeave:
		if err := s.gw.Leave(sess); err != nil {
			s.replyErr(log, c, err)
			return
		}
		s.reply(log, c, Message{Type: TypeLeft})

	default:
		s.reply(log, c, errorMessage(CodeBadRequest, "unknown event type "+env.Type))
	}
}

func (s *Server) decodeValid(raw json.RawMessage, dst any) error {
	if err := decode(raw, dst); err != nil {
		return domain.NewValidationError("payload", "is malformed")
	}
	return validation.Struct(dst)
}

func (s *Server) replyErr(log *slog.Logger, c *wsConn, err error) {
	code := CodeInternal
	switch {
	case errors.Is(err, domain.ErrSessionClosed):
		code = CodeClosed
	case errors.Is(err, domain.ErrNotJoined):
		code = CodeNotJoined
	case errors.Is(err, domain.ErrValidation):
		code = CodeValidation
	case errors.Is(err, domain.ErrStorage):
		code = CodeStorage
	}

	msg := err.Error()
	if code == CodeStorage || code == CodeInternal {
		msg = "message was not sent"
	}
	s.reply(log, c, errorMessage(code, msg))
}

func (s *Server) reply(log *slog.Logger, c *wsConn, msg Message) {
	if err := c.enqueue(msg); err != nil {
		log.Debug("ws reply dropped", "type", msg.Type, "err", err)
	}
}

// checkOrigin admits non-browser clients, listed origins and, with no list
// configured, same-host origins only. "*" must be listed explicitly.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.opts.AllowedOrigins, "*") {
		return true
	}
	if slices.Contains(s.opts.AllowedOrigins, origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

func (s *Server) track(c *wsConn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(c *wsConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// Shutdown closes every live connection. Hijacked connections are not
// covered by http.Server.Shutdown.
func (s *Server) Shutdown() {
	s.mu.Lock()
	conns := lo.Keys(s.conns)
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}
	s.log.Info("ws connections closed", "count", len(conns))
}
