package gateway

import (
	"sync"
	"time"

	"github.com/cwrk-planet/chat-service/internal/registry"
)

type State int

const (
	StateOpen State = iota
	StateBound
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateBound:
		return "bound"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the lifecycle of one channel. Transitions go through the
// Gateway; the fields are guarded by mu.
type Session struct {
	ch       registry.Channel
	openedAt time.Time

	mu       sync.Mutex
	state    State
	identity string
}

func (s *Session) Channel() registry.Channel { return s.ch }

func (s *Session) OpenedAt() time.Time { return s.openedAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity is the bound participant, "" unless the session is bound.
func (s *Session) Identity() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}
