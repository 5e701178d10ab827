//go:generate go run go.uber.org/mock/mockgen -source=registry.go -destination=../mocks/mock_registry.go -package=mocks

// Package registry tracks which live channels are bound to which
// participant. It is the only shared mutable state of the relay path.
package registry

import (
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Channel is one live delivery endpoint, e.g. a websocket connection.
// Implementations must be comparable; the registry keys on the value.
type Channel interface {
	ID() string
	Push(msg domain.Message) error
}

// Binding ties one channel to the identity it joined as.
type Binding struct {
	Identity string
	Channel  Channel
	JoinedAt time.Time
}

// Registry maps identities to their live channels. Safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	byIdentity map[string]map[Channel]struct{}
	byChannel  map[Channel]Binding
	now        func() time.Time
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		byIdentity: make(map[string]map[Channel]struct{}),
		byChannel:  make(map[Channel]Binding),
		now:        time.Now,
	}
}

// Bind registers ch under identity. Binding a channel again under the same
// identity returns the existing binding; under another identity it moves.
func (r *Registry) Bind(identity string, ch Channel) Binding {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.byChannel[ch]; ok {
		if b.Identity == identity {
			return b
		}
		r.removeLocked(b)
	}

	b := Binding{Identity: identity, Channel: ch, JoinedAt: r.now()}
	set, ok := r.byIdentity[identity]
	if !ok {
		set = make(map[Channel]struct{})
		r.byIdentity[identity] = set
	}
	set[ch] = struct{}{}
	r.byChannel[ch] = b
	return b
}

// Unbind removes the binding of ch, whichever identity holds it.
func (r *Registry) Unbind(ch Channel) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.byChannel[ch]
	if !ok {
		return Binding{}, false
	}
	r.removeLocked(b)
	return b, true
}

func (r *Registry) removeLocked(b Binding) {
	delete(r.byChannel, b.Channel)
	if set, ok := r.byIdentity[b.Identity]; ok {
		delete(set, b.Channel)
		if len(set) == 0 {
			delete(r.byIdentity, b.Identity)
		}
	}
}

// ChannelsFor returns a snapshot of the channels bound to identity.
func (r *Registry) ChannelsFor(identity string) []Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return lo.Keys(r.byIdentity[identity])
}

func (r *Registry) bindingOf(ch Channel) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byChannel[ch]
	return b, ok
}

func (r *Registry) Online(identity string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byIdentity[identity]) > 0
}

// Len is the number of bound channels.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byChannel)
}
