package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type fakeChannel struct{ id string }

func (c *fakeChannel) ID() string { return c.id }
func (c *fakeChannel) Push(domain.Message) error { return nil }

func TestBind_MultiDevice(t *testing.T) {
	req := require.New(t)
	r := New()
	c1, c2 := &fakeChannel{"c1"}, &fakeChannel{"c2"}

	r.Bind("alice", c1)
	r.Bind("alice", c2)

	req.ElementsMatch([]Channel{c1, c2}, r.ChannelsFor("alice"))
	req.True(r.Online("alice"))
	req.Equal(2, r.Len())
}

func TestBind_IdempotentPerChannel(t *testing.T) {
	req := require.New(t)
	r := New()
	c1 := &fakeChannel{"c1"}

	first := r.Bind("alice", c1)
	second := r.Bind("alice", c1)

	req.Equal(first, second)
	req.Len(r.ChannelsFor("alice"), 1)
	req.Equal(1, r.Len())
}

func TestBind_MovesChannelToNewIdentity(t *testing.T) {
	req := require.New(t)
	r := New()
	c1 := &fakeChannel{"c1"}

	r.Bind("alice", c1)
	b := r.Bind("bob", c1)

	req.Equal("bob", b.Identity)
	req.Empty(r.ChannelsFor("alice"))
	req.False(r.Online("alice"))
	req.Equal([]Channel{c1}, r.ChannelsFor("bob"))
	req.Equal(1, r.Len())
}

func TestUnbind(t *testing.T) {
	req := require.New(t)
	r := New()
	c1, c2 := &fakeChannel{"c1"}, &fakeChannel{"c2"}
	r.Bind("alice", c1)
	r.Bind("alice", c2)

	b, ok := r.Unbind(c1)
	req.True(ok)
	req.Equal("alice", b.Identity)
	req.Equal([]Channel{c2}, r.ChannelsFor("alice"))

	_, ok = r.Unbind(c1)
	req.False(ok, "second unbind is a no-op")

	_, ok = r.Unbind(&fakeChannel{"never"})
	req.False(ok)

	r.Unbind(c2)
	req.Empty(r.ChannelsFor("alice"))
	req.Equal(0, r.Len())
	_, ok = r.bindingOf(c2)
	req.False(ok)
}

func TestChannelsFor_ReturnsSnapshot(t *testing.T) {
	r := New()
	c1 := &fakeChannel{"c1"}
	r.Bind("alice", c1)

	snap := r.ChannelsFor("alice")
	r.Unbind(c1)

	require.Len(t, snap, 1)
	require.Empty(t, r.ChannelsFor("alice"))
}

func TestRegistry_ConcurrentBindUnbind(t *testing.T) {
	r := New()
	const n = 64

	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ch := &fakeChannel{fmt.Sprint(i)}
			r.Bind("alice", ch)
			_ = r.ChannelsFor("alice")
			if i%2 == 0 {
				r.Unbind(ch)
			}
		}(i)
	}
	wg.Wait()

	require.Len(t, r.ChannelsFor("alice"), n/2)
	require.Equal(t, n/2, r.Len())
}
