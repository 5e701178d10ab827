// Package storetest holds the behaviour every store backend must satisfy.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

// Factory returns an empty store; cleanup is registered on t.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("AppendAssignsIdentityAndTimestamp", func(t *testing.T) { testAppendAssigns(t, newStore(t)) })
	t.Run("AppendKeepsSuppliedTimestamp", func(t *testing.T) { testAppendKeepsTimestamp(t, newStore(t)) })
	t.Run("HistoryIsUnordered", func(t *testing.T) { testHistoryUnordered(t, newStore(t)) })
	t.Run("HistoryTiesByInsertion", func(t *testing.T) { testHistoryTies(t, newStore(t)) })
	t.Run("HistoryOrdersByTimestamp", func(t *testing.T) { testHistoryOrder(t, newStore(t)) })
	t.Run("HistoryOrdersTimestampsBeforeEpoch", func(t *testing.T) { testHistoryBeforeEpoch(t, newStore(t)) })
	t.Run("HistoryIsolatesPairs", func(t *testing.T) { testHistoryIsolation(t, newStore(t)) })
	t.Run("HistoryPageWalksEverything", func(t *testing.T) { testHistoryPage(t, newStore(t)) })
	t.Run("HistoryPageRejectsBadCursor", func(t *testing.T) { testHistoryPageBadCursor(t, newStore(t)) })
}

func msg(from, to, content string) domain.Message {
	return domain.Message{SenderID: from, ReceiverID: to, Content: content}
}

func testAppendAssigns(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	// Backends may keep only microseconds.
	start := time.Now().Truncate(time.Microsecond)

	got, err := s.Append(ctx, msg("alice", "bob", "hi"))
	req.NoError(err)
	req.NotEqual(uuid.Nil, got.ID)
	req.NotZero(got.Seq)
	req.False(got.CreatedAt.Before(start), "timestamp %v before call start %v", got.CreatedAt, start)
	req.Equal("alice", got.SenderID)
	req.Equal("bob", got.ReceiverID)
	req.Equal("hi", got.Content)

	next, err := s.Append(ctx, msg("alice", "bob", "again"))
	req.NoError(err)
	req.Greater(next.Seq, got.Seq)
	req.NotEqual(got.ID, next.ID)
}

func testAppendKeepsTimestamp(t *testing.T, s store.Store) {
	req := require.New(t)
	at := time.Date(2025, 9, 1, 8, 30, 0, 123000, time.UTC)

	m := msg("alice", "bob", "from the past")
	m.CreatedAt = at
	got, err := s.Append(context.Background(), m)
	req.NoError(err)
	req.True(got.CreatedAt.Equal(at), "got %v want %v", got.CreatedAt, at)
}

func testHistoryUnordered(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Append(ctx, msg("alice", "bob", "hi"))
	req.NoError(err)
	_, err = s.Append(ctx, msg("bob", "alice", "hello"))
	req.NoError(err)

	ab, err := s.History(ctx, "alice", "bob")
	req.NoError(err)
	ba, err := s.History(ctx, "bob", "alice")
	req.NoError(err)

	req.Len(ab, 2)
	req.Equal(ab, ba)
	req.Equal([]string{"hi", "hello"}, contents(ab))

	again, err := s.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal(ab, again)
}

func testHistoryTies(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, c := range []string{"one", "two", "three"} {
		m := msg("alice", "bob", c)
		m.CreatedAt = at
		_, err := s.Append(ctx, m)
		req.NoError(err)
	}

	got, err := s.History(ctx, "bob", "alice")
	req.NoError(err)
	req.Equal([]string{"one", "two", "three"}, contents(got))
}

func testHistoryOrder(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for i, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		m := msg("alice", "bob", fmt.Sprint(i))
		m.CreatedAt = base.Add(offset)
		_, err := s.Append(ctx, m)
		req.NoError(err)
	}

	got, err := s.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal([]string{"1", "2", "0"}, contents(got))
	for i := 1; i < len(got); i++ {
		req.False(got[i].CreatedAt.Before(got[i-1].CreatedAt))
	}
}

func testHistoryBeforeEpoch(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	stamps := []time.Time{
		time.Date(1971, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(1969, 12, 31, 23, 59, 59, 0, time.UTC),
		time.Date(1960, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Unix(0, 0).UTC(),
	}
	for i, ts := range stamps {
		m := msg("alice", "bob", fmt.Sprint(i))
		m.CreatedAt = ts
		_, err := s.Append(ctx, m)
		req.NoError(err)
	}

	got, err := s.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal([]string{"2", "1", "3", "0"}, contents(got))
	req.True(got[0].CreatedAt.Equal(stamps[2]))

	page, next, err := s.HistoryPage(ctx, "alice", "bob", "", 2)
	req.NoError(err)
	req.Equal([]string{"2", "1"}, contents(page))
	page, _, err = s.HistoryPage(ctx, "alice", "bob", next, 2)
	req.NoError(err)
	req.Equal([]string{"3", "0"}, contents(page))
}

func testHistoryIsolation(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	_, err := s.Append(ctx, msg("alice", "bob", "for bob"))
	req.NoError(err)
	_, err = s.Append(ctx, msg("alice", "carol", "for carol"))
	req.NoError(err)
	_, err = s.Append(ctx, msg("ali", "cebob", "prefix trap"))
	req.NoError(err)

	got, err := s.History(ctx, "alice", "bob")
	req.NoError(err)
	req.Equal([]string{"for bob"}, contents(got))

	none, err := s.History(ctx, "bob", "carol")
	req.NoError(err)
	req.Empty(none)
}

func testHistoryPage(t *testing.T, s store.Store) {
	req := require.New(t)
	ctx := context.Background()

	var want []string
	for i := range 7 {
		c := fmt.Sprintf("m%d", i)
		want = append(want, c)
		from, to := "alice", "bob"
		if i%2 == 1 {
			from, to = to, from
		}
		_, err := s.Append(ctx, msg(from, to, c))
		req.NoError(err)
	}

	var (
		got    []string
		cursor string
		pages  int
	)
	for {
		page, next, err := s.HistoryPage(ctx, "bob", "alice", cursor, 3)
		req.NoError(err)
		got = append(got, contents(page)...)
		pages++
		req.LessOrEqual(pages, 4, "pagination does not terminate")
		if next == "" {
			break
		}
		cursor = next
	}
	req.Equal(want, got)
}

func testHistoryPageBadCursor(t *testing.T, s store.Store) {
	_, _, err := s.HistoryPage(context.Background(), "alice", "bob", "not a cursor", 10)
	require.ErrorIs(t, err, store.ErrInvalidCursor)
}

func contents(msgs []domain.Message) []string {
	return lo.Map(msgs, func(m domain.Message, _ int) string { return m.Content })
}
