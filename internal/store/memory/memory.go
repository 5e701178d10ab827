// Package memory keeps messages in process memory. It backs local runs and
// tests; nothing survives a restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

type Store struct {
	mu            sync.RWMutex
	seq           uint64
	conversations map[domain.ConversationKey][]domain.Message
	now           func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		conversations: make(map[domain.ConversationKey][]domain.Message),
		now:           time.Now,
	}
}

func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, domain.NewStorageError("append", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	msg.Seq = s.seq
	msg.ID = uuid.New()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}

	key := msg.Key()
	msgs := s.conversations[key]
	// keep (CreatedAt, Seq) order even when callers supply older timestamps
	i, _ := slices.BinarySearchFunc(msgs, msg, compare)
	s.conversations[key] = slices.Insert(msgs, i, msg)
	return msg, nil
}

func (s *Store) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, domain.NewStorageError("history", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.conversations[domain.NewConversationKey(a, b)]), nil
}

func (s *Store) HistoryPage(ctx context.Context, a, b, cursor string, limit int) ([]domain.Message, string, error) {
	cur, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = store.ClampLimit(limit)

	all, err := s.History(ctx, a, b)
	if err != nil {
		return nil, "", err
	}

	start := 0
	if cur != nil {
		start = slices.IndexFunc(all, func(m domain.Message) bool {
			return cur.After(m.CreatedAt, m.Seq)
		})
		if start < 0 {
			return nil, "", nil
		}
	}
	page := all[start:min(start+limit, len(all))]
	return page, store.NextCursor(page, limit), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func compare(a, b domain.Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	switch {
	case a.Seq < b.Seq:
		return -1
	case a.Seq > b.Seq:
		return 1
	default:
		return 0
	}
}
