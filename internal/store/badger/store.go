// Package badger stores direct messages in an embedded BadgerDB.
//
// Keys are "dm:{low}\x00{high}\x00{ts:20}:{seq:20}" so a prefix scan over one
// conversation yields messages by timestamp, then insertion order. ts is the
// unix nanosecond time with its sign bit flipped, which keeps instants before
// 1970 in order.
package badger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

var seqKey = []byte("seq:dm")

type Config struct {
	Path     string
	InMemory bool
}

type Store struct {
	db  *badger.DB
	seq *badger.Sequence
	log *slog.Logger
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func Open(cfg Config, log *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLoggingLevel(badger.WARNING)
	if cfg.InMemory {
		opts = opts.WithDir("").WithValueDir("").WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db, log)
}

// New wraps an already opened database. Close releases the sequence and the db.
func New(db *badger.DB, log *slog.Logger) (*Store, error) {
	seq, err := db.GetSequence(seqKey, 128)
	if err != nil {
		return nil, fmt.Errorf("badger sequence: %w", err)
	}
	return &Store{db: db, seq: seq, log: log, now: time.Now}, nil
}

func conversationPrefix(k domain.ConversationKey) []byte {
	return []byte("dm:" + k.Low + "\x00" + k.High + "\x00")
}

func position(createdAt time.Time, seq uint64) string {
	ts := uint64(createdAt.UnixNano()) ^ (1 << 63)
	return fmt.Sprintf("%020d:%020d", ts, seq)
}

func messageKey(m domain.Message) []byte {
	return append(conversationPrefix(m.Key()), position(m.CreatedAt, m.Seq)...)
}

func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, domain.NewStorageError("append", err)
	}

	n, err := s.seq.Next()
	if err != nil {
		return domain.Message{}, domain.NewStorageError("append", err)
	}
	// badger sequences start at zero; keep zero meaning "unassigned"
	msg.Seq = n + 1
	msg.ID = uuid.New()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(msg), encodeMessage(msg))
	})
	if err != nil {
		return domain.Message{}, domain.NewStorageError("append", err)
	}
	return msg, nil
}

func (s *Store) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	msgs, err := s.scan(ctx, domain.NewConversationKey(a, b), nil, 0)
	if err != nil {
		return nil, domain.NewStorageError("history", err)
	}
	return msgs, nil
}

func (s *Store) HistoryPage(ctx context.Context, a, b, cursor string, limit int) ([]domain.Message, string, error) {
	cur, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = store.ClampLimit(limit)

	page, err := s.scan(ctx, domain.NewConversationKey(a, b), cur, limit)
	if err != nil {
		return nil, "", domain.NewStorageError("history", err)
	}
	return page, store.NextCursor(page, limit), nil
}

// scan walks one conversation in key order, starting after cur when set.
// limit <= 0 reads to the end.
func (s *Store) scan(ctx context.Context, key domain.ConversationKey, cur *store.Cursor, limit int) ([]domain.Message, error) {
	prefix := conversationPrefix(key)
	var out []domain.Message

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		var after []byte
		if cur != nil {
			after = append(append([]byte{}, prefix...), position(cur.CreatedAt, cur.Seq)...)
			seek = after
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(out) == limit {
				break
			}
			item := it.Item()
			if after != nil && string(item.Key()) == string(after) {
				continue
			}
			err := item.Value(func(v []byte) error {
				m, err := decodeMessage(v)
				if err != nil {
					return err
				}
				out = append(out, m)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("badger history scan", "low", key.Low, "high", key.High, "count", len(out))
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	if s.db.IsClosed() {
		return badger.ErrDBClosed
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.log.Warn("release badger sequence", "err", err)
	}
	return s.db.Close()
}
