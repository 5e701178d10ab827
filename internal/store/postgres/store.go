// Package postgres stores direct messages in PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	pool *pgxpool.Pool
	q    querier
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, q: pool}
}

// Migrate creates the messages table and its index when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.q.Exec(ctx, schema); err != nil {
		return domain.NewStorageError("migrate", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, msg domain.Message) (domain.Message, error) {
	key := msg.Key()
	msg.ID = uuid.New()

	var createdAt *time.Time
	if !msg.CreatedAt.IsZero() {
		createdAt = &msg.CreatedAt
	}

	var seq int64
	err := s.q.QueryRow(ctx, insertMessage,
		msg.ID, key.Low, key.High, msg.SenderID, msg.ReceiverID, msg.Content, createdAt,
	).Scan(&seq, &msg.CreatedAt)
	if err != nil {
		return domain.Message{}, domain.NewStorageError("append", mapPgError(err))
	}
	msg.Seq = uint64(seq)
	msg.CreatedAt = msg.CreatedAt.UTC()
	return msg, nil
}

func (s *Store) History(ctx context.Context, a, b string) ([]domain.Message, error) {
	key := domain.NewConversationKey(a, b)
	rows, err := s.q.Query(ctx, selectHistory, key.Low, key.High)
	if err != nil {
		return nil, domain.NewStorageError("history", mapPgError(err))
	}
	out, err := collect(rows)
	if err != nil {
		return nil, domain.NewStorageError("history", err)
	}
	return out, nil
}

func (s *Store) HistoryPage(ctx context.Context, a, b, cursor string, limit int) ([]domain.Message, string, error) {
	cur, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	limit = store.ClampLimit(limit)

	var (
		createdAt any
		seq       any
	)
	if cur != nil {
		createdAt = cur.CreatedAt
		seq = int64(cur.Seq)
	}

	key := domain.NewConversationKey(a, b)
	rows, err := s.q.Query(ctx, selectHistoryPage, key.Low, key.High, createdAt, seq, limit)
	if err != nil {
		return nil, "", domain.NewStorageError("history", mapPgError(err))
	}
	page, err := collect(rows)
	if err != nil {
		return nil, "", domain.NewStorageError("history", err)
	}
	return page, store.NextCursor(page, limit), nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ping(ctx, s.pool)
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func collect(rows pgx.Rows) ([]domain.Message, error) {
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var (
			m   domain.Message
			seq int64
		)
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt, &seq); err != nil {
			return nil, err
		}
		m.Seq = uint64(seq)
		m.CreatedAt = m.CreatedAt.UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

var errUniqueViolation = errors.New("unique violation")

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errors.Join(errUniqueViolation, err)
	}
	return err
}
