//go:generate go run go.uber.org/mock/mockgen -source=store.go -destination=../mocks/mock_store.go -package=mocks

// Package store defines the durable message log used by the relay and the
// history endpoint. Backends live in subpackages.
package store

import (
	"context"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// Appender persists a message exactly once. Implementations assign ID and
// Seq, and CreatedAt when it is zero. Failures are *domain.StorageError.
type Appender interface {
	Append(ctx context.Context, msg domain.Message) (domain.Message, error)
}

// HistoryReader returns the messages exchanged between two participants in
// either direction, ascending by CreatedAt then Seq.
type HistoryReader interface {
	History(ctx context.Context, a, b string) ([]domain.Message, error)
	// HistoryPage returns at most limit messages strictly after cursor and
	// the cursor for the next page ("" when exhausted).
	HistoryPage(ctx context.Context, a, b, cursor string, limit int) ([]domain.Message, string, error)
}

type Store interface {
	Appender
	HistoryReader
	Ping(ctx context.Context) error
	Close() error
}

// ClampLimit applies the page size bounds used by every backend.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// NextCursor returns the cursor after the last message of a full page.
func NextCursor(page []domain.Message, limit int) string {
	if len(page) == 0 || len(page) < limit {
		return ""
	}
	last := page[len(page)-1]
	c, err := EncodeCursor(Cursor{CreatedAt: last.CreatedAt, Seq: last.Seq})
	if err != nil {
		return ""
	}
	return c
}
