package store

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor marks the last message of a history page.
type Cursor struct {
	CreatedAt time.Time `json:"created_at"`
	Seq       uint64    `json:"seq"`
}

// After reports whether a message at (createdAt, seq) sorts after the cursor.
func (c Cursor) After(createdAt time.Time, seq uint64) bool {
	if createdAt.Equal(c.CreatedAt) {
		return seq > c.Seq
	}
	return createdAt.After(c.CreatedAt)
}

func EncodeCursor(c Cursor) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decode base64: %v", ErrInvalidCursor, err)
	}
	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: decode json: %v", ErrInvalidCursor, err)
	}
	return &c, nil
}
