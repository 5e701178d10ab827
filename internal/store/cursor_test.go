package store

import (
	"testing"
	"time"

	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCursor_RoundTripAndInvalid(t *testing.T) {
	req := require.New(t)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s, err := EncodeCursor(Cursor{CreatedAt: at, Seq: 7})
	req.NoError(err)

	c, err := DecodeCursor(s)
	req.NoError(err)
	req.True(c.CreatedAt.Equal(at))
	req.EqualValues(7, c.Seq)

	c, err = DecodeCursor("")
	req.NoError(err)
	req.Nil(c)

	_, err = DecodeCursor("%%%")
	req.ErrorIs(err, ErrInvalidCursor)
	_, err = DecodeCursor("bm90LWpzb24")
	req.ErrorIs(err, ErrInvalidCursor)
}

func TestCursor_After(t *testing.T) {
	at := time.Now()
	c := Cursor{CreatedAt: at, Seq: 5}

	require.True(t, c.After(at, 6))
	require.False(t, c.After(at, 5))
	require.True(t, c.After(at.Add(time.Nanosecond), 1))
	require.False(t, c.After(at.Add(-time.Nanosecond), 9))
}

func TestClampLimitAndNextCursor(t *testing.T) {
	req := require.New(t)
	req.Equal(DefaultPageSize, ClampLimit(0))
	req.Equal(MaxPageSize, ClampLimit(1000))
	req.Equal(3, ClampLimit(3))

	page := []domain.Message{{Seq: 1}, {Seq: 2}}
	req.Empty(NextCursor(page, 3))
	next := NextCursor(page, 2)
	req.NotEmpty(next)
	c, err := DecodeCursor(next)
	req.NoError(err)
	req.EqualValues(2, c.Seq)
}
