package validation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

type chatRequest struct {
	ReceiverID string `json:"receiver_id" validate:"identity,max=8"`
	Content    string `json:"content" validate:"required"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(chatRequest{ReceiverID: "bob", Content: "hi"}))
	require.NoError(t, Struct(chatRequest{ReceiverID: " bob", Content: " "}))

	cases := []struct {
		name   string
		in     chatRequest
		field  string
		reason string
	}{
		{"empty receiver", chatRequest{ReceiverID: "", Content: "hi"}, "receiver_id", "is not a valid identity"},
		{"long receiver", chatRequest{ReceiverID: "bartholomew", Content: "hi"}, "receiver_id", "must be at most 8"},
		{"no content", chatRequest{ReceiverID: "bob"}, "content", "is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Struct(tc.in)
			require.ErrorIs(t, err, domain.ErrValidation)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tc.field, ve.Field)
			require.Equal(t, tc.reason, ve.Reason)
		})
	}
}
