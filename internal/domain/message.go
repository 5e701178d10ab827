package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message is a private chat message between two participants. It is never
// mutated after the store has persisted it.
type Message struct {
	ID         uuid.UUID `db:"id"`
	SenderID   string    `db:"sender_id"`
	ReceiverID string    `db:"receiver_id"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
	// Seq is assigned by the store and orders messages sharing a timestamp.
	Seq uint64 `db:"seq"`
}

func (m Message) Key() ConversationKey {
	return NewConversationKey(m.SenderID, m.ReceiverID)
}

// ValidateIdentity accepts any non-empty identity without NUL bytes.
// Identities are opaque and never rewritten, so " bob" and "bob" differ.
func ValidateIdentity(field, id string) error {
	if id == "" {
		return NewValidationError(field, "is required")
	}
	if strings.ContainsRune(id, 0) {
		return NewValidationError(field, "contains invalid characters")
	}
	return nil
}

// Validate checks the fields a message must carry before it is persisted.
// Content is opaque; only the empty string is rejected. maxContent <= 0
// disables the length check.
func (m Message) Validate(maxContent int) error {
	if err := ValidateIdentity("sender_id", m.SenderID); err != nil {
		return err
	}
	if err := ValidateIdentity("receiver_id", m.ReceiverID); err != nil {
		return err
	}
	if m.Content == "" {
		return NewValidationError("content", "is required")
	}
	if maxContent > 0 && len(m.Content) > maxContent {
		return NewValidationError("content", "is too long")
	}
	return nil
}
