package ws

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/cwrk-planet/chat-service/internal/domain"
)

// Inbound event types.
const (
	TypeJoin           = "join"
	TypeLeave          = "leave"
	TypePrivateMessage = "private_message"
	TypeChat           = "chat" // alias of private_message
)

// Outbound event types. private_message is also sent to receivers.
const (
	TypeJoined = "joined"
	TypeLeft   = "left"
	TypeAck    = "ack" // to the sending channel only
	TypeError  = "error"
)

// Error codes carried by TypeError.
const (
	CodeBadRequest = "bad_request"
	CodeValidation = "validation"
	CodeNotJoined  = "not_joined"
	CodeForbidden  = "forbidden"
	CodeStorage    = "storage"
	CodeClosed     = "closed"
	CodeInternal   = "internal"
)

// Envelope is the inbound frame; Payload is decoded per Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type JoinPayload struct {
	UserID string `json:"user_id" validate:"identity,max=128"`
}

type ChatPayload struct {
	ReceiverID string `json:"receiver_id" validate:"identity,max=128"`
	Content    string `json:"content" validate:"required"`
}

type JoinedPayload struct {
	UserID string `json:"user_id"`
}

type PrivateMessagePayload struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
}

// AckPayload lets the client clear its pending state and dedupe.
type AckPayload struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func privateMessage(m domain.Message) Message {
	return Message{
		Type: TypePrivateMessage,
		Payload: PrivateMessagePayload{
			ID:         m.ID.String(),
			SenderID:   m.SenderID,
			ReceiverID: m.ReceiverID,
			Content:    m.Content,
			Timestamp:  m.CreatedAt,
		},
	}
}

func ack(m domain.Message) Message {
	return Message{Type: TypeAck, Payload: AckPayload{ID: m.ID.String(), Timestamp: m.CreatedAt}}
}

func errorMessage(code, msg string) Message {
	return Message{Type: TypeError, Payload: ErrorPayload{Code: code, Message: msg}}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
