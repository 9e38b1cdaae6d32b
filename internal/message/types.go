package message

import (
	"context"
	"errors"
	"time"

	"github.com/clinwave/clinwave/internal/evolution"
)

// Status is the message lifecycle state. RECEIVED is terminal for inbound
// messages (READ excepted); PENDING transitions exactly once to SENT or
// ERROR on the outbound path.
type Status string

const (
	StatusReceived Status = "RECEIVED"
	StatusPending  Status = "PENDING"
	StatusSent     Status = "SENT"
	StatusError    Status = "ERROR"
	StatusRead     Status = "READ"
)

// Sender roles. Group messages carry the member JID as sender instead.
const (
	SenderPatient = "patient"
	SenderAgent   = "agent"
)

var (
	// ErrNotFound indicates the message does not exist.
	ErrNotFound = errors.New("message not found")
	// ErrDuplicate indicates a redelivered gateway event whose delivery id
	// already exists for the conversation.
	ErrDuplicate = errors.New("duplicate gateway message")
	// ErrInvalidTransition indicates a status update that violates the
	// PENDING -> SENT|ERROR / RECEIVED -> READ lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Message is one persisted conversation message.
type Message struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversation_id"`
	Sender           string         `json:"sender"`
	Content          string         `json:"content,omitempty"`
	Kind             evolution.Kind `json:"kind"`
	GatewayMessageID string         `json:"gateway_message_id,omitempty"`
	Status           Status         `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
}

// PreviewLine returns the one-line feed preview for a message: its text, or
// a kind placeholder for pure-media messages.
func (m Message) PreviewLine() string {
	if m.Content != "" {
		return m.Content
	}
	return "[" + string(m.Kind) + "]"
}

// InsertParams carries a new message row.
type InsertParams struct {
	ConversationID   string
	Sender           string
	Content          string
	Kind             evolution.Kind
	GatewayMessageID string
	Status           Status
	CreatedAt        time.Time
}

// Store defines message persistence. Insert returns ErrDuplicate when the
// inbound dedup constraint rejects the row; UpdateStatus enforces the
// expected current status and returns ErrInvalidTransition otherwise.
// UpdateStatusIn additionally conditions on the conversation, returning
// ErrNotFound for a message outside it.
type Store interface {
	Insert(ctx context.Context, params InsertParams) (Message, error)
	UpdateStatus(ctx context.Context, id string, from, to Status, deliveryID string) (Message, error)
	UpdateStatusIn(ctx context.Context, conversationID, id string, from, to Status) (Message, error)
	ListBefore(ctx context.Context, conversationID string, before *time.Time, limit int32) ([]Message, error)
}
