package message

import (
	"context"
	"log/slog"
	"time"

	"github.com/clinwave/clinwave/internal/evolution"
)

const (
	// DefaultHistoryLimit is the page size when the client sends none.
	DefaultHistoryLimit = 40
	// MaxHistoryLimit bounds a single history page.
	MaxHistoryLimit = 100
)

// Service persists and reads conversation messages.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a message service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "message")),
	}
}

// InboundInput describes an inbound message to persist as RECEIVED.
type InboundInput struct {
	ConversationID   string
	Sender           string
	Content          string
	Kind             evolution.Kind
	GatewayMessageID string
	// Timestamp is the gateway-reported message time.
	Timestamp time.Time
}

// PersistInbound writes an inbound message with status RECEIVED. Redelivered
// gateway events return ErrDuplicate and persist nothing.
func (s *Service) PersistInbound(ctx context.Context, input InboundInput) (Message, error) {
	return s.store.Insert(ctx, InsertParams{
		ConversationID:   input.ConversationID,
		Sender:           input.Sender,
		Content:          input.Content,
		Kind:             input.Kind,
		GatewayMessageID: input.GatewayMessageID,
		Status:           StatusReceived,
		CreatedAt:        input.Timestamp,
	})
}

// CreatePending writes an agent message with status PENDING. The row is
// durable before any gateway call so a crash mid-send leaves a recoverable
// PENDING message rather than an invisible in-flight one.
func (s *Service) CreatePending(ctx context.Context, conversationID, content string) (Message, error) {
	return s.store.Insert(ctx, InsertParams{
		ConversationID: conversationID,
		Sender:         SenderAgent,
		Content:        content,
		Kind:           evolution.KindText,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	})
}

// MarkSent transitions PENDING -> SENT and records the gateway delivery id.
func (s *Service) MarkSent(ctx context.Context, id, deliveryID string) (Message, error) {
	return s.store.UpdateStatus(ctx, id, StatusPending, StatusSent, deliveryID)
}

// MarkError transitions PENDING -> ERROR.
func (s *Service) MarkError(ctx context.Context, id string) (Message, error) {
	return s.store.UpdateStatus(ctx, id, StatusPending, StatusError, "")
}

// MarkRead transitions RECEIVED -> READ for a message that belongs to the
// conversation. A message in any other conversation returns ErrNotFound, so
// a caller authorized for one conversation cannot touch another's messages.
func (s *Service) MarkRead(ctx context.Context, conversationID, id string) (Message, error) {
	return s.store.UpdateStatusIn(ctx, conversationID, id, StatusReceived, StatusRead)
}

// History returns up to limit messages strictly older than the cursor,
// newest first, and whether more older messages exist. Tenant ownership of
// the conversation is the caller's responsibility.
func (s *Service) History(ctx context.Context, conversationID string, before *time.Time, limit int) ([]Message, bool, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	items, err := s.store.ListBefore(ctx, conversationID, before, int32(limit))
	if err != nil {
		return nil, false, err
	}
	return items, len(items) == limit, nil
}
