package ws

import (
	"context"
	"fmt"
	"time"

	"github.com/clinwave/clinwave/internal/message"
)

// Server-initiated event names.
const (
	EventNewMessage       = "message:new"
	EventConversationList = "conversation:list"
	EventMessageStatus    = "message:status"
)

// Client-initiated operation names.
const (
	OpFeedJoin            = "feed:join"
	OpConversationJoin    = "conversation:join"
	OpConversationHistory = "conversation:history"
	OpMessageSend         = "message:send"
	OpMessageRead         = "message:read"
)

// ConversationRoom names the room carrying one conversation's stream.
func ConversationRoom(tenantID, conversationID string) string {
	return fmt.Sprintf("clinic:%s:conv:%s", tenantID, conversationID)
}

// FeedRoom names the tenant-wide conversation-list room.
func FeedRoom(tenantID string) string {
	return fmt.Sprintf("clinic:%s:feed", tenantID)
}

// Preview is the conversation-list update pushed to the tenant feed.
type Preview struct {
	ConversationID string    `json:"conversation_id"`
	DisplayName    string    `json:"display_name"`
	LastMessage    string    `json:"last_message"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// StatusChange notifies a conversation room of a message status transition.
type StatusChange struct {
	MessageID string         `json:"message_id"`
	Status    message.Status `json:"status"`
}

// Publisher fans persisted messages out to the right realtime rooms. All
// emissions are fire-and-forget relative to persistence: failures are
// logged, never propagated.
type Publisher interface {
	PublishMessage(tenantID, conversationID string, msg message.Message)
	PublishPreview(tenantID string, preview Preview)
	PublishStatus(tenantID, conversationID string, change StatusChange)
}

// ChatAPI is the operation surface the socket client dispatches to. Every
// method receives the session tenant so ownership is enforced per call.
type ChatAPI interface {
	VerifyConversation(ctx context.Context, tenantID, conversationID string) error
	History(ctx context.Context, tenantID, conversationID string, before *time.Time, limit int) ([]message.Message, bool, error)
	Send(ctx context.Context, tenantID, conversationID, content string) (message.Message, error)
	MarkRead(ctx context.Context, tenantID, conversationID, messageID string) error
}
