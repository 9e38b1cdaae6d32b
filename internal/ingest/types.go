package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/clinwave/clinwave/internal/conversation"
	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/media"
	"github.com/clinwave/clinwave/internal/message"
)

var (
	// ErrUnauthorized indicates an event whose api key maps to no tenant.
	ErrUnauthorized = errors.New("unknown gateway credential")
	// ErrTenantMisconfigured indicates a tenant with no gateway binding.
	ErrTenantMisconfigured = errors.New("tenant has no gateway binding")
	// ErrGroupSend indicates a send attempt into a group conversation.
	ErrGroupSend = errors.New("sending to group conversations is not supported")
)

// Resolver maps normalized messages to owned conversations.
type Resolver interface {
	Resolve(ctx context.Context, tenantID string, msg evolution.NormalizedMessage) (conversation.Conversation, error)
	GetOwned(ctx context.Context, tenantID, id string) (conversation.Conversation, error)
	Patient(ctx context.Context, conv conversation.Conversation) (conversation.Patient, error)
	Touch(ctx context.Context, id string, at time.Time)
	DisplayName(ctx context.Context, id string) string
}

// MessageWriter persists relayed messages and their status transitions.
type MessageWriter interface {
	PersistInbound(ctx context.Context, input message.InboundInput) (message.Message, error)
	CreatePending(ctx context.Context, conversationID, content string) (message.Message, error)
	MarkSent(ctx context.Context, id, deliveryID string) (message.Message, error)
	MarkError(ctx context.Context, id string) (message.Message, error)
}

// Materializer makes remote gateway media durable.
type Materializer interface {
	Materialize(ctx context.Context, input media.MaterializeInput) (media.Media, error)
}

// GatewayClient delivers outbound text through the messaging gateway.
type GatewayClient interface {
	SendText(ctx context.Context, baseURL, instance, phone, text, apiKey string) (string, error)
}
