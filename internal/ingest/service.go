package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/media"
	"github.com/clinwave/clinwave/internal/message"
	"github.com/clinwave/clinwave/internal/queue"
	"github.com/clinwave/clinwave/internal/tenant"
	"github.com/clinwave/clinwave/internal/ws"
)

// Service turns raw webhook bodies into persisted, fanned-out messages and
// delivers agent replies back through the gateway.
type Service struct {
	tenants   tenant.Directory
	resolver  Resolver
	messages  MessageWriter
	media     Materializer
	gateway   GatewayClient
	publisher ws.Publisher
	producer  queue.Producer
	logger    *slog.Logger

	// convLocks serializes processing per conversation identity so
	// interleaved webhook deliveries keep their arrival order.
	convLocks *keyedMutex
}

// NewService wires the inbound and outbound relay paths.
func NewService(
	log *slog.Logger,
	tenants tenant.Directory,
	resolver Resolver,
	messages MessageWriter,
	materializer Materializer,
	gateway GatewayClient,
	publisher ws.Publisher,
	producer queue.Producer,
) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		tenants:   tenants,
		resolver:  resolver,
		messages:  messages,
		media:     materializer,
		gateway:   gateway,
		publisher: publisher,
		producer:  producer,
		logger:    log.With(slog.String("service", "ingest")),
		convLocks: newKeyedMutex(),
	}
}

// Ingest processes one webhook body. The whole batch is rejected with
// evolution.ErrInvalidPayload when the envelope is malformed, and with
// ErrUnauthorized when its api key is absent or maps to no tenant.
// Per-message failures
// after authentication do not stop the rest of the batch.
func (s *Service) Ingest(ctx context.Context, body []byte) error {
	msgs, err := evolution.ParseEvent(body)
	if err != nil {
		if errors.Is(err, evolution.ErrMissingCredential) {
			return ErrUnauthorized
		}
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	t, err := s.tenants.GetByToken(ctx, msgs[0].APIKey)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.HasGatewayBinding() {
		return ErrTenantMisconfigured
	}

	var firstErr error
	for _, msg := range msgs {
		if err := s.ingestOne(ctx, t, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) ingestOne(ctx context.Context, t tenant.Tenant, msg evolution.NormalizedMessage) error {
	log := s.logger.With(
		slog.String("tenant_id", t.ID),
		slog.String("gateway_message_id", msg.MessageID),
	)

	if !msg.Kind.Supported() {
		log.Debug("skipping unsupported message kind")
		return nil
	}

	unlock := s.convLocks.Lock(t.ID + "|" + msg.SenderJID)
	defer unlock()

	conv, err := s.resolver.Resolve(ctx, t.ID, msg)
	if err != nil {
		log.Error("conversation resolution failed", slog.Any("error", err))
		return fmt.Errorf("resolve conversation: %w", err)
	}

	// Group messages record the member JID as sender; private chats use
	// the fixed patient role.
	sender := message.SenderPatient
	if msg.Context == evolution.ContextGroup {
		sender = msg.SenderJID
	}

	persisted, err := s.messages.PersistInbound(ctx, message.InboundInput{
		ConversationID:   conv.ID,
		Sender:           sender,
		Content:          msg.Text,
		Kind:             msg.Kind,
		GatewayMessageID: msg.MessageID,
		Timestamp:        msg.Timestamp,
	})
	if err != nil {
		if errors.Is(err, message.ErrDuplicate) {
			log.Debug("skipping redelivered message")
			return nil
		}
		log.Error("message persistence failed", slog.Any("error", err))
		return fmt.Errorf("persist inbound: %w", err)
	}

	if msg.MediaURL != "" {
		if _, err := s.media.Materialize(ctx, media.MaterializeInput{
			MessageID:        persisted.ID,
			GatewayMessageID: msg.MessageID,
			Kind:             msg.Kind,
			MediaURL:         msg.MediaURL,
			MimeType:         msg.MimeType,
			Caption:          msg.Text,
			Duration:         msg.Duration,
		}); err != nil {
			// Media is best effort: the message stays visible without it.
			log.Warn("media materialization failed", slog.Any("error", err))
		}
	}

	s.resolver.Touch(ctx, conv.ID, persisted.CreatedAt)
	s.fanOut(ctx, t.ID, conv.ID, persisted)
	return nil
}

// fanOut emits the realtime events and queue record for a persisted
// message. Every step is fire-and-forget relative to persistence.
func (s *Service) fanOut(ctx context.Context, tenantID, conversationID string, msg message.Message) {
	s.publisher.PublishMessage(tenantID, conversationID, msg)
	s.publisher.PublishPreview(tenantID, ws.Preview{
		ConversationID: conversationID,
		DisplayName:    s.resolver.DisplayName(ctx, conversationID),
		LastMessage:    msg.PreviewLine(),
		UpdatedAt:      msg.CreatedAt,
	})

	key := queue.KeyInbound
	if msg.Sender == message.SenderAgent {
		key = queue.KeyOutbound
	}
	if err := s.producer.Publish(ctx, key, queue.Envelope{
		TenantID: tenantID,
		Message:  msg,
	}); err != nil {
		s.logger.Warn("queue publish failed",
			slog.String("key", key), slog.Any("error", err))
	}
}
