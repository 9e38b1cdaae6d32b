package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/message"
	"github.com/clinwave/clinwave/internal/ws"
)

// Send delivers an agent text message to the conversation's patient. The
// message is persisted PENDING before the gateway call, then transitions to
// SENT or ERROR depending on delivery. Conversations of other tenants are
// invisible: lookups for them fail exactly like missing ones.
func (s *Service) Send(ctx context.Context, tenantID, conversationID, content string) (message.Message, error) {
	log := s.logger.With(
		slog.String("tenant_id", tenantID),
		slog.String("conversation_id", conversationID),
	)

	conv, err := s.resolver.GetOwned(ctx, tenantID, conversationID)
	if err != nil {
		return message.Message{}, err
	}
	if !conv.IsPrivate() {
		return message.Message{}, ErrGroupSend
	}

	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return message.Message{}, fmt.Errorf("tenant lookup: %w", err)
	}
	if !t.HasGatewayBinding() {
		return message.Message{}, ErrTenantMisconfigured
	}

	patient, err := s.resolver.Patient(ctx, conv)
	if err != nil {
		return message.Message{}, fmt.Errorf("patient lookup: %w", err)
	}

	pending, err := s.messages.CreatePending(ctx, conversationID, content)
	if err != nil {
		return message.Message{}, fmt.Errorf("persist pending: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, evolution.SendTimeout)
	defer cancel()
	deliveryID, err := s.gateway.SendText(
		sendCtx, t.GatewayBaseURL, t.GatewayInstance, patient.Phone, content, t.GatewayToken)
	if err != nil {
		log.Error("gateway send failed",
			slog.String("message_id", pending.ID), slog.Any("error", err))
		failed, markErr := s.messages.MarkError(ctx, pending.ID)
		if markErr != nil {
			log.Error("marking message ERROR failed", slog.Any("error", markErr))
			failed = pending
		}
		s.publisher.PublishStatus(tenantID, conversationID, ws.StatusChange{
			MessageID: failed.ID,
			Status:    failed.Status,
		})
		return failed, fmt.Errorf("gateway send: %w", err)
	}

	sent, err := s.messages.MarkSent(ctx, pending.ID, deliveryID)
	if err != nil {
		log.Error("marking message SENT failed", slog.Any("error", err))
		sent = pending
	}

	s.resolver.Touch(ctx, conversationID, sent.CreatedAt)
	s.fanOut(ctx, tenantID, conversationID, sent)
	return sent, nil
}
