package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clinwave/clinwave/internal/evolution"
)

// Service resolves normalized messages to their owning conversation,
// creating participants and conversations lazily.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a conversation service.
func NewService(log *slog.Logger, store Store) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  store,
		logger: log.With(slog.String("service", "conversation")),
	}
}

// Resolve finds or creates the conversation owning a normalized message
// within the tenant. Group messages upsert the group record; private
// messages upsert the patient only when the message permits participant
// creation.
func (s *Service) Resolve(ctx context.Context, tenantID string, msg evolution.NormalizedMessage) (Conversation, error) {
	if msg.Context == evolution.ContextGroup {
		group, err := s.store.UpsertGroup(ctx, tenantID, msg.GroupJID)
		if err != nil {
			return Conversation{}, fmt.Errorf("upsert group: %w", err)
		}
		conv, err := s.store.UpsertGroupConversation(ctx, tenantID, group.ID)
		if err != nil {
			return Conversation{}, fmt.Errorf("upsert group conversation: %w", err)
		}
		return conv, nil
	}

	patient, err := s.store.GetPatientByPhone(ctx, tenantID, msg.SenderPhone)
	if errors.Is(err, ErrParticipantNotFound) {
		if !msg.CreateParticipant {
			return Conversation{}, ErrParticipantNotFound
		}
		name := msg.PushName
		if name == "" {
			name = msg.SenderPhone
		}
		patient, err = s.store.UpsertPatient(ctx, tenantID, name, msg.SenderPhone)
	}
	if err != nil {
		return Conversation{}, fmt.Errorf("resolve patient: %w", err)
	}

	conv, err := s.store.UpsertPatientConversation(ctx, tenantID, patient.ID)
	if err != nil {
		return Conversation{}, fmt.Errorf("upsert patient conversation: %w", err)
	}
	return conv, nil
}

// Get loads a conversation by id.
func (s *Service) Get(ctx context.Context, id string) (Conversation, error) {
	return s.store.Get(ctx, id)
}

// GetOwned loads a conversation and verifies tenant ownership. Unowned
// conversations are indistinguishable from missing ones.
func (s *Service) GetOwned(ctx context.Context, tenantID, id string) (Conversation, error) {
	conv, err := s.store.Get(ctx, id)
	if err != nil {
		return Conversation{}, err
	}
	if conv.TenantID != tenantID {
		return Conversation{}, ErrNotFound
	}
	return conv, nil
}

// Patient loads the patient participant of a conversation.
func (s *Service) Patient(ctx context.Context, conv Conversation) (Patient, error) {
	if !conv.IsPrivate() {
		return Patient{}, ErrParticipantNotFound
	}
	return s.store.GetPatient(ctx, conv.PatientID)
}

// Touch bumps the conversation last-activity timestamp.
func (s *Service) Touch(ctx context.Context, id string, at time.Time) {
	if err := s.store.Touch(ctx, id, at); err != nil {
		s.logger.Warn("touch conversation failed",
			slog.String("conversation_id", id), slog.Any("error", err))
	}
}

// DisplayName returns the best-effort participant name for previews:
// patient name, then group jid, then the fallback placeholder.
func (s *Service) DisplayName(ctx context.Context, id string) string {
	name, err := s.store.DisplayName(ctx, id)
	if err != nil || name == "" {
		if err != nil {
			s.logger.Warn("display name lookup failed",
				slog.String("conversation_id", id), slog.Any("error", err))
		}
		return FallbackDisplayName
	}
	return name
}

// ListByTenant returns the tenant conversation list, most recent first.
func (s *Service) ListByTenant(ctx context.Context, tenantID string) ([]Summary, error) {
	return s.store.ListByTenant(ctx, tenantID)
}
