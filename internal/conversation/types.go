package conversation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrParticipantNotFound indicates a private message from an unseen
	// number that is not allowed to create a patient record.
	ErrParticipantNotFound = errors.New("participant not found")
	// ErrNotFound indicates the conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
)

// FallbackDisplayName is used when neither a patient name nor a group jid
// is available for a conversation preview.
const FallbackDisplayName = "Desconhecido"

// Patient is the private counterpart of a conversation, scoped to one tenant.
type Patient struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

// Group is the group counterpart, keyed by its stable external jid.
type Group struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	JID       string    `json:"jid"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation links a tenant to exactly one participant: a patient or a
// group, never both.
type Conversation struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	PatientID string    `json:"patient_id,omitempty"`
	GroupID   string    `json:"group_id,omitempty"`
	StartedAt time.Time `json:"started_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPrivate reports whether the conversation has a patient participant.
func (c Conversation) IsPrivate() bool {
	return c.PatientID != ""
}

// Summary is one row of the tenant conversation list.
type Summary struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	LastMessage string    `json:"last_message,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store defines the persistence operations behind the resolver. All
// find-or-create steps are single-statement upserts keyed on the natural
// unique constraints, so concurrent webhook delivery for the same new
// participant never creates duplicates.
type Store interface {
	GetPatientByPhone(ctx context.Context, tenantID, phone string) (Patient, error)
	UpsertPatient(ctx context.Context, tenantID, name, phone string) (Patient, error)
	GetPatient(ctx context.Context, id string) (Patient, error)
	UpsertGroup(ctx context.Context, tenantID, jid string) (Group, error)
	UpsertPatientConversation(ctx context.Context, tenantID, patientID string) (Conversation, error)
	UpsertGroupConversation(ctx context.Context, tenantID, groupID string) (Conversation, error)
	Get(ctx context.Context, id string) (Conversation, error)
	Touch(ctx context.Context, id string, at time.Time) error
	DisplayName(ctx context.Context, id string) (string, error)
	ListByTenant(ctx context.Context, tenantID string) ([]Summary, error)
}
