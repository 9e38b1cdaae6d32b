package agents

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no agent matches the lookup.
	ErrNotFound = errors.New("agent not found")
	// ErrEmailTaken indicates a registration with an already used email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials indicates a failed login. The same error covers
	// unknown emails and wrong passwords so probing reveals nothing.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Agent is a staff account scoped to one tenant.
type Agent struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists agents.
type Store interface {
	Create(ctx context.Context, tenantID, name, email, passwordHash string) (Agent, error)
	GetByEmail(ctx context.Context, email string) (Agent, error)
	GetByID(ctx context.Context, id string) (Agent, error)
}
