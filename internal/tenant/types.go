package tenant

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no tenant matches the lookup.
var ErrNotFound = errors.New("tenant not found")

// Tenant is a clinic: the isolation boundary for all data and routing.
// Records are created out-of-band and read-only to this service.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// GatewayToken is the shared secret authenticating inbound webhooks
	// and addressing the outbound gateway.
	GatewayToken    string    `json:"-"`
	GatewayBaseURL  string    `json:"-"`
	GatewayInstance string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasGatewayBinding reports whether the tenant can correlate with the
// outbound gateway.
func (t Tenant) HasGatewayBinding() bool {
	return t.GatewayBaseURL != "" && t.GatewayInstance != ""
}

// Directory provides read-only tenant lookups.
type Directory interface {
	GetByToken(ctx context.Context, token string) (Tenant, error)
	GetByID(ctx context.Context, id string) (Tenant, error)
}
