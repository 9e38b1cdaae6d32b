package tenant

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/clinwave/clinwave/internal/db"
)

// PGStore reads tenants from Postgres.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a tenant store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("store", "tenant")),
	}
}

const tenantColumns = `id, name, gateway_token, gateway_base_url, gateway_instance, created_at`

func (s *PGStore) GetByToken(ctx context.Context, token string) (Tenant, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE gateway_token = $1`, token)
	return scanTenant(row)
}

func (s *PGStore) GetByID(ctx context.Context, id string) (Tenant, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Tenant{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, pgID)
	return scanTenant(row)
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var (
		id        pgtype.UUID
		createdAt pgtype.Timestamptz
		t         Tenant
	)
	err := row.Scan(&id, &t.Name, &t.GatewayToken, &t.GatewayBaseURL, &t.GatewayInstance, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, ErrNotFound
	}
	if err != nil {
		return Tenant{}, err
	}
	t.ID = id.String()
	t.CreatedAt = createdAt.Time
	return t, nil
}
