package agents

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/clinwave/clinwave/internal/db"
)

// PGStore persists agents in Postgres.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates an agent store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("store", "agents")),
	}
}

const agentColumns = `id, tenant_id, name, email, password_hash, created_at`

func (s *PGStore) Create(ctx context.Context, tenantID, name, email, passwordHash string) (Agent, error) {
	pgTenant, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Agent{}, err
	}
	row := s.pool.QueryRow(ctx, `
		INSERT INTO agents (tenant_id, name, email, password_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING `+agentColumns,
		pgTenant, name, email, passwordHash)
	a, err := scanAgent(row)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Agent{}, ErrEmailTaken
	}
	return a, err
}

func (s *PGStore) GetByEmail(ctx context.Context, email string) (Agent, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE email = $1`, email)
	return scanAgent(row)
}

func (s *PGStore) GetByID(ctx context.Context, id string) (Agent, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Agent{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+agentColumns+` FROM agents WHERE id = $1`, pgID)
	return scanAgent(row)
}

func scanAgent(row pgx.Row) (Agent, error) {
	var (
		id        pgtype.UUID
		tenantID  pgtype.UUID
		createdAt pgtype.Timestamptz
		a         Agent
	)
	err := row.Scan(&id, &tenantID, &a.Name, &a.Email, &a.PasswordHash, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	if err != nil {
		return Agent{}, err
	}
	a.ID = id.String()
	a.TenantID = tenantID.String()
	a.CreatedAt = createdAt.Time
	return a, nil
}
