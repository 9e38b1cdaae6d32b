package conversation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/clinwave/clinwave/internal/db"
)

// PGStore is the Postgres-backed conversation store.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a conversation store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("store", "conversation")),
	}
}

func (s *PGStore) GetPatientByPhone(ctx context.Context, tenantID, phone string) (Patient, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Patient{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, phone, created_at FROM patients
		 WHERE tenant_id = $1 AND phone = $2`, pgTenantID, phone)
	return scanPatient(row)
}

func (s *PGStore) GetPatient(ctx context.Context, id string) (Patient, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Patient{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, phone, created_at FROM patients WHERE id = $1`, pgID)
	return scanPatient(row)
}

func (s *PGStore) UpsertPatient(ctx context.Context, tenantID, name, phone string) (Patient, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Patient{}, err
	}
	// DO UPDATE keeps RETURNING populated on conflict without clobbering
	// an existing display name.
	row := s.pool.QueryRow(ctx,
		`INSERT INTO patients (tenant_id, name, phone) VALUES ($1, $2, $3)
		 ON CONFLICT (tenant_id, phone) DO UPDATE SET phone = EXCLUDED.phone
		 RETURNING id, tenant_id, name, phone, created_at`,
		pgTenantID, name, phone)
	return scanPatient(row)
}

func (s *PGStore) UpsertGroup(ctx context.Context, tenantID, jid string) (Group, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Group{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO groups (tenant_id, jid) VALUES ($1, $2)
		 ON CONFLICT (tenant_id, jid) DO UPDATE SET jid = EXCLUDED.jid
		 RETURNING id, tenant_id, jid, created_at`,
		pgTenantID, jid)

	var (
		id        pgtype.UUID
		gTenantID pgtype.UUID
		createdAt pgtype.Timestamptz
		g         Group
	)
	if err := row.Scan(&id, &gTenantID, &g.JID, &createdAt); err != nil {
		return Group{}, err
	}
	g.ID = id.String()
	g.TenantID = gTenantID.String()
	g.CreatedAt = createdAt.Time
	return g, nil
}

func (s *PGStore) UpsertPatientConversation(ctx context.Context, tenantID, patientID string) (Conversation, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Conversation{}, err
	}
	pgPatientID, err := dbpkg.ParseUUID(patientID)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (tenant_id, patient_id) VALUES ($1, $2)
		 ON CONFLICT (tenant_id, patient_id) WHERE patient_id IS NOT NULL
		 DO UPDATE SET tenant_id = EXCLUDED.tenant_id
		 RETURNING id, tenant_id, patient_id, group_id, started_at, updated_at`,
		pgTenantID, pgPatientID)
	return scanConversation(row)
}

func (s *PGStore) UpsertGroupConversation(ctx context.Context, tenantID, groupID string) (Conversation, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return Conversation{}, err
	}
	pgGroupID, err := dbpkg.ParseUUID(groupID)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO conversations (tenant_id, group_id) VALUES ($1, $2)
		 ON CONFLICT (tenant_id, group_id) WHERE group_id IS NOT NULL
		 DO UPDATE SET tenant_id = EXCLUDED.tenant_id
		 RETURNING id, tenant_id, patient_id, group_id, started_at, updated_at`,
		pgTenantID, pgGroupID)
	return scanConversation(row)
}

func (s *PGStore) Get(ctx context.Context, id string) (Conversation, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Conversation{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, patient_id, group_id, started_at, updated_at
		 FROM conversations WHERE id = $1`, pgID)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Conversation{}, ErrNotFound
	}
	return conv, err
}

func (s *PGStore) Touch(ctx context.Context, id string, at time.Time) error {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE conversations SET updated_at = $2 WHERE id = $1`,
		pgID, pgtype.Timestamptz{Time: at, Valid: true})
	return err
}

func (s *PGStore) DisplayName(ctx context.Context, id string) (string, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return "", err
	}
	var name pgtype.Text
	err = s.pool.QueryRow(ctx,
		`SELECT COALESCE(p.name, g.jid) FROM conversations c
		 LEFT JOIN patients p ON p.id = c.patient_id
		 LEFT JOIN groups g ON g.id = c.group_id
		 WHERE c.id = $1`, pgID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return dbpkg.TextToString(name), nil
}

func (s *PGStore) ListByTenant(ctx context.Context, tenantID string) ([]Summary, error) {
	pgTenantID, err := dbpkg.ParseUUID(tenantID)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, COALESCE(p.name, g.jid), m.content, c.updated_at
		 FROM conversations c
		 LEFT JOIN patients p ON p.id = c.patient_id
		 LEFT JOIN groups g ON g.id = c.group_id
		 LEFT JOIN LATERAL (
		     SELECT content FROM messages
		     WHERE conversation_id = c.id
		     ORDER BY created_at DESC LIMIT 1
		 ) m ON true
		 WHERE c.tenant_id = $1
		 ORDER BY c.updated_at DESC`, pgTenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var (
			id        pgtype.UUID
			name      pgtype.Text
			last      pgtype.Text
			updatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &name, &last, &updatedAt); err != nil {
			return nil, err
		}
		display := dbpkg.TextToString(name)
		if display == "" {
			display = FallbackDisplayName
		}
		summaries = append(summaries, Summary{
			ID:          id.String(),
			DisplayName: display,
			LastMessage: dbpkg.TextToString(last),
			UpdatedAt:   updatedAt.Time,
		})
	}
	return summaries, rows.Err()
}

func scanPatient(row pgx.Row) (Patient, error) {
	var (
		id        pgtype.UUID
		tenantID  pgtype.UUID
		createdAt pgtype.Timestamptz
		p         Patient
	)
	err := row.Scan(&id, &tenantID, &p.Name, &p.Phone, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Patient{}, ErrParticipantNotFound
	}
	if err != nil {
		return Patient{}, err
	}
	p.ID = id.String()
	p.TenantID = tenantID.String()
	p.CreatedAt = createdAt.Time
	return p, nil
}

func scanConversation(row pgx.Row) (Conversation, error) {
	var (
		id        pgtype.UUID
		tenantID  pgtype.UUID
		patientID pgtype.UUID
		groupID   pgtype.UUID
		startedAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &tenantID, &patientID, &groupID, &startedAt, &updatedAt); err != nil {
		return Conversation{}, err
	}
	conv := Conversation{
		ID:        id.String(),
		TenantID:  tenantID.String(),
		StartedAt: startedAt.Time,
		UpdatedAt: updatedAt.Time,
	}
	if patientID.Valid {
		conv.PatientID = patientID.String()
	}
	if groupID.Valid {
		conv.GroupID = groupID.String()
	}
	return conv, nil
}
