package message

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/clinwave/clinwave/internal/db"
	"github.com/clinwave/clinwave/internal/evolution"
)

// PGStore is the Postgres-backed message store.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a message store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("store", "message")),
	}
}

const messageColumns = `id, conversation_id, sender, content, kind, gateway_message_id, status, created_at`

func (s *PGStore) Insert(ctx context.Context, params InsertParams) (Message, error) {
	pgConvID, err := dbpkg.ParseUUID(params.ConversationID)
	if err != nil {
		return Message{}, err
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO messages (conversation_id, sender, content, kind, gateway_message_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT DO NOTHING
		 RETURNING `+messageColumns,
		pgConvID,
		params.Sender,
		dbpkg.ToPgText(params.Content),
		string(params.Kind),
		dbpkg.ToPgText(params.GatewayMessageID),
		string(params.Status),
		pgtype.Timestamptz{Time: createdAt, Valid: true})

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict on the inbound dedup index: redelivered gateway event.
		return Message{}, ErrDuplicate
	}
	return msg, err
}

func (s *PGStore) UpdateStatus(ctx context.Context, id string, from, to Status, deliveryID string) (Message, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Message{}, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE messages
		 SET status = $3, gateway_message_id = COALESCE($4, gateway_message_id)
		 WHERE id = $1 AND status = $2
		 RETURNING `+messageColumns,
		pgID, string(from), string(to), dbpkg.ToPgText(deliveryID))

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the row is missing or it is not in the expected state;
		// both violate the monotonic lifecycle.
		return Message{}, ErrInvalidTransition
	}
	return msg, err
}

func (s *PGStore) UpdateStatusIn(ctx context.Context, conversationID, id string, from, to Status) (Message, error) {
	pgID, err := dbpkg.ParseUUID(id)
	if err != nil {
		return Message{}, err
	}
	pgConvID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return Message{}, err
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE messages
		 SET status = $4
		 WHERE id = $1 AND conversation_id = $2 AND status = $3
		 RETURNING `+messageColumns,
		pgID, pgConvID, string(from), string(to))

	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Messages in other conversations must look missing, not stuck.
		var exists bool
		if checkErr := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM messages WHERE id = $1 AND conversation_id = $2)`,
			pgID, pgConvID).Scan(&exists); checkErr == nil && !exists {
			return Message{}, ErrNotFound
		}
		return Message{}, ErrInvalidTransition
	}
	return msg, err
}

func (s *PGStore) ListBefore(ctx context.Context, conversationID string, before *time.Time, limit int32) ([]Message, error) {
	pgConvID, err := dbpkg.ParseUUID(conversationID)
	if err != nil {
		return nil, err
	}
	cursor := pgtype.Timestamptz{}
	if before != nil {
		cursor = pgtype.Timestamptz{Time: *before, Valid: true}
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageColumns+` FROM messages
		 WHERE conversation_id = $1 AND ($2::timestamptz IS NULL OR created_at < $2)
		 ORDER BY created_at DESC
		 LIMIT $3`,
		pgConvID, cursor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func scanMessage(row pgx.Row) (Message, error) {
	var (
		id        pgtype.UUID
		convID    pgtype.UUID
		content   pgtype.Text
		kind      string
		gatewayID pgtype.Text
		status    string
		createdAt pgtype.Timestamptz
		m         Message
	)
	if err := row.Scan(&id, &convID, &m.Sender, &content, &kind, &gatewayID, &status, &createdAt); err != nil {
		return Message{}, err
	}
	m.ID = id.String()
	m.ConversationID = convID.String()
	m.Content = dbpkg.TextToString(content)
	m.Kind = evolution.Kind(kind)
	m.GatewayMessageID = dbpkg.TextToString(gatewayID)
	m.Status = Status(status)
	m.CreatedAt = createdAt.Time
	return m, nil
}
