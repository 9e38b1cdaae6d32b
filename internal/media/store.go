package media

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	dbpkg "github.com/clinwave/clinwave/internal/db"
	"github.com/clinwave/clinwave/internal/evolution"
)

// ErrNotFound indicates no media record exists for the message.
var ErrNotFound = errors.New("media not found")

// PGStore is the Postgres-backed media store.
type PGStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a media store.
func NewStore(log *slog.Logger, pool *pgxpool.Pool) *PGStore {
	if log == nil {
		log = slog.Default()
	}
	return &PGStore{
		pool:   pool,
		logger: log.With(slog.String("store", "media")),
	}
}

func (s *PGStore) Insert(ctx context.Context, m Media) (Media, error) {
	pgMessageID, err := dbpkg.ParseUUID(m.MessageID)
	if err != nil {
		return Media{}, err
	}
	duration := pgtype.Int4{}
	if m.Duration > 0 {
		duration = pgtype.Int4{Int32: int32(m.Duration), Valid: true}
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO media (message_id, kind, file_url, mime_type, caption, duration)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, message_id, kind, file_url, mime_type, caption, duration, created_at`,
		pgMessageID, string(m.Kind), m.FileURL, m.MimeType, dbpkg.ToPgText(m.Caption), duration)
	return scanMedia(row)
}

func (s *PGStore) GetByMessage(ctx context.Context, messageID string) (Media, error) {
	pgMessageID, err := dbpkg.ParseUUID(messageID)
	if err != nil {
		return Media{}, err
	}
	row := s.pool.QueryRow(ctx,
		`SELECT id, message_id, kind, file_url, mime_type, caption, duration, created_at
		 FROM media WHERE message_id = $1`, pgMessageID)
	m, err := scanMedia(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Media{}, ErrNotFound
	}
	return m, err
}

func scanMedia(row pgx.Row) (Media, error) {
	var (
		id        pgtype.UUID
		messageID pgtype.UUID
		kind      string
		caption   pgtype.Text
		duration  pgtype.Int4
		createdAt pgtype.Timestamptz
		m         Media
	)
	if err := row.Scan(&id, &messageID, &kind, &m.FileURL, &m.MimeType, &caption, &duration, &createdAt); err != nil {
		return Media{}, err
	}
	m.ID = id.String()
	m.MessageID = messageID.String()
	m.Kind = evolution.Kind(kind)
	m.Caption = dbpkg.TextToString(caption)
	if duration.Valid {
		m.Duration = int(duration.Int32)
	}
	m.CreatedAt = createdAt.Time
	return m, nil
}
