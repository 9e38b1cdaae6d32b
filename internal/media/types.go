package media

import (
	"context"
	"errors"
	"time"

	"github.com/clinwave/clinwave/internal/evolution"
)

var (
	// ErrProviderUnavailable indicates the storage provider is not configured.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrUnsupportedKind indicates a kind with no media folder mapping.
	ErrUnsupportedKind = errors.New("kind carries no media")
)

// Media is the durable record of a materialized attachment.
type Media struct {
	ID        string         `json:"id"`
	MessageID string         `json:"message_id"`
	Kind      evolution.Kind `json:"kind"`
	FileURL   string         `json:"file_url"`
	MimeType  string         `json:"mime_type"`
	Caption   string         `json:"caption,omitempty"`
	Duration  int            `json:"duration,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Storage uploads bytes to durable object storage and returns a public URL.
type Storage interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
}

// Store persists media records.
type Store interface {
	Insert(ctx context.Context, m Media) (Media, error)
	GetByMessage(ctx context.Context, messageID string) (Media, error)
}

// MaterializeInput describes a remote media reference to make durable.
type MaterializeInput struct {
	MessageID        string
	GatewayMessageID string
	Kind             evolution.Kind
	MediaURL         string
	MimeType         string
	Caption          string
	Duration         int
}
