package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clinwave/clinwave/internal/evolution"
)

const (
	// downloadTimeout bounds the gateway media fetch.
	downloadTimeout = 30 * time.Second
	// maxMediaBytes caps a single downloaded attachment.
	maxMediaBytes = 64 << 20
)

// kindFolders maps media kinds to their bucket folder.
var kindFolders = map[evolution.Kind]string{
	evolution.KindAudio:    "audio",
	evolution.KindDocument: "documento",
	evolution.KindImage:    "imagem",
	evolution.KindVideo:    "video",
}

// Service downloads remote gateway media and re-uploads it to durable
// object storage, recording the public URL. Failures are returned to the
// caller, which treats them as best-effort enrichment: the message persists
// regardless.
type Service struct {
	store      Store
	storage    Storage
	httpClient *http.Client
	logger     *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, store Store, storage Storage) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:      store,
		storage:    storage,
		httpClient: &http.Client{Timeout: downloadTimeout},
		logger:     log.With(slog.String("service", "media")),
	}
}

// Materialize fetches the remote media, uploads it to object storage, and
// persists the media record for the message.
func (s *Service) Materialize(ctx context.Context, input MaterializeInput) (Media, error) {
	if s.storage == nil {
		return Media{}, ErrProviderUnavailable
	}
	folder, ok := kindFolders[input.Kind]
	if !ok {
		return Media{}, ErrUnsupportedKind
	}

	data, contentType, err := s.download(ctx, input.MediaURL)
	if err != nil {
		return Media{}, fmt.Errorf("download media: %w", err)
	}
	if contentType == "" {
		contentType = input.MimeType
	}

	name := fmt.Sprintf("%s_%d.%s", input.GatewayMessageID, time.Now().UnixNano(), extFromContentType(contentType))
	path := fmt.Sprintf("whatsapp/%s/%s", folder, name)

	publicURL, err := s.storage.Upload(ctx, path, contentType, data)
	if err != nil {
		return Media{}, fmt.Errorf("upload media: %w", err)
	}

	record, err := s.store.Insert(ctx, Media{
		MessageID: input.MessageID,
		Kind:      input.Kind,
		FileURL:   publicURL,
		MimeType:  contentType,
		Caption:   input.Caption,
		Duration:  input.Duration,
	})
	if err != nil {
		return Media{}, fmt.Errorf("persist media: %w", err)
	}
	s.logger.Debug("media materialized",
		slog.String("message_id", input.MessageID),
		slog.String("path", path))
	return record, nil
}

// GetByMessage loads the media record attached to a message, if any.
func (s *Service) GetByMessage(ctx context.Context, messageID string) (Media, error) {
	return s.store.GetByMessage(ctx, messageID)
}

func (s *Service) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, "", err
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// extFromContentType derives a filename extension from a MIME type,
// e.g. "image/png; charset=binary" -> "png".
func extFromContentType(contentType string) string {
	_, after, found := strings.Cut(contentType, "/")
	if !found {
		return "bin"
	}
	ext, _, _ := strings.Cut(after, ";")
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return "bin"
	}
	return ext
}
