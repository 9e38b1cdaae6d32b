package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/ingest"
)

type fakeIngestor struct {
	bodies []string
	err    error
}

func (f *fakeIngestor) Ingest(ctx context.Context, body []byte) error {
	f.bodies = append(f.bodies, string(body))
	return f.err
}

func doWebhook(t *testing.T, ingestor Ingestor, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	NewWebhookHandler(slog.Default(), ingestor).Register(e)
	req := httptest.NewRequest(http.MethodPost, "/webhook/evolution", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestWebhookAccepted(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{}
	rec := doWebhook(t, ingestor, `{"apikey": "secret-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, ingestor.bodies, 1)
	assert.JSONEq(t, `{"apikey": "secret-1"}`, ingestor.bodies[0])
}

func TestWebhookInvalidPayload(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{err: evolution.ErrInvalidPayload}
	rec := doWebhook(t, ingestor, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookUnknownCredential(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{err: ingest.ErrUnauthorized}
	rec := doWebhook(t, ingestor, `{"apikey": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookMissingCredential(t *testing.T) {
	t.Parallel()

	// A secret-less body fails authentication, not validation.
	ingestor := &fakeIngestor{err: ingest.ErrUnauthorized}
	rec := doWebhook(t, ingestor, `{"data": {"key": {"remoteJid": "x@s.whatsapp.net", "id": "M1"}}}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookUnboundTenant(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{err: ingest.ErrTenantMisconfigured}
	rec := doWebhook(t, ingestor, `{"apikey": "secret-1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookProcessingFailure(t *testing.T) {
	t.Parallel()

	ingestor := &fakeIngestor{err: errors.New("db down")}
	rec := doWebhook(t, ingestor, `{"apikey": "secret-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
