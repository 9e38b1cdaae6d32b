package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinwave/clinwave/internal/evolution"
	"github.com/clinwave/clinwave/internal/ingest"
)

// maxWebhookBody bounds webhook bodies; media arrives by URL, not inline.
const maxWebhookBody = 1 << 20

// Ingestor processes one raw webhook body.
type Ingestor interface {
	Ingest(ctx context.Context, body []byte) error
}

type WebhookHandler struct {
	ingest Ingestor
	logger *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, ingestService Ingestor) *WebhookHandler {
	return &WebhookHandler{
		ingest: ingestService,
		logger: log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.POST("/webhook/evolution", h.Receive)
}

func (h *WebhookHandler) Receive(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "unreadable body")
	}

	err = h.ingest.Ingest(c.Request().Context(), body)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, map[string]string{"status": "processed"})
	case errors.Is(err, evolution.ErrInvalidPayload):
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	case errors.Is(err, ingest.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unknown credential")
	case errors.Is(err, ingest.ErrTenantMisconfigured):
		return echo.NewHTTPError(http.StatusBadRequest, "tenant gateway not configured")
	default:
		h.logger.Error("webhook processing failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
	}
}
