package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinwave/clinwave/internal/auth"
	"github.com/clinwave/clinwave/internal/conversation"
	"github.com/clinwave/clinwave/internal/ingest"
	"github.com/clinwave/clinwave/internal/message"
	"github.com/clinwave/clinwave/internal/ws"
)

// ChatAPI implements the shared chat operation surface used by the REST
// handlers and the socket client. Every method takes the caller's tenant so
// other tenants' conversations behave exactly like missing ones.
type ChatAPI struct {
	conversations *conversation.Service
	messages      *message.Service
	ingest        *ingest.Service
	publisher     ws.Publisher
}

// NewChatAPI wires the chat surface.
func NewChatAPI(
	conversations *conversation.Service,
	messages *message.Service,
	ingestService *ingest.Service,
	publisher ws.Publisher,
) *ChatAPI {
	return &ChatAPI{
		conversations: conversations,
		messages:      messages,
		ingest:        ingestService,
		publisher:     publisher,
	}
}

func (a *ChatAPI) VerifyConversation(ctx context.Context, tenantID, conversationID string) error {
	_, err := a.conversations.GetOwned(ctx, tenantID, conversationID)
	return err
}

func (a *ChatAPI) History(ctx context.Context, tenantID, conversationID string, before *time.Time, limit int) ([]message.Message, bool, error) {
	if err := a.VerifyConversation(ctx, tenantID, conversationID); err != nil {
		return nil, false, err
	}
	return a.messages.History(ctx, conversationID, before, limit)
}

func (a *ChatAPI) Send(ctx context.Context, tenantID, conversationID, content string) (message.Message, error) {
	return a.ingest.Send(ctx, tenantID, conversationID, content)
}

func (a *ChatAPI) MarkRead(ctx context.Context, tenantID, conversationID, messageID string) error {
	if err := a.VerifyConversation(ctx, tenantID, conversationID); err != nil {
		return err
	}
	msg, err := a.messages.MarkRead(ctx, conversationID, messageID)
	if err != nil {
		return err
	}
	a.publisher.PublishStatus(tenantID, conversationID, ws.StatusChange{
		MessageID: msg.ID,
		Status:    msg.Status,
	})
	return nil
}

type ChatHandler struct {
	conversations *conversation.Service
	api           *ChatAPI
	logger        *slog.Logger
}

func NewChatHandler(log *slog.Logger, conversations *conversation.Service, api *ChatAPI) *ChatHandler {
	return &ChatHandler{
		conversations: conversations,
		api:           api,
		logger:        log.With(slog.String("handler", "chat")),
	}
}

func (h *ChatHandler) Register(e *echo.Echo) {
	group := e.Group("/conversations")
	group.GET("", h.List)
	group.GET("/:id/messages", h.History)
	group.POST("/:id/messages", h.Send)
	group.POST("/:id/messages/:messageID/read", h.MarkRead)
}

func (h *ChatHandler) List(c echo.Context) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return err
	}
	summaries, err := h.conversations.ListByTenant(c.Request().Context(), session.TenantID)
	if err != nil {
		h.logger.Error("conversation list failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	return c.JSON(http.StatusOK, summaries)
}

type historyPage struct {
	Messages []message.Message `json:"messages"`
	HasMore  bool              `json:"has_more"`
}

func (h *ChatHandler) History(c echo.Context) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return err
	}

	var before *time.Time
	if raw := c.QueryParam("before"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "before must be RFC3339")
		}
		before = &ts
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
		}
	}

	msgs, hasMore, err := h.api.History(
		c.Request().Context(), session.TenantID, c.Param("id"), before, limit)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		h.logger.Error("history failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "history failed")
	}
	return c.JSON(http.StatusOK, historyPage{Messages: msgs, HasMore: hasMore})
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *ChatHandler) Send(c echo.Context) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return err
	}
	var req sendMessageRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	msg, err := h.api.Send(c.Request().Context(), session.TenantID, c.Param("id"), req.Content)
	switch {
	case err == nil:
		return c.JSON(http.StatusCreated, msg)
	case errors.Is(err, conversation.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	case errors.Is(err, ingest.ErrGroupSend):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "group conversations are read only")
	case errors.Is(err, ingest.ErrTenantMisconfigured):
		return echo.NewHTTPError(http.StatusConflict, "gateway not configured for tenant")
	default:
		h.logger.Error("send failed", slog.Any("error", err))
		// The message row (status ERROR) is returned so the client can show
		// the failed attempt.
		if msg.ID != "" {
			return c.JSON(http.StatusBadGateway, msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "send failed")
	}
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return err
	}
	err = h.api.MarkRead(c.Request().Context(), session.TenantID, c.Param("id"), c.Param("messageID"))
	switch {
	case err == nil:
		return c.NoContent(http.StatusNoContent)
	case errors.Is(err, conversation.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	case errors.Is(err, message.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "message not found")
	case errors.Is(err, message.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, "message is not in a readable state")
	default:
		h.logger.Error("mark read failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "mark read failed")
	}
}
