package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/clinwave/clinwave/internal/auth"
	"github.com/clinwave/clinwave/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WSHandler struct {
	hub    *ws.Hub
	api    ws.ChatAPI
	logger *slog.Logger
}

func NewWSHandler(log *slog.Logger, hub *ws.Hub, api ws.ChatAPI) *WSHandler {
	return &WSHandler{
		hub:    hub,
		api:    api,
		logger: log.With(slog.String("handler", "ws")),
	}
}

func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Connect)
}

// Connect upgrades an authenticated request to a websocket session. Browser
// clients pass the token via the `token` query parameter since they cannot
// set headers on the upgrade request.
func (h *WSHandler) Connect(c echo.Context) error {
	session, err := auth.SessionFromContext(c)
	if err != nil {
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("upgrade failed", slog.Any("error", err))
		return err
	}

	// The request context dies once the handler returns, so the session
	// runs detached and lives until the socket closes.
	client := ws.NewClient(h.hub, conn, h.api, session, h.logger)
	go client.Run(context.Background())
	return nil
}
