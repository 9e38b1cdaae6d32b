package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinwave/clinwave/internal/agents"
)

type AuthHandler struct {
	agents *agents.Service
	logger *slog.Logger
}

func NewAuthHandler(log *slog.Logger, agentsService *agents.Service) *AuthHandler {
	return &AuthHandler{
		agents: agentsService,
		logger: log.With(slog.String("handler", "auth")),
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	group := e.Group("/auth")
	group.POST("/login", h.Login)
	group.POST("/register", h.RegisterAgent)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	TenantID string `json:"tenant_id" validate:"required,uuid"`
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type sessionResponse struct {
	Agent agents.Agent `json:"agent"`
	Token agents.Token `json:"token"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	agent, token, err := h.agents.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, agents.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		h.logger.Error("login failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, sessionResponse{Agent: agent, Token: token})
}

func (h *AuthHandler) RegisterAgent(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	agent, token, err := h.agents.Register(
		c.Request().Context(), req.TenantID, req.Name, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, agents.ErrEmailTaken) {
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		}
		h.logger.Error("registration failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
	}
	return c.JSON(http.StatusCreated, sessionResponse{Agent: agent, Token: token})
}
