package agents

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/clinwave/clinwave/internal/auth"
)

// Service authenticates and registers agents.
type Service struct {
	store     Store
	secret    string
	expiresIn time.Duration
	logger    *slog.Logger
}

// NewService creates an agents service issuing tokens with the given secret.
func NewService(log *slog.Logger, store Store, secret string, expiresIn time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:     store,
		secret:    secret,
		expiresIn: expiresIn,
		logger:    log.With(slog.String("service", "agents")),
	}
}

// Token is an issued session token.
type Token struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Register creates an agent under a tenant and returns a session token.
func (s *Service) Register(ctx context.Context, tenantID, name, email, password string) (Agent, Token, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Agent{}, Token{}, err
	}
	agent, err := s.store.Create(ctx, tenantID, name, email, string(hashed))
	if err != nil {
		return Agent{}, Token{}, err
	}
	token, err := s.issue(agent)
	if err != nil {
		return Agent{}, Token{}, err
	}
	s.logger.Info("agent registered",
		slog.String("agent_id", agent.ID), slog.String("tenant_id", agent.TenantID))
	return agent, token, nil
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (Agent, Token, error) {
	agent, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Agent{}, Token{}, ErrInvalidCredentials
		}
		return Agent{}, Token{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(password)) != nil {
		return Agent{}, Token{}, ErrInvalidCredentials
	}
	token, err := s.issue(agent)
	if err != nil {
		return Agent{}, Token{}, err
	}
	return agent, token, nil
}

func (s *Service) issue(agent Agent) (Token, error) {
	signed, expiresAt, err := auth.GenerateToken(agent.ID, agent.TenantID, s.secret, s.expiresIn)
	if err != nil {
		return Token{}, err
	}
	return Token{Token: signed, ExpiresAt: expiresAt}, nil
}
