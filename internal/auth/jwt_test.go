package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateTokenAndSessionFromContext(t *testing.T) {
	secret := "test-secret"
	tokenStr, expiresAt, err := GenerateToken("agent-1", "tenant-1", secret, time.Hour)
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", token)

	session, err := SessionFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "agent-1", session.AgentID)
	assert.Equal(t, "tenant-1", session.TenantID)
}

func TestGenerateTokenRequiresIdentity(t *testing.T) {
	_, _, err := GenerateToken("", "tenant-1", "s", time.Hour)
	assert.Error(t, err)

	_, _, err = GenerateToken("agent-1", "", "s", time.Hour)
	assert.Error(t, err)
}

func TestSessionFromContextWithoutToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_, err := SessionFromContext(c)
	assert.Error(t, err)
}

func TestTokenRejectedWithWrongSecret(t *testing.T) {
	tokenStr, _, err := GenerateToken("agent-1", "tenant-1", "secret-a", time.Hour)
	require.NoError(t, err)

	_, err = jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	})
	assert.Error(t, err)
}
