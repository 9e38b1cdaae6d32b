package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Parallel()

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultJWTExpiresIn, cfg.Auth.JWTExpiresIn)
	assert.Equal(t, DefaultPGHost, cfg.Postgres.Host)
	assert.Equal(t, DefaultQueueName, cfg.Queue.Exchange)
	assert.Empty(t, cfg.Queue.URL, "queue publishing is disabled by default")
}

func TestLoadOverridesFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[server]
addr = ":9090"

[auth]
jwt_secret = "s3cret"

[postgres]
host = "db.internal"
port = 5433
user = "clinwave"
password = "pw"
database = "relay"

[storage]
base_url = "https://proj.supabase.co"
api_key = "sb-key"
bucket = "uploads"

[queue]
url = "amqp://user:pass@mq:5672/"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, "postgres://clinwave:pw@db.internal:5433/relay?sslmode=disable", cfg.Postgres.DSN())
	assert.Equal(t, "https://proj.supabase.co", cfg.Storage.BaseURL)
	assert.Equal(t, "uploads", cfg.Storage.Bucket)
	assert.Equal(t, "amqp://user:pass@mq:5672/", cfg.Queue.URL)
	assert.Equal(t, DefaultQueueName, cfg.Queue.Exchange, "unset keys keep their defaults")
}
