package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("CARD_DB_DRIVER", "sqlite3")
	t.Setenv("CARD_DB_DSN", "file:cards.db")
	t.Setenv("CARD_JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3002", cfg.HTTP.Addr)
	assert.Equal(t, 720*time.Hour, cfg.JWT.TTL)
	assert.Equal(t, 1000, cfg.Allocator.Min)
	assert.Equal(t, 999999, cfg.Allocator.Max)
	assert.Equal(t, 1000, cfg.Allocator.MaxAttempts)
	assert.Equal(t, "local", cfg.Lock.Backend)
	assert.Equal(t, 5*time.Second, cfg.Lock.TTL)
	assert.False(t, cfg.Repair.OnStartup)
	assert.Zero(t, cfg.Repair.Interval)
	assert.Equal(t, []string{"*"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("CARD_HTTP_ADDR", ":9000")
	t.Setenv("CARD_ALLOCATOR_MAX_ATTEMPTS", "50")
	t.Setenv("CARD_LOCK_BACKEND", "redis")
	t.Setenv("CARD_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CARD_REPAIR_INTERVAL", "10m")
	t.Setenv("CARD_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTP.Addr)
	assert.Equal(t, 50, cfg.Allocator.MaxAttempts)
	assert.Equal(t, "redis", cfg.Lock.Backend)
	assert.Equal(t, 10*time.Minute, cfg.Repair.Interval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"CARD_JWT_SECRET": ""}},
		{"missing driver", map[string]string{"CARD_DB_DRIVER": ""}},
		{"redis without url", map[string]string{"CARD_LOCK_BACKEND": "redis"}},
		{"unknown backend", map[string]string{"CARD_LOCK_BACKEND": "etcd"}},
		{"bad ttl", map[string]string{"CARD_JWT_TTL": "soon"}},
		{"inverted range", map[string]string{"CARD_ALLOCATOR_MIN": "10", "CARD_ALLOCATOR_MAX": "5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
