package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DB_DSN", "postgres://localhost/bookings")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, time.Minute, cfg.ReconcileInterval)
	assert.Equal(t, 24*time.Hour, cfg.ReviewSweepInterval)
	assert.Equal(t, time.UTC, cfg.Location())
	assert.True(t, cfg.MigrateOnStart)
}

func TestLoadMemoryStorageNeedsNoDSN(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("STORAGE", StorageMemory)
	t.Setenv("DB_DSN", "")
	t.Setenv("TIMEZONE", "Europe/Moscow")
	t.Setenv("RECONCILE_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Moscow", cfg.Location().String())
	assert.Equal(t, 30*time.Second, cfg.ReconcileInterval)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": "", "STORAGE": StorageMemory}},
		{name: "postgres without dsn", env: map[string]string{"JWT_SECRET": "s", "STORAGE": StoragePostgres, "DB_DSN": ""}},
		{name: "unknown storage", env: map[string]string{"JWT_SECRET": "s", "STORAGE": "sqlite"}},
		{name: "bad timezone", env: map[string]string{"JWT_SECRET": "s", "STORAGE": StorageMemory, "TIMEZONE": "Mars/Olympus"}},
		{name: "zero interval", env: map[string]string{"JWT_SECRET": "s", "STORAGE": StorageMemory, "RECONCILE_INTERVAL": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
