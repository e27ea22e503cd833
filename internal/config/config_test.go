package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_SOURCE", "postgresql://localhost/payments")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, StoragePostgres, cfg.StorageDriver)
	assert.Equal(t, StoragePostgres, cfg.TransferBackend)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, "@every 1m", cfg.SchedulerSpec)
	assert.Equal(t, time.UTC, cfg.SchedulerLocation)
	assert.Equal(t, "100-S", cfg.RateLimit)
	assert.Equal(t, 100, cfg.HistoryMaxLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "SQLite")
	t.Setenv("TRANSFER_BACKEND", "memory")
	t.Setenv("SQLITE_PATH", "/tmp/p.db")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SCHEDULER_ENABLED", "false")
	t.Setenv("SCHEDULER_TIMEZONE", "Europe/Berlin")
	t.Setenv("EVENTS_RATE_PER_SEC", "3")
	t.Setenv("HISTORY_MAX_LIMIT", "25")
	t.Setenv("MEMORY_ACCOUNTS", "alice:1000, bob:0")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, StorageSQLite, cfg.StorageDriver)
	assert.Equal(t, StorageMemory, cfg.TransferBackend)
	assert.Equal(t, "/tmp/p.db", cfg.SQLitePath)
	assert.True(t, cfg.IsProduction())
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, "Europe/Berlin", cfg.SchedulerLocation.String())
	assert.Equal(t, 3, cfg.EventsRatePerSec)
	assert.Equal(t, 25, cfg.HistoryMaxLimit)
	require.Len(t, cfg.MemoryAccounts, 2)
	assert.True(t, cfg.MemoryAccounts["alice"].Equal(decimal.NewFromInt(1000)))
	assert.True(t, cfg.MemoryAccounts["bob"].IsZero())
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing db source", map[string]string{"DB_SOURCE": ""}},
		{"unknown storage", map[string]string{"DB_SOURCE": "x", "STORAGE_DRIVER": "redis"}},
		{"unknown transfer backend", map[string]string{"DB_SOURCE": "x", "TRANSFER_BACKEND": "sqlite"}},
		{"bad timezone", map[string]string{"DB_SOURCE": "x", "SCHEDULER_TIMEZONE": "Mars/Olympus"}},
		{"bad history limit", map[string]string{"DB_SOURCE": "x", "HISTORY_MAX_LIMIT": "0"}},
		{"bad memory account", map[string]string{"DB_SOURCE": "x", "MEMORY_ACCOUNTS": "alice=5"}},
		{"negative memory account", map[string]string{"DB_SOURCE": "x", "MEMORY_ACCOUNTS": "alice:-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(viper.New())
			assert.Error(t, err)
		})
	}
}
