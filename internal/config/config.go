package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
	StorageMemory   = "memory"
)

type Config struct {
	DBSource        string
	Port            string
	Env             string
	LogLevel        string
	StorageDriver   string
	SQLitePath      string
	TransferBackend string

	SchedulerEnabled  bool
	SchedulerSpec     string
	SchedulerLocation *time.Location

	EventsRatePerSec int
	RateLimit        string
	HistoryMaxLimit  int

	// MemoryAccounts opens accounts in the in-memory transfer book.
	MemoryAccounts map[string]decimal.Decimal
}

// IsProduction reports whether logs should be JSON rather than console.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load reads configuration from the environment, after an optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORAGE_DRIVER", StoragePostgres)
	v.SetDefault("SQLITE_PATH", "data/payscheduler.db")
	v.SetDefault("TRANSFER_BACKEND", StoragePostgres)
	v.SetDefault("SCHEDULER_ENABLED", true)
	v.SetDefault("SCHEDULER_SPEC", "@every 1m")
	v.SetDefault("SCHEDULER_TIMEZONE", "UTC")
	v.SetDefault("EVENTS_RATE_PER_SEC", 0)
	v.SetDefault("RATE_LIMIT", "100-S")
	v.SetDefault("HISTORY_MAX_LIMIT", 100)
	v.AutomaticEnv()

	cfg := &Config{
		DBSource:         v.GetString("DB_SOURCE"),
		Port:             v.GetString("SERVER_PORT"),
		Env:              v.GetString("ENVIRONMENT"),
		LogLevel:         v.GetString("LOG_LEVEL"),
		StorageDriver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
		SQLitePath:       v.GetString("SQLITE_PATH"),
		TransferBackend:  strings.ToLower(v.GetString("TRANSFER_BACKEND")),
		SchedulerEnabled: v.GetBool("SCHEDULER_ENABLED"),
		SchedulerSpec:    v.GetString("SCHEDULER_SPEC"),
		EventsRatePerSec: v.GetInt("EVENTS_RATE_PER_SEC"),
		RateLimit:        v.GetString("RATE_LIMIT"),
		HistoryMaxLimit:  v.GetInt("HISTORY_MAX_LIMIT"),
	}

	switch cfg.StorageDriver {
	case StoragePostgres, StorageSQLite, StorageMemory:
	default:
		return nil, fmt.Errorf("STORAGE_DRIVER must be postgres, sqlite or memory, got %q", cfg.StorageDriver)
	}
	switch cfg.TransferBackend {
	case StoragePostgres, StorageMemory:
	default:
		return nil, fmt.Errorf("TRANSFER_BACKEND must be postgres or memory, got %q", cfg.TransferBackend)
	}
	if cfg.DBSource == "" && (cfg.StorageDriver == StoragePostgres || cfg.TransferBackend == StoragePostgres) {
		return nil, fmt.Errorf("DB_SOURCE environment variable is required")
	}
	if cfg.HistoryMaxLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_MAX_LIMIT must be positive, got %d", cfg.HistoryMaxLimit)
	}

	loc, err := time.LoadLocation(v.GetString("SCHEDULER_TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_TIMEZONE: %w", err)
	}
	cfg.SchedulerLocation = loc

	if cfg.MemoryAccounts, err = ParseAccounts(v.GetString("MEMORY_ACCOUNTS")); err != nil {
		return nil, fmt.Errorf("invalid MEMORY_ACCOUNTS: %w", err)
	}

	return cfg, nil
}

// ParseAccounts reads "alice:1000,bob:250" into opening balances.
func ParseAccounts(raw string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		id, amount, ok := strings.Cut(entry, ":")
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("entry %q is not id:balance", entry)
		}
		bal, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", entry, err)
		}
		if bal.IsNegative() {
			return nil, fmt.Errorf("entry %q: negative balance", entry)
		}
		out[strings.TrimSpace(id)] = bal
	}
	return out, nil
}
