package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/payscheduler/internal/ledger"
)

// openPostgres connects to TEST_DB_SOURCE, applies the embedded schema and
// empties the tables. It returns nil when the variable is unset.
func openPostgres(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DB_SOURCE")
	if dsn == "" {
		return nil
	}
	ctx := context.Background()

	s, err := NewStore(ctx, dsn, ledger.MaxPageSize)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	up, err := Migrations.ReadFile("migrations/000001_init.up.sql")
	require.NoError(t, err)
	_, err = s.Db.Exec(ctx, string(up))
	require.NoError(t, err)
	_, err = s.Db.Exec(ctx, `TRUNCATE transfer_records, payment_schedules RESTART IDENTITY`)
	require.NoError(t, err)
	return s
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := Migrations.ReadDir("migrations")
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	require.ElementsMatch(t, []string{"000001_init.up.sql", "000001_init.down.sql"}, names)
}
