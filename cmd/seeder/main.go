package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/payscheduler/internal/config"
	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/logger"
	"github.com/punchamoorthee/payscheduler/internal/transfer"
)

func main() {
	total := flag.Int("accounts", 1000, "Number of accounts to open")
	balance := flag.Int64("balance", 10000, "Opening balance per account, in the smallest unit")
	prefix := flag.String("prefix", "acct-", "Account id prefix; ids are <prefix>0001..")
	fund := flag.String("fund", "", "Named accounts to open or top up, e.g. alice:1000,bob:50")
	flag.Parse()

	log := logger.New("info", true)
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	named, err := config.ParseAccounts(*fund)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid -fund")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DBSource)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to connect to database")
	}
	defer pool.Close()

	log.Info().Msg("--- Seeding Database ---")

	existing, err := existingAccounts(ctx, pool, *prefix)
	if err != nil {
		log.Fatal().Err(err).Msg("listing accounts failed; run cmd/migrate first")
	}
	missing := missingAccounts(*prefix, *total, existing)
	if len(missing) == 0 {
		log.Info().Int("accounts", len(existing)).Msg("prefixed accounts already seeded, skipping")
	} else {
		now := time.Now()
		rows := make([][]any, 0, len(missing))
		for _, id := range missing {
			rows = append(rows, []any{id, *balance, now})
		}

		copyCount, err := pool.CopyFrom(
			ctx,
			pgx.Identifier{"accounts"},
			[]string{"id", "balance", "created_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			log.Fatal().Err(err).Msg("bulk insert failed")
		}
		log.Info().Int64("accounts", copyCount).Int64("balance", *balance).Msg("seeded accounts")
	}

	book := transfer.NewPostgres(pool)
	for id, amount := range named {
		if err := book.Open(ctx, domain.Account(id), amount); err != nil {
			log.Fatal().Err(err).Str("account", id).Msg("funding failed")
		}
		log.Info().Str("account", id).Str("amount", amount.String()).Msg("funded account")
	}
}

func existingAccounts(ctx context.Context, pool *pgxpool.Pool, prefix string) (map[string]bool, error) {
	rows, err := pool.Query(ctx, "SELECT id FROM accounts WHERE starts_with(id, $1)", prefix)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// missingAccounts lists <prefix>0001..<prefix>total that are not in existing.
// CopyFrom aborts on a duplicate id, so gaps are filled one by one.
func missingAccounts(prefix string, total int, existing map[string]bool) []string {
	var out []string
	for i := 1; i <= total; i++ {
		id := fmt.Sprintf("%s%04d", prefix, i)
		if !existing[id] {
			out = append(out, id)
		}
	}
	return out
}
