package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// Postgres is a balance book kept in the accounts table.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// Transfer debits and credits within one transaction, taking row locks in
// account id order so concurrent transfers cannot deadlock.
func (p *Postgres) Transfer(ctx context.Context, from, to domain.Account, amount domain.Amount) error {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	// 1. Deterministic Locking
	first, second := from, to
	if first > second {
		first, second = to, from
	}

	balances := make(map[domain.Account]decimal.Decimal, 2)
	for _, id := range []domain.Account{first, second} {
		if _, locked := balances[id]; locked {
			continue
		}
		var bal decimal.Decimal
		err = tx.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1 FOR UPDATE", string(id)).Scan(&bal)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("%s: %w", id, ErrAccountNotFound)
			}
			return fmt.Errorf("lock acquisition failed: %w", err)
		}
		balances[id] = bal
	}

	// 2. Funds Check
	if balances[from].LessThan(amount) {
		return ErrInsufficientFunds
	}

	// 3. Move Value
	if from != to {
		if _, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance - $1 WHERE id = $2", amount, string(from)); err != nil {
			return fmt.Errorf("debit failed: %w", err)
		}
		if _, err = tx.Exec(ctx, "UPDATE accounts SET balance = balance + $1 WHERE id = $2", amount, string(to)); err != nil {
			return fmt.Errorf("credit failed: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (p *Postgres) BalanceOf(ctx context.Context, account domain.Account) (domain.Amount, error) {
	var bal decimal.Decimal
	err := p.db.QueryRow(ctx, "SELECT balance FROM accounts WHERE id = $1", string(account)).Scan(&bal)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
		}
		return decimal.Zero, fmt.Errorf("balance query failed: %w", err)
	}
	return bal, nil
}

// Open creates an account with an opening balance, or tops it up.
func (p *Postgres) Open(ctx context.Context, account domain.Account, opening domain.Amount) error {
	_, err := p.db.Exec(ctx,
		`INSERT INTO accounts (id, balance) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		string(account), opening)
	if err != nil {
		return fmt.Errorf("open account failed: %w", err)
	}
	return nil
}
