// Package transfer adapts the external value-transfer primitive. Transfers
// are non-reversible once Transfer returns nil.
package transfer

import (
	"context"
	"errors"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Service moves value between accounts and reports balances.
type Service interface {
	Transfer(ctx context.Context, from, to domain.Account, amount domain.Amount) error
	BalanceOf(ctx context.Context, account domain.Account) (domain.Amount, error)
}
