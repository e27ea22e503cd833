package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// Memory is an in-process balance book. Unknown accounts are rejected.
type Memory struct {
	mu       sync.Mutex
	balances map[domain.Account]domain.Amount
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[domain.Account]domain.Amount)}
}

// Fund opens the account if needed and credits it.
func (m *Memory) Fund(account domain.Account, amount domain.Amount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[account] = m.balance(account).Add(amount)
}

func (m *Memory) Transfer(_ context.Context, from, to domain.Account, amount domain.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	fromBalance, ok := m.balances[from]
	if !ok {
		return fmt.Errorf("payer %s: %w", from, ErrAccountNotFound)
	}
	if _, ok := m.balances[to]; !ok {
		return fmt.Errorf("payee %s: %w", to, ErrAccountNotFound)
	}
	if fromBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}
	m.balances[from] = fromBalance.Sub(amount)
	m.balances[to] = m.balances[to].Add(amount)
	return nil
}

func (m *Memory) BalanceOf(_ context.Context, account domain.Account) (domain.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	bal, ok := m.balances[account]
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: %w", account, ErrAccountNotFound)
	}
	return bal, nil
}

func (m *Memory) balance(account domain.Account) domain.Amount {
	if bal, ok := m.balances[account]; ok {
		return bal
	}
	return decimal.Zero
}
