// Package ledger is the append-only audit log of attempted transfers.
//
// The ledger is not a source of truth for balances; those belong to the
// external transfer service.
package ledger

import (
	"context"
	"iter"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Pager serves one page of an account's history.
type Pager interface {
	// History returns records where account is payer or payee, newest first.
	History(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error)
}

// Ledger records transfer attempts and serves per-account history.
type Ledger interface {
	Pager
	// Record appends rec and returns it with its sequence assigned.
	// Any error is a storage failure.
	Record(ctx context.Context, rec domain.TransferRecord) (domain.TransferRecord, error)
}

// ClampLimit applies the default and the upper bound to a requested page size.
func ClampLimit(limit, max int) int {
	if max <= 0 {
		max = MaxPageSize
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > max {
		limit = max
	}
	return limit
}

// Iterate walks an account's whole history lazily, one page at a time.
// Iteration stops at the first error, which is yielded once.
func Iterate(ctx context.Context, l Pager, account domain.Account, pageSize int) iter.Seq2[domain.TransferRecord, error] {
	return func(yield func(domain.TransferRecord, error) bool) {
		cursor := ""
		for {
			page, err := l.History(ctx, account, pageSize, cursor)
			if err != nil {
				yield(domain.TransferRecord{}, err)
				return
			}
			for _, rec := range page.Records {
				if !yield(rec, nil) {
					return
				}
			}
			if page.NextCursor == "" {
				return
			}
			cursor = page.NextCursor
		}
	}
}
