package ledger

import (
	"context"
	"sync"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// MemoryLedger keeps records in process memory. It is safe for concurrent
// use and suited to tests and single-instance hosts.
type MemoryLedger struct {
	mu        sync.RWMutex
	records   []domain.TransferRecord
	byAccount map[domain.Account][]int
	maxLimit  int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{byAccount: make(map[domain.Account][]int), maxLimit: MaxPageSize}
}

// WithMaxLimit caps the page size History will serve.
func (l *MemoryLedger) WithMaxLimit(max int) *MemoryLedger {
	if max > 0 {
		l.maxLimit = max
	}
	return l
}

func (l *MemoryLedger) Record(_ context.Context, rec domain.TransferRecord) (domain.TransferRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Seq = int64(len(l.records) + 1)
	idx := len(l.records)
	l.records = append(l.records, rec)
	l.byAccount[rec.Payer] = append(l.byAccount[rec.Payer], idx)
	if rec.Payee != rec.Payer {
		l.byAccount[rec.Payee] = append(l.byAccount[rec.Payee], idx)
	}
	return rec, nil
}

func (l *MemoryLedger) History(_ context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error) {
	limit = ClampLimit(limit, l.maxLimit)

	var before int64
	if cursor != "" {
		seq, err := DecodeCursor(cursor, account)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		before = seq
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	idxs := l.byAccount[account]
	page := domain.HistoryPage{Records: make([]domain.TransferRecord, 0, limit)}
	for i := len(idxs) - 1; i >= 0; i-- {
		rec := l.records[idxs[i]]
		if before > 0 && rec.Seq >= before {
			continue
		}
		if len(page.Records) == limit {
			last := page.Records[len(page.Records)-1]
			page.NextCursor = EncodeCursor(account, last.Seq)
			break
		}
		page.Records = append(page.Records, rec)
	}
	return page, nil
}

// Len returns the number of records appended so far.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
