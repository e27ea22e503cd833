package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/validate"
)

// BulkError reports where a bulk payment stopped. Entries before Index are
// committed; the entry at Index was recorded as Rejected (unless Err is a
// storage failure); later entries were never attempted.
type BulkError struct {
	Index    int
	Payee    domain.Account
	Rejected domain.TransferRecord
	Err      error
}

func (e *BulkError) Error() string {
	return fmt.Sprintf("bulk payment stopped at entry %d (payee %s): %v", e.Index, e.Payee, e.Err)
}

func (e *BulkError) Unwrap() error { return e.Err }

// ExecuteBulkPayment pays each payee its amount, in input order.
//
// Every entry is validated before the first transfer, so an invalid request
// has no side effects. Execution is fail-fast and not atomic: the first
// transfer failure stops the batch and the records committed before it are
// returned together with a *BulkError. Committed transfers are never
// compensated because the transfer primitive cannot be reversed.
func (e *Executor) ExecuteBulkPayment(ctx context.Context, payer domain.Account, payees []domain.Account, amounts []domain.Amount) ([]domain.TransferRecord, error) {
	if err := validate.Bulk(payees, amounts); err != nil {
		transfersTotal.WithLabelValues(kindBulk, "invalid").Inc()
		return nil, err
	}

	unlock := e.locks.Lock(accountKey(string(payer)))
	defer unlock()

	batchID := uuid.NewString()
	committed := make([]domain.TransferRecord, 0, len(payees))
	for i, payee := range payees {
		rec, err := e.execute(ctx, intent{
			kind:    kindBulk,
			payer:   payer,
			payee:   payee,
			amount:  amounts[i],
			message: fmt.Sprintf("bulk payment %d/%d", i+1, len(payees)),
			batchID: batchID,
		})
		if err != nil {
			e.log.Warn().Err(err).
				Str("batch_id", batchID).
				Int("index", i).
				Int("committed", len(committed)).
				Int("skipped", len(payees)-i-1).
				Msg("bulk payment stopped")
			return committed, &BulkError{Index: i, Payee: payee, Rejected: rec, Err: err}
		}
		committed = append(committed, rec)
	}
	return committed, nil
}
