// Package validate holds the admission checks run before any mutation or
// external transfer call. Every function is pure.
package validate

import (
	"fmt"
	"time"

	"github.com/punchamoorthee/payscheduler/internal/apperrors"
	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// Amount rejects anything that is not a positive integer within the 128-bit range.
func Amount(amount domain.Amount) error {
	if !amount.IsPositive() {
		return apperrors.New(apperrors.KindInvalidAmount, "validate.Amount",
			fmt.Sprintf("amount must be positive, got %s", amount.String()))
	}
	if !amount.IsInteger() {
		return apperrors.New(apperrors.KindInvalidAmount, "validate.Amount",
			fmt.Sprintf("amount must be a whole number of the smallest unit, got %s", amount.String()))
	}
	if amount.GreaterThan(domain.MaxAmount) {
		return apperrors.New(apperrors.KindInvalidAmount, "validate.Amount", "amount exceeds the 128-bit range")
	}
	return nil
}

// ParallelLengths requires one amount per payee.
func ParallelLengths(payees []domain.Account, amounts []domain.Amount) error {
	if len(payees) != len(amounts) {
		return apperrors.New(apperrors.KindLengthMismatch, "validate.ParallelLengths",
			fmt.Sprintf("%d payees but %d amounts", len(payees), len(amounts)))
	}
	return nil
}

// Interval rejects zero and negative recurrence periods.
func Interval(interval time.Duration) error {
	if interval <= 0 {
		return apperrors.New(apperrors.KindInvalidInterval, "validate.Interval",
			fmt.Sprintf("interval must be positive, got %s", interval))
	}
	return nil
}

// Bulk checks the lengths and then every amount. It returns the first
// failure, naming the offending index.
func Bulk(payees []domain.Account, amounts []domain.Amount) error {
	if err := ParallelLengths(payees, amounts); err != nil {
		return err
	}
	for i, amount := range amounts {
		if err := Amount(amount); err != nil {
			return apperrors.New(apperrors.KindInvalidAmount, "validate.Bulk",
				fmt.Sprintf("entry %d (payee %s): %s", i, payees[i], apperrors.Reason(err)))
		}
	}
	return nil
}
