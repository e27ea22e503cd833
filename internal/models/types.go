// Package models holds the JSON payloads of the HTTP API.
package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/punchamoorthee/payscheduler/internal/domain"
)

// PaymentRequest is the payload of a one-off payment. Amount accepts a JSON
// number or a decimal string.
type PaymentRequest struct {
	Payer   string          `json:"payer" validate:"required"`
	Payee   string          `json:"payee" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Message string          `json:"message" validate:"max=500"`
}

// BulkPaymentRequest pays Payees[i] Amounts[i], in order.
type BulkPaymentRequest struct {
	Payer   string            `json:"payer" validate:"required"`
	Payees  []string          `json:"payees" validate:"required,dive,required"`
	Amounts []decimal.Decimal `json:"amounts" validate:"required"`
}

// BulkPaymentResponse lists what committed. Failure is set when the batch
// stopped early.
type BulkPaymentResponse struct {
	BatchID   string                  `json:"batch_id,omitempty"`
	Committed []domain.TransferRecord `json:"committed"`
	Failure   *BulkFailure            `json:"failure,omitempty"`
}

type BulkFailure struct {
	Index   int                    `json:"index"`
	Payee   string                 `json:"payee"`
	Error   string                 `json:"error"`
	Kind    string                 `json:"kind"`
	Record  *domain.TransferRecord `json:"record,omitempty"`
	Skipped int                    `json:"skipped"`
}

type ScheduleRequest struct {
	Owner           string          `json:"owner" validate:"required"`
	Payee           string          `json:"payee" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	IntervalSeconds int64           `json:"interval_seconds"`
}

// Schedule is the wire form of a schedule definition.
type Schedule struct {
	ID              string          `json:"id"`
	Owner           string          `json:"owner"`
	Payee           string          `json:"payee"`
	Amount          decimal.Decimal `json:"amount"`
	IntervalSeconds int64           `json:"interval_seconds"`
	NextDue         time.Time       `json:"next_due"`
	Status          string          `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
}

func NewSchedule(def domain.ScheduleDefinition) Schedule {
	return Schedule{
		ID:              def.ID,
		Owner:           string(def.Owner),
		Payee:           string(def.Payee),
		Amount:          def.Amount,
		IntervalSeconds: int64(def.Interval / time.Second),
		NextDue:         def.NextDue,
		Status:          string(def.Status),
		CreatedAt:       def.CreatedAt,
	}
}

// RunSchedulesRequest optionally pins the evaluation time; the server clock
// is used otherwise.
type RunSchedulesRequest struct {
	Now *time.Time `json:"now"`
}

type ScheduleRunResult struct {
	ScheduleID string     `json:"schedule_id"`
	RecordID   string     `json:"record_id,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	NextDue    *time.Time `json:"next_due,omitempty"`
	Error      string     `json:"error,omitempty"`
	Skipped    bool       `json:"skipped,omitempty"`
}

type RunSchedulesResponse struct {
	Now     time.Time           `json:"now"`
	Due     int                 `json:"due"`
	Failed  int                 `json:"failed"`
	Skipped int                 `json:"skipped"`
	Results []ScheduleRunResult `json:"results"`
}

type BalanceResponse struct {
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

// ErrorResponse carries the error kind and, for a rejected transfer, the
// record that was written for it.
type ErrorResponse struct {
	Error  string                 `json:"error"`
	Kind   string                 `json:"kind,omitempty"`
	Record *domain.TransferRecord `json:"record,omitempty"`
}
