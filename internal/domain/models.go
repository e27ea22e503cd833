package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is an opaque payer or payee reference.
type Account string

// Amount is a quantity of value in the smallest denomination.
// Only integers in the signed 128-bit range are meaningful.
type Amount = decimal.Decimal

var (
	// MaxAmount is 2^127 - 1.
	MaxAmount = decimal.RequireFromString("170141183460469231731687303715884105727")
	// MinAmount is -2^127.
	MinAmount = decimal.RequireFromString("-170141183460469231731687303715884105728")
)

// NewAmount builds an Amount from an int64 count of the smallest unit.
func NewAmount(v int64) Amount {
	return decimal.NewFromInt(v)
}

type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	ScheduleCancelled ScheduleStatus = "cancelled"
)

// ScheduleDefinition is a recurring payment owned by the schedule registry.
// Cancelled definitions are kept for audit continuity.
type ScheduleDefinition struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	Owner     Account        `json:"owner"`
	Payee     Account        `json:"payee"`
	Amount    Amount         `json:"amount"`
	Interval  time.Duration  `json:"interval"`
	NextDue   time.Time      `json:"next_due"`
	Status    ScheduleStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Active reports whether the schedule can still fire.
func (d ScheduleDefinition) Active() bool {
	return d.Status == ScheduleActive
}

// DueAt reports whether the schedule is active and due at now.
func (d ScheduleDefinition) DueAt(now time.Time) bool {
	return d.Active() && !d.NextDue.After(now)
}

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
)

// TransferRecord is the immutable audit entry of one attempted transfer.
// Seq is assigned by the ledger on append.
type TransferRecord struct {
	ID         string    `json:"id"`
	Seq        int64     `json:"seq"`
	Payer      Account   `json:"payer"`
	Payee      Account   `json:"payee"`
	Amount     Amount    `json:"amount"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    Outcome   `json:"outcome"`
	Reason     string    `json:"reason,omitempty"`
	ScheduleID string    `json:"schedule_id,omitempty"`
	BatchID    string    `json:"batch_id,omitempty"`
}

// Committed reports whether the external transfer succeeded.
func (r TransferRecord) Committed() bool {
	return r.Outcome == OutcomeCommitted
}

// Involves reports whether the account appears as payer or payee.
func (r TransferRecord) Involves(account Account) bool {
	return r.Payer == account || r.Payee == account
}

// HistoryPage is one page of an account's transfer history, newest first.
type HistoryPage struct {
	Records    []TransferRecord `json:"records"`
	NextCursor string           `json:"next_cursor,omitempty"`
}
