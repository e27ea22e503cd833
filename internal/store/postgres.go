// Package store holds the persistent Ledger and Registry backends.
package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/schedule"
)

// Migrations is the Postgres schema in golang-migrate layout.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// Store is a Postgres-backed Ledger and Registry sharing one pool.
type Store struct {
	Db       *pgxpool.Pool
	maxLimit int
}

var (
	_ ledger.Ledger     = (*Store)(nil)
	_ schedule.Registry = (*Store)(nil)
)

func NewStore(ctx context.Context, connString string, maxLimit int) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool, maxLimit: maxLimit}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

const recordColumns = `seq, id, payer, payee, amount, message, occurred_at, outcome, reason, schedule_id, batch_id`

func (s *Store) Record(ctx context.Context, rec domain.TransferRecord) (domain.TransferRecord, error) {
	err := s.Db.QueryRow(ctx,
		`INSERT INTO transfer_records (id, payer, payee, amount, message, occurred_at, outcome, reason, schedule_id, batch_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING seq`,
		rec.ID, string(rec.Payer), string(rec.Payee), rec.Amount, rec.Message,
		rec.Timestamp, string(rec.Outcome), rec.Reason, rec.ScheduleID, rec.BatchID,
	).Scan(&rec.Seq)
	if err != nil {
		return domain.TransferRecord{}, fmt.Errorf("insert transfer record: %w", err)
	}
	return rec, nil
}

func (s *Store) History(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error) {
	limit = ledger.ClampLimit(limit, s.maxLimit)

	var before int64
	if cursor != "" {
		seq, err := ledger.DecodeCursor(cursor, account)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		before = seq
	}

	// One extra row tells whether another page exists.
	rows, err := s.Db.Query(ctx,
		`SELECT `+recordColumns+` FROM transfer_records
		 WHERE (payer = $1 OR payee = $1) AND ($2::bigint = 0 OR seq < $2)
		 ORDER BY seq DESC
		 LIMIT $3`,
		string(account), before, limit+1)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("query history: %w", err)
	}
	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TransferRecord, error) {
		return scanRecord(row)
	})
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("scan history: %w", err)
	}
	return pageOf(account, records, limit), nil
}

func (s *Store) Create(ctx context.Context, def domain.ScheduleDefinition) (domain.ScheduleDefinition, error) {
	def = prepareSchedule(def)
	err := s.Db.QueryRow(ctx,
		`INSERT INTO payment_schedules (id, owner, payee, amount, interval_ns, next_due, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING seq`,
		def.ID, string(def.Owner), string(def.Payee), def.Amount,
		int64(def.Interval), def.NextDue, string(def.Status), def.CreatedAt,
	).Scan(&def.Seq)
	if err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("insert schedule: %w", err)
	}
	return def, nil
}

func (s *Store) Cancel(ctx context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error) {
	row := s.Db.QueryRow(ctx,
		`UPDATE payment_schedules SET status = 'cancelled'
		 WHERE id = $1 AND owner = $2
		 RETURNING `+scheduleColumns,
		id, string(owner))
	def, err := scanSchedule(row)
	if err == nil {
		return def, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleDefinition{}, fmt.Errorf("cancel schedule: %w", err)
	}

	// Nothing updated: tell an unknown id from a foreign owner.
	if _, err := s.Get(ctx, id); err != nil {
		return domain.ScheduleDefinition{}, err
	}
	return domain.ScheduleDefinition{}, schedule.NotOwner("store.Cancel", id, owner)
}

func (s *Store) Due(ctx context.Context, now time.Time) ([]domain.ScheduleDefinition, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM payment_schedules
		 WHERE status = 'active' AND next_due <= $1
		 ORDER BY next_due, seq`,
		now)
	if err != nil {
		return nil, fmt.Errorf("query due schedules: %w", err)
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ScheduleDefinition, error) {
		return scanSchedule(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan due schedules: %w", err)
	}
	return defs, nil
}

func (s *Store) Advance(ctx context.Context, id string, from time.Time) (domain.ScheduleDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return domain.ScheduleDefinition{}, err
	}
	if !def.Active() || !def.NextDue.Equal(from) {
		return def, nil
	}

	row := s.Db.QueryRow(ctx,
		`UPDATE payment_schedules SET next_due = $3
		 WHERE id = $1 AND status = 'active' AND next_due = $2
		 RETURNING `+scheduleColumns,
		id, from, from.Add(def.Interval))
	next, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost a race with Cancel or another Advance.
		return s.Get(ctx, id)
	}
	if err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("advance schedule: %w", err)
	}
	return next, nil
}

func (s *Store) Get(ctx context.Context, id string) (domain.ScheduleDefinition, error) {
	row := s.Db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM payment_schedules WHERE id = $1`, id)
	def, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ScheduleDefinition{}, schedule.NotFound("store.Get", id)
	}
	if err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("get schedule: %w", err)
	}
	return def, nil
}

func (s *Store) ListByOwner(ctx context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error) {
	rows, err := s.Db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM payment_schedules WHERE owner = $1 ORDER BY seq`,
		string(owner))
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ScheduleDefinition, error) {
		return scanSchedule(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan schedules: %w", err)
	}
	return defs, nil
}

const scheduleColumns = `seq, id, owner, payee, amount, interval_ns, next_due, status, created_at`

func scanRecord(row pgx.Row) (domain.TransferRecord, error) {
	var (
		rec                   domain.TransferRecord
		payer, payee, outcome string
	)
	err := row.Scan(&rec.Seq, &rec.ID, &payer, &payee, &rec.Amount, &rec.Message,
		&rec.Timestamp, &outcome, &rec.Reason, &rec.ScheduleID, &rec.BatchID)
	if err != nil {
		return domain.TransferRecord{}, err
	}
	rec.Payer = domain.Account(payer)
	rec.Payee = domain.Account(payee)
	rec.Outcome = domain.Outcome(outcome)
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, nil
}

func scanSchedule(row pgx.Row) (domain.ScheduleDefinition, error) {
	var (
		def                  domain.ScheduleDefinition
		owner, payee, status string
		intervalNs           int64
	)
	err := row.Scan(&def.Seq, &def.ID, &owner, &payee, &def.Amount, &intervalNs,
		&def.NextDue, &status, &def.CreatedAt)
	if err != nil {
		return domain.ScheduleDefinition{}, err
	}
	def.Owner = domain.Account(owner)
	def.Payee = domain.Account(payee)
	def.Status = domain.ScheduleStatus(status)
	def.Interval = time.Duration(intervalNs)
	def.NextDue = def.NextDue.UTC()
	def.CreatedAt = def.CreatedAt.UTC()
	return def, nil
}
