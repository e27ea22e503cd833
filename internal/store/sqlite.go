package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/punchamoorthee/payscheduler/internal/domain"
	"github.com/punchamoorthee/payscheduler/internal/ledger"
	"github.com/punchamoorthee/payscheduler/internal/schedule"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

// SQLite is a single-file Ledger and Registry for hosts without Postgres.
// Timestamps are stored as unix nanoseconds and amounts as decimal text.
type SQLite struct {
	db       *sql.DB
	maxLimit int
}

var (
	_ ledger.Ledger     = (*SQLite)(nil)
	_ schedule.Registry = (*SQLite)(nil)
)

// OpenSQLite opens or creates the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string, maxLimit int) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &SQLite{db: db, maxLimit: maxLimit}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Record(ctx context.Context, rec domain.TransferRecord) (domain.TransferRecord, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO transfer_records (id, payer, payee, amount, message, occurred_at, outcome, reason, schedule_id, batch_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Payer), string(rec.Payee), rec.Amount.String(), rec.Message,
		rec.Timestamp.UnixNano(), string(rec.Outcome), rec.Reason, rec.ScheduleID, rec.BatchID,
	)
	if err != nil {
		return domain.TransferRecord{}, fmt.Errorf("insert transfer record: %w", err)
	}
	if rec.Seq, err = res.LastInsertId(); err != nil {
		return domain.TransferRecord{}, fmt.Errorf("transfer record seq: %w", err)
	}
	return rec, nil
}

func (s *SQLite) History(ctx context.Context, account domain.Account, limit int, cursor string) (domain.HistoryPage, error) {
	limit = ledger.ClampLimit(limit, s.maxLimit)

	var before int64
	if cursor != "" {
		seq, err := ledger.DecodeCursor(cursor, account)
		if err != nil {
			return domain.HistoryPage{}, err
		}
		before = seq
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM transfer_records
		 WHERE (payer = ? OR payee = ?) AND (? = 0 OR seq < ?)
		 ORDER BY seq DESC
		 LIMIT ?`,
		string(account), string(account), before, before, limit+1)
	if err != nil {
		return domain.HistoryPage{}, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []domain.TransferRecord
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
		if err != nil {
			return domain.HistoryPage{}, fmt.Errorf("scan history: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.HistoryPage{}, fmt.Errorf("iterate history: %w", err)
	}
	return pageOf(account, records, limit), nil
}

func (s *SQLite) Create(ctx context.Context, def domain.ScheduleDefinition) (domain.ScheduleDefinition, error) {
	def = prepareSchedule(def)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_schedules (id, owner, payee, amount, interval_ns, next_due, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		def.ID, string(def.Owner), string(def.Payee), def.Amount.String(),
		int64(def.Interval), def.NextDue.UnixNano(), string(def.Status), def.CreatedAt.UnixNano(),
	)
	if err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("insert schedule: %w", err)
	}
	if def.Seq, err = res.LastInsertId(); err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("schedule seq: %w", err)
	}
	return def, nil
}

func (s *SQLite) Cancel(ctx context.Context, owner domain.Account, id string) (domain.ScheduleDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return domain.ScheduleDefinition{}, err
	}
	if def.Owner != owner {
		return domain.ScheduleDefinition{}, schedule.NotOwner("store.Cancel", id, owner)
	}
	if !def.Active() {
		return def, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE payment_schedules SET status = 'cancelled' WHERE id = ?`, id); err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("cancel schedule: %w", err)
	}
	def.Status = domain.ScheduleCancelled
	return def, nil
}

func (s *SQLite) Due(ctx context.Context, now time.Time) ([]domain.ScheduleDefinition, error) {
	return s.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM payment_schedules
		 WHERE status = 'active' AND next_due <= ?
		 ORDER BY next_due, seq`,
		now.UnixNano())
}

func (s *SQLite) Advance(ctx context.Context, id string, from time.Time) (domain.ScheduleDefinition, error) {
	def, err := s.Get(ctx, id)
	if err != nil {
		return domain.ScheduleDefinition{}, err
	}
	if !def.Active() || !def.NextDue.Equal(from) {
		return def, nil
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE payment_schedules SET next_due = ?
		 WHERE id = ? AND status = 'active' AND next_due = ?`,
		from.Add(def.Interval).UnixNano(), id, from.UnixNano()); err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("advance schedule: %w", err)
	}
	return s.Get(ctx, id)
}

func (s *SQLite) Get(ctx context.Context, id string) (domain.ScheduleDefinition, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM payment_schedules WHERE id = ?`, id)
	def, err := scanSQLiteSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScheduleDefinition{}, schedule.NotFound("store.Get", id)
	}
	if err != nil {
		return domain.ScheduleDefinition{}, fmt.Errorf("get schedule: %w", err)
	}
	return def, nil
}

func (s *SQLite) ListByOwner(ctx context.Context, owner domain.Account) ([]domain.ScheduleDefinition, error) {
	return s.querySchedules(ctx,
		`SELECT `+scheduleColumns+` FROM payment_schedules WHERE owner = ? ORDER BY seq`,
		string(owner))
}

func (s *SQLite) querySchedules(ctx context.Context, query string, args ...any) ([]domain.ScheduleDefinition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	var defs []domain.ScheduleDefinition
	for rows.Next() {
		def, err := scanSQLiteSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRecord(row scanner) (domain.TransferRecord, error) {
	var (
		rec                   domain.TransferRecord
		payer, payee, outcome string
		occurredAt            int64
	)
	err := row.Scan(&rec.Seq, &rec.ID, &payer, &payee, &rec.Amount, &rec.Message,
		&occurredAt, &outcome, &rec.Reason, &rec.ScheduleID, &rec.BatchID)
	if err != nil {
		return domain.TransferRecord{}, err
	}
	rec.Payer = domain.Account(payer)
	rec.Payee = domain.Account(payee)
	rec.Outcome = domain.Outcome(outcome)
	rec.Timestamp = time.Unix(0, occurredAt).UTC()
	return rec, nil
}

func scanSQLiteSchedule(row scanner) (domain.ScheduleDefinition, error) {
	var (
		def                            domain.ScheduleDefinition
		owner, payee, status           string
		intervalNs, nextDue, createdAt int64
	)
	err := row.Scan(&def.Seq, &def.ID, &owner, &payee, &def.Amount, &intervalNs,
		&nextDue, &status, &createdAt)
	if err != nil {
		return domain.ScheduleDefinition{}, err
	}
	def.Owner = domain.Account(owner)
	def.Payee = domain.Account(payee)
	def.Status = domain.ScheduleStatus(status)
	def.Interval = time.Duration(intervalNs)
	def.NextDue = time.Unix(0, nextDue).UTC()
	def.CreatedAt = time.Unix(0, createdAt).UTC()
	return def, nil
}
