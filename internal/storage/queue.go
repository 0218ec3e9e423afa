package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"salestracker/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteQueue is the durable local pending queue. Each operation is a single
// SQLite statement, so it is atomic on its own.
type SQLiteQueue struct {
	db      *sql.DB
	queries *Queries
	dsn     string
}

func dsnFor(dbPath string) string {
	return "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func NewSQLiteQueue(dbPath string) (*SQLiteQueue, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dsnFor(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serialises writers inside the process; busy_timeout
	// covers a second process sharing the file.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteQueue{
		db:      db,
		queries: New(db),
		dsn:     dsn,
	}, nil
}

func (q *SQLiteQueue) Close() error {
	if q.db != nil {
		return q.db.Close()
	}
	return nil
}

func (q *SQLiteQueue) Ping(ctx context.Context) error {
	return q.db.PingContext(ctx)
}

// Enqueue durably appends a record and returns its local id. The record's
// remote id, if any, is not stored.
func (q *SQLiteQueue) Enqueue(ctx context.Context, rec core.SalesRecord) (int64, error) {
	rec = rec.Normalize()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	row, err := q.queries.InsertPendingSale(ctx, InsertPendingSaleParams{
		Date:        rec.Date.String(),
		CashCents:   rec.Cash.Cents,
		OnlineCents: rec.Online.Cents,
		Notes:       rec.Notes,
		CreatedAt:   createdAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return 0, fmt.Errorf("insert pending sale: %w", err)
	}

	slog.InfoContext(ctx, "Sale queued locally",
		"local_id", row.ID,
		"date", row.Date,
		"cash_cents", row.CashCents,
		"online_cents", row.OnlineCents)

	return row.ID, nil
}

// ListPending returns every queued entry in insertion order.
func (q *SQLiteQueue) ListPending(ctx context.Context) ([]core.PendingEntry, error) {
	rows, err := q.queries.ListPendingSales(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending sales: %w", err)
	}

	entries := make([]core.PendingEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := toPendingEntry(row)
		if err != nil {
			return nil, fmt.Errorf("decode pending sale %d: %w", row.ID, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ClearAll removes every queued entry.
func (q *SQLiteQueue) ClearAll(ctx context.Context) (int64, error) {
	n, err := q.queries.DeleteAllPendingSales(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear pending sales: %w", err)
	}
	return n, nil
}

// ClearThrough removes entries with a local id up to and including lastID.
// Entries enqueued after the batch was read keep higher ids and survive.
func (q *SQLiteQueue) ClearThrough(ctx context.Context, lastID int64) (int64, error) {
	n, err := q.queries.DeletePendingSalesThrough(ctx, lastID)
	if err != nil {
		return 0, fmt.Errorf("clear pending sales through %d: %w", lastID, err)
	}
	return n, nil
}

func (q *SQLiteQueue) Count(ctx context.Context) (int64, error) {
	n, err := q.queries.CountPendingSales(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending sales: %w", err)
	}
	return n, nil
}

// SchemaVersion reports the migration version of the queue database.
func (q *SQLiteQueue) SchemaVersion() (uint, bool, error) {
	return SchemaVersion(q.dsn)
}

func toPendingEntry(row PendingSale) (core.PendingEntry, error) {
	date, err := core.ParseDate(row.Date)
	if err != nil {
		return core.PendingEntry{}, err
	}
	createdAt, err := time.Parse(time.RFC3339Nano, row.CreatedAt)
	if err != nil {
		return core.PendingEntry{}, fmt.Errorf("parse created_at: %w", err)
	}

	return core.PendingEntry{
		LocalID: row.ID,
		Synced:  row.Synced != 0,
		Record: core.SalesRecord{
			Date:      date,
			Cash:      core.Money{Cents: row.CashCents},
			Online:    core.Money{Cents: row.OnlineCents},
			Notes:     row.Notes,
			CreatedAt: createdAt,
		},
	}, nil
}
