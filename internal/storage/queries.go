package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const insertPendingSale = `-- name: InsertPendingSale :one
INSERT INTO pending_sales (date, cash_cents, online_cents, notes, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING id, date, cash_cents, online_cents, notes, synced, created_at
`

type InsertPendingSaleParams struct {
	Date        string
	CashCents   int64
	OnlineCents int64
	Notes       string
	CreatedAt   string
}

func (q *Queries) InsertPendingSale(ctx context.Context, arg InsertPendingSaleParams) (PendingSale, error) {
	row := q.db.QueryRowContext(ctx, insertPendingSale,
		arg.Date,
		arg.CashCents,
		arg.OnlineCents,
		arg.Notes,
		arg.CreatedAt,
	)
	var i PendingSale
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.CashCents,
		&i.OnlineCents,
		&i.Notes,
		&i.Synced,
		&i.CreatedAt,
	)
	return i, err
}

const listPendingSales = `-- name: ListPendingSales :many
SELECT id, date, cash_cents, online_cents, notes, synced, created_at
FROM pending_sales
ORDER BY id ASC
`

func (q *Queries) ListPendingSales(ctx context.Context) ([]PendingSale, error) {
	rows, err := q.db.QueryContext(ctx, listPendingSales)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PendingSale
	for rows.Next() {
		var i PendingSale
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.CashCents,
			&i.OnlineCents,
			&i.Notes,
			&i.Synced,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countPendingSales = `-- name: CountPendingSales :one
SELECT COUNT(*) FROM pending_sales
`

func (q *Queries) CountPendingSales(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPendingSales)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const deleteAllPendingSales = `-- name: DeleteAllPendingSales :execrows
DELETE FROM pending_sales
`

func (q *Queries) DeleteAllPendingSales(ctx context.Context) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAllPendingSales)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const deletePendingSalesThrough = `-- name: DeletePendingSalesThrough :execrows
DELETE FROM pending_sales WHERE id <= ?
`

func (q *Queries) DeletePendingSalesThrough(ctx context.Context, lastID int64) (int64, error) {
	result, err := q.db.ExecContext(ctx, deletePendingSalesThrough, lastID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
