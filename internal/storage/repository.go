package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"smartexpense/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteMirror keeps a queryable copy of the expense collection in SQLite.
// The flat file stays the source of truth; the mirror is an export target
// and the sink of the mirror worker.
type SQLiteMirror struct {
	db   *sql.DB
	path string
}

const upsertExpenseSQL = `
INSERT INTO expenses (id, date, amount, category, note, position, updated_at)
VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM expenses), CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
    date = excluded.date,
    amount = excluded.amount,
    category = excluded.category,
    note = excluded.note,
    updated_at = CURRENT_TIMESTAMP`

func NewSQLiteMirror(dbPath string) (*SQLiteMirror, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := migrateMirror(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	slog.Debug("Mirror ready", "path", dbPath, "schema_version", version)
	return &SQLiteMirror{db: db, path: dbPath}, nil
}

func (r *SQLiteMirror) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Name identifies the mirror as an export target.
func (r *SQLiteMirror) Name() string {
	return "sqlite:" + r.path
}

// Export implements services.Exporter by replacing the mirror content.
func (r *SQLiteMirror) Export(ctx context.Context, expenses []core.Expense) error {
	return r.ReplaceAll(ctx, expenses)
}

// ReplaceAll swaps the mirror content for expenses in one transaction.
func (r *SQLiteMirror) ReplaceAll(ctx context.Context, expenses []core.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM expenses`); err != nil {
		return fmt.Errorf("clear expenses: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO expenses (id, date, amount, category, note, position)
VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range expenses {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Date.String(), e.Amount.String(), e.Category, e.Note, i+1); err != nil {
			return fmt.Errorf("insert expense %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Mirror replaced", "path", r.path, "count", len(expenses))
	return nil
}

// Upsert inserts e at the tail or updates it in place.
func (r *SQLiteMirror) Upsert(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx, upsertExpenseSQL,
		e.ID, e.Date.String(), e.Amount.String(), e.Category, e.Note)
	if err != nil {
		return fmt.Errorf("upsert expense %s: %w", e.ID, err)
	}
	return nil
}

// Delete removes the expense with id. Missing ids are ignored.
func (r *SQLiteMirror) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete expense %s: %w", id, err)
	}
	return nil
}

// List returns the mirrored expenses in insertion order.
func (r *SQLiteMirror) List(ctx context.Context) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, date, amount, category, note
FROM expenses
ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		var id, date, amount, category, note string
		if err := rows.Scan(&id, &date, &amount, &category, &note); err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", id, err)
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", id, err)
		}
		out = append(out, core.Expense{ID: id, Date: d, Amount: amt, Category: category, Note: note})
	}
	return out, rows.Err()
}
