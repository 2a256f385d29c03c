// Package sqlite provides a SQLite-backed implementation of the
// storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Ensure both the root store and its transactional view implement
// storage.Store.
var (
	_ storage.Store = (*SQLiteStore)(nil)
	_ storage.Store = (*txStore)(nil)
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx,
// so every query below runs identically inside and outside WithTx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	queries
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers with a database-level lock; the busy
	// timeout makes conflicting transactions wait instead of failing.
	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db, queries: queries{q: db}}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// WithTx runs fn against a transactional view of the store. All writes
// inside fn commit together, or none do.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &models.StorageError{Op: "begin transaction", Err: err}
	}
	defer tx.Rollback()

	if err := fn(&txStore{queries{q: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return &models.StorageError{Op: "commit transaction", Err: err}
	}
	return nil
}

// txStore is the transactional view handed to WithTx closures.
type txStore struct {
	queries
}

// WithTx reuses the already-open transaction.
func (t *txStore) WithTx(ctx context.Context, fn func(storage.Store) error) error {
	return fn(t)
}

// Close is a no-op; the transaction is owned by the root store.
func (t *txStore) Close() error {
	return nil
}

// queries implements every storage operation against a querier, shared
// between SQLiteStore and txStore.
type queries struct {
	q querier
}

// InsertExpense persists a new expense and assigns its ID and CreatedAt.
func (s queries) InsertExpense(ctx context.Context, expense *models.Expense) error {
	if expense.Description == "" {
		return &models.ValidationError{Reason: "expense description must not be empty"}
	}
	if !expense.TotalAmount.IsPositive() {
		return &models.ValidationError{Reason: "expense amount must be positive"}
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	res, err := s.q.ExecContext(ctx,
		`INSERT INTO expenses (description, total_amount, creator_username, created_at)
		 VALUES (?, ?, ?, ?)`,
		expense.Description, expense.TotalAmount, expense.Creator, expense.CreatedAt,
	)
	if err != nil {
		return &models.StorageError{Op: "insert expense", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &models.StorageError{Op: "insert expense", Err: err}
	}
	expense.ID = id
	return nil
}

// InsertObligations creates one obligation row per entry under the
// expense.
func (s queries) InsertObligations(ctx context.Context, expenseID int64, obligations []models.Obligation) error {
	var exists int
	err := s.q.QueryRowContext(ctx, "SELECT 1 FROM expenses WHERE id = ?", expenseID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.IntegrityError{Reason: fmt.Sprintf("expense %d does not exist", expenseID)}
	}
	if err != nil {
		return &models.StorageError{Op: "check expense", Err: err}
	}

	for i := range obligations {
		o := &obligations[i]
		o.ExpenseID = expenseID
		if o.CreatedAt == 0 {
			o.CreatedAt = time.Now().Unix()
		}
		res, err := s.q.ExecContext(ctx,
			`INSERT INTO obligations (expense_id, debtor_username, creditor_username, amount, settled_amount, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			o.ExpenseID, o.Debtor, o.Creditor, o.Amount, o.Settled, o.CreatedAt,
		)
		if err != nil {
			return &models.StorageError{Op: "insert obligation", Err: err}
		}
		id, err := res.LastInsertId()
		if err != nil {
			return &models.StorageError{Op: "insert obligation", Err: err}
		}
		o.ID = id
	}
	return nil
}

// ApplySettlement increases an obligation's settled amount by delta.
// The comparison against the original amount is done in Go on decimals,
// not in SQL, so the settled-never-exceeds-original invariant is checked
// exactly.
func (s queries) ApplySettlement(ctx context.Context, obligationID int64, delta decimal.Decimal) error {
	var amount, settled decimal.Decimal
	err := s.q.QueryRowContext(ctx,
		"SELECT amount, settled_amount FROM obligations WHERE id = ?", obligationID,
	).Scan(&amount, &settled)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.IntegrityError{Reason: fmt.Sprintf("obligation %d does not exist", obligationID)}
	}
	if err != nil {
		return &models.StorageError{Op: "read obligation", Err: err}
	}

	newSettled := settled.Add(delta)
	if newSettled.GreaterThan(amount) {
		return &models.ValidationError{Reason: fmt.Sprintf(
			"settlement of %s would exceed obligation %d original amount %s (already settled %s)",
			delta, obligationID, amount, settled)}
	}

	if _, err := s.q.ExecContext(ctx,
		"UPDATE obligations SET settled_amount = ? WHERE id = ?", newSettled, obligationID,
	); err != nil {
		return &models.StorageError{Op: "update obligation", Err: err}
	}
	return nil
}

// DeleteObligations removes every obligation of the expense.
func (s queries) DeleteObligations(ctx context.Context, expenseID int64) error {
	if _, err := s.q.ExecContext(ctx,
		"DELETE FROM obligations WHERE expense_id = ?", expenseID,
	); err != nil {
		return &models.StorageError{Op: "delete obligations", Err: err}
	}
	return nil
}

// MarkExpenseCancelled sets the cancellation flag on the expense.
func (s queries) MarkExpenseCancelled(ctx context.Context, expenseID int64) error {
	res, err := s.q.ExecContext(ctx,
		"UPDATE expenses SET is_cancelled = 1 WHERE id = ?", expenseID,
	)
	if err != nil {
		return &models.StorageError{Op: "cancel expense", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &models.StorageError{Op: "cancel expense", Err: err}
	}
	if affected == 0 {
		return &models.IntegrityError{Reason: fmt.Sprintf("expense %d does not exist", expenseID)}
	}
	return nil
}

// AppendOperation writes an audit entry. A zero ExpenseID is stored as
// NULL.
func (s queries) AppendOperation(ctx context.Context, op *models.Operation) error {
	if op.CreatedAt == 0 {
		op.CreatedAt = time.Now().Unix()
	}
	var expenseID sql.NullInt64
	if op.ExpenseID != 0 {
		expenseID = sql.NullInt64{Int64: op.ExpenseID, Valid: true}
	}
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO operation_log (expense_id, operation_type, username, description, amount, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		expenseID, string(op.Type), op.Username, op.Description, op.Amount, op.CreatedAt,
	)
	if err != nil {
		return &models.StorageError{Op: "append operation", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return &models.StorageError{Op: "append operation", Err: err}
	}
	op.ID = id
	return nil
}

// ActiveObligations returns obligations of non-cancelled expenses with a
// positive remaining amount. The remaining>0 filter runs in Go on exact
// decimals rather than in SQL over the TEXT columns.
func (s queries) ActiveObligations(ctx context.Context, filter storage.ObligationFilter) ([]models.ObligationView, error) {
	query := `SELECT d.id, d.expense_id, d.debtor_username, d.creditor_username,
	                 d.amount, d.settled_amount, d.created_at, e.description
	          FROM obligations d
	          JOIN expenses e ON d.expense_id = e.id
	          WHERE e.is_cancelled = 0`
	var args []any
	if filter.Creditor != "" {
		query += " AND d.creditor_username = ?"
		args = append(args, filter.Creditor)
	}
	if filter.Debtor != "" {
		query += " AND d.debtor_username = ?"
		args = append(args, filter.Debtor)
	}
	if filter.NewestExpenseFirst {
		query += " ORDER BY e.created_at DESC, d.expense_id DESC, d.id ASC"
	} else {
		// Settlement priority: oldest obligation first, the id breaks
		// ties within one second.
		query += " ORDER BY d.created_at ASC, d.id ASC"
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query active obligations", Err: err}
	}
	defer rows.Close()

	var views []models.ObligationView
	for rows.Next() {
		var v models.ObligationView
		if err := rows.Scan(&v.ID, &v.ExpenseID, &v.Debtor, &v.Creditor,
			&v.Amount, &v.Settled, &v.CreatedAt, &v.ExpenseDescription); err != nil {
			return nil, &models.StorageError{Op: "scan obligation", Err: err}
		}
		v.Remaining = v.Amount.Sub(v.Settled)
		if !v.Remaining.IsPositive() {
			continue
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "iterate obligations", Err: err}
	}
	return views, nil
}

// ObligationsByExpense returns every obligation of the expense,
// including settled ones.
func (s queries) ObligationsByExpense(ctx context.Context, expenseID int64) ([]models.Obligation, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, expense_id, debtor_username, creditor_username, amount, settled_amount, created_at
		 FROM obligations WHERE expense_id = ? ORDER BY id ASC`,
		expenseID,
	)
	if err != nil {
		return nil, &models.StorageError{Op: "query obligations", Err: err}
	}
	defer rows.Close()

	var obligations []models.Obligation
	for rows.Next() {
		var o models.Obligation
		if err := rows.Scan(&o.ID, &o.ExpenseID, &o.Debtor, &o.Creditor,
			&o.Amount, &o.Settled, &o.CreatedAt); err != nil {
			return nil, &models.StorageError{Op: "scan obligation", Err: err}
		}
		obligations = append(obligations, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "iterate obligations", Err: err}
	}
	return obligations, nil
}

// ExpenseByID retrieves an expense by its ID.
func (s queries) ExpenseByID(ctx context.Context, id int64) (*models.Expense, error) {
	return s.scanExpense(s.q.QueryRowContext(ctx,
		`SELECT id, description, total_amount, creator_username, created_at, is_cancelled
		 FROM expenses WHERE id = ?`, id))
}

// ExpenseByDescription retrieves the most recently created non-cancelled
// expense with that exact description, optionally restricted to a
// creator.
func (s queries) ExpenseByDescription(ctx context.Context, description, creator string) (*models.Expense, error) {
	query := `SELECT id, description, total_amount, creator_username, created_at, is_cancelled
	          FROM expenses WHERE description = ? AND is_cancelled = 0`
	args := []any{description}
	if creator != "" {
		query += " AND creator_username = ?"
		args = append(args, creator)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT 1"
	return s.scanExpense(s.q.QueryRowContext(ctx, query, args...))
}

func (s queries) scanExpense(row *sql.Row) (*models.Expense, error) {
	expense := &models.Expense{}
	err := row.Scan(&expense.ID, &expense.Description, &expense.TotalAmount,
		&expense.Creator, &expense.CreatedAt, &expense.Cancelled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, &models.StorageError{Op: "read expense", Err: err}
	}
	return expense, nil
}

// Operations returns audit entries, newest first.
func (s queries) Operations(ctx context.Context, expenseID int64, limit int) ([]models.Operation, error) {
	query := `SELECT id, expense_id, operation_type, username, description, amount, created_at
	          FROM operation_log`
	var args []any
	if expenseID != 0 {
		query += " WHERE expense_id = ?"
		args = append(args, expenseID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &models.StorageError{Op: "query operations", Err: err}
	}
	defer rows.Close()

	var ops []models.Operation
	for rows.Next() {
		var op models.Operation
		var expID sql.NullInt64
		if err := rows.Scan(&op.ID, &expID, &op.Type, &op.Username,
			&op.Description, &op.Amount, &op.CreatedAt); err != nil {
			return nil, &models.StorageError{Op: "scan operation", Err: err}
		}
		if expID.Valid {
			op.ExpenseID = expID.Int64
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, &models.StorageError{Op: "iterate operations", Err: err}
	}
	return ops, nil
}
