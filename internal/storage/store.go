// Package storage provides abstractions for persistent ledger storage.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// ObligationFilter narrows and orders the ActiveObligations view.
// Empty identity fields match anything.
type ObligationFilter struct {
	Creditor string
	Debtor   string

	// NewestExpenseFirst orders rows by owning expense, most recently
	// created expense first, for the grouped-by-expense view. The
	// default order is obligation creation ascending, which is the
	// settlement priority (oldest debt settles first).
	NewestExpenseFirst bool
}

// Store defines the interface for ledger storage operations.
// No business policy lives here beyond referential integrity: splitting,
// allocation order and cancellation rules belong to the ledger engine.
//
// Every method is atomic on its own. Engine operations that span several
// writes run them inside WithTx so the whole operation commits together
// or not at all.
type Store interface {
	// InsertExpense persists a new expense and assigns its ID and
	// CreatedAt. Fails with *models.ValidationError if the amount is
	// not positive or the description is empty.
	InsertExpense(ctx context.Context, expense *models.Expense) error

	// InsertObligations creates the given obligations under one
	// expense, assigning IDs. Fails with *models.IntegrityError if the
	// expense does not exist.
	InsertObligations(ctx context.Context, expenseID int64, obligations []models.Obligation) error

	// ApplySettlement increases an obligation's settled amount by
	// delta. Fails with *models.ValidationError if the result would
	// exceed the original amount, *models.IntegrityError if the
	// obligation does not exist.
	ApplySettlement(ctx context.Context, obligationID int64, delta decimal.Decimal) error

	// DeleteObligations removes every obligation owned by the expense,
	// settled or not. Used together with MarkExpenseCancelled.
	DeleteObligations(ctx context.Context, expenseID int64) error

	// MarkExpenseCancelled sets the cancellation flag. Fails with
	// *models.IntegrityError if the expense does not exist.
	MarkExpenseCancelled(ctx context.Context, expenseID int64) error

	// AppendOperation writes an audit entry unconditionally.
	AppendOperation(ctx context.Context, op *models.Operation) error

	// ActiveObligations returns obligations of non-cancelled expenses
	// with a positive remaining amount, joined with the expense
	// description, filtered and ordered per the filter.
	ActiveObligations(ctx context.Context, filter ObligationFilter) ([]models.ObligationView, error)

	// ObligationsByExpense returns every obligation of the expense,
	// including fully settled ones, in creation order.
	ObligationsByExpense(ctx context.Context, expenseID int64) ([]models.Obligation, error)

	// ExpenseByID returns the expense or models.ErrNotFound.
	ExpenseByID(ctx context.Context, id int64) (*models.Expense, error)

	// ExpenseByDescription returns the most recently created
	// non-cancelled expense with that exact description, optionally
	// restricted to a creator, or models.ErrNotFound.
	ExpenseByDescription(ctx context.Context, description, creator string) (*models.Expense, error)

	// Operations returns audit entries, newest first, at most limit
	// rows. A zero expenseID means all expenses.
	Operations(ctx context.Context, expenseID int64, limit int) ([]models.Operation, error)

	// WithTx runs fn against a transactional view of the store. The
	// transaction commits when fn returns nil and rolls back otherwise,
	// so no partial mutation is ever observable. Calling WithTx on a
	// transactional store reuses the open transaction.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close releases any resources held by the store.
	Close() error
}
