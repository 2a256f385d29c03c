package models

import "github.com/shopspring/decimal"

// OperationType identifies the kind of ledger mutation an audit entry
// records.
type OperationType string

const (
	OpExpenseCreated   OperationType = "expense_created"
	OpPayment          OperationType = "payment"
	OpExpenseCancelled OperationType = "expense_cancelled"
)

// Operation is an append-only audit entry. Once written it is never
// modified or deleted, which makes it the system's only memory of
// settled or cancelled state after the live records are gone.
type Operation struct {
	// ID is the unique identifier, assigned by the store.
	ID int64

	// ExpenseID is a weak reference to the expense the operation
	// concerns; zero means none. The referenced expense may be
	// cancelled, the record must still resolve.
	ExpenseID int64

	// Type is the operation kind.
	Type OperationType

	// Username is the acting identity.
	Username string

	// Description is free text describing the operation.
	Description string

	// Amount is the amount involved, if any.
	Amount decimal.NullDecimal

	// CreatedAt is the Unix timestamp when the entry was written.
	CreatedAt int64
}
