package models

import "github.com/shopspring/decimal"

// Expense represents a single cost event: the creator paid the total
// amount up front and becomes the creditor on every obligation the
// expense is split into.
type Expense struct {
	// ID is the unique identifier, assigned by the store at creation.
	ID int64

	// Description is free text, never empty.
	Description string

	// TotalAmount is the full cost of the expense, always positive.
	TotalAmount decimal.Decimal

	// Creator is the identity of the party who advanced the payment.
	Creator string

	// CreatedAt is the Unix timestamp when the expense was recorded.
	CreatedAt int64

	// Cancelled marks a reversed expense. A cancelled expense is
	// excluded from all active views but kept for the audit trail.
	Cancelled bool
}
