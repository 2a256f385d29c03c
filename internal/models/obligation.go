package models

import "github.com/shopspring/decimal"

// Obligation is one participant's share of one expense.
// Invariant: 0 <= Settled <= Amount. An obligation with nothing
// remaining is settled but not deleted; only cancelling the owning
// expense removes obligations.
type Obligation struct {
	// ID is the unique identifier, assigned by the store at creation.
	// IDs are monotonic, so ordering by (CreatedAt, ID) gives the
	// settlement priority even for obligations created in the same
	// second.
	ID int64

	// ExpenseID is the owning expense.
	ExpenseID int64

	// Debtor owes the share; Creditor is always the owning expense's
	// creator.
	Debtor   string
	Creditor string

	// Amount is the original share owed, always positive.
	Amount decimal.Decimal

	// Settled is how much of Amount has been paid back so far.
	Settled decimal.Decimal

	// CreatedAt is the Unix timestamp when the obligation was created,
	// inherited from the owning expense.
	CreatedAt int64
}

// Remaining returns the unsettled part of the obligation.
func (o Obligation) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.Settled)
}

// ObligationView is an active obligation joined with its owning
// expense's description. It is the row type of the canonical
// "who owes whom" view; every other derived view is built from it.
type ObligationView struct {
	ID                 int64
	ExpenseID          int64
	Debtor             string
	Creditor           string
	Amount             decimal.Decimal
	Settled            decimal.Decimal
	Remaining          decimal.Decimal
	CreatedAt          int64
	ExpenseDescription string
}
