// Package models defines the core domain models for the shared-expense
// ledger.
//
// # Entities
//
//   - Expense: a single cost event, paid up front by its creator
//   - Obligation: one participant's share of one expense (a debt record)
//   - Operation: an append-only audit entry
//
// Participants and creators are opaque, case-sensitive identity strings.
// The ledger performs no normalization (trimming, case-folding); that
// belongs to whatever front end parses user input.
//
// # Money
//
// All amounts are shopspring decimals, never binary floating point, so
// repeated splits and settlements cannot accumulate rounding drift.
// Display rounding is the caller's concern.
//
// # Lifecycles
//
// Expenses are created once and mutated only by cancellation; they are
// never physically deleted. Obligations are created atomically with
// their owning expense, settled incrementally, and deleted outright when
// the expense is cancelled. Operations are written once and never touched
// again; after a cancellation they are the only remaining evidence that
// settlements against the expense ever happened.
package models
