// Package ledger implements the business policy of the shared-expense
// ledger: splitting an expense into per-participant obligations,
// allocating payments across a debtor's outstanding obligations in FIFO
// order, reversing expenses, and deriving balance, statistics and
// history views from the same underlying records.
//
// Each mutating operation runs inside one store transaction, so
// concurrent callers never observe a torn state. The engine never
// formats human-readable text beyond the audit log descriptions.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// DefaultHistoryLimit bounds History calls that do not specify a limit.
const DefaultHistoryLimit = 50

// Engine is the ledger's policy layer over a storage.Store.
type Engine struct {
	store storage.Store
}

// New creates an Engine backed by the given store.
func New(store storage.Store) *Engine {
	return &Engine{store: store}
}

// SettlementResult reports the outcome of a payment.
type SettlementResult struct {
	// Applied is false when the pair had no outstanding obligations and
	// the call was a no-op.
	Applied bool

	// Remaining is the total outstanding between the pair after
	// allocation.
	Remaining decimal.Decimal
}

// RecordExpense creates an expense, splits it into one obligation per
// participant with the creator as creditor, and writes the audit entry,
// all atomically. A participant may equal the creator; callers wanting
// to exclude the payer must filter the participant list themselves.
func (e *Engine) RecordExpense(ctx context.Context, description string, amount decimal.Decimal, creator string, participants []string) (int64, error) {
	shares, err := SplitEqually(amount, participants)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		if _, dup := seen[p]; dup {
			return 0, &models.ValidationError{Reason: fmt.Sprintf("duplicate participant %q", p)}
		}
		seen[p] = struct{}{}
	}

	expense := &models.Expense{
		Description: description,
		TotalAmount: amount,
		Creator:     creator,
	}
	err = e.store.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		obligations := make([]models.Obligation, len(participants))
		for i, participant := range participants {
			obligations[i] = models.Obligation{
				ExpenseID: expense.ID,
				Debtor:    participant,
				Creditor:  creator,
				Amount:    shares[i],
				CreatedAt: expense.CreatedAt,
			}
		}
		if err := tx.InsertObligations(ctx, expense.ID, obligations); err != nil {
			return err
		}
		return tx.AppendOperation(ctx, &models.Operation{
			ExpenseID:   expense.ID,
			Type:        models.OpExpenseCreated,
			Username:    creator,
			Description: fmt.Sprintf("Recorded expense %q for %s", description, amount),
			Amount:      decimal.NewNullDecimal(amount),
		})
	})
	if err != nil {
		return 0, err
	}

	slog.Info("expense recorded",
		"expense_id", expense.ID,
		"creator", creator,
		"amount", amount,
		"participants", len(participants),
	)
	return expense.ID, nil
}

// SettlePayment allocates a payment from debtor to creditor across the
// pair's outstanding obligations, oldest first. Obligations are fully
// settled until the payment runs out; the last one touched may be
// settled partially.
//
// Any amount beyond the total outstanding is dropped, not tracked or
// refunded: callers must check Outstanding first (the API layer does).
// The loop stays guard-free so it can be reused where the amount is
// already known to be bounded.
func (e *Engine) SettlePayment(ctx context.Context, debtor, creditor string, amount decimal.Decimal) (SettlementResult, error) {
	if !amount.IsPositive() {
		return SettlementResult{}, &models.ValidationError{Reason: "payment amount must be positive"}
	}

	var result SettlementResult
	err := e.store.WithTx(ctx, func(tx storage.Store) error {
		obligations, err := tx.ActiveObligations(ctx, storage.ObligationFilter{
			Debtor:   debtor,
			Creditor: creditor,
		})
		if err != nil {
			return err
		}
		if len(obligations) == 0 {
			result = SettlementResult{Applied: false, Remaining: decimal.Zero}
			return nil
		}

		left := amount
		outstanding := decimal.Zero
		for _, o := range obligations {
			outstanding = outstanding.Add(o.Remaining)
			if !left.IsPositive() {
				continue
			}
			delta := o.Remaining
			if left.LessThan(delta) {
				delta = left
			}
			if err := tx.ApplySettlement(ctx, o.ID, delta); err != nil {
				return err
			}
			left = left.Sub(delta)
			outstanding = outstanding.Sub(delta)
		}

		// One audit row per payment, carrying the requested amount and
		// attributed to the first expense the payment touched.
		if err := tx.AppendOperation(ctx, &models.Operation{
			ExpenseID:   obligations[0].ExpenseID,
			Type:        models.OpPayment,
			Username:    debtor,
			Description: fmt.Sprintf("Paid %s to %s", amount, creditor),
			Amount:      decimal.NewNullDecimal(amount),
		}); err != nil {
			return err
		}

		result = SettlementResult{Applied: true, Remaining: outstanding}
		return nil
	})
	if err != nil {
		return SettlementResult{}, err
	}

	if result.Applied {
		slog.Info("payment settled",
			"debtor", debtor,
			"creditor", creditor,
			"amount", amount,
			"remaining", result.Remaining,
		)
	}
	return result, nil
}

// Outstanding returns the total unsettled amount debtor owes creditor,
// zero if nothing is owed. Boundary callers must check a requested
// payment against it before calling SettlePayment.
func (e *Engine) Outstanding(ctx context.Context, debtor, creditor string) (decimal.Decimal, error) {
	obligations, err := e.store.ActiveObligations(ctx, storage.ObligationFilter{
		Debtor:   debtor,
		Creditor: creditor,
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	total := decimal.Zero
	for _, o := range obligations {
		total = total.Add(o.Remaining)
	}
	return total, nil
}

// Balance is the net amount debtor owes creditor; identical to
// Outstanding, named for the read-side callers.
func (e *Engine) Balance(ctx context.Context, debtor, creditor string) (decimal.Decimal, error) {
	return e.Outstanding(ctx, debtor, creditor)
}

// Balances returns the canonical "who owes whom" view: every active
// obligation, optionally filtered by creditor and debtor, oldest first.
// Empty strings leave the corresponding side unfiltered.
func (e *Engine) Balances(ctx context.Context, creditor, debtor string) ([]models.ObligationView, error) {
	return e.store.ActiveObligations(ctx, storage.ObligationFilter{Creditor: creditor, Debtor: debtor})
}

// ExpenseGroup is one bucket of the grouped-by-expense view.
type ExpenseGroup struct {
	Description string
	Obligations []models.ObligationView
}

// GroupedByExpense partitions the active obligations by expense
// description, most recently created expense first.
func (e *Engine) GroupedByExpense(ctx context.Context) ([]ExpenseGroup, error) {
	views, err := e.store.ActiveObligations(ctx, storage.ObligationFilter{NewestExpenseFirst: true})
	if err != nil {
		return nil, err
	}

	var groups []ExpenseGroup
	index := make(map[string]int)
	for _, v := range views {
		i, ok := index[v.ExpenseDescription]
		if !ok {
			groups = append(groups, ExpenseGroup{Description: v.ExpenseDescription})
			i = len(groups) - 1
			index[v.ExpenseDescription] = i
		}
		groups[i].Obligations = append(groups[i].Obligations, v)
	}
	return groups, nil
}

// Statistics summarizes all active obligations. Totals are decimal
// zero, never unset, when there is nothing outstanding.
type Statistics struct {
	Count             int
	Total             decimal.Decimal
	DistinctDebtors   int
	DistinctCreditors int
}

// DebtorStatistics summarizes the active obligations of one debtor. It
// deliberately carries no distinct counts; those only make sense over
// the whole ledger.
type DebtorStatistics struct {
	Count int
	Total decimal.Decimal
}

// Statistics aggregates every active obligation in the ledger.
func (e *Engine) Statistics(ctx context.Context) (Statistics, error) {
	views, err := e.store.ActiveObligations(ctx, storage.ObligationFilter{})
	if err != nil {
		return Statistics{}, err
	}

	stats := Statistics{Total: decimal.Zero}
	debtors := make(map[string]struct{})
	creditors := make(map[string]struct{})
	for _, v := range views {
		stats.Count++
		stats.Total = stats.Total.Add(v.Remaining)
		debtors[v.Debtor] = struct{}{}
		creditors[v.Creditor] = struct{}{}
	}
	stats.DistinctDebtors = len(debtors)
	stats.DistinctCreditors = len(creditors)
	return stats, nil
}

// DebtorStatistics aggregates the active obligations where username is
// the debtor.
func (e *Engine) DebtorStatistics(ctx context.Context, username string) (DebtorStatistics, error) {
	if username == "" {
		return DebtorStatistics{}, &models.ValidationError{Reason: "username is required"}
	}
	views, err := e.store.ActiveObligations(ctx, storage.ObligationFilter{Debtor: username})
	if err != nil {
		return DebtorStatistics{}, err
	}

	stats := DebtorStatistics{Total: decimal.Zero}
	for _, v := range views {
		stats.Count++
		stats.Total = stats.Total.Add(v.Remaining)
	}
	return stats, nil
}

// History returns audit entries, newest first. A zero expenseID means
// all expenses; a non-positive limit falls back to DefaultHistoryLimit.
// Entries for cancelled expenses remain resolvable.
func (e *Engine) History(ctx context.Context, expenseID int64, limit int) ([]models.Operation, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return e.store.Operations(ctx, expenseID, limit)
}

// ExpenseDetails is an expense with all of its obligations, settled
// ones included.
type ExpenseDetails struct {
	Expense     models.Expense
	Obligations []models.Obligation
}

// ExpenseDetails returns the expense and its obligations, or
// models.ErrNotFound for unknown and cancelled expenses alike.
func (e *Engine) ExpenseDetails(ctx context.Context, expenseID int64) (*ExpenseDetails, error) {
	expense, err := e.store.ExpenseByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.Cancelled {
		return nil, models.ErrNotFound
	}
	obligations, err := e.store.ObligationsByExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	return &ExpenseDetails{Expense: *expense, Obligations: obligations}, nil
}

// ExpenseByDescription resolves the most recent non-cancelled expense
// with that exact description, optionally restricted to a creator.
func (e *Engine) ExpenseByDescription(ctx context.Context, description, creator string) (*ExpenseDetails, error) {
	expense, err := e.store.ExpenseByDescription(ctx, description, creator)
	if err != nil {
		return nil, err
	}
	return e.ExpenseDetails(ctx, expense.ID)
}

// CancelExpense reverses an expense: it marks the expense cancelled,
// deletes all of its obligations outright (settled ones included, their
// settlement history is discarded, not refunded) and appends the audit
// entry. Only the original creator may cancel; any other actor, an
// unknown id or an already-cancelled expense yields false with no
// mutation and no error.
func (e *Engine) CancelExpense(ctx context.Context, expenseID int64, actor string) (bool, error) {
	cancelled := false
	err := e.store.WithTx(ctx, func(tx storage.Store) error {
		expense, err := tx.ExpenseByID(ctx, expenseID)
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if expense.Cancelled || expense.Creator != actor {
			return nil
		}

		if err := tx.MarkExpenseCancelled(ctx, expenseID); err != nil {
			return err
		}
		if err := tx.DeleteObligations(ctx, expenseID); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, &models.Operation{
			ExpenseID:   expenseID,
			Type:        models.OpExpenseCancelled,
			Username:    actor,
			Description: fmt.Sprintf("Cancelled expense %q", expense.Description),
		}); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if cancelled {
		slog.Info("expense cancelled", "expense_id", expenseID, "actor", actor)
	}
	return cancelled, nil
}
