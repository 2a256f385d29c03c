package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func insertExpense(t *testing.T, store storage.Store, description, amount, creator string) *models.Expense {
	t.Helper()
	expense := &models.Expense{
		Description: description,
		TotalAmount: decimal.RequireFromString(amount),
		Creator:     creator,
	}
	require.NoError(t, store.InsertExpense(context.Background(), expense))
	return expense
}

func TestInsertExpense(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense := insertExpense(t, store, "dinner", "120.50", "Alice")
	assert.NotZero(t, expense.ID)
	assert.NotZero(t, expense.CreatedAt)

	got, err := store.ExpenseByID(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, "dinner", got.Description)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("120.50")))
	assert.Equal(t, "Alice", got.Creator)
	assert.False(t, got.Cancelled)
}

func TestInsertExpenseValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	var validationErr *models.ValidationError

	err := store.InsertExpense(ctx, &models.Expense{
		Description: "",
		TotalAmount: decimal.NewFromInt(10),
		Creator:     "Alice",
	})
	require.ErrorAs(t, err, &validationErr, "empty description")

	err = store.InsertExpense(ctx, &models.Expense{
		Description: "dinner",
		TotalAmount: decimal.Zero,
		Creator:     "Alice",
	})
	require.ErrorAs(t, err, &validationErr, "zero amount")

	err = store.InsertExpense(ctx, &models.Expense{
		Description: "dinner",
		TotalAmount: decimal.NewFromInt(-3),
		Creator:     "Alice",
	})
	require.ErrorAs(t, err, &validationErr, "negative amount")
}

func TestInsertObligationsUnknownExpense(t *testing.T) {
	store := newTestStore(t)
	var integrityErr *models.IntegrityError

	err := store.InsertObligations(context.Background(), 999, []models.Obligation{
		{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(10)},
	})
	require.ErrorAs(t, err, &integrityErr)
}

func TestApplySettlement(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense := insertExpense(t, store, "dinner", "100", "Alice")
	obligations := []models.Obligation{
		{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(100)},
	}
	require.NoError(t, store.InsertObligations(ctx, expense.ID, obligations))
	obligationID := obligations[0].ID
	require.NotZero(t, obligationID)

	require.NoError(t, store.ApplySettlement(ctx, obligationID, decimal.RequireFromString("40.25")))
	require.NoError(t, store.ApplySettlement(ctx, obligationID, decimal.RequireFromString("59.75")))

	got, err := store.ObligationsByExpense(ctx, expense.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].Settled.Equal(decimal.NewFromInt(100)))
	assert.True(t, got[0].Remaining().IsZero())

	// Any further settlement would exceed the original amount.
	var validationErr *models.ValidationError
	err = store.ApplySettlement(ctx, obligationID, decimal.RequireFromString("0.01"))
	require.ErrorAs(t, err, &validationErr)

	var integrityErr *models.IntegrityError
	err = store.ApplySettlement(ctx, 999, decimal.NewFromInt(1))
	require.ErrorAs(t, err, &integrityErr)
}

func TestActiveObligationsFilterAndOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := insertExpense(t, store, "dinner", "100", "Alice")
	firstObligations := []models.Obligation{
		{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(50)},
		{Debtor: "Carol", Creditor: "Alice", Amount: decimal.NewFromInt(50)},
	}
	require.NoError(t, store.InsertObligations(ctx, first.ID, firstObligations))

	second := insertExpense(t, store, "taxi", "30", "Carol")
	require.NoError(t, store.InsertObligations(ctx, second.ID, []models.Obligation{
		{Debtor: "Bob", Creditor: "Carol", Amount: decimal.NewFromInt(30)},
	}))

	all, err := store.ActiveObligations(ctx, storage.ObligationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Oldest first; ids break ties within one second.
	assert.True(t, all[0].ID < all[1].ID && all[1].ID < all[2].ID)
	assert.Equal(t, "dinner", all[0].ExpenseDescription)

	byCreditor, err := store.ActiveObligations(ctx, storage.ObligationFilter{Creditor: "Alice"})
	require.NoError(t, err)
	assert.Len(t, byCreditor, 2)

	byPair, err := store.ActiveObligations(ctx, storage.ObligationFilter{Creditor: "Alice", Debtor: "Bob"})
	require.NoError(t, err)
	require.Len(t, byPair, 1)
	assert.True(t, byPair[0].Remaining.Equal(decimal.NewFromInt(50)))

	grouping, err := store.ActiveObligations(ctx, storage.ObligationFilter{NewestExpenseFirst: true})
	require.NoError(t, err)
	require.Len(t, grouping, 3)
	assert.Equal(t, "taxi", grouping[0].ExpenseDescription, "newest expense first")

	// Fully settled obligations drop out of the active view.
	require.NoError(t, store.ApplySettlement(ctx, firstObligations[0].ID, decimal.NewFromInt(50)))
	active, err := store.ActiveObligations(ctx, storage.ObligationFilter{Creditor: "Alice"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Carol", active[0].Debtor)

	// Obligations of cancelled expenses drop out too.
	require.NoError(t, store.MarkExpenseCancelled(ctx, first.ID))
	active, err = store.ActiveObligations(ctx, storage.ObligationFilter{Creditor: "Alice"})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMarkExpenseCancelledUnknown(t *testing.T) {
	store := newTestStore(t)
	var integrityErr *models.IntegrityError
	err := store.MarkExpenseCancelled(context.Background(), 999)
	require.ErrorAs(t, err, &integrityErr)
}

func TestDeleteObligations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense := insertExpense(t, store, "dinner", "100", "Alice")
	require.NoError(t, store.InsertObligations(ctx, expense.ID, []models.Obligation{
		{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(100)},
	}))

	require.NoError(t, store.DeleteObligations(ctx, expense.ID))
	got, err := store.ObligationsByExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExpenseByDescription(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	insertExpense(t, store, "coffee", "10", "Alice")
	second := insertExpense(t, store, "coffee", "12", "Bob")

	got, err := store.ExpenseByDescription(ctx, "coffee", "")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID, "most recent match wins")

	got, err = store.ExpenseByDescription(ctx, "coffee", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Creator)

	// Cancelled expenses are not resolvable by description.
	require.NoError(t, store.MarkExpenseCancelled(ctx, second.ID))
	got, err = store.ExpenseByDescription(ctx, "coffee", "")
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.Creator)

	_, err = store.ExpenseByDescription(ctx, "nothing", "")
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestOperations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	expense := insertExpense(t, store, "dinner", "100", "Alice")
	amount := decimal.NewNullDecimal(decimal.NewFromInt(100))
	require.NoError(t, store.AppendOperation(ctx, &models.Operation{
		ExpenseID: expense.ID, Type: models.OpExpenseCreated, Username: "Alice",
		Description: "created", Amount: amount,
	}))
	require.NoError(t, store.AppendOperation(ctx, &models.Operation{
		Type: models.OpPayment, Username: "Bob", Description: "no expense reference",
	}))

	ops, err := store.Operations(ctx, 0, 50)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, models.OpPayment, ops[0].Type, "newest first")
	assert.Zero(t, ops[0].ExpenseID)
	assert.False(t, ops[0].Amount.Valid)
	assert.Equal(t, models.OpExpenseCreated, ops[1].Type)
	require.True(t, ops[1].Amount.Valid)
	assert.True(t, ops[1].Amount.Decimal.Equal(decimal.NewFromInt(100)))

	scoped, err := store.Operations(ctx, expense.ID, 50)
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, expense.ID, scoped[0].ExpenseID)

	limited, err := store.Operations(ctx, 0, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sentinel := errors.New("boom")
	err := store.WithTx(ctx, func(tx storage.Store) error {
		expense := &models.Expense{
			Description: "doomed",
			TotalAmount: decimal.NewFromInt(10),
			Creator:     "Alice",
		}
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		if err := tx.AppendOperation(ctx, &models.Operation{
			ExpenseID: expense.ID, Type: models.OpExpenseCreated,
			Username: "Alice", Description: "created",
		}); err != nil {
			return err
		}
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// Nothing from the failed transaction is visible.
	_, err = store.ExpenseByDescription(ctx, "doomed", "")
	require.ErrorIs(t, err, models.ErrNotFound)
	ops, err := store.Operations(ctx, 0, 50)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestWithTxCommits(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.WithTx(ctx, func(tx storage.Store) error {
		expense := &models.Expense{
			Description: "kept",
			TotalAmount: decimal.NewFromInt(10),
			Creator:     "Alice",
		}
		if err := tx.InsertExpense(ctx, expense); err != nil {
			return err
		}
		return tx.InsertObligations(ctx, expense.ID, []models.Obligation{
			{Debtor: "Bob", Creditor: "Alice", Amount: decimal.NewFromInt(10)},
		})
	})
	require.NoError(t, err)

	got, err := store.ExpenseByDescription(ctx, "kept", "")
	require.NoError(t, err)
	obligations, err := store.ObligationsByExpense(ctx, got.ID)
	require.NoError(t, err)
	assert.Len(t, obligations, 1)
}
