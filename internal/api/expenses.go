package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/models"
)

type createExpenseRequest struct {
	Description  string          `json:"description"`
	Amount       decimal.Decimal `json:"amount"`
	Creator      string          `json:"creator"`
	Participants []string        `json:"participants"`
}

type obligationResponse struct {
	Debtor    string          `json:"debtor"`
	Creditor  string          `json:"creditor"`
	Amount    decimal.Decimal `json:"amount"`
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining"`
}

type expenseResponse struct {
	ID          int64                `json:"id"`
	Description string               `json:"description"`
	TotalAmount decimal.Decimal      `json:"total_amount"`
	Creator     string               `json:"creator"`
	CreatedAt   int64                `json:"created_at"`
	Obligations []obligationResponse `json:"obligations"`
}

// CreateExpense records a new expense split equally among the
// participants.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Creator == "" {
		respondError(w, http.StatusUnprocessableEntity, "creator is required")
		return
	}

	expenseID, err := h.engine.RecordExpense(r.Context(), req.Description, req.Amount, req.Creator, req.Participants)
	if err != nil {
		slog.Warn("record expense rejected", "creator", req.Creator, "error", err)
		respondEngineError(w, err)
		return
	}

	expensesRecorded.Inc()
	respondJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"expense_id": expenseID,
	})
}

// GetExpense returns the details of one expense, settled obligations
// included.
func (h *Handler) GetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}

	details, err := h.engine.ExpenseDetails(r.Context(), id)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"expense": toExpenseResponse(details),
	})
}

// GetExpenseByDescription resolves the most recent matching expense,
// optionally restricted to ?creator=.
func (h *Handler) GetExpenseByDescription(w http.ResponseWriter, r *http.Request) {
	description := r.URL.Query().Get("description")
	creator := r.URL.Query().Get("creator")

	details, err := h.engine.ExpenseByDescription(r.Context(), description, creator)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"expense": toExpenseResponse(details),
	})
}

// CancelExpense reverses an expense. The acting identity comes from the
// X-Username header; only the expense's creator may cancel it.
func (h *Handler) CancelExpense(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid expense id")
		return
	}
	actor := r.Header.Get("X-Username")
	if actor == "" {
		respondError(w, http.StatusBadRequest, "X-Username header is required")
		return
	}

	cancelled, err := h.engine.CancelExpense(r.Context(), id, actor)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if !cancelled {
		respondError(w, http.StatusForbidden, "expense not found or not owned by caller")
		return
	}

	expensesCancelled.Inc()
	respondJSON(w, http.StatusOK, map[string]any{"success": true})
}

func toExpenseResponse(details *ledger.ExpenseDetails) expenseResponse {
	resp := expenseResponse{
		ID:          details.Expense.ID,
		Description: details.Expense.Description,
		TotalAmount: details.Expense.TotalAmount,
		Creator:     details.Expense.Creator,
		CreatedAt:   details.Expense.CreatedAt,
		Obligations: make([]obligationResponse, len(details.Obligations)),
	}
	for i, o := range details.Obligations {
		resp.Obligations[i] = toObligationResponse(o)
	}
	return resp
}

func toObligationResponse(o models.Obligation) obligationResponse {
	return obligationResponse{
		Debtor:    o.Debtor,
		Creditor:  o.Creditor,
		Amount:    o.Amount,
		Paid:      o.Settled,
		Remaining: o.Remaining(),
	}
}
