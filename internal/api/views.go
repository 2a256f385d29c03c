package api

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

type debtResponse struct {
	Debtor      string          `json:"debtor"`
	Creditor    string          `json:"creditor"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        decimal.Decimal `json:"paid"`
	Remaining   decimal.Decimal `json:"remaining"`
	CreatedAt   int64           `json:"created_at"`
	Description string          `json:"description"`
}

type operationResponse struct {
	ID          int64               `json:"id"`
	ExpenseID   int64               `json:"expense_id,omitempty"`
	Type        string              `json:"operation_type"`
	Username    string              `json:"username"`
	Description string              `json:"description"`
	Amount      decimal.NullDecimal `json:"amount"`
	CreatedAt   int64               `json:"created_at"`
}

// ListDebts returns the active obligations, optionally filtered by
// ?creditor= and ?debtor=.
func (h *Handler) ListDebts(w http.ResponseWriter, r *http.Request) {
	creditor := r.URL.Query().Get("creditor")
	debtor := r.URL.Query().Get("debtor")

	views, err := h.engine.Balances(r.Context(), creditor, debtor)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	debts := make([]debtResponse, 0, len(views))
	for _, v := range views {
		debts = append(debts, toDebtResponse(v))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"debts":   debts,
		"count":   len(debts),
	})
}

// ListGroupedDebts returns the active obligations partitioned by
// expense, newest expense first.
func (h *Handler) ListGroupedDebts(w http.ResponseWriter, r *http.Request) {
	groups, err := h.engine.GroupedByExpense(r.Context())
	if err != nil {
		respondEngineError(w, err)
		return
	}

	type group struct {
		Description string         `json:"description"`
		Debts       []debtResponse `json:"debts"`
	}
	grouped := make([]group, len(groups))
	for i, g := range groups {
		grouped[i] = group{Description: g.Description, Debts: make([]debtResponse, len(g.Obligations))}
		for j, v := range g.Obligations {
			grouped[i].Debts[j] = toDebtResponse(v)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"grouped": grouped,
		"count":   len(grouped),
	})
}

// GetStatistics returns aggregate numbers over the active obligations,
// scoped to one debtor when ?username= is given.
func (h *Handler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")

	var payload map[string]any
	if username != "" {
		stats, err := h.engine.DebtorStatistics(r.Context(), username)
		if err != nil {
			respondEngineError(w, err)
			return
		}
		payload = map[string]any{
			"debt_count": stats.Count,
			"total_debt": stats.Total,
		}
	} else {
		stats, err := h.engine.Statistics(r.Context())
		if err != nil {
			respondEngineError(w, err)
			return
		}
		payload = map[string]any{
			"debt_count":      stats.Count,
			"total_debt":      stats.Total,
			"debtors_count":   stats.DistinctDebtors,
			"creditors_count": stats.DistinctCreditors,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"statistics": payload,
	})
}

// GetHistory returns the audit trail, newest first, optionally scoped
// by ?expense_id= and bounded by ?limit=.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	var expenseID int64
	if raw := r.URL.Query().Get("expense_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid expense_id")
			return
		}
		expenseID = id
	}
	var limit int
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	ops, err := h.engine.History(r.Context(), expenseID, limit)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	history := make([]operationResponse, len(ops))
	for i, op := range ops {
		history[i] = operationResponse{
			ID:          op.ID,
			ExpenseID:   op.ExpenseID,
			Type:        string(op.Type),
			Username:    op.Username,
			Description: op.Description,
			Amount:      op.Amount,
			CreatedAt:   op.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"history": history,
		"count":   len(history),
	})
}

func toDebtResponse(v models.ObligationView) debtResponse {
	return debtResponse{
		Debtor:      v.Debtor,
		Creditor:    v.Creditor,
		Amount:      v.Amount,
		Paid:        v.Settled,
		Remaining:   v.Remaining,
		CreatedAt:   v.CreatedAt,
		Description: v.ExpenseDescription,
	}
}
