package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	Debtor   string          `json:"debtor"`
	Creditor string          `json:"creditor"`
	Amount   decimal.Decimal `json:"amount"`
}

// CreatePayment applies a repayment from debtor to creditor.
//
// The over-payment guard lives here, not in the engine: the allocation
// loop silently drops any excess, so the boundary must reject requests
// above the current outstanding balance before invoking it.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if req.Debtor == "" || req.Creditor == "" {
		respondError(w, http.StatusUnprocessableEntity, "debtor and creditor are required")
		return
	}
	if !req.Amount.IsPositive() {
		respondError(w, http.StatusUnprocessableEntity, "amount must be positive")
		return
	}

	outstanding, err := h.engine.Outstanding(r.Context(), req.Debtor, req.Creditor)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if req.Amount.GreaterThan(outstanding) {
		respondError(w, http.StatusUnprocessableEntity, fmt.Sprintf(
			"payment of %s exceeds outstanding debt of %s", req.Amount, outstanding))
		return
	}

	result, err := h.engine.SettlePayment(r.Context(), req.Debtor, req.Creditor, req.Amount)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	if !result.Applied {
		// Outstanding was zero, so the guard above already rejected any
		// positive amount; reachable only by a racing cancellation.
		respondError(w, http.StatusConflict, "no outstanding debt between the pair")
		return
	}

	paymentsApplied.Inc()
	slog.Debug("payment accepted", "debtor", req.Debtor, "creditor", req.Creditor, "amount", req.Amount)
	respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"remaining": result.Remaining,
	})
}
