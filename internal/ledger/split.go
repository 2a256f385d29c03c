package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
)

// centStep is the smallest currency unit used when a division does not
// come out even.
var centStep = decimal.New(1, -2)

// SplitEqually divides amount into one share per participant such that
// the shares always sum back to amount exactly.
//
// When the division is exact every share equals amount/n. Otherwise the
// shares are computed at cent precision and the leftover cents go to the
// earliest participants, one cent each, so no value is ever lost to
// rounding. Amounts too small to leave every participant a positive
// share are rejected.
func SplitEqually(amount decimal.Decimal, participants []string) ([]decimal.Decimal, error) {
	if len(participants) == 0 {
		return nil, &models.ValidationError{Reason: "at least one participant is required"}
	}
	if !amount.IsPositive() {
		return nil, &models.ValidationError{Reason: "amount must be positive"}
	}

	n := decimal.NewFromInt(int64(len(participants)))
	shares := make([]decimal.Decimal, len(participants))

	base := amount.Div(n)
	if base.Mul(n).Equal(amount) {
		for i := range shares {
			shares[i] = base
		}
		return shares, nil
	}

	base = base.RoundDown(2)
	leftover := amount.Sub(base.Mul(n))
	for i := range shares {
		shares[i] = base
		if leftover.GreaterThanOrEqual(centStep) {
			shares[i] = shares[i].Add(centStep)
			leftover = leftover.Sub(centStep)
		}
	}
	if leftover.IsPositive() {
		// Sub-cent residue from an amount finer than cent scale.
		shares[0] = shares[0].Add(leftover)
	}
	for _, share := range shares {
		if !share.IsPositive() {
			return nil, &models.ValidationError{
				Reason: fmt.Sprintf("amount %s is too small to split among %d participants", amount, len(participants)),
			}
		}
	}
	return shares, nil
}
