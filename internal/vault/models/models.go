package models

import (
	"math/bits"

	dErrors "derisk/pkg/domain-errors"
)

// Ledger is the pooled capital accounting of the vault.
//
// Invariants:
//   - every issued share is held by the pool itself, so SelfShares == TotalShares
//   - TotalShares == 0 exactly when the pool has never been funded or has been
//     drained completely
type Ledger struct {
	TotalAssets uint64 `json:"total_assets"`
	TotalShares uint64 `json:"total_shares"`
	SelfShares  uint64 `json:"self_shares"`
}

// SharesForDeposit converts a deposit into shares at the ledger's current
// ratio. An empty pool bootstraps 1:1 with at least one share; otherwise a
// deposit that would round down to zero shares is refused.
func (l Ledger) SharesForDeposit(amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if l.TotalShares == 0 || l.TotalAssets == 0 {
		return max(1, amount), nil
	}
	shares, err := MulDiv(amount, l.TotalShares, l.TotalAssets)
	if err != nil {
		return 0, err
	}
	if shares == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "deposit too small")
	}
	return shares, nil
}

// SharesForWithdraw converts a withdrawal into the shares to burn, rounded
// down, raised to at least one share and capped at the pool's own balance.
// The caller has already checked amount <= TotalAssets.
func (l Ledger) SharesForWithdraw(amount uint64) (uint64, error) {
	if l.TotalAssets == 0 {
		return 0, dErrors.New(dErrors.CodeInsolvent, "pool is empty")
	}
	shares, err := MulDiv(amount, l.TotalShares, l.TotalAssets)
	if err != nil {
		return 0, err
	}
	shares = max(1, shares)
	return min(shares, l.SelfShares), nil
}

// Deposit returns the ledger after crediting amount and shares.
func (l Ledger) Deposit(amount, shares uint64) (Ledger, error) {
	assets, c1 := bits.Add64(l.TotalAssets, amount, 0)
	total, c2 := bits.Add64(l.TotalShares, shares, 0)
	self, c3 := bits.Add64(l.SelfShares, shares, 0)
	if c1|c2|c3 != 0 {
		return l, dErrors.New(dErrors.CodeInvalidState, "vault ledger overflow")
	}
	return Ledger{TotalAssets: assets, TotalShares: total, SelfShares: self}, nil
}

// Withdraw returns the ledger after debiting amount and burning shares.
func (l Ledger) Withdraw(amount, shares uint64) (Ledger, error) {
	if amount > l.TotalAssets || shares > l.TotalShares || shares > l.SelfShares {
		return l, dErrors.New(dErrors.CodeInvariantViolation, "withdrawal exceeds ledger")
	}
	return Ledger{
		TotalAssets: l.TotalAssets - amount,
		TotalShares: l.TotalShares - shares,
		SelfShares:  l.SelfShares - shares,
	}, nil
}

// MulDiv computes floor(a*b/d) with a 128-bit intermediate product.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "division by zero")
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, dErrors.New(dErrors.CodeInvalidState, "share conversion overflow")
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}
