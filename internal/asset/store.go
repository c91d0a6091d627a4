package asset

import (
	"context"

	"derisk/pkg/domain"
)

// Store persists balances and allowances. Absent rows read as zero.
type Store interface {
	Balance(ctx context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error)
	SetBalance(ctx context.Context, asset domain.AssetID, account domain.AccountID, amount uint64) error
	Allowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID) (uint64, error)
	SetAllowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID, amount uint64) error
}
