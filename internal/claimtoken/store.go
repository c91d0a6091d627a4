package claimtoken

import (
	"context"

	"derisk/pkg/domain"
)

// Store persists token ownership. Owner returns sentinel.ErrNotFound for a
// token that was never minted or has been burned.
type Store interface {
	Owner(ctx context.Context, id domain.PolicyID) (domain.AccountID, error)
	SetOwner(ctx context.Context, id domain.PolicyID, owner domain.AccountID) error
	Delete(ctx context.Context, id domain.PolicyID) error
	ListByOwner(ctx context.Context, owner domain.AccountID) ([]domain.PolicyID, error)
}
