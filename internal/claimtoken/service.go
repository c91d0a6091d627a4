// Package claimtoken tracks the non-fungible claim right issued per policy.
// Exactly one unit exists per policy id from issuance until it is burned at
// claim time, and whoever holds it is the party entitled to claim.
package claimtoken

import (
	"context"
	"errors"
	"log/slog"

	"derisk/internal/authority"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

// Hook is called after a token lands with a new owner, inside the same
// transaction.
type Hook func(ctx context.Context, to domain.AccountID, id domain.PolicyID) error

type Service struct {
	store  Store
	roles  *authority.Table
	guard  *tx.Guard
	hook   Hook
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithHook(hook Hook) Option {
	return func(s *Service) {
		s.hook = hook
	}
}

func WithGuard(g *tx.Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func New(store Store, roles *authority.Table, opts ...Option) *Service {
	s := &Service{store: store, roles: roles}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = tx.NewGuard("claimtoken")
	}
	return s
}

// Mint issues the claim right for id to to. Engine only.
func (s *Service) Mint(ctx context.Context, p authority.Principal, to domain.AccountID, id domain.PolicyID) error {
	if err := s.roles.Require(p, authority.RoleEngine); err != nil {
		return err
	}
	if to.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	if id.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "policy_id is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.store.Owner(ctx, id)
		switch {
		case err == nil:
			return dErrors.Newf(dErrors.CodeConflict, "claim token %d already minted", id)
		case !errors.Is(err, sentinel.ErrNotFound):
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim token")
		}
		if err := s.store.SetOwner(ctx, id, to); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint claim token")
		}
		return s.notify(ctx, to, id)
	})
}

// Burn destroys the claim right for id. Engine only.
func (s *Service) Burn(ctx context.Context, p authority.Principal, id domain.PolicyID) error {
	if err := s.roles.Require(p, authority.RoleEngine); err != nil {
		return err
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Delete(ctx, id); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.Newf(dErrors.CodeNotFound, "claim token %d not found", id)
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to burn claim token")
		}
		return nil
	})
}

// Transfer hands the claim right from its current owner to to.
func (s *Service) Transfer(ctx context.Context, from, to domain.AccountID, id domain.PolicyID) error {
	if to.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		owner, err := s.OwnerOf(ctx, id)
		if err != nil {
			return err
		}
		if owner != from {
			return dErrors.New(dErrors.CodeForbidden, "caller does not hold the claim token")
		}
		if err := s.store.SetOwner(ctx, id, to); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to transfer claim token")
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "claim token transferred",
				"policy_id", id, "from", from, "to", to)
		}
		return s.notify(ctx, to, id)
	})
}

func (s *Service) OwnerOf(ctx context.Context, id domain.PolicyID) (domain.AccountID, error) {
	owner, err := s.store.Owner(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.Newf(dErrors.CodeNotFound, "claim token %d not found", id)
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim token")
	}
	return owner, nil
}

// BalanceOf returns 1 when account holds the token for id and 0 otherwise.
func (s *Service) BalanceOf(ctx context.Context, account domain.AccountID, id domain.PolicyID) (uint64, error) {
	owner, err := s.store.Owner(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load claim token")
	}
	if owner != account {
		return 0, nil
	}
	return 1, nil
}

func (s *Service) TokensOf(ctx context.Context, account domain.AccountID) ([]domain.PolicyID, error) {
	ids, err := s.store.ListByOwner(ctx, account)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list claim tokens")
	}
	return ids, nil
}

func (s *Service) notify(ctx context.Context, to domain.AccountID, id domain.PolicyID) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(ctx, to, id)
}
