// Package asset is the fungible currency ledger the settlement engine moves
// premiums and payouts through. It models approve-then-pull semantics: an
// owner grants an allowance and a spender pulls up to it. Every operation
// either completes fully or leaves balances untouched.
package asset

import (
	"context"
	"log/slog"
	"math/bits"
	"strconv"

	"derisk/internal/authority"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/platform/tx"
	"derisk/pkg/requestcontext"
)

// Hook is invoked after an account is credited, inside the crediting
// transaction. It models a receiver callback; returning an error aborts the
// whole operation.
type Hook func(ctx context.Context, asset domain.AssetID, to domain.AccountID, amount uint64) error

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the asset ledger.
type Service struct {
	store          Store
	roles          *authority.Table
	guard          *tx.Guard
	hook           Hook
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// WithHook installs a receive callback.
func WithHook(hook Hook) Option {
	return func(s *Service) {
		s.hook = hook
	}
}

// WithGuard replaces the default in-memory guard, typically with one bound
// to a database.
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
		s.guard = tx.NewGuard("asset")
	}
	return s
}

// Mint creates amount units of asset for to. Admin only; it funds accounts
// in development and test deployments.
func (s *Service) Mint(ctx context.Context, p authority.Principal, asset domain.AssetID, to domain.AccountID, amount uint64) error {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return err
	}
	if err := validateMovement(asset, to, amount); err != nil {
		return err
	}
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		return s.credit(ctx, asset, to, amount)
	})
	if err != nil {
		return err
	}
	s.logAudit(ctx, audit.EventAssetMinted, to, amount, p.Account)
	return nil
}

// Transfer moves amount from the caller's own balance.
func (s *Service) Transfer(ctx context.Context, from, to domain.AccountID, asset domain.AssetID, amount uint64) error {
	if from.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "sender is required")
	}
	if err := validateMovement(asset, to, amount); err != nil {
		return err
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		return s.move(ctx, asset, from, to, amount)
	})
}

// Approve sets the allowance spender may pull from owner. It overwrites any
// previous allowance.
func (s *Service) Approve(ctx context.Context, owner, spender domain.AccountID, asset domain.AssetID, amount uint64) error {
	if owner.IsZero() || spender.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "owner and spender are required")
	}
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "asset_id is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetAllowance(ctx, asset, owner, spender, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store allowance")
		}
		return nil
	})
}

// TransferFrom pulls amount from owner to to, consuming spender's allowance.
func (s *Service) TransferFrom(ctx context.Context, spender, owner, to domain.AccountID, asset domain.AssetID, amount uint64) error {
	if spender.IsZero() || owner.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "owner and spender are required")
	}
	if err := validateMovement(asset, to, amount); err != nil {
		return err
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		allowance, err := s.store.Allowance(ctx, asset, owner, spender)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allowance")
		}
		if allowance < amount {
			return dErrors.Newf(dErrors.CodeInvalidState, "insufficient allowance: have %d, need %d", allowance, amount)
		}
		if err := s.store.SetAllowance(ctx, asset, owner, spender, allowance-amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store allowance")
		}
		return s.move(ctx, asset, owner, to, amount)
	})
}

func (s *Service) BalanceOf(ctx context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error) {
	bal, err := s.store.Balance(ctx, asset, account)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	return bal, nil
}

func (s *Service) Allowance(ctx context.Context, asset domain.AssetID, owner, spender domain.AccountID) (uint64, error) {
	v, err := s.store.Allowance(ctx, asset, owner, spender)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load allowance")
	}
	return v, nil
}

func (s *Service) move(ctx context.Context, asset domain.AssetID, from, to domain.AccountID, amount uint64) error {
	bal, err := s.store.Balance(ctx, asset, from)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	if bal < amount {
		return dErrors.Newf(dErrors.CodeInvalidState, "insufficient balance: have %d, need %d", bal, amount)
	}
	if err := s.store.SetBalance(ctx, asset, from, bal-amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	return s.credit(ctx, asset, to, amount)
}

func (s *Service) credit(ctx context.Context, asset domain.AssetID, to domain.AccountID, amount uint64) error {
	bal, err := s.store.Balance(ctx, asset, to)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load balance")
	}
	sum, carry := bits.Add64(bal, amount, 0)
	if carry != 0 {
		return dErrors.New(dErrors.CodeInvalidState, "balance overflow")
	}
	if err := s.store.SetBalance(ctx, asset, to, sum); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store balance")
	}
	if s.hook != nil {
		if err := s.hook(ctx, asset, to, amount); err != nil {
			return err
		}
	}
	return nil
}

func validateMovement(asset domain.AssetID, to domain.AccountID, amount uint64) error {
	if asset.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "asset_id is required")
	}
	if to.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, account domain.AccountID, amount uint64, actor domain.AccountID) {
	requestID := requestcontext.RequestID(ctx)
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event),
			"event", string(event),
			"log_type", "audit",
			"account", account,
			"amount", amount,
			"request_id", requestID,
		)
	}
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Account:   account.String(),
		Amount:    strconv.FormatUint(amount, 10),
		ActorID:   actor.String(),
		RequestID: requestID,
	})
}
