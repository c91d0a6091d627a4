// Package service implements the pooled vault: share accounting over the
// premiums collected by the policy engine, with payouts released only to the
// bound engine authority.
package service

import (
	"context"
	"log/slog"
	"strconv"

	"derisk/internal/authority"
	"derisk/internal/vault/metrics"
	"derisk/internal/vault/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/platform/tx"
	"derisk/pkg/requestcontext"
)

type Store interface {
	Load(ctx context.Context) (models.Ledger, error)
	Save(ctx context.Context, ledger models.Ledger) error
	Engine(ctx context.Context) (domain.AccountID, error)
	SetEngine(ctx context.Context, engine domain.AccountID) error
}

// Assets is the currency ledger the vault custodies its holdings in.
type Assets interface {
	Transfer(ctx context.Context, from, to domain.AccountID, asset domain.AssetID, amount uint64) error
	BalanceOf(ctx context.Context, asset domain.AssetID, account domain.AccountID) (uint64, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config identifies the vault's own custody account and the pooled asset.
type Config struct {
	Account   domain.AccountID
	PoolAsset domain.AssetID
}

type Service struct {
	store          Store
	assets         Assets
	roles          *authority.Table
	cfg            Config
	guard          *tx.Guard
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
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

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithGuard(g *tx.Guard) Option {
	return func(s *Service) {
		s.guard = g
	}
}

func New(store Store, assets Assets, roles *authority.Table, cfg Config, opts ...Option) *Service {
	s := &Service{store: store, assets: assets, roles: roles, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = tx.NewGuard("vault")
	}
	return s
}

// Account is the vault's custody account. Premiums must be moved here
// before DepositPremium is called.
func (s *Service) Account() domain.AccountID { return s.cfg.Account }

// Reserve keeps the vault locked until the caller's transaction finishes, so
// the vault is taken before the asset ledger.
func (s *Service) Reserve(ctx context.Context) error {
	return s.guard.Reserve(ctx)
}

// PoolAsset is the asset the pool accounts in.
func (s *Service) PoolAsset() domain.AssetID { return s.cfg.PoolAsset }

// Restore re-grants the engine role to the persisted engine account, used at
// startup so the role table matches the store.
func (s *Service) Restore(ctx context.Context) error {
	engine, err := s.store.Engine(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vault engine")
	}
	if !engine.IsZero() {
		s.roles.Assign(authority.RoleEngine, engine)
	}
	return nil
}

// DepositPremium credits amount to the pool and mints the corresponding
// shares to the pool itself. The assets must already sit in the vault
// account, unaccounted; an unbacked deposit is refused.
func (s *Service) DepositPremium(ctx context.Context, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	var (
		minted uint64
		after  models.Ledger
	)
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		ledger, err := s.load(ctx)
		if err != nil {
			return err
		}
		shares, err := ledger.SharesForDeposit(amount)
		if err != nil {
			return err
		}
		next, err := ledger.Deposit(amount, shares)
		if err != nil {
			return err
		}
		held, err := s.assets.BalanceOf(ctx, s.cfg.PoolAsset, s.cfg.Account)
		if err != nil {
			return err
		}
		if held < next.TotalAssets {
			return dErrors.Newf(dErrors.CodeInvalidState,
				"deposit not backed: vault holds %d, ledger would account %d", held, next.TotalAssets)
		}
		if err := s.save(ctx, next); err != nil {
			return err
		}
		minted, after = shares, next
		tx.AfterCommit(ctx, func(ctx context.Context) {
			s.metrics.AddPremium(amount)
			s.metrics.ObserveLedger(after)
			s.logAudit(ctx, audit.EventPremiumDeposited, "", amount, "")
		})
		return nil
	})
	if err != nil {
		s.metrics.IncrementRefused("deposit", string(dErrors.GetCode(err)))
		return 0, err
	}
	return minted, nil
}

// WithdrawForPayout releases amount to recipient. Only the bound engine may
// call it. Ledger bookkeeping is written before the transfer, and a failed
// transfer rolls both back.
func (s *Service) WithdrawForPayout(ctx context.Context, caller authority.Principal, recipient domain.AccountID, amount uint64) error {
	if err := s.roles.Require(caller, authority.RoleEngine); err != nil {
		return err
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if recipient.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "recipient is required")
	}
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		ledger, err := s.load(ctx)
		if err != nil {
			return err
		}
		if amount > ledger.TotalAssets {
			return dErrors.Newf(dErrors.CodeInsolvent,
				"insufficient pooled assets: have %d, need %d", ledger.TotalAssets, amount)
		}
		shares, err := ledger.SharesForWithdraw(amount)
		if err != nil {
			return err
		}
		next, err := ledger.Withdraw(amount, shares)
		if err != nil {
			return err
		}
		if err := s.save(ctx, next); err != nil {
			return err
		}
		if err := s.assets.Transfer(ctx, s.cfg.Account, recipient, s.cfg.PoolAsset, amount); err != nil {
			return err
		}
		tx.AfterCommit(ctx, func(ctx context.Context) {
			s.metrics.AddPayout(amount)
			s.metrics.ObserveLedger(next)
			s.logAudit(ctx, audit.EventPayoutWithdrawn, recipient, amount, caller.Account)
		})
		return nil
	})
	if err != nil {
		s.metrics.IncrementRefused("withdraw", string(dErrors.GetCode(err)))
	}
	return err
}

// EmergencyWithdraw moves assets the pool does not account for out of the
// vault account. For the pool asset only the surplus above TotalAssets can
// leave this way.
func (s *Service) EmergencyWithdraw(ctx context.Context, p authority.Principal, asset domain.AssetID, recipient domain.AccountID, amount uint64) error {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return err
	}
	if asset.IsZero() || recipient.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "asset_id and recipient are required")
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	err := s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if asset == s.cfg.PoolAsset {
			ledger, err := s.load(ctx)
			if err != nil {
				return err
			}
			held, err := s.assets.BalanceOf(ctx, asset, s.cfg.Account)
			if err != nil {
				return err
			}
			surplus := uint64(0)
			if held > ledger.TotalAssets {
				surplus = held - ledger.TotalAssets
			}
			if amount > surplus {
				return dErrors.Newf(dErrors.CodeInvalidState,
					"withdrawal would breach pooled accounting: surplus is %d", surplus)
			}
		}
		return s.assets.Transfer(ctx, s.cfg.Account, recipient, asset, amount)
	})
	if err != nil {
		return err
	}
	s.logger.WarnContext(ctx, "emergency withdrawal executed",
		"asset_id", asset, "recipient", recipient, "amount", amount)
	s.logAudit(ctx, audit.EventEmergencyWithdraw, recipient, amount, p.Account)
	return nil
}

// SetEngine binds the engine authority allowed to withdraw payouts.
func (s *Service) SetEngine(ctx context.Context, p authority.Principal, engine domain.AccountID) error {
	if err := s.roles.Require(p, authority.RoleAdmin); err != nil {
		return err
	}
	if engine.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "engine account is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.SetEngine(ctx, engine); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store engine")
		}
		previous := s.roles.Assign(authority.RoleEngine, engine)
		tx.OnRollback(ctx, func() { s.roles.Restore(authority.RoleEngine, previous) })
		tx.AfterCommit(ctx, func(ctx context.Context) {
			s.logAudit(ctx, audit.EventEngineBound, engine, 0, p.Account)
		})
		return nil
	})
}

// Snapshot returns the current ledger.
func (s *Service) Snapshot(ctx context.Context) (models.Ledger, error) {
	return s.load(ctx)
}

func (s *Service) load(ctx context.Context) (models.Ledger, error) {
	l, err := s.store.Load(ctx)
	if err != nil {
		return models.Ledger{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vault ledger")
	}
	return l, nil
}

func (s *Service) save(ctx context.Context, l models.Ledger) error {
	if err := s.store.Save(ctx, l); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store vault ledger")
	}
	return nil
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, account domain.AccountID, amount uint64, actor domain.AccountID) {
	requestID := requestcontext.RequestID(ctx)
	s.logger.InfoContext(ctx, string(event),
		"event", string(event),
		"log_type", "audit",
		"account", account,
		"amount", amount,
		"request_id", requestID,
	)
	if s.auditPublisher == nil {
		return
	}
	_ = s.auditPublisher.Emit(ctx, audit.Event{
		Action:    string(event),
		Account:   account.String(),
		Amount:    strconv.FormatUint(amount, 10),
		RequestID: requestID,
		ActorID:   actor.String(),
	})
}
