// Package service implements the policy engine: issuance against the pooled
// vault and automatic settlement once a subject's score breaches a strike.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/bits"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"derisk/internal/authority"
	"derisk/internal/policy/metrics"
	"derisk/internal/policy/models"
	vaultmodels "derisk/internal/vault/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	audit "derisk/pkg/platform/audit"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
	"derisk/pkg/requestcontext"
)

type Store interface {
	NextID(ctx context.Context) (domain.PolicyID, error)
	Create(ctx context.Context, p *models.Policy) error
	FindByID(ctx context.Context, id domain.PolicyID) (*models.Policy, error)
	Update(ctx context.Context, p *models.Policy) error
	ListBySubject(ctx context.Context, subject domain.SubjectID) ([]*models.Policy, error)
	TotalInsured(ctx context.Context, subject domain.SubjectID) (uint64, error)
	SetTotalInsured(ctx context.Context, subject domain.SubjectID, amount uint64) error
}

// Registry supplies subject scores.
type Registry interface {
	GetScore(ctx context.Context, id domain.SubjectID) (uint8, error)
}

// Vault is the pool premiums are deposited into and payouts drawn from.
type Vault interface {
	Account() domain.AccountID
	PoolAsset() domain.AssetID
	Snapshot(ctx context.Context) (vaultmodels.Ledger, error)
	Reserve(ctx context.Context) error
	DepositPremium(ctx context.Context, amount uint64) (uint64, error)
	WithdrawForPayout(ctx context.Context, caller authority.Principal, recipient domain.AccountID, amount uint64) error
}

// Assets pulls premiums from buyers under an allowance granted to the engine.
type Assets interface {
	TransferFrom(ctx context.Context, spender, owner, to domain.AccountID, asset domain.AssetID, amount uint64) error
}

// ClaimTokens holds the transferable claim rights, one per policy.
type ClaimTokens interface {
	Mint(ctx context.Context, p authority.Principal, to domain.AccountID, id domain.PolicyID) error
	Burn(ctx context.Context, p authority.Principal, id domain.PolicyID) error
	OwnerOf(ctx context.Context, id domain.PolicyID) (domain.AccountID, error)
	TokensOf(ctx context.Context, account domain.AccountID) ([]domain.PolicyID, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Config identifies the engine's own authority account and pricing floor.
type Config struct {
	// Account is the engine authority. It must hold RoleEngine so it can mint
	// and burn claim tokens and draw payouts, and buyers approve it as the
	// spender of their premium.
	Account    domain.AccountID
	MinPremium uint64
}

type Service struct {
	store          Store
	registry       Registry
	vault          Vault
	assets         Assets
	claims         ClaimTokens
	cfg            Config
	guard          *tx.Guard
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
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

func New(store Store, registry Registry, vault Vault, assets Assets, claims ClaimTokens, cfg Config, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: registry,
		vault:    vault,
		assets:   assets,
		claims:   claims,
		cfg:      cfg,
		logger:   slog.Default(),
		tracer:   otel.Tracer("derisk/policy"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.guard == nil {
		s.guard = tx.NewGuard("engine")
	}
	return s
}

// Account is the engine authority buyers must approve as premium spender.
func (s *Service) Account() domain.AccountID { return s.cfg.Account }

// QuotePremium prices terms without side effects.
func (s *Service) QuotePremium(terms models.Terms) (uint64, error) {
	return terms.Premium(s.cfg.MinPremium)
}

// BuyPolicy issues a policy to buyer. The premium is pulled from buyer's
// allowance to the engine, deposited into the vault, and a claim token for
// the new id is minted to buyer. Any failure undoes all of it.
func (s *Service) BuyPolicy(ctx context.Context, buyer domain.AccountID, terms models.Terms) (*models.Policy, error) {
	ctx, span := s.tracer.Start(ctx, "policy.BuyPolicy", trace.WithAttributes(
		attribute.String("subject_id", terms.SubjectID.String()),
		attribute.Int("strike_score", int(terms.StrikeScore)),
	))
	defer span.End()
	defer s.metrics.ObserveDuration("buy", time.Now())

	policy, err := s.buyPolicy(ctx, buyer, terms)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
		return nil, err
	}
	span.SetAttributes(attribute.String("policy_id", policy.ID.String()))
	return policy, nil
}

func (s *Service) buyPolicy(ctx context.Context, buyer domain.AccountID, terms models.Terms) (*models.Policy, error) {
	if buyer.IsZero() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "buyer account is required")
	}
	premium, err := terms.Premium(s.cfg.MinPremium)
	if err != nil {
		return nil, err
	}

	var issued *models.Policy
	err = s.guard.RunInTx(ctx, func(ctx context.Context) error {
		if _, err := s.registry.GetScore(ctx, terms.SubjectID); err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return dErrors.Newf(dErrors.CodeValidation, "subject %s is not registered", terms.SubjectID)
			}
			return err
		}
		// The vault is locked before the premium pull touches the asset ledger.
		if err := s.vault.Reserve(ctx); err != nil {
			return err
		}
		ledger, err := s.vault.Snapshot(ctx)
		if err != nil {
			return err
		}
		if ledger.TotalAssets < terms.PayoutAmount {
			return dErrors.Newf(dErrors.CodeInsolvent,
				"pooled assets %d cannot cover payout %d", ledger.TotalAssets, terms.PayoutAmount)
		}

		id, err := s.store.NextID(ctx)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate policy id")
		}
		policy, err := models.NewPolicy(id, terms, premium, buyer, requestcontext.Now(ctx))
		if err != nil {
			return err
		}
		if err := s.store.Create(ctx, policy); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store policy")
		}
		insured, err := s.adjustInsured(ctx, terms.SubjectID, terms.PayoutAmount, true)
		if err != nil {
			return err
		}

		if err := s.assets.TransferFrom(ctx, s.cfg.Account, buyer, s.vault.Account(), s.vault.PoolAsset(), premium); err != nil {
			return err
		}
		if _, err := s.vault.DepositPremium(ctx, premium); err != nil {
			return err
		}
		if err := s.claims.Mint(ctx, authority.As(s.cfg.Account), buyer, id); err != nil {
			return err
		}

		tx.AfterCommit(ctx, func(ctx context.Context) {
			s.metrics.IncrementIssued()
			s.metrics.ObserveExposure(terms.SubjectID.String(), insured)
			s.logAudit(ctx, audit.EventPolicyIssued, policy, buyer, premium)
		})
		issued = policy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// ClaimPayout settles policy id to caller, who must hold its claim token.
// The claimed flag and insured total are written before the token burn and
// the payout transfer.
func (s *Service) ClaimPayout(ctx context.Context, caller domain.AccountID, id domain.PolicyID) error {
	ctx, span := s.tracer.Start(ctx, "policy.ClaimPayout",
		trace.WithAttributes(attribute.String("policy_id", id.String())))
	defer span.End()
	defer s.metrics.ObserveDuration("claim", time.Now())

	if err := s.claimPayout(ctx, caller, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.GetCode(err)))
		s.metrics.IncrementRefused(string(dErrors.GetCode(err)))
		return err
	}
	return nil
}

func (s *Service) claimPayout(ctx context.Context, caller domain.AccountID, id domain.PolicyID) error {
	if caller.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "claimant account is required")
	}
	return s.guard.RunInTx(ctx, func(ctx context.Context) error {
		policy, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		// A claimed policy's token is already burned, so this comes before
		// the holder check to report the terminal state.
		if policy.Claimed {
			return models.ReasonError(models.ReasonAlreadyClaimed)
		}
		owner, err := s.claims.OwnerOf(ctx, id)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "claim token missing for unclaimed policy")
		}
		if owner != caller {
			return dErrors.New(dErrors.CodeForbidden, "caller does not hold the claim token")
		}
		now := requestcontext.Now(ctx)
		if r := policy.Open(now); r != models.ReasonOK {
			return models.ReasonError(r)
		}
		score, err := s.registry.GetScore(ctx, policy.SubjectID)
		if err != nil {
			if dErrors.HasCode(err, dErrors.CodeNotFound) {
				return models.ReasonError(models.ReasonSubjectUnavailable)
			}
			return err
		}
		if r := policy.Eligibility(now, score); r != models.ReasonOK {
			return models.ReasonError(r)
		}

		if err := policy.MarkClaimed(); err != nil {
			return err
		}
		if err := s.store.Update(ctx, policy); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store policy")
		}
		insured, err := s.adjustInsured(ctx, policy.SubjectID, policy.PayoutAmount, false)
		if err != nil {
			return err
		}

		engine := authority.As(s.cfg.Account)
		if err := s.claims.Burn(ctx, engine, id); err != nil {
			return err
		}
		if err := s.vault.WithdrawForPayout(ctx, engine, caller, policy.PayoutAmount); err != nil {
			return err
		}

		tx.AfterCommit(ctx, func(ctx context.Context) {
			s.metrics.IncrementPaid()
			s.metrics.ObserveExposure(policy.SubjectID.String(), insured)
			s.logAudit(ctx, audit.EventPolicyClaimed, policy, caller, policy.PayoutAmount)
		})
		return nil
	})
}

// IsClaimable replicates the claim checks that do not depend on the caller,
// without mutating anything.
func (s *Service) IsClaimable(ctx context.Context, id domain.PolicyID) (bool, models.Reason, error) {
	policy, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return false, models.ReasonNotFound, nil
	}
	if err != nil {
		return false, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	now := requestcontext.Now(ctx)
	if r := policy.Open(now); r != models.ReasonOK {
		return false, r, nil
	}
	score, err := s.registry.GetScore(ctx, policy.SubjectID)
	if err != nil {
		return false, models.ReasonSubjectUnavailable, nil
	}
	r := policy.Eligibility(now, score)
	return r == models.ReasonOK, r, nil
}

// GetPolicy returns the stored policy.
func (s *Service) GetPolicy(ctx context.Context, id domain.PolicyID) (*models.Policy, error) {
	return s.load(ctx, id)
}

// Status derives the lifecycle state of p from the clock and current score.
// A subject whose score cannot be read reports the policy as active.
func (s *Service) Status(ctx context.Context, p *models.Policy) models.Status {
	now := requestcontext.Now(ctx)
	if r := p.Open(now); r != models.ReasonOK {
		return p.Status(now, 0)
	}
	score, err := s.registry.GetScore(ctx, p.SubjectID)
	if err != nil {
		return models.StatusActive
	}
	return p.Status(now, score)
}

// TotalInsured returns the outstanding insured payout for subject.
func (s *Service) TotalInsured(ctx context.Context, subject domain.SubjectID) (uint64, error) {
	total, err := s.store.TotalInsured(ctx, subject)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load total insured")
	}
	return total, nil
}

// ListByHolder returns the policies whose claim token account currently holds.
func (s *Service) ListByHolder(ctx context.Context, account domain.AccountID) ([]*models.Policy, error) {
	ids, err := s.claims.TokensOf(ctx, account)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Policy, 0, len(ids))
	for _, id := range ids {
		p, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListBySubject returns every policy written on subject.
func (s *Service) ListBySubject(ctx context.Context, subject domain.SubjectID) ([]*models.Policy, error) {
	out, err := s.store.ListBySubject(ctx, subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id domain.PolicyID) (*models.Policy, error) {
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "policy %d not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load policy")
	}
	return p, nil
}

// adjustInsured moves the subject's insured total by amount and returns the
// new total. It only changes together with an issuance or a claim.
func (s *Service) adjustInsured(ctx context.Context, subject domain.SubjectID, amount uint64, increase bool) (uint64, error) {
	current, err := s.store.TotalInsured(ctx, subject)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load total insured")
	}
	var next uint64
	if increase {
		var carry uint64
		next, carry = bits.Add64(current, amount, 0)
		if carry != 0 {
			return 0, dErrors.New(dErrors.CodeInvalidState, "total insured for subject would overflow")
		}
	} else {
		if amount > current {
			return 0, dErrors.Newf(dErrors.CodeInvariantViolation,
				"total insured %d below claimed payout %d", current, amount)
		}
		next = current - amount
	}
	if err := s.store.SetTotalInsured(ctx, subject, next); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store total insured")
	}
	return next, nil
}
