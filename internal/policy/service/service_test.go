package service

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"derisk/internal/asset"
	"derisk/internal/authority"
	"derisk/internal/claimtoken"
	"derisk/internal/policy/metrics"
	"derisk/internal/policy/models"
	"derisk/internal/policy/store"
	regservice "derisk/internal/registry/service"
	regstore "derisk/internal/registry/store"
	vaultservice "derisk/internal/vault/service"
	vaultstore "derisk/internal/vault/store"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	audit "derisk/pkg/platform/audit"
	auditpublisher "derisk/pkg/platform/audit/publisher"
	auditmemory "derisk/pkg/platform/audit/store/memory"
	"derisk/pkg/requestcontext"
)

const (
	usdc    domain.AssetID   = "usdc"
	admin   domain.AccountID = "0xadmin"
	engine  domain.AccountID = "0xengine"
	pool    domain.AccountID = "0xvault"
	alice   domain.AccountID = "0xalice"
	bob     domain.AccountID = "0xbob"
	subject domain.SubjectID = "aave-v3"

	poolFunding = 10_000
)

var issuedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// EngineSuite runs the engine against the real in-memory collaborators.
type EngineSuite struct {
	suite.Suite
	ctx      context.Context
	roles    *authority.Table
	assets   *asset.Service
	claims   *claimtoken.Service
	registry *regservice.Service
	vault    *vaultservice.Service
	store    *store.InMemoryStore
	metrics  *metrics.Metrics
	audit    *auditpublisher.Publisher
	svc      *Service

	// assetHook and claimHook run on credits and claim token mints when set.
	assetHook func(ctx context.Context, to domain.AccountID) error
	claimHook func(ctx context.Context, to domain.AccountID, id domain.PolicyID) error
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), issuedAt)
	s.assetHook, s.claimHook = nil, nil
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.roles = authority.NewTable()
	s.roles.Grant(authority.RoleAdmin, admin)
	s.assets = asset.New(asset.NewInMemoryStore(), s.roles,
		asset.WithHook(func(ctx context.Context, _ domain.AssetID, to domain.AccountID, _ uint64) error {
			if s.assetHook != nil {
				return s.assetHook(ctx, to)
			}
			return nil
		}))
	s.claims = claimtoken.New(claimtoken.NewInMemoryStore(), s.roles,
		claimtoken.WithHook(func(ctx context.Context, to domain.AccountID, id domain.PolicyID) error {
			if s.claimHook != nil {
				return s.claimHook(ctx, to, id)
			}
			return nil
		}))
	s.registry = regservice.New(regstore.NewInMemoryStore(), s.roles, regservice.WithLogger(quiet))
	s.vault = vaultservice.New(vaultstore.NewInMemoryStore(), s.assets, s.roles,
		vaultservice.Config{Account: pool, PoolAsset: usdc}, vaultservice.WithLogger(quiet))
	s.Require().NoError(s.vault.SetEngine(s.ctx, authority.As(admin), engine))

	s.store = store.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.audit = auditpublisher.NewPublisher(auditmemory.NewInMemoryStore())
	s.svc = New(s.store, s.registry, s.vault, s.assets, s.claims,
		Config{Account: engine, MinPremium: 1},
		WithMetrics(s.metrics),
		WithAuditPublisher(s.audit),
		WithLogger(quiet),
	)

	s.mint(pool, poolFunding)
	_, err := s.vault.DepositPremium(s.ctx, poolFunding)
	s.Require().NoError(err)

	_, err = s.registry.Register(s.ctx, authority.As(admin), subject, 95)
	s.Require().NoError(err)

	s.mint(alice, 1_000)
	s.Require().NoError(s.assets.Approve(s.ctx, alice, engine, usdc, math.MaxUint64))
}

func (s *EngineSuite) mint(to domain.AccountID, amount uint64) {
	s.Require().NoError(s.assets.Mint(s.ctx, authority.As(admin), usdc, to, amount))
}

func (s *EngineSuite) balance(account domain.AccountID) uint64 {
	b, err := s.assets.BalanceOf(s.ctx, usdc, account)
	s.Require().NoError(err)
	return b
}

func (s *EngineSuite) pooled() uint64 {
	l, err := s.vault.Snapshot(s.ctx)
	s.Require().NoError(err)
	return l.TotalAssets
}

func (s *EngineSuite) insured() uint64 {
	v, err := s.svc.TotalInsured(s.ctx, subject)
	s.Require().NoError(err)
	return v
}

func (s *EngineSuite) setScore(score uint8) {
	_, err := s.registry.UpdateManual(s.ctx, authority.As(admin), subject, score)
	s.Require().NoError(err)
}

func (s *EngineSuite) buy(strike uint8, days uint32, payout uint64) *models.Policy {
	p, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: strike, DurationDays: days, PayoutAmount: payout,
	})
	s.Require().NoError(err)
	return p
}

func (s *EngineSuite) TestBreachedPolicyPaysOutOnce() {
	p := s.buy(80, 10, 1_000)
	s.Equal(domain.PolicyID(1), p.ID)
	s.Equal(uint64(20), p.Premium)
	s.Equal(issuedAt.Add(10*24*time.Hour), p.Expiry)
	s.Equal(uint64(980), s.balance(alice))
	s.Equal(uint64(poolFunding+20), s.pooled())
	s.Equal(uint64(1_000), s.insured())
	owner, err := s.claims.OwnerOf(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(alice, owner)

	s.setScore(50)
	before := s.pooled()
	s.Require().NoError(s.svc.ClaimPayout(s.ctx, alice, p.ID))

	s.Equal(before-1_000, s.pooled())
	s.Equal(uint64(1_980), s.balance(alice))
	s.Zero(s.insured())
	held, err := s.claims.BalanceOf(s.ctx, alice, p.ID)
	s.Require().NoError(err)
	s.Zero(held, "claim right is destroyed")
	stored, err := s.svc.GetPolicy(s.ctx, p.ID)
	s.Require().NoError(err)
	s.True(stored.Claimed)
	s.Equal(models.StatusClaimed, s.svc.Status(s.ctx, stored))

	err = s.svc.ClaimPayout(s.ctx, alice, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "already claimed")
	s.Equal(before-1_000, s.pooled())

	s.Equal(1.0, testutil.ToFloat64(s.metrics.PoliciesIssued))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ClaimsPaid))
	events, err := s.audit.List(s.ctx, subject.String())
	s.Require().NoError(err)
	s.True(containsAction(events, audit.EventPolicyIssued))
	s.True(containsAction(events, audit.EventPolicyClaimed))
}

func (s *EngineSuite) TestStrikeBoundary() {
	s.Run("score equal to strike does not pay", func() {
		p := s.buy(80, 10, 500)
		s.setScore(80)
		err := s.svc.ClaimPayout(s.ctx, alice, p.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
		s.Contains(err.Error(), "strike not breached")
		ok, reason, err := s.svc.IsClaimable(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(ok)
		s.Equal(models.ReasonNotBreached, reason)
	})

	s.Run("score one below strike pays", func() {
		p := s.buy(80, 10, 500)
		s.setScore(79)
		ok, reason, err := s.svc.IsClaimable(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(models.ReasonOK, reason)
		s.NoError(s.svc.ClaimPayout(s.ctx, alice, p.ID))
	})
}

func (s *EngineSuite) TestExpiredPolicyCannotBeClaimed() {
	p := s.buy(80, 10, 1_000)
	s.setScore(0)

	late := requestcontext.WithTime(s.ctx, p.Expiry)
	err := s.svc.ClaimPayout(late, alice, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "policy expired")

	ok, reason, err := s.svc.IsClaimable(late, p.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(models.ReasonExpired, reason)
	s.Equal(models.StatusExpired, s.svc.Status(late, p))
	s.Equal(uint64(1_000), s.insured(), "expiry does not touch the aggregate")

	just := requestcontext.WithTime(s.ctx, p.Expiry.Add(-time.Second))
	s.NoError(s.svc.ClaimPayout(just, alice, p.ID))
}

func (s *EngineSuite) TestInsolventIssuanceChangesNothing() {
	aliceBefore := s.balance(alice)
	_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: poolFunding + 1,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInsolvent))
	s.Equal(aliceBefore, s.balance(alice))
	s.Equal(uint64(poolFunding), s.pooled())
	s.Zero(s.insured())
	_, err = s.svc.GetPolicy(s.ctx, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	exact := s.buy(80, 10, poolFunding)
	s.Equal(domain.PolicyID(1), exact.ID, "failed issuance does not consume an id")
}

func (s *EngineSuite) TestIssuanceValidation() {
	cases := map[string]models.Terms{
		"strike zero":        {SubjectID: subject, StrikeScore: 0, DurationDays: 10, PayoutAmount: 1},
		"strike above scale": {SubjectID: subject, StrikeScore: 101, DurationDays: 10, PayoutAmount: 1},
		"duration zero":      {SubjectID: subject, StrikeScore: 50, DurationDays: 0, PayoutAmount: 1},
		"duration over year": {SubjectID: subject, StrikeScore: 50, DurationDays: 366, PayoutAmount: 1},
		"zero payout":        {SubjectID: subject, StrikeScore: 50, DurationDays: 10, PayoutAmount: 0},
		"unknown subject":    {SubjectID: "compound", StrikeScore: 50, DurationDays: 10, PayoutAmount: 1},
	}
	for name, terms := range cases {
		s.Run(name, func() {
			_, err := s.svc.BuyPolicy(s.ctx, alice, terms)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), err)
		})
	}
	s.Equal(uint64(1_000), s.balance(alice))

	s.Run("anonymous buyer", func() {
		_, err := s.svc.BuyPolicy(s.ctx, "", models.Terms{SubjectID: subject, StrikeScore: 50, DurationDays: 1, PayoutAmount: 1})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *EngineSuite) TestPremiumPullFailureRollsBack() {
	s.Require().NoError(s.assets.Approve(s.ctx, alice, engine, usdc, 5))
	_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "insufficient allowance")
	s.Zero(s.insured())
	s.Equal(uint64(poolFunding), s.pooled())
	_, err = s.claims.OwnerOf(s.ctx, 1)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *EngineSuite) TestTransferredClaimRight() {
	p := s.buy(80, 10, 1_000)
	s.Require().NoError(s.claims.Transfer(s.ctx, alice, bob, p.ID))
	s.setScore(10)

	err := s.svc.ClaimPayout(s.ctx, alice, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden), "the original buyer no longer holds the right")

	s.Require().NoError(s.svc.ClaimPayout(s.ctx, bob, p.ID))
	s.Equal(uint64(1_000), s.balance(bob))

	held, err := s.svc.ListByHolder(s.ctx, bob)
	s.Require().NoError(err)
	s.Empty(held)
}

func (s *EngineSuite) TestReentrancyDuringSettlement() {
	p := s.buy(80, 10, 1_000)
	s.setScore(10)

	var reentry error
	s.assetHook = func(ctx context.Context, to domain.AccountID) error {
		if to == alice {
			reentry = s.svc.ClaimPayout(ctx, alice, p.ID)
		}
		return nil
	}
	s.Require().NoError(s.svc.ClaimPayout(s.ctx, alice, p.ID))
	s.Require().Error(reentry)
	s.Contains(reentry.Error(), "reentrant call into engine rejected")
	s.Equal(uint64(980+1_000), s.balance(alice), "paid exactly once")
}

func (s *EngineSuite) TestReentrancyDuringIssuance() {
	var reentry error
	s.claimHook = func(ctx context.Context, to domain.AccountID, id domain.PolicyID) error {
		_, reentry = s.svc.BuyPolicy(ctx, to, models.Terms{
			SubjectID: subject, StrikeScore: 80, DurationDays: 1, PayoutAmount: 10,
		})
		return nil
	}
	p := s.buy(80, 10, 1_000)
	s.Require().Error(reentry)
	s.True(dErrors.HasCode(reentry, dErrors.CodeInvalidState))

	s.claimHook = func(context.Context, domain.AccountID, domain.PolicyID) error {
		return dErrors.New(dErrors.CodeForbidden, "receiver refused")
	}
	_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	})
	s.Require().Error(err)
	s.Equal(uint64(1_000), s.insured(), "refused mint unwinds the second issuance")
	s.Equal(uint64(poolFunding)+p.Premium, s.pooled())
}

func (s *EngineSuite) TestConcurrentClaimsPayOnce() {
	p := s.buy(80, 10, 1_000)
	s.setScore(10)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.svc.ClaimPayout(s.ctx, alice, p.ID); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, successes)
	s.Equal(uint64(980+1_000), s.balance(alice))
}

func (s *EngineSuite) TestFailedIssuanceKeepsConcurrentTransfers() {
	const carol domain.AccountID = "0xcarol"
	supply := func() uint64 { return s.balance(alice) + s.balance(carol) + s.balance(pool) }
	before := supply()

	transferred := make(chan error, 1)
	s.claimHook = func(context.Context, domain.AccountID, domain.PolicyID) error {
		// Runs outside the issuance, after the premium pull has committed.
		go func() { transferred <- s.assets.Transfer(s.ctx, alice, carol, usdc, 100) }()
		return dErrors.New(dErrors.CodeForbidden, "receiver refused")
	}
	_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	})
	s.Require().Error(err)
	s.Require().NoError(<-transferred)

	s.Equal(uint64(900), s.balance(alice), "premium returned and the transfer kept")
	s.Equal(uint64(100), s.balance(carol))
	s.Equal(uint64(poolFunding), s.balance(pool))
	s.Equal(before, supply(), "no units created or destroyed")
	s.Equal(uint64(poolFunding), s.pooled())
	s.Zero(s.insured())
}

func (s *EngineSuite) TestFailedIssuanceKeepsConcurrentDeposits() {
	s.mint(pool, 500)

	deposited := make(chan error, 1)
	s.claimHook = func(context.Context, domain.AccountID, domain.PolicyID) error {
		go func() {
			_, err := s.vault.DepositPremium(s.ctx, 500)
			deposited <- err
		}()
		return dErrors.New(dErrors.CodeForbidden, "receiver refused")
	}
	_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	})
	s.Require().Error(err)
	s.Require().NoError(<-deposited)

	s.Equal(uint64(poolFunding+500), s.pooled(), "the admin deposit survives the failed issuance")
	s.Equal(uint64(poolFunding+500), s.balance(pool))
	s.Equal(uint64(1_000), s.balance(alice))
}

func (s *EngineSuite) TestIssuanceAndEmergencyWithdrawDoNotDeadlock() {
	const dai domain.AssetID = "dai"
	s.Require().NoError(s.assets.Mint(s.ctx, authority.As(admin), dai, pool, 8))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
				SubjectID: subject, StrikeScore: 80, DurationDays: 1, PayoutAmount: 100,
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			errs <- s.vault.EmergencyWithdraw(s.ctx, authority.As(admin), dai, admin, 1)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}
	got, err := s.assets.BalanceOf(s.ctx, dai, admin)
	s.Require().NoError(err)
	s.Equal(uint64(8), got)
	s.Equal(uint64(800), s.insured())
}

func (s *EngineSuite) TestReads() {
	ok, reason, err := s.svc.IsClaimable(s.ctx, 42)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(models.ReasonNotFound, reason)

	_, err = s.svc.GetPolicy(s.ctx, 42)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	first := s.buy(80, 10, 100)
	second := s.buy(60, 30, 200)
	s.Equal(second.ID, first.ID+1)
	s.Equal(models.StatusActive, s.svc.Status(s.ctx, first))

	held, err := s.svc.ListByHolder(s.ctx, alice)
	s.Require().NoError(err)
	s.Len(held, 2)
	bySubject, err := s.svc.ListBySubject(s.ctx, subject)
	s.Require().NoError(err)
	s.Len(bySubject, 2)
	s.Equal(uint64(300), s.insured())

	quote, err := s.svc.QuotePremium(models.Terms{SubjectID: subject, StrikeScore: 60, DurationDays: 30, PayoutAmount: 200})
	s.Require().NoError(err)
	s.Equal(second.Premium, quote)
}

func containsAction(events []audit.Event, action audit.AuditEvent) bool {
	for _, e := range events {
		if e.Action == string(action) {
			return true
		}
	}
	return false
}
