package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"derisk/internal/authority"
	"derisk/internal/policy/models"
	"derisk/internal/policy/service/mocks"
	"derisk/internal/policy/store"
	vaultmodels "derisk/internal/vault/models"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/requestcontext"
)

// SettlementOrderSuite pins the ordering of settlement side effects with
// mocked collaborators.
type SettlementOrderSuite struct {
	suite.Suite
	ctx      context.Context
	ctrl     *gomock.Controller
	registry *mocks.MockRegistry
	vault    *mocks.MockVault
	assets   *mocks.MockAssets
	claims   *mocks.MockClaimTokens
	store    *store.InMemoryStore
	svc      *Service
}

func TestSettlementOrderSuite(t *testing.T) {
	suite.Run(t, new(SettlementOrderSuite))
}

func (s *SettlementOrderSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), issuedAt)
	s.ctrl = gomock.NewController(s.T())
	s.registry = mocks.NewMockRegistry(s.ctrl)
	s.vault = mocks.NewMockVault(s.ctrl)
	s.assets = mocks.NewMockAssets(s.ctrl)
	s.claims = mocks.NewMockClaimTokens(s.ctrl)
	s.store = store.NewInMemoryStore()
	s.svc = New(s.store, s.registry, s.vault, s.assets, s.claims, Config{Account: engine, MinPremium: 1})

	s.vault.EXPECT().Account().Return(pool).AnyTimes()
	s.vault.EXPECT().PoolAsset().Return(usdc).AnyTimes()
}

func (s *SettlementOrderSuite) TearDownTest() {
	s.ctrl.Finish()
}

// seed stores an unclaimed policy directly, bypassing issuance.
func (s *SettlementOrderSuite) seed() *models.Policy {
	p, err := models.NewPolicy(1, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	}, 20, alice, issuedAt)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, p))
	s.Require().NoError(s.store.SetTotalInsured(s.ctx, subject, 1_000))
	return p
}

func (s *SettlementOrderSuite) TestBookkeepingPrecedesExternalCalls() {
	p := s.seed()
	s.claims.EXPECT().OwnerOf(gomock.Any(), p.ID).Return(alice, nil)
	s.registry.EXPECT().GetScore(gomock.Any(), subject).Return(uint8(50), nil)

	gomock.InOrder(
		s.claims.EXPECT().Burn(gomock.Any(), authority.As(engine), p.ID).
			DoAndReturn(func(ctx context.Context, _ authority.Principal, id domain.PolicyID) error {
				stored, err := s.store.FindByID(ctx, id)
				s.Require().NoError(err)
				s.True(stored.Claimed, "claimed is persisted before the burn")
				total, err := s.store.TotalInsured(ctx, subject)
				s.Require().NoError(err)
				s.Zero(total)
				return nil
			}),
		s.vault.EXPECT().WithdrawForPayout(gomock.Any(), authority.As(engine), alice, uint64(1_000)).Return(nil),
	)

	s.Require().NoError(s.svc.ClaimPayout(s.ctx, alice, p.ID))
}

func (s *SettlementOrderSuite) TestPayoutFailureRestoresBookkeeping() {
	p := s.seed()
	s.claims.EXPECT().OwnerOf(gomock.Any(), p.ID).Return(alice, nil)
	s.registry.EXPECT().GetScore(gomock.Any(), subject).Return(uint8(50), nil)
	s.claims.EXPECT().Burn(gomock.Any(), gomock.Any(), p.ID).Return(nil)
	s.vault.EXPECT().WithdrawForPayout(gomock.Any(), gomock.Any(), alice, uint64(1_000)).
		Return(dErrors.New(dErrors.CodeInsolvent, "insufficient pooled assets"))

	err := s.svc.ClaimPayout(s.ctx, alice, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInsolvent))

	stored, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.False(stored.Claimed)
	total, err := s.store.TotalInsured(s.ctx, subject)
	s.Require().NoError(err)
	s.Equal(uint64(1_000), total)
}

func (s *SettlementOrderSuite) TestUnavailableSubject() {
	p := s.seed()
	s.registry.EXPECT().GetScore(gomock.Any(), subject).
		Return(uint8(0), dErrors.New(dErrors.CodeNotFound, "subject not registered")).Times(2)

	ok, reason, err := s.svc.IsClaimable(s.ctx, p.ID)
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(models.ReasonSubjectUnavailable, reason)

	s.claims.EXPECT().OwnerOf(gomock.Any(), p.ID).Return(alice, nil)
	err = s.svc.ClaimPayout(s.ctx, alice, p.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	s.Contains(err.Error(), "subject unavailable")
}

func (s *SettlementOrderSuite) TestIssuanceOrder() {
	s.registry.EXPECT().GetScore(gomock.Any(), subject).Return(uint8(95), nil)
	gomock.InOrder(
		s.vault.EXPECT().Reserve(gomock.Any()).Return(nil),
		s.vault.EXPECT().Snapshot(gomock.Any()).Return(vaultmodels.Ledger{TotalAssets: 5_000}, nil),
		s.assets.EXPECT().TransferFrom(gomock.Any(), engine, alice, pool, usdc, uint64(20)).Return(nil),
		s.vault.EXPECT().DepositPremium(gomock.Any(), uint64(20)).Return(uint64(20), nil),
		s.claims.EXPECT().Mint(gomock.Any(), authority.As(engine), alice, domain.PolicyID(1)).Return(nil),
	)

	p, err := s.svc.BuyPolicy(s.ctx, alice, models.Terms{
		SubjectID: subject, StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	})
	s.Require().NoError(err)
	s.Equal(issuedAt.Add(240*time.Hour), p.Expiry)
}
