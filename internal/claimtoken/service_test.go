package claimtoken

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"

	"derisk/internal/authority"
	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
)

const (
	engine domain.AccountID = "0xengine"
	alice  domain.AccountID = "0xalice"
	bob    domain.AccountID = "0xbob"
)

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	roles *authority.Table
	store *InMemoryStore
	svc   *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.roles = authority.NewTable()
	s.roles.Grant(authority.RoleEngine, engine)
	s.store = NewInMemoryStore()
	s.svc = New(s.store, s.roles)
}

func (s *ServiceSuite) TestMintAndBurn() {
	s.Run("only the engine mints", func() {
		err := s.svc.Mint(s.ctx, authority.As(alice), alice, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("one unit per policy id", func() {
		s.Require().NoError(s.svc.Mint(s.ctx, authority.As(engine), alice, 1))
		err := s.svc.Mint(s.ctx, authority.As(engine), bob, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))

		owner, err := s.svc.OwnerOf(s.ctx, 1)
		s.Require().NoError(err)
		s.Equal(alice, owner)
	})

	s.Run("burn destroys the unit", func() {
		s.Require().NoError(s.svc.Burn(s.ctx, authority.As(engine), 1))
		bal, err := s.svc.BalanceOf(s.ctx, alice, 1)
		s.Require().NoError(err)
		s.Zero(bal)

		err = s.svc.Burn(s.ctx, authority.As(engine), 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestTransfer() {
	s.Require().NoError(s.svc.Mint(s.ctx, authority.As(engine), alice, 7))

	s.Run("non-holder cannot transfer", func() {
		err := s.svc.Transfer(s.ctx, bob, bob, 7)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("holder hands the right over", func() {
		s.Require().NoError(s.svc.Transfer(s.ctx, alice, bob, 7))
		bal, err := s.svc.BalanceOf(s.ctx, bob, 7)
		s.Require().NoError(err)
		s.Equal(uint64(1), bal)

		ids, err := s.svc.TokensOf(s.ctx, alice)
		s.Require().NoError(err)
		s.Empty(ids)
	})

	s.Run("rejecting receiver reverts the transfer", func() {
		svc := New(s.store, s.roles, WithHook(func(context.Context, domain.AccountID, domain.PolicyID) error {
			return errors.New("not accepted")
		}))
		err := svc.Transfer(s.ctx, bob, alice, 7)
		s.Error(err)
		owner, err := svc.OwnerOf(s.ctx, 7)
		s.Require().NoError(err)
		s.Equal(bob, owner)
	})
}
