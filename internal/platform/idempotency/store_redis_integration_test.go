//go:build integration

package idempotency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedisStore(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestLifecycle() {
	ctx := context.Background()

	s.Run("first begin owns the slot", func() {
		rec, started, err := s.store.Begin(ctx, "k1", time.Minute)
		s.Require().NoError(err)
		s.True(started)
		s.Nil(rec)
	})

	s.Run("second begin while pending is a conflict", func() {
		_, started, err := s.store.Begin(ctx, "k1", time.Minute)
		s.False(started)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("completed slot replays the record", func() {
		s.Require().NoError(s.store.Complete(ctx, "k1", Record{Status: 201, Body: []byte(`{"policy_id":"1"}`)}, time.Minute))
		rec, started, err := s.store.Begin(ctx, "k1", time.Minute)
		s.Require().NoError(err)
		s.False(started)
		s.Equal(201, rec.Status)
		s.JSONEq(`{"policy_id":"1"}`, string(rec.Body))
	})

	s.Run("abort leaves completed slots alone", func() {
		s.Require().NoError(s.store.Abort(ctx, "k1"))
		rec, _, err := s.store.Begin(ctx, "k1", time.Minute)
		s.Require().NoError(err)
		s.NotNil(rec)
	})

	s.Run("abort frees a pending slot", func() {
		_, _, err := s.store.Begin(ctx, "k2", time.Minute)
		s.Require().NoError(err)
		s.Require().NoError(s.store.Abort(ctx, "k2"))
		_, started, err := s.store.Begin(ctx, "k2", time.Minute)
		s.Require().NoError(err)
		s.True(started)
	})
}

func (s *RedisStoreSuite) TestSlotExpires() {
	ctx := context.Background()
	_, started, err := s.store.Begin(ctx, "short", 50*time.Millisecond)
	s.Require().NoError(err)
	s.Require().True(started)

	s.Eventually(func() bool {
		_, started, err := s.store.Begin(ctx, "short", time.Minute)
		return err == nil && started
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *RedisStoreSuite) TestConcurrentBeginHasOneOwner() {
	ctx := context.Background()
	const callers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		owners int
	)
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, started, _ := s.store.Begin(ctx, "race", time.Minute)
			if started {
				mu.Lock()
				owners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	s.Equal(1, owners)
}
