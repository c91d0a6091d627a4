package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derisk/internal/policy/models"
	"derisk/pkg/domain"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

func issue(t *testing.T, id domain.PolicyID) *models.Policy {
	t.Helper()
	p, err := models.NewPolicy(id, models.Terms{
		SubjectID: "aave-v3", StrikeScore: 80, DurationDays: 10, PayoutAmount: 1_000,
	}, 20, "0xbuyer", time.Unix(1_700_000_000, 0))
	require.NoError(t, err)
	return p
}

func TestInMemoryStoreRollback(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	g := tx.NewGuard("engine")

	err := g.RunInTx(ctx, func(ctx context.Context) error {
		id, err := st.NextID(ctx)
		if err != nil {
			return err
		}
		if err := st.Create(ctx, issue(t, id)); err != nil {
			return err
		}
		if err := st.SetTotalInsured(ctx, "aave-v3", 1_000); err != nil {
			return err
		}
		return errors.New("premium pull failed")
	})
	require.Error(t, err)

	_, err = st.FindByID(ctx, 1)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	total, err := st.TotalInsured(ctx, "aave-v3")
	require.NoError(t, err)
	assert.Zero(t, total)

	id, err := st.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.PolicyID(1), id, "rolled back allocation is reused")
}

func TestInMemoryStoreUpdate(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	p := issue(t, 7)
	require.NoError(t, st.Create(ctx, p))
	assert.ErrorIs(t, st.Create(ctx, p), sentinel.ErrConflict)

	p.Claimed = true
	got, err := st.FindByID(ctx, 7)
	require.NoError(t, err)
	assert.False(t, got.Claimed, "stored copy is isolated from the caller")

	require.NoError(t, st.Update(ctx, p))
	got, err = st.FindByID(ctx, 7)
	require.NoError(t, err)
	assert.True(t, got.Claimed)

	assert.ErrorIs(t, st.Update(ctx, issue(t, 8)), sentinel.ErrNotFound)

	list, err := st.ListBySubject(ctx, "aave-v3")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.PolicyID(7), list[0].ID)
}
