package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derisk/internal/registry/models"
	"derisk/pkg/platform/sentinel"
	"derisk/pkg/platform/tx"
)

func TestInMemoryStoreRollback(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	subject, err := models.NewSubject("aave-v3", 90, time.Unix(0, 0))
	require.NoError(t, err)
	require.NoError(t, st.Create(ctx, subject))

	g := tx.NewGuard("registry")
	err = g.RunInTx(ctx, func(ctx context.Context) error {
		updated := subject.Clone()
		updated.Score = 10
		if err := st.Update(ctx, updated); err != nil {
			return err
		}
		if err := st.AppendChange(ctx, models.ScoreChange{SubjectID: subject.ID, OldScore: 90, NewScore: 10}); err != nil {
			return err
		}
		return errors.New("verifier unavailable")
	})
	require.Error(t, err)

	got, err := st.FindByID(ctx, subject.ID)
	require.NoError(t, err)
	assert.Equal(t, uint8(90), got.Score)
	changes, err := st.ListChanges(ctx, subject.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestInMemoryStoreConflictAndMissing(t *testing.T) {
	st := NewInMemoryStore()
	ctx := context.Background()
	subject, err := models.NewSubject("aave-v3", 90, time.Unix(0, 0))
	require.NoError(t, err)

	require.NoError(t, st.Create(ctx, subject))
	assert.ErrorIs(t, st.Create(ctx, subject), sentinel.ErrConflict)

	_, err = st.FindByID(ctx, "compound")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}
