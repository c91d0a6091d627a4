package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"derisk/pkg/platform/audit/store/postgres"
)

type fakeOutbox struct {
	entries   []postgres.OutboxEntry
	published []uuid.UUID
}

func (f *fakeOutbox) FetchUnpublished(_ context.Context, limit int) ([]postgres.OutboxEntry, error) {
	return f.entries[:min(limit, len(f.entries))], nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.published = append(f.published, ids...)
	return nil
}

type fakeProducer struct {
	failOn string
	keys   []string
}

func (f *fakeProducer) Produce(_ context.Context, key string, _ []byte) error {
	if key == f.failOn {
		return errors.New("broker unavailable")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestRelayOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	entries := []postgres.OutboxEntry{
		{ID: uuid.New(), Key: "aave-v3", Payload: []byte(`{}`)},
		{ID: uuid.New(), Key: "compound", Payload: []byte(`{}`)},
		{ID: uuid.New(), Key: "aave-v3", Payload: []byte(`{}`)},
	}

	t.Run("delivers and marks every entry", func(t *testing.T) {
		outbox := &fakeOutbox{entries: entries}
		producer := &fakeProducer{}
		n, err := NewWorker(outbox, producer, logger).RelayOnce(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []string{"aave-v3", "compound", "aave-v3"}, producer.keys)
		assert.Len(t, outbox.published, 3)
	})

	t.Run("stops at the first failure and marks only delivered rows", func(t *testing.T) {
		outbox := &fakeOutbox{entries: entries}
		producer := &fakeProducer{failOn: "compound"}
		n, err := NewWorker(outbox, producer, logger).RelayOnce(context.Background())
		require.Error(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, []uuid.UUID{entries[0].ID}, outbox.published)
	})
}
