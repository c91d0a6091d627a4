package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"derisk/pkg/platform/audit/store/postgres"
)

// Outbox is the slice of the postgres audit store the relay needs.
type Outbox interface {
	FetchUnpublished(ctx context.Context, limit int) ([]postgres.OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Producer delivers one record to the event stream.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Worker relays outbox rows to the event stream. A row is marked published
// only after the producer acknowledged it, so delivery is at-least-once.
type Worker struct {
	outbox   Outbox
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewWorker(outbox Outbox, producer Producer, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		producer: producer,
		logger:   logger,
		interval: time.Second,
		batch:    100,
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RelayOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "outbox relay failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were delivered.
func (w *Worker) RelayOnce(ctx context.Context) (int, error) {
	entries, err := w.outbox.FetchUnpublished(ctx, w.batch)
	if err != nil {
		return 0, err
	}
	delivered := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		if err := w.producer.Produce(ctx, e.Key, e.Payload); err != nil {
			// Keep ordering per key: stop at the first failure and retry next tick.
			if markErr := w.outbox.MarkPublished(ctx, delivered); markErr != nil {
				return 0, markErr
			}
			return len(delivered), err
		}
		delivered = append(delivered, e.ID)
	}
	if err := w.outbox.MarkPublished(ctx, delivered); err != nil {
		return 0, err
	}
	return len(delivered), nil
}
