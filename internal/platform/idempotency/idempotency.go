// Package idempotency remembers the outcome of keyed submissions so a client
// retrying with the same Idempotency-Key gets the original response instead of
// a second state change.
package idempotency

import (
	"context"
	"strings"
	"time"

	dErrors "derisk/pkg/domain-errors"
)

// Record is a completed response.
type Record struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Store holds one slot per key. A slot is either pending (Begin succeeded,
// Complete not called yet) or completed.
type Store interface {
	// Begin claims the slot. It returns started=true if the caller now owns it,
	// or the completed record if one exists. A pending slot owned by someone
	// else is reported as a conflict.
	Begin(ctx context.Context, key string, ttl time.Duration) (rec *Record, started bool, err error)
	Complete(ctx context.Context, key string, rec Record, ttl time.Duration) error
	// Abort releases a pending slot so the client may retry.
	Abort(ctx context.Context, key string) error
}

// ErrInFlight is the error returned while an identical submission is running.
var ErrInFlight = dErrors.New(dErrors.CodeConflict, "a request with this idempotency key is in progress")

const maxKeyLength = 128

// Key scopes a client key to the caller and endpoint.
func Key(account, endpoint, clientKey string) (string, error) {
	clientKey = strings.TrimSpace(clientKey)
	if len(clientKey) > maxKeyLength {
		return "", dErrors.Newf(dErrors.CodeValidation, "Idempotency-Key must be at most %d characters", maxKeyLength)
	}
	return "idem:" + account + ":" + endpoint + ":" + clientKey, nil
}
