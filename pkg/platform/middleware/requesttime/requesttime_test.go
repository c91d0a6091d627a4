package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"derisk/pkg/requestcontext"
)

func TestMiddlewarePinsOneInstant(t *testing.T) {
	fixed := time.Date(2026, 7, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	calls := 0
	clock := func() time.Time { calls++; return fixed }

	var seen []time.Time
	h := Middleware(clock)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, requestcontext.Now(r.Context()), requestcontext.Now(r.Context()))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1, calls)
	assert.Equal(t, seen[0], seen[1])
	assert.True(t, fixed.Equal(seen[0]))
	assert.Equal(t, time.UTC, seen[0].Location())
}
