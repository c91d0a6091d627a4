// Package requesttime pins one "now" per request, so the expiry check of a
// claim and the audit record written for it agree on the time.
package requesttime

import (
	"net/http"
	"time"

	"derisk/pkg/requestcontext"
)

// Middleware stamps each request with now(), in UTC. A nil clock uses time.Now.
func Middleware(now func() time.Time) func(http.Handler) http.Handler {
	if now == nil {
		now = time.Now
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
