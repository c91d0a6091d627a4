package idempotency

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"derisk/pkg/platform/httputil"
	"derisk/pkg/requestcontext"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass through untouched. Server errors release
// the slot so the client can retry; everything else is remembered for ttl.
func Middleware(store Store, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			key, err := Key(requestcontext.Account(ctx).String(), r.Method+" "+r.URL.Path, clientKey)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			rec, started, err := store.Begin(ctx, key, ttl)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			if !started {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(rec.Status)
				_, _ = w.Write(rec.Body)
				return
			}

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			defer func() {
				if p := recover(); p != nil {
					if err := store.Abort(context.WithoutCancel(ctx), key); err != nil {
						logger.WarnContext(ctx, "failed to release idempotency slot", "error", err)
					}
					panic(p)
				}
			}()
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				if err := store.Abort(ctx, key); err != nil {
					logger.WarnContext(ctx, "failed to release idempotency slot", "error", err)
				}
				return
			}
			if err := store.Complete(ctx, key, Record{Status: status, Body: body.Bytes()}, ttl); err != nil {
				logger.WarnContext(ctx, "failed to store idempotent response",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
			}
		})
	}
}
