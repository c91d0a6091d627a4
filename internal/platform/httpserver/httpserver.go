// Package httpserver builds the listener for the settlement API.
package httpserver

import (
	"log/slog"
	"net/http"
	"time"
)

// maxHeaderBytes is ample for a bearer token plus idempotency key.
const maxHeaderBytes = 64 << 10

type Option func(*http.Server)

// WithWriteTimeout bounds how long a handler may take to answer. Claims wait
// on the ledger guards, so this must stay above TX_TIMEOUT.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *http.Server) {
		if d > 0 {
			s.WriteTimeout = d
		}
	}
}

// New returns a server whose internal errors (TLS handshakes, panics in
// hijacked connections) go to logger instead of the standard log package.
func New(addr string, handler http.Handler, logger *slog.Logger, opts ...Option) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    maxHeaderBytes,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}
