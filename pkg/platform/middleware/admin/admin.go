// Package admin guards the operator surface with a shared token.
package admin

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"derisk/pkg/domain"
	dErrors "derisk/pkg/domain-errors"
	"derisk/pkg/platform/httputil"
	request "derisk/pkg/platform/middleware/request"
	"derisk/pkg/requestcontext"
)

const HeaderToken = "X-Admin-Token"

var errAdminToken = dErrors.New(dErrors.CodeUnauthorized, "admin token required")

// RequireAdminToken compares X-Admin-Token with a bcrypt hash and lets the
// request act as operator, the account holding the admin role. A missing or
// malformed hash closes the admin surface.
func RequireAdminToken(tokenHash string, operator domain.AccountID, logger *slog.Logger) func(http.Handler) http.Handler {
	hash := []byte(tokenHash)
	if _, err := bcrypt.Cost(hash); err != nil {
		if tokenHash != "" {
			logger.Warn("ADMIN_TOKEN_HASH is not a bcrypt hash; admin surface disabled", "error", err)
		}
		hash = nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token := r.Header.Get(HeaderToken)
			if hash == nil || token == "" || bcrypt.CompareHashAndPassword(hash, []byte(token)) != nil {
				logger.WarnContext(ctx, "admin token rejected",
					"request_id", request.GetRequestID(ctx),
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path,
				)
				httputil.WriteError(w, errAdminToken)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithAccount(ctx, operator)))
		})
	}
}
