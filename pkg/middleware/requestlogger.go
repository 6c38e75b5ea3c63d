package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/LevelUp/pkg/logger"
)

// UserHeader is set by the gateway to the authenticated user's id.
const UserHeader = "X-User-ID"

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, user_id and the active trace and span ids. Mount it after
// RequestLogging and Tracing so those values are already present.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if userID := r.Header.Get(UserHeader); userID != "" {
				ctx = logger.WithUserID(ctx, userID)
			}
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
