package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dev-emon1/shoppers-link/pkg/logger"
)

// RequestLogger stores a logger carrying correlation_id, owner_id, trace_id and
// span_id in the request context, plus a guest flag once an owner is known.
// Mount it after RequestLogging, Tracing and Identify.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			l := logger.WithContext(ctx, base)
			if o, ok := OwnerFromContext(ctx); ok {
				l = l.With(slog.Bool("guest", o.Guest()))
			}
			next.ServeHTTP(w, r.WithContext(logger.NewContext(ctx, l)))
		})
	}
}
