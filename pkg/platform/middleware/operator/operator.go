// Package operator extracts the verified operator identity from requests.
//
// Authentication and role authorization live in the platform gateway; by the
// time a request reaches this service the gateway has validated the session
// and forwards the acting operator in X-Operator-ID. This middleware parses
// the header into a typed ID and rejects requests without one, since every
// lifecycle transition must be attributable to an operator.
package operator

import (
	"log/slog"
	"net/http"

	id "archivist/pkg/domain"
	"archivist/pkg/requestcontext"
)

const Header = "X-Operator-ID"

// Middleware parses X-Operator-ID into the context. Requests without a
// valid operator ID are rejected with 401.
func Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			operatorID, err := id.ParseOperatorID(r.Header.Get(Header))
			if err != nil {
				logger.WarnContext(ctx, "missing or invalid operator id",
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"operator identity required"}`))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithOperatorID(ctx, operatorID)))
		})
	}
}
