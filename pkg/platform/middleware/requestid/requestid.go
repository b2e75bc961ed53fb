// Package requestid assigns a correlation ID to every request. Downstream
// audit lines and error logs carry the same ID so a single lifecycle
// operation can be traced end to end.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"archivist/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware reuses a caller-supplied X-Request-ID when present, otherwise
// generates one, and exposes it on both the context and the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
