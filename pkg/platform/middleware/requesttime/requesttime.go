// Package requesttime pins a single "now" per request. Every timestamp a
// lifecycle operation produces (archivedAt, scheduledPurgeAt, audit entries)
// derives from the same instant, and tests override it via
// requestcontext.WithTime.
package requesttime

import (
	"net/http"
	"time"

	"archivist/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
