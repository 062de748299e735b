package middleware

import (
	"net/http"

	"github.com/better-wallet/webconnect/internal/logger"
	"github.com/google/uuid"
)

// maxRequestIDLength bounds request ids accepted from upstream proxies
const maxRequestIDLength = 128

// RequestID tags each request with an id. An id set by an upstream proxy in
// X-Request-ID is kept, otherwise a UUID is generated. The id is stored in the
// context for logging and echoed in the response header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
