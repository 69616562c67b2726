package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apikey"
)

type ownerCtxKey struct{}

// ownerFromContext returns the API key's owner id, set by
// authenticateKey.
func ownerFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ownerCtxKey{}).(string)
	return v, ok
}

// authenticateKey verifies the bearer API key on /api routes and, on
// success, attaches the owner id and the key id (for rate-limit
// bucketing) to the request context. Keys are presented as
// "<prefix>_<secret>".
func (s *Server) authenticateKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		prefix, secret, ok := strings.Cut(raw, "_")
		if raw == "" || !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed API key")
			return
		}

		key, err := s.apiKeys.Verify(r.Context(), prefix, secret)
		if err != nil {
			if err == apikey.ErrInvalidKey {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}
			s.log.Warn("httpapi: key verify failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal", "key verification failed")
			return
		}

		ctx := context.WithValue(r.Context(), ownerCtxKey{}, key.OwnerID)
		ctx = apikey.WithKey(ctx, key.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// rateLimit applies the per-key, per-endpoint-bucket ledger to a route. A
// nil limiter (no-op deployment) passes every request through unchanged.
func (s *Server) rateLimit(bucket string) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limiter.Middleware(bucket)
}
