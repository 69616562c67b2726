package apikey

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Limiter enforces a per-key request rate, keyed by (key id, endpoint
// bucket), using ulule/limiter/v3's in-process memory store — adequate
// for a single-node deployment, mirroring the scheduler's in-memory-only
// non-goal for cross-restart durability.
type Limiter struct {
	lim *limiter.Limiter
}

// NewLimiter builds a Limiter enforcing rate (e.g. "60-M" for 60/minute).
func NewLimiter(rate string) (*Limiter, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, err
	}
	return &Limiter{lim: limiter.New(memory.NewStore(), r)}, nil
}

// ctxKeyKey identifies the verified API key in the request context.
type ctxKeyKey struct{}

// WithKey attaches a verified key to ctx, for downstream handlers and the
// rate-limit middleware to read via KeyFromContext.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKeyKey{}, key)
}

func KeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyKey{}).(string)
	return v, ok
}

// Middleware rejects requests exceeding the configured rate for the
// verified key's (id, route) bucket with 429 and standard rate-limit
// headers. Requests with no verified key in context bypass limiting;
// callers compose this after an auth middleware that sets the key.
func (l *Limiter) Middleware(bucket string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			keyID, ok := KeyFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			lctx, err := l.lim.Get(r.Context(), keyID+":"+bucket)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
			if lctx.Reached {
				retry := time.Until(time.Unix(lctx.Reset, 0))
				if retry < 0 {
					retry = 0
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
