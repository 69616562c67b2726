package clients

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryPolicy wraps cenkalti/backoff/v4 with the timeout a given upstream
// call is allotted, so each client method gets consistent transient-error
// handling instead of a hand-rolled sleep loop.
func retryPolicy(ctx context.Context, maxElapsed time.Duration) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 3 * time.Second
	b.MaxElapsedTime = maxElapsed
	return backoff.WithContext(b, ctx)
}

// permanent marks err as non-retryable so backoff.Retry surfaces it on the
// first attempt instead of exhausting the policy.
func permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}
