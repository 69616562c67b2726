package apperr

import "time"

// IsRetryableHTTPStatus classifies upstream HTTP responses that are worth
// retrying within a single runner's retry policy. A 404 from the video
// poll endpoint is deliberately NOT included here: spec treats it as
// transient-but-not-an-error, handled by the poller directly.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryableConnErr classifies connection-level failures (reset, timeout,
// empty body) as retryable. Callers pass bodyLen == -1 when the response
// was never read.
func IsRetryableConnErr(err error, bodyLen int) bool {
	if err != nil {
		return true
	}
	return bodyLen == 0
}

// ExponentialBackoff computes a deterministic capped backoff duration,
// for callers that need a duration value rather than a retrying client.
// Neither the inter-chunk pacing delay nor the video poller uses it: both
// run on fixed intervals.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
