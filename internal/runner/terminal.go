package runner

import (
	"context"
	"time"
)

// shutdownWriteTimeout bounds the fresh context substituted for a
// terminal-failure write when the job's own context has already been
// cancelled (scheduler Drain). Long enough for one Postgres round trip,
// short enough not to stall shutdown.
const shutdownWriteTimeout = 5 * time.Second

// terminalWriteContext returns a context safe to use for a job's
// terminal-status write. If parent is still live it is returned
// unchanged; if parent has already been cancelled (scheduler shutdown),
// a fresh background context is substituted so the write a runner's
// fail() path performs on its way out is not rejected by the database
// driver for a context it no longer owns.
func terminalWriteContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent.Err() != nil {
		return context.WithTimeout(context.Background(), shutdownWriteTimeout)
	}
	return parent, func() {}
}
