// Package usage tracks per-owner monthly resource accumulators with a
// read-modify-write counter pattern applied to a Postgres row instead of
// an in-memory map.
package usage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
)

// CheckResult is the pre-image of a usage row as of the Check call, used
// by the caller to decide whether to proceed and, if so, what to Commit.
type CheckResult struct {
	OK     bool
	Used   float64
	Limit  float64
}

// Accountant reads and increments UsageCounter rows. It intentionally does
// not serialize Check+Commit across concurrent jobs for the same owner: a
// brief over-count under contention is an accepted, documented race, not a
// bug to fix with row locking.
type Accountant struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(pool *pgxpool.Pool, log *zap.Logger) *Accountant {
	return &Accountant{pool: pool, log: log}
}

// Check reads the owner's counter for resource and reports whether
// used+requested would stay within limit. A missing row is treated as
// used=0 with no configured limit (blocked), matching "rows seeded at
// user creation" — Check on an unseeded owner always returns over.
func (a *Accountant) Check(ctx context.Context, owner string, resource models.UsageResource, requested float64) (CheckResult, error) {
	row := a.pool.QueryRow(ctx,
		`SELECT used, "limit" FROM usage_counters WHERE owner_id=$1 AND resource=$2`, owner, string(resource))

	var used, limit float64
	if err := row.Scan(&used, &limit); err != nil {
		if err == pgx.ErrNoRows {
			return CheckResult{OK: false, Used: 0, Limit: 0}, nil
		}
		return CheckResult{}, apperr.New(apperr.KindStoreError, fmt.Errorf("usage: check: %w", err))
	}
	return CheckResult{OK: used+requested <= limit, Used: used, Limit: limit}, nil
}

// Commit adds amount to the owner's resource counter. Persistence
// failures are logged at Warn and swallowed: a failed commit never fails
// the job whose terminal event produced it.
func (a *Accountant) Commit(ctx context.Context, owner string, resource models.UsageResource, amount float64) {
	_, err := a.pool.Exec(ctx,
		`UPDATE usage_counters SET used = used + $3 WHERE owner_id=$1 AND resource=$2`,
		owner, string(resource), amount)
	if err != nil {
		a.log.Warn("usage: commit failed",
			zap.String("owner", owner), zap.String("resource", string(resource)),
			zap.Float64("amount", amount), zap.Error(err))
	}
}
