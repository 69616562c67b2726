// Package quota is the pre-flight admission check in front of job
// creation, wrapping usage.Accountant.Check. Session start
// (/voice-chat, /video-chat) does not go through it.
package quota

import (
	"context"

	"github.com/avatarplatform/mediator/internal/apperr"
	"github.com/avatarplatform/mediator/internal/models"
	"github.com/avatarplatform/mediator/internal/usage"
)

// Gate denies a request before any row is created when the owner has
// exhausted the relevant monthly resource.
type Gate struct {
	accountant *usage.Accountant
}

func New(accountant *usage.Accountant) *Gate {
	return &Gate{accountant: accountant}
}

// Admit returns nil if owner has room for requested units of resource, or
// an *apperr.Error of KindQuotaExceeded otherwise.
func (g *Gate) Admit(ctx context.Context, owner string, resource models.UsageResource, requested float64) error {
	result, err := g.accountant.Check(ctx, owner, resource, requested)
	if err != nil {
		return err
	}
	if !result.OK {
		return apperr.Quota(string(resource), result.Used, result.Limit)
	}
	return nil
}
