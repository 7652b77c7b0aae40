package quota

import (
	"context"

	"keepit/internal/apperr"
)

// Counter reports current resource usage. A zero userID counts the whole
// instance.
type Counter interface {
	CountUsers(ctx context.Context) (int, error)
	CountNotes(ctx context.Context, userID int64, templates bool) (int, error)
	CountWebhooks(ctx context.Context, userID int64) (int, error)
	CountAPIKeys(ctx context.Context, userID int64) (int, error)
}

// Gate checks writes against the instance plan before they happen.
type Gate struct {
	cfg     *InstanceConfig
	counter Counter
}

func NewGate(cfg *InstanceConfig, counter Counter) *Gate {
	return &Gate{cfg: cfg, counter: counter}
}

func (g *Gate) Config() *InstanceConfig {
	return g.cfg
}

func (g *Gate) RequireFeature(f Feature) error {
	if !g.cfg.Features.Enabled(f) {
		return apperr.ErrFeatureDisabled.WithMessage("feature '%s' is not enabled for this instance", f)
	}
	return nil
}

// within fails when a limited count has reached its limit.
func within(limit, current int, format string) error {
	if limit == Unlimited || current < limit {
		return nil
	}
	return apperr.ErrQuotaExceeded.WithMessage(format, limit)
}

func (g *Gate) CheckUsers(ctx context.Context) error {
	if g.cfg.Limits.MaxUsers == Unlimited {
		return nil
	}
	n, err := g.counter.CountUsers(ctx)
	if err != nil {
		return err
	}
	return within(g.cfg.Limits.MaxUsers, n, "maximum number of users (%d) reached for this instance")
}

// CheckNotes applies the note limits; templates are not counted.
func (g *Gate) CheckNotes(ctx context.Context, userID int64) error {
	return g.checkPair(ctx, g.cfg.Limits.MaxNotes, g.cfg.Limits.MaxNotesPerUser,
		func(uid int64) (int, error) { return g.counter.CountNotes(ctx, uid, false) },
		userID, "notes")
}

func (g *Gate) CheckTemplates(ctx context.Context, userID int64) error {
	if err := g.RequireFeature(FeatureTemplates); err != nil {
		return err
	}
	return g.checkPair(ctx, g.cfg.Limits.MaxTemplates, g.cfg.Limits.MaxTemplatesPerUser,
		func(uid int64) (int, error) { return g.counter.CountNotes(ctx, uid, true) },
		userID, "templates")
}

func (g *Gate) CheckWebhooks(ctx context.Context, userID int64) error {
	if err := g.RequireFeature(FeatureWebhooks); err != nil {
		return err
	}
	return g.checkPair(ctx, g.cfg.Limits.MaxWebhooks, g.cfg.Limits.MaxWebhooksPerUser,
		func(uid int64) (int, error) { return g.counter.CountWebhooks(ctx, uid) },
		userID, "webhooks")
}

func (g *Gate) CheckAPIKeys(ctx context.Context, userID int64) error {
	if err := g.RequireFeature(FeatureAPIKeys); err != nil {
		return err
	}
	return g.checkPair(ctx, g.cfg.Limits.MaxAPIKeys, g.cfg.Limits.MaxAPIKeysPerUser,
		func(uid int64) (int, error) { return g.counter.CountAPIKeys(ctx, uid) },
		userID, "API keys")
}

// checkPair enforces an instance-wide and a per-user limit independently.
func (g *Gate) checkPair(ctx context.Context, total, perUser int, count func(int64) (int, error), userID int64, what string) error {
	if total != Unlimited {
		n, err := count(0)
		if err != nil {
			return err
		}
		if err := within(total, n, "maximum number of "+what+" (%d) reached for this instance"); err != nil {
			return err
		}
	}
	if perUser != Unlimited {
		n, err := count(userID)
		if err != nil {
			return err
		}
		if err := within(perUser, n, "maximum number of "+what+" per user (%d) reached"); err != nil {
			return err
		}
	}
	return nil
}
