package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/skyquote/skyquote/internal/services"
	"github.com/skyquote/skyquote/pkg/logger"
)

const (
	defaultSweepSpec         = "@every 10m"
	defaultUsedLinkRetention = 30 * 24 * time.Hour
)

// Cleaner coordinates the background sweeps: expiring stale pilot invitations
// and purging dead magic links. The invitation sweep here is the only place
// invitations move to EXPIRED.
type Cleaner struct {
	invitations *services.InvitationService
	magicLinks  *services.MagicLinkService
	cron        *cron.Cron
	log         *zap.Logger

	schedule      string
	usedRetention time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for the sweep.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithUsedLinkRetention adjusts how long consumed magic links are kept.
func WithUsedLinkRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.usedRetention = retention
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency results in the
// corresponding sweep being skipped.
func NewCleaner(invitations *services.InvitationService, magicLinks *services.MagicLinkService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invitations:   invitations,
		magicLinks:    magicLinks,
		schedule:      defaultSweepSpec,
		usedRetention: defaultUsedLinkRetention,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the sweep with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.invitations == nil && c.magicLinks == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes the sweeps sequentially. Both sweeps are idempotent, so an
// overlapping or repeated run changes nothing.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invitations != nil {
		if _, err := c.invitations.ExpireStale(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.magicLinks != nil {
		if _, err := c.magicLinks.PurgeExpired(ctx, c.usedRetention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
