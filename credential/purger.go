package credential

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kochabx/portal/log"
)

// Purger deletes expired credentials on a cron schedule.
type Purger struct {
	store interface {
		PurgeExpired(ctx context.Context) (int64, error)
	}
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   *log.Logger
	onPurge  func(n int64, err error)
}

type PurgerOption func(*Purger)

// WithPurgeTimeout bounds a single purge run.
func WithPurgeTimeout(d time.Duration) PurgerOption {
	return func(p *Purger) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPurgerLogger(l *log.Logger) PurgerOption {
	return func(p *Purger) {
		p.logger = l
	}
}

// WithPurgeHook is called after every scheduled run.
func WithPurgeHook(fn func(n int64, err error)) PurgerOption {
	return func(p *Purger) {
		p.onPurge = fn
	}
}

// NewPurger validates schedule (standard 5 field cron or a descriptor such as
// @hourly) and registers the job. Nothing runs until Start.
func NewPurger(store Store, schedule string, opts ...PurgerOption) (*Purger, error) {
	p := &Purger{store: store, schedule: schedule, timeout: time.Minute}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = log.OrGlobal(p.logger).Component("credential.purger")

	cl := cronLogger{logger: p.logger}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	p.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}
	return p, nil
}

func (p *Purger) Start() {
	p.cron.Start()
	p.logger.Info().Str("schedule", p.schedule).Msg("credential purger started")
}

// Stop waits for a running purge to finish or ctx to end.
func (p *Purger) Stop(ctx context.Context) error {
	done := p.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce purges immediately, outside the schedule.
func (p *Purger) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.store.PurgeExpired(ctx)
}

func (p *Purger) run() {
	n, err := p.RunOnce(context.Background())
	if err != nil {
		p.logger.Error().Err(err).Msg("purge expired credentials")
	} else if n > 0 {
		p.logger.Info().Int64("deleted", n).Msg("purged expired credentials")
	}
	if p.onPurge != nil {
		p.onPurge(n, err)
	}
}

// cronLogger adapts our logger to cron.Logger.
type cronLogger struct {
	logger *log.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
