// Package app runs the servers of the process and tears the process down in
// order when a signal arrives or a server fails.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kochabx/portal/log"
	"github.com/kochabx/portal/transport"
)

var (
	ErrAlreadyStarted = errors.New("application already started")
	ErrClosePanic     = errors.New("close function panicked")
)

type Application struct {
	ctx             context.Context
	cancel          context.CancelFunc
	logger          *log.Logger
	shutdownTimeout time.Duration
	closeTimeout    time.Duration
	signals         []os.Signal

	mu      sync.Mutex
	servers []transport.Server
	closers []closer
	started bool
}

type closer struct {
	name    string
	fn      func(context.Context) error
	timeout time.Duration
}

type Option func(*Application)

func WithContext(ctx context.Context) Option {
	return func(app *Application) {
		if ctx != nil {
			app.ctx, app.cancel = context.WithCancel(ctx)
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(app *Application) {
		app.logger = l
	}
}

// WithShutdownTimeout bounds the graceful shutdown of each server.
func WithShutdownTimeout(d time.Duration) Option {
	return func(app *Application) {
		if d > 0 {
			app.shutdownTimeout = d
		}
	}
}

// WithCloseTimeout is the default bound of a close function.
func WithCloseTimeout(d time.Duration) Option {
	return func(app *Application) {
		if d > 0 {
			app.closeTimeout = d
		}
	}
}

func WithSignals(signals ...os.Signal) Option {
	return func(app *Application) {
		if len(signals) > 0 {
			app.signals = append([]os.Signal(nil), signals...)
		}
	}
}

func WithServer(servers ...transport.Server) Option {
	return func(app *Application) {
		for _, s := range servers {
			if s != nil {
				app.servers = append(app.servers, s)
			}
		}
	}
}

// WithClose registers fn to run after the servers stopped. Close functions
// run one after another in registration order, so register consumers before
// the stores they use.
func WithClose(name string, fn func(context.Context) error, timeout time.Duration) Option {
	return func(app *Application) {
		app.addClose(name, fn, timeout)
	}
}

func New(opts ...Option) *Application {
	app := &Application{
		shutdownTimeout: 30 * time.Second,
		closeTimeout:    10 * time.Second,
		signals:         []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT},
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(app)
	}
	app.logger = log.OrGlobal(app.logger).Component("app")
	return app
}

func (app *Application) addClose(name string, fn func(context.Context) error, timeout time.Duration) {
	if fn == nil {
		return
	}
	if timeout <= 0 {
		timeout = app.closeTimeout
	}
	app.closers = append(app.closers, closer{name: name, fn: fn, timeout: timeout})
}

// RegisterClose adds a close function after construction.
func (app *Application) RegisterClose(name string, fn func(context.Context) error, timeout time.Duration) {
	app.mu.Lock()
	defer app.mu.Unlock()
	app.addClose(name, fn, timeout)
}

// Run starts every server and blocks until a signal, Stop, or the first
// server failure. Close functions run in every case.
func (app *Application) Run() error {
	app.mu.Lock()
	if app.started {
		app.mu.Unlock()
		return ErrAlreadyStarted
	}
	app.started = true
	servers := append([]transport.Server(nil), app.servers...)
	app.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, app.signals...)
	defer signal.Stop(sigCh)

	eg, ctx := errgroup.WithContext(app.ctx)
	for _, s := range servers {
		eg.Go(func() error {
			if err := s.Run(); err != nil {
				return err
			}
			// a server that returns on its own takes the process down
			app.cancel()
			return nil
		})
		eg.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), app.shutdownTimeout)
			defer cancel()
			return s.Shutdown(sctx)
		})
	}
	eg.Go(func() error {
		select {
		case sig := <-sigCh:
			app.logger.Info().Str("signal", sig.String()).Msg("shutdown requested")
			app.cancel()
		case <-ctx.Done():
		}
		return nil
	})

	err := eg.Wait()
	app.runClosers()
	if err != nil {
		app.logger.Error().Err(err).Msg("stopped with error")
	} else {
		app.logger.Info().Msg("stopped")
	}
	return err
}

func (app *Application) Stop() {
	app.cancel()
}

func (app *Application) runClosers() {
	app.mu.Lock()
	closers := append([]closer(nil), app.closers...)
	app.mu.Unlock()

	for _, c := range closers {
		if err := app.runCloser(c); err != nil {
			app.logger.Error().Err(err).Str("close", c.name).Msg("close failed")
		}
	}
}

func (app *Application) runCloser(c closer) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrClosePanic, r)
			}
		}()
		done <- c.fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("close %s: %w", c.name, ctx.Err())
	}
}
