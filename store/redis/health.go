package redis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kochabx/portal/log"
)

// Pinger is the part of a client the checker needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker pings periodically and reports transitions between healthy
// and unhealthy to its listeners.
type HealthChecker struct {
	client   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	mu         sync.RWMutex
	lastStatus *HealthStatus
	listeners  []func(healthy bool)
	running    atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

type HealthStatus struct {
	Healthy   bool
	LastCheck time.Time
	Latency   time.Duration
	Error     string
}

func NewHealthChecker(client Pinger, interval time.Duration, logger *log.Logger) *HealthChecker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthChecker{
		client:   client,
		interval: interval,
		timeout:  2 * time.Second,
		logger:   log.OrGlobal(logger),
	}
}

// OnChange registers fn to be called whenever the health state flips. The
// first check always counts as a change.
func (hc *HealthChecker) OnChange(fn func(healthy bool)) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.listeners = append(hc.listeners, fn)
}

// Start runs one check synchronously and then checks every interval.
func (hc *HealthChecker) Start() {
	if !hc.running.CompareAndSwap(false, true) {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	hc.cancel = cancel
	hc.done = make(chan struct{})

	hc.Check(ctx)
	go hc.run(ctx)
	hc.logger.Debug().Dur("interval", hc.interval).Msg("redis health checker started")
}

func (hc *HealthChecker) Stop() {
	if !hc.running.CompareAndSwap(true, false) {
		return
	}
	hc.cancel()
	<-hc.done
	hc.logger.Debug().Msg("redis health checker stopped")
}

func (hc *HealthChecker) run(ctx context.Context) {
	defer close(hc.done)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// Check pings once, records the result and notifies listeners on a change.
func (hc *HealthChecker) Check(ctx context.Context) *HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	start := time.Now()
	err := hc.client.Ping(ctx)
	status := &HealthStatus{LastCheck: start, Latency: time.Since(start), Healthy: err == nil}
	if err != nil {
		status.Error = err.Error()
	}

	hc.record(status, err)
	s := *status
	return &s
}

// Report records a failure observed outside the checker, e.g. by a command
// that timed out, so the next successful Check counts as a recovery.
func (hc *HealthChecker) Report(err error) {
	if err == nil {
		return
	}
	hc.record(&HealthStatus{LastCheck: time.Now(), Error: err.Error()}, err)
}

func (hc *HealthChecker) record(status *HealthStatus, err error) {
	hc.mu.Lock()
	changed := hc.lastStatus == nil || hc.lastStatus.Healthy != status.Healthy
	hc.lastStatus = status
	listeners := hc.listeners
	hc.mu.Unlock()

	if !changed {
		return
	}
	if err != nil {
		hc.logger.Warn().Err(err).Dur("latency", status.Latency).Msg("redis unhealthy")
	} else {
		hc.logger.Info().Dur("latency", status.Latency).Msg("redis healthy")
	}
	for _, fn := range listeners {
		fn(status.Healthy)
	}
}

func (hc *HealthChecker) GetStatus() *HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	if hc.lastStatus == nil {
		return &HealthStatus{Error: "not checked yet"}
	}
	s := *hc.lastStatus
	return &s
}

func (hc *HealthChecker) IsHealthy() bool {
	return hc.GetStatus().Healthy
}
