// Package daemon implements the timer daemon and the audio host.
package daemon

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/api"
	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
)

// TimerConfig holds timer daemon configuration.
type TimerConfig struct {
	RecoverRetryInterval time.Duration // How often to retry a recovery that hit a store error
}

// DefaultTimerConfig returns default timer daemon configuration.
func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		RecoverRetryInterval: 5 * time.Second,
	}
}

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

// TimerDaemon hosts the timer state machine. Every state machine operation
// runs on the Run goroutine, so operations never interleave.
type TimerDaemon struct {
	config    TimerConfig
	timer     *usecase.TimerManager
	records   *usecase.Records
	scheduler domain.WakeScheduler
	badge     domain.ProgressIndicator
	registry  domain.DaemonRegistry
	daemon    domain.Daemon
	requests  chan request
	stopped   chan struct{}
	logger    *zap.Logger
}

// NewTimerDaemon creates a new timer daemon.
func NewTimerDaemon(
	config TimerConfig,
	timer *usecase.TimerManager,
	records *usecase.Records,
	scheduler domain.WakeScheduler,
	badge domain.ProgressIndicator,
	registry domain.DaemonRegistry,
	daemon domain.Daemon,
	logger *zap.Logger,
) *TimerDaemon {
	return &TimerDaemon{
		config:    config,
		timer:     timer,
		records:   records,
		scheduler: scheduler,
		badge:     badge,
		registry:  registry,
		daemon:    daemon,
		requests:  make(chan request),
		stopped:   make(chan struct{}),
		logger:    logger,
	}
}

// Run starts the timer daemon loop.
// This blocks until context is canceled.
func (d *TimerDaemon) Run(ctx context.Context) error {
	defer close(d.stopped)

	// Register ourselves in the registry
	if err := d.registry.Register(d.daemon); err != nil {
		d.logger.Error("failed to register timer daemon", zap.Error(err))
		return err
	}
	defer func() {
		if err := d.registry.Unregister(domain.RoleTimer, d.daemon.PID); err != nil {
			d.logger.Warn("failed to unregister timer daemon", zap.Error(err))
		}
	}()

	d.logger.Info("timer daemon started",
		zap.Int("pid", d.daemon.PID),
		zap.String("version", d.daemon.AppVersion))

	// Entry action: bring the scheduler back in line with the stored record.
	recovered := d.recover(ctx)

	retryTicker := time.NewTicker(d.config.RecoverRetryInterval)
	defer retryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("timer daemon stopping")
			return ctx.Err()

		case name := <-d.scheduler.Fires():
			d.handleFire(ctx, name)

		case req := <-d.requests:
			req.done <- req.fn(ctx)

		case <-retryTicker.C:
			if !recovered {
				recovered = d.recover(ctx)
			}
		}
	}
}

// Start begins a session on the daemon loop.
func (d *TimerDaemon) Start(ctx context.Context, kind domain.TimerStatus) (domain.TimerState, error) {
	var state domain.TimerState
	err := d.submit(ctx, func(ctx context.Context) error {
		if err := d.timer.Start(ctx, kind); err != nil {
			return err
		}
		var err error
		state, err = d.timer.State(ctx)
		return err
	})
	return state, err
}

// Stop forces the timer to idle on the daemon loop.
func (d *TimerDaemon) Stop(ctx context.Context) (domain.TimerState, error) {
	err := d.submit(ctx, func(ctx context.Context) error {
		if err := d.timer.Stop(ctx); err != nil {
			return err
		}
		d.logger.Info("session stopped")
		return nil
	})
	if err != nil {
		return domain.TimerState{}, err
	}
	return domain.IdleState(), nil
}

// Status reports the stored timer, the badge and the completed count.
func (d *TimerDaemon) Status(ctx context.Context) (domain.StatusReport, error) {
	var report domain.StatusReport
	err := d.submit(ctx, func(ctx context.Context) error {
		state, err := d.records.TimerState(ctx)
		if err != nil {
			return err
		}
		stats, err := d.records.Stats(ctx)
		if err != nil && !errors.Is(err, domain.ErrMalformedRecord) {
			return err
		}
		report = domain.StatusReport{
			State:             state,
			Badge:             d.badge.Text(),
			SessionsCompleted: stats.SessionsCompleted,
			PID:               d.daemon.PID,
			Version:           d.daemon.AppVersion,
		}
		if remaining := state.Remaining(d.timer.Now()); remaining > 0 {
			report.RemainingMs = remaining.Milliseconds()
		}
		return nil
	})
	return report, err
}

// TestSound plays the completion gong. It does not touch timer state, so it
// runs on the caller's goroutine.
func (d *TimerDaemon) TestSound(ctx context.Context) error {
	select {
	case <-d.stopped:
		return domain.ErrDaemonNotRunning
	default:
	}
	d.timer.PlayAudio(ctx)
	return nil
}

func (d *TimerDaemon) submit(ctx context.Context, fn func(ctx context.Context) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case d.requests <- req:
	case <-d.stopped:
		return domain.ErrDaemonNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *TimerDaemon) handleFire(ctx context.Context, name string) {
	if name != usecase.AlarmName {
		d.logger.Warn("unknown alarm fired, disarming", zap.String("name", name))
		d.scheduler.Disarm(name)
		return
	}
	if err := d.timer.Tick(ctx); err != nil {
		d.logger.Error("tick failed, retrying on next wake-up", zap.Error(err))
	}
}

// recover initializes missing records and runs the restart recovery.
// Returns false when a store error means it has to be retried.
func (d *TimerDaemon) recover(ctx context.Context) bool {
	if err := d.records.Init(ctx); err != nil {
		d.logger.Error("failed to initialize records", zap.Error(err))
		return false
	}
	if err := d.timer.RecoverOnRestart(ctx); err != nil {
		d.logger.Error("restart recovery failed", zap.Error(err))
		return false
	}
	return true
}

// Ensure TimerDaemon serves the HTTP control surface.
var _ api.Controller = (*TimerDaemon)(nil)
