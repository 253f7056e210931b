package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// AlarmName is the wake scheduler entry driving Tick.
const AlarmName = "focus-timer-tick"

// DefaultSinkTimeout bounds each notification and audio call made on completion.
const DefaultSinkTimeout = 5 * time.Second

// Notification texts shown on completion.
const (
	FocusDoneTitle = "Focus Session Complete"
	FocusDoneBody  = "Great job! Time for a break."
	BreakDoneTitle = "Break Over"
	BreakDoneBody  = "Ready to focus again?"
)

// TimerManager is the timer state machine.
// It is the only writer of the timer and stats records. Callers must not run
// two operations concurrently; the daemon loop serializes them.
type TimerManager struct {
	records     *Records
	scheduler   domain.WakeScheduler
	badge       domain.ProgressIndicator
	notifier    domain.Notifier
	audio       domain.AudioSink
	period      time.Duration
	sinkTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewTimerManager creates a timer state machine.
func NewTimerManager(
	records *Records,
	scheduler domain.WakeScheduler,
	badge domain.ProgressIndicator,
	notifier domain.Notifier,
	audio domain.AudioSink,
	logger *zap.Logger,
) *TimerManager {
	return &TimerManager{
		records:     records,
		scheduler:   scheduler,
		badge:       badge,
		notifier:    notifier,
		audio:       audio,
		period:      policy.TickPeriod,
		sinkTimeout: DefaultSinkTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock overrides the time source (for testing).
func (t *TimerManager) WithClock(now func() time.Time) *TimerManager {
	t.now = now
	return t
}

// WithSinkTimeout sets how long a presentation sink may take before it is abandoned.
func (t *TimerManager) WithSinkTimeout(timeout time.Duration) *TimerManager {
	t.sinkTimeout = timeout
	return t
}

// Now returns the current time from the timer's clock.
func (t *TimerManager) Now() time.Time {
	return t.now()
}

// WithTickPeriod sets the alarm period. Values below the scheduler minimum are raised to it.
func (t *TimerManager) WithTickPeriod(period time.Duration) *TimerManager {
	if period < policy.TickPeriod {
		period = policy.TickPeriod
	}
	t.period = period
	return t
}

// State returns the current timer record.
func (t *TimerManager) State(ctx context.Context) (domain.TimerState, error) {
	return t.records.TimerState(ctx)
}

// Start begins a session of the given kind, replacing any running session.
func (t *TimerManager) Start(ctx context.Context, kind domain.TimerStatus) error {
	if !kind.IsActive() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}

	settings, err := t.records.Settings(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedRecord) {
			return err
		}
		t.logger.Warn("settings unreadable, using defaults", zap.Error(err))
		settings = policy.DefaultSettings()
	}

	minutes := policy.SessionMinutes(settings, kind)
	duration := time.Duration(minutes) * time.Minute
	start := t.now()
	end := start.Add(duration)

	state := domain.TimerState{
		Status:    kind,
		StartTime: &start,
		EndTime:   &end,
		Duration:  duration.Milliseconds(),
	}
	if err := t.records.PutTimerState(ctx, state); err != nil {
		return err
	}

	t.scheduler.Arm(AlarmName, t.period)
	t.badge.SetText(fmt.Sprintf("%dm", minutes))

	t.logger.Info("session started",
		zap.String("kind", string(kind)),
		zap.Int("minutes", minutes),
		zap.Time("end_time", end))
	return nil
}

// Stop forces the timer to idle. Calling it while idle is a no-op in effect.
func (t *TimerManager) Stop(ctx context.Context) error {
	if err := t.records.PutTimerState(ctx, domain.IdleState()); err != nil {
		return err
	}
	t.scheduler.Disarm(AlarmName)
	t.badge.SetText("")
	return nil
}

// Tick advances the timer on a wake-up.
func (t *TimerManager) Tick(ctx context.Context) error {
	state, err := t.records.TimerState(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			t.logger.Warn("timer record unreadable, resetting to idle", zap.Error(err))
			return t.Stop(ctx)
		}
		return err
	}

	if state.Status == domain.StatusIdle {
		t.scheduler.Disarm(AlarmName)
		return nil
	}

	if err := state.Validate(); err != nil {
		t.logger.Warn("torn timer record, resetting to idle", zap.Error(err))
		return t.Stop(ctx)
	}

	remaining := state.Remaining(t.now())
	if remaining <= 0 {
		return t.complete(ctx)
	}

	t.badge.SetText(badgeText(remaining))
	return nil
}

// RecoverOnRestart runs once when the process loads. A session that ended
// while nobody was watching is completed; a live one gets its alarm back.
func (t *TimerManager) RecoverOnRestart(ctx context.Context) error {
	state, err := t.records.TimerState(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			t.logger.Warn("timer record unreadable on restart, resetting to idle", zap.Error(err))
			return t.Stop(ctx)
		}
		return err
	}

	if state.Status == domain.StatusIdle {
		return nil
	}

	if err := state.Validate(); err != nil {
		t.logger.Warn("torn timer record on restart, resetting to idle", zap.Error(err))
		return t.Stop(ctx)
	}

	now := t.now()
	if !now.Before(*state.EndTime) {
		t.logger.Info("session finished while unloaded, completing",
			zap.String("kind", string(state.Status)),
			zap.Time("end_time", *state.EndTime))
		return t.complete(ctx)
	}

	if !t.scheduler.IsArmed(AlarmName) {
		t.logger.Info("re-arming wake scheduler after restart",
			zap.String("kind", string(state.Status)),
			zap.Duration("remaining", state.Remaining(now)))
		t.scheduler.Arm(AlarmName, t.period)
	}
	t.badge.SetText(badgeText(state.Remaining(now)))
	return nil
}

// complete is the only place completion side effects happen.
// It ends with Stop, which makes any repeated call see idle and return.
func (t *TimerManager) complete(ctx context.Context) error {
	state, err := t.records.TimerState(ctx)
	if err != nil {
		return err
	}
	if !state.Status.IsActive() {
		return nil
	}

	title, body := BreakDoneTitle, BreakDoneBody
	if state.Status == domain.StatusFocus {
		title, body = FocusDoneTitle, FocusDoneBody
		if err := t.countFocusSession(ctx, state); err != nil {
			return err
		}
	}

	t.notify(ctx, title, body)
	t.PlayAudio(ctx)

	if err := t.Stop(ctx); err != nil {
		return err
	}

	t.logger.Info("session completed", zap.String("kind", string(state.Status)))
	return nil
}

// countFocusSession bumps sessionsCompleted once per focus session,
// keyed by the session's immutable endTime.
func (t *TimerManager) countFocusSession(ctx context.Context, state domain.TimerState) error {
	stats, err := t.records.Stats(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedRecord) {
			t.logger.Error("stats record unreadable, session not counted", zap.Error(err))
			return nil
		}
		return err
	}

	if stats.LastCompletedEnd != nil && stats.LastCompletedEnd.Equal(*state.EndTime) {
		return nil
	}

	end := *state.EndTime
	stats.SessionsCompleted++
	stats.LastCompletedEnd = &end
	return t.records.PutStats(ctx, stats)
}

// notify shows the completion banner. A slow or failing notifier is logged
// and abandoned after sinkTimeout.
func (t *TimerManager) notify(ctx context.Context, title, body string) {
	ctx, cancel := context.WithTimeout(ctx, t.sinkTimeout)
	defer cancel()

	if err := t.notifier.Notify(ctx, title, body); err != nil {
		t.logger.Warn("notification failed", zap.Error(err))
	}
}

// PlayAudio makes sure the audio context exists and sends the play signal.
// Failures are logged and never returned. Both calls share one sinkTimeout.
func (t *TimerManager) PlayAudio(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, t.sinkTimeout)
	defer cancel()

	if err := t.audio.EnsureContext(ctx); err != nil && !errors.Is(err, domain.ErrAudioContextExists) {
		t.logger.Warn("audio context unavailable", zap.Error(err))
	}
	if err := t.audio.PlaySignal(ctx); err != nil {
		t.logger.Warn("play signal not delivered", zap.Error(err))
	}
}

func badgeText(remaining time.Duration) string {
	minutes := int(math.Ceil(float64(remaining) / float64(time.Minute)))
	return fmt.Sprintf("%dm", minutes)
}
