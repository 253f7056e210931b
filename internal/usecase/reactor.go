package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// EnforcementReactor decides whether one browsing context is blocked.
// It keeps no state between evaluations; every Reconcile re-reads the store.
type EnforcementReactor struct {
	records *Records
	page    domain.BrowsingContext
	overlay domain.Overlay
	logger  *zap.Logger
}

// NewEnforcementReactor creates a reactor for one browsing context.
func NewEnforcementReactor(
	records *Records,
	page domain.BrowsingContext,
	overlay domain.Overlay,
	logger *zap.Logger,
) *EnforcementReactor {
	return &EnforcementReactor{
		records: records,
		page:    page,
		overlay: overlay,
		logger:  logger,
	}
}

// Reconcile applies or removes the overlay and reports whether the page is blocked.
// On a store error the overlay is left as it was.
func (r *EnforcementReactor) Reconcile(ctx context.Context) (bool, error) {
	state, err := r.records.TimerState(ctx)
	if err != nil && !errors.Is(err, domain.ErrMalformedRecord) {
		return r.overlay.Visible(), err
	}

	// Breaks and idle never block.
	if state.Status != domain.StatusFocus {
		r.overlay.Hide()
		return false, nil
	}

	settings, err := r.records.Settings(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrMalformedRecord) {
			return r.overlay.Visible(), err
		}
		settings = policy.DefaultSettings()
	}

	if policy.IsAllowed(r.page.Address(), settings.Whitelist) {
		r.overlay.Hide()
		return false, nil
	}

	r.overlay.Show()
	return true, nil
}

// Run subscribes to timer and settings changes, reconciles once eagerly and
// then once per change. It returns when ctx is done or the subscription ends.
func (r *EnforcementReactor) Run(ctx context.Context) error {
	changes, cancel, err := r.records.Store().Subscribe(ctx, domain.KeyTimerState, domain.KeySettings)
	if err != nil {
		return err
	}
	defer cancel()

	// Subscribe first so nothing written after this evaluation is missed.
	r.reconcile(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case change, ok := <-changes:
			if !ok {
				return domain.ErrSubscriptionClosed
			}
			r.logger.Debug("store change", zap.String("key", change.Key))
			r.reconcile(ctx)
		}
	}
}

// Watch keeps Run alive, re-subscribing after the change stream drops.
// Each re-subscription starts with a full reconcile to catch up.
func (r *EnforcementReactor) Watch(ctx context.Context, retryDelay time.Duration) error {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	const maxDelay = 30 * time.Second

	delay := retryDelay
	for {
		started := time.Now()
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > maxDelay {
			delay = retryDelay
		}
		r.logger.Warn("change subscription lost, retrying",
			zap.String("address", r.page.Address()),
			zap.Duration("delay", delay),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

func (r *EnforcementReactor) reconcile(ctx context.Context) {
	blocked, err := r.Reconcile(ctx)
	if err != nil {
		r.logger.Warn("reconcile failed", zap.String("address", r.page.Address()), zap.Error(err))
		return
	}
	r.logger.Debug("reconciled",
		zap.String("address", r.page.Address()),
		zap.Bool("blocked", blocked))
}
