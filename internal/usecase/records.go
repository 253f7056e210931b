// Package usecase contains application business logic.
package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// Records gives typed access to the store and supplies the well-known
// defaults for absent keys.
type Records struct {
	store domain.Store
}

// NewRecords wraps a store.
func NewRecords(store domain.Store) *Records {
	return &Records{store: store}
}

// Store returns the underlying store.
func (r *Records) Store() domain.Store {
	return r.store
}

// Init writes defaults for every absent key in a single Set.
func (r *Records) Init(ctx context.Context) error {
	defaults := map[string]any{
		domain.KeyTimerState: policy.DefaultTimerState(),
		domain.KeySettings:   policy.DefaultSettings(),
		domain.KeyStats:      domain.Stats{},
	}

	toSet := make(map[string][]byte)
	for key, value := range defaults {
		_, found, err := r.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if found {
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal default %s: %w", key, err)
		}
		toSet[key] = data
	}
	if len(toSet) == 0 {
		return nil
	}
	return r.store.Set(ctx, toSet)
}

// TimerState returns the current timer record or the idle default.
func (r *Records) TimerState(ctx context.Context) (domain.TimerState, error) {
	state := policy.DefaultTimerState()
	if err := r.get(ctx, domain.KeyTimerState, &state); err != nil {
		return domain.TimerState{}, err
	}
	return state, nil
}

// Settings returns the settings record or the defaults.
func (r *Records) Settings(ctx context.Context) (domain.Settings, error) {
	settings := policy.DefaultSettings()
	if err := r.get(ctx, domain.KeySettings, &settings); err != nil {
		return domain.Settings{}, err
	}
	if settings.Whitelist == nil {
		settings.Whitelist = []string{}
	}
	return settings, nil
}

// Stats returns the stats record or zero counters.
func (r *Records) Stats(ctx context.Context) (domain.Stats, error) {
	var stats domain.Stats
	if err := r.get(ctx, domain.KeyStats, &stats); err != nil {
		return domain.Stats{}, err
	}
	return stats, nil
}

// PutTimerState replaces the timer record. Torn records are refused.
func (r *Records) PutTimerState(ctx context.Context, state domain.TimerState) error {
	if err := state.Validate(); err != nil {
		return err
	}
	return r.put(ctx, domain.KeyTimerState, state)
}

// PutSettings replaces the settings record.
func (r *Records) PutSettings(ctx context.Context, settings domain.Settings) error {
	return r.put(ctx, domain.KeySettings, settings)
}

// PutStats replaces the stats record.
func (r *Records) PutStats(ctx context.Context, stats domain.Stats) error {
	return r.put(ctx, domain.KeyStats, stats)
}

func (r *Records) get(ctx context.Context, key string, dst any) error {
	raw, found, err := r.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if !found || len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedRecord, key, err)
	}
	return nil
}

func (r *Records) put(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := r.store.Set(ctx, map[string][]byte{key: data}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
