package usecase

import (
	"context"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// SettingsEditor is the only writer of the settings record.
// Durations and domains are validated before anything is written.
type SettingsEditor struct {
	records *Records
	logger  *zap.Logger
}

// NewSettingsEditor creates a settings editor.
func NewSettingsEditor(records *Records, logger *zap.Logger) *SettingsEditor {
	return &SettingsEditor{records: records, logger: logger}
}

// Settings returns the current settings.
func (e *SettingsEditor) Settings(ctx context.Context) (domain.Settings, error) {
	return e.records.Settings(ctx)
}

// SaveDurations stores session lengths in minutes. Out-of-range values are
// replaced by their defaults. Returns the record as written.
func (e *SettingsEditor) SaveDurations(ctx context.Context, focus, shortBreak, longBreak int) (domain.Settings, error) {
	settings, err := e.records.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}

	settings.FocusTime = policy.FocusBounds.Clamp(focus)
	settings.ShortBreak = policy.ShortBreakBounds.Clamp(shortBreak)
	settings.LongBreak = policy.LongBreakBounds.Clamp(longBreak)

	if err := e.records.PutSettings(ctx, settings); err != nil {
		return domain.Settings{}, err
	}
	e.logger.Info("timer settings saved",
		zap.Int("focus", settings.FocusTime),
		zap.Int("short_break", settings.ShortBreak),
		zap.Int("long_break", settings.LongBreak))
	return settings, nil
}

// Whitelist returns the whitelisted domains in display order.
func (e *SettingsEditor) Whitelist(ctx context.Context) ([]string, error) {
	settings, err := e.records.Settings(ctx)
	if err != nil {
		return nil, err
	}
	return policy.NewWhitelist(settings.Whitelist...).List(), nil
}

// AddDomain normalizes input and appends it to the whitelist.
// added is false when the domain was already present; nothing is written then.
func (e *SettingsEditor) AddDomain(ctx context.Context, input string) (string, bool, error) {
	normalized, err := policy.NormalizeDomain(input)
	if err != nil {
		return "", false, err
	}

	settings, err := e.records.Settings(ctx)
	if err != nil {
		return "", false, err
	}

	whitelist := policy.NewWhitelist(settings.Whitelist...)
	if !whitelist.Add(normalized) {
		return normalized, false, nil
	}

	settings.Whitelist = whitelist.List()
	if err := e.records.PutSettings(ctx, settings); err != nil {
		return "", false, err
	}
	e.logger.Info("domain whitelisted", zap.String("domain", normalized))
	return normalized, true, nil
}

// RemoveDomain drops a domain from the whitelist. input may be the stored
// entry or anything that normalizes to it.
func (e *SettingsEditor) RemoveDomain(ctx context.Context, input string) (bool, error) {
	settings, err := e.records.Settings(ctx)
	if err != nil {
		return false, err
	}

	whitelist := policy.NewWhitelist(settings.Whitelist...)
	removed := whitelist.Remove(input)
	if !removed {
		if normalized, err := policy.NormalizeDomain(input); err == nil {
			removed = whitelist.Remove(normalized)
		}
	}
	if !removed {
		return false, nil
	}

	settings.Whitelist = whitelist.List()
	if err := e.records.PutSettings(ctx, settings); err != nil {
		return false, err
	}
	e.logger.Info("domain removed from whitelist", zap.String("domain", input))
	return true, nil
}
