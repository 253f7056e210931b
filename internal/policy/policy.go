// Package policy holds the timer and blocking rules shared by the daemon and
// every browsing context: duration bounds, whitelist normalization and matching.
package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// TickPeriod is the minimum wake-up period supported by the scheduler.
const TickPeriod = time.Second

// DurationBounds limits a session length in whole minutes.
type DurationBounds struct {
	Min     int
	Max     int
	Default int
}

var (
	FocusBounds      = DurationBounds{Min: 1, Max: 120, Default: 25}
	ShortBreakBounds = DurationBounds{Min: 1, Max: 30, Default: 5}
	LongBreakBounds  = DurationBounds{Min: 1, Max: 60, Default: 15}
)

// Clamp returns minutes if it is within bounds, the default otherwise.
// Out-of-range values are replaced, not clipped.
func (b DurationBounds) Clamp(minutes int) int {
	if minutes < b.Min || minutes > b.Max {
		return b.Default
	}
	return minutes
}

// BoundsFor returns the bounds for a session kind.
func BoundsFor(kind domain.TimerStatus) DurationBounds {
	switch kind {
	case domain.StatusShortBreak:
		return ShortBreakBounds
	case domain.StatusLongBreak:
		return LongBreakBounds
	default:
		return FocusBounds
	}
}

// SessionMinutes picks the configured minutes for kind, falling back to a
// safe default when the setting is missing or out of range.
func SessionMinutes(settings domain.Settings, kind domain.TimerStatus) int {
	var configured int
	switch kind {
	case domain.StatusFocus:
		configured = settings.FocusTime
	case domain.StatusShortBreak:
		configured = settings.ShortBreak
	case domain.StatusLongBreak:
		configured = settings.LongBreak
	}
	return BoundsFor(kind).Clamp(configured)
}

// DefaultSettings returns the first-run settings record.
func DefaultSettings() domain.Settings {
	return domain.Settings{
		FocusTime:  FocusBounds.Default,
		ShortBreak: ShortBreakBounds.Default,
		LongBreak:  LongBreakBounds.Default,
		Whitelist:  []string{},
	}
}

// DefaultTimerState returns the first-run timer record.
func DefaultTimerState() domain.TimerState {
	return domain.TimerState{
		Status:   domain.StatusIdle,
		Duration: int64(FocusBounds.Default) * time.Minute.Milliseconds(),
	}
}
