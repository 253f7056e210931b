// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record keys in the persistent store.
const (
	KeyTimerState = "timerState"
	KeySettings   = "settings"
	KeyStats      = "stats"
)

// TimerStatus is the state of the single installation-wide timer.
type TimerStatus string

const (
	StatusIdle       TimerStatus = "idle"
	StatusFocus      TimerStatus = "focus"
	StatusShortBreak TimerStatus = "short_break"
	StatusLongBreak  TimerStatus = "long_break"
)

// ParseSessionKind validates a kind passed to start.
func ParseSessionKind(s string) (TimerStatus, error) {
	switch TimerStatus(s) {
	case StatusFocus, StatusShortBreak, StatusLongBreak:
		return TimerStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// IsActive reports whether the status is a running session.
func (s TimerStatus) IsActive() bool {
	return s == StatusFocus || s == StatusShortBreak || s == StatusLongBreak
}

// TimerState is the authoritative timer record.
// Always written as a whole record, never patched.
type TimerState struct {
	Status    TimerStatus `json:"status"`
	StartTime *time.Time  `json:"startTime"`
	EndTime   *time.Time  `json:"endTime"`
	// Duration is the session budget in milliseconds.
	Duration int64 `json:"duration"`
}

// IdleState returns the record written by stop.
func IdleState() TimerState {
	return TimerState{Status: StatusIdle}
}

// Validate checks the idle <=> no start/end invariant.
func (s TimerState) Validate() error {
	if s.Status == StatusIdle {
		if s.StartTime != nil || s.EndTime != nil {
			return fmt.Errorf("%w: idle with timestamps", ErrTornState)
		}
		return nil
	}
	if !s.Status.IsActive() {
		return fmt.Errorf("%w: unknown status %q", ErrTornState, s.Status)
	}
	if s.StartTime == nil || s.EndTime == nil {
		return fmt.Errorf("%w: %s without timestamps", ErrTornState, s.Status)
	}
	if s.EndTime.Before(*s.StartTime) {
		return fmt.Errorf("%w: endTime before startTime", ErrTornState)
	}
	return nil
}

// Remaining returns endTime - now. Zero for idle.
func (s TimerState) Remaining(now time.Time) time.Duration {
	if s.EndTime == nil {
		return 0
	}
	return s.EndTime.Sub(now)
}

// Settings holds user preferences. Durations are whole minutes.
type Settings struct {
	FocusTime  int      `json:"focusTime"`
	ShortBreak int      `json:"shortBreak"`
	LongBreak  int      `json:"longBreak"`
	AutoStart  bool     `json:"autoStart"`
	Whitelist  []string `json:"whitelist"`
}

// Stats holds monotonic counters owned by the timer.
type Stats struct {
	SessionsCompleted   int `json:"sessionsCompleted"`
	DistractionsBlocked int `json:"distractionsBlocked"` // carried in the record, never changed by the timer
	// LastCompletedEnd is the endTime of the last counted focus session.
	LastCompletedEnd *time.Time `json:"lastCompletedEnd,omitempty"`
}

// StatusReport is the timer daemon's answer to a status query.
type StatusReport struct {
	State             TimerState `json:"state"`
	Badge             string     `json:"badge"`
	RemainingMs       int64      `json:"remainingMs"`
	SessionsCompleted int        `json:"sessionsCompleted"`
	PID               int        `json:"pid"`
	Version           string     `json:"version"`
}

// Change is one committed write delivered to store subscribers.
type Change struct {
	Namespace string          `json:"namespace"`
	Key       string          `json:"key"`
	OldValue  json.RawMessage `json:"oldValue,omitempty"`
	NewValue  json.RawMessage `json:"newValue,omitempty"`
}

// DaemonRole identifies the type of background process.
type DaemonRole string

const (
	RoleTimer DaemonRole = "timer"
	RoleAudio DaemonRole = "audio"
)

// Daemon represents a running background process.
type Daemon struct {
	PID        int
	Role       DaemonRole
	StartedAt  time.Time
	AppVersion string
}

// RegistryEntry stores the pids of both background processes.
// Persisted to a file for cross-process discovery.
type RegistryEntry struct {
	Version    int    `json:"version"`
	TimerPID   int    `json:"timer_pid"`
	AudioPID   int    `json:"audio_pid"`
	UpdatedAt  int64  `json:"updated_at"`
	Mode       string `json:"mode,omitempty"`
	AppVersion string `json:"app_version,omitempty"`
}

// PIDFor returns the registered pid for role, 0 if none.
func (e *RegistryEntry) PIDFor(role DaemonRole) int {
	if e == nil {
		return 0
	}
	switch role {
	case RoleTimer:
		return e.TimerPID
	case RoleAudio:
		return e.AudioPID
	}
	return 0
}
