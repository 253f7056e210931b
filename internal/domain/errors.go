package domain

import "errors"

var (
	// ErrAudioContextExists is returned by AudioSink.EnsureContext when the
	// presentation context is already running. Callers treat it as success.
	ErrAudioContextExists = errors.New("audio context already exists")

	// ErrTornState marks a TimerState that violates the idle invariant.
	ErrTornState = errors.New("torn timer state")

	// ErrMalformedRecord is returned when a stored record cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrInvalidDomain is returned for whitelist input that is not a host.
	ErrInvalidDomain = errors.New("invalid domain format")

	// ErrInvalidKind is returned when start is given an unknown session kind.
	ErrInvalidKind = errors.New("invalid session kind")

	// ErrReadOnlyKey is returned when a client tries to write a record owned by the timer.
	ErrReadOnlyKey = errors.New("record is read-only")

	// ErrSubscriptionClosed is returned when a change stream ends unexpectedly.
	ErrSubscriptionClosed = errors.New("change subscription closed")

	// ErrDaemonNotRunning is returned when the timer daemon cannot be reached.
	ErrDaemonNotRunning = errors.New("timer daemon not running")
)
