package domain

import (
	"context"
	"time"
)

// Store is the namespaced key-value store holding every record.
// Implementations: sqlcipher database (daemon side), HTTP client (other processes).
type Store interface {
	// Get returns the raw record for key. found is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set commits all records in one write. Each committed key produces one Change.
	Set(ctx context.Context, records map[string][]byte) error

	// Subscribe delivers changes touching any of keys (all keys when empty)
	// until cancel is called or ctx is done. The channel is closed on exit.
	Subscribe(ctx context.Context, keys ...string) (changes <-chan Change, cancel func(), err error)

	// Namespace returns the namespace the store is scoped to.
	Namespace() string
}

// WakeScheduler fires named periodic triggers.
// Firings may be delayed or coalesced and are never replayed.
type WakeScheduler interface {
	// Arm starts (or replaces) the named alarm.
	Arm(name string, period time.Duration)

	// Disarm stops the named alarm. No-op if not armed.
	Disarm(name string)

	// IsArmed reports whether the named alarm exists.
	IsArmed(name string) bool

	// Fires delivers the name of each alarm that went off.
	Fires() <-chan string
}

// ProgressIndicator shows coarse remaining time (e.g. "12m").
type ProgressIndicator interface {
	SetText(text string)
	Text() string
}

// Notifier shows a notification banner.
type Notifier interface {
	Notify(ctx context.Context, title, body string) error
}

// AudioSink is the audio presentation context.
type AudioSink interface {
	// EnsureContext creates the context, returning ErrAudioContextExists
	// when it is already running.
	EnsureContext(ctx context.Context) error

	// PlaySignal asks the context to play the completion tone.
	PlaySignal(ctx context.Context) error
}

// BrowsingContext is one place where navigation can be blocked.
type BrowsingContext interface {
	// Address returns the host currently shown in the context.
	Address() string
}

// Overlay is the block overlay of a browsing context.
// Show and Hide must be idempotent.
type Overlay interface {
	Show()
	Hide()
	Visible() bool
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool

	// Terminate asks a process to exit (SIGTERM).
	Terminate(pid int) error

	// GetCurrentPID returns the current process PID.
	GetCurrentPID() int
}

// DaemonRegistry provides background process discovery.
// Implementation: JSON file in the data directory.
type DaemonRegistry interface {
	// Register saves the daemon's PID under its role.
	Register(daemon Daemon) error

	// Unregister clears the role if it still belongs to pid.
	Unregister(role DaemonRole, pid int) error

	// IsAlive checks whether the registered process for role is running.
	IsAlive(role DaemonRole) (bool, error)

	// GetAll returns full registry state (for status command).
	GetAll() (*RegistryEntry, error)

	// GetRegistryPath returns the registry file path (for tests).
	GetRegistryPath() string
}

// KeyProvider abstracts the source of the store encryption key.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}

// AutostartManager installs the timer daemon as a login service.
// Implementations: launchd (macOS), systemd (Linux).
type AutostartManager interface {
	// Install writes the service definition and loads it.
	Install(execPath string, args []string) error

	// Uninstall unloads and removes the service definition.
	Uninstall() error

	// IsInstalled checks if the service definition exists.
	IsInstalled() bool

	// GetUnitPath returns the service definition path.
	GetUnitPath() string
}
