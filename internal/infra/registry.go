package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

const registryFileName = "daemons.json"

// FileRegistry implements domain.DaemonRegistry using a JSON file in the data directory.
type FileRegistry struct {
	path           string
	processManager domain.ProcessManager
}

// NewFileRegistry creates a registry in dataDir.
func NewFileRegistry(dataDir string, pm domain.ProcessManager) *FileRegistry {
	return NewFileRegistryWithPath(filepath.Join(dataDir, registryFileName), pm)
}

// NewFileRegistryWithPath creates a registry at a specific path (for testing).
func NewFileRegistryWithPath(path string, pm domain.ProcessManager) *FileRegistry {
	return &FileRegistry{
		path:           path,
		processManager: pm,
	}
}

// GetRegistryPath returns the registry file path.
func (r *FileRegistry) GetRegistryPath() string {
	return r.path
}

// Register records the daemon's PID under its role.
func (r *FileRegistry) Register(daemon domain.Daemon) error {
	return r.update(func(entry *domain.RegistryEntry) {
		switch daemon.Role {
		case domain.RoleTimer:
			entry.TimerPID = daemon.PID
			// Store app version from the timer daemon
			if daemon.AppVersion != "" {
				entry.AppVersion = daemon.AppVersion
			}
		case domain.RoleAudio:
			entry.AudioPID = daemon.PID
		}
	})
}

// Unregister clears role if it still belongs to pid. A newer process that
// registered in the meantime is left alone.
func (r *FileRegistry) Unregister(role domain.DaemonRole, pid int) error {
	return r.update(func(entry *domain.RegistryEntry) {
		switch role {
		case domain.RoleTimer:
			if entry.TimerPID == pid {
				entry.TimerPID = 0
			}
		case domain.RoleAudio:
			if entry.AudioPID == pid {
				entry.AudioPID = 0
			}
		}
	})
}

// IsAlive checks whether the process registered for role is running.
func (r *FileRegistry) IsAlive(role domain.DaemonRole) (bool, error) {
	entry, err := r.GetAll()
	if err != nil {
		return false, err
	}
	pid := entry.PIDFor(role)
	if pid == 0 {
		return false, nil // Not registered = not alive
	}
	return r.processManager.IsRunning(pid), nil
}

// GetAll returns full registry state, nil if nothing was ever registered.
func (r *FileRegistry) GetAll() (*domain.RegistryEntry, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entry domain.RegistryEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("corrupt registry %s: %w", r.path, err)
	}

	return &entry, nil
}

// update applies fn under an exclusive file lock so the timer daemon and the
// audio host never overwrite each other's entry.
func (r *FileRegistry) update(fn func(entry *domain.RegistryEntry)) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	lockPath := r.path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lock file: %w", err)
	}
	defer lockFile.Close()

	if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() { _ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN) }()

	entry, _ := r.GetAll() // May not exist yet or be corrupt; start over then
	if entry == nil {
		entry = &domain.RegistryEntry{Version: 1}
	}

	fn(entry)
	entry.UpdatedAt = time.Now().Unix()

	// Auto-detect and store execution mode
	if os.Geteuid() == 0 {
		entry.Mode = string(ExecModeSystem)
	} else {
		entry.Mode = string(ExecModeUser)
	}

	return r.atomicWrite(entry)
}

// atomicWrite writes registry to file atomically (write + rename).
func (r *FileRegistry) atomicWrite(entry *domain.RegistryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", r.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileRegistry implements domain.DaemonRegistry.
var _ domain.DaemonRegistry = (*FileRegistry)(nil)
