package infra

import (
	"os"
	"os/user"
	"path/filepath"
)

// ExecMode represents the execution mode of the application.
type ExecMode string

const (
	// ExecModeUser keeps data under the invoking user's home
	ExecModeUser ExecMode = "user"
	// ExecModeSystem keeps data under /var/lib (running as root)
	ExecModeSystem ExecMode = "system"
)

// Paths holds every file location derived from the data directory.
type Paths struct {
	Mode         ExecMode
	DataDir      string
	ConfigPath   string
	LogPath      string
	ErrorLogPath string
	SocketPath   string
	IsRoot       bool
}

// DetectPaths determines the data directory based on effective UID.
func DetectPaths() *Paths {
	if os.Geteuid() == 0 {
		p := PathsFor("/var/lib/focusflow")
		p.Mode = ExecModeSystem
		p.IsRoot = true
		return p
	}
	return PathsFor(filepath.Join(GetRealUserHome(), ".focusflow"))
}

// PathsFor lays out every file under dataDir in user mode.
func PathsFor(dataDir string) *Paths {
	return &Paths{
		Mode:         ExecModeUser,
		DataDir:      dataDir,
		ConfigPath:   filepath.Join(dataDir, "config.yaml"),
		LogPath:      filepath.Join(dataDir, "focusflow.log"),
		ErrorLogPath: filepath.Join(dataDir, "focusflow.error.log"),
		SocketPath:   filepath.Join(dataDir, "audio.sock"),
		IsRoot:       os.Geteuid() == 0,
	}
}

// String returns a human-readable description of the mode.
func (m ExecMode) String() string {
	switch m {
	case ExecModeSystem:
		return "system (root)"
	case ExecModeUser:
		return "user (non-root)"
	default:
		return "unknown"
	}
}

// GetRealUserHome returns the real user's home directory, even when running under sudo.
// Under sudo, os.UserHomeDir() returns root's home, so we use SUDO_USER to find the real user.
func GetRealUserHome() string {
	if sudoUser := os.Getenv("SUDO_USER"); sudoUser != "" {
		if u, err := user.Lookup(sudoUser); err == nil {
			return u.HomeDir
		}
	}
	home, _ := os.UserHomeDir()
	return home
}
