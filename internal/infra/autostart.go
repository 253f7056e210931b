package infra

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"text/template"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// ServiceLabel names the autostart service on every platform.
const ServiceLabel = "com.focusflow.daemon"

// LaunchAgent plist template (runs as user)
const launchAgentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>{{.Label}}</string>

    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>

    <key>RunAtLoad</key>
    <true/>

    <key>KeepAlive</key>
    <dict>
        <key>Crashed</key>
        <true/>
    </dict>

    <key>StandardOutPath</key>
    <string>{{.LogPath}}</string>

    <key>StandardErrorPath</key>
    <string>{{.ErrorLogPath}}</string>

    <key>ProcessType</key>
    <string>Background</string>

    <key>ThrottleInterval</key>
    <integer>10</integer>
</dict>
</plist>
`

// systemd unit template; WantedBy differs between user and system mode
const systemdUnitTemplate = `[Unit]
Description=focusflow timer daemon
After=network.target

[Service]
ExecStart={{.ExecutablePath}}{{range .Args}} {{.}}{{end}}
Restart=on-failure
RestartSec=10
StandardOutput=append:{{.LogPath}}
StandardError=append:{{.ErrorLogPath}}

[Install]
WantedBy={{.WantedBy}}
`

type unitConfig struct {
	Label          string
	ExecutablePath string
	Args           []string
	LogPath        string
	ErrorLogPath   string
	WantedBy       string
}

// ServiceAutostart implements domain.AutostartManager with launchd on macOS
// and systemd everywhere else.
type ServiceAutostart struct {
	paths     *Paths
	goos      string
	unitPath  string
	cmdRunner CommandRunner
}

// NewServiceAutostart creates an autostart manager for the detected platform and mode.
func NewServiceAutostart(paths *Paths) *ServiceAutostart {
	return NewServiceAutostartWithDeps(paths, runtime.GOOS, GetRealUserHome(), &RealCommandRunner{})
}

// NewServiceAutostartWithDeps creates an autostart manager with injectable dependencies (for testing)
func NewServiceAutostartWithDeps(paths *Paths, goos, home string, cmdRunner CommandRunner) *ServiceAutostart {
	return &ServiceAutostart{
		paths:     paths,
		goos:      goos,
		unitPath:  unitPathFor(paths.Mode, goos, home),
		cmdRunner: cmdRunner,
	}
}

func unitPathFor(mode ExecMode, goos, home string) string {
	if goos == "darwin" {
		if mode == ExecModeSystem {
			return filepath.Join("/Library/LaunchDaemons", ServiceLabel+".plist")
		}
		return filepath.Join(home, "Library/LaunchAgents", ServiceLabel+".plist")
	}
	if mode == ExecModeSystem {
		return "/etc/systemd/system/focusflow.service"
	}
	return filepath.Join(home, ".config/systemd/user/focusflow.service")
}

// generateUnitContent renders the service definition for execPath.
func (a *ServiceAutostart) generateUnitContent(execPath string, args []string) ([]byte, error) {
	tmplStr := systemdUnitTemplate
	if a.goos == "darwin" {
		tmplStr = launchAgentTemplate
	}

	wantedBy := "default.target"
	if a.paths.Mode == ExecModeSystem {
		wantedBy = "multi-user.target"
	}

	config := unitConfig{
		Label:          ServiceLabel,
		ExecutablePath: execPath,
		Args:           args,
		LogPath:        a.paths.LogPath,
		ErrorLogPath:   a.paths.ErrorLogPath,
		WantedBy:       wantedBy,
	}

	tmpl, err := template.New("unit").Parse(tmplStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse unit template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, config); err != nil {
		return nil, fmt.Errorf("failed to execute unit template: %w", err)
	}
	return buf.Bytes(), nil
}

// Install writes the service definition and loads it.
func (a *ServiceAutostart) Install(execPath string, args []string) error {
	if err := os.MkdirAll(filepath.Dir(a.unitPath), 0755); err != nil {
		return err
	}

	content, err := a.generateUnitContent(execPath, args)
	if err != nil {
		return fmt.Errorf("failed to generate unit content: %w", err)
	}

	if err := os.WriteFile(a.unitPath, content, 0644); err != nil {
		return err
	}

	return a.load()
}

// Uninstall unloads and removes the service definition.
func (a *ServiceAutostart) Uninstall() error {
	// Unload first (ignore errors if not loaded)
	_ = a.unload()

	if err := os.Remove(a.unitPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	if a.goos != "darwin" {
		_ = a.systemctl("daemon-reload")
	}
	return nil
}

// IsInstalled checks if the service definition exists.
func (a *ServiceAutostart) IsInstalled() bool {
	_, err := os.Stat(a.unitPath)
	return err == nil
}

// GetUnitPath returns the service definition path.
func (a *ServiceAutostart) GetUnitPath() string {
	return a.unitPath
}

func (a *ServiceAutostart) load() error {
	if a.goos == "darwin" {
		return a.cmdRunner.Run(context.Background(), "launchctl", "load", a.unitPath)
	}
	if err := a.systemctl("daemon-reload"); err != nil {
		return err
	}
	return a.systemctl("enable", "--now", filepath.Base(a.unitPath))
}

func (a *ServiceAutostart) unload() error {
	if a.goos == "darwin" {
		return a.cmdRunner.Run(context.Background(), "launchctl", "unload", a.unitPath)
	}
	return a.systemctl("disable", "--now", filepath.Base(a.unitPath))
}

func (a *ServiceAutostart) systemctl(args ...string) error {
	if a.paths.Mode != ExecModeSystem {
		args = append([]string{"--user"}, args...)
	}
	return a.cmdRunner.Run(context.Background(), "systemctl", args...)
}

// Ensure ServiceAutostart implements domain.AutostartManager.
var _ domain.AutostartManager = (*ServiceAutostart)(nil)
