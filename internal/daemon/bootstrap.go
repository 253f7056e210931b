package daemon

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
)

// StartDetached self-execs the binary with args and returns the child's pid.
// The child is detached from the parent process (runs independently).
func StartDetached(args ...string) (int, error) {
	executable, err := os.Executable()
	if err != nil {
		return 0, err
	}

	cmd := exec.Command(executable, args...)

	// Detach from parent process
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true, // Create new session (detach from terminal)
	}

	// No stdin/stdout/stderr - fully detached
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	if err := cmd.Start(); err != nil {
		return 0, err
	}
	pid := cmd.Process.Pid
	// The child outlives us; release it so no zombie is left behind.
	_ = cmd.Process.Release()
	return pid, nil
}

// StartTimerDaemon spawns "focusflow daemon" with the given global flags.
func StartTimerDaemon(globalArgs ...string) (int, error) {
	return StartDetached(append([]string{"daemon"}, globalArgs...)...)
}

// AudioHostSpawner returns the function the audio client uses to start a host.
func AudioHostSpawner(globalArgs ...string) infra.SpawnFunc {
	return func() (int, error) {
		return StartDetached(append([]string{"audio"}, globalArgs...)...)
	}
}
