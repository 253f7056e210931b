package infra

import (
	"context"
	"errors"
	"os"
	"sync"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	runningPIDs    map[int]bool
	terminatedPIDs []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.terminatedPIDs = append(m.terminatedPIDs, pid)
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) GetCurrentPID() int {
	return os.Getpid()
}

func (m *mockProcessManager) SetRunning(pid int, running bool) {
	m.runningPIDs[pid] = running
}

// mockDaemonRegistry is a test double for domain.DaemonRegistry
type mockDaemonRegistry struct {
	entry *domain.RegistryEntry
	alive map[domain.DaemonRole]bool
}

func newMockDaemonRegistry() *mockDaemonRegistry {
	return &mockDaemonRegistry{alive: make(map[domain.DaemonRole]bool)}
}

func (m *mockDaemonRegistry) Register(daemon domain.Daemon) error {
	if m.entry == nil {
		m.entry = &domain.RegistryEntry{Version: 1}
	}
	switch daemon.Role {
	case domain.RoleTimer:
		m.entry.TimerPID = daemon.PID
	case domain.RoleAudio:
		m.entry.AudioPID = daemon.PID
	}
	return nil
}

func (m *mockDaemonRegistry) Unregister(role domain.DaemonRole, pid int) error {
	return nil
}

func (m *mockDaemonRegistry) IsAlive(role domain.DaemonRole) (bool, error) {
	return m.alive[role], nil
}

func (m *mockDaemonRegistry) GetAll() (*domain.RegistryEntry, error) {
	return m.entry, nil
}

func (m *mockDaemonRegistry) GetRegistryPath() string {
	return "/tmp/mock-registry"
}

// mockCommandRunner records commands instead of running them
type mockCommandRunner struct {
	mu        sync.Mutex
	commands  [][]string
	available map[string]bool
	runErr    error
}

func newMockCommandRunner(available ...string) *mockCommandRunner {
	m := &mockCommandRunner{available: make(map[string]bool)}
	for _, a := range available {
		m.available[a] = true
	}
	return m
}

func (m *mockCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, append([]string{name}, args...))
	return m.runErr
}

func (m *mockCommandRunner) LookPath(name string) (string, error) {
	if m.available[name] {
		return "/usr/bin/" + name, nil
	}
	return "", errors.New("executable file not found in $PATH")
}

var (
	_ domain.ProcessManager = (*mockProcessManager)(nil)
	_ domain.DaemonRegistry = (*mockDaemonRegistry)(nil)
	_ CommandRunner         = (*mockCommandRunner)(nil)
)
