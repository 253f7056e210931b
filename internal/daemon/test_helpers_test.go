package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// memStore is an in-memory domain.Store for testing
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte)}
}

func (m *memStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, records map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range records {
		m.data[k] = v
	}
	return nil
}

func (m *memStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.Change, func(), error) {
	return nil, nil, errors.New("not supported")
}

func (m *memStore) Namespace() string { return "local" }

func (m *memStore) setGetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
}

func (m *memStore) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

// fakeScheduler lets tests fire alarms by hand
type fakeScheduler struct {
	mu     sync.Mutex
	armed  map[string]time.Duration
	fires  chan string
	disarm []string
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{armed: make(map[string]time.Duration), fires: make(chan string)}
}

func (s *fakeScheduler) Arm(name string, period time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed[name] = period
}

func (s *fakeScheduler) Disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.armed, name)
	s.disarm = append(s.disarm, name)
}

func (s *fakeScheduler) IsArmed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.armed[name]
	return ok
}

func (s *fakeScheduler) Fires() <-chan string { return s.fires }

func (s *fakeScheduler) disarmed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.disarm...)
}

type fakeBadge struct {
	mu   sync.Mutex
	text string
}

func (b *fakeBadge) SetText(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}

func (b *fakeBadge) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

type fakeNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *fakeNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

type fakeAudio struct {
	mu      sync.Mutex
	signals int
}

func (a *fakeAudio) EnsureContext(ctx context.Context) error {
	return domain.ErrAudioContextExists
}

func (a *fakeAudio) PlaySignal(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals++
	return nil
}

func (a *fakeAudio) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signals
}

// fakeRegistry is an in-memory domain.DaemonRegistry
type fakeRegistry struct {
	mu           sync.Mutex
	entry        domain.RegistryEntry
	registered   []domain.DaemonRole
	unregistered []domain.DaemonRole
	registerErr  error
}

func (r *fakeRegistry) Register(d domain.Daemon) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registerErr != nil {
		return r.registerErr
	}
	r.registered = append(r.registered, d.Role)
	switch d.Role {
	case domain.RoleTimer:
		r.entry.TimerPID = d.PID
	case domain.RoleAudio:
		r.entry.AudioPID = d.PID
	}
	return nil
}

func (r *fakeRegistry) Unregister(role domain.DaemonRole, pid int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unregistered = append(r.unregistered, role)
	return nil
}

func (r *fakeRegistry) IsAlive(role domain.DaemonRole) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry.PIDFor(role) != 0, nil
}

func (r *fakeRegistry) GetAll() (*domain.RegistryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry := r.entry
	return &entry, nil
}

func (r *fakeRegistry) GetRegistryPath() string { return "/tmp/daemons.json" }

func (r *fakeRegistry) roles() ([]domain.DaemonRole, []domain.DaemonRole) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.DaemonRole(nil), r.registered...), append([]domain.DaemonRole(nil), r.unregistered...)
}

// fakeProcessManager reports the listed pids as running
type fakeProcessManager struct {
	running map[int]bool
}

func (p *fakeProcessManager) IsRunning(pid int) bool { return p.running[pid] }

func (p *fakeProcessManager) Terminate(pid int) error { return nil }

func (p *fakeProcessManager) GetCurrentPID() int { return 100 }
