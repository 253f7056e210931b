package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// mockStore implements domain.Store in memory for testing
type mockStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	getErr   error
	setErr   error
	setCalls []map[string][]byte
	subs     []*mockSubscription
}

type mockSubscription struct {
	keys map[string]bool
	ch   chan domain.Change
	done bool
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string][]byte)}
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockStore) Set(ctx context.Context, records map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.setCalls = append(m.setCalls, records)
	for k, v := range records {
		old := m.data[k]
		m.data[k] = v
		for _, s := range m.subs {
			if s.done || (len(s.keys) > 0 && !s.keys[k]) {
				continue
			}
			select {
			case s.ch <- domain.Change{Namespace: "local", Key: k, OldValue: old, NewValue: v}:
			default:
			}
		}
	}
	return nil
}

func (m *mockStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.Change, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub := &mockSubscription{keys: make(map[string]bool), ch: make(chan domain.Change, 16)}
	for _, k := range keys {
		sub.keys[k] = true
	}
	m.subs = append(m.subs, sub)
	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !sub.done {
			sub.done = true
			close(sub.ch)
		}
	}
	return sub.ch, cancel, nil
}

func (m *mockStore) Namespace() string { return "local" }

// closeSubscriptions simulates the change stream dropping.
func (m *mockStore) closeSubscriptions() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if !s.done {
			s.done = true
			close(s.ch)
		}
	}
}

func (m *mockStore) putJSON(t *testing.T, key string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	m.mu.Lock()
	m.data[key] = data
	m.mu.Unlock()
}

func (m *mockStore) putRaw(key, raw string) {
	m.mu.Lock()
	m.data[key] = []byte(raw)
	m.mu.Unlock()
}

// mockScheduler implements domain.WakeScheduler for testing
type mockScheduler struct {
	armed    map[string]time.Duration
	armCalls int
	disarmed int
	fires    chan string
}

func newMockScheduler() *mockScheduler {
	return &mockScheduler{armed: make(map[string]time.Duration), fires: make(chan string, 1)}
}

func (m *mockScheduler) Arm(name string, period time.Duration) {
	m.armCalls++
	m.armed[name] = period
}

func (m *mockScheduler) Disarm(name string) {
	m.disarmed++
	delete(m.armed, name)
}

func (m *mockScheduler) IsArmed(name string) bool {
	_, ok := m.armed[name]
	return ok
}

func (m *mockScheduler) Fires() <-chan string { return m.fires }

// mockBadge implements domain.ProgressIndicator for testing
type mockBadge struct {
	text    string
	history []string
}

func (m *mockBadge) SetText(text string) {
	m.text = text
	m.history = append(m.history, text)
}

func (m *mockBadge) Text() string { return m.text }

type notification struct {
	title string
	body  string
}

// mockNotifier implements domain.Notifier for testing
type mockNotifier struct {
	sent  []notification
	err   error
	block bool // hang until ctx is done, like a wedged notify-send
}

func (m *mockNotifier) Notify(ctx context.Context, title, body string) error {
	m.sent = append(m.sent, notification{title: title, body: body})
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.err
}

// mockAudio implements domain.AudioSink for testing
type mockAudio struct {
	ensureCalls int
	playCalls   int
	ensureErr   error
	playErr     error
	block       bool
}

func (m *mockAudio) EnsureContext(ctx context.Context) error {
	m.ensureCalls++
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	return m.ensureErr
}

func (m *mockAudio) PlaySignal(ctx context.Context) error {
	m.playCalls++
	return m.playErr
}

// fakeClock is a settable time source
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// mockPage implements domain.BrowsingContext for testing
type mockPage struct {
	address string
}

func (m *mockPage) Address() string { return m.address }

// mockOverlay implements domain.Overlay for testing
type mockOverlay struct {
	mu        sync.Mutex
	visible   bool
	showCalls int
	created   int
}

func (m *mockOverlay) Show() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.showCalls++
	if m.visible {
		return
	}
	m.visible = true
	m.created++
}

func (m *mockOverlay) Hide() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visible = false
}

func (m *mockOverlay) Visible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.visible
}

var (
	_ domain.Store             = (*mockStore)(nil)
	_ domain.WakeScheduler     = (*mockScheduler)(nil)
	_ domain.ProgressIndicator = (*mockBadge)(nil)
	_ domain.Notifier          = (*mockNotifier)(nil)
	_ domain.AudioSink         = (*mockAudio)(nil)
	_ domain.BrowsingContext   = (*mockPage)(nil)
	_ domain.Overlay           = (*mockOverlay)(nil)
)
