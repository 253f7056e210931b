// Package fixtures provides test helpers for integration tests.
package fixtures

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/focusflow/internal/api"
	"github.com/eliteGoblin/focusd/focusflow/internal/daemon"
	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/infra"
	"github.com/eliteGoblin/focusd/focusflow/internal/usecase"
)

// Clock is a settable time source shared with the timer.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock creates a clock stopped at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// RecordingAudio is an audio sink that only counts play signals.
type RecordingAudio struct {
	mu      sync.Mutex
	signals int
}

func (a *RecordingAudio) EnsureContext(ctx context.Context) error {
	return domain.ErrAudioContextExists
}

func (a *RecordingAudio) PlaySignal(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.signals++
	return nil
}

// Signals returns how many play signals were sent.
func (a *RecordingAudio) Signals() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signals
}

// RecordingNotifier keeps notification titles.
type RecordingNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (n *RecordingNotifier) Notify(ctx context.Context, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.titles = append(n.titles, title)
	return nil
}

// Titles returns the notification titles in order.
func (n *RecordingNotifier) Titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.titles...)
}

// Stack is a timer daemon with its real store, scheduler and HTTP surface,
// running in-process on a loopback port.
type Stack struct {
	DataDir   string
	Store     *infra.EncryptedStore
	Scheduler *infra.TickerScheduler
	Daemon    *daemon.TimerDaemon
	Client    *api.Client
	Audio     *RecordingAudio
	Notifier  *RecordingNotifier

	cancel context.CancelFunc
	group  *errgroup.Group
}

// StartStack opens (or reopens) the store under dataDir and serves it.
func StartStack(dataDir string, clock *Clock, logger *zap.Logger) (*Stack, error) {
	key, err := infra.EnsureKey(infra.NewFileKeyProvider(dataDir))
	if err != nil {
		return nil, err
	}
	store, err := infra.NewEncryptedStore(dataDir, key, "local", logger)
	if err != nil {
		return nil, err
	}

	s := &Stack{
		DataDir:   dataDir,
		Store:     store,
		Scheduler: infra.NewTickerScheduler(logger),
		Audio:     &RecordingAudio{},
		Notifier:  &RecordingNotifier{},
	}

	registry := infra.NewFileRegistry(dataDir, infra.NewProcessManager())
	badge := infra.NewMemoryBadge()
	records := usecase.NewRecords(store)
	timer := usecase.NewTimerManager(records, s.Scheduler, badge, s.Notifier, s.Audio, logger).
		WithClock(clock.Now)

	d := domain.Daemon{PID: os.Getpid(), Role: domain.RoleTimer, StartedAt: time.Now(), AppVersion: "test"}
	s.Daemon = daemon.NewTimerDaemon(daemon.DefaultTimerConfig(), timer, records, s.Scheduler, badge, registry, d, logger)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}
	server := api.NewServer(s.Daemon, store, logger)
	s.Client = api.NewClient(ln.Addr().String(), logger)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.Daemon.Run(ctx) })
	g.Go(func() error { return server.Serve(ctx, ln) })
	s.group = g

	return s, nil
}

// RemoteRecords gives typed access to the store through the HTTP surface,
// the way the CLI and the watch command see it.
func (s *Stack) RemoteRecords() *usecase.Records {
	return usecase.NewRecords(api.NewRemoteStore(s.Client, "local"))
}

// Stop shuts the daemon down and closes the store.
func (s *Stack) Stop() error {
	s.cancel()
	err := s.group.Wait()
	s.Scheduler.Stop()
	if cerr := s.Store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
