package infra

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
	"github.com/eliteGoblin/focusd/focusflow/internal/policy"
)

// TickerScheduler implements domain.WakeScheduler with one time.Ticker per alarm.
// Firings are delivered on a single channel; a firing that finds the channel
// full is dropped, so a busy consumer sees coalesced wake-ups.
type TickerScheduler struct {
	mu        sync.Mutex
	alarms    map[string]chan struct{}
	fires     chan string
	minPeriod time.Duration
	logger    *zap.Logger
}

// NewTickerScheduler creates a scheduler with no alarms.
func NewTickerScheduler(logger *zap.Logger) *TickerScheduler {
	return &TickerScheduler{
		alarms:    make(map[string]chan struct{}),
		fires:     make(chan string, 1),
		minPeriod: policy.TickPeriod,
		logger:    logger,
	}
}

// Arm starts the named alarm, replacing one that already exists.
func (s *TickerScheduler) Arm(name string, period time.Duration) {
	if period < s.minPeriod {
		period = s.minPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if stop, ok := s.alarms[name]; ok {
		close(stop)
	}
	stop := make(chan struct{})
	s.alarms[name] = stop

	go s.run(name, period, stop)
	s.logger.Debug("alarm armed", zap.String("name", name), zap.Duration("period", period))
}

// Disarm stops the named alarm. No-op if not armed.
func (s *TickerScheduler) Disarm(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stop, ok := s.alarms[name]
	if !ok {
		return
	}
	close(stop)
	delete(s.alarms, name)
	s.logger.Debug("alarm disarmed", zap.String("name", name))
}

// IsArmed reports whether the named alarm exists.
func (s *TickerScheduler) IsArmed(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.alarms[name]
	return ok
}

// Fires delivers alarm names as they go off.
func (s *TickerScheduler) Fires() <-chan string {
	return s.fires
}

// Stop disarms every alarm.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, stop := range s.alarms {
		close(stop)
		delete(s.alarms, name)
	}
}

func (s *TickerScheduler) run(name string, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			select {
			case s.fires <- name:
			default:
			}
		}
	}
}

// Ensure TickerScheduler implements domain.WakeScheduler.
var _ domain.WakeScheduler = (*TickerScheduler)(nil)
