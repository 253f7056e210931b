package infra

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

const subscriberBuffer = 16

// changeHub fans committed changes out to key-filtered subscribers.
// A subscriber with a full buffer has the change dropped: it already holds a
// pending notification and re-reads the store when it handles it.
type changeHub struct {
	mu     sync.Mutex
	subs   map[string]*subscriber
	logger *zap.Logger
}

type subscriber struct {
	id   string
	keys map[string]struct{}
	ch   chan domain.Change
}

func newChangeHub(logger *zap.Logger) *changeHub {
	return &changeHub{
		subs:   make(map[string]*subscriber),
		logger: logger,
	}
}

func (h *changeHub) subscribe(keys []string) (<-chan domain.Change, func()) {
	sub := &subscriber{
		id:   uuid.NewString(),
		keys: make(map[string]struct{}, len(keys)),
		ch:   make(chan domain.Change, subscriberBuffer),
	}
	for _, k := range keys {
		sub.keys[k] = struct{}{}
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()

	h.logger.Debug("subscriber added", zap.String("id", sub.id), zap.Strings("keys", keys))

	cancel := func() { h.remove(sub.id) }
	return sub.ch, cancel
}

func (h *changeHub) publish(change domain.Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if !sub.wants(change.Key) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
			h.logger.Debug("subscriber busy, change coalesced",
				zap.String("id", sub.id),
				zap.String("key", change.Key))
		}
	}
}

func (h *changeHub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
}

func (h *changeHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
}

func (h *changeHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (s *subscriber) wants(key string) bool {
	if len(s.keys) == 0 {
		return true
	}
	_, ok := s.keys[key]
	return ok
}
