package infra

import (
	"sync"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// MemoryBadge implements domain.ProgressIndicator by holding the text in
// memory. The daemon reports it through the status endpoint.
type MemoryBadge struct {
	mu   sync.RWMutex
	text string
}

// NewMemoryBadge creates an empty badge.
func NewMemoryBadge() *MemoryBadge {
	return &MemoryBadge{}
}

func (b *MemoryBadge) SetText(text string) {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
}

func (b *MemoryBadge) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

var _ domain.ProgressIndicator = (*MemoryBadge)(nil)
