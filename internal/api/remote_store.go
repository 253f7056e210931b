package api

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

// RemoteStore implements domain.Store over the daemon's HTTP surface.
// It is what browsing contexts and the CLI run against.
type RemoteStore struct {
	client    *Client
	namespace string
}

// NewRemoteStore wraps a client.
func NewRemoteStore(client *Client, namespace string) *RemoteStore {
	return &RemoteStore{client: client, namespace: namespace}
}

func (s *RemoteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.client.Get(ctx, key)
}

func (s *RemoteStore) Set(ctx context.Context, records map[string][]byte) error {
	return s.client.Put(ctx, records)
}

// Subscribe opens a change stream. It returns after the daemon confirmed
// the subscription, so a reconcile done afterwards cannot miss a write.
func (s *RemoteStore) Subscribe(ctx context.Context, keys ...string) (<-chan domain.Change, func(), error) {
	streamCtx, cancel := context.WithCancel(ctx)
	changes, err := s.client.Changes(streamCtx, keys...)
	if err != nil {
		cancel()
		return nil, nil, err
	}

	var once sync.Once
	return changes, func() { once.Do(cancel) }, nil
}

func (s *RemoteStore) Namespace() string {
	return s.namespace
}

var _ domain.Store = (*RemoteStore)(nil)
