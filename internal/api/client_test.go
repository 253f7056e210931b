package api

import (
	"context"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/focusflow/internal/domain"
)

func newTestClient(t *testing.T) (*Client, *fakeController, *memStore) {
	t.Helper()
	srv, controller, store := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, zap.NewNop()), controller, store
}

func TestClient_ControlRoundTrip(t *testing.T) {
	client, controller, _ := newTestClient(t)
	ctx := context.Background()

	state, err := client.Start(ctx, domain.StatusShortBreak)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShortBreak, state.Status)
	assert.Equal(t, []domain.TimerStatus{domain.StatusShortBreak}, controller.started)

	state, err = client.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.IdleState(), state)

	controller.report = domain.StatusReport{Badge: "12m", SessionsCompleted: 1}
	report, err := client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "12m", report.Badge)

	require.NoError(t, client.TestSound(ctx))
	assert.Equal(t, 1, controller.sounds)
}

func TestClient_ErrorsMapToSentinels(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()

	_, err := client.Start(ctx, domain.TimerStatus("nap"))
	assert.True(t, errors.Is(err, domain.ErrInvalidKind))

	err = client.Put(ctx, map[string][]byte{domain.KeyStats: []byte(`{}`)})
	assert.True(t, errors.Is(err, domain.ErrReadOnlyKey))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 403, apiErr.Status)
}

func TestClient_DaemonNotRunning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := NewClient(addr, zap.NewNop())
	_, err = client.Status(context.Background())

	assert.True(t, errors.Is(err, domain.ErrDaemonNotRunning))
}

func TestRemoteStore_GetSet(t *testing.T) {
	client, _, _ := newTestClient(t)
	store := NewRemoteStore(client, "local")
	ctx := context.Background()

	_, found, err := store.Get(ctx, domain.KeySettings)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, map[string][]byte{domain.KeySettings: []byte(`{"focusTime":45}`)}))

	value, found, err := store.Get(ctx, domain.KeySettings)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"focusTime":45}`, string(value))
	assert.Equal(t, "local", store.Namespace())
}

func TestRemoteStore_SubscribeStreamsChanges(t *testing.T) {
	client, _, mem := newTestClient(t)
	store := NewRemoteStore(client, "local")
	ctx := context.Background()

	changes, cancel, err := store.Subscribe(ctx, domain.KeySettings)
	require.NoError(t, err)
	defer cancel()
	require.Equal(t, 1, mem.subscriberCount(), "subscription must exist once Subscribe returns")

	require.NoError(t, mem.Set(ctx, map[string][]byte{domain.KeySettings: []byte(`{"focusTime":50}`)}))

	select {
	case change := <-changes:
		assert.Equal(t, domain.KeySettings, change.Key)
		assert.JSONEq(t, `{"focusTime":50}`, string(change.NewValue))
	case <-time.After(2 * time.Second):
		t.Fatal("change not streamed")
	}
}

func TestRemoteStore_CancelClosesStream(t *testing.T) {
	client, _, _ := newTestClient(t)
	store := NewRemoteStore(client, "local")

	changes, cancel, err := store.Subscribe(context.Background())
	require.NoError(t, err)
	cancel()
	cancel()

	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after cancel")
	}
}

func TestEventReader(t *testing.T) {
	body := "event:ready\ndata:abc\n\n: comment\n\nevent:change\ndata:{\"key\":\"stats\"}\n\nevent: ping\ndata: x\n\n"
	r := newEventReader(strings.NewReader(body))

	ev, err := r.next()
	require.NoError(t, err)
	assert.Equal(t, event{name: "ready", data: "abc"}, ev)

	ev, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, event{name: "change", data: `{"key":"stats"}`}, ev)

	ev, err = r.next()
	require.NoError(t, err)
	assert.Equal(t, event{name: "ping", data: "x"}, ev)

	_, err = r.next()
	assert.Error(t, err)
}
