package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/neilotoole/slogt"
	"github.com/stretchr/testify/require"
)

func startRegistry(t *testing.T) string {
	ctx, cancel := context.WithCancel(context.Background())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := NewRegistry(ctx, slogt.New(t), RegistryConfig{Listener: l, Store: newTestStore(t)})
	t.Cleanup(func() {
		cancel()
		r.Wait()
	})
	return l.Addr().String()
}

func TestRegistry_RegisterList(t *testing.T) {
	addr := startRegistry(t)
	ctx := context.Background()
	alice := NewClient(addr, time.Second)
	bob := NewClient(addr, time.Second)

	require.NoError(t, alice.Register(ctx, "intuition.alice", "10.0.0.1:4000"))
	require.NoError(t, bob.Register(ctx, "intuition.bob", "10.0.0.2:4000"))
	require.NoError(t, bob.Register(ctx, "other.bob", "10.0.0.2:5000"))

	peers, err := alice.List(ctx, "intuition.")
	require.NoError(t, err)
	require.Equal(t, map[string]string{
		"intuition.alice": "10.0.0.1:4000",
		"intuition.bob":   "10.0.0.2:4000",
	}, peers)
}

func TestRegistry_UnregisterOnlyOwnName(t *testing.T) {
	addr := startRegistry(t)
	ctx := context.Background()
	alice := NewClient(addr, time.Second)
	mallory := NewClient(addr, time.Second)
	require.NotEqual(t, alice.Instance(), mallory.Instance())

	require.NoError(t, alice.Register(ctx, "intuition.alice", "10.0.0.1:4000"))
	err := mallory.Unregister(ctx, "intuition.alice")
	require.True(t, errors.Is(err, ErrNotOwner))

	require.NoError(t, alice.Unregister(ctx, "intuition.alice"))
	peers, err := alice.List(ctx, "intuition.")
	require.NoError(t, err)
	require.Empty(t, peers)
}

func TestRegistry_RejectsEmptyAddress(t *testing.T) {
	addr := startRegistry(t)
	err := NewClient(addr, time.Second).Register(context.Background(), "intuition.alice", "")
	require.ErrorIs(t, err, ErrRegistryUnavailable)
}

func TestClient_Unreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	_, err = NewClient(addr, 200*time.Millisecond).List(context.Background(), "intuition.")
	require.ErrorIs(t, err, ErrRegistryUnavailable)
}

func TestRegistry_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	r := NewRegistry(ctx, slogt.New(t), RegistryConfig{Listener: l, Store: newTestStore(t)})
	cancel()

	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("registry did not stop")
	}
}
