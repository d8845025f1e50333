package chat

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(userID string) *Client {
	return &Client{userID: userID, send: make(chan []byte, 16)}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")

	require.Nil(t, r.Register("u1", c))

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, c, got)

	_, ok = r.Lookup("u2")
	assert.False(t, ok, "absent user must not resolve")
}

func TestRegistrySecondConnectReplaces(t *testing.T) {
	r := NewRegistry()
	first := testClient("u1")
	second := testClient("u1")

	require.Nil(t, r.Register("u1", first))
	displaced := r.Register("u1", second)
	require.Same(t, first, displaced, "replacing register must return the old handle")

	got, ok := r.Lookup("u1")
	require.True(t, ok)
	assert.Same(t, second, got, "last-registered wins")
	assert.Len(t, r.Snapshot(), 1, "at most one connection per user")
}

func TestRegistryRegisterSameHandleIdempotent(t *testing.T) {
	r := NewRegistry()
	c := testClient("u1")

	r.Register("u1", c)
	assert.Nil(t, r.Register("u1", c), "re-registering the same handle displaces nothing")
}

func TestRegistryUnregisterStaleHandle(t *testing.T) {
	r := NewRegistry()
	old := testClient("u1")
	fresh := testClient("u1")

	r.Register("u1", old)
	r.Register("u1", fresh)

	// The old connection's disconnect races in after the reconnect.
	assert.False(t, r.Unregister("u1", old))

	got, ok := r.Lookup("u1")
	require.True(t, ok, "stale disconnect must not evict the newer connection")
	assert.Same(t, fresh, got)

	assert.True(t, r.Unregister("u1", fresh))
	_, ok = r.Lookup("u1")
	assert.False(t, ok)
}

func TestRegistryUnregisterAbsentIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Unregister("ghost", testClient("ghost")))
}

func TestRegistrySnapshotSorted(t *testing.T) {
	r := NewRegistry()
	for _, id := range []string{"u3", "u1", "u2"} {
		r.Register(id, testClient(id))
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, r.Snapshot())
	assert.Len(t, r.Clients(), 3)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("u%d", n)
			c := testClient(id)
			r.Register(id, c)
			r.Lookup(id)
			r.Snapshot()
			r.Unregister(id, c)
		}(i)
	}
	wg.Wait()

	assert.Empty(t, r.Snapshot())
}
