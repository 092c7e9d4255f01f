package stream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsUniqueIDs(t *testing.T) {
	c := NewCentre()
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := c.Register("frag-1", "203.0.113.1", newFakeTransport())
		require.NoError(t, err)
		require.Len(t, id, 10)
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Equal(t, 10, c.CountFor("frag-1"))
	assert.Equal(t, 10, c.CountAll())
	assert.Len(t, c.ListFor("frag-1"), 10)
}

func TestRegisterConcurrent(t *testing.T) {
	c := NewCentre()
	var wg sync.WaitGroup
	ids := make(chan string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := c.Register("frag-1", "203.0.113.1", newFakeTransport())
			assert.NoError(t, err)
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate connection ID %q", id)
		seen[id] = true
	}
	assert.Equal(t, 50, c.CountAll())
}

func TestUnregisterIdempotent(t *testing.T) {
	c := NewCentre()
	id, err := c.Register("frag-1", "203.0.113.1", newFakeTransport())
	require.NoError(t, err)

	assert.True(t, c.Unregister("frag-1", id))
	assert.False(t, c.Unregister("frag-1", id))
	assert.Equal(t, 0, c.CountAll())

	// The emptied group is dropped entirely.
	assert.Empty(t, c.Groups())
}

func TestReapDeadSessions(t *testing.T) {
	c := NewCentre()
	alive := newFakeTransport()
	dead := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", alive)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", dead)
	require.NoError(t, err)

	require.NoError(t, dead.Close("gone"))
	assert.Equal(t, 1, c.CountAll())
	assert.Equal(t, 1, c.CountFor("frag-1"))
}

func TestCloseSpecificConnection(t *testing.T) {
	c := NewCentre()
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	id1, err := c.Register("frag-1", "203.0.113.1", t1)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", t2)
	require.NoError(t, err)

	assert.True(t, c.Close("frag-1", id1))
	assert.False(t, t1.Connected())
	assert.Equal(t, "This connection was closed.", t1.reason())
	assert.True(t, t2.Connected())
	assert.Equal(t, 1, c.CountFor("frag-1"))
}

func TestCloseWholeFragment(t *testing.T) {
	c := NewCentre()
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	other := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", t1)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", t2)
	require.NoError(t, err)
	_, err = c.Register("frag-2", "203.0.113.3", other)
	require.NoError(t, err)

	assert.True(t, c.Close("frag-1", ""))
	assert.False(t, t1.Connected())
	assert.False(t, t2.Connected())
	assert.Equal(t, "This fragment stream was closed.", t1.reason())
	assert.Equal(t, 0, c.CountFor("frag-1"))
	assert.True(t, other.Connected())
	assert.Equal(t, 1, c.CountAll())
}

func TestCloseByConnectionIDOnly(t *testing.T) {
	c := NewCentre()
	t1 := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", newFakeTransport())
	require.NoError(t, err)
	id, err := c.Register("frag-2", "203.0.113.2", t1)
	require.NoError(t, err)

	assert.True(t, c.Close("", id))
	assert.False(t, t1.Connected())
	assert.Equal(t, 0, c.CountFor("frag-2"))
	assert.Equal(t, 1, c.CountAll())
}

func TestCloseNoMatch(t *testing.T) {
	c := NewCentre()
	assert.False(t, c.Close("frag-1", "nope"))
	assert.False(t, c.Close("frag-1", ""))
	assert.False(t, c.Close("", "nope"))
	assert.False(t, c.Close("", ""))
}

func TestShutdown(t *testing.T) {
	c := NewCentre()
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", t1)
	require.NoError(t, err)
	_, err = c.Register("frag-2", "203.0.113.2", t2)
	require.NoError(t, err)

	c.Shutdown()
	assert.Equal(t, 0, c.CountAll())
	assert.False(t, t1.Connected())
	assert.False(t, t2.Connected())
	assert.Equal(t, "Stream centre was shutdown.", t1.reason())
}

func TestBroadcast(t *testing.T) {
	c := NewCentre()
	t1 := newFakeTransport()
	t2 := newFakeTransport()
	other := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", t1)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", t2)
	require.NoError(t, err)
	_, err = c.Register("frag-2", "203.0.113.3", other)
	require.NoError(t, err)

	c.Broadcast("frag-1", Normal("hello"))

	require.Len(t, t1.frames(), 1)
	assert.Equal(t, "hello", t1.frames()[0].Message)
	require.Len(t, t2.frames(), 1)
	assert.Empty(t, other.frames())
}

func TestBroadcastIsolatesFailures(t *testing.T) {
	c := NewCentre()
	failing := newFakeTransport()
	failing.failSends = true
	healthy := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", failing)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", healthy)
	require.NoError(t, err)

	c.Broadcast("frag-1", Normal("hello"))
	require.Len(t, healthy.frames(), 1)
}

func TestBroadcastSkipsDeadSessions(t *testing.T) {
	c := NewCentre()
	dead := newFakeTransport()
	healthy := newFakeTransport()
	_, err := c.Register("frag-1", "203.0.113.1", dead)
	require.NoError(t, err)
	_, err = c.Register("frag-1", "203.0.113.2", healthy)
	require.NoError(t, err)

	require.NoError(t, dead.Close("gone"))
	c.Broadcast("frag-1", Normal("hello"))

	require.Len(t, healthy.frames(), 1)
	assert.Empty(t, dead.frames())
	assert.Equal(t, 1, c.CountFor("frag-1"))
}

func TestCeilingSetters(t *testing.T) {
	c := NewCentre()
	assert.Equal(t, DefaultMaxConnections, c.MaxConnections())
	assert.Equal(t, DefaultMaxPerFragment, c.MaxPerFragment())

	c.SetMaxConnections(3)
	c.SetMaxPerFragment(2)
	assert.Equal(t, 3, c.MaxConnections())
	assert.Equal(t, 2, c.MaxPerFragment())

	assert.False(t, c.Enabled())
	c.SetEnabled(true)
	assert.True(t, c.Enabled())
}
