package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPutDelete(t *testing.T) {
	s := NewMemoryStore(nil)
	defer s.Close()
	ns := s.Open("ROOM1")

	_, ok, err := ns.Get(KeyGameState)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, ns.Put(KeyGameState, []byte(`{"round":3}`)))
	v, ok, err := ns.Get(KeyGameState)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte(`{"round":3}`), v)

	require.NoError(t, ns.Delete(KeyGameState))
	_, ok, err = ns.Get(KeyGameState)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenIsStable(t *testing.T) {
	s := NewMemoryStore(nil)
	defer s.Close()

	require.NoError(t, s.Open("ROOM1").Put(KeyRoom, []byte("x")))

	// Reopening after the writer goes away sees the same data.
	_, ok, err := s.Open("ROOM1").Get(KeyRoom)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNamespacesAreIsolated(t *testing.T) {
	s := NewMemoryStore(nil)
	defer s.Close()

	require.NoError(t, s.Open("ROOM1").Put(KeyRoom, []byte("a")))
	_, ok, err := s.Open("ROOM2").Get(KeyRoom)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAlarmFires(t *testing.T) {
	fired := make(chan string, 1)
	s := NewMemoryStore(func(nsID string, at time.Time) { fired <- nsID })
	defer s.Close()

	ns := s.Open("ROOM1")
	require.NoError(t, ns.SetAlarm(time.Now().Add(5*time.Millisecond)))

	select {
	case id := <-fired:
		assert.Equal(t, "ROOM1", id)
	case <-time.After(time.Second):
		t.Fatal("alarm never fired")
	}

	_, ok, err := ns.GetAlarm()
	require.NoError(t, err)
	assert.False(t, ok, "fired alarm should be cleared")
}

func TestSetAlarmReplacesPending(t *testing.T) {
	var mu sync.Mutex
	var fires []time.Time
	s := NewMemoryStore(func(nsID string, at time.Time) {
		mu.Lock()
		fires = append(fires, at)
		mu.Unlock()
	})
	defer s.Close()

	ns := s.Open("ROOM1")
	first := time.Now().Add(10 * time.Millisecond)
	second := time.Now().Add(30 * time.Millisecond)
	require.NoError(t, ns.SetAlarm(first))
	require.NoError(t, ns.SetAlarm(second))

	at, ok, err := ns.GetAlarm()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, at)

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fires, 1, "only the replacement alarm may fire")
	assert.Equal(t, second, fires[0])
}

func TestDeleteAlarm(t *testing.T) {
	fired := make(chan string, 1)
	s := NewMemoryStore(func(nsID string, at time.Time) { fired <- nsID })
	defer s.Close()

	ns := s.Open("ROOM1")
	require.NoError(t, ns.SetAlarm(time.Now().Add(10*time.Millisecond)))
	require.NoError(t, ns.DeleteAlarm())

	select {
	case <-fired:
		t.Fatal("cancelled alarm fired")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropCancelsAlarmAndData(t *testing.T) {
	fired := make(chan string, 1)
	s := NewMemoryStore(func(nsID string, at time.Time) { fired <- nsID })
	defer s.Close()

	ns := s.Open("ROOM1")
	require.NoError(t, ns.Put(KeyRoom, []byte("x")))
	require.NoError(t, ns.SetAlarm(time.Now().Add(10*time.Millisecond)))
	require.NoError(t, s.Drop("ROOM1"))

	_, ok, err := s.Open("ROOM1").Get(KeyRoom)
	require.NoError(t, err)
	assert.False(t, ok)

	select {
	case <-fired:
		t.Fatal("dropped namespace's alarm fired")
	case <-time.After(50 * time.Millisecond):
	}
}
