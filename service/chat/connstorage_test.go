package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionStorageAddAndGet(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	c1 := newFakeConn("c1")
	s.Add(42, c1, now)

	assert.True(t, s.Exists(42))
	assert.Equal(t, 1, s.Size(42))
	conns, ok := s.Get(42)
	require.True(t, ok)
	require.Len(t, conns, 1)
	assert.Equal(t, ConnId("c1"), conns[0].ConnId)
}

func TestConnectionStorageMultipleConnectionsPerUser(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	s.Add(1, newFakeConn("a"), now)
	s.Add(1, newFakeConn("b"), now)

	assert.Equal(t, 2, s.Size(1))
}

func TestConnectionStorageOverridePolicyClosesPrior(t *testing.T) {
	s := NewConnectionStorage(true)
	now := time.Now()
	old := newFakeConn("old")
	s.Add(1, old, now)
	s.Add(1, newFakeConn("new"), now)

	assert.Equal(t, 1, s.Size(1))
	closed, code := old.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 1008, code) // CodePolicyViolation
}

func TestConnectionStorageRemoveIsIdempotent(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	s.Add(1, newFakeConn("a"), now)

	s.Remove(1, "a")
	assert.False(t, s.Exists(1))
	s.Remove(1, "a") // no panic, no-op
	s.Remove(99, "missing")
}

func TestConnectionStorageRemoveConnectionByIdAlone(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	s.Add(5, newFakeConn("x"), now)

	s.RemoveConnection("x")
	assert.False(t, s.Exists(5))
}

func TestConnectionStorageGetNotFound(t *testing.T) {
	s := NewConnectionStorage(false)
	conns, ok := s.Get(999)
	assert.False(t, ok)
	assert.Nil(t, conns)
}

func TestConnectionStorageLivenessTransitions(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	s.Add(1, newFakeConn("a"), now)

	s.MarkPongWait(1, "a")
	conns, _ := s.Get(1)
	require.Len(t, conns, 1)
	assert.Equal(t, LivenessAwaitingPong, conns[0].Liveness)

	s.MarkPongReceived(1, "a", now.Add(time.Second))
	conns, _ = s.Get(1)
	assert.Equal(t, LivenessActive, conns[0].Liveness)
}

func TestConnectionStorageDisconnectWithoutPong(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	stale := newFakeConn("stale")
	alive := newFakeConn("alive")
	s.Add(1, stale, now)
	s.Add(2, alive, now)

	s.MarkPongWait(1, "stale")

	n := s.DisconnectWithoutPong()
	assert.Equal(t, 1, n)
	assert.False(t, s.Exists(1))
	assert.True(t, s.Exists(2))
	closed, code := stale.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 4005, code) // CodeInactiveConnection
}

func TestConnectionStorageSnapshotIsACopy(t *testing.T) {
	s := NewConnectionStorage(false)
	now := time.Now()
	s.Add(1, newFakeConn("a"), now)

	snap := s.Snapshot()
	snap[1]["a"].Liveness = LivenessAwaitingPong

	conns, _ := s.Get(1)
	assert.Equal(t, LivenessActive, conns[0].Liveness, "mutating a snapshot entry must not affect live storage")
}
