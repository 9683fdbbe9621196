package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWatchdogSweepEvictsInactiveConnection(t *testing.T) {
	storage := NewConnectionStorage(false)
	stats := NewStatistics()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats.clock = func() time.Time { return base }

	c := newFakeConn("idle")
	storage.Add(1, c, base)
	stats.AddConnection(1)

	stats.clock = func() time.Time { return base.Add(20 * time.Minute) }
	w := NewWatchdog(storage, stats, 10*time.Minute)
	w.sweep()

	closed, code := c.isClosed()
	assert.True(t, closed)
	assert.Equal(t, 4005, code)
	assert.False(t, storage.Exists(1))
}

func TestWatchdogSweepPingsLiveConnection(t *testing.T) {
	storage := NewConnectionStorage(false)
	stats := NewStatistics()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats.clock = func() time.Time { return base }

	c := newFakeConn("live")
	storage.Add(1, c, base)
	stats.AddConnection(1)

	w := NewWatchdog(storage, stats, time.Hour)
	w.sweep()

	assert.Equal(t, 1, c.pingCalls)
	conns, ok := storage.Get(1)
	if assert.True(t, ok) {
		assert.Equal(t, LivenessAwaitingPong, conns[0].Liveness)
	}
}

func TestWatchdogSweepRemovesConnectionOnPingFailure(t *testing.T) {
	storage := NewConnectionStorage(false)
	stats := NewStatistics()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats.clock = func() time.Time { return base }

	c := newFakeConn("broken")
	c.pingErr = assertErr{}
	storage.Add(1, c, base)
	stats.AddConnection(1)

	w := NewWatchdog(storage, stats, time.Hour)
	w.sweep()

	assert.False(t, storage.Exists(1))
}

func TestWatchdogRunStopsPromptlyOnCancellation(t *testing.T) {
	storage := NewConnectionStorage(false)
	stats := NewStatistics()
	w := NewWatchdog(storage, stats, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled: Run must return without ever calling the real 60s sleep

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return promptly after context cancellation")
	}
}

type assertErr struct{}

func (assertErr) Error() string { return "ping failed" }
