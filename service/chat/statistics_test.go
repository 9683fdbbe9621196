package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatisticsCountersAccumulate(t *testing.T) {
	s := NewStatistics()
	s.AddConnection(1)
	s.AddConnection(1)
	s.AddDisconnection(1)
	s.AddSendMessage(1)
	s.AddReceivedMessage(1)
	s.AddBytesTransferred(1, 100)
	s.AddBytesTransferred(1, 50)

	snap := s.Snapshot()
	u, ok := snap[1]
	require.True(t, ok)
	assert.Equal(t, uint64(2), u.Connections)
	assert.Equal(t, uint64(1), u.Disconnections)
	assert.Equal(t, uint64(1), u.SentCount)
	assert.Equal(t, uint64(1), u.ReceivedCount)
	assert.Equal(t, uint64(150), u.BytesTransferred)
}

func TestStatisticsBytesTransferredIgnoresNonPositive(t *testing.T) {
	s := NewStatistics()
	s.AddBytesTransferred(1, 0)
	s.AddBytesTransferred(1, -5)

	snap := s.Snapshot()
	u, ok := snap[1]
	require.True(t, ok) // entry created lazily on first reference regardless
	assert.Equal(t, uint64(0), u.BytesTransferred)
}

func TestStatisticsGetInactiveTimeUnreferencedUser(t *testing.T) {
	s := NewStatistics()
	d := s.GetInactiveTime(42)
	assert.Greater(t, d, 24*time.Hour*365, "a never-seen user must read as inactive since the epoch")
}

func TestStatisticsGetInactiveTimeUsesInjectedClock(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewStatistics()
	s.clock = func() time.Time { return base }
	s.AddConnection(1)

	s.clock = func() time.Time { return base.Add(90 * time.Second) }
	assert.Equal(t, 90*time.Second, s.GetInactiveTime(1))
}

func TestStatisticsSnapshotIsACopy(t *testing.T) {
	s := NewStatistics()
	s.AddConnection(1)

	snap := s.Snapshot()
	u := snap[1]
	u.Connections = 999

	fresh := s.Snapshot()
	assert.Equal(t, uint64(1), fresh[1].Connections)
}
