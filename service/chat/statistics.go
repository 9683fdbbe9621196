package chat

import (
	"sync"
	"time"
)

// UserStats holds one user's counters. All fields are read through
// Statistics' mutex; there is no atomics-per-field variant because most
// counters are updated together with a timestamp.
type UserStats struct {
	UserId            uint64
	Connections       uint64
	Disconnections    uint64
	SentCount         uint64
	ReceivedCount     uint64
	BytesTransferred  uint64
	LastSentAt        time.Time
	LastReceivedAt    time.Time
	lastActivity      time.Time
}

// Statistics aggregates per-user counters, created lazily on first
// reference and retained for the process lifetime.
type Statistics struct {
	mu    sync.Mutex
	users map[uint64]*UserStats
	clock func() time.Time
}

func NewStatistics() *Statistics {
	return &Statistics{users: make(map[uint64]*UserStats), clock: time.Now}
}

func (s *Statistics) entry(userId uint64) *UserStats {
	u := s.users[userId]
	if u == nil {
		u = &UserStats{UserId: userId, lastActivity: s.clock()}
		s.users[userId] = u
	}
	return u
}

func (s *Statistics) AddConnection(userId uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.entry(userId)
	u.Connections++
	u.lastActivity = s.clock()
}

func (s *Statistics) AddDisconnection(userId uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.entry(userId)
	u.Disconnections++
	u.lastActivity = s.clock()
}

func (s *Statistics) AddSendMessage(userId uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.entry(userId)
	u.SentCount++
	u.LastSentAt = s.clock()
	u.lastActivity = u.LastSentAt
}

func (s *Statistics) AddReceivedMessage(userId uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.entry(userId)
	u.ReceivedCount++
	u.LastReceivedAt = s.clock()
	u.lastActivity = u.LastReceivedAt
}

func (s *Statistics) AddBytesTransferred(userId uint64, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.entry(userId)
	if n <= 0 {
		return
	}
	u.BytesTransferred += uint64(n)
}

// GetInactiveTime returns the time since userId's last activity. A user
// never referenced is considered inactive since the epoch.
func (s *Statistics) GetInactiveTime(userId uint64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[userId]
	if u == nil {
		return time.Since(time.Unix(0, 0))
	}
	return s.clock().Sub(u.lastActivity)
}

// Snapshot returns a read-only copy of every known user's stats.
func (s *Statistics) Snapshot() map[uint64]UserStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]UserStats, len(s.users))
	for id, u := range s.users {
		out[id] = *u
	}
	return out
}
