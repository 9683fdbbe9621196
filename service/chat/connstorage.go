package chat

import (
	"sync"
	"time"

	"chatrouter/tools/errs"
)

// ConnectionStorage is the thread-safe many-to-many registry of live
// connections, keyed first by user then by connection id. A single mutex
// protects both maps; every operation holds it for the minimum amount of
// work and iteration goes through Snapshot rather than locking for the
// whole traversal, matching the shared-resource discipline that governs
// every mutex-guarded component in this package.
type ConnectionStorage struct {
	mu    sync.Mutex
	byUser map[uint64]map[ConnId]*Connection

	// AllowOverrideConnection, when true, makes Add close any existing
	// connections of the same user (with POLICY_VIOLATION) before
	// registering the new one, instead of allowing multiple connections
	// per user.
	AllowOverrideConnection bool
}

func NewConnectionStorage(allowOverrideConnection bool) *ConnectionStorage {
	return &ConnectionStorage{
		byUser:                  make(map[uint64]map[ConnId]*Connection),
		AllowOverrideConnection: allowOverrideConnection,
	}
}

// Add registers conn under user. If AllowOverrideConnection is set, any
// connections already registered for user are closed with
// POLICY_VIOLATION first.
func (s *ConnectionStorage) Add(userId uint64, conn Conn, now time.Time) {
	s.mu.Lock()
	var evicted []Conn
	if s.AllowOverrideConnection {
		if existing := s.byUser[userId]; existing != nil {
			for id, c := range existing {
				evicted = append(evicted, c.Conn)
				delete(existing, id)
			}
			if len(existing) == 0 {
				delete(s.byUser, userId)
			}
		}
	}
	if s.byUser[userId] == nil {
		s.byUser[userId] = make(map[ConnId]*Connection)
	}
	s.byUser[userId][conn.ID()] = &Connection{
		ConnId:       conn.ID(),
		UserId:       userId,
		Remote:       conn.RemoteAddr(),
		OpenedAt:     now,
		LastActivity: now,
		Liveness:     LivenessActive,
		Conn:         conn,
	}
	s.mu.Unlock()

	for _, c := range evicted {
		closeWithError(c, errs.Evicted(errs.CodePolicyViolation, "replaced by a newer connection for the same user"))
	}
}

// Remove removes the (userId, connId) pair. Idempotent: removing an
// absent pair is a no-op.
func (s *ConnectionStorage) Remove(userId uint64, connId ConnId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(userId, connId)
}

func (s *ConnectionStorage) removeLocked(userId uint64, connId ConnId) {
	mm := s.byUser[userId]
	if mm == nil {
		return
	}
	delete(mm, connId)
	if len(mm) == 0 {
		delete(s.byUser, userId)
	}
}

// RemoveConnection removes a connection looked up by its ConnId alone
// (the onClose transport callback knows only the ConnId, not the user).
// Idempotent.
func (s *ConnectionStorage) RemoveConnection(connId ConnId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for userId, mm := range s.byUser {
		if _, ok := mm[connId]; ok {
			delete(mm, connId)
			if len(mm) == 0 {
				delete(s.byUser, userId)
			}
			return
		}
	}
}

// Exists reports whether userId has at least one live connection.
func (s *ConnectionStorage) Exists(userId uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[userId]) > 0
}

// Size returns the number of live connections for userId.
func (s *ConnectionStorage) Size(userId uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[userId])
}

// Get returns a snapshot slice of userId's connections. The bool result
// is false (NotFound) when there are none — callers treat that the same
// as Size()==0.
func (s *ConnectionStorage) Get(userId uint64) ([]*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mm := s.byUser[userId]
	if len(mm) == 0 {
		return nil, false
	}
	out := make([]*Connection, 0, len(mm))
	for _, c := range mm {
		out = append(out, c)
	}
	return out, true
}

// MarkPongWait marks a connection as awaiting a pong response.
func (s *ConnectionStorage) MarkPongWait(userId uint64, connId ConnId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.byUser[userId]; mm != nil {
		if c := mm[connId]; c != nil {
			c.Liveness = LivenessAwaitingPong
		}
	}
}

// MarkPongReceived marks a connection active again and refreshes its
// last-activity timestamp.
func (s *ConnectionStorage) MarkPongReceived(userId uint64, connId ConnId, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.byUser[userId]; mm != nil {
		if c := mm[connId]; c != nil {
			c.Liveness = LivenessActive
			c.LastActivity = now
		}
	}
}

// MarkActivity refreshes last-activity without touching liveness; used on
// every inbound data frame, not only pongs.
func (s *ConnectionStorage) MarkActivity(userId uint64, connId ConnId, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mm := s.byUser[userId]; mm != nil {
		if c := mm[connId]; c != nil {
			c.LastActivity = now
		}
	}
}

// DisconnectWithoutPong closes and removes every connection still marked
// awaiting-pong, returning the number removed.
func (s *ConnectionStorage) DisconnectWithoutPong() int {
	s.mu.Lock()
	var stale []*Connection
	for userId, mm := range s.byUser {
		for connId, c := range mm {
			if c.Liveness == LivenessAwaitingPong {
				stale = append(stale, c)
				delete(mm, connId)
			}
		}
		if len(mm) == 0 {
			delete(s.byUser, userId)
		}
	}
	s.mu.Unlock()

	for _, c := range stale {
		closeWithError(c.Conn, errs.Evicted(errs.CodeInactiveConnection, "no pong received within the watchdog window"))
	}
	return len(stale)
}

// Snapshot copies the full registry for watchdog iteration without
// holding the lock for the whole sweep.
func (s *ConnectionStorage) Snapshot() map[uint64]map[ConnId]*Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint64]map[ConnId]*Connection, len(s.byUser))
	for userId, mm := range s.byUser {
		inner := make(map[ConnId]*Connection, len(mm))
		for connId, c := range mm {
			cp := *c
			inner[connId] = &cp
		}
		out[userId] = inner
	}
	return out
}
