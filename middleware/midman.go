package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

// MiddlewareManager lets callers register/deregister gin middleware at
// runtime and collapses the whole set into one handler via Use.
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []gin.HandlerFunc
}

// Config explicitly initializes the global manager at startup (optional;
// Manager lazily initializes it anyway).
func Config() {
	once.Do(func() {
		globalMgr = NewManager()
	})
}

// NewManager creates a standalone instance, independent of the global one.
func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Manager returns the global instance, lazily initialized and safe for
// concurrent use.
func Manager() *MiddlewareManager {
	once.Do(func() {
		if globalMgr == nil {
			globalMgr = NewManager()
		}
	})
	return globalMgr
}

// Add registers a middleware, appended after whatever is already there.
func (m *MiddlewareManager) Add(h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = append(m.mids, h)
}

// Clear removes every registered middleware.
func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Use returns the single gin.HandlerFunc that runs every registered
// middleware in order, mounted on an Engine as its overall chain.
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]gin.HandlerFunc{}, m.mids...) // snapshot, so Add/Clear mid-request can't race the iteration
		m.mu.RUnlock()

		for _, h := range handlers {
			h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
