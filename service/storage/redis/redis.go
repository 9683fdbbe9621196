// Package redis wraps a single shared go-redis client used by the remote
// Authenticator variant to check session-token validity against a cache
// populated by an external login service. It never stores chat messages.
package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	once    sync.Once
	manager *Manager
	initErr error
)

type Manager struct {
	client *redis.Client
}

type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Init establishes the shared client, pinging once to fail fast on a bad
// address. Safe to call more than once; only the first call takes effect.
func Init(c Config) error {
	once.Do(func() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Addr,
			Password: c.Password,
			DB:       c.DB,
			PoolSize: c.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			initErr = fmt.Errorf("redis: ping %s: %w", c.Addr, err)
			return
		}
		manager = &Manager{client: rdb}
	})
	return initErr
}

// Client returns the shared client, or nil if Init hasn't succeeded.
func Client() *redis.Client {
	if manager == nil {
		return nil
	}
	return manager.client
}

func Close() error {
	if manager != nil && manager.client != nil {
		return manager.client.Close()
	}
	return nil
}
