package chat

import (
	"context"
	"fmt"
	"time"

	"chatrouter/logger"
	"chatrouter/tools/errs"
)

const (
	watchdogSweepInterval = 60 * time.Second
	watchdogPongGrace     = 2 * time.Second
)

// Watchdog periodically prunes idle and unresponsive connections. It owns
// no state beyond the ConnectionStorage and Statistics it is given;
// Run blocks until ctx is cancelled, observing cancellation promptly at
// both of its sleep points, per the cooperative-cancellation requirement.
type Watchdog struct {
	storage  *ConnectionStorage
	stats    *Statistics
	lifetime time.Duration
	sleep    func(ctx context.Context, d time.Duration) bool
}

func NewWatchdog(storage *ConnectionStorage, stats *Statistics, lifetime time.Duration) *Watchdog {
	return &Watchdog{storage: storage, stats: stats, lifetime: lifetime, sleep: cancellableSleep}
}

// cancellableSleep sleeps for d or until ctx is cancelled, returning false
// if it was woken by cancellation.
func cancellableSleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run executes the watchdog loop until ctx is cancelled:
//  1. sleep 60s (cancellable)
//  2. snapshot the registry; ping or evict each connection
//  3. sleep 2s (cancellable)
//  4. disconnect-without-pong, logging the eviction count
func (w *Watchdog) Run(ctx context.Context) {
	for {
		if !w.sleep(ctx, watchdogSweepInterval) {
			logger.Infof("watchdog: stopping")
			return
		}
		w.sweep()
		if !w.sleep(ctx, watchdogPongGrace) {
			logger.Infof("watchdog: stopping")
			return
		}
		if n := w.storage.DisconnectWithoutPong(); n > 0 {
			logger.Infof("watchdog: evicted %d connection(s) without pong", n)
		}
	}
}

func (w *Watchdog) sweep() {
	snap := w.storage.Snapshot()
	for userId, conns := range snap {
		inactive := w.stats.GetInactiveTime(userId)
		for _, c := range conns {
			if inactive >= w.lifetime {
				closeWithError(c.Conn, errs.Evicted(errs.CodeInactiveConnection, fmt.Sprintf("inactive more than %d seconds (%d)", int(w.lifetime.Seconds()), int(inactive.Seconds()))))
				w.storage.Remove(userId, c.ConnId)
				continue
			}
			if err := c.Conn.Ping(); err != nil {
				logger.Warn(fmt.Sprintf("watchdog: ping failed for conn %s: %v", c.ConnId, err))
				w.storage.Remove(userId, c.ConnId)
				continue
			}
			w.storage.MarkPongWait(userId, c.ConnId)
		}
	}
}
