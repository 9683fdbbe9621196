// Package ws adapts gorilla/websocket + gin to the chat.Conn/Server
// abstraction, so the routing core in service/chat never imports a
// transport library directly.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chatrouter/logger"
	"chatrouter/service/chat"
	"chatrouter/tools/safe"
)

const writeWait = 10 * time.Second

type sendJob struct {
	data []byte
	done func(n int, err error)
}

// wsConn is the one object that owns a *websocket.Conn. ChatServer only
// ever sees it through the chat.Conn interface; closing or writing to the
// socket always happens here, never in service/chat.
type wsConn struct {
	id     chat.ConnId
	socket *websocket.Conn
	remote string

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
	sendCh    chan sendJob
	stopped   chan struct{}
}

func newWsConn(id chat.ConnId, socket *websocket.Conn) *wsConn {
	c := &wsConn{
		id:      id,
		socket:  socket,
		remote:  socket.RemoteAddr().String(),
		sendCh:  make(chan sendJob, 64),
		stopped: make(chan struct{}),
	}
	safe.Go(c.writeLoop)
	return c
}

// writeLoop is the single writer goroutine for this connection — gorilla
// forbids concurrent calls to WriteMessage on one *Conn, so every
// SendAsync funnels through this one loop. It exits once Close closes
// sendCh and every already-enqueued job has drained, and signals stopped
// so Close knows it's safe to touch the socket directly.
func (c *wsConn) writeLoop() {
	defer close(c.stopped)
	for job := range c.sendCh {
		_ = c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.socket.WriteMessage(websocket.TextMessage, job.data)
		n := 0
		if err == nil {
			n = len(job.data)
		}
		job.done(n, err)
	}
}

func (c *wsConn) ID() chat.ConnId    { return c.id }
func (c *wsConn) RemoteAddr() string { return c.remote }

// SendAsync enqueues payload for writeLoop. The closed check and the send
// attempt happen under the same lock that Close uses to flip closed and
// close sendCh, so a SendAsync that observes closed==false is guaranteed
// to win the race against sendCh being closed underneath it — otherwise a
// send on a closed channel would panic instead of falling through to the
// backpressure/closed case.
func (c *wsConn) SendAsync(payload []byte, done func(n int, err error)) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		done(0, websocket.ErrCloseSent)
		return
	}
	select {
	case c.sendCh <- sendJob{data: payload, done: done}:
		c.mu.Unlock()
	default:
		// backpressure: the connection isn't draining fast enough.
		c.mu.Unlock()
		done(0, websocket.ErrCloseSent)
	}
}

// Ping is safe to call concurrently with the write loop: gorilla documents
// WriteControl as callable concurrently with WriteMessage.
func (c *wsConn) Ping() error {
	return c.socket.WriteControl(websocket.PingMessage, []byte{0x1}, time.Now().Add(writeWait))
}

func (c *wsConn) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.sendCh)
		c.mu.Unlock()

		<-c.stopped // writeLoop has returned; the socket is ours alone now

		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		if err := c.socket.Close(); err != nil {
			logger.Warn("closing socket: " + err.Error())
		}
	})
}
