package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"chatrouter/auth"
	"chatrouter/logger"
	"chatrouter/tools/errs"
	"chatrouter/tools/safe"
)

// Opcode classifies an inbound WebSocket frame for the message-receive
// protocol.
type Opcode int

const (
	OpText Opcode = iota
	OpBinary
	OpPong
	OpFragmentBeginText
	OpFragmentBeginBinary
	OpFragmentContinue
	OpFragmentEnd
)

type MessageListener func(Payload)
type StopListener func()

// ServerOptions groups the mutable server-wide settings that
// setMessageSizeLimit/setAuth/setEnabledMessageDeliveryStatus/
// setThreadPoolSize change after construction, matching the ChatServer
// public operation set.
type ServerOptions struct {
	MaxMessageSize         int64
	EnableSendBack         bool
	IgnoreTypesSendBack    []string
	EnableDeliveryStatus   bool
	EnableUndeliveredQueue bool
	ThreadPoolSize         int
	WatchdogEnabled        bool
	WatchdogLifetime       time.Duration
}

// ChatServer is the orchestrator: it binds transport callbacks (HandleOpen
// / HandleMessage / HandleClose / HandleError), owns ConnectionStorage,
// FrameBuffer, UndeliveredQueue, Statistics and the Watchdog, and runs the
// routing algorithm described by the message-receive and delivery
// protocols.
type ChatServer struct {
	// mu coordinates onMessage handling with sendTo's connection
	// enumeration, the one place this package needs more than a single
	// component's own mutex: it guards against a connection being
	// concurrently removed mid fan-out.
	mu sync.Mutex

	storage     *ConnectionStorage
	frames      *FrameBuffer
	undelivered *UndeliveredQueue
	stats       *Statistics
	watchdog    *Watchdog

	watchdogCancel context.CancelFunc
	watchdogDone   chan struct{}

	authenticator auth.Authenticator

	opts ServerOptions

	listenersMu sync.RWMutex
	listeners   []MessageListener
	stopListeners []StopListener

	clock func() time.Time
}

func NewChatServer(authenticator auth.Authenticator, opts ServerOptions) *ChatServer {
	if authenticator == nil {
		authenticator = auth.NoneAuthenticator{}
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 10 * 1024 * 1024
	}
	ignore := make(map[string]struct{}, len(opts.IgnoreTypesSendBack))
	for _, t := range opts.IgnoreTypesSendBack {
		ignore[strings.ToLower(t)] = struct{}{}
	}
	storage := NewConnectionStorage(false)
	stats := NewStatistics()

	s := &ChatServer{
		storage:       storage,
		frames:        NewFrameBuffer(),
		undelivered:   NewUndeliveredQueue(opts.EnableUndeliveredQueue),
		stats:         stats,
		authenticator: authenticator,
		opts:          opts,
		clock:         time.Now,
	}
	s.watchdog = NewWatchdog(storage, stats, opts.WatchdogLifetime)
	return s
}

func (s *ChatServer) now() time.Time { return s.clock() }

// closeWithError logs ce's kind and message, then closes conn with ce's
// wire close code. Every server-initiated close in this package goes
// through here, so a protocol rejection and a watchdog eviction leave the
// same shape of diagnostic behind.
func closeWithError(conn Conn, ce *errs.CodeError) {
	logger.Warn(fmt.Sprintf("closing connection %s (%s): %s", conn.ID(), ce.Kind, ce.Error()))
	conn.Close(ce.Code, ce.Msg)
}

// ---- public configuration operations ----

func (s *ChatServer) SetMessageSizeLimit(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.MaxMessageSize = bytes
}

func (s *ChatServer) SetAuth(a auth.Authenticator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticator = a
}

func (s *ChatServer) SetEnabledMessageDeliveryStatus(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.EnableDeliveryStatus = enabled
}

func (s *ChatServer) SetThreadPoolSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.ThreadPoolSize = n
}

func (s *ChatServer) AddMessageListener(cb MessageListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, cb)
}

func (s *ChatServer) AddStopListener(cb StopListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.stopListeners = append(s.stopListeners, cb)
}

func (s *ChatServer) Statistics() *Statistics { return s.stats }

// RunService starts the watchdog, if configured. The transport itself is
// started by its own package; ChatServer only owns the watchdog's
// lifecycle.
func (s *ChatServer) RunService(ctx context.Context) {
	if !s.opts.WatchdogEnabled {
		return
	}
	wctx, cancel := context.WithCancel(ctx)
	s.watchdogCancel = cancel
	s.watchdogDone = make(chan struct{})
	go func() {
		defer close(s.watchdogDone)
		s.watchdog.Run(wctx)
	}()
}

// StopService cancels the watchdog and invokes every stop listener.
func (s *ChatServer) StopService() {
	if s.watchdogCancel != nil {
		s.watchdogCancel()
		<-s.watchdogDone
	}
	s.listenersMu.RLock()
	stopListeners := append([]StopListener{}, s.stopListeners...)
	s.listenersMu.RUnlock()
	for _, cb := range stopListeners {
		safe.Call("stop listener", cb)
	}
}

// ---- connection-open protocol (4.8.1) ----

// OpenRequest carries the upgrade request's query parameters and headers.
type OpenRequest struct {
	Query   map[string]string
	Headers http.Header
}

// HandleOpen runs the connection-open protocol: authenticate, parse the
// required id query parameter, register the connection, and drain any
// undelivered queue for that user before returning (so draining precedes
// any message the transport hands to HandleMessage afterwards).
// HandleOpen returns the resolved UserId and whether the connection was
// accepted. On rejection it has already closed conn with the appropriate
// code; callers must not start reading from the connection afterwards.
func (s *ChatServer) HandleOpen(conn Conn, req OpenRequest) (uint64, bool) {
	if !s.authenticator.Validate(auth.Request{Query: req.Query, Headers: req.Headers}) {
		closeWithError(conn, errs.Authentication("unauthorized"))
		return 0, false
	}

	idStr := req.Query["id"]
	if idStr == "" {
		closeWithError(conn, errs.Protocol(errs.CodeInvalidQueryParams, "missing required query parameter: id"))
		return 0, false
	}
	userId, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		closeWithError(conn, errs.Protocol(errs.CodeInvalidQueryParams, fmt.Sprintf("id %q is not a valid unsigned integer", idStr)))
		return 0, false
	}

	s.storage.Add(userId, conn, s.now())
	s.stats.AddConnection(userId)

	for _, payload := range s.undelivered.Drain(userId) {
		s.send(payload)
	}
	return userId, true
}

// HandleClose runs the close protocol: no-op if the connection wasn't
// registered, otherwise records a disconnection and removes it.
func (s *ChatServer) HandleClose(userId uint64, connId ConnId) {
	s.mu.Lock()
	defer s.mu.Unlock()
	conns, _ := s.storage.Get(userId)
	for _, c := range conns {
		if c.ConnId == connId {
			s.stats.AddDisconnection(userId)
			s.storage.Remove(userId, connId)
			return
		}
	}
}

// HandleError logs a transport-level error for a connection; the
// transport decides independently whether to close it.
func (s *ChatServer) HandleError(connId ConnId, err error) {
	logger.Warn(fmt.Sprintf("transport error on connection %s: %v", connId, err))
}

// ---- message-receive protocol (4.8.2) ----

func (s *ChatServer) HandleMessage(conn Conn, userId uint64, op Opcode, data []byte) {
	s.storage.MarkActivity(userId, conn.ID(), s.now())

	switch op {
	case OpPong:
		s.storage.MarkPongReceived(userId, conn.ID(), s.now())
		return
	case OpFragmentBeginText, OpFragmentBeginBinary:
		s.frames.Write(userId, data, true)
		return
	case OpFragmentContinue:
		s.frames.Write(userId, data, false)
		return
	case OpFragmentEnd:
		buf := s.frames.Read(userId, true)
		buf = append(buf, data...)
		s.handleCompletePayload(conn, userId, buf, false)
		return
	default:
		s.handleCompletePayload(conn, userId, data, op == OpBinary)
	}
}

func (s *ChatServer) handleCompletePayload(conn Conn, userId uint64, data []byte, isBinary bool) {
	s.mu.Lock()
	maxSize := s.opts.MaxMessageSize
	sendBack := s.opts.EnableSendBack
	s.mu.Unlock()

	if int64(len(data)) > maxSize {
		closeWithError(conn, errs.Protocol(errs.CodeMessageTooBig, fmt.Sprintf("message of %d bytes exceeds the %d byte limit", len(data), maxSize)))
		return
	}

	payload := ParsePayload(data, isBinary)
	if !payload.Valid {
		closeWithError(conn, errs.Protocol(errs.CodeInvalidPayload, payload.Error))
		return
	}

	if sendBack && !s.isIgnoredSendBackType(payload.Type) && !payload.IsForBot() {
		s.sendTo(payload.Sender, payload)
	}

	s.send(payload)
}

func (s *ChatServer) isIgnoredSendBackType(t string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ignored := range s.opts.IgnoreTypesSendBack {
		if strings.EqualFold(ignored, t) {
			return true
		}
	}
	return false
}

// ---- routing (4.8.3 / 4.8.4 / 4.8.5 / 4.8.6) ----

// send invokes every message listener, then fans the payload out to every
// live connection of every non-bot recipient.
func (s *ChatServer) send(payload Payload) {
	s.callListeners(payload)
	if payload.IsForBot() {
		return
	}
	for _, uid := range payload.Recipients {
		if uid == BotUserId {
			continue
		}
		s.sendTo(uid, payload)
	}
}

func (s *ChatServer) callListeners(payload Payload) {
	s.listenersMu.RLock()
	listeners := append([]MessageListener{}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, l := range listeners {
		cb := l
		safe.Call("message listener", func() { cb(payload) })
	}
}

// sendTo delivers payload to every live connection of uid. The lock held
// here coordinates enumeration with HandleClose's concurrent removal of a
// connection mid fan-out.
func (s *ChatServer) sendTo(uid uint64, payload Payload) {
	s.mu.Lock()
	conns, ok := s.storage.Get(uid)
	s.mu.Unlock()

	if !ok || len(conns) == 0 {
		s.handleUndeliverable(uid, payload)
		s.onMessageSent(payload.WithRecipient(uid), 0, false)
		return
	}

	wire := payload.ToWire()
	for _, c := range conns {
		conn := c
		buf := append([]byte{}, wire...) // independent buffer: no reuse across sends
		conn.Conn.SendAsync(buf, func(n int, err error) {
			if err != nil {
				logger.Warn(fmt.Sprintf("send to user %d conn %s failed: %v", uid, conn.ConnId, err))
				if isBrokenPipe(err) {
					s.storage.Remove(uid, conn.ConnId)
				}
				s.handleUndeliverable(uid, payload)
				return
			}
			s.onMessageSent(payload.WithRecipient(uid), n, true)
		})
	}
}

func (s *ChatServer) handleUndeliverable(uid uint64, payload Payload) {
	if !s.opts.EnableUndeliveredQueue {
		logger.Infof("dropping undeliverable message for user %d: queue disabled", uid)
		return
	}
	s.undelivered.Enqueue(uid, payload)
}

// onMessageSent updates Statistics and, when delivery-status is enabled
// and delivery succeeded, routes a synthetic sent-status payload back to
// the sender. payload is always a single-recipient copy here.
func (s *ChatServer) onMessageSent(payload Payload, bytesTransferred int, hasSent bool) {
	if payload.IsTypeOfSentStatus() {
		return
	}

	s.stats.AddSendMessage(payload.Sender)
	s.stats.AddBytesTransferred(payload.Sender, bytesTransferred)

	for _, uid := range payload.Recipients {
		if hasSent {
			s.stats.AddReceivedMessage(uid)
			s.stats.AddBytesTransferred(uid, bytesTransferred)
		}
	}

	if s.opts.EnableDeliveryStatus && hasSent {
		for _, uid := range payload.Recipients {
			s.send(CreateSentStatus(payload, uid))
		}
	}
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || strings.Contains(err.Error(), "broken pipe")
}
