package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatrouter/logger"
	"chatrouter/middleware"
	"chatrouter/service/chat"
	"chatrouter/tools/ids"
	"chatrouter/tools/safe"
)

// Server upgrades HTTP requests on a configured endpoint to WebSocket
// connections and drives a chat.ChatServer from gorilla/websocket events.
// CheckOrigin always accepts: origin policy is a reverse-proxy concern in
// this deployment model, not this package's.
type Server struct {
	engine   *gin.Engine
	chat     *chat.ChatServer
	endpoint string
	upgrader websocket.Upgrader
	maxSize  int64
}

func NewServer(endpoint string, maxMessageSize int64, cs *chat.ChatServer) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	mgr := middleware.NewManager()
	mgr.Add(middleware.Recovery())
	mgr.Add(middleware.RequestLogger())
	engine.Use(mgr.Use())

	s := &Server{
		engine:   engine,
		chat:     cs,
		endpoint: endpoint,
		maxSize:  maxMessageSize,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	engine.GET(endpoint, s.handleUpgrade)
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

// handleUpgrade wraps serveUpgrade in safe.Call: readLoop runs for the
// lifetime of the connection inside this same request goroutine, and
// without recovery here a panic from it would unwind uncaught out of
// net/http's handler instead of going through wsConn's documented close
// path, mirroring the containment writeLoop already gets from safe.Go.
func (s *Server) handleUpgrade(c *gin.Context) {
	safe.Call("ws handleUpgrade", func() { s.serveUpgrade(c) })
}

func (s *Server) serveUpgrade(c *gin.Context) {
	socket, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed: " + err.Error())
		return
	}
	socket.SetReadLimit(s.maxSize + 1024) // allow the oversize frame through so ChatServer can close with a diagnostic

	connId := chat.ConnId(ids.GenerateString())
	wc := newWsConn(connId, socket)

	query := map[string]string{}
	for k := range c.Request.URL.Query() {
		query[k] = c.Request.URL.Query().Get(k)
	}

	userId, ok := s.chat.HandleOpen(wc, chat.OpenRequest{Query: query, Headers: c.Request.Header})
	if !ok {
		wc.Close(1000, "rejected at open")
		return
	}

	s.readLoop(wc, socket, userId)
}

func (s *Server) readLoop(wc *wsConn, socket *websocket.Conn, userId uint64) {
	defer func() {
		s.chat.HandleClose(userId, wc.id)
		wc.Close(1000, "connection closed")
	}()

	socket.SetPongHandler(func(string) error {
		s.chat.HandleMessage(wc, userId, chat.OpPong, nil)
		return nil
	})

	for {
		msgType, data, err := socket.ReadMessage()
		if err != nil {
			s.chat.HandleError(wc.id, err)
			return
		}
		op := chat.OpText
		if msgType == websocket.BinaryMessage {
			op = chat.OpBinary
		}
		s.chat.HandleMessage(wc, userId, op, data)
	}
}

// Run starts a plain HTTP server hosting this engine until ctx is
// cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// RunTLS starts a TLS-terminated HTTP server hosting this engine until
// ctx is cancelled.
func (s *Server) RunTLS(ctx context.Context, addr, certFile, keyFile string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServeTLS(certFile, keyFile)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
