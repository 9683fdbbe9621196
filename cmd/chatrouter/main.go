package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"chatrouter/auth"
	"chatrouter/config"
	"chatrouter/logger"
	"chatrouter/notify"
	"chatrouter/restapi"
	"chatrouter/service/chat"
	"chatrouter/transport/ws"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config yaml")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}

	// The chat endpoint and the admin surface share one Authenticator,
	// both built from restApi.auth: the core has no config field of its
	// own for this, so the admin surface's auth doubles as the chat
	// connection-open validator.
	chatAuth, err := auth.New(auth.AuthConfig{Type: cfg.RestAPI.Auth.Type, Data: cfg.RestAPI.Auth.Data})
	if err != nil {
		logger.Errorf("auth: %v", err)
		os.Exit(1)
	}

	maxSize, err := cfg.Chat.Message.MaxSizeBytes()
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}

	chatServer := chat.NewChatServer(chatAuth, chat.ServerOptions{
		MaxMessageSize:         maxSize,
		EnableSendBack:         cfg.Chat.Message.EnableSendBack,
		IgnoreTypesSendBack:    cfg.Chat.Message.IgnoreTypesSendBack,
		EnableDeliveryStatus:   cfg.Chat.Message.EnableDeliveryStatus,
		EnableUndeliveredQueue: cfg.Chat.EnableUndeliveredQueue,
		ThreadPoolSize:         cfg.Server.Workers,
		WatchdogEnabled:        cfg.Server.Watchdog.Enabled,
		WatchdogLifetime:       cfg.Server.Watchdog.Lifetime(),
	})

	if cfg.Event.Enabled {
		notifier, err := notify.New(cfg.Event)
		if err != nil {
			logger.Errorf("notify: %v", err)
			os.Exit(1)
		}
		chatServer.AddMessageListener(notifier.Listener())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	chatServer.RunService(ctx)

	wsServer := ws.NewServer(cfg.Server.Endpoint, maxSize, chatServer)
	wsAddr := bindAddr(cfg.Server.Address, cfg.Server.Port)

	go func() {
		logger.Infof("chat transport listening on %s%s", wsAddr, cfg.Server.Endpoint)
		var runErr error
		if cfg.Server.Secure.Enabled {
			runErr = wsServer.RunTLS(ctx, wsAddr, cfg.Server.Secure.CrtPath, cfg.Server.Secure.KeyPath)
		} else {
			runErr = wsServer.Run(ctx, wsAddr)
		}
		if runErr != nil {
			logger.Errorf("chat transport: %v", runErr)
		}
	}()

	if cfg.RestAPI.Enabled {
		restEngine := restapi.NewEngine(chatServer.Statistics(), chatAuth)
		restAddr := bindAddr(cfg.RestAPI.Address, cfg.RestAPI.Port)
		go func() {
			logger.Infof("admin api listening on %s", restAddr)
			if err := runHTTP(ctx, restEngine, restAddr); err != nil {
				logger.Errorf("restapi: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	chatServer.StopService()
}

func bindAddr(address string, port uint16) string {
	if address == "" || address == "*" {
		address = ""
	}
	return address + ":" + strconv.FormatUint(uint64(port), 10)
}

// runHTTP serves engine until ctx is cancelled, then shuts down gracefully.
func runHTTP(ctx context.Context, engine *gin.Engine, addr string) error {
	srv := &http.Server{Addr: addr, Handler: engine}
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
