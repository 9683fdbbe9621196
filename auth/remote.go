package auth

import (
	"context"
	"time"

	"chatrouter/logger"
	redisstore "chatrouter/service/storage/redis"
)

// RemoteConfig configures the remote variant: the connecting client's
// session token (query parameter "token", falling back to the
// Authorization header) must exist as a key in a Redis instance
// populated by an external login service. Losing this cache on restart
// only forces affected clients to log in again; no chat message state
// lives here.
type RemoteConfig struct {
	Addr      string        `json:"addr"`
	Password  string        `json:"password"`
	DB        int           `json:"db"`
	KeyPrefix string        `json:"keyPrefix"`
	Timeout   time.Duration `json:"-"`
}

type RemoteAuthenticator struct {
	cfg RemoteConfig
}

// NewRemoteAuthenticator initializes the shared Redis client on first use.
// A failed connection degrades Validate to always-false rather than
// panicking, logging the cause once.
func NewRemoteAuthenticator(cfg RemoteConfig) *RemoteAuthenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if err := redisstore.Init(redisstore.Config{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}); err != nil {
		logger.Errorf("remote authenticator: %v", err)
	}
	return &RemoteAuthenticator{cfg: cfg}
}

func (a *RemoteAuthenticator) Validate(req Request) bool {
	token := req.Query["token"]
	if token == "" {
		token = req.Header("Authorization")
	}
	if token == "" {
		return false
	}
	client := redisstore.Client()
	if client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Timeout)
	defer cancel()
	n, err := client.Exists(ctx, a.cfg.KeyPrefix+token).Result()
	if err != nil {
		logger.Warn("remote authenticator: redis lookup failed: " + err.Error())
		return false
	}
	return n > 0
}
