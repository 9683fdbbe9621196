// Package config loads the router's configuration once, at startup, into
// an immutable value. Nothing in this repository reads a global
// configuration singleton at call time: every component receives the
// slice of Config it needs as a constructor parameter.
package config

import (
	"encoding/json"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type SecureConfig struct {
	Enabled bool   `json:"enabled"`
	CrtPath string `json:"crtPath"`
	KeyPath string `json:"keyPath"`
}

type WatchdogConfig struct {
	Enabled                   bool `json:"enabled"`
	ConnectionLifetimeSeconds int  `json:"connectionLifetimeSeconds"`
}

type ServerConfig struct {
	Address                 string `json:"address"`
	Port                    uint16 `json:"port"`
	Endpoint                string `json:"endpoint"`
	Workers                 int    `json:"workers"`
	AllowOverrideConnection bool   `json:"allowOverrideConnection"`
	TmpDir                  string `json:"tmpDir"`
	Secure                  SecureConfig   `json:"secure"`
	Watchdog                WatchdogConfig `json:"watchdog"`
}

type AuthConfig struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type RestAPIConfig struct {
	Enabled bool       `json:"enabled"`
	Address string     `json:"address"`
	Port    uint16     `json:"port"`
	Auth    AuthConfig `json:"auth"`
}

type MessageConfig struct {
	MaxSize              string   `json:"maxSize"`
	EnableDeliveryStatus bool     `json:"enableDeliveryStatus"`
	EnableSendBack       bool     `json:"enableSendBack"`
	IgnoreTypesSendBack  []string `json:"ignoreTypesSendBack"`
}

type ChatConfig struct {
	Message               MessageConfig `json:"message"`
	EnableUndeliveredQueue bool         `json:"enableUndeliveredQueue"`
}

type EventConfig struct {
	Enabled             bool            `json:"enabled"`
	EnableRetry         bool            `json:"enableRetry"`
	RetryIntervalSeconds int            `json:"retryIntervalSeconds"`
	RetryCount          int             `json:"retryCount"`
	SendStrategy        string          `json:"sendStrategy"`
	Targets             json.RawMessage `json:"targets"`
}

// Config is the fully-decoded, immutable configuration value. Once
// returned by Load, none of its fields are mutated; components that need
// hot-reload (none in this core) would be handed a fresh Config, not a
// pointer into this one.
type Config struct {
	Server  ServerConfig   `json:"server"`
	RestAPI RestAPIConfig  `json:"restApi"`
	Chat    ChatConfig     `json:"chat"`
	Event   EventConfig    `json:"event"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Address:  "*",
			Port:     8085,
			Endpoint: "/chat",
			Workers:  8,
			TmpDir:   "/tmp",
			Watchdog: WatchdogConfig{ConnectionLifetimeSeconds: 600},
		},
		RestAPI: RestAPIConfig{
			Address: "*",
			Port:    8082,
			Auth:    AuthConfig{Type: "none"},
		},
		Chat: ChatConfig{
			Message: MessageConfig{MaxSize: "10M"},
			EnableUndeliveredQueue: true,
		},
		Event: EventConfig{
			RetryIntervalSeconds: 10,
			RetryCount:           3,
			SendStrategy:         "onlineOnly",
		},
	}
}

// Load reads configuration from path (if non-empty) and environment
// variables prefixed CHATROUTER_, overlaying defaults(). It never mutates
// global state: the returned Config is the only handle to the result.
func Load(path string) (Config, error) {
	cfg := defaults()

	v := viper.New()
	v.SetEnvPrefix("CHATROUTER")
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if v.IsSet("server") {
		if err := v.UnmarshalKey("server", &cfg.Server); err != nil {
			return cfg, fmt.Errorf("config: decode server: %w", err)
		}
	}
	if v.IsSet("restApi") {
		if err := v.UnmarshalKey("restApi", &cfg.RestAPI); err != nil {
			return cfg, fmt.Errorf("config: decode restApi: %w", err)
		}
	}
	if v.IsSet("chat") {
		if err := v.UnmarshalKey("chat", &cfg.Chat); err != nil {
			return cfg, fmt.Errorf("config: decode chat: %w", err)
		}
	}
	if v.IsSet("event") {
		if err := v.UnmarshalKey("event", &cfg.Event); err != nil {
			return cfg, fmt.Errorf("config: decode event: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate resolves the Open Question in the original design notes: the
// bind address must be parseable, not merely a string of some length.
// "*" and "" mean "listen on all interfaces".
func (c Config) Validate() error {
	addr := strings.TrimSpace(c.Server.Address)
	if addr != "" && addr != "*" {
		if _, err := net.ResolveIPAddr("ip", addr); err != nil {
			if host, _, splitErr := net.SplitHostPort(addr); splitErr != nil || host == "" {
				return fmt.Errorf("config: server.address %q is not a parseable host: %w", addr, err)
			}
		}
	}
	if _, err := c.Chat.Message.MaxSizeBytes(); err != nil {
		return fmt.Errorf("config: chat.message.maxSize: %w", err)
	}
	return nil
}

// MaxSizeBytes parses human-readable sizes like "10M", "512K", "1G".
func (m MessageConfig) MaxSizeBytes() (int64, error) {
	s := strings.TrimSpace(strings.ToUpper(m.MaxSize))
	if s == "" {
		return 10 * 1024 * 1024, nil
	}
	mult := int64(1)
	switch {
	case strings.HasSuffix(s, "G"):
		mult = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "M"):
		mult = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "K"):
		mult = 1024
		s = strings.TrimSuffix(s, "K")
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", m.MaxSize)
	}
	return n * mult, nil
}

// Lifetime returns the idle-eviction threshold as a time.Duration.
func (w WatchdogConfig) Lifetime() time.Duration {
	return time.Duration(w.ConnectionLifetimeSeconds) * time.Second
}
