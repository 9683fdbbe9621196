package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, uint16(8085), cfg.Server.Port)
	assert.Equal(t, "/chat", cfg.Server.Endpoint)
	assert.Equal(t, 8, cfg.Server.Workers)
	assert.Equal(t, 600, cfg.Server.Watchdog.ConnectionLifetimeSeconds)
	assert.Equal(t, uint16(8082), cfg.RestAPI.Port)
	assert.True(t, cfg.Chat.EnableUndeliveredQueue)
	assert.Equal(t, "onlineOnly", cfg.Event.SendStrategy)
}

func TestValidateRejectsUnparseableAddress(t *testing.T) {
	cfg := defaults()
	cfg.Server.Address = "not a host!!"
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestValidateAcceptsWildcardAddress(t *testing.T) {
	cfg := defaults()
	cfg.Server.Address = "*"
	assert.NoError(t, cfg.Validate())
}

func TestValidateAcceptsIPAddress(t *testing.T) {
	cfg := defaults()
	cfg.Server.Address = "0.0.0.0"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadMaxSize(t *testing.T) {
	cfg := defaults()
	cfg.Chat.Message.MaxSize = "not-a-size"
	err := cfg.Validate()
	assert.Error(t, err)
}

func TestMaxSizeBytesParsesHumanReadableSizes(t *testing.T) {
	cases := map[string]int64{
		"10M": 10 * 1024 * 1024,
		"512K": 512 * 1024,
		"1G":   1024 * 1024 * 1024,
		"":     10 * 1024 * 1024,
	}
	for input, want := range cases {
		m := MessageConfig{MaxSize: input}
		got, err := m.MaxSizeBytes()
		require.NoErrorf(t, err, "input %q", input)
		assert.Equalf(t, want, got, "input %q", input)
	}
}

func TestMaxSizeBytesRejectsGarbage(t *testing.T) {
	m := MessageConfig{MaxSize: "lots"}
	_, err := m.MaxSizeBytes()
	assert.Error(t, err)
}

func TestWatchdogLifetime(t *testing.T) {
	w := WatchdogConfig{ConnectionLifetimeSeconds: 90}
	assert.Equal(t, 90*time.Second, w.Lifetime())
}
