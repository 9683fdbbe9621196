// Package notify implements the event-notifier sidecar's consumer side:
// a chat.MessageListener that forwards routed payloads to configured
// external webhooks. The sidecar itself (targets, retry policy, delivery
// strategy) is an external collaborator per the core's scope; this
// package is the one concrete implementation of the hook it attaches to.
package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"chatrouter/config"
	"chatrouter/logger"
	"chatrouter/service/chat"
	"chatrouter/tools/safe"
)

type target struct {
	URL string `json:"url"`
}

// Notifier posts every routed payload to each configured target over
// HTTP, retrying with exponential backoff when enabled.
type Notifier struct {
	client        *resty.Client
	targets       []target
	enableRetry   bool
	retryInterval time.Duration
	retryCount    int
}

func New(cfg config.EventConfig) (*Notifier, error) {
	var targets []target
	if len(cfg.Targets) > 0 {
		if err := json.Unmarshal(cfg.Targets, &targets); err != nil {
			return nil, fmt.Errorf("notify: decode targets: %w", err)
		}
	}
	interval := time.Duration(cfg.RetryIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Notifier{
		client:        resty.New().SetTimeout(5 * time.Second),
		targets:       targets,
		enableRetry:   cfg.EnableRetry,
		retryInterval: interval,
		retryCount:    cfg.RetryCount,
	}, nil
}

// Listener returns the chat.MessageListener to register with
// ChatServer.AddMessageListener.
func (n *Notifier) Listener() chat.MessageListener {
	return func(p chat.Payload) {
		safe.Go(func() { n.deliver(p) })
	}
}

type envelope struct {
	DeliveryId string `json:"delivery_id"`
	Type       string `json:"type"`
	Sender     uint64 `json:"sender"`
	Recipients []uint64 `json:"recipients"`
	Body       string `json:"body"`
}

func (n *Notifier) deliver(p chat.Payload) {
	if len(n.targets) == 0 {
		return
	}
	body, err := json.Marshal(envelope{
		DeliveryId: uuid.NewString(),
		Type:       p.Type,
		Sender:     p.Sender,
		Recipients: p.Recipients,
		Body:       p.Body,
	})
	if err != nil {
		logger.Errorf("notify: marshal payload: %v", err)
		return
	}
	for _, t := range n.targets {
		n.post(t.URL, body)
	}
}

func (n *Notifier) post(url string, body []byte) {
	attempt := func() error {
		resp, err := n.client.R().SetHeader("Content-Type", "application/json").SetBody(body).Post(url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("webhook %s responded %d", url, resp.StatusCode())
		}
		return nil
	}

	if !n.enableRetry {
		if err := attempt(); err != nil {
			logger.Warn("notify: " + err.Error())
		}
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = n.retryInterval
	policy := backoff.WithMaxRetries(b, uint64(n.retryCount))
	if err := backoff.Retry(attempt, policy); err != nil {
		logger.Warn("notify: giving up after retries: " + err.Error())
	}
}
