// Package metrics exports per-user Statistics as Prometheus counters,
// scraped fresh on every collection rather than updated incrementally —
// Statistics is already the single source of truth, this package just
// projects its snapshot.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"chatrouter/service/chat"
)

type Collector struct {
	stats *chat.Statistics

	connections      *prometheus.Desc
	disconnections   *prometheus.Desc
	sentCount        *prometheus.Desc
	receivedCount    *prometheus.Desc
	bytesTransferred *prometheus.Desc
}

func NewCollector(stats *chat.Statistics) *Collector {
	labels := []string{"user_id"}
	return &Collector{
		stats:            stats,
		connections:      prometheus.NewDesc("chatrouter_user_connections_total", "Cumulative connections opened by this user.", labels, nil),
		disconnections:   prometheus.NewDesc("chatrouter_user_disconnections_total", "Cumulative disconnections for this user.", labels, nil),
		sentCount:        prometheus.NewDesc("chatrouter_user_sent_messages_total", "Messages sent by this user.", labels, nil),
		receivedCount:    prometheus.NewDesc("chatrouter_user_received_messages_total", "Messages delivered to this user.", labels, nil),
		bytesTransferred: prometheus.NewDesc("chatrouter_user_bytes_transferred_total", "Bytes transferred for this user, sent and received.", labels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.disconnections
	ch <- c.sentCount
	ch <- c.receivedCount
	ch <- c.bytesTransferred
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for userId, u := range c.stats.Snapshot() {
		label := strconv.FormatUint(userId, 10)
		ch <- prometheus.MustNewConstMetric(c.connections, prometheus.CounterValue, float64(u.Connections), label)
		ch <- prometheus.MustNewConstMetric(c.disconnections, prometheus.CounterValue, float64(u.Disconnections), label)
		ch <- prometheus.MustNewConstMetric(c.sentCount, prometheus.CounterValue, float64(u.SentCount), label)
		ch <- prometheus.MustNewConstMetric(c.receivedCount, prometheus.CounterValue, float64(u.ReceivedCount), label)
		ch <- prometheus.MustNewConstMetric(c.bytesTransferred, prometheus.CounterValue, float64(u.BytesTransferred), label)
	}
}
