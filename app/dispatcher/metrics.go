package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivered recipients partitioned by channel and test mode
	messagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waxal",
			Subsystem: "dispatcher",
			Name:      "messages_sent_total",
			Help:      "Total number of recipient messages confirmed sent",
		},
		[]string{"channel", "test"},
	)

	// Failed recipients partitioned by channel
	messagesFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "waxal",
			Subsystem: "dispatcher",
			Name:      "messages_failed_total",
			Help:      "Total number of recipient messages that failed to send",
		},
		[]string{"channel"},
	)

	// Campaigns currently being dispatched by this instance
	activeCampaigns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "waxal",
			Subsystem: "dispatcher",
			Name:      "active_campaigns",
			Help:      "Number of campaigns currently being dispatched",
		},
	)

	// Transport call latency partitioned by channel
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "waxal",
			Subsystem: "dispatcher",
			Name:      "send_duration_seconds",
			Help:      "Transport send latencies in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
)
