// Package metrics holds the Prometheus collectors of the chat service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_relayed_total",
			Help: "Messages persisted and handed to fan-out",
		},
	)

	MessagesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_rejected_total",
			Help: "Send attempts rejected before delivery, by reason",
		},
		[]string{"reason"}, // validation, storage
	)

	Deliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_total",
			Help: "Pushes to receiver channels, by result",
		},
		[]string{"result"}, // ok, failed
	)

	StoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_store_duration_seconds",
			Help:    "Message store call latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	SessionEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_session_events_total",
			Help: "Session gateway events, by type",
		},
		[]string{"event"}, // open, join, leave, close
	)
)

// RegisterBoundChannels exposes the registry size as a gauge. Call once.
func RegisterBoundChannels(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chat_channels_bound",
			Help: "Channels currently bound to an identity",
		},
		func() float64 { return float64(count()) },
	))
}
