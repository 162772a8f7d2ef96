package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	relayConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connections",
		Help: "Number of live websocket connections.",
	})

	relayDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_deliveries_total",
		Help: "Total number of events delivered to live connections.",
	}, []string{"event"})

	relayDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relay_dropped_total",
		Help: "Total number of events dropped without delivery.",
	}, []string{"reason"})
)

const (
	dropReasonOffline    = "target_offline"
	dropReasonBufferFull = "buffer_full"
	dropReasonMalformed  = "malformed"
)
