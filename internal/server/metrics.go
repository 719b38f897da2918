package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for modem requests.
type Metrics struct {
	symbolsTotal    *prometheus.CounterVec   // Symbols processed (by op: modulate, demodulate, play)
	payloadBytes    *prometheus.CounterVec   // Payload bytes in or out (by op)
	errorsTotal     *prometheus.CounterVec   // Failed requests (by op and kind)
	requestDuration *prometheus.HistogramVec // Time spent holding a modem slot (by op)
	poolWait        prometheus.Histogram     // Time spent waiting for a free slot
	slotsInUse      prometheus.Gauge         // Modem slots currently held
	wsClients       prometheus.Gauge         // Connected WebSocket clients
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		symbolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofdm_symbols_total",
				Help: "Total OFDM symbols processed",
			},
			[]string{"op"},
		),
		payloadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofdm_payload_bytes_total",
				Help: "Total payload bytes modulated or recovered",
			},
			[]string{"op"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ofdm_errors_total",
				Help: "Total failed requests by operation and error kind",
			},
			[]string{"op", "kind"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ofdm_symbol_duration_seconds",
				Help:    "Time to modulate or demodulate one symbol",
				Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"op"},
		),
		poolWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ofdm_pool_wait_seconds",
				Help:    "Time spent waiting for a free modem slot",
				Buckets: prometheus.ExponentialBuckets(1e-6, 8, 8),
			},
		),
		slotsInUse: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ofdm_pool_slots_in_use",
				Help: "Modem slots currently held by requests",
			},
		),
		wsClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ofdm_websocket_clients",
				Help: "Connected WebSocket clients",
			},
		),
	}
}
