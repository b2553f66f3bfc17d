package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CycleLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "cycle_latency_seconds",
		Help: "Latency of one polling cycle iteration",
	}, []string{"symbol"})

	CycleFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cycle_failures_total",
		Help: "Total number of skipped polling iterations",
	}, []string{"symbol", "reason"})

	SignalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signals_total",
		Help: "Total number of evaluated signals",
	}, []string{"symbol", "signal"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_transitions_total",
		Help: "Total number of position opens and closes",
	}, []string{"symbol", "kind"})

	WalletBalance = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "wallet_balance",
		Help: "Current paper wallet balance",
	}, []string{"symbol"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ws_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	DBInsertRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "db_insert_total",
		Help: "Total number of records inserted into DB",
	}, []string{"table"})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_dropped_total",
		Help: "Total number of trade events dropped before reaching a sink",
	}, []string{"stage"})
)
