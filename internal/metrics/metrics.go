// Package metrics - счётчики Prometheus для расчётного контура.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"method", "route"})

	// WebhookEvents: result = processed | duplicate | failed | invalid_signature | ignored.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_webhook_events_total",
		Help: "Webhook deliveries by outcome",
	}, []string{"type", "result"})

	EscrowTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_escrow_transitions_total",
		Help: "Escrow state changes",
	}, []string{"to"})

	WithdrawalTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_withdrawal_transitions_total",
		Help: "Withdrawal request state changes",
	}, []string{"to"})

	GatewayLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_gateway_call_duration_seconds",
		Help:    "Payment gateway call latency",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"provider", "op", "result"})

	Inconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_inconsistencies_total",
		Help: "Detected ledger inconsistencies requiring reconciliation",
	})

	BackgroundPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_background_panics_total",
		Help: "Recovered panics in background goroutines",
	}, []string{"task"})
)
