// Package metrics exposes the gateway's Prometheus collectors. All methods are
// safe to call on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "custody_gateway"

// Transfer outcomes recorded by the webhook processor.
const (
	OutcomeCompleted = "completed"
	OutcomeUnderpaid = "underpaid"
	OutcomeCredited  = "credited"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics holds the gateway's collectors.
type Metrics struct {
	paymentsCreated   prometheus.Counter
	paymentsCompleted prometheus.Counter
	transfers         *prometheus.CounterVec
	sweeps            *prometheus.CounterVec
	sweptLamports     prometheus.Counter
	rpcRequests       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		paymentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_created_total",
			Help:      "Payment requests created.",
		}),
		paymentsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_completed_total",
			Help:      "Payments transitioned to completed.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_transfers_total",
			Help:      "Native transfers received via webhook, by outcome.",
		}, []string{"outcome"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Sweep attempts that produced a record, by status.",
		}, []string{"status"}),
		sweptLamports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_lamports_total",
			Help:      "Lamports moved to the cold wallet.",
		}),
		rpcRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solana_rpc_requests_total",
			Help:      "Solana RPC calls, by method and result.",
		}, []string{"method", "result"}),
	}

	reg.MustRegister(
		m.paymentsCreated,
		m.paymentsCompleted,
		m.transfers,
		m.sweeps,
		m.sweptLamports,
		m.rpcRequests,
	)
	return m
}

func (m *Metrics) PaymentCreated() {
	if m == nil {
		return
	}
	m.paymentsCreated.Inc()
}

func (m *Metrics) PaymentCompleted() {
	if m == nil {
		return
	}
	m.paymentsCompleted.Inc()
}

// Transfer records one webhook transfer outcome.
func (m *Metrics) Transfer(outcome string) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(outcome).Inc()
}

// Sweep records a sweep record written with status and amount.
func (m *Metrics) Sweep(status string, lamports int64) {
	if m == nil {
		return
	}
	m.sweeps.WithLabelValues(status).Inc()
	if lamports > 0 {
		m.sweptLamports.Add(float64(lamports))
	}
}

// RPC records a Solana RPC call result.
func (m *Metrics) RPC(method string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.rpcRequests.WithLabelValues(method, result).Inc()
}
