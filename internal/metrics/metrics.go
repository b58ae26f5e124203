// Package metrics holds the Prometheus counters of the back-office service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all counters.  A nil *Metrics is valid and records nothing,
// so components can be built without it in tests.
type Metrics struct {
	SignIns             *prometheus.CounterVec
	GuardDecisions      *prometheus.CounterVec
	ReservationsCreated *prometheus.CounterVec
	CheckoutPayments    *prometheus.CounterVec
	RoomWrites          *prometheus.CounterVec
}

// New registers the counters with reg.  Pass prometheus.DefaultRegisterer
// in the server and prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SignIns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Subsystem: "auth",
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts by outcome.",
		}, []string{"outcome"}), // outcome: ok, invalid_credentials, unconfirmed, rate_limited, unknown
		GuardDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Subsystem: "guard",
			Name:      "decisions_total",
			Help:      "Access guard decisions on protected routes.",
		}, []string{"outcome", "state"}),
		ReservationsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Subsystem: "reservations",
			Name:      "created_total",
			Help:      "Reservations persisted by channel.",
		}, []string{"channel"}), // channel: admin, walkin
		CheckoutPayments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Subsystem: "checkout",
			Name:      "payments_total",
			Help:      "Simulated checkout payments by outcome.",
		}, []string{"outcome"}), // outcome: paid, invalid, abandoned, error
		RoomWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hotel",
			Subsystem: "rooms",
			Name:      "writes_total",
			Help:      "Room inventory writes by operation and result.",
		}, []string{"op", "result"}),
	}
}

func (m *Metrics) SignIn(outcome string) {
	if m == nil {
		return
	}
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Guard(outcome, state string) {
	if m == nil {
		return
	}
	m.GuardDecisions.WithLabelValues(outcome, state).Inc()
}

func (m *Metrics) ReservationCreated(channel string) {
	if m == nil {
		return
	}
	m.ReservationsCreated.WithLabelValues(channel).Inc()
}

func (m *Metrics) Payment(outcome string) {
	if m == nil {
		return
	}
	m.CheckoutPayments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RoomWrite(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.RoomWrites.WithLabelValues(op, result).Inc()
}
