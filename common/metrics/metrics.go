// Package metrics exposes Prometheus counters for purchases, door
// operations and confirmations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Purchase outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeSoldOut      = "insufficient_inventory"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
	OutcomeAlreadyDone  = "already_done"
	OutcomeNotFound     = "not_found"
	OutcomeNotPermitted = "not_permitted"
)

type Metrics struct {
	registry *prometheus.Registry

	purchases        *prometheus.CounterVec
	ticketsIssued    *prometheus.CounterVec
	purchaseDuration prometheus.Histogram
	doorOperations   *prometheus.CounterVec
	confirmations    *prometheus.CounterVec
	ticketsAvailable *prometheus.GaugeVec
}

// New registers collectors on a fresh registry together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		purchases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbooth_purchases_total",
				Help: "Purchase attempts by outcome",
			},
			[]string{"outcome"},
		),
		ticketsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbooth_tickets_issued_total",
				Help: "Tickets issued per event",
			},
			[]string{"event_id"},
		),
		purchaseDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ticketbooth_purchase_duration_seconds",
				Help:    "Time spent in the purchase transaction",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
			},
		),
		doorOperations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbooth_door_operations_total",
				Help: "Check-in and item redemption attempts",
			},
			[]string{"operation", "outcome"},
		),
		confirmations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketbooth_confirmations_total",
				Help: "Order confirmation deliveries",
			},
			[]string{"outcome"},
		),
		ticketsAvailable: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ticketbooth_tickets_available",
				Help: "Unsold tickets per ticket type of upcoming events",
			},
			[]string{"event_id", "ticket_type"},
		),
	}
}

func (m *Metrics) ObservePurchase(outcome string, took time.Duration) {
	m.purchases.WithLabelValues(outcome).Inc()
	m.purchaseDuration.Observe(took.Seconds())
}

func (m *Metrics) TicketsIssued(eventID string, n int) {
	m.ticketsIssued.WithLabelValues(eventID).Add(float64(n))
}

func (m *Metrics) DoorOperation(operation, outcome string) {
	m.doorOperations.WithLabelValues(operation, outcome).Inc()
}

// DoorOperations adds n successful transitions at once.
func (m *Metrics) DoorOperations(operation, outcome string, n int) {
	m.doorOperations.WithLabelValues(operation, outcome).Add(float64(n))
}

func (m *Metrics) Confirmation(outcome string) {
	m.confirmations.WithLabelValues(outcome).Inc()
}

// SetAvailable records the unsold count of one ticket type.
func (m *Metrics) SetAvailable(eventID, ticketType string, n int) {
	m.ticketsAvailable.WithLabelValues(eventID, ticketType).Set(float64(n))
}

// ResetAvailable drops every inventory gauge so ended events disappear.
func (m *Metrics) ResetAvailable() {
	m.ticketsAvailable.Reset()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
