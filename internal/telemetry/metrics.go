// Package telemetry exports world counters to Prometheus.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "washcycle"

// Metrics implements world.Recorder. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry *prometheus.Registry

	transfers         *prometheus.CounterVec
	itemsMoved        *prometheus.CounterVec
	invalidRange      prometheus.Counter
	customersSpawned  prometheus.Counter
	customersDeparted prometheus.Counter
	customersLive     prometheus.Gauge
	machinesWorking   prometheus.Gauge
	tickStep          prometheus.Histogram
}

func New(worldID string) *Metrics {
	labels := prometheus.Labels{"world_id": worldID}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "transfers_total",
			Help: "Item transfers by kind.", ConstLabels: labels,
		}, []string{"kind"}),
		itemsMoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "items_moved_total",
			Help: "Items moved by transfer kind.", ConstLabels: labels,
		}, []string{"kind"}),
		invalidRange: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "invalid_range_total",
			Help: "Machine interactions from out of range.", ConstLabels: labels,
		}),
		customersSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "customers_spawned_total",
			Help: "Customers spawned.", ConstLabels: labels,
		}),
		customersDeparted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "customers_departed_total",
			Help: "Customers despawned.", ConstLabels: labels,
		}),
		customersLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "customers_live",
			Help: "Customers currently in the world.", ConstLabels: labels,
		}),
		machinesWorking: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "machines_working",
			Help: "Machines with a session in progress.", ConstLabels: labels,
		}),
		tickStep: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "tick_step_seconds",
			Help:        "Wall time spent applying one tick.",
			ConstLabels: labels,
			Buckets:     []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
	}
	m.registry.MustRegister(
		m.transfers, m.itemsMoved, m.invalidRange,
		m.customersSpawned, m.customersDeparted,
		m.customersLive, m.machinesWorking, m.tickStep,
		prometheus.NewGoCollector(),
	)
	return m
}

// Registry exposes the private registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveStep(d time.Duration) {
	if m == nil {
		return
	}
	m.tickStep.Observe(d.Seconds())
}

func (m *Metrics) ObserveTransfer(kind string, items int) {
	if m == nil {
		return
	}
	m.transfers.WithLabelValues(kind).Inc()
	m.itemsMoved.WithLabelValues(kind).Add(float64(items))
}

func (m *Metrics) CustomerSpawned() {
	if m == nil {
		return
	}
	m.customersSpawned.Inc()
}

func (m *Metrics) CustomerDeparted() {
	if m == nil {
		return
	}
	m.customersDeparted.Inc()
}

func (m *Metrics) InvalidRange() {
	if m == nil {
		return
	}
	m.invalidRange.Inc()
}

func (m *Metrics) SetLive(customers, workingMachines int) {
	if m == nil {
		return
	}
	m.customersLive.Set(float64(customers))
	m.machinesWorking.Set(float64(workingMachines))
}
