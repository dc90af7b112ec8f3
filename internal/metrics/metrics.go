// Package metrics holds the Prometheus collectors for engine events.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SalesTransactions  *prometheus.CounterVec
	InventoryMovements *prometheus.CounterVec
	RegisterClosures   prometheus.Counter
	CashDifference     prometheus.Histogram
	JobsProcessed      *prometheus.CounterVec
	DBOperation        *prometheus.HistogramVec
	OpenRegisters      prometheus.Gauge
	MailBreakerState   prometheus.Gauge
}

// New registers every collector on reg under the given namespace.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SalesTransactions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sales_transactions_total",
				Help:      "Sales transactions reaching a status",
			},
			[]string{"status"},
		),
		InventoryMovements: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inventory_movements_total",
				Help:      "Inventory ledger postings by movement type",
			},
			[]string{"type"},
		),
		RegisterClosures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "register_closures_total",
			Help:      "Cash register closures written",
		}),
		CashDifference: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cash_difference",
			Help:      "Declared minus calculated cash at close",
			Buckets:   []float64{-10000, -1000, -100, -10, -1, 0, 1, 10, 100, 1000, 10000},
		}),
		JobsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_processed_total",
				Help:      "Background jobs processed by queue and result",
			},
			[]string{"queue", "result"},
		),
		DBOperation: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Duration of engine units of work",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		OpenRegisters: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_registers",
			Help:      "Cash registers currently open",
		}),
		MailBreakerState: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mail_breaker_state",
			Help:      "Mail relay circuit: 0 closed, 1 open, 2 half-open",
		}),
	}
}

func (m *Metrics) RecordSale(status string) {
	if m == nil {
		return
	}
	m.SalesTransactions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordMovement(movementType string) {
	if m == nil {
		return
	}
	m.InventoryMovements.WithLabelValues(movementType).Inc()
}

func (m *Metrics) RecordOpen() {
	if m == nil {
		return
	}
	m.OpenRegisters.Inc()
}

func (m *Metrics) RecordClosure(cashDifference float64) {
	if m == nil {
		return
	}
	m.RegisterClosures.Inc()
	m.CashDifference.Observe(cashDifference)
	m.OpenRegisters.Dec()
}

func (m *Metrics) RecordJob(queue, result string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(queue, result).Inc()
}

func (m *Metrics) SetMailBreakerState(state int) {
	if m == nil {
		return
	}
	m.MailBreakerState.Set(float64(state))
}

// TrackDBOperation returns a func that observes the elapsed time when called:
//
//	defer m.TrackDBOperation("complete_sale")()
func (m *Metrics) TrackDBOperation(operation string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.DBOperation.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
