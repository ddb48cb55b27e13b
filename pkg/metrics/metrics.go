// Package metrics exposes event store activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/itm/eventstore/pkg/eventstore"
)

// Collector implements eventstore.MetricsHook with Prometheus metrics
type Collector struct {
	// Write path metrics
	appendsTotal     prometheus.Counter
	appendBytesTotal prometheus.Counter
	appendDuration   prometheus.Histogram
	writeErrorsTotal *prometheus.CounterVec

	// Read path metrics
	iteratorsOpenedTotal prometheus.Counter
	iteratorsOpen        prometheus.Gauge

	monotonicViolationsTotal prometheus.Counter

	// Store statistics
	records      prometheus.Gauge
	payloadBytes prometheus.Gauge
}

var _ eventstore.MetricsHook = (*Collector)(nil)

// NewCollector creates all metrics and registers them with reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		appendsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventstore_appends_total",
				Help: "Total number of events appended",
			},
		),

		appendBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventstore_append_bytes_total",
				Help: "Total framed bytes appended, entry overhead included",
			},
		),

		appendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eventstore_append_duration_seconds",
				Help:    "Append latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		writeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventstore_write_errors_total",
				Help: "Total number of rejected or failed writes",
			},
			[]string{"reason"},
		),

		iteratorsOpenedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventstore_iterators_opened_total",
				Help: "Total number of iterators opened",
			},
		),

		iteratorsOpen: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventstore_iterators_open",
				Help: "Number of iterators currently open",
			},
		),

		monotonicViolationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "eventstore_monotonic_violations_total",
				Help: "Writes to a monotonic store whose timestamp went backwards",
			},
		),

		records: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventstore_records",
				Help: "Number of records in the log",
			},
		),

		payloadBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "eventstore_payload_bytes",
				Help: "Payload bytes stored in the log, framing excluded",
			},
		),
	}
}

// ObserveAppend records one appended entry
func (c *Collector) ObserveAppend(bytes int, latency time.Duration) {
	c.appendsTotal.Inc()
	c.appendBytesTotal.Add(float64(bytes))
	c.appendDuration.Observe(latency.Seconds())
}

// ObserveWriteError records a failed write
func (c *Collector) ObserveWriteError(reason string) {
	c.writeErrorsTotal.WithLabelValues(reason).Inc()
}

// IteratorOpened records a new iterator
func (c *Collector) IteratorOpened() {
	c.iteratorsOpenedTotal.Inc()
	c.iteratorsOpen.Inc()
}

// IteratorClosed records a closed iterator
func (c *Collector) IteratorClosed() {
	c.iteratorsOpen.Dec()
}

// ObserveMonotonicViolation records an out of order timestamp
func (c *Collector) ObserveMonotonicViolation() {
	c.monotonicViolationsTotal.Inc()
}

// UpdateStoreStats refreshes the store statistics gauges
func (c *Collector) UpdateStoreStats(s *eventstore.Store) error {
	payload, err := s.PayloadByteSize()
	if err != nil {
		return err
	}
	c.records.Set(float64(s.Size()))
	c.payloadBytes.Set(float64(payload))
	return nil
}
