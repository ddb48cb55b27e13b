package eventstore

import "time"

// MetricsHook receives store events. Implementations must be safe for
// concurrent use. pkg/metrics provides a Prometheus implementation.
type MetricsHook interface {
	// ObserveAppend is called after a record of size bytes was appended.
	ObserveAppend(bytes int, latency time.Duration)
	// ObserveWriteError is called when a write fails, with a short reason.
	ObserveWriteError(reason string)
	IteratorOpened()
	IteratorClosed()
	// ObserveMonotonicViolation is called when a monotonic store receives a
	// timestamp lower than the previous one.
	ObserveMonotonicViolation()
}

type noopMetrics struct{}

func (noopMetrics) ObserveAppend(int, time.Duration) {}
func (noopMetrics) ObserveWriteError(string) {}
func (noopMetrics) IteratorOpened() {}
func (noopMetrics) IteratorClosed() {}
func (noopMetrics) ObserveMonotonicViolation() {}
