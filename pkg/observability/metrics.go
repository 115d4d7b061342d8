package observability

import (
	"sync"
	"time"
)

// Metrics records application measurements. The scheduler core depends
// on this interface so tests can assert on an in-memory collector while
// production can plug in a real backend.
type Metrics interface {
	// Counter increments a counter metric.
	Counter(name string, value int64, tags ...Tag)

	// Gauge sets a gauge metric to the given value.
	Gauge(name string, value float64, tags ...Tag)

	// Histogram records a value in a histogram.
	Histogram(name string, value float64, tags ...Tag)

	// Timing records a duration.
	Timing(name string, duration time.Duration, tags ...Tag)
}

// Tag labels a metric with a key-value dimension.
type Tag struct {
	Key   string
	Value string
}

// T is shorthand for building a Tag.
func T(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) Counter(name string, value int64, tags ...Tag)           {}
func (NoopMetrics) Gauge(name string, value float64, tags ...Tag)           {}
func (NoopMetrics) Histogram(name string, value float64, tags ...Tag)       {}
func (NoopMetrics) Timing(name string, duration time.Duration, tags ...Tag) {}

// InMemoryMetrics keeps measurements in maps keyed by name and tags.
// Used in tests and local runs.
type InMemoryMetrics struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
	timings    map[string][]time.Duration
}

// NewInMemoryMetrics creates an empty collector.
func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Counter(name string, value int64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(name, tags)
	m.counters[key] += value
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(name, tags)
	m.gauges[key] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(name, tags)
	m.histograms[key] = append(m.histograms[key], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := metricKey(name, tags)
	m.timings[key] = append(m.timings[key], duration)
}

// GetCounter returns the accumulated counter value.
func (m *InMemoryMetrics) GetCounter(name string, tags ...Tag) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[metricKey(name, tags)]
}

// GetGauge returns the current value of a gauge.
func (m *InMemoryMetrics) GetGauge(name string, tags ...Tag) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[metricKey(name, tags)]
}

// GetHistogram returns all recorded values for a histogram.
func (m *InMemoryMetrics) GetHistogram(name string, tags ...Tag) []float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.histograms[metricKey(name, tags)]
}

// GetTimings returns every duration recorded under the name and tags.
func (m *InMemoryMetrics) GetTimings(name string, tags ...Tag) []time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timings[metricKey(name, tags)]
}

// Reset drops everything recorded so far.
func (m *InMemoryMetrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = make(map[string]int64)
	m.gauges = make(map[string]float64)
	m.histograms = make(map[string][]float64)
	m.timings = make(map[string][]time.Duration)
}

func metricKey(name string, tags []Tag) string {
	if len(tags) == 0 {
		return name
	}
	key := name
	for _, t := range tags {
		key += ":" + t.Key + "=" + t.Value
	}
	return key
}

// Standard metric names used throughout the scheduler.
const (
	// Operation metrics
	MetricOperationTotal    = "scheduler.operation.total"
	MetricOperationDuration = "scheduler.operation.duration"
	MetricOperationErrors   = "scheduler.operation.errors"

	// Scheduling metrics
	MetricProposalsGenerated = "scheduler.proposals.generated"
	MetricHoldsAcquired      = "scheduler.holds.acquired"
	MetricHoldConflicts      = "scheduler.holds.conflicts"
	MetricBookingsConfirmed  = "scheduler.bookings.confirmed"
	MetricBookingsFailed     = "scheduler.bookings.failed"
	MetricBookingsCancelled  = "scheduler.bookings.cancelled"
	MetricReschedules        = "scheduler.bookings.reschedules"

	// Provider metrics
	MetricProviderCalls    = "scheduler.provider.calls"
	MetricProviderErrors   = "scheduler.provider.errors"
	MetricProviderDuration = "scheduler.provider.duration"

	// Database metrics
	MetricDBQueries       = "scheduler.db.queries"
	MetricDBQueryDuration = "scheduler.db.query_duration"

	// Event bus metrics
	MetricEventsPublished = "scheduler.events.published"
	MetricEventsConsumed  = "scheduler.events.consumed"
)
