package telemetry

import (
	"go.opentelemetry.io/otel/metric"
)

// DiscoveryMetrics holds the engine's operational metrics.
type DiscoveryMetrics struct {
	// Counters
	RecordsDiscovered metric.Int64Counter
	ProbeFailures     metric.Int64Counter
	RecordsRejected   metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter

	// Histograms
	ProbeDuration metric.Float64Histogram
	RunDuration   metric.Float64Histogram
}

// InitDiscoveryMetrics initializes all discovery metrics on a meter.
func InitDiscoveryMetrics(meter metric.Meter) (*DiscoveryMetrics, error) {
	m := &DiscoveryMetrics{}

	var err error
	m.RecordsDiscovered, err = meter.Int64Counter(
		"kartta.records.discovered.total",
		metric.WithDescription("Total number of resource records discovered"),
		metric.WithUnit("records"),
	)
	if err != nil {
		return nil, err
	}

	m.ProbeFailures, err = meter.Int64Counter(
		"kartta.probe.failures.total",
		metric.WithDescription("Total number of failed (probe, region) tasks"),
		metric.WithUnit("failures"),
	)
	if err != nil {
		return nil, err
	}

	m.RecordsRejected, err = meter.Int64Counter(
		"kartta.records.rejected.total",
		metric.WithDescription("Total number of records rejected by the normalizer"),
		metric.WithUnit("records"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter(
		"kartta.cache.hits.total",
		metric.WithDescription("Snapshot cache hits"),
		metric.WithUnit("hits"),
	)
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter(
		"kartta.cache.misses.total",
		metric.WithDescription("Snapshot cache misses"),
		metric.WithUnit("misses"),
	)
	if err != nil {
		return nil, err
	}

	m.ProbeDuration, err = meter.Float64Histogram(
		"kartta.probe.duration.seconds",
		metric.WithDescription("Wall-clock duration of one (probe, region) task"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RunDuration, err = meter.Float64Histogram(
		"kartta.run.duration.seconds",
		metric.WithDescription("Wall-clock duration of a full discovery run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}
