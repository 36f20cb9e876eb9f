// Package metrics exports upload and link engine counters to Prometheus.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name
const DefaultNamespace = "cookbook"

// Metrics records upload pipeline and link engine activity.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	uploadDuration    *prometheus.HistogramVec
	uploadErrors      *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	destinationWrites *prometheus.CounterVec
	linkOperations    *prometheus.CounterVec
	linksAffected     *prometheus.CounterVec
}

// New registers the collectors on reg. Collectors already registered under
// the same name are reused.
func New(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{}
	var err error

	if m.uploadDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_duration_seconds",
		Help:      "Latency of upload pipeline operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register upload histogram: %w", err)
	}

	if m.uploadErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_errors_total",
		Help:      "Count of failed upload pipeline operations.",
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register upload error counter: %w", err)
	}

	if m.uploadBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_bytes_total",
		Help:      "Cumulative payload size successfully stored.",
	})); err != nil {
		return nil, fmt.Errorf("register upload bytes counter: %w", err)
	}

	if m.destinationWrites, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upload_destination_writes_total",
		Help:      "Writes per storage destination by result.",
	}, []string{"destination", "result"})); err != nil {
		return nil, fmt.Errorf("register destination counter: %w", err)
	}

	if m.linkOperations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_operations_total",
		Help:      "Link engine calls by operation.",
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register link operation counter: %w", err)
	}

	if m.linksAffected, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_affected_total",
		Help:      "Links inserted, removed, extracted or suggested.",
	}, []string{"operation"})); err != nil {
		return nil, fmt.Errorf("register link count counter: %w", err)
	}

	if _, err = register(reg, newHostInfoGauge(namespace, CaptureHostInfo())); err != nil {
		return nil, fmt.Errorf("register host info gauge: %w", err)
	}

	return m, nil
}

// RecordUpload tracks duration and failures of a pipeline operation; bytes
// count towards the stored total only on success.
func (m *Metrics) RecordUpload(operation string, duration time.Duration, bytes int64, err error) {
	if m == nil {
		return
	}
	m.uploadDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.uploadErrors.WithLabelValues(operation).Inc()
		return
	}
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

// RecordDestinationWrite counts a single write to one destination
func (m *Metrics) RecordDestinationWrite(destination string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.destinationWrites.WithLabelValues(destination, result).Inc()
}

// RecordLinkOperation counts a link engine call and how many links it touched
func (m *Metrics) RecordLinkOperation(operation string, links int) {
	if m == nil {
		return
	}
	m.linkOperations.WithLabelValues(operation).Inc()
	if links > 0 {
		m.linksAffected.WithLabelValues(operation).Add(float64(links))
	}
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return c, nil
}
