package eventbus

import (
	"context"
	"time"

	"github.com/mcdev12/racebot/go/internal/race/events"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting event bus metrics
type MetricsCollector interface {
	RecordEventPublished(eventType string, success bool, duration time.Duration)
	RecordQueueDepth(depth int)
	RecordDropped(eventType string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventPublished(string, bool, time.Duration) {}
func (NoOpMetricsCollector) RecordQueueDepth(int)                             {}
func (NoOpMetricsCollector) RecordDropped(string)                             {}

// MetricPublisher wraps an EventPublisher with metrics collection
type MetricPublisher struct {
	publisher EventPublisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher EventPublisher, metrics MetricsCollector) *MetricPublisher {
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event events.Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventPublished(string(event.Type), err == nil, time.Since(start))
	return err
}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	eventCounter  *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	queueDepth    prometheus.Gauge
	dropped       *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		eventCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "racebot",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Race events handed to the broker, by type and outcome.",
		}, []string{"event_type", "status"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "racebot",
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Time spent publishing a race event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "racebot",
			Subsystem: "events",
			Name:      "queue_depth",
			Help:      "Events waiting in the dispatcher queue.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "racebot",
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Race events dropped because the queue was full.",
		}, []string{"event_type"}),
	}
	reg.MustRegister(m.eventCounter, m.eventDuration, m.queueDepth, m.dropped)
	return m
}

func (m *PrometheusMetrics) RecordEventPublished(eventType string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.eventCounter.WithLabelValues(eventType, status).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

func (m *PrometheusMetrics) RecordDropped(eventType string) {
	m.dropped.WithLabelValues(eventType).Inc()
}
