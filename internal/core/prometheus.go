package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"replacechain/pkg/domain"
)

const metricsNamespace = "replacechain"

// PrometheusRecorder exports manager operation latency and results, and
// counts events when installed as an observer.
type PrometheusRecorder struct {
	operationSeconds *prometheus.HistogramVec
	operationsTotal  *prometheus.CounterVec
	eventsTotal      *prometheus.CounterVec
	products         prometheus.Gauge
}

// NewPrometheusRecorder registers the manager metrics with reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		operationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "manager",
				Name:      "operation_duration_seconds",
				Help:      "Latency of replacement manager operations",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"operation"},
		),
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "manager",
				Name:      "operations_total",
				Help:      "Replacement manager operations by outcome",
			},
			[]string{"operation", "status"},
		),
		eventsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "manager",
				Name:      "events_total",
				Help:      "Replacement manager events by kind",
			},
			[]string{"kind"},
		),
		products: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "manager",
			Name:      "products",
			Help:      "Products in the last persisted or loaded snapshot",
		}),
	}
}

// Observe implements MetricsRecorder.
func (p *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	p.operationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
	p.operationsTotal.WithLabelValues(operation, status).Inc()
}

// Notify implements domain.Observer.
func (p *PrometheusRecorder) Notify(_ context.Context, ev domain.Event) {
	p.eventsTotal.WithLabelValues(string(ev.Kind)).Inc()
	switch ev.Kind {
	case domain.EventStatePersisted, domain.EventStateLoaded:
		p.products.Set(float64(ev.Products))
	}
}
