package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/carprice/internal/artifact"
)

const (
	outcomeOK          = "ok"
	outcomeBadRequest  = "bad_request"
	outcomeUnavailable = "unavailable"
	outcomeError       = "error"
)

type metrics struct {
	registry  *prometheus.Registry
	estimates *prometheus.CounterVec
	latency   prometheus.Histogram
	price     prometheus.Histogram
}

func newMetrics(status StatusSource) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carprice",
			Name:      "estimates_total",
			Help:      "Estimate requests by outcome.",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carprice",
			Name:      "estimate_duration_seconds",
			Help:      "Time spent producing an estimate.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		price: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "carprice",
			Name:      "estimate_price",
			Help:      "Distribution of served point estimates.",
			Buckets:   []float64{5000, 10000, 15000, 20000, 30000, 40000, 60000, 80000, 100000, 150000},
		}),
	}
	loaded := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "carprice",
		Name:      "model_loaded",
		Help:      "1 when a model artifact is loaded and inference is enabled.",
	}, func() float64 {
		if status != nil && status.Status().Status == artifact.StatusLoaded {
			return 1
		}
		return 0
	})
	m.registry.MustRegister(
		m.estimates, m.latency, m.price, loaded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
