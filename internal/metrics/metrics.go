// Package metrics provides Prometheus metrics for conversions and the HTTP service.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rulemapper/convert"
	"rulemapper/internal/ruleset"
)

const namespace = "rulemapper"

// Conversion results used as the "result" label.
const (
	ResultOK            = "ok"
	ResultMissingSource = "missing_source"
	ResultRequirement   = "requirement"
	ResultTransform     = "transform"
	ResultCopyOnly      = "copy_only"
	ResultRecursion     = "recursion_limit"
	ResultError         = "error"
)

// Collector holds all Prometheus metrics. It implements convert.Observer.
type Collector struct {
	// Conversion metrics
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration *prometheus.HistogramVec

	// HTTP metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Catalog metrics
	CatalogReloads    prometheus.Counter
	CatalogConverters prometheus.Gauge
	CatalogLastReload prometheus.Gauge
}

// NewWithRegistry creates a collector whose metrics are registered with reg.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of top-level conversions",
			},
			[]string{"converter", "result"},
		),
		ConversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "conversion_duration_seconds",
				Help:      "Conversion duration in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1, .5, 1},
			},
			[]string{"converter"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Number of HTTP requests currently being processed",
			},
		),
		CatalogReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of successful rule file reloads",
			},
		),
		CatalogConverters: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_converters",
				Help:      "Number of converters in the active catalog",
			},
		),
		CatalogLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_last_reload_timestamp",
				Help:      "Unix timestamp of the last catalog swap",
			},
		),
	}
}

// ObserveConversion records a top-level conversion.
func (c *Collector) ObserveConversion(descriptor string, elapsed time.Duration, err error) {
	c.ConversionsTotal.WithLabelValues(descriptor, Result(err)).Inc()
	c.ConversionDuration.WithLabelValues(descriptor).Observe(elapsed.Seconds())
}

// ObserveCatalog records that cat became the active catalog.
func (c *Collector) ObserveCatalog(cat *ruleset.Catalog, reload bool) {
	if reload {
		c.CatalogReloads.Inc()
	}

	c.CatalogConverters.Set(float64(cat.Len()))
	c.CatalogLastReload.SetToCurrentTime()
}

// Result maps a conversion error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, convert.ErrMissingRequiredSource):
		return ResultMissingSource
	case errors.Is(err, convert.ErrRequirement):
		return ResultRequirement
	case errors.Is(err, convert.ErrTransform):
		return ResultTransform
	case errors.Is(err, convert.ErrCopyOnly):
		return ResultCopyOnly
	case errors.Is(err, convert.ErrRecursionLimit):
		return ResultRecursion
	default:
		return ResultError
	}
}

var _ convert.Observer = (*Collector)(nil)
