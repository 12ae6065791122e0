package rpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/jeremywhuff/rpapi/errs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every metric the API registers.
const MetricsNamespace = "rpapi"

// metrics holds the Prometheus collectors of one API.
type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestErrors   *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer, api string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"api": api}

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "requests_total",
			Help:        "Total number of requests served",
			ConstLabels: labels,
		}, []string{"route", "method", "status"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   MetricsNamespace,
			Name:        "request_duration_seconds",
			Help:        "Time spent running a route's chain, in seconds",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),

		requestErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   MetricsNamespace,
			Name:        "request_errors_total",
			Help:        "Total number of requests that ended with an error",
			ConstLabels: labels,
		}, []string{"route", "error"}),
	}
}

func (m *metrics) observe(r *Route, status int, elapsed time.Duration, e *errs.Error) {
	method := strings.ToUpper(r.method)
	m.requestsTotal.WithLabelValues(r.path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(r.path, method).Observe(elapsed.Seconds())
	if e != nil {
		m.requestErrors.WithLabelValues(r.path, e.Name).Inc()
	}
}
