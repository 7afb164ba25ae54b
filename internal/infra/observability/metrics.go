package observability

import (
	"sort"
	"strconv"
	"time"

	"github.com/boddenberg/iptu-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

const (
	routeDurationName = "iptu_route_duration_seconds"
	routeRequestsName = "iptu_route_requests_total"
)

// Latency buckets in seconds; 2s is a bucket edge so the alarm threshold is
// estimated without interpolation error.
var routeBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5, 10, 15}

// Metrics holds all Prometheus metrics for the BFA.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	routeDuration    *prometheus.HistogramVec
	routeRequests    *prometheus.CounterVec
	upstreamRequests *prometheus.CounterVec
	tokenRefreshes   *prometheus.CounterVec
	rateLimited      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		routeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    routeDurationName,
				Help:    "Duration of inbound requests by route.",
				Buckets: routeBuckets,
			},
			[]string{"route"},
		),
		routeRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: routeRequestsName,
				Help: "Inbound requests by route and outcome (ok < 400 <= error).",
			},
			[]string{"route", "outcome"},
		),
		upstreamRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iptu_upstream_requests_total",
				Help: "Calls to upstream services by status (\"network\" for transport failures).",
			},
			[]string{"service", "status"},
		),
		tokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iptu_token_refreshes_total",
				Help: "Prodata authentication calls by result.",
			},
			[]string{"result"},
		),
		rateLimited: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iptu_rate_limited_total",
				Help: "Requests rejected by the rate limiter.",
			},
			[]string{"reason"},
		),
	}
}

// ObserveRoute records one inbound request.
func (m *Metrics) ObserveRoute(route string, status int, d time.Duration) {
	outcome := "ok"
	if status >= 400 {
		outcome = "error"
	}
	m.routeDuration.WithLabelValues(route).Observe(d.Seconds())
	m.routeRequests.WithLabelValues(route, outcome).Inc()
}

// IncrUpstream counts one upstream call. status 0 means a transport failure.
func (m *Metrics) IncrUpstream(service string, status int) {
	label := "network"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.upstreamRequests.WithLabelValues(service, label).Inc()
}

// IncrTokenRefresh counts one authentication attempt.
func (m *Metrics) IncrTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	m.tokenRefreshes.WithLabelValues(result).Inc()
}

// IncrRateLimited counts one rejected request.
func (m *Metrics) IncrRateLimited(reason string) {
	m.rateLimited.WithLabelValues(reason).Inc()
}

// RouteSnapshot returns per-route totals, error rate and estimated p95 (ms),
// sorted by route, suitable for the GET /v1/metrics/routes endpoint.
func (m *Metrics) RouteSnapshot() []domain.RouteMetrics {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil
	}

	byRoute := make(map[string]*domain.RouteMetrics)
	entry := func(route string) *domain.RouteMetrics {
		e, ok := byRoute[route]
		if !ok {
			e = &domain.RouteMetrics{Route: route}
			byRoute[route] = e
		}
		return e
	}

	for _, mf := range families {
		switch mf.GetName() {
		case routeDurationName:
			for _, metric := range mf.GetMetric() {
				e := entry(labelValue(metric, "route"))
				e.P95Ms = histogramQuantile(0.95, metric.GetHistogram()) * 1000
			}
		case routeRequestsName:
			for _, metric := range mf.GetMetric() {
				e := entry(labelValue(metric, "route"))
				n := int64(metric.GetCounter().GetValue())
				e.Total += n
				if labelValue(metric, "outcome") == "error" {
					e.Errors += n
				}
			}
		}
	}

	out := make([]domain.RouteMetrics, 0, len(byRoute))
	for _, e := range byRoute {
		if e.Total > 0 {
			e.ErrorRate = float64(e.Errors) / float64(e.Total)
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Route < out[j].Route })
	return out
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// histogramQuantile estimates quantile q by linear interpolation inside the
// bucket holding the target rank. Observations beyond the last bucket are
// reported as the last finite bound.
func histogramQuantile(q float64, h *dto.Histogram) float64 {
	count := h.GetSampleCount()
	if count == 0 {
		return 0
	}
	rank := q * float64(count)

	var prevBound, prevCount float64
	for _, b := range h.GetBucket() {
		bound := b.GetUpperBound()
		cum := float64(b.GetCumulativeCount())
		if cum >= rank {
			if cum == prevCount {
				return bound
			}
			return prevBound + (bound-prevBound)*(rank-prevCount)/(cum-prevCount)
		}
		prevBound, prevCount = bound, cum
	}
	return prevBound
}
