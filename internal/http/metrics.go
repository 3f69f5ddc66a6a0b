package httpx

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/splax/carebase/internal/app/bootstrap"
)

var (
	histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	bootstrapStates  = []bootstrap.State{bootstrap.StateNotReady, bootstrap.StateReady, bootstrap.StateDegraded}
)

// Metrics holds the API's Prometheus collectors.
type Metrics struct {
	requestTotal   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	rateLimitHits  *prometheus.CounterVec
	loginOutcomes  *prometheus.CounterVec
	bootstrapState *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by an earlier call are reused.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carebase",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		rateLimitHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}),
		loginOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebase",
			Subsystem: "auth",
			Name:      "login_total",
			Help:      "Login attempts by kind and result",
		}, []string{"kind", "result"}),
		bootstrapState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "carebase",
			Subsystem: "bootstrap",
			Name:      "state",
			Help:      "1 for the current bootstrap state, 0 otherwise",
		}, []string{"state"}),
	}

	m.requestTotal = registerCounter(reg, m.requestTotal)
	m.rateLimitHits = registerCounter(reg, m.rateLimitHits)
	m.loginOutcomes = registerCounter(reg, m.loginOutcomes)
	if err := reg.Register(m.requestLatency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if v, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.requestLatency = v
			}
		}
	}
	if err := reg.Register(m.bootstrapState); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if v, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				m.bootstrapState = v
			}
		}
	}
	return m
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if v, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return v
			}
		}
	}
	return c
}

func (m *Metrics) recordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestLatency.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) recordRateLimitHit(route, key string) {
	if m == nil {
		return
	}
	m.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}

func (m *Metrics) recordLogin(kind, result string) {
	if m == nil {
		return
	}
	m.loginOutcomes.With(prometheus.Labels{"kind": kind, "result": result}).Inc()
}

// SetBootstrapState marks state as current. It matches bootstrap.WithStateHook.
func (m *Metrics) SetBootstrapState(state bootstrap.State) {
	if m == nil {
		return
	}
	for _, s := range bootstrapStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.bootstrapState.WithLabelValues(string(s)).Set(v)
	}
}
