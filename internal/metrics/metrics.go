package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"identity_service/internal/models"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "identity"

type Metrics struct {
	OTPIssued        *prometheus.CounterVec
	OTPVerifications *prometheus.CounterVec
	Requests         *prometheus.CounterVec
	Duration         *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg means a fresh private registry.
func New(reg *prometheus.Registry) (*Metrics, error) {
	const op = "metrics.New"

	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		OTPIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "issued_total",
			Help:      "One-time codes issued, partitioned by delivery channel.",
		}, []string{"channel"}),
		OTPVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "otp",
			Name:      "verifications_total",
			Help:      "One-time code verification attempts, partitioned by result.",
		}, []string{"result"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests partitioned by method, route and status code.",
		}, []string{"method", "route", "status"}),
		Duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies in seconds partitioned by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		gatherer: reg,
	}

	for _, c := range []prometheus.Collector{m.OTPIssued, m.OTPVerifications, m.Requests, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return m, nil
}

func (m *Metrics) CodeIssued(channel models.Channel) {
	if m == nil {
		return
	}

	m.OTPIssued.WithLabelValues(string(channel)).Inc()
}

func (m *Metrics) CodeVerified(ok bool) {
	if m == nil {
		return
	}

	result := "rejected"
	if ok {
		result = "accepted"
	}

	m.OTPVerifications.WithLabelValues(result).Inc()
}

// Middleware records request counts and latencies by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		m.Requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.Duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
