package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the service collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	finalizeTotal    *prometheus.CounterVec
	finalizeDuration prometheus.Histogram
	winnersCreated   prometheus.Counter
	periodsOpened    prometheus.Counter
	schedulerRuns    *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests to keep the default registry clean.
func New(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		finalizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_finalize_total",
			Help: "Finalize attempts by outcome.",
		}, []string{"outcome"}),
		finalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leaderboard_finalize_duration_seconds",
			Help:    "Duration of the finalize transaction.",
			Buckets: prometheus.DefBuckets,
		}),
		winnersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaderboard_winners_created_total",
			Help: "Winner records written by committed finalizations.",
		}),
		periodsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leaderboard_periods_opened_total",
			Help: "ACTIVE periods created.",
		}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leaderboard_scheduler_runs_total",
			Help: "Scheduler sweeps by outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.finalizeTotal,
		m.finalizeDuration,
		m.winnersCreated,
		m.periodsOpened,
		m.schedulerRuns,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) ObserveFinalize(d time.Duration, winners int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.finalizeTotal.WithLabelValues(OutcomeError).Inc()
		return
	}
	m.finalizeTotal.WithLabelValues(OutcomeSuccess).Inc()
	m.finalizeDuration.Observe(d.Seconds())
	m.winnersCreated.Add(float64(winners))
}

func (m *Metrics) PeriodOpened() {
	if m == nil {
		return
	}
	m.periodsOpened.Inc()
}

func (m *Metrics) SchedulerRun(err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.schedulerRuns.WithLabelValues(outcome).Inc()
}

// Handler serves the gatherer passed to New.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Hijack lets websocket upgrades pass through the recorder.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Middleware records request counts and durations labelled by the chi route
// pattern, so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next.ServeHTTP(w, r)
			return
		}
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(recorder, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
