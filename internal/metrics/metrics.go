package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns a private registry so tests and multiple instances never collide.
// All methods are nil-safe.
type Recorder struct {
	registry *prometheus.Registry

	filingsIngested prometheus.Counter
	scores          *prometheus.CounterVec
	gateBlocks      *prometheus.CounterVec
	orders          *prometheus.CounterVec
	tradesClosed    *prometheus.CounterVec
	requests        *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	jobDuration     *prometheus.HistogramVec
	scalingFactor   prometheus.Gauge
	httpRequests    *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		filingsIngested: f.NewCounter(prometheus.CounterOpts{
			Name: "insiderbot_filings_ingested_total",
			Help: "Insider purchase filings stored after ingestion",
		}),
		scores: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_scores_total",
			Help: "Scored filings by decision",
		}, []string{"decision"}),
		gateBlocks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_gate_blocks_total",
			Help: "Signals blocked before sizing, by reason",
		}, []string{"reason"}),
		orders: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_orders_total",
			Help: "Order submissions by side and result",
		}, []string{"side", "result"}),
		tradesClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_trades_closed_total",
			Help: "Closed trades by exit reason",
		}, []string{"reason"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_upstream_requests_total",
			Help: "Upstream API requests by client and outcome",
		}, []string{"client", "outcome"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "insiderbot_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		jobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "insiderbot_job_duration_seconds",
			Help:    "Duration of scheduled jobs",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		scalingFactor: f.NewGauge(prometheus.GaugeOpts{
			Name: "insiderbot_scaling_factor",
			Help: "Current performance scaling factor",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "insiderbot_http_requests_total",
			Help: "API requests by method, route and status class",
		}, []string{"method", "route", "status"}),
	}
}

func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) FilingsIngested(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.filingsIngested.Add(float64(n))
}

func (r *Recorder) Scored(decision string) {
	if r == nil {
		return
	}
	r.scores.WithLabelValues(decision).Inc()
}

func (r *Recorder) GateBlocked(reason string) {
	if r == nil {
		return
	}
	r.gateBlocks.WithLabelValues(reason).Inc()
}

func (r *Recorder) Order(side, result string) {
	if r == nil {
		return
	}
	r.orders.WithLabelValues(side, result).Inc()
}

func (r *Recorder) TradeClosed(reason string) {
	if r == nil {
		return
	}
	r.tradesClosed.WithLabelValues(reason).Inc()
}

func (r *Recorder) Request(client, outcome string) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(client, outcome).Inc()
}

func (r *Recorder) BreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

func (r *Recorder) JobDuration(job string, seconds float64) {
	if r == nil {
		return
	}
	r.jobDuration.WithLabelValues(job).Observe(seconds)
}

func (r *Recorder) ScalingFactor(v float64) {
	if r == nil {
		return
	}
	r.scalingFactor.Set(v)
}

func (r *Recorder) HTTPRequest(method, route string, status int) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, fmt.Sprintf("%dxx", status/100)).Inc()
}
