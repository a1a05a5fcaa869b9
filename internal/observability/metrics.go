package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	intakeTotal           *prometheus.CounterVec
	transitionsTotal      *prometheus.CounterVec
	schedulerTicksTotal   prometheus.Counter
	autoSendPromotedTotal prometheus.Counter
	dispatchFailuresTotal prometheus.Counter
	adminRequestsTotal    *prometheus.CounterVec
	adminLatencySeconds   *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the referral
// pipeline and the admin API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		intakeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_intake_total",
			Help: "Referral intakes by classification and outcome.",
		}, []string{"classification", "outcome"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "referral_transitions_total",
			Help: "Submission state transition attempts by event and result.",
		}, []string{"event", "result"})

		schedulerTicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_scheduler_ticks_total",
			Help: "Auto-send scheduler ticks executed.",
		})

		autoSendPromotedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_auto_send_promoted_total",
			Help: "Submissions promoted to auto_sent by the scheduler.",
		})

		dispatchFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "referral_dispatch_failures_total",
			Help: "Delivery dispatch attempts that failed.",
		})

		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			intakeTotal,
			transitionsTotal,
			schedulerTicksTotal,
			autoSendPromotedTotal,
			dispatchFailuresTotal,
			adminRequestsTotal,
			adminLatencySeconds,
		)
	})
}

// Intakes exposes the intake counter.
func Intakes() *prometheus.CounterVec {
	RegisterMetrics()
	return intakeTotal
}

// Transitions exposes the transition counter.
func Transitions() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// SchedulerTicks exposes the scheduler tick counter.
func SchedulerTicks() prometheus.Counter {
	RegisterMetrics()
	return schedulerTicksTotal
}

// AutoSendPromoted exposes the auto-send promotion counter.
func AutoSendPromoted() prometheus.Counter {
	RegisterMetrics()
	return autoSendPromotedTotal
}

// DispatchFailures exposes the dispatch failure counter.
func DispatchFailures() prometheus.Counter {
	RegisterMetrics()
	return dispatchFailuresTotal
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}
