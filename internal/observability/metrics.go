package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	apiRequestsTotal         *prometheus.CounterVec
	apiLatencySeconds        *prometheus.HistogramVec
	apiErrorsTotal           *prometheus.CounterVec
	otpRequestsTotal         *prometheus.CounterVec
	loginsTotal              *prometheus.CounterVec
	resultsPublishedTotal    prometheus.Counter
	notificationsPublished   *prometheus.CounterVec
	sseClientsActive         prometheus.Gauge
	sessionsSweptTotal       prometheus.Counter
	achievementsAwardedTotal *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served, by portal.",
		}, []string{"portal", "method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests, by portal.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"portal", "method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses, by portal.",
		}, []string{"portal", "method", "route", "status"})

		otpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "otp_requests_total",
			Help: "One-time passcode requests by channel and outcome.",
		}, []string{"channel", "outcome"})

		loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Sign-in attempts by method and outcome.",
		}, []string{"method", "outcome"})

		resultsPublishedTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "results_published_total",
			Help: "Exam result publications persisted.",
		})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications delivered to local subscribers by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_sse_clients_active",
			Help: "Open notification streams on this node.",
		})

		sessionsSweptTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sessions_swept_total",
			Help: "Expired sessions removed by the sweeper.",
		})

		achievementsAwardedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "achievements_awarded_total",
			Help: "Achievements awarded by source.",
		}, []string{"source"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			otpRequestsTotal,
			loginsTotal,
			resultsPublishedTotal,
			notificationsPublished,
			sseClientsActive,
			sessionsSweptTotal,
			achievementsAwardedTotal,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error response counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// OTPRequests counts passcode requests by channel and outcome.
func OTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return otpRequestsTotal
}

// Logins counts sign-in attempts by method and outcome.
func Logins() *prometheus.CounterVec {
	RegisterMetrics()
	return loginsTotal
}

// ResultsPublished counts persisted result publications.
func ResultsPublished() prometheus.Counter {
	RegisterMetrics()
	return resultsPublishedTotal
}

// NotificationsPublishedTotal counts locally delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// SessionsSwept counts expired sessions purged.
func SessionsSwept() prometheus.Counter {
	RegisterMetrics()
	return sessionsSweptTotal
}

// AchievementsAwarded counts awarded achievements.
func AchievementsAwarded() *prometheus.CounterVec {
	RegisterMetrics()
	return achievementsAwardedTotal
}
