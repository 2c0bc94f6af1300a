package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storageOpsTotal  *prometheus.CounterVec
	backendAvailable prometheus.Gauge
	probesTotal      *prometheus.CounterVec
	fallbackEntries  prometheus.Gauge

	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	sessionResetsTotal  prometheus.Counter

	telegramUpdatesTotal  *prometheus.CounterVec
	telegramMessagesTotal prometheus.Counter
	telegramErrorsTotal   prometheus.Counter
	rateLimitedTotal      *prometheus.CounterVec

	paymentEventsTotal *prometheus.CounterVec
	subscriptionsGauge *prometheus.GaugeVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storageOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storage_operations_total",
					Help: "Total key-value operations by path, operation and status.",
				},
				[]string{"path", "op", "status"},
			),
			backendAvailable: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "storage_backend_available",
					Help: "Backend availability as seen by the health monitor (1 available, 0 not).",
				},
			),
			probesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "storage_health_probes_total",
					Help: "Total health probes by result.",
				},
				[]string{"result"},
			),
			fallbackEntries: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "storage_fallback_entries",
					Help: "Current entry count in the in-memory fallback store.",
				},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionResetsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "session_resets_total",
					Help: "Total session resets requested by users.",
				},
			),
			telegramUpdatesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "telegram_updates_total",
					Help: "Total Telegram updates received by kind.",
				},
				[]string{"kind"},
			),
			telegramMessagesTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "telegram_messages_sent_total",
					Help: "Total Telegram messages sent.",
				},
			),
			telegramErrorsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "telegram_errors_total",
					Help: "Total Telegram API errors.",
				},
			),
			rateLimitedTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limited_total",
					Help: "Total requests rejected by the rate limiter by action class.",
				},
				[]string{"action"},
			),
			paymentEventsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "payment_events_total",
					Help: "Total payment webhook events by type and status.",
				},
				[]string{"event", "status"},
			),
			subscriptionsGauge: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "subscriptions_active",
					Help: "Active subscriptions by tier.",
				},
				[]string{"tier"},
			),
		}

		prometheus.MustRegister(
			m.storageOpsTotal,
			m.backendAvailable,
			m.probesTotal,
			m.fallbackEntries,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.sessionResetsTotal,
			m.telegramUpdatesTotal,
			m.telegramMessagesTotal,
			m.telegramErrorsTotal,
			m.rateLimitedTotal,
			m.paymentEventsTotal,
			m.subscriptionsGauge,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordStorageOp(path, op string, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.storageOpsTotal.WithLabelValues(path, op, status).Inc()
}

func SetBackendAvailable(available bool) {
	m := getMetrics()
	value := 0.0
	if available {
		value = 1.0
	}
	m.backendAvailable.Set(value)
}

func RecordProbe(success bool) {
	m := getMetrics()
	result := "failure"
	if success {
		result = "success"
	}
	m.probesTotal.WithLabelValues(result).Inc()
}

func SetFallbackEntries(count int) {
	m := getMetrics()
	m.fallbackEntries.Set(float64(count))
}

func RecordSessionLoad(duration time.Duration) {
	m := getMetrics()
	m.sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordSessionReset() {
	m := getMetrics()
	m.sessionResetsTotal.Inc()
}

func RecordTelegramUpdate(kind string) {
	m := getMetrics()
	m.telegramUpdatesTotal.WithLabelValues(kind).Inc()
}

func RecordTelegramMessageSent() {
	m := getMetrics()
	m.telegramMessagesTotal.Inc()
}

func RecordTelegramError() {
	m := getMetrics()
	m.telegramErrorsTotal.Inc()
}

func RecordRateLimited(action string) {
	m := getMetrics()
	m.rateLimitedTotal.WithLabelValues(action).Inc()
}

func RecordPaymentEvent(event string, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.paymentEventsTotal.WithLabelValues(event, status).Inc()
}

func SetActiveSubscriptions(tier string, count int) {
	m := getMetrics()
	m.subscriptionsGauge.WithLabelValues(tier).Set(float64(count))
}
