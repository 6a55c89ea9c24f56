package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	questionOpsTotal    *prometheus.CounterVec
	reconcileFailures   prometheus.Counter
	approvalCycles      *prometheus.CounterVec
	decisionsTotal      *prometheus.CounterVec
	notificationsTotal  *prometheus.CounterVec
	cacheLookups        *prometheus.CounterVec
	registerOnce        sync.Once
)

// Register initializes Prometheus metrics on the default registry.
// Until it is called every recorder below is a no-op.
func Register() {
	registerOnce.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed by the survey API.",
		}, []string{"method", "path", "status"})
		httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "survey",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"})
		questionOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "question_ops_total",
			Help:      "Question writes emitted by reconciliation, by kind.",
		}, []string{"kind"})
		reconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "reconcile_partial_failures_total",
			Help:      "Reconciliation batches that did not fully apply.",
		})
		approvalCycles = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "approval_submissions_total",
			Help:      "Moderation outcomes of survey writes.",
		}, []string{"outcome"})
		decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "approval_decisions_total",
			Help:      "Moderator decisions applied, by decision.",
		}, []string{"decision"})
		notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "notifications_total",
			Help:      "Notification deliveries by kind and result.",
		}, []string{"kind", "result"})
		cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "survey",
			Name:      "detail_cache_lookups_total",
			Help:      "Survey detail cache lookups by result.",
		}, []string{"result"})
	})
}

// ObserveRequest records one HTTP request.
func ObserveRequest(method, path string, status int, elapsed time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// AddQuestionOps counts n reconciliation writes of kind.
func AddQuestionOps(kind string, n int) {
	if questionOpsTotal == nil || n == 0 {
		return
	}
	questionOpsTotal.WithLabelValues(kind).Add(float64(n))
}

func IncReconcileFailure() {
	if reconcileFailures == nil {
		return
	}
	reconcileFailures.Inc()
}

// IncSubmission counts the moderation outcome of a survey write.
func IncSubmission(outcome string) {
	if approvalCycles == nil {
		return
	}
	approvalCycles.WithLabelValues(outcome).Inc()
}

func IncDecision(decision string) {
	if decisionsTotal == nil {
		return
	}
	decisionsTotal.WithLabelValues(decision).Inc()
}

// IncNotification counts a delivery attempt; result is "sent" or "failed".
func IncNotification(kind, result string) {
	if notificationsTotal == nil {
		return
	}
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// IncCacheLookup counts a cache lookup; result is "hit" or "miss".
func IncCacheLookup(result string) {
	if cacheLookups == nil {
		return
	}
	cacheLookups.WithLabelValues(result).Inc()
}
