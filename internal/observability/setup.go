package observability

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const namespace = "hustlebot"

var (
	auditLogger atomic.Pointer[zap.Logger]
	registerMu  sync.Once

	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Moderation gate decisions by decision and reason",
		},
		[]string{"decision", "reason"},
	)

	challengesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verification_challenges_total",
			Help:      "Verification challenge events by outcome",
		},
		[]string{"outcome"},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admin_notifications_total",
			Help:      "Admin notification deliveries by status",
		},
		[]string{"status"},
	)

	ledgerPointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_points_awarded_total",
			Help:      "Hustle points awarded by source",
		},
		[]string{"source"},
	)

	gateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "moderation_gate_duration_seconds",
			Help:      "Time spent evaluating one inbound event",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Init registers metrics, installs the tracer provider and builds the audit logger.
// The returned function flushes and shuts both down.
func Init(ctx context.Context) (func(context.Context) error, error) {
	registerMu.Do(func() {
		prometheus.MustRegister(decisionsTotal, challengesTotal, notificationsTotal, ledgerPointsTotal, gateDuration)
	})

	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	auditLogger.Store(logger.Named("audit"))

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		_ = logger.Sync()
		return tp.Shutdown(ctx)
	}, nil
}

// Audit returns the audit logger, a no-op logger before Init.
func Audit() *zap.Logger {
	if l := auditLogger.Load(); l != nil {
		return l
	}
	return zap.NewNop()
}

func RecordDecision(decision, reason string) {
	decisionsTotal.WithLabelValues(decision, reason).Inc()
}

func RecordChallenge(outcome string) {
	challengesTotal.WithLabelValues(outcome).Inc()
}

func RecordNotification(status string) {
	notificationsTotal.WithLabelValues(status).Inc()
}

func RecordPoints(source string, points int) {
	ledgerPointsTotal.WithLabelValues(source).Add(float64(points))
}

// StartGateTimer returns a function recording the elapsed gate evaluation time.
func StartGateTimer() func() {
	start := time.Now()
	return func() {
		gateDuration.Observe(time.Since(start).Seconds())
	}
}
