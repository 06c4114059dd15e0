package observability

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PrometheusHandler returns a Gin handler for Prometheus metrics
func PrometheusHandler(handler http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if handler != nil {
			handler.ServeHTTP(c.Writer, c.Request)
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "metrics handler not initialized",
			})
		}
	}
}

// EngineMetrics instruments the aggregation engine.
type EngineMetrics struct {
	passDuration   metric.Float64Histogram
	memberOutcomes metric.Int64Counter
	tokenRefreshes metric.Int64Counter
}

// NewEngineMetrics registers the engine's instruments on the global meter provider.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("fitrank/engine")

	passDuration, err := meter.Float64Histogram(
		"aggregation_pass_duration_seconds",
		metric.WithDescription("Duration of one full leaderboard aggregation pass"),
	)
	if err != nil {
		return nil, err
	}

	memberOutcomes, err := meter.Int64Counter(
		"aggregation_member_outcomes_total",
		metric.WithDescription("Per-member aggregation outcomes by result"),
	)
	if err != nil {
		return nil, err
	}

	tokenRefreshes, err := meter.Int64Counter(
		"provider_token_refreshes_total",
		metric.WithDescription("Refresh-token grant attempts by result"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		passDuration:   passDuration,
		memberOutcomes: memberOutcomes,
		tokenRefreshes: tokenRefreshes,
	}, nil
}

// RecordPass records the duration of one aggregation pass.
func (m *EngineMetrics) RecordPass(ctx context.Context, d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Record(ctx, d.Seconds())
}

// RecordMemberOutcome counts one member's result within a pass
// (refreshed, cached, fallback, revoked).
func (m *EngineMetrics) RecordMemberOutcome(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.memberOutcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordTokenRefresh counts one refresh-token grant attempt
// (ok, rejected, transient).
func (m *EngineMetrics) RecordTokenRefresh(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
