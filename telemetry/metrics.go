// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	MessagesArchived prometheus.Counter
	MessagesFailed   prometheus.Counter
	LedgerWrites     prometheus.Counter
	LedgerSkips      prometheus.Counter
	LedgerFailures   *prometheus.CounterVec // label: kind
	RoleChanges      *prometheus.CounterVec // label: action

	// Histograms (seconds)
	StoreRequestDuration *prometheus.HistogramVec // label: op

	// Gauges
	GatewayConnected prometheus.Gauge // 1=connected,0=not
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		MessagesArchived = promauto.NewCounter(prometheus.CounterOpts{Name: "archive_messages_archived_total", Help: "Number of message files written"})
		MessagesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "archive_messages_failed_total", Help: "Number of message files that could not be written"})
		LedgerWrites = promauto.NewCounter(prometheus.CounterOpts{Name: "archive_ledger_writes_total", Help: "Number of daily URL ledger writes"})
		LedgerSkips = promauto.NewCounter(prometheus.CounterOpts{Name: "archive_ledger_skips_total", Help: "Number of ledger merges that needed no write"})
		LedgerFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "archive_ledger_failures_total", Help: "Number of failed ledger merges by error kind"}, []string{"kind"})
		RoleChanges = promauto.NewCounterVec(prometheus.CounterOpts{Name: "archive_reaction_role_changes_total", Help: "Reaction role toggles by action"}, []string{"action"})
		StoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "archive_store_request_duration_seconds", Help: "Remote store request duration seconds", Buckets: prometheus.DefBuckets}, []string{"op"})
		GatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{Name: "archive_gateway_connected", Help: "Chat gateway session connected=1 disconnected=0"})
	})
}

func inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// IncMessagesArchived counts one written message file.
func IncMessagesArchived() { inc(MessagesArchived) }

// IncMessagesFailed counts one message file that could not be written.
func IncMessagesFailed() { inc(MessagesFailed) }

// IncLedgerWrites counts one committed ledger update.
func IncLedgerWrites() { inc(LedgerWrites) }

// IncLedgerSkips counts one merge that was already represented.
func IncLedgerSkips() { inc(LedgerSkips) }

// IncLedgerFailure counts one failed merge labelled by store error kind.
func IncLedgerFailure(kind string) {
	if LedgerFailures != nil {
		LedgerFailures.WithLabelValues(kind).Inc()
	}
}

// IncRoleChange counts one reaction role outcome (added, removed, dropped, failed).
func IncRoleChange(action string) {
	if RoleChanges != nil {
		RoleChanges.WithLabelValues(action).Inc()
	}
}

// ObserveStoreRequest records the duration of one remote store call.
func ObserveStoreRequest(op string, d time.Duration) {
	if StoreRequestDuration != nil {
		StoreRequestDuration.WithLabelValues(op).Observe(d.Seconds())
	}
}

// SetGatewayConnected records the gateway session state.
func SetGatewayConnected(up bool) {
	if GatewayConnected == nil {
		return
	}
	if up {
		GatewayConnected.Set(1)
	} else {
		GatewayConnected.Set(0)
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context carrying the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
