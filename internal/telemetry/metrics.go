package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/tallystack/treasury"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Treasury metrics
	DepositsTotal      metric.Int64Counter
	WithdrawalsTotal   metric.Int64Counter
	InternalMovesTotal metric.Int64Counter

	// Payroll metrics
	PayrollBatchesTotal  metric.Int64Counter
	PayrollPaymentsTotal metric.Int64Counter

	// Swap metrics
	SwapsRequestedTotal    metric.Int64Counter
	SwapsExecutedTotal     metric.Int64Counter
	SwapSettlementDuration metric.Float64Histogram

	// Audit metrics
	AuditEventsRecordedTotal metric.Int64Counter
	AuditEventsDroppedTotal  metric.Int64Counter

	// HTTP metrics
	RequestDuration metric.Float64Histogram
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	// Treasury metrics
	m.DepositsTotal, _ = meter.Int64Counter(
		"treasury.deposits.total",
		metric.WithDescription("Total number of treasury funding operations"),
		metric.WithUnit("{deposit}"),
	)

	m.WithdrawalsTotal, _ = meter.Int64Counter(
		"treasury.withdrawals.total",
		metric.WithDescription("Total number of treasury withdrawals"),
		metric.WithUnit("{withdrawal}"),
	)

	m.InternalMovesTotal, _ = meter.Int64Counter(
		"treasury.internal_moves.total",
		metric.WithDescription("Total number of tag-to-tag moves"),
		metric.WithUnit("{move}"),
	)

	// Payroll metrics
	m.PayrollBatchesTotal, _ = meter.Int64Counter(
		"treasury.payroll.batches.total",
		metric.WithDescription("Total number of settled payroll batches"),
		metric.WithUnit("{batch}"),
	)

	m.PayrollPaymentsTotal, _ = meter.Int64Counter(
		"treasury.payroll.payments.total",
		metric.WithDescription("Total number of individual payroll payments"),
		metric.WithUnit("{payment}"),
	)

	// Swap metrics
	m.SwapsRequestedTotal, _ = meter.Int64Counter(
		"treasury.swaps.requested.total",
		metric.WithDescription("Total number of swap tickets opened"),
		metric.WithUnit("{swap}"),
	)

	m.SwapsExecutedTotal, _ = meter.Int64Counter(
		"treasury.swaps.executed.total",
		metric.WithDescription("Total number of swap tickets settled"),
		metric.WithUnit("{swap}"),
	)

	m.SwapSettlementDuration, _ = meter.Float64Histogram(
		"treasury.swaps.settlement.duration",
		metric.WithDescription("Time between swap request and settlement"),
		metric.WithUnit("ms"),
	)

	// Audit metrics
	m.AuditEventsRecordedTotal, _ = meter.Int64Counter(
		"treasury.audit.events.recorded.total",
		metric.WithDescription("Total number of audit events recorded"),
		metric.WithUnit("{event}"),
	)

	m.AuditEventsDroppedTotal, _ = meter.Int64Counter(
		"treasury.audit.events.dropped.total",
		metric.WithDescription("Total number of audit events dropped due to recorder errors"),
		metric.WithUnit("{event}"),
	)

	// HTTP metrics
	m.RequestDuration, _ = meter.Float64Histogram(
		"treasury.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("ms"),
	)

	return m
}
