package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricItemsFetchedTotal   = "paper_trader_items_fetched_total"
	MetricOrdersParsedTotal   = "paper_trader_orders_parsed_total"
	MetricOrdersFilledTotal   = "paper_trader_orders_filled_total"
	MetricOrdersRejectedTotal = "paper_trader_orders_rejected_total"
	MetricQuoteLookupsTotal   = "paper_trader_quote_lookups_total"
	MetricQuoteFailuresTotal  = "paper_trader_quote_failures_total"
	MetricCycleDuration       = "paper_trader_cycle_duration_seconds"
	MetricPortfolioNAV        = "paper_trader_portfolio_nav"
	MetricPortfolioCash       = "paper_trader_portfolio_cash"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	ItemsFetchedTotal   metric.Int64Counter
	OrdersParsedTotal   metric.Int64Counter
	OrdersFilledTotal   metric.Int64Counter
	OrdersRejectedTotal metric.Int64Counter
	QuoteLookupsTotal   metric.Int64Counter
	QuoteFailuresTotal  metric.Int64Counter
	CycleDuration       metric.Float64Histogram
	PortfolioNAV        metric.Float64ObservableGauge
	PortfolioCash       metric.Float64ObservableGauge

	// State for observable gauges
	mu   sync.RWMutex
	nav  float64
	cash float64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{}
		// Initialization of instruments happens in InitMetrics
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.ItemsFetchedTotal, err = meter.Int64Counter(MetricItemsFetchedTotal, metric.WithDescription("Total inbound items fetched"))
	if err != nil {
		return err
	}

	m.OrdersParsedTotal, err = meter.Int64Counter(MetricOrdersParsedTotal, metric.WithDescription("Total order commands parsed"))
	if err != nil {
		return err
	}

	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders filled"))
	if err != nil {
		return err
	}

	m.OrdersRejectedTotal, err = meter.Int64Counter(MetricOrdersRejectedTotal, metric.WithDescription("Total orders rejected by a validation gate"))
	if err != nil {
		return err
	}

	m.QuoteLookupsTotal, err = meter.Int64Counter(MetricQuoteLookupsTotal, metric.WithDescription("Total quote lookups attempted"))
	if err != nil {
		return err
	}

	m.QuoteFailuresTotal, err = meter.Int64Counter(MetricQuoteFailuresTotal, metric.WithDescription("Total symbols left unquoted in a cycle"))
	if err != nil {
		return err
	}

	m.CycleDuration, err = meter.Float64Histogram(MetricCycleDuration, metric.WithDescription("Duration of one processing cycle"), metric.WithUnit("s"))
	if err != nil {
		return err
	}

	// Observables
	m.PortfolioNAV, err = meter.Float64ObservableGauge(MetricPortfolioNAV, metric.WithDescription("Net asset value at last valuation"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.nav)
			return nil
		}))
	if err != nil {
		return err
	}

	m.PortfolioCash, err = meter.Float64ObservableGauge(MetricPortfolioCash, metric.WithDescription("Cash balance at last persist"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			obs.Observe(m.cash)
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state

func (m *MetricsHolder) SetNAV(nav float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nav = nav
}

func (m *MetricsHolder) SetCash(cash float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cash = cash
}

// Recording helpers. Instruments are nil until InitMetrics runs; recording
// before that is a no-op.

func (m *MetricsHolder) RecordItemsFetched(ctx context.Context, n int64) {
	if m.ItemsFetchedTotal != nil {
		m.ItemsFetchedTotal.Add(ctx, n)
	}
}

func (m *MetricsHolder) RecordOrderParsed(ctx context.Context) {
	if m.OrdersParsedTotal != nil {
		m.OrdersParsedTotal.Add(ctx, 1)
	}
}

func (m *MetricsHolder) RecordFill(ctx context.Context, side string) {
	if m.OrdersFilledTotal != nil {
		m.OrdersFilledTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("side", side)))
	}
}

// RecordRejection counts one rejection with its reason attribute.
func (m *MetricsHolder) RecordRejection(ctx context.Context, reason string) {
	if m.OrdersRejectedTotal == nil {
		return
	}
	m.OrdersRejectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *MetricsHolder) RecordQuoteLookups(ctx context.Context, n int64) {
	if m.QuoteLookupsTotal != nil {
		m.QuoteLookupsTotal.Add(ctx, n)
	}
}

func (m *MetricsHolder) RecordQuoteFailures(ctx context.Context, n int64) {
	if m.QuoteFailuresTotal != nil {
		m.QuoteFailuresTotal.Add(ctx, n)
	}
}

func (m *MetricsHolder) RecordCycle(ctx context.Context, seconds float64) {
	if m.CycleDuration != nil {
		m.CycleDuration.Record(ctx, seconds)
	}
}
