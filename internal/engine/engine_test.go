package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_trader/internal/core"
	"paper_trader/internal/mock"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testAllowlist(tickers ...string) core.Allowlist {
	a := make(core.Allowlist, len(tickers))
	for _, t := range tickers {
		a[t] = struct{}{}
	}
	return a
}

var now = time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC)

func TestExecute_BuyFill(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("100000"))
	quotes := map[string]decimal.Decimal{"AAPL": d("150.00")}

	res := e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 10}, now)

	require.False(t, res.Rejected())
	require.NotNil(t, res.Fill)
	assert.True(t, p.Cash.Equal(d("98500.00")), "cash = %s", p.Cash)
	assert.Equal(t, int64(10), p.Position("AAPL"))
	assert.Equal(t, core.Buy, res.Fill.Side)
	assert.True(t, res.Fill.Price.Equal(d("150.00")))
	assert.True(t, res.Fill.Notional.Equal(d("1500.00")))
	assert.NotEmpty(t, res.Fill.ID)
	assert.Equal(t, now, res.Fill.Timestamp)
}

func TestExecute_SellFillClosesPosition(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("0"))
	p.Positions["AAPL"] = 10
	quotes := map[string]decimal.Decimal{"AAPL": d("160.00")}

	res := e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Sell, Ticker: "AAPL", Quantity: 10}, now)

	require.False(t, res.Rejected())
	assert.True(t, p.Cash.Equal(d("1600.00")))
	_, held := p.Positions["AAPL"]
	assert.False(t, held, "zero position must be removed, not kept")
}

func TestExecute_PartialSellKeepsRemainder(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("0"))
	p.Positions["AAPL"] = 10
	quotes := map[string]decimal.Decimal{"AAPL": d("100")}

	res := e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Sell, Ticker: "AAPL", Quantity: 4}, now)

	require.False(t, res.Rejected())
	assert.Equal(t, int64(6), p.Position("AAPL"))
	assert.True(t, p.Cash.Equal(d("400.00")))
}

func TestExecute_RejectionsLeaveStateUntouched(t *testing.T) {
	tests := []struct {
		name   string
		order  core.Order
		reason core.RejectReason
	}{
		{
			name:   "ticker not in allowlist",
			order:  core.Order{Side: core.Buy, Ticker: "ZZZZ", Quantity: 1},
			reason: core.RejectNotAllowed,
		},
		{
			name:   "no quote obtainable",
			order:  core.Order{Side: core.Buy, Ticker: "MSFT", Quantity: 1},
			reason: core.RejectNoQuote,
		},
		{
			name:   "insufficient cash",
			order:  core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 1000},
			reason: core.RejectInsufficientCash,
		},
		{
			name:   "not enough shares",
			order:  core.Order{Side: core.Sell, Ticker: "AAPL", Quantity: 11},
			reason: core.RejectInsufficientShares,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(mock.NewLogger())
			p := core.NewPortfolio(d("100"))
			p.Positions["AAPL"] = 10
			allow := testAllowlist("AAPL", "MSFT")
			quotes := map[string]decimal.Decimal{"AAPL": d("150.00")}

			res := e.Execute(p, allow, quotes, tt.order, now)

			require.True(t, res.Rejected())
			assert.Equal(t, tt.reason, res.Rejection.Reason)
			assert.Nil(t, res.Fill)
			assert.True(t, p.Cash.Equal(d("100")), "cash changed on rejection")
			assert.Equal(t, int64(10), p.Position("AAPL"), "positions changed on rejection")
		})
	}
}

func TestExecute_RejectionIsIdempotent(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("100"))
	allow := testAllowlist("AAPL")
	quotes := map[string]decimal.Decimal{"AAPL": d("150.00")}
	order := core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 10}

	first := e.Execute(p, allow, quotes, order, now)
	second := e.Execute(p, allow, quotes, order, now)

	require.True(t, first.Rejected())
	require.True(t, second.Rejected())
	assert.Equal(t, first.Rejection.Reason, second.Rejection.Reason)
	assert.Equal(t, first.Rejection.Message, second.Rejection.Message)
}

func TestExecute_BuyWithinEpsilonTolerance(t *testing.T) {
	e := New(mock.NewLogger())
	// cost == cash exactly must fill
	p := core.NewPortfolio(d("1500"))
	quotes := map[string]decimal.Decimal{"AAPL": d("150")}

	res := e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 10}, now)

	require.False(t, res.Rejected())
	assert.True(t, p.Cash.IsZero(), "cash = %s", p.Cash)
}

func TestExecute_BatchIsCumulative(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("1000"))
	allow := testAllowlist("AAPL")
	quotes := map[string]decimal.Decimal{"AAPL": d("400")}

	// First buy consumes 800, leaving 200: the second identical buy must see
	// the updated balance and be rejected.
	first := e.Execute(p, allow, quotes, core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 2}, now)
	second := e.Execute(p, allow, quotes, core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 2}, now)

	require.False(t, first.Rejected())
	require.True(t, second.Rejected())
	assert.Equal(t, core.RejectInsufficientCash, second.Rejection.Reason)
	assert.True(t, p.Cash.Equal(d("200.00")))
	assert.Equal(t, int64(2), p.Position("AAPL"))
}

func TestExecute_CashRoundedToCents(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("1000"))
	quotes := map[string]decimal.Decimal{"AAPL": d("33.333333")}

	res := e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Buy, Ticker: "AAPL", Quantity: 3}, now)

	require.False(t, res.Rejected())
	// 3 * 33.333333 = 99.999999, cash = 900.000001 -> 900.00
	assert.True(t, p.Cash.Equal(d("900.00")), "cash = %s", p.Cash)
}

func TestExecute_UnknownSidePanics(t *testing.T) {
	e := New(mock.NewLogger())
	p := core.NewPortfolio(d("1000"))
	quotes := map[string]decimal.Decimal{"AAPL": d("150.00")}

	assert.Panics(t, func() {
		e.Execute(p, testAllowlist("AAPL"), quotes, core.Order{Side: core.Side("hold"), Ticker: "AAPL", Quantity: 1}, now)
	})
}

func TestValuate(t *testing.T) {
	p := core.NewPortfolio(d("100"))
	p.Positions["AAPL"] = 10
	p.Positions["MSFT"] = 2
	p.Positions["ZZZZ"] = 5 // no quote this cycle
	quotes := map[string]decimal.Decimal{
		"AAPL": d("150.00"),
		"MSFT": d("300.00"),
	}

	v := Valuate(p, quotes)

	require.Len(t, v.Rows, 2, "unquotable position must be skipped")
	assert.Equal(t, "AAPL", v.Rows[0].Ticker)
	assert.Equal(t, "MSFT", v.Rows[1].Ticker)
	assert.True(t, v.Rows[0].Value.Equal(d("1500.00")))
	assert.True(t, v.Rows[1].Value.Equal(d("600.00")))
	assert.True(t, v.NAV.Equal(d("2200.00")), "nav = %s", v.NAV)
}

func TestValuate_EmptyPortfolio(t *testing.T) {
	p := core.NewPortfolio(d("123.45"))
	v := Valuate(p, nil)
	assert.Empty(t, v.Rows)
	assert.True(t, v.NAV.Equal(d("123.45")))
}
