// Package engine implements order validation and simulated fills.
//
// An order passes a sequence of hard gates: allowlist, quote availability,
// cash (buy) or held quantity (sell). The first failing gate short-circuits
// with a typed rejection and no state change. A passing order mutates the
// portfolio in place and produces exactly one fill.
package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"paper_trader/internal/core"
)

// epsilon absorbs floating rounding noise from upstream quote feeds:
// a buy is rejected only if cost > cash + epsilon.
var epsilon = decimal.New(1, -9)

// cashScale is the currency rounding applied after each mutation.
const cashScale = 2

// Engine executes parsed orders against the current portfolio state.
type Engine struct {
	logger core.Logger
}

// New creates a fill engine.
func New(logger core.Logger) *Engine {
	return &Engine{logger: logger.WithField("component", "engine")}
}

// Result is the outcome of executing one order: exactly one of Fill or
// Rejection is set.
type Result struct {
	Fill      *core.Fill
	Rejection *core.Rejection
}

// Rejected reports whether the order was refused.
func (r Result) Rejected() bool {
	return r.Rejection != nil
}

// Execute validates order against portfolio, allowlist and quotes, and on
// success applies the mutation. Orders from one batch must be executed
// oldest first against the same portfolio so that later orders see the
// cumulative effect of earlier fills.
func (e *Engine) Execute(p *core.Portfolio, allow core.Allowlist, quotes map[string]decimal.Decimal, order core.Order, now time.Time) Result {
	if !allow.Contains(order.Ticker) {
		return e.reject(order, core.RejectNotAllowed,
			fmt.Sprintf("Ticker `%s` not allowed. Add it to the symbols allowlist.", order.Ticker))
	}

	price, ok := quotes[order.Ticker]
	if !ok {
		return e.reject(order, core.RejectNoQuote,
			fmt.Sprintf("No price for `%s` right now.", order.Ticker))
	}

	switch order.Side {
	case core.Buy:
		cost := order.Notional(price)
		if cost.Sub(p.Cash).GreaterThan(epsilon) {
			return e.reject(order, core.RejectInsufficientCash,
				fmt.Sprintf("Insufficient cash. Need $%s; have $%s.", cost.StringFixed(cashScale), p.Cash.StringFixed(cashScale)))
		}
		p.Cash = p.Cash.Sub(cost).Round(cashScale)
		p.Positions[order.Ticker] += order.Quantity
		return e.fill(order, price, cost, now)

	case core.Sell:
		held := p.Position(order.Ticker)
		if order.Quantity > held {
			return e.reject(order, core.RejectInsufficientShares,
				fmt.Sprintf("Not enough shares of `%s`. You have %d.", order.Ticker, held))
		}
		proceeds := order.Notional(price)
		p.Cash = p.Cash.Add(proceeds).Round(cashScale)
		remaining := held - order.Quantity
		if remaining == 0 {
			// zero positions are removed, not kept
			delete(p.Positions, order.Ticker)
		} else {
			p.Positions[order.Ticker] = remaining
		}
		return e.fill(order, price, proceeds, now)

	default:
		// sides come from the parser; anything else is a bug
		panic(fmt.Sprintf("unknown order side %q", order.Side))
	}
}

func (e *Engine) fill(order core.Order, price, notional decimal.Decimal, now time.Time) Result {
	f := &core.Fill{
		ID:        uuid.NewString(),
		Timestamp: now,
		Side:      order.Side,
		Ticker:    order.Ticker,
		Quantity:  order.Quantity,
		Price:     price,
		Notional:  notional,
	}
	e.logger.Info("order filled",
		"side", order.Side,
		"ticker", order.Ticker,
		"qty", order.Quantity,
		"price", price.String(),
	)
	return Result{Fill: f}
}

func (e *Engine) reject(order core.Order, reason core.RejectReason, msg string) Result {
	e.logger.Info("order rejected",
		"side", order.Side,
		"ticker", order.Ticker,
		"qty", order.Quantity,
		"reason", string(reason),
	)
	return Result{Rejection: &core.Rejection{Order: order, Reason: reason, Message: msg}}
}

// Valuate marks every quotable position to market. Positions without a
// quote this cycle are skipped from the valuation entirely.
func Valuate(p *core.Portfolio, quotes map[string]decimal.Decimal) core.Valuation {
	v := core.Valuation{Cash: p.Cash}

	tickers := p.Tickers()
	sort.Strings(tickers)

	equity := decimal.Zero
	for _, t := range tickers {
		price, ok := quotes[t]
		if !ok {
			continue
		}
		qty := p.Positions[t]
		value := price.Mul(decimal.NewFromInt(qty))
		equity = equity.Add(value)
		v.Rows = append(v.Rows, core.PositionValue{
			Ticker:   t,
			Quantity: qty,
			Price:    price,
			Value:    value,
		})
	}

	v.NAV = p.Cash.Add(equity).Round(cashScale)
	return v
}
