// Package trader orchestrates one processing run: fetch inbound commands,
// execute them against the portfolio, persist the results and report back.
package trader

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"paper_trader/internal/config"
	"paper_trader/internal/core"
	"paper_trader/internal/engine"
	"paper_trader/internal/parser"
	"paper_trader/pkg/telemetry"
)

// Deps are the collaborators a Trader needs.
type Deps struct {
	Source     core.Source
	Quotes     core.QuoteProvider
	Portfolios core.PortfolioStore
	Ledger     core.Ledger
	Notifier   core.Notifier
	Allowlist  func() (core.Allowlist, error)
	Logger     core.Logger
}

// Trader runs processing cycles. It is single-threaded: one cycle at a time,
// items within a cycle oldest first.
type Trader struct {
	cfg    *config.Config
	source core.Source
	quotes core.QuoteProvider
	stores core.PortfolioStore
	ledger core.Ledger
	notify core.Notifier
	allow  func() (core.Allowlist, error)
	parser *parser.Parser
	engine *engine.Engine
	logger core.Logger
	now    func() time.Time
}

// New creates a trader.
func New(cfg *config.Config, deps Deps) *Trader {
	return &Trader{
		cfg:    cfg,
		source: deps.Source,
		quotes: deps.Quotes,
		stores: deps.Portfolios,
		ledger: deps.Ledger,
		notify: deps.Notifier,
		allow:  deps.Allowlist,
		parser: parser.New(cfg.Trading.CommandSigil),
		engine: engine.New(deps.Logger),
		logger: deps.Logger.WithField("component", "trader"),
		now:    time.Now,
	}
}

type parsedItem struct {
	item core.Item
	cmd  parser.Command
}

// RunCycle executes one full pass. The returned error is terminal for the
// process when it wraps a permission failure; otherwise the next scheduled
// cycle is the retry.
func (t *Trader) RunCycle(ctx context.Context) error {
	start := t.now()
	defer func() {
		telemetry.GetGlobalMetrics().RecordCycle(ctx, t.now().Sub(start).Seconds())
	}()

	portfolio, err := t.stores.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load portfolio: %w", err)
	}

	var parsed []parsedItem
	if t.cfg.App.Mode != "mark" {
		items, err := t.source.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch from %s failed: %w", t.source.Name(), err)
		}
		telemetry.GetGlobalMetrics().RecordItemsFetched(ctx, int64(len(items)))
		parsed = t.parseItems(ctx, items)
	}

	quotes := t.quotes.GetQuotes(ctx, neededTickers(parsed, portfolio))

	dirty := false
	var fills []core.Fill
	var runErr error
	for _, pi := range parsed {
		fill, err := t.handle(ctx, pi, portfolio, quotes)
		if fill != nil {
			fills = append(fills, *fill)
			dirty = true
		}
		if err != nil {
			// required-channel delivery is broken; stop taking orders but
			// still persist what already filled
			runErr = err
			break
		}
	}

	if runErr == nil && len(fills) > 0 {
		if err := t.notify.Post(ctx, summaryNotification(fills)); err != nil {
			t.logger.Warn("fill summary notification failed", "error", err.Error())
		}
	}

	if runErr == nil && t.cfg.App.Mode != "fills" {
		if t.markToMarket(ctx, portfolio, quotes) {
			dirty = true
		}
	}

	if dirty {
		if err := t.stores.Save(ctx, portfolio); err != nil {
			return fmt.Errorf("failed to save portfolio: %w", err)
		}
	}

	if t.cfg.App.Mode != "mark" {
		if err := t.source.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit cursor: %w", err)
		}
	}

	v := engine.Valuate(portfolio, quotes)
	nav, _ := v.NAV.Float64()
	cash, _ := portfolio.Cash.Float64()
	telemetry.GetGlobalMetrics().SetNAV(nav)
	telemetry.GetGlobalMetrics().SetCash(cash)

	t.logger.Info("cycle complete",
		"items", len(parsed),
		"cash", portfolio.Cash.StringFixed(2),
		"nav", v.NAV.StringFixed(2),
	)
	return runErr
}

// parseItems classifies each item. Items that carry the command sigil but
// fail the grammar are reported back as invalid; anything else that does not
// parse is chatter and is dropped silently.
func (t *Trader) parseItems(ctx context.Context, items []core.Item) []parsedItem {
	out := make([]parsedItem, 0, len(items))
	for _, item := range items {
		cmd := t.parser.Parse(item.Text)
		if cmd.Kind == parser.Unrecognized {
			if strings.HasPrefix(strings.TrimSpace(item.Text), t.cfg.Trading.CommandSigil) {
				if err := t.source.Invalid(ctx, item); err != nil {
					t.logger.Warn("failed to flag invalid item", "id", item.ID, "error", err.Error())
				}
			}
			continue
		}
		telemetry.GetGlobalMetrics().RecordOrderParsed(ctx)
		out = append(out, parsedItem{item: item, cmd: cmd})
	}
	return out
}

// neededTickers collects every symbol the cycle will price: order and price
// command targets plus all held positions.
func neededTickers(parsed []parsedItem, p *core.Portfolio) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ticker string) {
		if ticker == "" {
			return
		}
		if _, ok := seen[ticker]; ok {
			return
		}
		seen[ticker] = struct{}{}
		out = append(out, ticker)
	}

	for _, pi := range parsed {
		switch pi.cmd.Kind {
		case parser.OrderCmd:
			add(pi.cmd.Order.Ticker)
		case parser.PriceCmd:
			add(pi.cmd.Ticker)
		}
	}
	for _, ticker := range p.Tickers() {
		add(ticker)
	}
	return out
}

// handle processes one recognized command. It returns the fill when the
// command mutated the portfolio, and an error when the outcome could not be
// delivered to a required channel.
func (t *Trader) handle(ctx context.Context, pi parsedItem, portfolio *core.Portfolio, quotes map[string]decimal.Decimal) (*core.Fill, error) {
	switch pi.cmd.Kind {
	case parser.OrderCmd:
		return t.handleOrder(ctx, pi, portfolio, quotes)
	case parser.PriceCmd:
		return nil, t.reply(ctx, pi.item, priceNotification(pi.cmd.Ticker, quotes))
	case parser.PortfolioCmd:
		v := engine.Valuate(portfolio, quotes)
		return nil, t.reply(ctx, pi.item, valuationNotification("Portfolio", v))
	}
	return nil, nil
}

func (t *Trader) handleOrder(ctx context.Context, pi parsedItem, portfolio *core.Portfolio, quotes map[string]decimal.Decimal) (*core.Fill, error) {
	allow, err := t.allow()
	if err != nil {
		t.logger.Error("failed to load allowlist", "error", err.Error())
		return nil, t.reply(ctx, pi.item, core.Notification{
			Level: core.NotifyError,
			Plain: "Internal error: symbols allowlist unavailable.",
		})
	}

	res := t.engine.Execute(portfolio, allow, quotes, pi.cmd.Order, t.now())
	if res.Rejected() {
		telemetry.GetGlobalMetrics().RecordRejection(ctx, string(res.Rejection.Reason))
		return nil, t.reply(ctx, pi.item, rejectionNotification(*res.Rejection))
	}

	telemetry.GetGlobalMetrics().RecordFill(ctx, string(res.Fill.Side))
	if err := t.ledger.Append(ctx, *res.Fill); err != nil {
		// the fill already mutated the portfolio; losing the ledger row is
		// worse than a duplicate notification
		t.logger.Error("ledger append failed", "fill_id", res.Fill.ID, "error", err.Error())
	}
	return res.Fill, t.reply(ctx, pi.item, fillNotification(*res.Fill, portfolio))
}

// reply posts the outcome and acknowledges the item. An item whose outcome
// never reached a required channel is left unacked so the failure surfaces
// instead of being swallowed.
func (t *Trader) reply(ctx context.Context, item core.Item, n core.Notification) error {
	if err := t.notify.Post(ctx, n); err != nil {
		return fmt.Errorf("outcome for item %s undelivered: %w", item.ID, err)
	}
	if err := t.source.Ack(ctx, item, replyText(n)); err != nil {
		t.logger.Warn("ack failed", "id", item.ID, "error", err.Error())
	}
	return nil
}

// markToMarket posts the daily valuation once per UTC day and stamps the
// portfolio so restarts within the same day stay quiet.
func (t *Trader) markToMarket(ctx context.Context, portfolio *core.Portfolio, quotes map[string]decimal.Decimal) bool {
	today := t.now().UTC().Format("2006-01-02")
	if portfolio.LastMark != nil && *portfolio.LastMark == today {
		return false
	}

	v := engine.Valuate(portfolio, quotes)
	n := valuationNotification("Daily Mark "+today, v)
	if err := t.notify.Post(ctx, n); err != nil {
		t.logger.Warn("mark-to-market notification failed", "error", err.Error())
		return false
	}

	portfolio.LastMark = &today
	return true
}

// RunLoop runs cycles at the configured poll interval until ctx is done.
func (t *Trader) RunLoop(ctx context.Context) error {
	interval := time.Duration(t.cfg.Timing.PollIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := t.RunCycle(ctx); err != nil {
			if isFatal(err) {
				return err
			}
			t.logger.Error("cycle failed", "error", err.Error())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
