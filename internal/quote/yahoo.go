// Package quote resolves current prices from the Yahoo Finance public API.
//
// Lookup is two-tiered: a batched live-quote call first, then a per-symbol
// chart call for anything the batch missed, taking the last daily close.
// A symbol that fails both tiers is simply absent from the result; callers
// decide what a missing price means.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"paper_trader/internal/core"
	phttp "paper_trader/pkg/http"
	"paper_trader/pkg/telemetry"
)

// YahooProvider fetches prices over a shared HTTP client.
type YahooProvider struct {
	client *phttp.Client
	logger core.Logger
}

// NewYahooProvider creates a provider on top of client.
func NewYahooProvider(client *phttp.Client, logger core.Logger) *YahooProvider {
	return &YahooProvider{
		client: client,
		logger: logger.WithField("component", "quotes"),
	}
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
				PreviousClose      *float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
	} `json:"chart"`
}

// GetQuotes resolves a price per ticker. Failures degrade per symbol, never
// the whole batch.
func (p *YahooProvider) GetQuotes(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	if len(tickers) == 0 {
		return out
	}

	unique := dedupe(tickers)
	telemetry.GetGlobalMetrics().RecordQuoteLookups(ctx, int64(len(unique)))

	missing := p.fetchBatch(ctx, unique, out)
	for _, ticker := range missing {
		price, err := p.fetchLastClose(ctx, ticker)
		if err != nil {
			p.logger.Warn("no price obtainable", "ticker", ticker, "error", err.Error())
			telemetry.GetGlobalMetrics().RecordQuoteFailures(ctx, 1)
			continue
		}
		out[ticker] = price
	}
	return out
}

// fetchBatch fills out from the live-quote endpoint and returns the tickers
// it could not price.
func (p *YahooProvider) fetchBatch(ctx context.Context, tickers []string, out map[string]decimal.Decimal) []string {
	body, err := p.client.Get(ctx, "/v7/finance/quote", map[string]string{
		"symbols": strings.Join(tickers, ","),
	})
	if err != nil {
		p.logger.Warn("live quote request failed, falling back to daily close", "error", err.Error())
		return tickers
	}

	var resp quoteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		p.logger.Warn("malformed live quote response", "error", err.Error())
		return tickers
	}

	for _, r := range resp.QuoteResponse.Result {
		if r.RegularMarketPrice != nil {
			out[strings.ToUpper(r.Symbol)] = decimal.NewFromFloat(*r.RegularMarketPrice)
		}
	}

	var missing []string
	for _, t := range tickers {
		if _, ok := out[t]; !ok {
			missing = append(missing, t)
		}
	}
	return missing
}

// fetchLastClose asks the chart endpoint for one symbol and takes the most
// recent close, preferring the live meta price when present.
func (p *YahooProvider) fetchLastClose(ctx context.Context, ticker string) (decimal.Decimal, error) {
	body, err := p.client.Get(ctx, "/v8/finance/chart/"+ticker, map[string]string{
		"range":    "5d",
		"interval": "1d",
	})
	if err != nil {
		return decimal.Zero, fmt.Errorf("chart request failed: %w", err)
	}

	var resp chartResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("malformed chart response: %w", err)
	}
	if len(resp.Chart.Result) == 0 {
		return decimal.Zero, fmt.Errorf("no chart data for %s", ticker)
	}

	result := resp.Chart.Result[0]
	if result.Meta.RegularMarketPrice != nil {
		return decimal.NewFromFloat(*result.Meta.RegularMarketPrice), nil
	}

	for _, q := range result.Indicators.Quote {
		for i := len(q.Close) - 1; i >= 0; i-- {
			if q.Close[i] != nil {
				return decimal.NewFromFloat(*q.Close[i]), nil
			}
		}
	}
	if result.Meta.PreviousClose != nil {
		return decimal.NewFromFloat(*result.Meta.PreviousClose), nil
	}
	return decimal.Zero, fmt.Errorf("no close data for %s", ticker)
}

func dedupe(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(t)
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
