// Package parser recognizes the command grammar from free-form text.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"paper_trader/internal/core"
)

// Kind identifies the recognized command form.
type Kind int

const (
	Unrecognized Kind = iota
	OrderCmd
	PriceCmd
	PortfolioCmd
)

// Command is the result of parsing one inbound text.
type Command struct {
	Kind   Kind
	Order  core.Order // valid when Kind == OrderCmd
	Ticker string     // valid when Kind == PriceCmd
}

// Parser matches the fixed grammar behind a configurable leading sigil
// ("!" for channel input, "/" for issue input). The sigil is configuration,
// not a different grammar.
type Parser struct {
	orderRe         *regexp.Regexp
	priceRe         *regexp.Regexp
	portfolioPrefix string
}

// New builds a parser for the given sigil.
func New(sigil string) *Parser {
	s := regexp.QuoteMeta(sigil)
	return &Parser{
		orderRe:         regexp.MustCompile(`(?i)^` + s + `(buy|sell)\s+([A-Za-z0-9.-]{1,10})\s+(\d+)\s*(?:@mkt)?$`),
		priceRe:         regexp.MustCompile(`(?i)^` + s + `price\s+([A-Za-z0-9.-]{1,10})$`),
		portfolioPrefix: strings.ToLower(sigil + "portfolio"),
	}
}

// Parse classifies text. Any token sequence outside the grammar yields
// Unrecognized.
func (p *Parser) Parse(text string) Command {
	s := strings.TrimSpace(text)

	if m := p.orderRe.FindStringSubmatch(s); m != nil {
		qty, err := strconv.ParseInt(m[3], 10, 64)
		if err != nil || qty <= 0 {
			return Command{Kind: Unrecognized}
		}
		side := core.Buy
		if strings.EqualFold(m[1], "sell") {
			side = core.Sell
		}
		return Command{
			Kind: OrderCmd,
			Order: core.Order{
				Side:     side,
				Ticker:   strings.ToUpper(m[2]),
				Quantity: qty,
			},
		}
	}

	if m := p.priceRe.FindStringSubmatch(s); m != nil {
		return Command{Kind: PriceCmd, Ticker: strings.ToUpper(m[1])}
	}

	if strings.HasPrefix(strings.ToLower(s), p.portfolioPrefix) {
		return Command{Kind: PortfolioCmd}
	}

	return Command{Kind: Unrecognized}
}
