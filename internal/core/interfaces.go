// Package core defines the domain types and interfaces of the paper trader.
package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteProvider returns a best-effort current price per symbol: the live
// price when available, the last daily close otherwise. Symbols with neither
// are absent from the result; a lookup failure for one symbol never fails
// the batch.
type QuoteProvider interface {
	GetQuotes(ctx context.Context, tickers []string) map[string]decimal.Decimal
}

// Source polls one inbound transport (chat channel, issue tracker) for new
// command items since the saved cursor, oldest first, with bot-authored and
// already-processed items filtered out.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]Item, error)
	// Ack marks an item handled. reply carries the per-item outcome text for
	// transports that answer in-thread; channel transports may ignore it.
	// A rejection is a terminal outcome and is acked like a fill.
	Ack(ctx context.Context, item Item, reply string) error
	// Invalid marks an item whose text matched the command sigil but not the
	// grammar.
	Invalid(ctx context.Context, item Item) error
	// Commit persists the advanced cursor at the end of a run.
	Commit(ctx context.Context) error
}

// Notifier posts notifications to the configured channels.
type Notifier interface {
	Post(ctx context.Context, n Notification) error
}

// PortfolioStore reads the portfolio at the start of a cycle and writes it
// back at the end.
type PortfolioStore interface {
	Load(ctx context.Context) (*Portfolio, error)
	Save(ctx context.Context, p *Portfolio) error
}

// Ledger appends one immutable record per executed fill.
type Ledger interface {
	Append(ctx context.Context, fill Fill) error
}

// StateStore persists the processing cursor between runs.
type StateStore interface {
	LoadState(ctx context.Context) (*CursorState, error)
	SaveState(ctx context.Context, state *CursorState) error
	Close() error
}

// Allowlist is the per-run set of tradable symbols.
type Allowlist map[string]struct{}

// Contains reports whether ticker is tradable.
func (a Allowlist) Contains(ticker string) bool {
	_, ok := a[ticker]
	return ok
}

// Logger defines the interface for logging
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}
