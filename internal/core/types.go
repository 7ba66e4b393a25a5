package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side identifies the direction of an order.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Order is one parsed trade command. It lives only for the duration of a
// single processing pass.
type Order struct {
	Side     Side
	Ticker   string
	Quantity int64
}

// Notional returns quantity * price.
func (o Order) Notional(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(o.Quantity))
}

// Fill is one executed order. Exactly one ledger record is written per fill.
type Fill struct {
	ID        string
	Timestamp time.Time
	Side      Side
	Ticker    string
	Quantity  int64
	Price     decimal.Decimal
	Notional  decimal.Decimal
}

// RejectReason classifies why an order was refused.
type RejectReason string

const (
	RejectNotAllowed         RejectReason = "not_allowed"
	RejectNoQuote            RejectReason = "no_quote"
	RejectInsufficientCash   RejectReason = "insufficient_cash"
	RejectInsufficientShares RejectReason = "not_enough_shares"
)

// Rejection is the terminal outcome of an order that failed a validation
// gate. It carries a user-facing message and causes no state change.
type Rejection struct {
	Order   Order
	Reason  RejectReason
	Message string
}

// Portfolio holds the cash balance and open positions. It is mutated only by
// the fill engine and persisted after each processing batch.
type Portfolio struct {
	Cash      decimal.Decimal
	Positions map[string]int64
	LastMark  *string
}

// NewPortfolio returns an empty portfolio seeded with cash.
func NewPortfolio(cash decimal.Decimal) *Portfolio {
	return &Portfolio{
		Cash:      cash,
		Positions: make(map[string]int64),
	}
}

// Position returns the held quantity for ticker, zero if none.
func (p *Portfolio) Position(ticker string) int64 {
	return p.Positions[ticker]
}

// Tickers returns the set of currently held tickers.
func (p *Portfolio) Tickers() []string {
	out := make([]string, 0, len(p.Positions))
	for t := range p.Positions {
		out = append(out, t)
	}
	return out
}

// PositionValue is one row of a portfolio valuation.
type PositionValue struct {
	Ticker   string
	Quantity int64
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// Valuation is the result of marking every quotable position to market.
// Positions without a quote this cycle are excluded from Rows and NAV.
type Valuation struct {
	Cash decimal.Decimal
	Rows []PositionValue
	NAV  decimal.Decimal
}

// Item is one inbound message or issue fetched from a source adapter.
type Item struct {
	ID      string
	Author  string
	FromBot bool
	Text    string
	Created time.Time
}

// CursorState tracks the last inbound item seen and a bounded window of
// already-processed identifiers, persisted between runs.
type CursorState struct {
	LastItemID   string   `json:"last_item_id"`
	ProcessedIDs []string `json:"processed_ids"`
}

// MaxProcessedIDs bounds the dedup window carried across runs.
const MaxProcessedIDs = 500

// Truncate drops the oldest processed identifiers beyond the window.
func (s *CursorState) Truncate() {
	if len(s.ProcessedIDs) > MaxProcessedIDs {
		s.ProcessedIDs = s.ProcessedIDs[len(s.ProcessedIDs)-MaxProcessedIDs:]
	}
}

// Processed reports whether id is in the dedup window.
func (s *CursorState) Processed(id string) bool {
	for _, p := range s.ProcessedIDs {
		if p == id {
			return true
		}
	}
	return false
}

// MarkProcessed records id in the dedup window.
func (s *CursorState) MarkProcessed(id string) {
	if !s.Processed(id) {
		s.ProcessedIDs = append(s.ProcessedIDs, id)
	}
}

// NotifyLevel grades a notification.
type NotifyLevel string

const (
	NotifyInfo    NotifyLevel = "INFO"
	NotifySuccess NotifyLevel = "SUCCESS"
	NotifyWarning NotifyLevel = "WARNING"
	NotifyError   NotifyLevel = "ERROR"
)

// MaxNotifyFields caps the field list of a structured notification
// (Discord embed limit).
const MaxNotifyFields = 25

// NotifyField is one name/value pair of a structured notification.
type NotifyField struct {
	Name   string
	Value  string
	Inline bool
}

// Notification is a human-readable result posted back to the operator.
// Plain carries unstructured text; Title/Description/Fields form an embed.
// BestEffort notifications go to secondary channels only and never fail
// the run.
type Notification struct {
	Level       NotifyLevel
	Title       string
	Description string
	Fields      []NotifyField
	Plain       string
	BestEffort  bool
}
