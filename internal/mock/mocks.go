package mock

import (
	"context"

	"github.com/shopspring/decimal"

	"paper_trader/internal/core"
)

// QuoteProvider serves a fixed price table.
type QuoteProvider struct {
	Prices map[string]decimal.Decimal
	Calls  [][]string
}

func NewQuoteProvider(prices map[string]decimal.Decimal) *QuoteProvider {
	return &QuoteProvider{Prices: prices}
}

func (q *QuoteProvider) GetQuotes(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	q.Calls = append(q.Calls, tickers)
	out := make(map[string]decimal.Decimal)
	for _, t := range tickers {
		if price, ok := q.Prices[t]; ok {
			out[t] = price
		}
	}
	return out
}

// AckRecord captures one Ack call.
type AckRecord struct {
	Item  core.Item
	Reply string
}

// Source replays a scripted batch of items and records what the trader does
// with them.
type Source struct {
	SourceName string
	Items      []core.Item
	FetchErr   error
	AckErr     error

	Acks      []AckRecord
	Invalids  []core.Item
	Committed int
}

func NewSource(items ...core.Item) *Source {
	return &Source{SourceName: "mock", Items: items}
}

func (s *Source) Name() string {
	return s.SourceName
}

func (s *Source) Fetch(ctx context.Context) ([]core.Item, error) {
	if s.FetchErr != nil {
		return nil, s.FetchErr
	}
	return s.Items, nil
}

func (s *Source) Ack(ctx context.Context, item core.Item, reply string) error {
	if s.AckErr != nil {
		return s.AckErr
	}
	s.Acks = append(s.Acks, AckRecord{Item: item, Reply: reply})
	return nil
}

func (s *Source) Invalid(ctx context.Context, item core.Item) error {
	s.Invalids = append(s.Invalids, item)
	return nil
}

func (s *Source) Commit(ctx context.Context) error {
	s.Committed++
	return nil
}

// Notifier records every posted notification.
type Notifier struct {
	Posted  []core.Notification
	PostErr error
}

func NewNotifier() *Notifier { return &Notifier{} }

func (n *Notifier) Post(ctx context.Context, notification core.Notification) error {
	if n.PostErr != nil {
		return n.PostErr
	}
	n.Posted = append(n.Posted, notification)
	return nil
}

// PortfolioStore keeps the portfolio in memory.
type PortfolioStore struct {
	Portfolio *PortfolioSnapshot
	LoadErr   error
	SaveErr   error
	Saves     int
}

// PortfolioSnapshot is the stored copy, decoupled from the live pointer the
// trader mutates.
type PortfolioSnapshot struct {
	Cash      decimal.Decimal
	Positions map[string]int64
	LastMark  *string
}

func NewPortfolioStore(p *core.Portfolio) *PortfolioStore {
	s := &PortfolioStore{}
	s.put(p)
	return s
}

func (s *PortfolioStore) put(p *core.Portfolio) {
	snap := &PortfolioSnapshot{Cash: p.Cash, Positions: make(map[string]int64), LastMark: p.LastMark}
	for t, q := range p.Positions {
		snap.Positions[t] = q
	}
	s.Portfolio = snap
}

func (s *PortfolioStore) Load(ctx context.Context) (*core.Portfolio, error) {
	if s.LoadErr != nil {
		return nil, s.LoadErr
	}
	p := core.NewPortfolio(s.Portfolio.Cash)
	for t, q := range s.Portfolio.Positions {
		p.Positions[t] = q
	}
	p.LastMark = s.Portfolio.LastMark
	return p, nil
}

func (s *PortfolioStore) Save(ctx context.Context, p *core.Portfolio) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.put(p)
	s.Saves++
	return nil
}

// Ledger records appended fills.
type Ledger struct {
	Fills     []core.Fill
	AppendErr error
}

func NewLedger() *Ledger { return &Ledger{} }

func (l *Ledger) Append(ctx context.Context, fill core.Fill) error {
	if l.AppendErr != nil {
		return l.AppendErr
	}
	l.Fills = append(l.Fills, fill)
	return nil
}

// StateStore keeps the cursor in memory.
type StateStore struct {
	State *core.CursorState
	Saves int
}

func NewStateStore() *StateStore {
	return &StateStore{State: &core.CursorState{}}
}

func (s *StateStore) LoadState(ctx context.Context) (*core.CursorState, error) {
	return s.State, nil
}

func (s *StateStore) SaveState(ctx context.Context, state *core.CursorState) error {
	s.State = state
	s.Saves++
	return nil
}

func (s *StateStore) Close() error { return nil }
