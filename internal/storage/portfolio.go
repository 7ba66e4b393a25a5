// Package storage persists the trader's durable artifacts: the portfolio
// snapshot, the append-only ledger, the symbols allowlist and the processing
// cursor.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"paper_trader/internal/core"
)

// portfolioFile is the on-disk JSON shape. Cash is a plain JSON number so
// the file stays hand-editable.
type portfolioFile struct {
	Cash      json.Number      `json:"cash"`
	Positions map[string]int64 `json:"positions"`
	LastMark  *string          `json:"last_mark,omitempty"`
}

// JSONPortfolioStore reads and writes the portfolio snapshot file.
type JSONPortfolioStore struct {
	path        string
	defaultCash decimal.Decimal
	logger      core.Logger
}

// NewJSONPortfolioStore creates a store over path. A missing file is not an
// error: Load bootstraps a fresh portfolio seeded with defaultCash.
func NewJSONPortfolioStore(path string, defaultCash decimal.Decimal, logger core.Logger) *JSONPortfolioStore {
	return &JSONPortfolioStore{
		path:        path,
		defaultCash: defaultCash,
		logger:      logger.WithField("component", "portfolio_store"),
	}
}

// Load returns the persisted portfolio, or a fresh one when no file exists.
func (s *JSONPortfolioStore) Load(ctx context.Context) (*core.Portfolio, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		s.logger.Info("no portfolio file, starting fresh",
			"path", s.path,
			"cash", s.defaultCash.StringFixed(2),
		)
		return core.NewPortfolio(s.defaultCash), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read portfolio file: %w", err)
	}

	var f portfolioFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse portfolio file: %w", err)
	}

	cash, err := decimal.NewFromString(f.Cash.String())
	if err != nil {
		return nil, fmt.Errorf("invalid cash value %q: %w", f.Cash, err)
	}

	p := core.NewPortfolio(cash)
	for ticker, qty := range f.Positions {
		if qty > 0 {
			p.Positions[ticker] = qty
		}
	}
	p.LastMark = f.LastMark
	return p, nil
}

// Save writes the portfolio atomically (temp file then rename).
func (s *JSONPortfolioStore) Save(ctx context.Context, p *core.Portfolio) error {
	f := portfolioFile{
		Cash:      json.Number(p.Cash.StringFixed(2)),
		Positions: p.Positions,
		LastMark:  p.LastMark,
	}
	if f.Positions == nil {
		f.Positions = map[string]int64{}
	}

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}
	data = append(data, '\n')

	return writeFileAtomic(s.path, data, 0o644)
}

// writeFileAtomic writes data to a sibling temp file and renames it into
// place so a crash mid-write never leaves a truncated file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
