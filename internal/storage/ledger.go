package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"paper_trader/internal/core"
)

// ledgerHeader is written once when the file is created. Column order is
// part of the file contract.
var ledgerHeader = []string{"timestamp", "side", "ticker", "qty", "fill_price", "value"}

// CSVLedger appends one row per fill to an append-only CSV file.
type CSVLedger struct {
	path string
}

// NewCSVLedger creates a ledger over path. The file and its header row are
// created lazily on first append.
func NewCSVLedger(path string) *CSVLedger {
	return &CSVLedger{path: path}
}

// Append writes one fill record. Rows are never rewritten.
func (l *CSVLedger) Append(ctx context.Context, fill core.Fill) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat ledger: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(ledgerHeader); err != nil {
			return fmt.Errorf("failed to write ledger header: %w", err)
		}
	}

	row := []string{
		fill.Timestamp.UTC().Format(time.RFC3339),
		string(fill.Side),
		fill.Ticker,
		strconv.FormatInt(fill.Quantity, 10),
		fill.Price.String(),
		fill.Notional.StringFixed(2),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("failed to write ledger row: %w", err)
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	return f.Sync()
}
