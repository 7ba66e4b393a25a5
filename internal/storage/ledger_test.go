package storage

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_trader/internal/core"
)

func testFill(side core.Side, ticker string, qty int64, price string) core.Fill {
	p := d(price)
	return core.Fill{
		ID:        "f-1",
		Timestamp: time.Date(2024, 6, 3, 14, 30, 0, 0, time.UTC),
		Side:      side,
		Ticker:    ticker,
		Quantity:  qty,
		Price:     p,
		Notional:  p.Mul(decimal.NewFromInt(qty)),
	}
}

func TestLedger_CreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	ledger := NewCSVLedger(path)

	require.NoError(t, ledger.Append(context.Background(), testFill(core.Buy, "AAPL", 10, "150.00")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "side", "ticker", "qty", "fill_price", "value"}, rows[0])
	assert.Equal(t, []string{"2024-06-03T14:30:00Z", "BUY", "AAPL", "10", "150", "1500.00"}, rows[1])
}

func TestLedger_AppendsWithoutRewriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	ledger := NewCSVLedger(path)
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, testFill(core.Buy, "AAPL", 10, "150.00")))
	require.NoError(t, ledger.Append(ctx, testFill(core.Sell, "AAPL", 4, "160.00")))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3, "one header plus one row per fill")
	assert.Equal(t, "BUY", rows[1][1])
	assert.Equal(t, "SELL", rows[2][1])
}

func TestLedger_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.csv")
	ledger := NewCSVLedger(path)
	ctx := context.Background()

	require.NoError(t, ledger.Append(ctx, testFill(core.Buy, "AAPL", 1, "10")))

	// a second ledger over the same file must not repeat the header
	require.NoError(t, NewCSVLedger(path).Append(ctx, testFill(core.Buy, "AAPL", 1, "10")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "timestamp,side"))
}
