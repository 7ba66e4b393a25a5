package quote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper_trader/internal/mock"
	phttp "paper_trader/pkg/http"
)

func newProvider(t *testing.T, handler http.Handler) *YahooProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := phttp.NewClient(srv.URL, 5*time.Second, 0, nil)
	return NewYahooProvider(client, mock.NewLogger())
}

func TestGetQuotes_LivePrices(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL,MSFT", r.URL.Query().Get("symbols"))
		fmt.Fprint(w, `{"quoteResponse":{"result":[
			{"symbol":"AAPL","regularMarketPrice":150.25},
			{"symbol":"MSFT","regularMarketPrice":300.5}
		]}}`)
	}))

	quotes := provider.GetQuotes(context.Background(), []string{"AAPL", "MSFT"})

	require.Len(t, quotes, 2)
	assert.Equal(t, "150.25", quotes["AAPL"].String())
	assert.Equal(t, "300.5", quotes["MSFT"].String())
}

func TestGetQuotes_FallsBackToDailyClose(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			// live endpoint knows nothing about BRK.B
			fmt.Fprint(w, `{"quoteResponse":{"result":[]}}`)
		case "/v8/finance/chart/BRK.B":
			fmt.Fprint(w, `{"chart":{"result":[{
				"meta":{"chartPreviousClose":398.0},
				"indicators":{"quote":[{"close":[401.1,null,402.2]}]}
			}]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	quotes := provider.GetQuotes(context.Background(), []string{"BRK.B"})

	require.Len(t, quotes, 1)
	assert.Equal(t, "402.2", quotes["BRK.B"].String(), "last non-null close wins")
}

func TestGetQuotes_UnresolvableSymbolIsAbsent(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			fmt.Fprint(w, `{"quoteResponse":{"result":[{"symbol":"AAPL","regularMarketPrice":150.0}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	quotes := provider.GetQuotes(context.Background(), []string{"AAPL", "ZZZZ"})

	require.Len(t, quotes, 1, "one symbol failing must not fail the batch")
	assert.Contains(t, quotes, "AAPL")
	assert.NotContains(t, quotes, "ZZZZ")
}

func TestGetQuotes_BatchFailureFallsBackPerSymbol(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v7/finance/quote":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/v8/finance/chart/AAPL":
			fmt.Fprint(w, `{"chart":{"result":[{"meta":{"regularMarketPrice":151.0},"indicators":{"quote":[]}}]}}`)
		default:
			http.NotFound(w, r)
		}
	}))

	quotes := provider.GetQuotes(context.Background(), []string{"AAPL"})

	require.Len(t, quotes, 1)
	assert.Equal(t, "151", quotes["AAPL"].String())
}

func TestGetQuotes_Empty(t *testing.T) {
	provider := newProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an empty ticker list")
	}))

	quotes := provider.GetQuotes(context.Background(), nil)
	assert.Empty(t, quotes)
}
