package dexscreener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePairs = `[{
	"chainId":"base","dexId":"uniswap","url":"https://dexscreener.com/base/0xpool",
	"pairAddress":"0x1111111111111111111111111111111111111111","labels":["v3"],
	"baseToken":{"address":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","name":"Alpha","symbol":"ALP"},
	"quoteToken":{"address":"0x4200000000000000000000000000000000000006","name":"Wrapped Ether","symbol":"WETH"},
	"priceNative":"0.0002","priceUsd":"0.51",
	"liquidity":{"usd":125000.5,"base":1000,"quote":20},
	"fdv":5100000,"marketCap":4200000,"pairCreatedAt":1700000000000,
	"info":{"imageUrl":"https://img","websites":[{"url":"https://alpha.xyz"}],"socials":[{"type":"twitter","url":"https://x.com/alpha"}]}
},{
	"chainId":"base","dexId":"aerodrome","pairAddress":"0x2222222222222222222222222222222222222222",
	"baseToken":{"address":"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa","name":"Alpha","symbol":"ALP"}
}]`

func TestPairsAndTokenInfo(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(samplePairs))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0, 0))
	ctx := context.Background()

	pairs, err := client.Pairs(ctx, "base", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "/tokens/v1/base/0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", path)
	assert.Equal(t, "0x1111111111111111111111111111111111111111", pairs[0].PairAddress)

	info, err := client.TokenInfo(ctx, "base", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "ALP", info.Symbol)
	assert.Equal(t, "Alpha", info.Name)
	assert.Equal(t, "0.51", info.PriceUSD)
	assert.InDelta(t, 125000.5, info.LiquidityUSD, 0.001)
	assert.InDelta(t, 4200000, info.MarketCap, 0.001)
	require.NotNil(t, info.PairCreatedAt)
	assert.Equal(t, int64(1700000000), info.PairCreatedAt.Unix())
	require.Len(t, info.Socials, 1)
}

func TestTokenInfoNoPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.TokenInfo(context.Background(), "base", "0xabc")
	assert.ErrorIs(t, err, ErrNoPairs)
}

func TestPairsHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.Pairs(context.Background(), "base", "0xabc")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusTooManyRequests, httpErr.StatusCode)
}

func TestPairsRequiresArguments(t *testing.T) {
	_, err := NewClient().Pairs(context.Background(), "", "0xabc")
	require.Error(t, err)
}

func TestPairsBoundsResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tokens/v1/base/huge":
			_, _ = w.Write([]byte("["))
			_, _ = w.Write([]byte(strings.Repeat(" ", maxResponseBytes)))
			_, _ = w.Write([]byte("]"))
		case "/tokens/v1/base/truncated":
			w.Header().Set("Content-Length", "100")
			_, _ = w.Write([]byte(`[{"pairAddress":`))
		default:
			http.Error(w, strings.Repeat("x", 4*maxErrorBody), http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRateLimit(0, 0))
	ctx := context.Background()

	_, err := client.Pairs(ctx, "base", "huge")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	_, err = client.Pairs(ctx, "base", "truncated")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read dexscreener response")

	_, err = client.Pairs(ctx, "base", "failing")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.Len(t, httpErr.Body, maxErrorBody)
}
