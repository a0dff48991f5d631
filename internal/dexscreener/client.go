// Package dexscreener is a small client for the DexScreener token-pairs API,
// used as the liquidity index for pool discovery and token lookups.
package dexscreener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.dexscreener.com"

const (
	maxResponseBytes = 4 << 20
	maxErrorBody     = 512
)

// ErrNoPairs is returned when the index knows no pair for a token.
var ErrNoPairs = errors.New("dexscreener: no pairs for token")

// HTTPError is a non-2xx answer from the API.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("dexscreener http %d", e.StatusCode)
	}
	return fmt.Sprintf("dexscreener http %d: %s", e.StatusCode, b)
}

// Client queries the index. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// Option customises a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/"); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// WithRateLimit caps outgoing requests per second. The public API allows
// 300 requests per minute on the pairs endpoints.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient builds a client with a 10s timeout and a 5 rps limiter.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(5), 5),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Pairs returns every pair the index lists for token on chain.
func (c *Client) Pairs(ctx context.Context, chain, token string) ([]Pair, error) {
	chain = strings.TrimSpace(chain)
	token = strings.TrimSpace(token)
	if chain == "" || token == "" {
		return nil, fmt.Errorf("dexscreener: chain and token are required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	u := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, url.PathEscape(chain), url.PathEscape(token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read dexscreener response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	if len(body) > maxResponseBytes {
		return nil, fmt.Errorf("dexscreener response exceeds %d bytes", maxResponseBytes)
	}

	var pairs []Pair
	if err := json.Unmarshal(body, &pairs); err != nil {
		return nil, fmt.Errorf("decode dexscreener pairs: %w", err)
	}
	return pairs, nil
}

// TokenInfo summarises the first listed pair for token.
func (c *Client) TokenInfo(ctx context.Context, chain, token string) (TokenInfo, error) {
	pairs, err := c.Pairs(ctx, chain, token)
	if err != nil {
		return TokenInfo{}, err
	}
	if len(pairs) == 0 {
		return TokenInfo{}, ErrNoPairs
	}
	p := pairs[0]
	info := TokenInfo{
		Address:     p.BaseToken.Address,
		Name:        p.BaseToken.Name,
		Symbol:      p.BaseToken.Symbol,
		ChainID:     p.ChainID,
		DexID:       p.DexID,
		PairAddress: p.PairAddress,
		PriceUSD:    p.PriceUSD,
		PriceNative: p.PriceNative,
		MarketCap:   p.MarketCap,
		FDV:         p.FDV,
		Labels:      p.Labels,
		URL:         p.URL,
	}
	if p.Liquidity != nil {
		info.LiquidityUSD = p.Liquidity.USD
	}
	if created := p.CreatedAt(); !created.IsZero() {
		info.PairCreatedAt = &created
	}
	if p.Info != nil {
		info.ImageURL = p.Info.ImageURL
		info.Websites = p.Info.Websites
		info.Socials = p.Info.Socials
	}
	return info, nil
}
