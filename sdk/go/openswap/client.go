// Package openswap is a Go client for the openswapd REST API.
package openswap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
const DefaultHTTPTimeout = 15 * time.Second

// Client wraps the HTTP interactions with the openswapd REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// SwapSubmission is the payload accepted by POST /api/v1/swaps.
type SwapSubmission struct {
	ID        string         `json:"id,omitempty"`
	Wallet    string         `json:"wallet,omitempty"`
	Token     string         `json:"token"`
	AmountIn  string         `json:"amount_in"`
	Direction string         `json:"direction"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// SwapResult is the outcome attached to a finished swap task.
type SwapResult struct {
	RequestID      string   `json:"request_id"`
	Success        bool     `json:"success"`
	TxHash         string   `json:"tx_hash,omitempty"`
	ApprovalTxHash string   `json:"approval_tx_hash,omitempty"`
	Message        string   `json:"message"`
	State          string   `json:"state"`
	Code           string   `json:"code,omitempty"`
	Warnings       []string `json:"warnings,omitempty"`
	AmountIn       string   `json:"amount_in,omitempty"`
	QuotedOut      string   `json:"quoted_out,omitempty"`
	MinAmountOut   string   `json:"min_amount_out,omitempty"`
}

// Swap is a queued or finished swap task.
type Swap struct {
	ID         string         `json:"id"`
	Wallet     string         `json:"wallet,omitempty"`
	Token      string         `json:"token"`
	AmountIn   string         `json:"amount_in"`
	Direction  string         `json:"direction"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     string         `json:"status"`
	Attempts   int            `json:"attempts"`
	MaxRetries int            `json:"max_retries"`
	LastError  string         `json:"last_error,omitempty"`
	ErrorCode  string         `json:"error_code,omitempty"`
	Result     *SwapResult    `json:"result,omitempty"`
	CreatedAt  int64          `json:"created_at"`
	UpdatedAt  int64          `json:"updated_at"`
}

// Finished reports whether the task reached a terminal status.
func (s Swap) Finished() bool {
	return s.Status == "succeeded" || s.Status == "failed"
}

// Quote is the read-only preview served by GET /api/v1/quote. Amounts are
// base-unit integers.
type Quote struct {
	Token             string      `json:"token"`
	Direction         string      `json:"direction"`
	Pool              string      `json:"pool"`
	FeeTier           uint32      `json:"fee_tier"`
	TokenIn           string      `json:"token_in"`
	TokenOut          string      `json:"token_out"`
	Decimals          uint8       `json:"decimals"`
	AmountIn          json.Number `json:"amount_in"`
	QuotedOut         json.Number `json:"quoted_out"`
	MinAmountOut      json.Number `json:"min_amount_out"`
	TolerancePerMille uint32      `json:"tolerance_per_mille"`
	Warnings          []string    `json:"warnings,omitempty"`
}

// TokenInfo is the market summary of a token.
type TokenInfo struct {
	Address       string     `json:"address"`
	Name          string     `json:"name"`
	Symbol        string     `json:"symbol"`
	ChainID       string     `json:"chain_id"`
	DexID         string     `json:"dex_id"`
	PairAddress   string     `json:"pair_address"`
	PriceUSD      string     `json:"price_usd"`
	PriceNative   string     `json:"price_native"`
	LiquidityUSD  float64    `json:"liquidity_usd"`
	MarketCap     float64    `json:"market_cap"`
	FDV           float64    `json:"fdv"`
	PairCreatedAt *time.Time `json:"pair_created_at,omitempty"`
	URL           string     `json:"url,omitempty"`
}

// TokenBalance is an account's balance of one ERC20 token.
type TokenBalance struct {
	Token      string `json:"token"`
	Symbol     string `json:"symbol,omitempty"`
	Decimals   uint8  `json:"decimals"`
	Balance    string `json:"balance"`
	BalanceRaw string `json:"balance_raw"`
}

// WalletInfo is the balance view of an account.
type WalletInfo struct {
	Address    string         `json:"address"`
	Balance    string         `json:"balance"`
	BalanceWei string         `json:"balance_wei"`
	TxCount    uint64         `json:"tx_count"`
	ChainID    string         `json:"chain_id"`
	Network    string         `json:"network,omitempty"`
	Tokens     []TokenBalance `json:"tokens,omitempty"`
}

// HistoryRecord is one persisted swap attempt.
type HistoryRecord struct {
	RequestID      string   `json:"request_id"`
	TaskID         string   `json:"task_id,omitempty"`
	Wallet         string   `json:"wallet"`
	Token          string   `json:"token"`
	Direction      string   `json:"direction"`
	AmountIn       string   `json:"amount_in,omitempty"`
	Success        bool     `json:"success"`
	State          string   `json:"state"`
	TxHash         string   `json:"tx_hash,omitempty"`
	ApprovalTxHash string   `json:"approval_tx_hash,omitempty"`
	ErrorCode      string   `json:"error_code,omitempty"`
	Message        string   `json:"message"`
	Warnings       []string `json:"warnings,omitempty"`
	CreatedAt      int64    `json:"created_at"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("openswap api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("openswap api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the openswapd API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SubmitSwap queues a swap task.
func (c *Client) SubmitSwap(ctx context.Context, submission SwapSubmission) (Swap, error) {
	var created Swap
	if err := c.post(ctx, "/api/v1/swaps", submission, &created); err != nil {
		return Swap{}, err
	}
	return created, nil
}

// GetSwap fetches a swap task by identifier.
func (c *Client) GetSwap(ctx context.Context, id string) (Swap, error) {
	var detail Swap
	if err := c.get(ctx, "/api/v1/swaps/"+url.PathEscape(id), nil, &detail); err != nil {
		return Swap{}, err
	}
	return detail, nil
}

// ListSwaps lists swap tasks; status may be empty or a comma separated list.
func (c *Client) ListSwaps(ctx context.Context, status string, limit int) ([]Swap, error) {
	query := url.Values{}
	if status != "" {
		query.Set("status", status)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var swaps []Swap
	if err := c.get(ctx, "/api/v1/swaps", query, &swaps); err != nil {
		return nil, err
	}
	return swaps, nil
}

// WaitForSwap polls the task until it finishes or ctx ends.
func (c *Client) WaitForSwap(ctx context.Context, id string, interval time.Duration) (Swap, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		current, err := c.GetSwap(ctx, id)
		if err != nil {
			return Swap{}, err
		}
		if current.Finished() {
			return current, nil
		}
		select {
		case <-ctx.Done():
			return current, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Quote previews a swap without sending any transaction.
func (c *Client) Quote(ctx context.Context, token, amountIn, direction string) (Quote, error) {
	query := url.Values{}
	query.Set("token", token)
	query.Set("amount_in", amountIn)
	query.Set("direction", direction)
	var quote Quote
	if err := c.get(ctx, "/api/v1/quote", query, &quote); err != nil {
		return Quote{}, err
	}
	return quote, nil
}

// TokenInfo returns the market summary of a token.
func (c *Client) TokenInfo(ctx context.Context, address string) (TokenInfo, error) {
	var info TokenInfo
	if err := c.get(ctx, "/api/v1/tokens/"+url.PathEscape(address), nil, &info); err != nil {
		return TokenInfo{}, err
	}
	return info, nil
}

// WalletInfo returns balance, transaction count and chain id of an account,
// plus its balance of every listed token.
func (c *Client) WalletInfo(ctx context.Context, address string, tokens ...string) (WalletInfo, error) {
	var query url.Values
	if len(tokens) > 0 {
		query = url.Values{"token": tokens}
	}
	var info WalletInfo
	if err := c.get(ctx, "/api/v1/wallets/"+url.PathEscape(address), query, &info); err != nil {
		return WalletInfo{}, err
	}
	return info, nil
}

// History returns the latest persisted swaps, optionally for one wallet.
func (c *Client) History(ctx context.Context, wallet string, limit int) ([]HistoryRecord, error) {
	query := url.Values{}
	if wallet != "" {
		query.Set("wallet", wallet)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var records []HistoryRecord
	if err := c.get(ctx, "/api/v1/history", query, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &struct {
				Error *APIError `json:"error"`
			}{Error: apiErr})
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsNotFound reports whether err is an API 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
