package dexscreener

import "time"

// Token is the base or quote side of a pair.
type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// Liquidity is reported in USD and in units of each side.
type Liquidity struct {
	USD   float64 `json:"usd"`
	Base  float64 `json:"base"`
	Quote float64 `json:"quote"`
}

// Website links published for a token.
type Website struct {
	Label string `json:"label,omitempty"`
	URL   string `json:"url"`
}

// Social handles published for a token.
type Social struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Info carries the optional profile section of a pair.
type Info struct {
	ImageURL string    `json:"imageUrl,omitempty"`
	Websites []Website `json:"websites,omitempty"`
	Socials  []Social  `json:"socials,omitempty"`
}

// Pair is one element of the /tokens/v1 response array.
type Pair struct {
	ChainID       string     `json:"chainId"`
	DexID         string     `json:"dexId"`
	URL           string     `json:"url"`
	PairAddress   string     `json:"pairAddress"`
	Labels        []string   `json:"labels,omitempty"`
	BaseToken     Token      `json:"baseToken"`
	QuoteToken    Token      `json:"quoteToken"`
	PriceNative   string     `json:"priceNative"`
	PriceUSD      string     `json:"priceUsd"`
	Liquidity     *Liquidity `json:"liquidity,omitempty"`
	FDV           float64    `json:"fdv"`
	MarketCap     float64    `json:"marketCap"`
	PairCreatedAt int64      `json:"pairCreatedAt"`
	Info          *Info      `json:"info,omitempty"`
}

// CreatedAt converts the millisecond pair creation stamp.
func (p Pair) CreatedAt() time.Time {
	if p.PairCreatedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(p.PairCreatedAt).UTC()
}

// TokenInfo is the market summary served by token lookups.
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
	Labels        []string   `json:"labels,omitempty"`
	URL           string     `json:"url,omitempty"`
	ImageURL      string     `json:"image_url,omitempty"`
	Websites      []Website  `json:"websites,omitempty"`
	Socials       []Social   `json:"socials,omitempty"`
}
