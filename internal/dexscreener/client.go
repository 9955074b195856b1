// Package dexscreener fetches token pair metadata from the DexScreener API.
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

	"github.com/shopspring/decimal"
)

// ErrNoPairs is returned when the API knows no pair for the token.
var ErrNoPairs = errors.New("dexscreener: no pairs")

const defaultBaseURL = "https://api.dexscreener.com"

type Token struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

type Liquidity struct {
	USD   decimal.Decimal `json:"usd"`
	Base  decimal.Decimal `json:"base"`
	Quote decimal.Decimal `json:"quote"`
}

type Boosts struct {
	Active int `json:"active"`
}

// Pair is the subset of a DexScreener pair the engine reads. Raw keeps the
// full object for storage as launch metadata.
type Pair struct {
	ChainID       string          `json:"chainId"`
	DexID         string          `json:"dexId"`
	PairAddress   string          `json:"pairAddress"`
	BaseToken     Token           `json:"baseToken"`
	QuoteToken    Token           `json:"quoteToken"`
	PriceNative   decimal.Decimal `json:"priceNative"`
	PriceUSD      decimal.Decimal `json:"priceUsd"`
	Liquidity     Liquidity       `json:"liquidity"`
	FDV           decimal.Decimal `json:"fdv"`
	MarketCap     decimal.Decimal `json:"marketCap"`
	PairCreatedAt int64           `json:"pairCreatedAt"`
	Boosts        *Boosts         `json:"boosts,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// HasBoost reports whether the pair carries an active boost.
func (p Pair) HasBoost() bool {
	return p.Boosts != nil && p.Boosts.Active > 0
}

// TokenData is the response for one token address.
type TokenData struct {
	SchemaVersion string
	Pairs         []Pair
}

// First returns the first pair. TokenData returned by FetchToken always has one.
func (d *TokenData) First() Pair {
	return d.Pairs[0]
}

// Client is a thin DexScreener HTTP client.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client. Empty values fall back to public defaults.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{BaseURL: baseURL, HTTP: &http.Client{Timeout: timeout}}
}

// FetchToken returns the pairs trading address. A null or empty pair list is ErrNoPairs.
func (c *Client) FetchToken(ctx context.Context, address string) (*TokenData, error) {
	if strings.TrimSpace(address) == "" {
		return nil, errors.New("dexscreener: token address required")
	}
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	u := fmt.Sprintf("%s/latest/dex/tokens/%s", base, url.PathEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	client := c.HTTP
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dexscreener: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("dexscreener: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("dexscreener: http %d", resp.StatusCode)
	}

	var envelope struct {
		SchemaVersion string            `json:"schemaVersion"`
		Pairs         []json.RawMessage `json:"pairs"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("dexscreener: decode: %w", err)
	}
	if len(envelope.Pairs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoPairs, address)
	}

	data := &TokenData{SchemaVersion: envelope.SchemaVersion, Pairs: make([]Pair, 0, len(envelope.Pairs))}
	for i, raw := range envelope.Pairs {
		var p Pair
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("dexscreener: decode pair %d: %w", i, err)
		}
		p.Raw = raw
		data.Pairs = append(data.Pairs, p)
	}
	return data, nil
}
