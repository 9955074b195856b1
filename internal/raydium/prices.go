package raydium

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/solana"
)

type mintPriceResponse struct {
	ID      string                     `json:"id"`
	Success bool                       `json:"success"`
	Data    map[string]json.RawMessage `json:"data"`
}

// PriceList fetches USD prices for mints and merges them into the cached
// price map. Prices that do not parse are dropped.
func (c *Client) PriceList(ctx context.Context, mints []string) (map[string]decimal.Decimal, error) {
	if len(mints) == 0 {
		mints = []string{string(solana.WrappedSOLMint)}
	}
	u := fmt.Sprintf("%s/mint/price?mints=%s", c.config.APIURL, url.QueryEscape(strings.Join(mints, ",")))

	var resp mintPriceResponse
	if err := c.doJSON(ctx, "GET", u, nil, &resp); err != nil {
		return nil, fmt.Errorf("raydium: price list: %w", err)
	}
	c.priceCount.Add(1)

	prices := make(map[string]decimal.Decimal, len(resp.Data))
	for mint, raw := range resp.Data {
		if p, ok := parsePrice(raw); ok {
			prices[mint] = p
		}
	}
	c.cache.MergeMap(PriceCacheKey, prices, PriceTTL)
	return prices, nil
}

func parsePrice(raw json.RawMessage) (decimal.Decimal, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// cachedPrice looks up mint in the cached price map.
func (c *Client) cachedPrice(mint string) (decimal.Decimal, bool) {
	m, ok := c.cache.GetMap(PriceCacheKey)
	if !ok {
		return decimal.Zero, false
	}
	p, ok := m[mint]
	return p, ok
}

// pricePair returns the USD price of mint and of SOL, fetching both on a miss.
func (c *Client) pricePair(ctx context.Context, mint string) (decimal.Decimal, decimal.Decimal, error) {
	sol := string(solana.WrappedSOLMint)
	tp, tok := c.cachedPrice(mint)
	sp, sok := c.cachedPrice(sol)
	if tok && sok {
		return tp, sp, nil
	}

	mints := []string{mint}
	if mint != sol {
		mints = append(mints, sol)
	}
	prices, err := c.PriceList(ctx, mints)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	tp, tok = prices[mint]
	if !tok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("raydium: no price for %s", mint)
	}
	sp, sok = prices[sol]
	if !sok {
		return decimal.Zero, decimal.Zero, fmt.Errorf("raydium: no SOL price")
	}
	return tp, sp, nil
}

// TokenPriceUSD returns the USD price of mint, from cache when fresh.
func (c *Client) TokenPriceUSD(ctx context.Context, mint string) (decimal.Decimal, error) {
	p, _, err := c.pricePair(ctx, mint)
	return p, err
}

// SOLPriceUSD returns the USD price of SOL.
func (c *Client) SOLPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	return c.TokenPriceUSD(ctx, string(solana.WrappedSOLMint))
}

// TokenPriceSOL returns the price of mint denominated in SOL.
func (c *Client) TokenPriceSOL(ctx context.Context, mint string) (decimal.Decimal, error) {
	tp, sp, err := c.pricePair(ctx, mint)
	if err != nil {
		return decimal.Zero, err
	}
	if sp.IsZero() {
		return decimal.Zero, fmt.Errorf("raydium: SOL price is zero")
	}
	return tp.Div(sp), nil
}
