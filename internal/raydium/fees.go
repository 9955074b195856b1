package raydium

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/pricecache"
)

// FeeTiers are compute unit prices in micro-lamports.
type FeeTiers struct {
	VeryHigh decimal.Decimal
	High     decimal.Decimal
	Medium   decimal.Decimal
}

type autoFeeResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    struct {
		Default struct {
			VH decimal.Decimal `json:"vh"`
			H  decimal.Decimal `json:"h"`
			M  decimal.Decimal `json:"m"`
		} `json:"default"`
	} `json:"data"`
}

// PriorityFee returns the auto-fee tiers, cached for FeeTTL. When the API is
// unavailable and a fallback source is set, its estimate fills every tier
// and is not cached.
func (c *Client) PriorityFee(ctx context.Context) (FeeTiers, error) {
	if m, ok := c.cache.GetMap(FeeCacheKey); ok {
		vh, ok1 := m["vh"]
		h, ok2 := m["h"]
		md, ok3 := m["m"]
		if ok1 && ok2 && ok3 {
			return FeeTiers{VeryHigh: vh, High: h, Medium: md}, nil
		}
	}

	var resp autoFeeResponse
	err := c.doJSON(ctx, "GET", c.config.APIURL+"/main/auto-fee", nil, &resp)
	if err == nil && resp.Data.Default.H.IsPositive() {
		tiers := FeeTiers{
			VeryHigh: resp.Data.Default.VH,
			High:     resp.Data.Default.H,
			Medium:   resp.Data.Default.M,
		}
		c.cache.Set(FeeCacheKey, pricecache.MapValue(map[string]decimal.Decimal{
			"vh": tiers.VeryHigh,
			"h":  tiers.High,
			"m":  tiers.Medium,
		}), FeeTTL)
		return tiers, nil
	}
	if err == nil {
		err = fmt.Errorf("empty fee tiers")
	}

	if c.fallback == nil {
		return FeeTiers{}, fmt.Errorf("raydium: auto-fee: %w", err)
	}
	log.Warn().Err(err).Msg("raydium: auto-fee unavailable, using recent priority fees")
	fee, ferr := c.fallback.RecentPriorityFee(ctx)
	if ferr != nil {
		return FeeTiers{}, fmt.Errorf("raydium: auto-fee: %v; fallback: %w", err, ferr)
	}
	d := decimal.NewFromInt(int64(fee))
	return FeeTiers{VeryHigh: d, High: d, Medium: d}, nil
}
