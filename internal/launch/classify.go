// Package launch evaluates liquidity-pool creation events: it tiers them by
// quote-side liquidity, records the evaluation and buys top-tier launches
// for every eligible custodial wallet.
package launch

import (
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
)

// LPInfo is one side of a new pool.
type LPInfo struct {
	Address  string          `json:"address" binding:"required"`
	Decimals uint8           `json:"decimals"`
	LPAmount decimal.Decimal `json:"lp_amount"`
}

// Event is a pool-creation notification. Base is the launched token, quote
// is the native side whose amount measures the launch.
type Event struct {
	Creator   string `json:"creator"`
	Timestamp string `json:"timestamp"`
	BaseInfo  LPInfo `json:"base_info" binding:"required"`
	QuoteInfo LPInfo `json:"quote_info" binding:"required"`
}

// Classify places liquidity into a tier. The lower boundary belongs to
// below_limit, every other boundary to the tier above it.
func Classify(liquidity decimal.Decimal, tiers config.Tiers) domain.LaunchClass {
	switch {
	case liquidity.LessThanOrEqual(tiers.Lower):
		return domain.ClassBelowLimit
	case liquidity.LessThan(tiers.Mid):
		return domain.ClassLowerLimit
	case liquidity.LessThan(tiers.Normal):
		return domain.ClassMidLaunch
	case liquidity.LessThan(tiers.Pro):
		return domain.ClassProLaunch
	default:
		return domain.ClassCrazyLaunch
	}
}

// headline names a tier in broadcasts.
func headline(c domain.LaunchClass) string {
	switch c {
	case domain.ClassCrazyLaunch:
		return "a crazy launch"
	case domain.ClassProLaunch:
		return "a good launch"
	default:
		return "a launch"
	}
}
