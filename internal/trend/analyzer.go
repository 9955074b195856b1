package trend

import (
	"github.com/shopspring/decimal"
)

// Trend is the direction classification of a price series.
type Trend string

const (
	Increasing   Trend = "INCREASING"
	Decreasing   Trend = "DECREASING"
	Stable       Trend = "STABLE"
	Insufficient Trend = "INSUFFICIENT"
)

// Analyzer classifies a series by runs of significant same-direction moves.
type Analyzer struct {
	// MinTrendLength is the number of points a trend must span. A trend
	// needs MinTrendLength-1 consecutive significant moves.
	MinTrendLength int
	// Threshold is the minimum absolute percentage change for a step to count.
	Threshold decimal.Decimal
}

// New returns an analyzer with a float threshold, for call sites with literal tuning.
func New(minTrendLength int, thresholdPct float64) Analyzer {
	return Analyzer{MinTrendLength: minTrendLength, Threshold: decimal.NewFromFloat(thresholdPct)}
}

var hundred = decimal.NewFromInt(100)

// Analyze walks consecutive pairs and returns as soon as a streak is long
// enough. Steps from a zero price are skipped.
func (a Analyzer) Analyze(series []decimal.Decimal) Trend {
	if len(series) < a.MinTrendLength {
		return Insufficient
	}
	need := a.MinTrendLength - 1
	if need < 1 {
		need = 1
	}

	var up, down int
	for i := 1; i < len(series); i++ {
		prev, cur := series[i-1], series[i]
		if prev.IsZero() {
			continue
		}
		change := cur.Sub(prev).Div(prev).Mul(hundred)
		if change.Abs().GreaterThanOrEqual(a.Threshold) && !change.IsZero() {
			if change.IsPositive() {
				up++
				down = 0
			} else {
				down++
				up = 0
			}
		}

		if up >= need {
			return Increasing
		}
		if down >= need {
			return Decreasing
		}
	}
	return Stable
}
