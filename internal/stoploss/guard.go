package stoploss

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/notify"
	"github.com/0xayot/davids-sling/internal/storage"
	"github.com/0xayot/davids-sling/internal/trend"
)

// guardAnalyzer needs three points spanning two moves of at least 20 %.
var guardAnalyzer = trend.New(3, 20)

// guardMinPoints is the history length above which the trend decides.
const guardMinPoints = 5

// OnPriceUpdate guards positions bought at launch. With enough recent
// history a falling trend sells every launch order and a doubling broadcasts.
// With little history the launch price is the reference and a fall past the
// launch stop-loss percentage sells.
func (e *Evaluator) OnPriceUpdate(ctx context.Context, contract string, price decimal.Decimal) (batch.Report, error) {
	launch, err := e.Launches.GetLatestByContract(ctx, contract)
	if errors.Is(err, storage.ErrNotFound) {
		return batch.Report{}, nil
	}
	if err != nil {
		return batch.Report{}, fmt.Errorf("stoploss: launch %s: %w", contract, err)
	}
	if launch.Evaluation != domain.EvaluationTrack {
		return batch.Report{}, nil
	}

	points, err := e.Prices.Since(ctx, contract, e.now().Add(-e.cfg.GuardWindow))
	if err != nil {
		return batch.Report{}, fmt.Errorf("stoploss: price window %s: %w", contract, err)
	}
	series := make([]decimal.Decimal, 0, len(points))
	for _, p := range points {
		series = append(series, p.Price)
	}

	if len(series) > guardMinPoints {
		ref := series[0]
		if ref.IsZero() {
			return batch.Report{}, nil
		}
		switch guardAnalyzer.Analyze(series) {
		case trend.Increasing:
			if price.GreaterThanOrEqual(ref.Mul(decimal.NewFromInt(2))) {
				e.broadcast(ctx, fmt.Sprintf("the price of %s is up from %s to %s", contract, launchPrice(launch, ref), price))
			}
		case trend.Decreasing:
			log.Info().Str("contract", contract).Str("price", price.String()).Msg("stoploss: launch trend falling")
			return e.sellLaunchOrders(ctx, contract, price, ref)
		}
		return batch.Report{}, nil
	}

	ref := decimal.Zero
	if launch.LaunchPriceUSD.Valid && launch.LaunchPriceUSD.Decimal.IsPositive() {
		ref = launch.LaunchPriceUSD.Decimal
	} else if len(series) > 0 {
		ref = series[0]
	}
	if ref.IsZero() {
		return batch.Report{}, nil
	}

	tuning, err := e.Tuning.Tuning()
	if err != nil {
		return batch.Report{}, fmt.Errorf("stoploss: tuning: %w", err)
	}
	floor := domain.StopLossTarget(ref, tuning.LaunchStopLossPercentage)
	if price.LessThan(floor) {
		log.Info().
			Str("contract", contract).
			Str("price", price.String()).
			Str("floor", floor.String()).
			Msg("stoploss: launch price below floor")
		return e.sellLaunchOrders(ctx, contract, price, ref)
	}
	return batch.Report{}, nil
}

func (e *Evaluator) sellLaunchOrders(ctx context.Context, contract string, price, entry decimal.Decimal) (batch.Report, error) {
	orders, err := e.Orders.ListActiveWithOwners(ctx, contract, []domain.Strategy{domain.StrategyLaunchStopLoss})
	if err != nil {
		return batch.Report{}, fmt.Errorf("stoploss: list launch orders %s: %w", contract, err)
	}
	return e.evaluateAll(ctx, orders, price, true, entry), nil
}

func (e *Evaluator) broadcast(ctx context.Context, msg string) {
	users, err := e.Users.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("stoploss: list users for broadcast")
		return
	}
	notify.Broadcast(ctx, e.Notifier, users, msg)
}

func launchPrice(l *domain.TokenLaunch, fallback decimal.Decimal) decimal.Decimal {
	if l.LaunchPriceUSD.Valid {
		return l.LaunchPriceUSD.Decimal
	}
	return fallback
}
