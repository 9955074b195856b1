package launch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/dexscreener"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

func launchKey(l *domain.TokenLaunch) string {
	return fmt.Sprintf("launch:%d", l.ID)
}

// BackfillMetadata fetches market data for recent launches recorded without it.
func (h *Handler) BackfillMetadata(ctx context.Context) (batch.Report, error) {
	missing, err := h.Launches.ListMissingMeta(ctx, h.now().Add(-h.cfg.BackfillWindow))
	if err != nil {
		return batch.Report{}, fmt.Errorf("launch: list missing meta: %w", err)
	}

	rep := batch.Run(ctx, missing, h.cfg.BuyConcurrency, launchKey,
		func(ctx context.Context, l *domain.TokenLaunch) error {
			pair, err := h.firstPair(ctx, l.ContractAddress)
			if errors.Is(err, dexscreener.ErrNoPairs) {
				return batch.Skip("not listed yet")
			}
			if err != nil {
				return err
			}
			patch := storage.LaunchMeta{Meta: pair.Raw, HasBoost: pair.HasBoost()}
			if pair.PriceUSD.IsPositive() {
				patch.LaunchPriceUSD = decimal.NewNullDecimal(pair.PriceUSD)
			}
			return h.Launches.UpdateMeta(ctx, l.ID, patch)
		})
	log.Info().
		Int("launches", rep.Total).
		Int("updated", rep.Succeeded).
		Int("unlisted", rep.Skipped).
		Int("failed", rep.Failed).
		Msg("launch: metadata backfill finished")
	return rep, nil
}

// WatchRugs marks tracked launches rugged once their pool's quote liquidity
// has fallen by RugDrop or more from the launch liquidity.
func (h *Handler) WatchRugs(ctx context.Context) (batch.Report, error) {
	tracked, err := h.Launches.ListTracked(ctx)
	if err != nil {
		return batch.Report{}, fmt.Errorf("launch: list tracked: %w", err)
	}
	keep := decimal.NewFromInt(1).Sub(h.cfg.RugDrop)

	var rugged atomic.Int32
	rep := batch.Run(ctx, tracked, h.cfg.BuyConcurrency, launchKey,
		func(ctx context.Context, l *domain.TokenLaunch) error {
			if !l.LaunchLiquidity.IsPositive() {
				return batch.Skip("no launch liquidity")
			}
			pair, err := h.firstPair(ctx, l.ContractAddress)
			if err != nil {
				return err
			}
			current := pair.Liquidity.Quote
			if current.GreaterThan(l.LaunchLiquidity.Mul(keep)) {
				return nil
			}

			now := h.now()
			lifespan := int64(now.Sub(l.CreatedAt).Seconds())
			if err := h.Launches.MarkRugged(ctx, l.ID, now, lifespan); err != nil {
				return err
			}
			rugged.Add(1)
			log.Warn().
				Int64("launch_id", l.ID).
				Str("contract", l.ContractAddress).
				Str("launch_liquidity", l.LaunchLiquidity.String()).
				Str("liquidity", current.String()).
				Int64("lifespan_s", lifespan).
				Msg("launch: rug detected")
			return nil
		})
	h.tracked.Set(float64(len(tracked) - int(rugged.Load())))
	return rep, nil
}
