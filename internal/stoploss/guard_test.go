package stoploss

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/domain"
)

func (f *fixture) launch(t *testing.T, eval domain.Evaluation, price string) {
	t.Helper()
	l := &domain.TokenLaunch{
		ContractAddress: mint,
		Evaluation:      eval,
		LaunchClass:     domain.ClassCrazyLaunch,
		LaunchLiquidity: decimal.NewFromInt(300),
	}
	if price != "" {
		l.LaunchPriceUSD = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	require.NoError(t, f.stores.Launches.Insert(context.Background(), l))
}

func (f *fixture) history(t *testing.T, prices ...string) {
	t.Helper()
	base := time.Now().UTC().Add(-4 * time.Minute)
	for i, p := range prices {
		require.NoError(t, f.stores.Prices.Insert(context.Background(), &domain.PricePoint{
			ContractAddress: mint,
			Price:           decimal.RequireFromString(p),
			CreatedAt:       base.Add(time.Duration(i) * 10 * time.Second),
		}))
	}
}

func TestOnPriceUpdate_UntrackedIgnored(t *testing.T) {
	f := newFixture(t)
	u, w := f.holder(t, "1", 10)
	f.order(t, u, w, "1", domain.StrategyLaunchStopLoss)

	rep, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Zero(t, rep.Total)

	f.launch(t, domain.EvaluationSkip, "1")
	_, err = f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Empty(t, f.trader.calls())
}

func TestOnPriceUpdate_ShortHistoryUsesLaunchPrice(t *testing.T) {
	f := newFixture(t)
	u, w := f.holder(t, "1", 10)
	f.order(t, u, w, "5", domain.StrategyLaunchStopLoss)
	f.launch(t, domain.EvaluationTrack, "1")
	f.history(t, "1", "0.9")

	// 40 % launch stop: floor is 0.6 and must be crossed strictly.
	rep, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.6"))
	require.NoError(t, err)
	assert.Zero(t, rep.Total)
	assert.Empty(t, f.trader.calls())

	rep, err = f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.59"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	calls := f.trader.calls()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].PriceUSD.Equal(decimal.RequireFromString("0.59")))
	require.Len(t, f.chats.msgs[1], 1)
	assert.Contains(t, f.chats.msgs[1][0], "Entry price: 1")
}

func TestOnPriceUpdate_OnlyLaunchOrdersSold(t *testing.T) {
	f := newFixture(t)
	u, w := f.holder(t, "1", 10)
	f.order(t, u, w, "100", domain.StrategyStopLoss)
	f.launch(t, domain.EvaluationTrack, "1")

	rep, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.1"))
	require.NoError(t, err)
	assert.Zero(t, rep.Total)
	assert.Empty(t, f.trader.calls())
}

func TestOnPriceUpdate_FallingTrendSells(t *testing.T) {
	f := newFixture(t)
	u, w := f.holder(t, "1", 10)
	f.order(t, u, w, "1", domain.StrategyLaunchStopLoss)
	f.launch(t, domain.EvaluationTrack, "1")
	f.history(t, "1", "1", "0.7", "0.5", "0.5", "0.5")

	rep, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Succeeded)
	assert.Len(t, f.trader.calls(), 1)
}

func TestOnPriceUpdate_RisingTrendBroadcastsOnDoubling(t *testing.T) {
	f := newFixture(t)
	f.holder(t, "1", 0)
	f.holder(t, "2", 0)
	f.launch(t, domain.EvaluationTrack, "1")
	f.history(t, "1", "1.3", "1.7", "1.8", "1.9", "1.95")

	_, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("1.9"))
	require.NoError(t, err)
	assert.Zero(t, f.chats.count(), "not yet doubled")

	_, err = f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("2"))
	require.NoError(t, err)
	assert.Equal(t, 2, f.chats.count())
	assert.Contains(t, f.chats.msgs[1][0], "is up from 1 to 2")
	assert.Empty(t, f.trader.calls())
}

func TestOnPriceUpdate_StableTrendDoesNothing(t *testing.T) {
	f := newFixture(t)
	u, w := f.holder(t, "1", 10)
	f.order(t, u, w, "1", domain.StrategyLaunchStopLoss)
	f.launch(t, domain.EvaluationTrack, "1")
	f.history(t, "1", "1.01", "1", "0.99", "1", "1.01")

	// Long history means the floor rule no longer applies.
	rep, err := f.ev.OnPriceUpdate(context.Background(), mint, decimal.RequireFromString("0.3"))
	require.NoError(t, err)
	assert.Zero(t, rep.Total)
	assert.Empty(t, f.trader.calls())
}
