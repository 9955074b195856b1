package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnums(t *testing.T) {
	s, err := ParseStrategy("launch_stop_loss")
	require.NoError(t, err)
	assert.Equal(t, StrategyLaunchStopLoss, s)

	_, err = ParseStrategy("take_profit")
	assert.Error(t, err)
	_, err = ParseCreator("bot")
	assert.Error(t, err)
	_, err = ParseTxStatus("pending")
	assert.Error(t, err)
	_, err = ParseSide("short")
	assert.Error(t, err)
	_, err = ParseEvaluation("maybe")
	assert.Error(t, err)
	_, err = ParseLaunchClass("mega_launch")
	assert.Error(t, err)
}

func TestLaunchClass(t *testing.T) {
	tests := []struct {
		class    LaunchClass
		eval     Evaluation
		announce bool
		buy      bool
	}{
		{ClassBelowLimit, EvaluationSkip, false, false},
		{ClassLowerLimit, EvaluationSkip, false, false},
		{ClassMidLaunch, EvaluationTrack, false, false},
		{ClassProLaunch, EvaluationTrack, true, false},
		{ClassCrazyLaunch, EvaluationTrack, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.class), func(t *testing.T) {
			assert.Equal(t, tt.eval, tt.class.Evaluation())
			assert.Equal(t, tt.announce, tt.class.Announce())
			assert.Equal(t, tt.buy, tt.class.TopTier())
		})
	}
	assert.Panics(t, func() { LaunchClass("bogus").Evaluation() })
}

func TestTxStatusLanded(t *testing.T) {
	assert.True(t, TxSubmitted.Landed())
	assert.True(t, TxConfirmed.Landed())
	assert.False(t, TxFailed.Landed())
}

func TestStopLossTarget(t *testing.T) {
	target := StopLossTarget(decimal.NewFromInt(50), decimal.NewFromInt(40))
	assert.True(t, target.Equal(decimal.NewFromInt(30)), target.String())

	o := TradeOrder{TargetPrice: target}
	assert.True(t, o.ShouldTrigger(decimal.NewFromInt(30)), "target itself triggers")
	assert.True(t, o.ShouldTrigger(decimal.RequireFromString("29.99")))
	assert.False(t, o.ShouldTrigger(decimal.RequireFromString("30.01")))
}
