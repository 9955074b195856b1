package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Tuning holds the operator knobs read from the environment. They are parsed
// on every call so an operator can retune tiers without a restart.
type Tuning struct {
	LowerLaunchLimit  decimal.Decimal `env:"LOWER_LAUNCH_LIMIT" envDefault:"30"`
	MidLaunchLimit    decimal.Decimal `env:"MID_LAUNCH_LIMIT" envDefault:"70"`
	NormalLaunchLimit decimal.Decimal `env:"NORMAL_LAUNCH_LIMIT" envDefault:"100"`
	ProLaunchLimit    decimal.Decimal `env:"PRO_LAUNCH_LIMIT" envDefault:"250"`

	LaunchBuyPercentage decimal.Decimal `env:"LAUNCH_BUY_PERCENTAGE" envDefault:"10"`
	MinimumBuySOL       decimal.Decimal `env:"MINIMUM_BUY_SOL" envDefault:"0.05"`

	DefaultStopLossPercentage decimal.Decimal `env:"DEFAULT_STOP_LOSS_PERCENTAGE" envDefault:"40"`
	LaunchStopLossPercentage  decimal.Decimal `env:"LAUNCH_STOP_LOSS_PERCENTAGE" envDefault:"40"`

	MinimumWatchlistUSD decimal.Decimal `env:"MINIMUM_WATCHLIST_TOKEN_USD_AMOUNT" envDefault:"10"`

	WebhookKey   string `env:"DAVIDS_SIGHT_KEY"`
	WalletSecret string `env:"WALLET_SECRET"`
}

// Tiers are the launch-liquidity boundaries, in SOL, lowest first.
type Tiers struct {
	Lower  decimal.Decimal
	Mid    decimal.Decimal
	Normal decimal.Decimal
	Pro    decimal.Decimal
}

// Tiers returns the launch-liquidity boundaries.
func (t Tuning) Tiers() Tiers {
	return Tiers{
		Lower:  t.LowerLaunchLimit,
		Mid:    t.MidLaunchLimit,
		Normal: t.NormalLaunchLimit,
		Pro:    t.ProLaunchLimit,
	}
}

// Validate checks that tiers ascend and percentages are in (0, 100].
func (t Tuning) Validate() error {
	tiers := []decimal.Decimal{t.LowerLaunchLimit, t.MidLaunchLimit, t.NormalLaunchLimit, t.ProLaunchLimit}
	for i := 1; i < len(tiers); i++ {
		if !tiers[i].GreaterThan(tiers[i-1]) {
			return fmt.Errorf("tuning: launch tiers must be strictly ascending, got %v", tiers)
		}
	}
	hundred := decimal.NewFromInt(100)
	for name, pct := range map[string]decimal.Decimal{
		"LAUNCH_BUY_PERCENTAGE":        t.LaunchBuyPercentage,
		"DEFAULT_STOP_LOSS_PERCENTAGE": t.DefaultStopLossPercentage,
		"LAUNCH_STOP_LOSS_PERCENTAGE":  t.LaunchStopLossPercentage,
	} {
		if !pct.IsPositive() || pct.GreaterThan(hundred) {
			return fmt.Errorf("tuning: %s must be in (0, 100], got %s", name, pct)
		}
	}
	if t.MinimumBuySOL.IsNegative() || t.MinimumWatchlistUSD.IsNegative() {
		return fmt.Errorf("tuning: minimums must not be negative")
	}
	return nil
}

// TuningSource yields the current tuning.
type TuningSource interface {
	Tuning() (Tuning, error)
}

// EnvTuning reads Tuning from the process environment on every call.
type EnvTuning struct{}

// Tuning parses and validates the environment.
func (EnvTuning) Tuning() (Tuning, error) {
	var t Tuning
	if err := env.Parse(&t); err != nil {
		return Tuning{}, fmt.Errorf("tuning: parse env: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Tuning{}, err
	}
	return t, nil
}

// StaticTuning always returns the same tuning.
type StaticTuning Tuning

// Tuning returns t.
func (t StaticTuning) Tuning() (Tuning, error) {
	return Tuning(t), nil
}

// DefaultTuning returns the documented defaults.
func DefaultTuning() Tuning {
	return Tuning{
		LowerLaunchLimit:          decimal.NewFromInt(30),
		MidLaunchLimit:            decimal.NewFromInt(70),
		NormalLaunchLimit:         decimal.NewFromInt(100),
		ProLaunchLimit:            decimal.NewFromInt(250),
		LaunchBuyPercentage:       decimal.NewFromInt(10),
		MinimumBuySOL:             decimal.RequireFromString("0.05"),
		DefaultStopLossPercentage: decimal.NewFromInt(40),
		LaunchStopLossPercentage:  decimal.NewFromInt(40),
		MinimumWatchlistUSD:       decimal.NewFromInt(10),
	}
}
