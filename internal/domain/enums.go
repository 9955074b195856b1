package domain

import "fmt"

// Chain is the only chain this engine trades on.
const Chain = "solana"

// Source is the swap venue recorded on every transaction row.
const Source = "raydium"

// TxType is the operation type recorded on every transaction row.
const TxType = "swap"

// ---------------------------------------------------------------------------
// Strategy
// ---------------------------------------------------------------------------

// Strategy tags a standing trade order.
type Strategy string

const (
	StrategyStopLoss       Strategy = "stop_loss"
	StrategyLaunchStopLoss Strategy = "launch_stop_loss"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyStopLoss, StrategyLaunchStopLoss:
		return true
	}
	return false
}

// ParseStrategy converts a stored value into a Strategy.
func ParseStrategy(v string) (Strategy, error) {
	s := Strategy(v)
	if !s.Valid() {
		return "", fmt.Errorf("domain: unknown strategy %q", v)
	}
	return s, nil
}

// ProtectiveStrategies are the strategies evaluated by the stop-loss sweep.
var ProtectiveStrategies = []Strategy{StrategyStopLoss, StrategyLaunchStopLoss}

// ---------------------------------------------------------------------------
// Creator
// ---------------------------------------------------------------------------

// Creator records who opened an order.
type Creator string

const (
	CreatorApp  Creator = "app"
	CreatorUser Creator = "user"
)

func (c Creator) Valid() bool {
	return c == CreatorApp || c == CreatorUser
}

func ParseCreator(v string) (Creator, error) {
	c := Creator(v)
	if !c.Valid() {
		return "", fmt.Errorf("domain: unknown creator %q", v)
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Transaction status / side
// ---------------------------------------------------------------------------

// TxStatus is the lifecycle status stored on an audit row.
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

func (s TxStatus) Valid() bool {
	switch s {
	case TxSubmitted, TxConfirmed, TxFailed:
		return true
	}
	return false
}

func ParseTxStatus(v string) (TxStatus, error) {
	s := TxStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("domain: unknown tx status %q", v)
	}
	return s, nil
}

// Landed reports whether the transaction reached the network.
func (s TxStatus) Landed() bool {
	return s == TxSubmitted || s == TxConfirmed
}

// Side is the trade direction relative to the token.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

func ParseSide(v string) (Side, error) {
	s := Side(v)
	if !s.Valid() {
		return "", fmt.Errorf("domain: unknown side %q", v)
	}
	return s, nil
}

// ---------------------------------------------------------------------------
// Launch evaluation
// ---------------------------------------------------------------------------

// Evaluation is the decision attached to a launch.
type Evaluation string

const (
	EvaluationSkip   Evaluation = "skip"
	EvaluationTrack  Evaluation = "track"
	EvaluationRugged Evaluation = "rugged"
)

func (e Evaluation) Valid() bool {
	switch e {
	case EvaluationSkip, EvaluationTrack, EvaluationRugged:
		return true
	}
	return false
}

func ParseEvaluation(v string) (Evaluation, error) {
	e := Evaluation(v)
	if !e.Valid() {
		return "", fmt.Errorf("domain: unknown evaluation %q", v)
	}
	return e, nil
}

// LaunchClass is the liquidity tier of a launch, lowest first.
type LaunchClass string

const (
	ClassBelowLimit  LaunchClass = "below_limit"
	ClassLowerLimit  LaunchClass = "lower_limit"
	ClassMidLaunch   LaunchClass = "mid_launch"
	ClassProLaunch   LaunchClass = "pro_launch"
	ClassCrazyLaunch LaunchClass = "crazy_launch"
)

func (c LaunchClass) Valid() bool {
	switch c {
	case ClassBelowLimit, ClassLowerLimit, ClassMidLaunch, ClassProLaunch, ClassCrazyLaunch:
		return true
	}
	return false
}

func ParseLaunchClass(v string) (LaunchClass, error) {
	c := LaunchClass(v)
	if !c.Valid() {
		return "", fmt.Errorf("domain: unknown launch class %q", v)
	}
	return c, nil
}

// Evaluation returns the decision that belongs to the tier.
func (c LaunchClass) Evaluation() Evaluation {
	switch c {
	case ClassBelowLimit, ClassLowerLimit:
		return EvaluationSkip
	case ClassMidLaunch, ClassProLaunch, ClassCrazyLaunch:
		return EvaluationTrack
	default:
		panic(fmt.Sprintf("domain: unhandled launch class %q", string(c)))
	}
}

// Announce reports whether subscribers hear about launches of this tier.
func (c LaunchClass) Announce() bool {
	return c == ClassProLaunch || c == ClassCrazyLaunch
}

// TopTier reports whether launches of this tier are bought automatically.
func (c LaunchClass) TopTier() bool {
	return c == ClassCrazyLaunch
}
