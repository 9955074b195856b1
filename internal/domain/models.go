package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// User owns wallets and receives notifications.
type User struct {
	ID         int64  `json:"id"`
	TelegramID string `json:"tg_id"`
	Username   string `json:"username"`
}

// KeyMaterial is the encrypted signing key of a custodial wallet.
// All three fields are hex encoded.
type KeyMaterial struct {
	Salt          string `json:"salt"`
	DerivedSecret string `json:"secret_key"`
	Ciphertext    string `json:"encrypted_private_key"`
}

// Wallet is a custodial account. Its key material never leaves the vault in plaintext.
type Wallet struct {
	ID      int64       `json:"id"`
	UserID  int64       `json:"user_id"`
	Address string      `json:"address"`
	Chain   string      `json:"chain"`
	Key     KeyMaterial `json:"-"`
}

// Token is a tradable SPL mint known to the engine.
type Token struct {
	ID              int64     `json:"id"`
	ContractAddress string    `json:"contract_address"`
	Chain           string    `json:"chain"`
	Name            string    `json:"name"`
	Symbol          string    `json:"symbol"`
	Decimals        uint8     `json:"decimals"`
	CreatedAt       time.Time `json:"created_at"`
}

// TradeOrder is a standing protective instruction for one wallet and token.
type TradeOrder struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	WalletID         int64           `json:"wallet_id"`
	ContractAddress  string          `json:"contract_address"`
	TokenID          int64           `json:"token_id"`
	ReferencePrice   decimal.Decimal `json:"reference_price"`
	TargetPrice      decimal.Decimal `json:"target_price"`
	TargetPercentage decimal.Decimal `json:"target_percentage"`
	Strategy         Strategy        `json:"strategy"`
	Active           bool            `json:"active"`
	CreatedBy        Creator         `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ShouldTrigger reports whether price has fallen to or below the target.
func (o TradeOrder) ShouldTrigger(price decimal.Decimal) bool {
	return price.LessThanOrEqual(o.TargetPrice)
}

// StopLossTarget returns reference reduced by pct percent.
func StopLossTarget(reference, pct decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(pct.Div(decimal.NewFromInt(100)))
	return reference.Mul(factor)
}

// OwnedOrder is an order joined with its owner. User or Wallet is nil when the
// referenced row no longer exists.
type OwnedOrder struct {
	Order  TradeOrder
	User   *User
	Wallet *Wallet
}

// OnchainTransaction is the append-only audit row for one swap attempt.
type OnchainTransaction struct {
	ID              int64           `json:"id"`
	TraceID         string          `json:"trace_id"`
	UserID          int64           `json:"user_id"`
	WalletID        int64           `json:"wallet_id"`
	TransactionHash *string         `json:"transaction_hash,omitempty"`
	Chain           string          `json:"chain"`
	Source          string          `json:"source"`
	Status          TxStatus        `json:"status"`
	Type            string          `json:"type"`
	Side            Side            `json:"side"`
	ValueNative     decimal.Decimal `json:"value_native"`
	ValueUSD        decimal.Decimal `json:"value_usd"`
	FromToken       string          `json:"from_token"`
	ToToken         string          `json:"to_token"`
	FailureReason   string          `json:"failure_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// TokenLaunch is the evaluation of a pool-creation event.
type TokenLaunch struct {
	ID                 int64               `json:"id"`
	ContractAddress    string              `json:"contract_address"`
	CreatorAddress     string              `json:"creator_address"`
	Evaluation         Evaluation          `json:"evaluation"`
	LaunchClass        LaunchClass         `json:"launch_class"`
	LaunchLiquidity    decimal.Decimal     `json:"launch_liquidity"`
	LaunchLiquidityUSD decimal.Decimal     `json:"launch_liquidity_usd"`
	LaunchPriceUSD     decimal.NullDecimal `json:"launch_price_usd"`
	Meta               json.RawMessage     `json:"meta,omitempty"`
	HasBoost           bool                `json:"has_boost"`
	RuggedAt           *time.Time          `json:"rugged_at,omitempty"`
	Lifespan           *int64              `json:"lifespan,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// PricePoint is a timestamped price observation.
type PricePoint struct {
	ID              int64           `json:"id"`
	ContractAddress string          `json:"contract_address"`
	Chain           string          `json:"chain"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	PriceNative     decimal.Decimal `json:"price_native"`
	CreatedAt       time.Time       `json:"created_at"`
}
