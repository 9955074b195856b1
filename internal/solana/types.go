package solana

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
)

// Pubkey is a Solana public key (base58 string).
type Pubkey string

// Signature is a Solana transaction signature (base58 string).
type Signature string

// Well-known accounts.
const (
	WrappedSOLMint     Pubkey = "So11111111111111111111111111111111111111112"
	TokenProgramID     Pubkey = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	Token2022ProgramID Pubkey = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
)

// SOLDecimals is the number of decimals of native SOL.
const SOLDecimals = 9

// LamportsPerSOL converts between lamports and SOL.
var LamportsPerSOL = decimal.New(1, SOLDecimals)

// LamportsToSOL converts a lamport amount to SOL.
func LamportsToSOL(lamports uint64) decimal.Decimal {
	return FromUint64(lamports).Div(LamportsPerSOL)
}

// FromUint64 converts a raw on-chain amount to a decimal without overflow.
func FromUint64(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

// ToRawUnits scales a UI amount to integer base units, truncating dust.
func ToRawUnits(amount decimal.Decimal, decimals uint8) decimal.Decimal {
	return amount.Shift(int32(decimals)).Truncate(0)
}

// TokenAccount is an SPL token account owned by a wallet.
type TokenAccount struct {
	Address  Pubkey          `json:"address"`
	Mint     Pubkey          `json:"mint"`
	Amount   uint64          `json:"amount"` // base units
	UIAmount decimal.Decimal `json:"ui_amount"`
	Decimals uint8           `json:"decimals"`
}

// Commitment levels reported by getSignatureStatuses.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus is the network's view of a submitted signature.
type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	ConfirmationStatus string          `json:"confirmationStatus"`
	Err                json.RawMessage `json:"err,omitempty"`
}

// Failed reports whether the transaction executed with an error.
func (s SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

// Finalized reports whether the transaction reached finalized commitment.
func (s SignatureStatus) Finalized() bool {
	return s.ConfirmationStatus == CommitmentFinalized
}
