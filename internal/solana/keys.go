package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	bin "github.com/gagliardetto/binary"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

var (
	// ErrInvalidKeypair is returned for key bytes that do not form a valid keypair.
	ErrInvalidKeypair = errors.New("solana: invalid keypair")

	// ErrSignerMissing is returned when the keypair is not a required signer.
	ErrSignerMissing = errors.New("solana: keypair is not a signer of the transaction")
)

// Keypair is an ed25519 signing key in Solana's 64-byte layout (seed || public key).
type Keypair struct {
	priv solanago.PrivateKey
}

// KeypairFromBytes validates a 64-byte keypair. The public half must be a
// valid curve point and must match the key derived from the seed.
func KeypairFromBytes(raw []byte) (*Keypair, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidKeypair, ed25519.PrivateKeySize, len(raw))
	}
	pub := raw[ed25519.SeedSize:]
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("%w: public key is not a curve point", ErrInvalidKeypair)
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !bytes.Equal(derived[ed25519.SeedSize:], pub) {
		return nil, fmt.Errorf("%w: public key does not match seed", ErrInvalidKeypair)
	}
	return &Keypair{priv: solanago.PrivateKey(append([]byte(nil), raw...))}, nil
}

// KeypairFromBase58 decodes and validates a base58 keypair string.
func KeypairFromBase58(encoded string) (*Keypair, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeypair, err)
	}
	return KeypairFromBytes(raw)
}

// NewKeypair generates a random keypair.
func NewKeypair() (*Keypair, error) {
	priv, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("solana: generate keypair: %w", err)
	}
	return &Keypair{priv: priv}, nil
}

// PublicKey returns the base58 public key.
func (k *Keypair) PublicKey() Pubkey {
	return Pubkey(k.priv.PublicKey().String())
}

// Base58 returns the 64-byte keypair in base58.
func (k *Keypair) Base58() string {
	return base58.Encode(k.priv)
}

// SignTransaction decodes an unsigned base64 transaction, fills the signature
// slot that belongs to this keypair and re-encodes it. The returned signature
// is the transaction's first signature, which is its network id.
func (k *Keypair) SignTransaction(unsignedBase64 string) (string, Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(unsignedBase64)
	if err != nil {
		return "", "", fmt.Errorf("solana: decode tx: %w", err)
	}

	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", "", fmt.Errorf("solana: unmarshal tx: %w", err)
	}

	owner := k.priv.PublicKey()
	slot := signerIndex(tx, owner)
	if slot < 0 {
		return "", "", ErrSignerMissing
	}

	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("solana: marshal message: %w", err)
	}
	sig, err := k.priv.Sign(message)
	if err != nil {
		return "", "", fmt.Errorf("solana: sign: %w", err)
	}

	// Unsigned payloads carry zeroed placeholders; other signers' slots are kept.
	required := int(tx.Message.Header.NumRequiredSignatures)
	if len(tx.Signatures) != required {
		sigs := make([]solanago.Signature, required)
		copy(sigs, tx.Signatures)
		tx.Signatures = sigs
	}
	tx.Signatures[slot] = sig

	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("solana: marshal tx: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signed), Signature(tx.Signatures[0].String()), nil
}

// signerIndex returns key's position among the required signers, or -1.
func signerIndex(tx *solanago.Transaction, key solanago.PublicKey) int {
	n := int(tx.Message.Header.NumRequiredSignatures)
	for i := 0; i < n && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(key) {
			return i
		}
	}
	return -1
}

// AssociatedTokenAccount derives owner's associated token account for mint.
func AssociatedTokenAccount(owner, mint Pubkey) (Pubkey, error) {
	ownerKey, err := solanago.PublicKeyFromBase58(string(owner))
	if err != nil {
		return "", fmt.Errorf("solana: owner: %w", err)
	}
	mintKey, err := solanago.PublicKeyFromBase58(string(mint))
	if err != nil {
		return "", fmt.Errorf("solana: mint: %w", err)
	}
	ata, _, err := solanago.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return "", fmt.Errorf("solana: derive ata: %w", err)
	}
	return Pubkey(ata.String()), nil
}

// TransactionSignature returns the first signature of a signed base64 transaction.
func TransactionSignature(signedBase64 string) (Signature, error) {
	raw, err := base64.StdEncoding.DecodeString(signedBase64)
	if err != nil {
		return "", fmt.Errorf("solana: decode tx: %w", err)
	}
	tx, err := solanago.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return "", fmt.Errorf("solana: unmarshal tx: %w", err)
	}
	if len(tx.Signatures) == 0 || tx.Signatures[0].IsZero() {
		return "", fmt.Errorf("solana: transaction is not signed")
	}
	return Signature(tx.Signatures[0].String()), nil
}
