// Package vault decrypts and provisions the signing keys of custodial wallets.
//
// Key material is three hex strings: a 16-byte salt, the derived key and the
// ciphertext. The key is sha256(secret || salt) truncated to 16 bytes and the
// cipher is AES-128-CBC with the salt as IV and PKCS#7 padding. The plaintext
// is a base58 64-byte keypair.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
)

var (
	// ErrKeyMaterialCorrupt is returned when stored key material cannot
	// produce a valid keypair under the current secret.
	ErrKeyMaterialCorrupt = errors.New("vault: key material corrupt")

	// ErrSecretMissing is returned when no wallet secret is configured.
	ErrSecretMissing = errors.New("vault: wallet secret not configured")
)

const saltSize = aes.BlockSize

// SecretFunc returns the wallet secret. It is called on every operation.
type SecretFunc func() (string, error)

// Vault holds no key material of its own.
type Vault struct {
	secret SecretFunc
}

// New creates a vault that reads the secret through fn.
func New(fn SecretFunc) *Vault {
	return &Vault{secret: fn}
}

// StaticSecret returns a SecretFunc that always yields s.
func StaticSecret(s string) SecretFunc {
	return func() (string, error) { return s, nil }
}

func (v *Vault) loadSecret() (string, error) {
	s, err := v.secret()
	if err != nil {
		return "", fmt.Errorf("vault: read secret: %w", err)
	}
	if s == "" {
		return "", ErrSecretMissing
	}
	return s, nil
}

func deriveKey(secret string, salt []byte) []byte {
	sum := sha256.Sum256(append([]byte(secret), salt...))
	return sum[:16]
}

// Decrypt returns the keypair of wallet. Every failure other than a missing
// secret is reported as ErrKeyMaterialCorrupt.
func (v *Vault) Decrypt(wallet domain.Wallet) (*solana.Keypair, error) {
	secret, err := v.loadSecret()
	if err != nil {
		return nil, err
	}
	kp, err := decrypt(secret, wallet.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: wallet %d: %v", ErrKeyMaterialCorrupt, wallet.ID, err)
	}
	return kp, nil
}

func decrypt(secret string, km domain.KeyMaterial) (*solana.Keypair, error) {
	salt, err := hex.DecodeString(km.Salt)
	if err != nil || len(salt) != saltSize {
		return nil, errors.New("bad salt")
	}
	stored, err := hex.DecodeString(km.DerivedSecret)
	if err != nil {
		return nil, errors.New("bad derived secret")
	}
	ciphertext, err := hex.DecodeString(km.Ciphertext)
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("bad ciphertext")
	}

	key := deriveKey(secret, salt)
	if subtle.ConstantTimeCompare(key, stored) != 1 {
		return nil, errors.New("derived key mismatch")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, salt).CryptBlocks(plain, ciphertext)

	plain, err = unpad(plain)
	if err != nil {
		return nil, err
	}
	kp, err := solana.KeypairFromBase58(string(plain))
	if err != nil {
		return nil, err
	}
	return kp, nil
}

// Encrypt seals a base58 keypair under the current secret with a fresh salt.
func (v *Vault) Encrypt(base58Key string) (domain.KeyMaterial, error) {
	secret, err := v.loadSecret()
	if err != nil {
		return domain.KeyMaterial{}, err
	}
	if _, err := solana.KeypairFromBase58(base58Key); err != nil {
		return domain.KeyMaterial{}, fmt.Errorf("vault: encrypt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return domain.KeyMaterial{}, fmt.Errorf("vault: salt: %w", err)
	}
	key := deriveKey(secret, salt)

	block, err := aes.NewCipher(key)
	if err != nil {
		return domain.KeyMaterial{}, fmt.Errorf("vault: cipher: %w", err)
	}
	plain := pad([]byte(base58Key))
	ciphertext := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, salt).CryptBlocks(ciphertext, plain)

	return domain.KeyMaterial{
		Salt:          hex.EncodeToString(salt),
		DerivedSecret: hex.EncodeToString(key),
		Ciphertext:    hex.EncodeToString(ciphertext),
	}, nil
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
