package vault

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
)

func sealedWallet(t *testing.T, secret string) (domain.Wallet, *solana.Keypair) {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)

	km, err := New(StaticSecret(secret)).Encrypt(kp.Base58())
	require.NoError(t, err)
	return domain.Wallet{ID: 7, Address: string(kp.PublicKey()), Key: km}, kp
}

func TestVault_RoundTrip(t *testing.T) {
	wallet, kp := sealedWallet(t, "s3cret")

	got, err := New(StaticSecret("s3cret")).Decrypt(wallet)
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), got.PublicKey())
	assert.Len(t, wallet.Key.Salt, 32)
	assert.Len(t, wallet.Key.DerivedSecret, 32)
}

func TestVault_WrongSecret(t *testing.T) {
	wallet, _ := sealedWallet(t, "s3cret")

	_, err := New(StaticSecret("other")).Decrypt(wallet)
	assert.ErrorIs(t, err, ErrKeyMaterialCorrupt)
	assert.Contains(t, err.Error(), "wallet 7")
}

func TestVault_CorruptMaterial(t *testing.T) {
	wallet, _ := sealedWallet(t, "s3cret")
	v := New(StaticSecret("s3cret"))

	cases := map[string]func(*domain.KeyMaterial){
		"bad salt hex":        func(k *domain.KeyMaterial) { k.Salt = "zz" },
		"short salt":          func(k *domain.KeyMaterial) { k.Salt = "abcd" },
		"ciphertext not hex":  func(k *domain.KeyMaterial) { k.Ciphertext = "nothex" },
		"ciphertext truncated": func(k *domain.KeyMaterial) { k.Ciphertext = k.Ciphertext[:len(k.Ciphertext)-2] },
		"flipped ciphertext": func(k *domain.KeyMaterial) {
			b := []byte(k.Ciphertext)
			if b[0] == 'a' {
				b[0] = 'b'
			} else {
				b[0] = 'a'
			}
			k.Ciphertext = string(b)
		},
		"derived secret mismatch": func(k *domain.KeyMaterial) { k.DerivedSecret = "00" + k.DerivedSecret[2:] },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			w := wallet
			mutate(&w.Key)
			_, err := v.Decrypt(w)
			assert.ErrorIs(t, err, ErrKeyMaterialCorrupt)
		})
	}
}

func TestVault_MissingSecret(t *testing.T) {
	wallet, _ := sealedWallet(t, "s3cret")

	_, err := New(StaticSecret("")).Decrypt(wallet)
	assert.ErrorIs(t, err, ErrSecretMissing)

	_, err = New(func() (string, error) { return "", errors.New("env unreadable") }).Encrypt("x")
	assert.Error(t, err)
}

func TestVault_EncryptRejectsInvalidKey(t *testing.T) {
	_, err := New(StaticSecret("s3cret")).Encrypt("not-a-key")
	assert.Error(t, err)
}

func TestUnpad(t *testing.T) {
	_, err := unpad([]byte{1, 2, 3, 0})
	assert.Error(t, err)
	_, err = unpad(nil)
	assert.Error(t, err)

	out, err := unpad(pad([]byte("abc")))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(out))
}
