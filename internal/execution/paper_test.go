package execution

import (
	"context"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/raydium"
	"github.com/0xayot/davids-sling/internal/solana"
)

func signedPayload(t *testing.T) (string, solana.Signature) {
	t.Helper()
	kp, err := solana.NewKeypair()
	require.NoError(t, err)
	gw := &fakeGateway{payer: solanago.MustPublicKeyFromBase58(string(kp.PublicKey()))}
	unsigned, err := gw.BuildTransaction(context.Background(), raydium.BuildParams{})
	require.NoError(t, err)
	signed, sig, err := kp.SignTransaction(unsigned)
	require.NoError(t, err)
	return signed, sig
}

func TestPaperSender_AcceptsAndFinalizes(t *testing.T) {
	p := NewPaperSender()
	ctx := context.Background()
	signed, want := signedPayload(t)

	sig, err := p.SendTransaction(ctx, signed)
	require.NoError(t, err)
	assert.Equal(t, want, sig)

	status, err := p.GetSignatureStatus(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Finalized())
	assert.False(t, status.Failed())
}

func TestPaperSender_Idempotent(t *testing.T) {
	p := NewPaperSender()
	signed, _ := signedPayload(t)

	for i := 0; i < 3; i++ {
		_, err := p.SendTransaction(context.Background(), signed)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), p.Sent())
}

func TestPaperSender_UnknownSignature(t *testing.T) {
	p := NewPaperSender()
	status, err := p.GetSignatureStatus(context.Background(), "never-sent")
	assert.NoError(t, err)
	assert.Nil(t, status)
}

func TestPaperSender_RejectsGarbage(t *testing.T) {
	p := NewPaperSender()

	_, err := p.SendTransaction(context.Background(), "%%%")
	assert.Error(t, err)

	gw := &fakeGateway{payer: solanago.NewWallet().PublicKey()}
	unsigned, err := gw.BuildTransaction(context.Background(), raydium.BuildParams{})
	require.NoError(t, err)
	_, err = p.SendTransaction(context.Background(), unsigned)
	assert.Error(t, err, "unsigned payloads have no network id")
	assert.Equal(t, int64(0), p.Sent())
}
