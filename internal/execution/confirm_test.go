package execution

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/solana"
)

func TestPollingConfirmer_Finalized(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetStatus("sig-1", &solana.SignatureStatus{Slot: 10, ConfirmationStatus: solana.CommitmentFinalized})

	ok, err := NewPollingConfirmer(rpc, time.Millisecond, time.Second).Confirm(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPollingConfirmer_OnChainError(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetStatus("sig-1", &solana.SignatureStatus{
		ConfirmationStatus: solana.CommitmentConfirmed,
		Err:                json.RawMessage(`{"InstructionError":[2,{"Custom":6001}]}`),
	})

	ok, err := NewPollingConfirmer(rpc, time.Millisecond, time.Second).Confirm(context.Background(), "sig-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestPollingConfirmer_TimeoutIsNotAnError(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetStatus("sig-1", &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentConfirmed})

	ok, err := NewPollingConfirmer(rpc, 5*time.Millisecond, 30*time.Millisecond).Confirm(context.Background(), "sig-1")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPollingConfirmer_UnknownSignatureTimesOut(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetDefaultStatus(nil)

	ok, err := NewPollingConfirmer(rpc, 5*time.Millisecond, 30*time.Millisecond).Confirm(context.Background(), "sig-x")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestPollingConfirmer_RPCErrorKeepsPolling(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetStatus("sig-1", &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentFinalized})
	rpc.SetFailNext()

	ok, err := NewPollingConfirmer(rpc, time.Millisecond, time.Second).Confirm(context.Background(), "sig-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPollingConfirmer_ParentCancelled(t *testing.T) {
	rpc := solana.NewStubRPCClient()
	rpc.SetDefaultStatus(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ok, err := NewPollingConfirmer(rpc, time.Millisecond, time.Minute).Confirm(ctx, "sig-1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}
