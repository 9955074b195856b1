package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRPCServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *LiveRPCClient) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := NewLiveRPCClient(RPCConfig{
		Endpoint:     server.URL,
		Timeout:      5 * time.Second,
		MaxRetries:   1,
		RateLimitRPS: 100,
	})
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return server, client
}

func writeResult(w http.ResponseWriter, result any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": 1, "result": result})
}

func writeError(w http.ResponseWriter, code int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"error":   map[string]any{"code": code, "message": message, "data": data},
	})
}

func TestLiveRPC_Health(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, "ok")
	})

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, int64(1), client.Stats().RequestCount)
}

func TestLiveRPC_GetBalance(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "getBalance", req.Method)
		writeResult(w, map[string]any{"value": 5_000_000_000})
	})

	bal, err := client.GetBalance(context.Background(), Pubkey("wallet"))
	require.NoError(t, err)
	assert.Equal(t, "5", bal.String())
}

func tokenAccountsResult(amount string, decimals int, ui string) map[string]any {
	return map[string]any{
		"value": []map[string]any{{
			"pubkey": "TokenAcct1",
			"account": map[string]any{
				"data": map[string]any{
					"parsed": map[string]any{
						"info": map[string]any{
							"mint": "MintA",
							"tokenAmount": map[string]any{
								"amount":         amount,
								"decimals":       decimals,
								"uiAmountString": ui,
							},
						},
					},
				},
			},
		}},
	}
}

func TestLiveRPC_GetTokenAccount(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "getTokenAccountsByOwner", req.Method)
		filter := req.Params[1].(map[string]any)
		assert.Equal(t, "MintA", filter["mint"])
		writeResult(w, tokenAccountsResult("1500000", 6, "1.5"))
	})

	acct, err := client.GetTokenAccount(context.Background(), "wallet", "MintA")
	require.NoError(t, err)
	assert.Equal(t, Pubkey("TokenAcct1"), acct.Address)
	assert.Equal(t, uint64(1_500_000), acct.Amount)
	assert.Equal(t, "1.5", acct.UIAmount.String())
	assert.Equal(t, uint8(6), acct.Decimals)
}

func TestLiveRPC_GetTokenAccountMissing(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{"value": []any{}})
	})

	acct, err := client.GetTokenAccount(context.Background(), "wallet", "MintA")
	require.NoError(t, err)
	assert.Equal(t, uint64(0), acct.Amount)
	assert.Equal(t, Pubkey("MintA"), acct.Mint)
}

func TestLiveRPC_GetTokenAccountsQueriesBothPrograms(t *testing.T) {
	var programs []string
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		programs = append(programs, req.Params[1].(map[string]any)["programId"].(string))
		writeResult(w, tokenAccountsResult("10", 0, "10"))
	})

	accounts, err := client.GetTokenAccounts(context.Background(), "wallet")
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
	assert.Equal(t, []string{string(TokenProgramID), string(Token2022ProgramID)}, programs)
}

func TestLiveRPC_SendTransactionIsSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.SendTransaction(context.Background(), "base64-tx")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLiveRPC_SendTransaction(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		opts := req.Params[1].(map[string]any)
		assert.Equal(t, "base64", opts["encoding"])
		writeResult(w, "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb")
	})

	sig, err := client.SendTransaction(context.Background(), "base64-tx")
	require.NoError(t, err)
	assert.Equal(t, Signature("5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnb"), sig)
}

func TestLiveRPC_GetSignatureStatus(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{
			"value": []any{map[string]any{"slot": 10, "confirmationStatus": "finalized", "err": map[string]any{"InstructionError": []any{0, "Custom"}}}},
		})
	})

	status, err := client.GetSignatureStatus(context.Background(), "sig")
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, status.Finalized())
	assert.True(t, status.Failed())
}

func TestLiveRPC_GetSignatureStatusUnknown(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeResult(w, map[string]any{"value": []any{nil}})
	})

	status, err := client.GetSignatureStatus(context.Background(), "sig")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestLiveRPC_RetryOnError(t *testing.T) {
	callCount := 0
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		callCount++
		if callCount == 1 {
			w.WriteHeader(500)
			w.Write([]byte("internal error"))
			return
		}
		writeResult(w, "ok")
	})

	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, 2, callCount, "should retry once after failure")
}

func TestLiveRPC_RPCErrorIsTyped(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeError(w, -32002, "Transaction simulation failed: Blockhash not found", map[string]any{"err": "BlockhashNotFound"})
	})

	_, err := client.SendTransaction(context.Background(), "tx")
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32002, rpcErr.Code)
	assert.True(t, IsBlockhashExpired(err))
}

func TestIsBlockhashExpired(t *testing.T) {
	assert.True(t, IsBlockhashExpired(&RPCError{Code: -32002, Message: "x", Data: json.RawMessage(`{"err":"BlockhashNotFound"}`)}))
	assert.True(t, IsBlockhashExpired(&RPCError{Message: "block height exceeded"}))
	assert.False(t, IsBlockhashExpired(&RPCError{Message: "insufficient funds"}))
	assert.False(t, IsBlockhashExpired(nil))
}

func TestLiveRPC_ContextCancellation(t *testing.T) {
	_, client := newTestRPCServer(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Second)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, client.Health(ctx))
}
