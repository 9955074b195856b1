package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrTransactionFailed is returned when a landed transaction executed with an error.
var ErrTransactionFailed = errors.New("solana: transaction failed on chain")

// ---------------------------------------------------------------------------
// SignatureSubscriber: confirmation via websocket signatureSubscribe
// ---------------------------------------------------------------------------

// SignatureSubscriber waits for finalization notifications over the RPC
// websocket. A new connection is opened per confirmation.
type SignatureSubscriber struct {
	Endpoint string
	Timeout  time.Duration
	dialer   websocket.Dialer
}

// NewSignatureSubscriber creates a subscriber for the websocket endpoint.
func NewSignatureSubscriber(endpoint string, timeout time.Duration) *SignatureSubscriber {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &SignatureSubscriber{
		Endpoint: endpoint,
		Timeout:  timeout,
		dialer:   websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

type signatureNotification struct {
	ID     *int64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	Method string          `json:"method"`
	Params struct {
		Result struct {
			Value struct {
				Err json.RawMessage `json:"err"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// Confirm returns true once sig is finalized. A timeout returns false with a
// nil error; an on-chain failure returns ErrTransactionFailed.
func (s *SignatureSubscriber) Confirm(ctx context.Context, sig Signature) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	conn, _, err := s.dialer.DialContext(ctx, s.Endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			return false, nil
		}
		return false, fmt.Errorf("ws: dial: %w", err)
	}
	defer conn.Close()

	// Unblock ReadJSON when the deadline passes.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err = conn.WriteJSON(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "signatureSubscribe",
		"params": []any{
			string(sig),
			map[string]any{"commitment": CommitmentFinalized},
		},
	})
	if err != nil {
		return false, fmt.Errorf("ws: write subscribe: %w", err)
	}

	for {
		var msg signatureNotification
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				log.Debug().Str("signature", string(sig)).Msg("ws: confirmation timed out")
				return false, nil
			}
			return false, fmt.Errorf("ws: read: %w", err)
		}
		if msg.Error != nil {
			return false, fmt.Errorf("ws: subscribe: %w", msg.Error)
		}
		if msg.Method != "signatureNotification" {
			continue
		}
		status := SignatureStatus{ConfirmationStatus: CommitmentFinalized, Err: msg.Params.Result.Value.Err}
		if status.Failed() {
			return false, fmt.Errorf("%w: %s", ErrTransactionFailed, string(status.Err))
		}
		return true, nil
	}
}
