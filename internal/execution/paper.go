package execution

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/solana"
)

// PaperSender accepts signed transactions without broadcasting them. Every
// accepted signature reports as finalized, so a dry run walks the whole
// pipeline and writes real audit rows. Repeated payloads are idempotent.
type PaperSender struct {
	mu   sync.Mutex
	seen map[solana.Signature]struct{}

	sent atomic.Int64
}

var (
	_ Sender       = (*PaperSender)(nil)
	_ StatusSource = (*PaperSender)(nil)
)

// NewPaperSender creates an empty paper sender.
func NewPaperSender() *PaperSender {
	log.Info().Msg("execution: paper sender initialized, transactions will not be broadcast")
	return &PaperSender{seen: make(map[solana.Signature]struct{})}
}

// SendTransaction records the payload's signature and returns it.
func (p *PaperSender) SendTransaction(_ context.Context, txBase64 string) (solana.Signature, error) {
	sig, err := solana.TransactionSignature(txBase64)
	if err != nil {
		return "", fmt.Errorf("paper: %w", err)
	}

	p.mu.Lock()
	_, dup := p.seen[sig]
	p.seen[sig] = struct{}{}
	p.mu.Unlock()

	if !dup {
		p.sent.Add(1)
		log.Info().Str("sig", string(sig)).Msg("execution: paper transaction accepted")
	}
	return sig, nil
}

// GetSignatureStatus reports finalized for accepted signatures and unknown otherwise.
func (p *PaperSender) GetSignatureStatus(_ context.Context, sig solana.Signature) (*solana.SignatureStatus, error) {
	p.mu.Lock()
	_, ok := p.seen[sig]
	p.mu.Unlock()
	if !ok {
		return nil, nil
	}
	return &solana.SignatureStatus{ConfirmationStatus: solana.CommitmentFinalized}, nil
}

// Sent returns the number of distinct transactions accepted.
func (p *PaperSender) Sent() int64 {
	return p.sent.Load()
}
