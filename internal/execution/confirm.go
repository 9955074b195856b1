package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/solana"
)

// ErrTransactionFailed is returned when the transaction landed with an error.
var ErrTransactionFailed = solana.ErrTransactionFailed

// Confirmer waits for finality. A timeout yields (false, nil).
type Confirmer interface {
	Confirm(ctx context.Context, sig solana.Signature) (bool, error)
}

// StatusSource looks up a signature status. A nil status means unknown.
type StatusSource interface {
	GetSignatureStatus(ctx context.Context, sig solana.Signature) (*solana.SignatureStatus, error)
}

// PollingConfirmer polls getSignatureStatuses until finalized, failed or timed out.
type PollingConfirmer struct {
	source   StatusSource
	interval time.Duration
	timeout  time.Duration
}

var (
	_ Confirmer = (*PollingConfirmer)(nil)
	_ Confirmer = (*solana.SignatureSubscriber)(nil)
)

// NewPollingConfirmer creates a confirmer. Zero values default to 2 s and 60 s.
func NewPollingConfirmer(source StatusSource, interval, timeout time.Duration) *PollingConfirmer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &PollingConfirmer{source: source, interval: interval, timeout: timeout}
}

// Confirm polls until sig is finalized. RPC errors are logged and polling
// continues. Cancellation of the parent context is returned as an error.
func (c *PollingConfirmer) Confirm(ctx context.Context, sig solana.Signature) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		status, err := c.source.GetSignatureStatus(waitCtx, sig)
		switch {
		case err != nil:
			if waitCtx.Err() == nil {
				log.Debug().Err(err).Str("sig", string(sig)).Msg("execution: status poll failed")
			}
		case status != nil && status.Failed():
			return false, fmt.Errorf("%w: %s: %s", ErrTransactionFailed, sig, string(status.Err))
		case status != nil && status.Finalized():
			return true, nil
		}

		select {
		case <-ticker.C:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			log.Warn().Str("sig", string(sig)).Dur("timeout", c.timeout).Msg("execution: confirmation timed out")
			return false, nil
		}
	}
}
