package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/solana"
)

var (
	// ErrSubmissionFailed matches every *SubmissionError.
	ErrSubmissionFailed = errors.New("execution: submission failed")

	// ErrBlockhashExpired matches a *SubmissionError whose last cause was an
	// expired blockhash.
	ErrBlockhashExpired = errors.New("execution: blockhash expired")
)

// SubmissionError is returned once every attempt has failed.
type SubmissionError struct {
	Attempts         int
	Last             error
	BlockhashExpired bool
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("execution: submission failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *SubmissionError) Unwrap() error { return e.Last }

func (e *SubmissionError) Is(target error) bool {
	switch target {
	case ErrSubmissionFailed:
		return true
	case ErrBlockhashExpired:
		return e.BlockhashExpired
	}
	return false
}

// Sender makes one sendTransaction call.
type Sender interface {
	SendTransaction(ctx context.Context, txBase64 string) (solana.Signature, error)
}

// SubmitterConfig bounds the submission loop.
type SubmitterConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// DefaultSubmitterConfig is 3 attempts one second apart.
func DefaultSubmitterConfig() SubmitterConfig {
	return SubmitterConfig{MaxAttempts: 3, RetryDelay: time.Second}
}

// Submitter sends a signed payload with a fixed number of attempts. It never
// re-signs: an expired blockhash is retried like any other error.
type Submitter struct {
	sender Sender
	config SubmitterConfig

	attemptFailures  *observability.Counter
	blockhashExpired *observability.Counter
}

// NewSubmitter creates a submitter. A nil registry gets a private one.
func NewSubmitter(sender Sender, config SubmitterConfig, reg *observability.Registry) *Submitter {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if reg == nil {
		reg = observability.SlingMetrics()
	}
	return &Submitter{
		sender:           sender,
		config:           config,
		attemptFailures:  reg.NewCounter(observability.MetricSubmitAttemptFailures, "Failed sendTransaction attempts"),
		blockhashExpired: reg.NewCounter(observability.MetricSubmitBlockhashExpired, "Attempts rejected for an expired blockhash"),
	}
}

// Submit sends signedTx until it is accepted or MaxAttempts is reached.
func (s *Submitter) Submit(ctx context.Context, signedTx string) (solana.Signature, error) {
	var (
		lastErr error
		expired bool
	)
	for attempt := 1; attempt <= s.config.MaxAttempts; attempt++ {
		sig, err := s.sender.SendTransaction(ctx, signedTx)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Str("sig", string(sig)).Msg("execution: submission accepted after retry")
			}
			return sig, nil
		}

		lastErr = err
		expired = solana.IsBlockhashExpired(err)
		s.attemptFailures.Inc()

		ev := log.Warn().Err(err).Int("attempt", attempt).Int("max_attempts", s.config.MaxAttempts)
		if expired {
			s.blockhashExpired.Inc()
			ev = ev.Str("reason", "blockhash_expired")
		}
		ev.Msg("execution: submission attempt failed")

		if attempt == s.config.MaxAttempts {
			break
		}
		select {
		case <-time.After(s.config.RetryDelay):
		case <-ctx.Done():
			return "", &SubmissionError{Attempts: attempt, Last: ctx.Err()}
		}
	}
	return "", &SubmissionError{Attempts: s.config.MaxAttempts, Last: lastErr, BlockhashExpired: expired}
}
