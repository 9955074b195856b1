package solana

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// RPC Client Interface
// ---------------------------------------------------------------------------

// RPCClient is the interface for Solana RPC interactions.
// Implementations: LiveRPCClient (real Solana), StubRPCClient (testing).
type RPCClient interface {
	// GetBalance returns the SOL balance of an account.
	GetBalance(ctx context.Context, owner Pubkey) (decimal.Decimal, error)

	// GetTokenAccount returns owner's largest account for mint. A wallet
	// without an account for mint yields a zero-balance TokenAccount.
	GetTokenAccount(ctx context.Context, owner, mint Pubkey) (*TokenAccount, error)

	// GetTokenAccounts returns every SPL token account owned by owner.
	GetTokenAccounts(ctx context.Context, owner Pubkey) ([]TokenAccount, error)

	// GetLatestBlockhash returns the most recent blockhash.
	GetLatestBlockhash(ctx context.Context) (string, error)

	// SendTransaction submits a signed base64 transaction exactly once.
	SendTransaction(ctx context.Context, txBase64 string) (Signature, error)

	// GetSignatureStatus returns nil when the network has no record of sig.
	GetSignatureStatus(ctx context.Context, sig Signature) (*SignatureStatus, error)

	// Health returns the RPC endpoint health.
	Health(ctx context.Context) error
}

// RPCConfig configures the Solana RPC client.
type RPCConfig struct {
	Endpoint     string        `yaml:"endpoint"`
	WSEndpoint   string        `yaml:"ws_endpoint"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RateLimitRPS float64       `yaml:"rate_limit_rps"`
}

// DefaultRPCConfig returns mainnet defaults.
func DefaultRPCConfig() RPCConfig {
	return RPCConfig{
		Endpoint:     "https://api.mainnet-beta.solana.com",
		WSEndpoint:   "wss://api.mainnet-beta.solana.com",
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RateLimitRPS: 10,
	}
}

// ---------------------------------------------------------------------------
// Stub RPC Client (for testing and development)
// ---------------------------------------------------------------------------

// StubRPCClient is a scriptable RPC client for tests and dry runs.
type StubRPCClient struct {
	mu            sync.RWMutex
	balances      map[Pubkey]decimal.Decimal
	tokenAccounts map[Pubkey][]TokenAccount
	statuses      map[Signature]*SignatureStatus
	sendErrs      []error
	sent          []string
	sendCount     int
	failNext      bool
	defaultStatus *SignatureStatus
}

// NewStubRPCClient creates a stub RPC client. Unknown signatures report
// finalized unless SetDefaultStatus overrides it.
func NewStubRPCClient() *StubRPCClient {
	return &StubRPCClient{
		balances:      make(map[Pubkey]decimal.Decimal),
		tokenAccounts: make(map[Pubkey][]TokenAccount),
		statuses:      make(map[Signature]*SignatureStatus),
		defaultStatus: &SignatureStatus{ConfirmationStatus: CommitmentFinalized},
	}
}

// SetBalance sets the SOL balance of owner.
func (s *StubRPCClient) SetBalance(owner Pubkey, sol decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[owner] = sol
}

// AddTokenAccount registers a token account for owner.
func (s *StubRPCClient) AddTokenAccount(owner Pubkey, acct TokenAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenAccounts[owner] = append(s.tokenAccounts[owner], acct)
}

// SetSendErrors queues errors returned by successive SendTransaction calls.
// Once the queue drains, sends succeed.
func (s *StubRPCClient) SetSendErrors(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendErrs = append([]error(nil), errs...)
}

// SetStatus fixes the status reported for sig. A nil status means unknown.
func (s *StubRPCClient) SetStatus(sig Signature, status *SignatureStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[sig] = status
}

// SetDefaultStatus sets the status for signatures without an explicit entry.
func (s *StubRPCClient) SetDefaultStatus(status *SignatureStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultStatus = status
}

// SendCount returns the number of SendTransaction calls.
func (s *StubRPCClient) SendCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sendCount
}

// Sent returns the payloads accepted by SendTransaction.
func (s *StubRPCClient) Sent() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.sent...)
}

// SetFailNext makes the next call fail.
func (s *StubRPCClient) SetFailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

func (s *StubRPCClient) shouldFail() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return true
	}
	return false
}

// --- Interface implementation ---

func (s *StubRPCClient) GetBalance(_ context.Context, owner Pubkey) (decimal.Decimal, error) {
	if s.shouldFail() {
		return decimal.Zero, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[owner], nil
}

func (s *StubRPCClient) GetTokenAccount(_ context.Context, owner, mint Pubkey) (*TokenAccount, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var best *TokenAccount
	for i, acct := range s.tokenAccounts[owner] {
		if acct.Mint != mint {
			continue
		}
		if best == nil || acct.Amount > best.Amount {
			best = &s.tokenAccounts[owner][i]
		}
	}
	if best == nil {
		return &TokenAccount{Mint: mint}, nil
	}
	cp := *best
	return &cp, nil
}

func (s *StubRPCClient) GetTokenAccounts(_ context.Context, owner Pubkey) ([]TokenAccount, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TokenAccount(nil), s.tokenAccounts[owner]...), nil
}

func (s *StubRPCClient) GetLatestBlockhash(_ context.Context) (string, error) {
	if s.shouldFail() {
		return "", fmt.Errorf("stub: simulated RPC failure")
	}
	return "11111111111111111111111111111111", nil
}

func (s *StubRPCClient) SendTransaction(_ context.Context, txBase64 string) (Signature, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendCount++
	if len(s.sendErrs) > 0 {
		err := s.sendErrs[0]
		s.sendErrs = s.sendErrs[1:]
		if err != nil {
			return "", err
		}
	}
	s.sent = append(s.sent, txBase64)
	return Signature(fmt.Sprintf("stub-sig-%d", s.sendCount)), nil
}

func (s *StubRPCClient) GetSignatureStatus(_ context.Context, sig Signature) (*SignatureStatus, error) {
	if s.shouldFail() {
		return nil, fmt.Errorf("stub: simulated RPC failure")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[sig]
	if !ok {
		status = s.defaultStatus
	}
	if status == nil {
		return nil, nil
	}
	cp := *status
	return &cp, nil
}

func (s *StubRPCClient) Health(_ context.Context) error {
	if s.shouldFail() {
		return fmt.Errorf("stub: simulated RPC failure")
	}
	return nil
}

// RecentPriorityFee returns a fixed fee so the stub can serve as a fee fallback.
func (s *StubRPCClient) RecentPriorityFee(_ context.Context) (uint64, error) {
	return DefaultPriorityFeeMicroLamports, nil
}
