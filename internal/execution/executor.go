package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/raydium"
	"github.com/0xayot/davids-sling/internal/solana"
)

// ---------------------------------------------------------------------------
// Trade Executor
// ---------------------------------------------------------------------------

// Gateway quotes and builds swaps.
type Gateway interface {
	GetQuote(ctx context.Context, inputMint, outputMint string, amount decimal.Decimal, slippageBps int) (*raydium.Quote, error)
	BuildTransaction(ctx context.Context, p raydium.BuildParams) (string, error)
	SOLPriceUSD(ctx context.Context) (decimal.Decimal, error)
}

// KeySource decrypts wallet signing keys.
type KeySource interface {
	Decrypt(wallet domain.Wallet) (*solana.Keypair, error)
}

// Recorder appends audit rows.
type Recorder interface {
	RecordTransaction(ctx context.Context, tx *domain.OnchainTransaction) error
}

// TradeRequest is one swap on behalf of a custodial wallet. Amount is in UI
// units of the spent asset: SOL for a buy, the token for a sell.
type TradeRequest struct {
	User            domain.User
	Wallet          domain.Wallet
	Side            domain.Side
	ContractAddress string
	Amount          decimal.Decimal
	Decimals        uint8
	SlippageBps     int
	TokenAccount    string          // defaults to the associated token account
	PriceUSD        decimal.Decimal // token price, used to value sells
}

// TradeResult reports how far a trade got. Reference is the audit trace id.
type TradeResult struct {
	Reference   string
	Signature   solana.Signature
	Succeeded   bool
	Status      domain.TxStatus
	Err         error
	ValueNative decimal.Decimal
	ValueUSD    decimal.Decimal
}

// Submitted reports whether the transaction reached the network.
func (r TradeResult) Submitted() bool {
	return r.Status.Landed()
}

// Executor runs quote, build, sign, submit, confirm and record in order.
// Every call writes exactly one audit row.
type Executor struct {
	gateway   Gateway
	keys      KeySource
	submitter *Submitter
	confirmer Confirmer
	recorder  Recorder

	total       *observability.Counter
	confirmed   *observability.Counter
	unconfirmed *observability.Counter
	failed      *observability.Counter
	latency     *observability.Histogram
}

// NewExecutor wires an executor. A nil registry gets a private one.
func NewExecutor(gateway Gateway, keys KeySource, submitter *Submitter, confirmer Confirmer, recorder Recorder, reg *observability.Registry) *Executor {
	if reg == nil {
		reg = observability.SlingMetrics()
	}
	return &Executor{
		gateway:     gateway,
		keys:        keys,
		submitter:   submitter,
		confirmer:   confirmer,
		recorder:    recorder,
		total:       reg.NewCounter(observability.MetricTradesTotal, "Swap executions started"),
		confirmed:   reg.NewCounter(observability.MetricTradesConfirmed, "Swaps finalized on chain"),
		unconfirmed: reg.NewCounter(observability.MetricTradesUnconfirmed, "Swaps submitted but not confirmed in time"),
		failed:      reg.NewCounter(observability.MetricTradesFailed, "Swaps that failed"),
		latency:     reg.NewHistogram(observability.MetricTradeLatency, "Swap execution latency in milliseconds", observability.TradeLatencyBuckets),
	}
}

// trade carries the in-flight state of one ExecuteTrade call.
type trade struct {
	req       TradeRequest
	traceID   string
	inMint    string
	outMint   string
	quote     *raydium.Quote
	lifecycle *Lifecycle
	signature solana.Signature
}

// ExecuteTrade runs the full pipeline. It never panics on pipeline errors:
// they are reported in the result and recorded.
func (e *Executor) ExecuteTrade(ctx context.Context, req TradeRequest) TradeResult {
	start := time.Now()
	e.total.Inc()

	t := &trade{req: req, traceID: uuid.NewString()}
	status, err := e.run(ctx, t)

	result := TradeResult{
		Reference: t.traceID,
		Signature: t.signature,
		Status:    status,
		Succeeded: status == domain.TxConfirmed,
		Err:       err,
	}
	result.ValueNative, result.ValueUSD = e.values(ctx, t)

	switch status {
	case domain.TxConfirmed:
		e.confirmed.Inc()
	case domain.TxSubmitted:
		e.unconfirmed.Inc()
	default:
		e.failed.Inc()
	}
	e.latency.Observe(float64(time.Since(start).Milliseconds()))

	e.record(ctx, t, result)

	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("trace_id", t.traceID).
		Int64("wallet_id", req.Wallet.ID).
		Str("side", string(req.Side)).
		Str("contract", req.ContractAddress).
		Str("amount", req.Amount.String()).
		Str("status", string(status)).
		Str("sig", string(t.signature)).
		Int64("latency_ms", time.Since(start).Milliseconds()).
		Msg("execution: trade finished")
	return result
}

func (e *Executor) run(ctx context.Context, t *trade) (domain.TxStatus, error) {
	req := t.req
	if !req.Side.Valid() {
		return domain.TxFailed, fmt.Errorf("execution: invalid side %q", req.Side)
	}
	if !req.Amount.IsPositive() {
		return domain.TxFailed, fmt.Errorf("execution: amount must be positive, got %s", req.Amount)
	}

	// 1. Amount in raw units of the spent asset.
	var raw decimal.Decimal
	if req.Side == domain.SideBuy {
		t.inMint, t.outMint = string(solana.WrappedSOLMint), req.ContractAddress
		raw = solana.ToRawUnits(req.Amount, solana.SOLDecimals)
	} else {
		t.inMint, t.outMint = req.ContractAddress, string(solana.WrappedSOLMint)
		raw = solana.ToRawUnits(req.Amount, req.Decimals)
	}
	if !raw.IsPositive() {
		return domain.TxFailed, fmt.Errorf("execution: amount %s rounds to zero units", req.Amount)
	}

	// 2. Quote.
	quote, err := e.gateway.GetQuote(ctx, t.inMint, t.outMint, raw, req.SlippageBps)
	if err != nil {
		return domain.TxFailed, fmt.Errorf("quote: %w", err)
	}
	t.quote = quote

	// 3. Build.
	account := req.TokenAccount
	if account == "" {
		ata, err := solana.AssociatedTokenAccount(solana.Pubkey(req.Wallet.Address), solana.Pubkey(req.ContractAddress))
		if err != nil {
			return domain.TxFailed, fmt.Errorf("build: token account: %w", err)
		}
		account = string(ata)
	}
	unsigned, err := e.gateway.BuildTransaction(ctx, raydium.BuildParams{
		Wallet:       req.Wallet.Address,
		Quote:        quote,
		TokenAccount: account,
	})
	if err != nil {
		return domain.TxFailed, fmt.Errorf("build: %w", err)
	}
	t.lifecycle = NewLifecycle(t.traceID, unsigned)

	// 4. Decrypt.
	kp, err := e.keys.Decrypt(req.Wallet)
	if err != nil {
		return domain.TxFailed, fmt.Errorf("decrypt: %w", err)
	}
	if string(kp.PublicKey()) != req.Wallet.Address {
		return domain.TxFailed, fmt.Errorf("decrypt: key does not match wallet %d address", req.Wallet.ID)
	}

	// 5. Sign.
	signed, sig, err := kp.SignTransaction(unsigned)
	if err != nil {
		return domain.TxFailed, fmt.Errorf("sign: %w", err)
	}
	t.signature = sig
	if err := t.lifecycle.Transition(EventSign, &SignData{SignedTx: signed, Signature: sig}); err != nil {
		return domain.TxFailed, err
	}

	// 6. Submit.
	if _, err := e.submitter.Submit(ctx, signed); err != nil {
		_ = t.lifecycle.Transition(EventFail, &FailData{Reason: err.Error()})
		return t.lifecycle.AuditStatus(), fmt.Errorf("submit: %w", err)
	}
	if err := t.lifecycle.Transition(EventSubmit, nil); err != nil {
		return domain.TxFailed, err
	}

	// 7. Confirm.
	ok, err := e.confirmer.Confirm(ctx, sig)
	switch {
	case errors.Is(err, ErrTransactionFailed):
		_ = t.lifecycle.Transition(EventFail, &FailData{Reason: err.Error()})
		return t.lifecycle.AuditStatus(), fmt.Errorf("confirm: %w", err)
	case ok:
		if err := t.lifecycle.Transition(EventConfirm, nil); err != nil {
			return domain.TxFailed, err
		}
		return t.lifecycle.AuditStatus(), nil
	case err != nil:
		return t.lifecycle.AuditStatus(), fmt.Errorf("confirm: %w", err)
	default:
		return t.lifecycle.AuditStatus(), nil
	}
}

// values computes the native and USD value of the trade for the audit row.
func (e *Executor) values(ctx context.Context, t *trade) (decimal.Decimal, decimal.Decimal) {
	req := t.req
	if req.Side == domain.SideSell {
		native := decimal.Zero
		if t.quote != nil {
			native = t.quote.OutputAmount.Shift(-solana.SOLDecimals)
		}
		return native, req.PriceUSD.Mul(req.Amount)
	}

	native := req.Amount
	solPrice, err := e.gateway.SOLPriceUSD(ctx)
	if err != nil {
		log.Debug().Err(err).Str("trace_id", t.traceID).Msg("execution: SOL price unavailable for audit value")
		return native, decimal.Zero
	}
	return native, native.Mul(solPrice)
}

// record writes the single audit row for the trade. A failed insert is
// logged and does not change the result.
func (e *Executor) record(ctx context.Context, t *trade, res TradeResult) {
	tx := &domain.OnchainTransaction{
		TraceID:     t.traceID,
		UserID:      t.req.User.ID,
		WalletID:    t.req.Wallet.ID,
		Status:      res.Status,
		Side:        t.req.Side,
		ValueNative: res.ValueNative,
		ValueUSD:    res.ValueUSD,
		FromToken:   t.inMint,
		ToToken:     t.outMint,
	}
	if !tx.Side.Valid() {
		tx.Side = domain.SideBuy
	}
	if t.signature != "" {
		h := string(t.signature)
		tx.TransactionHash = &h
	}
	if res.Err != nil {
		tx.FailureReason = res.Err.Error()
	}

	// The row must land even if the caller's context is already done.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := e.recorder.RecordTransaction(recCtx, tx); err != nil {
		log.Error().Err(err).Str("trace_id", t.traceID).Msg("execution: audit insert failed")
	}
}
