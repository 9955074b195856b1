// Package stoploss evaluates standing protective orders against the latest
// price and sells a wallet's full balance when an order triggers.
package stoploss

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/execution"
	"github.com/0xayot/davids-sling/internal/lock"
	"github.com/0xayot/davids-sling/internal/notify"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/storage"
)

// PriceSource returns a token's USD price, from cache or a live fetch.
type PriceSource interface {
	TokenPriceUSD(ctx context.Context, mint string) (decimal.Decimal, error)
}

// BalanceSource reads a wallet's live token balance.
type BalanceSource interface {
	GetTokenAccount(ctx context.Context, owner, mint solana.Pubkey) (*solana.TokenAccount, error)
}

// Trader executes swaps.
type Trader interface {
	ExecuteTrade(ctx context.Context, req execution.TradeRequest) execution.TradeResult
}

// Config tunes the evaluator.
type Config struct {
	Concurrency     int
	LockTTL         time.Duration
	SellSlippageBps int
	// GuardWindow is the price history the launch guard looks at.
	GuardWindow time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:     8,
		LockTTL:         2 * time.Minute,
		SellSlippageBps: 50,
		GuardWindow:     5 * time.Minute,
	}
}

// Deps are the collaborators of an Evaluator.
type Deps struct {
	Orders   storage.OrderStore
	Tokens   storage.TokenStore
	Prices   storage.PriceStore
	Launches storage.LaunchStore
	Users    storage.UserStore
	Quotes   PriceSource
	Balances BalanceSource
	Trader   Trader
	Notifier notify.Notifier
	Locker   lock.Locker
	Tuning   config.TuningSource
	Metrics  *observability.Registry
}

// Evaluator runs stop-loss checks. It keeps no per-order state between calls.
type Evaluator struct {
	cfg Config
	Deps
	now func() time.Time

	triggered    *observability.Counter
	skipped      *observability.Counter
	activeTokens *observability.Gauge
}

// New creates an evaluator.
func New(cfg Config, deps Deps) *Evaluator {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.SellSlippageBps <= 0 {
		cfg.SellSlippageBps = def.SellSlippageBps
	}
	if cfg.GuardWindow <= 0 {
		cfg.GuardWindow = def.GuardWindow
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.SlingMetrics()
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	return &Evaluator{
		cfg:          cfg,
		Deps:         deps,
		now:          time.Now,
		triggered:    deps.Metrics.NewCounter(observability.MetricStopLossTriggered, "Stop-loss orders that reached a sell"),
		skipped:      deps.Metrics.NewCounter(observability.MetricStopLossSkipped, "Stop-loss evaluations skipped"),
		activeTokens: deps.Metrics.NewGauge(observability.MetricActiveOrders, "Contracts with active protective orders"),
	}
}

// ---------------------------------------------------------------------------
// Sweep / per-token evaluation
// ---------------------------------------------------------------------------

// SweepReport aggregates one sweep over every contract with active orders.
type SweepReport struct {
	Tokens int
	Orders batch.Report
	// TokenErrors holds contracts whose orders could not be loaded or priced.
	TokenErrors map[string]error
}

// Sweep evaluates every contract with an active protective order concurrently.
func (e *Evaluator) Sweep(ctx context.Context) (SweepReport, error) {
	contracts, err := e.Orders.ListActiveContracts(ctx, domain.ProtectiveStrategies)
	if err != nil {
		return SweepReport{}, fmt.Errorf("stoploss: list contracts: %w", err)
	}
	e.activeTokens.Set(float64(len(contracts)))

	var mu sync.Mutex
	rep := SweepReport{Tokens: len(contracts)}
	tokens := batch.Run(ctx, contracts, e.cfg.Concurrency,
		func(c string) string { return c },
		func(ctx context.Context, contract string) error {
			orders, err := e.EvaluateToken(ctx, contract)
			mu.Lock()
			rep.Orders.Merge(orders)
			mu.Unlock()
			return err
		})
	rep.TokenErrors = tokens.Errors

	log.Info().
		Int("tokens", rep.Tokens).
		Int("token_errors", tokens.Failed).
		Int("orders", rep.Orders.Total).
		Int("failed", rep.Orders.Failed).
		Int("skipped", rep.Orders.Skipped).
		Msg("stoploss: sweep finished")
	return rep, nil
}

// EvaluateToken checks every active protective order on contract against the
// latest price. Each order is independent; their outcomes are in the report.
func (e *Evaluator) EvaluateToken(ctx context.Context, contract string) (batch.Report, error) {
	price, err := e.latestPrice(ctx, contract)
	if err != nil {
		return batch.Report{}, err
	}
	orders, err := e.Orders.ListActiveWithOwners(ctx, contract, domain.ProtectiveStrategies)
	if err != nil {
		return batch.Report{}, fmt.Errorf("stoploss: list orders %s: %w", contract, err)
	}
	return e.evaluateAll(ctx, orders, price, false, decimal.Decimal{}), nil
}

// latestPrice prefers the cache or a fresh quote and falls back to the last
// stored price point.
func (e *Evaluator) latestPrice(ctx context.Context, contract string) (decimal.Decimal, error) {
	price, err := e.Quotes.TokenPriceUSD(ctx, contract)
	if err == nil && price.IsPositive() {
		return price, nil
	}
	pp, perr := e.Prices.Latest(ctx, contract)
	if perr != nil {
		return decimal.Zero, fmt.Errorf("stoploss: no price for %s: %w", contract, errors.Join(err, perr))
	}
	log.Debug().Err(err).Str("contract", contract).Msg("stoploss: using stored price")
	return pp.Price, nil
}

// evaluateAll fans out over orders. A forced evaluation sells regardless of
// the order's own target. A zero entry means each order's reference price.
func (e *Evaluator) evaluateAll(ctx context.Context, orders []domain.OwnedOrder, price decimal.Decimal, forced bool, entry decimal.Decimal) batch.Report {
	rep := batch.Run(ctx, orders, e.cfg.Concurrency,
		func(o domain.OwnedOrder) string { return fmt.Sprintf("order:%d", o.Order.ID) },
		func(ctx context.Context, o domain.OwnedOrder) error {
			err := e.evaluateOrder(ctx, o, price, forced, entry)
			if errors.Is(err, batch.ErrSkipped) {
				e.skipped.Inc()
			}
			return err
		})
	for key, err := range rep.Errors {
		if !errors.Is(err, batch.ErrSkipped) {
			log.Warn().Err(err).Str("order", key).Msg("stoploss: order evaluation failed")
		}
	}
	return rep
}

func (e *Evaluator) evaluateOrder(ctx context.Context, o domain.OwnedOrder, price decimal.Decimal, forced bool, entry decimal.Decimal) error {
	order := o.Order
	if o.User == nil || o.Wallet == nil {
		log.Warn().Int64("order_id", order.ID).Msg("stoploss: order owner missing")
		return batch.Skip("owner missing")
	}

	lease, err := e.Locker.Acquire(ctx, fmt.Sprintf("stoploss:order:%d", order.ID), e.cfg.LockTTL)
	if errors.Is(err, lock.ErrHeld) {
		return batch.Skip("order locked")
	}
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("stoploss: lock release failed")
		}
	}()

	if !forced && !order.ShouldTrigger(price) {
		return nil
	}

	// The listing may predate a sell by an overlapping sweep.
	current, err := e.Orders.GetActive(ctx, order.WalletID, order.ContractAddress, order.Strategy)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && current.ID != order.ID) {
		return batch.Skip("order no longer active")
	}
	if err != nil {
		return fmt.Errorf("stoploss: reload order %d: %w", order.ID, err)
	}

	if entry.IsZero() {
		entry = order.ReferencePrice
	}
	user, wallet := *o.User, *o.Wallet

	acct, err := e.Balances.GetTokenAccount(ctx, solana.Pubkey(wallet.Address), solana.Pubkey(order.ContractAddress))
	if err != nil {
		e.notify(ctx, user, fmt.Sprintf("%s: could not read your %s balance, the sell will be retried", order.Strategy, order.ContractAddress))
		return fmt.Errorf("stoploss: balance for order %d: %w", order.ID, err)
	}

	if acct.Amount == 0 {
		e.notify(ctx, user, fmt.Sprintf("%s: token %s hit %s but there is no balance to sell. Entry price: %s",
			order.Strategy, order.ContractAddress, price, entry))
		return e.deactivate(ctx, order)
	}

	res := e.Trader.ExecuteTrade(ctx, execution.TradeRequest{
		User:            user,
		Wallet:          wallet,
		Side:            domain.SideSell,
		ContractAddress: order.ContractAddress,
		Amount:          acct.UIAmount,
		Decimals:        acct.Decimals,
		SlippageBps:     e.cfg.SellSlippageBps,
		TokenAccount:    string(acct.Address),
		PriceUSD:        price,
	})
	if !res.Submitted() {
		e.notify(ctx, user, fmt.Sprintf("%s: selling %s at %s failed, it will be retried",
			order.Strategy, order.ContractAddress, price))
		return fmt.Errorf("stoploss: sell for order %d: %w", order.ID, res.Err)
	}

	// The sell is on chain; the order must be closed even during shutdown.
	ctx = context.WithoutCancel(ctx)
	e.triggered.Inc()
	proceeds := price.Mul(acct.UIAmount)
	log.Info().
		Int64("order_id", order.ID).
		Int64("wallet_id", wallet.ID).
		Str("contract", order.ContractAddress).
		Str("price", price.String()).
		Str("amount", acct.UIAmount.String()).
		Str("status", string(res.Status)).
		Str("trace_id", res.Reference).
		Msg("stoploss: order sold")
	e.notify(ctx, user, fmt.Sprintf("%s: token %s was sold at %s for $%s. Entry price: %s",
		order.Strategy, order.ContractAddress, price, proceeds.StringFixed(2), entry))
	return e.deactivate(ctx, order)
}

func (e *Evaluator) deactivate(ctx context.Context, order domain.TradeOrder) error {
	if err := e.Orders.Deactivate(ctx, order.ID); err != nil {
		return fmt.Errorf("stoploss: deactivate order %d: %w", order.ID, err)
	}
	return nil
}

func (e *Evaluator) notify(ctx context.Context, user domain.User, msg string) {
	if err := notify.NotifyUser(ctx, e.Notifier, user, msg); err != nil {
		log.Warn().Err(err).Int64("user_id", user.ID).Msg("stoploss: notify failed")
	}
}
