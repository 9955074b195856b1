package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/dexscreener"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/execution"
	"github.com/0xayot/davids-sling/internal/notify"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/stoploss"
	"github.com/0xayot/davids-sling/internal/storage"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

// Prices quotes SOL and token prices in USD.
type Prices interface {
	SOLPriceUSD(ctx context.Context) (decimal.Decimal, error)
	TokenPriceUSD(ctx context.Context, mint string) (decimal.Decimal, error)
}

// Metadata looks up market data for a token.
type Metadata interface {
	FetchToken(ctx context.Context, address string) (*dexscreener.TokenData, error)
}

// Balances reads native balances.
type Balances interface {
	GetBalance(ctx context.Context, owner solana.Pubkey) (decimal.Decimal, error)
}

// OrderCreator opens protective orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, spec stoploss.OrderSpec) (*domain.TradeOrder, bool, error)
}

// Config tunes the handler. Tier boundaries and percentages come from the
// TuningSource on every event instead.
type Config struct {
	MetadataRetryDelay time.Duration
	BuyConcurrency     int
	BuySlippageBps     int
	// RugDrop is the fractional liquidity loss that marks a launch rugged.
	RugDrop decimal.Decimal
	// BackfillWindow bounds how old a launch may be to get metadata backfilled.
	BackfillWindow time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MetadataRetryDelay: 30 * time.Second,
		BuyConcurrency:     4,
		BuySlippageBps:     100,
		RugDrop:            decimal.RequireFromString("0.2"),
		BackfillWindow:     24 * time.Hour,
	}
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Launches storage.LaunchStore
	Users    storage.UserStore
	Wallets  storage.WalletStore
	Prices   Prices
	Meta     Metadata
	Balances Balances
	Trader   stoploss.Trader
	Orders   OrderCreator
	Notifier notify.Notifier
	Tuning   config.TuningSource
	Metrics  *observability.Registry
}

// Handler processes launch events.
type Handler struct {
	cfg Config
	Deps
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	events  *observability.Counter
	buys    *observability.Counter
	tracked *observability.Gauge
}

// New creates a handler.
func New(cfg Config, deps Deps) *Handler {
	def := DefaultConfig()
	if cfg.MetadataRetryDelay < 0 {
		cfg.MetadataRetryDelay = 0
	}
	if cfg.BuyConcurrency <= 0 {
		cfg.BuyConcurrency = def.BuyConcurrency
	}
	if cfg.BuySlippageBps <= 0 {
		cfg.BuySlippageBps = def.BuySlippageBps
	}
	if !cfg.RugDrop.IsPositive() {
		cfg.RugDrop = def.RugDrop
	}
	if cfg.BackfillWindow <= 0 {
		cfg.BackfillWindow = def.BackfillWindow
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.SlingMetrics()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	return &Handler{
		cfg:     cfg,
		Deps:    deps,
		now:     time.Now,
		sleep:   sleepCtx,
		events:  deps.Metrics.NewCounter(observability.MetricLaunchEvents, "Pool launch events handled"),
		buys:    deps.Metrics.NewCounter(observability.MetricLaunchBuys, "Launch buys executed"),
		tracked: deps.Metrics.NewGauge(observability.MetricTrackedLaunches, "Tracked launches not yet rugged"),
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Event handling
// ---------------------------------------------------------------------------

// Handle classifies and records one launch, announces the upper tiers and
// buys the top tier. The returned launch is the persisted evaluation.
func (h *Handler) Handle(ctx context.Context, ev Event) (*domain.TokenLaunch, error) {
	h.events.Inc()
	contract := ev.BaseInfo.Address
	if contract == "" {
		return nil, fmt.Errorf("launch: %w: base token address is required", storage.ErrInvalidInput)
	}

	tuning, err := h.Tuning.Tuning()
	if err != nil {
		return nil, fmt.Errorf("launch: %s: %w", contract, err)
	}

	liquidity := ev.QuoteInfo.LPAmount
	solPrice, err := h.Prices.SOLPriceUSD(ctx)
	if err != nil {
		return nil, fmt.Errorf("launch: %s: sol price: %w", contract, err)
	}
	liquidityUSD := liquidity.Mul(solPrice)

	pair, err := h.metadataWithRetry(ctx, contract)
	if err != nil && !errors.Is(err, dexscreener.ErrNoPairs) {
		log.Warn().Err(err).Str("contract", contract).Msg("launch: metadata unavailable")
	}

	class := Classify(liquidity, tuning.Tiers())
	l := &domain.TokenLaunch{
		ContractAddress:    contract,
		CreatorAddress:     ev.Creator,
		Evaluation:         class.Evaluation(),
		LaunchClass:        class,
		LaunchLiquidity:    liquidity,
		LaunchLiquidityUSD: liquidityUSD,
	}
	if pair != nil {
		applyPair(l, pair)
	}
	if err := h.Launches.Insert(ctx, l); err != nil {
		return nil, fmt.Errorf("launch: %s: persist: %w", contract, err)
	}

	log.Info().
		Int64("launch_id", l.ID).
		Str("contract", contract).
		Str("class", string(class)).
		Str("liquidity", liquidity.String()).
		Str("liquidity_usd", liquidityUSD.StringFixed(2)).
		Bool("meta", pair != nil).
		Msg("launch: evaluated")

	if class.Announce() {
		h.broadcast(ctx, fmt.Sprintf("%s %s with %s liquidity ($%s)",
			headline(class), contract, liquidity, liquidityUSD.StringFixed(2)))
	}
	if class.TopTier() {
		rep := h.BuyFanout(ctx, l, ev.BaseInfo.Decimals, tuning)
		log.Info().
			Str("contract", contract).
			Int("wallets", rep.Total).
			Int("bought", rep.Succeeded).
			Int("skipped", rep.Skipped).
			Int("failed", rep.Failed).
			Msg("launch: buy fan-out finished")
	}
	return l, nil
}

// metadataWithRetry fetches the first pair, retrying once after the
// configured delay when the listing is not indexed yet.
func (h *Handler) metadataWithRetry(ctx context.Context, contract string) (*dexscreener.Pair, error) {
	pair, err := h.firstPair(ctx, contract)
	if err == nil {
		return pair, nil
	}
	log.Debug().Err(err).Str("contract", contract).Dur("delay", h.cfg.MetadataRetryDelay).Msg("launch: retrying metadata")
	if serr := h.sleep(ctx, h.cfg.MetadataRetryDelay); serr != nil {
		return nil, serr
	}
	return h.firstPair(ctx, contract)
}

func (h *Handler) firstPair(ctx context.Context, contract string) (*dexscreener.Pair, error) {
	data, err := h.Meta.FetchToken(ctx, contract)
	if err != nil {
		return nil, err
	}
	p := data.First()
	return &p, nil
}

func applyPair(l *domain.TokenLaunch, p *dexscreener.Pair) {
	l.Meta = p.Raw
	l.HasBoost = p.HasBoost()
	if p.PriceUSD.IsPositive() {
		l.LaunchPriceUSD = decimal.NewNullDecimal(p.PriceUSD)
	}
}

func (h *Handler) broadcast(ctx context.Context, msg string) {
	users, err := h.Users.List(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("launch: list users for broadcast")
		return
	}
	notify.Broadcast(ctx, h.Notifier, users, msg)
}

// ---------------------------------------------------------------------------
// Buy fan-out
// ---------------------------------------------------------------------------

// BuyFanout buys the launched token for every wallet whose SOL balance
// reaches the minimum, sized as a percentage of that balance, and protects
// each landed buy with a launch stop-loss order.
func (h *Handler) BuyFanout(ctx context.Context, l *domain.TokenLaunch, decimals uint8, tuning config.Tuning) batch.Report {
	wallets, err := h.Wallets.ListWithOwners(ctx)
	if err != nil {
		log.Error().Err(err).Str("contract", l.ContractAddress).Msg("launch: list wallets")
		return batch.Report{}
	}
	hundred := decimal.NewFromInt(100)

	return batch.Run(ctx, wallets, h.cfg.BuyConcurrency,
		func(w storage.OwnedWallet) string { return fmt.Sprintf("wallet:%d", w.Wallet.ID) },
		func(ctx context.Context, w storage.OwnedWallet) error {
			balance, err := h.Balances.GetBalance(ctx, solana.Pubkey(w.Wallet.Address))
			if err != nil {
				return fmt.Errorf("launch: balance of wallet %d: %w", w.Wallet.ID, err)
			}
			if balance.LessThan(tuning.MinimumBuySOL) || !balance.IsPositive() {
				return batch.Skip("balance below minimum")
			}
			size := balance.Mul(tuning.LaunchBuyPercentage).Div(hundred)

			res := h.Trader.ExecuteTrade(ctx, buyRequest(w, l.ContractAddress, size, decimals, h.cfg.BuySlippageBps))
			if !res.Submitted() {
				return fmt.Errorf("launch: buy for wallet %d: %w", w.Wallet.ID, res.Err)
			}
			h.buys.Inc()

			// The buy is on chain; protect it even if the caller is shutting down.
			ctx = context.WithoutCancel(ctx)
			price, err := h.Prices.TokenPriceUSD(ctx, l.ContractAddress)
			if err != nil || !price.IsPositive() {
				if !l.LaunchPriceUSD.Valid {
					if err == nil {
						err = errors.New("token price is not positive")
					}
					return fmt.Errorf("launch: no price to protect wallet %d: %w", w.Wallet.ID, err)
				}
				price = l.LaunchPriceUSD.Decimal
			}
			_, _, err = h.Orders.CreateOrder(ctx, stoploss.OrderSpec{
				UserID:          w.User.ID,
				WalletID:        w.Wallet.ID,
				ContractAddress: l.ContractAddress,
				Token:           domain.Token{Decimals: decimals},
				ReferencePrice:  price,
				Percentage:      tuning.LaunchStopLossPercentage,
				Strategy:        domain.StrategyLaunchStopLoss,
				CreatedBy:       domain.CreatorApp,
			})
			return err
		})
}

func buyRequest(w storage.OwnedWallet, contract string, size decimal.Decimal, decimals uint8, slippageBps int) execution.TradeRequest {
	return execution.TradeRequest{
		User:            w.User,
		Wallet:          w.Wallet,
		Side:            domain.SideBuy,
		ContractAddress: contract,
		Amount:          size,
		Decimals:        decimals,
		SlippageBps:     slippageBps,
	}
}
