// Package watchlist puts a default stop-loss on every meaningful token
// position held by the custodial wallets.
package watchlist

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/stoploss"
	"github.com/0xayot/davids-sling/internal/storage"
)

// Accounts lists a wallet's SPL token accounts.
type Accounts interface {
	GetTokenAccounts(ctx context.Context, owner solana.Pubkey) ([]solana.TokenAccount, error)
}

// PriceLister prices many mints in one call.
type PriceLister interface {
	PriceList(ctx context.Context, mints []string) (map[string]decimal.Decimal, error)
}

// OrderCreator opens protective orders.
type OrderCreator interface {
	CreateOrder(ctx context.Context, spec stoploss.OrderSpec) (*domain.TradeOrder, bool, error)
}

// Registrar registers wallet holdings.
type Registrar struct {
	wallets     storage.WalletStore
	accounts    Accounts
	prices      PriceLister
	orders      OrderCreator
	tuning      config.TuningSource
	concurrency int
}

// New creates a registrar. concurrency bounds wallets processed at once.
func New(wallets storage.WalletStore, accounts Accounts, prices PriceLister, orders OrderCreator, tuning config.TuningSource, concurrency int) *Registrar {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Registrar{
		wallets:     wallets,
		accounts:    accounts,
		prices:      prices,
		orders:      orders,
		tuning:      tuning,
		concurrency: concurrency,
	}
}

// RunAll registers every wallet that still has an owner.
func (r *Registrar) RunAll(ctx context.Context) (batch.Report, error) {
	wallets, err := r.wallets.ListWithOwners(ctx)
	if err != nil {
		return batch.Report{}, fmt.Errorf("watchlist: list wallets: %w", err)
	}
	rep := batch.Run(ctx, wallets, r.concurrency,
		func(w storage.OwnedWallet) string { return fmt.Sprintf("wallet:%d", w.Wallet.ID) },
		func(ctx context.Context, w storage.OwnedWallet) error {
			_, err := r.RegisterWallet(ctx, w)
			return err
		})
	log.Info().
		Int("wallets", rep.Total).
		Int("failed", rep.Failed).
		Msg("watchlist: run finished")
	return rep, nil
}

// RegisterWallet opens a default stop-loss for each holding worth at least
// the watch-list minimum. It returns the number of orders created.
func (r *Registrar) RegisterWallet(ctx context.Context, w storage.OwnedWallet) (int, error) {
	tuning, err := r.tuning.Tuning()
	if err != nil {
		return 0, fmt.Errorf("watchlist: %w", err)
	}

	accounts, err := r.accounts.GetTokenAccounts(ctx, solana.Pubkey(w.Wallet.Address))
	if err != nil {
		return 0, fmt.Errorf("watchlist: wallet %d accounts: %w", w.Wallet.ID, err)
	}
	var held []solana.TokenAccount
	seen := make(map[solana.Pubkey]bool)
	var mints []string
	for _, a := range accounts {
		if a.Amount == 0 || a.Mint == solana.WrappedSOLMint {
			continue
		}
		held = append(held, a)
		if !seen[a.Mint] {
			seen[a.Mint] = true
			mints = append(mints, string(a.Mint))
		}
	}
	if len(held) == 0 {
		return 0, nil
	}

	prices, err := r.prices.PriceList(ctx, mints)
	if err != nil {
		return 0, fmt.Errorf("watchlist: wallet %d prices: %w", w.Wallet.ID, err)
	}

	created := 0
	for _, a := range held {
		price, ok := prices[string(a.Mint)]
		if !ok || !price.IsPositive() {
			continue
		}
		value := a.UIAmount.Mul(price)
		if value.LessThan(tuning.MinimumWatchlistUSD) {
			continue
		}
		_, isNew, err := r.orders.CreateOrder(ctx, stoploss.OrderSpec{
			UserID:          w.User.ID,
			WalletID:        w.Wallet.ID,
			ContractAddress: string(a.Mint),
			Token:           domain.Token{Decimals: a.Decimals},
			ReferencePrice:  price,
			Percentage:      tuning.DefaultStopLossPercentage,
			Strategy:        domain.StrategyStopLoss,
			CreatedBy:       domain.CreatorApp,
		})
		if err != nil {
			return created, fmt.Errorf("watchlist: wallet %d mint %s: %w", w.Wallet.ID, a.Mint, err)
		}
		if isNew {
			created++
			log.Info().
				Int64("wallet_id", w.Wallet.ID).
				Str("mint", string(a.Mint)).
				Str("value_usd", value.StringFixed(2)).
				Msg("watchlist: position registered")
		}
	}
	return created, nil
}
