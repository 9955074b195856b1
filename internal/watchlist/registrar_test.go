package watchlist

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/config"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/stoploss"
	"github.com/0xayot/davids-sling/internal/storage"
	"github.com/0xayot/davids-sling/internal/storage/memory"
)

type priceMap map[string]decimal.Decimal

func (p priceMap) PriceList(_ context.Context, mints []string) (map[string]decimal.Decimal, error) {
	if p == nil {
		return nil, errors.New("price api down")
	}
	out := make(map[string]decimal.Decimal)
	for _, m := range mints {
		if v, ok := p[m]; ok {
			out[m] = v
		}
	}
	return out, nil
}

func setup(t *testing.T, prices priceMap) (*Registrar, *memory.Stores, *solana.StubRPCClient, storage.OwnedWallet) {
	t.Helper()
	stores := memory.NewStores()
	rpc := solana.NewStubRPCClient()
	ctx := context.Background()

	u := &domain.User{TelegramID: "1"}
	require.NoError(t, stores.Users.Insert(ctx, u))
	w := &domain.Wallet{UserID: u.ID, Address: "Holder1"}
	require.NoError(t, stores.Wallets.Insert(ctx, w))

	orders := stoploss.New(stoploss.DefaultConfig(), stoploss.Deps{Orders: stores.Orders, Tokens: stores.Tokens})
	r := New(stores.Wallets, rpc, prices, orders, config.StaticTuning(config.DefaultTuning()), 2)
	return r, stores, rpc, storage.OwnedWallet{Wallet: *w, User: *u}
}

func hold(rpc *solana.StubRPCClient, owner, mint string, ui string, decimals uint8) {
	amt := decimal.RequireFromString(ui)
	rpc.AddTokenAccount(solana.Pubkey(owner), solana.TokenAccount{
		Address:  solana.Pubkey("Acct" + mint),
		Mint:     solana.Pubkey(mint),
		Amount:   uint64(amt.Shift(int32(decimals)).IntPart()),
		UIAmount: amt,
		Decimals: decimals,
	})
}

func TestRegisterWallet(t *testing.T) {
	r, stores, rpc, w := setup(t, priceMap{
		"Big":   decimal.RequireFromString("2"),
		"Small": decimal.RequireFromString("0.001"),
		"Edge":  decimal.RequireFromString("1"),
	})
	hold(rpc, "Holder1", "Big", "100", 6)
	hold(rpc, "Holder1", "Small", "100", 6)
	hold(rpc, "Holder1", "Edge", "10", 9)
	hold(rpc, "Holder1", "Unpriced", "1000", 6)
	hold(rpc, "Holder1", "Empty", "0", 6)

	n, err := r.RegisterWallet(context.Background(), w)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	orders := stores.Orders.All()
	require.Len(t, orders, 2)
	byMint := map[string]domain.TradeOrder{}
	for _, o := range orders {
		byMint[o.ContractAddress] = o
	}
	big := byMint["Big"]
	assert.Equal(t, domain.StrategyStopLoss, big.Strategy)
	assert.Equal(t, domain.CreatorApp, big.CreatedBy)
	assert.True(t, big.TargetPrice.Equal(decimal.RequireFromString("1.2")))
	assert.Contains(t, byMint, "Edge", "exactly the minimum is watched")

	tok, err := stores.Tokens.GetByContract(context.Background(), "Edge")
	require.NoError(t, err)
	assert.Equal(t, uint8(9), tok.Decimals)

	// A second pass creates nothing new.
	n, err = r.RegisterWallet(context.Background(), w)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, stores.Orders.All(), 2)
}

func TestRegisterWallet_PriceFailure(t *testing.T) {
	r, _, rpc, w := setup(t, nil)
	hold(rpc, "Holder1", "Big", "100", 6)

	_, err := r.RegisterWallet(context.Background(), w)
	assert.Error(t, err)
}

func TestRunAll(t *testing.T) {
	r, stores, rpc, _ := setup(t, priceMap{"Big": decimal.NewFromInt(1)})
	ctx := context.Background()
	u2 := &domain.User{TelegramID: "2"}
	require.NoError(t, stores.Users.Insert(ctx, u2))
	require.NoError(t, stores.Wallets.Insert(ctx, &domain.Wallet{UserID: u2.ID, Address: "Holder2"}))

	hold(rpc, "Holder1", "Big", "50", 6)
	hold(rpc, "Holder2", "Big", "50", 6)

	rep, err := r.RunAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Succeeded)
	assert.Len(t, stores.Orders.All(), 2)
}
