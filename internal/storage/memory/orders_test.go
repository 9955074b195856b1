package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

func seedOwner(t *testing.T, s *Stores) (domain.User, domain.Wallet) {
	t.Helper()
	ctx := context.Background()
	u := &domain.User{TelegramID: "42", Username: "alice"}
	require.NoError(t, s.Users.Insert(ctx, u))
	w := &domain.Wallet{UserID: u.ID, Address: "WalletAddr1"}
	require.NoError(t, s.Wallets.Insert(ctx, w))
	return *u, *w
}

func newOrder(u domain.User, w domain.Wallet, strategy domain.Strategy) *domain.TradeOrder {
	return &domain.TradeOrder{
		UserID:          u.ID,
		WalletID:        w.ID,
		ContractAddress: "MintA",
		TargetPrice:     decimal.NewFromInt(6),
		Strategy:        strategy,
		Active:          true,
		CreatedBy:       domain.CreatorApp,
	}
}

func TestOrderStore_DuplicateActive(t *testing.T) {
	s := NewStores()
	ctx := context.Background()
	u, w := seedOwner(t, s)

	require.NoError(t, s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyStopLoss)))
	err := s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyStopLoss))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// A different strategy on the same token is allowed.
	require.NoError(t, s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyLaunchStopLoss)))
}

func TestOrderStore_DeactivateFreesSlot(t *testing.T) {
	s := NewStores()
	ctx := context.Background()
	u, w := seedOwner(t, s)

	o := newOrder(u, w, domain.StrategyStopLoss)
	require.NoError(t, s.Orders.Insert(ctx, o))
	require.NoError(t, s.Orders.Deactivate(ctx, o.ID))

	_, err := s.Orders.GetActive(ctx, w.ID, "MintA", domain.StrategyStopLoss)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyStopLoss)))

	assert.ErrorIs(t, s.Orders.Deactivate(ctx, 999), storage.ErrNotFound)
}

func TestOrderStore_ListActiveWithOwners(t *testing.T) {
	s := NewStores()
	ctx := context.Background()
	u, w := seedOwner(t, s)

	require.NoError(t, s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyStopLoss)))
	require.NoError(t, s.Orders.Insert(ctx, newOrder(u, w, domain.StrategyLaunchStopLoss)))

	owned, err := s.Orders.ListActiveWithOwners(ctx, "MintA", []domain.Strategy{domain.StrategyStopLoss})
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.NotNil(t, owned[0].User)
	require.NotNil(t, owned[0].Wallet)
	assert.Equal(t, "alice", owned[0].User.Username)

	s.Users.Delete(u.ID)
	owned, err = s.Orders.ListActiveWithOwners(ctx, "MintA", domain.ProtectiveStrategies)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	assert.Nil(t, owned[0].User)
	assert.NotNil(t, owned[0].Wallet)
}

func TestOrderStore_ListActiveContracts(t *testing.T) {
	s := NewStores()
	ctx := context.Background()
	u, w := seedOwner(t, s)

	a := newOrder(u, w, domain.StrategyStopLoss)
	b := newOrder(u, w, domain.StrategyStopLoss)
	b.ContractAddress = "MintB"
	require.NoError(t, s.Orders.Insert(ctx, a))
	require.NoError(t, s.Orders.Insert(ctx, b))
	require.NoError(t, s.Orders.Deactivate(ctx, b.ID))

	contracts, err := s.Orders.ListActiveContracts(ctx, domain.ProtectiveStrategies)
	require.NoError(t, err)
	assert.Equal(t, []string{"MintA"}, contracts)
}

func TestOrderStore_ReturnsCopies(t *testing.T) {
	s := NewStores()
	ctx := context.Background()
	u, w := seedOwner(t, s)

	o := newOrder(u, w, domain.StrategyStopLoss)
	require.NoError(t, s.Orders.Insert(ctx, o))
	o.Active = false

	got, err := s.Orders.GetActive(ctx, w.ID, "MintA", domain.StrategyStopLoss)
	require.NoError(t, err)
	assert.True(t, got.Active)
}
