package memory

import "github.com/0xayot/davids-sling/internal/storage"

// Stores is the full in-memory backend. Concrete fields are exposed so tests
// can inspect state and remove owners.
type Stores struct {
	Users        *UserStore
	Wallets      *WalletStore
	Tokens       *TokenStore
	Orders       *OrderStore
	Transactions *TransactionStore
	Launches     *LaunchStore
	Prices       *PriceStore
}

// NewStores creates an empty in-memory backend with shared owner joins.
func NewStores() *Stores {
	users := NewUserStore()
	wallets := NewWalletStore(users)
	return &Stores{
		Users:        users,
		Wallets:      wallets,
		Tokens:       NewTokenStore(),
		Orders:       NewOrderStore(users, wallets),
		Transactions: NewTransactionStore(),
		Launches:     NewLaunchStore(),
		Prices:       NewPriceStore(),
	}
}

// Bundle returns the stores behind their interfaces.
func (s *Stores) Bundle() storage.Stores {
	return storage.Stores{
		Users:        s.Users,
		Wallets:      s.Wallets,
		Tokens:       s.Tokens,
		Orders:       s.Orders,
		Transactions: s.Transactions,
		Launches:     s.Launches,
		Prices:       s.Prices,
	}
}
