package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/domain"
)

// UserStore provides access to users.
type UserStore interface {
	// Insert adds a user and assigns its ID.
	Insert(ctx context.Context, u *domain.User) error

	// GetByID returns ErrNotFound if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// List returns every user ordered by ID.
	List(ctx context.Context) ([]*domain.User, error)
}

// OwnedWallet is a wallet joined with its owner.
type OwnedWallet struct {
	Wallet domain.Wallet
	User   domain.User
}

// WalletStore provides read access to custodial wallets. Inserts exist for
// provisioning only.
type WalletStore interface {
	// Insert adds a wallet and assigns its ID. Returns ErrDuplicateKey if the address exists.
	Insert(ctx context.Context, w *domain.Wallet) error

	// GetByID returns ErrNotFound if the wallet does not exist.
	GetByID(ctx context.Context, id int64) (*domain.Wallet, error)

	// ListWithOwners returns wallets whose owner still exists, ordered by wallet ID.
	ListWithOwners(ctx context.Context) ([]OwnedWallet, error)
}

// TokenStore provides access to known tokens.
type TokenStore interface {
	// FindOrCreate returns the token with t's contract address, inserting t when absent.
	FindOrCreate(ctx context.Context, t *domain.Token) (*domain.Token, error)

	// GetByContract returns ErrNotFound if the token is unknown.
	GetByContract(ctx context.Context, contract string) (*domain.Token, error)
}

// OrderStore provides access to trade orders.
type OrderStore interface {
	// Insert adds an order and assigns its ID. Returns ErrDuplicateKey when an
	// active order already exists for the same wallet, contract and strategy.
	Insert(ctx context.Context, o *domain.TradeOrder) error

	// GetActive returns the active order for (wallet, contract, strategy) or ErrNotFound.
	GetActive(ctx context.Context, walletID int64, contract string, strategy domain.Strategy) (*domain.TradeOrder, error)

	// ListActiveWithOwners returns the active orders on contract with one of
	// the given strategies, joined with user and wallet. Missing owners are nil.
	ListActiveWithOwners(ctx context.Context, contract string, strategies []domain.Strategy) ([]domain.OwnedOrder, error)

	// ListActiveContracts returns the distinct contracts that have an active
	// order with one of the given strategies.
	ListActiveContracts(ctx context.Context, strategies []domain.Strategy) ([]string, error)

	// Deactivate marks an order inactive. Returns ErrNotFound if it does not exist.
	Deactivate(ctx context.Context, id int64) error
}

// TransactionStore is the append-only audit log of swap attempts.
type TransactionStore interface {
	// Insert appends a row and assigns its ID.
	Insert(ctx context.Context, tx *domain.OnchainTransaction) error

	// Recent returns up to limit rows, newest first.
	Recent(ctx context.Context, limit int) ([]*domain.OnchainTransaction, error)
}

// LaunchMeta is the metadata patch applied by the backfill job.
type LaunchMeta struct {
	Meta           json.RawMessage
	HasBoost       bool
	LaunchPriceUSD decimal.NullDecimal
}

// LaunchStore provides access to launch evaluations.
type LaunchStore interface {
	// Insert adds a launch and assigns its ID.
	Insert(ctx context.Context, l *domain.TokenLaunch) error

	// GetLatestByContract returns the newest launch for contract or ErrNotFound.
	GetLatestByContract(ctx context.Context, contract string) (*domain.TokenLaunch, error)

	// ListTracked returns launches evaluated as track that have not rugged.
	ListTracked(ctx context.Context) ([]*domain.TokenLaunch, error)

	// ListMissingMeta returns launches created at or after since without metadata.
	ListMissingMeta(ctx context.Context, since time.Time) ([]*domain.TokenLaunch, error)

	// UpdateMeta applies the metadata patch.
	UpdateMeta(ctx context.Context, id int64, m LaunchMeta) error

	// MarkRugged sets rugged_at, the lifespan in seconds and the rugged evaluation.
	MarkRugged(ctx context.Context, id int64, at time.Time, lifespan int64) error
}

// PriceStore is the append-only price history.
type PriceStore interface {
	// Insert appends a price point and assigns its ID.
	Insert(ctx context.Context, p *domain.PricePoint) error

	// Latest returns the newest point for contract or ErrNotFound.
	Latest(ctx context.Context, contract string) (*domain.PricePoint, error)

	// Since returns points for contract created at or after since, oldest first.
	Since(ctx context.Context, contract string, since time.Time) ([]*domain.PricePoint, error)
}

// Stores bundles every store the engine uses.
type Stores struct {
	Users        UserStore
	Wallets      WalletStore
	Tokens       TokenStore
	Orders       OrderStore
	Transactions TransactionStore
	Launches     LaunchStore
	Prices       PriceStore
}
