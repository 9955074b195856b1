package stoploss

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/storage"
)

// OrderSpec describes a protective order to open.
type OrderSpec struct {
	UserID          int64
	WalletID        int64
	ContractAddress string
	// Token is used to find or create the token row; only its metadata is read.
	Token          domain.Token
	ReferencePrice decimal.Decimal
	Percentage     decimal.Decimal
	Strategy       domain.Strategy
	CreatedBy      domain.Creator
}

func (s OrderSpec) validate() error {
	switch {
	case s.ContractAddress == "":
		return fmt.Errorf("%w: contract address is required", storage.ErrInvalidInput)
	case !s.Strategy.Valid():
		return fmt.Errorf("%w: strategy %q", storage.ErrInvalidInput, s.Strategy)
	case !s.CreatedBy.Valid():
		return fmt.Errorf("%w: creator %q", storage.ErrInvalidInput, s.CreatedBy)
	case !s.ReferencePrice.IsPositive():
		return fmt.Errorf("%w: reference price must be positive", storage.ErrInvalidInput)
	case !s.Percentage.IsPositive() || s.Percentage.GreaterThan(decimal.NewFromInt(100)):
		return fmt.Errorf("%w: percentage must be in (0, 100]", storage.ErrInvalidInput)
	}
	return nil
}

// CreateOrder opens a protective order unless an active one already exists
// for the same wallet, contract and strategy. It returns the active order and
// whether it was created by this call.
func (e *Evaluator) CreateOrder(ctx context.Context, spec OrderSpec) (*domain.TradeOrder, bool, error) {
	if err := spec.validate(); err != nil {
		return nil, false, fmt.Errorf("stoploss: create order: %w", err)
	}

	existing, err := e.Orders.GetActive(ctx, spec.WalletID, spec.ContractAddress, spec.Strategy)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, false, fmt.Errorf("stoploss: lookup order: %w", err)
	}

	tok := spec.Token
	tok.ContractAddress = spec.ContractAddress
	if tok.Chain == "" {
		tok.Chain = domain.Chain
	}
	token, err := e.Tokens.FindOrCreate(ctx, &tok)
	if err != nil {
		return nil, false, fmt.Errorf("stoploss: token %s: %w", spec.ContractAddress, err)
	}

	order := &domain.TradeOrder{
		UserID:           spec.UserID,
		WalletID:         spec.WalletID,
		ContractAddress:  spec.ContractAddress,
		TokenID:          token.ID,
		ReferencePrice:   spec.ReferencePrice,
		TargetPrice:      domain.StopLossTarget(spec.ReferencePrice, spec.Percentage),
		TargetPercentage: spec.Percentage,
		Strategy:         spec.Strategy,
		Active:           true,
		CreatedBy:        spec.CreatedBy,
	}
	if err := e.Orders.Insert(ctx, order); err != nil {
		if !errors.Is(err, storage.ErrDuplicateKey) {
			return nil, false, fmt.Errorf("stoploss: insert order: %w", err)
		}
		// Lost a race with a concurrent creator.
		existing, gerr := e.Orders.GetActive(ctx, spec.WalletID, spec.ContractAddress, spec.Strategy)
		if gerr != nil {
			return nil, false, fmt.Errorf("stoploss: lookup order after duplicate: %w", gerr)
		}
		return existing, false, nil
	}

	log.Info().
		Int64("order_id", order.ID).
		Int64("wallet_id", order.WalletID).
		Str("contract", order.ContractAddress).
		Str("strategy", string(order.Strategy)).
		Str("target", order.TargetPrice.String()).
		Msg("stoploss: order created")
	return order, true, nil
}
