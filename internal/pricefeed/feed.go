// Package pricefeed records price history and drives the stop-loss checks
// from fresh quotes.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/0xayot/davids-sling/internal/batch"
	"github.com/0xayot/davids-sling/internal/domain"
	"github.com/0xayot/davids-sling/internal/observability"
	"github.com/0xayot/davids-sling/internal/solana"
	"github.com/0xayot/davids-sling/internal/stoploss"
	"github.com/0xayot/davids-sling/internal/storage"
)

// PriceLister prices many mints in one call.
type PriceLister interface {
	PriceList(ctx context.Context, mints []string) (map[string]decimal.Decimal, error)
}

// Guard reacts to a fresh price for a tracked launch.
type Guard interface {
	OnPriceUpdate(ctx context.Context, contract string, price decimal.Decimal) (batch.Report, error)
}

// Sweeper evaluates every protective order.
type Sweeper interface {
	Sweep(ctx context.Context) (stoploss.SweepReport, error)
}

// Deps are the collaborators of a Feed. Guard and Sweeper are optional.
type Deps struct {
	Orders   storage.OrderStore
	Launches storage.LaunchStore
	Tokens   storage.TokenStore
	Prices   storage.PriceStore
	Lister   PriceLister
	Guard    Guard
	Sweeper  Sweeper
	Metrics  *observability.Registry
}

// Feed refreshes prices for everything the engine watches.
type Feed struct {
	Deps
	points *observability.Counter
}

// Report summarizes one refresh.
type Report struct {
	Contracts int
	Recorded  int
	Unpriced  []string
	// Unrecorded holds contracts whose price point could not be stored.
	// They are still passed to the guard and the sweep.
	Unrecorded map[string]error
	Launches   batch.Report
	Sweep      *stoploss.SweepReport
}

// New creates a feed.
func New(deps Deps) *Feed {
	if deps.Metrics == nil {
		deps.Metrics = observability.SlingMetrics()
	}
	return &Feed{
		Deps:   deps,
		points: deps.Metrics.NewCounter(observability.MetricPricePoints, "Price points recorded"),
	}
}

// Refresh prices watched contracts, records a point for each, then runs the
// launch guard and the stop-loss sweep.
func (f *Feed) Refresh(ctx context.Context) (Report, error) {
	contracts, tracked, err := f.watched(ctx)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Contracts: len(contracts)}

	mints := append([]string{string(solana.WrappedSOLMint)}, contracts...)
	prices, err := f.Lister.PriceList(ctx, mints)
	if err != nil {
		return rep, fmt.Errorf("pricefeed: price list: %w", err)
	}
	sol := prices[string(solana.WrappedSOLMint)]

	for _, c := range contracts {
		price, ok := prices[c]
		if !ok || !price.IsPositive() {
			rep.Unpriced = append(rep.Unpriced, c)
			continue
		}
		p := &domain.PricePoint{
			ContractAddress: c,
			Chain:           domain.Chain,
			Name:            f.tokenName(ctx, c),
			Price:           price,
		}
		if sol.IsPositive() {
			p.PriceNative = price.Div(sol)
		}
		if err := f.Prices.Insert(ctx, p); err != nil {
			log.Warn().Err(err).Str("contract", c).Msg("pricefeed: record price point failed")
			if rep.Unrecorded == nil {
				rep.Unrecorded = make(map[string]error)
			}
			rep.Unrecorded[c] = err
			continue
		}
		rep.Recorded++
		f.points.Inc()
	}

	if f.Guard != nil {
		rep.Launches = batch.Run(ctx, tracked, 0,
			func(c string) string { return c },
			func(ctx context.Context, c string) error {
				price, ok := prices[c]
				if !ok || !price.IsPositive() {
					return batch.Skip("unpriced")
				}
				r, err := f.Guard.OnPriceUpdate(ctx, c, price)
				if err != nil {
					return err
				}
				if r.Failed > 0 {
					return fmt.Errorf("%d launch sells failed", r.Failed)
				}
				return nil
			})
	}

	if f.Sweeper != nil {
		sw, err := f.Sweeper.Sweep(ctx)
		if err != nil {
			return rep, fmt.Errorf("pricefeed: sweep: %w", err)
		}
		rep.Sweep = &sw
	}

	log.Debug().
		Int("contracts", rep.Contracts).
		Int("recorded", rep.Recorded).
		Int("unpriced", len(rep.Unpriced)).
		Int("unrecorded", len(rep.Unrecorded)).
		Msg("pricefeed: refreshed")
	return rep, nil
}

// watched returns every contract to price, sorted, and the tracked launch
// contracts among them.
func (f *Feed) watched(ctx context.Context) ([]string, []string, error) {
	set := make(map[string]struct{})
	active, err := f.Orders.ListActiveContracts(ctx, domain.ProtectiveStrategies)
	if err != nil {
		return nil, nil, fmt.Errorf("pricefeed: active contracts: %w", err)
	}
	for _, c := range active {
		set[c] = struct{}{}
	}

	launches, err := f.Launches.ListTracked(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("pricefeed: tracked launches: %w", err)
	}
	var tracked []string
	seen := make(map[string]bool)
	for _, l := range launches {
		set[l.ContractAddress] = struct{}{}
		if !seen[l.ContractAddress] {
			seen[l.ContractAddress] = true
			tracked = append(tracked, l.ContractAddress)
		}
	}
	delete(set, string(solana.WrappedSOLMint))

	contracts := make([]string, 0, len(set))
	for c := range set {
		contracts = append(contracts, c)
	}
	sort.Strings(contracts)
	sort.Strings(tracked)
	return contracts, tracked, nil
}

func (f *Feed) tokenName(ctx context.Context, contract string) string {
	if f.Tokens == nil {
		return ""
	}
	t, err := f.Tokens.GetByContract(ctx, contract)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Str("contract", contract).Msg("pricefeed: token lookup failed")
		}
		return ""
	}
	if t.Symbol != "" {
		return t.Symbol
	}
	return t.Name
}
