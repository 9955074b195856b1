// Package batch fans independent units of work out over a bounded pool and
// reports per-item outcomes. One item's failure never cancels its siblings.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrSkipped marks an item that was deliberately not processed.
var ErrSkipped = errors.New("batch: skipped")

// Skip returns an error that Run counts as skipped rather than failed.
func Skip(reason string) error {
	return fmt.Errorf("%w: %s", ErrSkipped, reason)
}

// Report aggregates the outcome of a Run.
type Report struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	// Errors holds the failure or skip reason per item key.
	Errors map[string]error
}

// Merge folds other into r.
func (r *Report) Merge(other Report) {
	r.Total += other.Total
	r.Succeeded += other.Succeeded
	r.Failed += other.Failed
	r.Skipped += other.Skipped
	if len(other.Errors) == 0 {
		return
	}
	if r.Errors == nil {
		r.Errors = make(map[string]error, len(other.Errors))
	}
	for k, err := range other.Errors {
		r.Errors[k] = err
	}
}

// FailedKeys returns the keys of failed items in sorted order.
func (r Report) FailedKeys() []string {
	var keys []string
	for k, err := range r.Errors {
		if !errors.Is(err, ErrSkipped) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Run calls fn for every item with at most limit calls in flight and waits for
// all of them. A limit <= 0 means unbounded. key names an item in the report.
// A panicking fn is recorded as a failure of that item.
func Run[T any](ctx context.Context, items []T, limit int, key func(T) string, fn func(context.Context, T) error) Report {
	results := make([]error, len(items))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, item := range items {
		g.Go(func() error {
			results[i] = call(ctx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	rep := Report{Total: len(items)}
	for i, err := range results {
		switch {
		case err == nil:
			rep.Succeeded++
			continue
		case errors.Is(err, ErrSkipped):
			rep.Skipped++
		default:
			rep.Failed++
		}
		if rep.Errors == nil {
			rep.Errors = make(map[string]error)
		}
		k := key(items[i])
		if _, dup := rep.Errors[k]; dup {
			k = fmt.Sprintf("%s#%d", k, i)
		}
		rep.Errors[k] = err
	}
	return rep
}

func call[T any](ctx context.Context, item T, fn func(context.Context, T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("batch: task panicked")
			err = fmt.Errorf("batch: task panicked: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, item)
}
