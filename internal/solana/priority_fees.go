package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Compute-unit prices in micro-lamports, used when the swap API's fee
// endpoint is unavailable.
const (
	MaxPriorityFeeMicroLamports     = 5_000_000
	DefaultPriorityFeeMicroLamports = 100_000
)

// RecentPriorityFee returns the p75 of non-zero compute-unit prices paid in
// recent slots, capped at MaxPriorityFeeMicroLamports.
func (c *LiveRPCClient) RecentPriorityFee(ctx context.Context) (uint64, error) {
	result, err := c.call(ctx, "getRecentPrioritizationFees", nil)
	if err != nil {
		return DefaultPriorityFeeMicroLamports, fmt.Errorf("rpc: getRecentPrioritizationFees: %w", err)
	}

	var fees []struct {
		Slot              uint64 `json:"slot"`
		PrioritizationFee uint64 `json:"prioritizationFee"`
	}
	if err := json.Unmarshal(result, &fees); err != nil {
		return DefaultPriorityFeeMicroLamports, fmt.Errorf("rpc: parse fees: %w", err)
	}

	values := make([]uint64, 0, len(fees))
	for _, f := range fees {
		if f.PrioritizationFee > 0 {
			values = append(values, f.PrioritizationFee)
		}
	}
	if len(values) == 0 {
		return DefaultPriorityFeeMicroLamports, nil
	}

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	fee := percentile(values, 75)
	if fee > MaxPriorityFeeMicroLamports {
		fee = MaxPriorityFeeMicroLamports
	}
	return fee, nil
}

// percentile computes the p-th percentile of sorted values.
func percentile(sorted []uint64, p int) uint64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
