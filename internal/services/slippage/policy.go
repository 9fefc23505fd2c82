package slippage

import (
	"github.com/shopspring/decimal"
)

// Tier maps a pool-liquidity bucket to a starting slippage tolerance.
// Lower liquidity starts higher. Thresholds are product policy, not
// algorithmic necessity, so they are injected rather than hard-coded in
// the controller.
type Tier struct {
	// MaxLiquidityUSD is the exclusive upper bound of the bucket.
	MaxLiquidityUSD decimal.Decimal
	SlippageBps     uint32
}

// Policy is the complete escalation policy. Invariant: escalation is
// monotonically non-decreasing and capped at MaxSlippageBps.
type Policy struct {
	// Tiers ordered ascending by MaxLiquidityUSD.
	Tiers []Tier
	// FloorSlippageBps applies when liquidity exceeds every tier bound.
	FloorSlippageBps uint32
	Multiplier       uint32
	MaxSlippageBps   uint32
	MaxAttempts      int
}

// DefaultPolicy returns the stock tiers: sub-$10k pools start at 5%,
// deep pools (>$1M) at 0.5%.
func DefaultPolicy(maxSlippageBps uint32, multiplier uint32, maxAttempts int) Policy {
	return Policy{
		Tiers: []Tier{
			{MaxLiquidityUSD: decimal.NewFromInt(10_000), SlippageBps: 500},
			{MaxLiquidityUSD: decimal.NewFromInt(100_000), SlippageBps: 300},
			{MaxLiquidityUSD: decimal.NewFromInt(1_000_000), SlippageBps: 100},
		},
		FloorSlippageBps: 50,
		Multiplier:       multiplier,
		MaxSlippageBps:   maxSlippageBps,
		MaxAttempts:      maxAttempts,
	}
}

// InitialSlippage picks the starting tolerance for a pool's liquidity,
// clamped to the cap. Zero liquidity (unknown pool) lands in the lowest
// bucket, the highest tolerance.
func (p Policy) InitialSlippage(liquidityUSD decimal.Decimal) uint32 {
	bps := p.FloorSlippageBps
	for _, tier := range p.Tiers {
		if liquidityUSD.LessThan(tier.MaxLiquidityUSD) {
			bps = tier.SlippageBps
			break
		}
	}
	if bps > p.MaxSlippageBps {
		return p.MaxSlippageBps
	}
	return bps
}

// Next is the pure escalation step: min(current × multiplier, cap).
// The second return is false when current already sits at the cap and
// no further attempt is possible.
func (p Policy) Next(current uint32) (uint32, bool) {
	if current >= p.MaxSlippageBps {
		return p.MaxSlippageBps, false
	}
	next := current * p.Multiplier
	if next > p.MaxSlippageBps || next < current {
		next = p.MaxSlippageBps
	}
	return next, true
}
