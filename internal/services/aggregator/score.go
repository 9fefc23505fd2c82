package aggregator

import (
	"math/big"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/swapmesh/route-resolver/internal/domain"
)

// tieEpsilon is the relative score window inside which two routes are
// considered equal and tie-breaks apply: 0.01%.
var tieEpsilon = decimal.New(1, -4)

// ScoreInputs carries the USD context a score needs beyond the route
// itself. ProtocolFeesUSD covers venue/bridge protocol fees not already
// folded into the output amount.
type ScoreInputs struct {
	OutputPriceUSD  decimal.Decimal
	AmountInUSD     decimal.Decimal
	HopPenaltyUSD   decimal.Decimal
	ProtocolFeesUSD decimal.Decimal
}

// ScoreRoute computes the aggregator score:
//
//	out*outPrice − gas − impactBps*amountInUSD/10000 − protocolFees − hops*penalty
//
// Pure function over the route and its USD context.
func ScoreRoute(r *domain.Route, in ScoreInputs) decimal.Decimal {
	out := amountToDecimal(r.OutputAmount, r.OutputToken().Decimals)
	score := out.Mul(in.OutputPriceUSD)
	score = score.Sub(r.EstimatedGasUSD)
	impact := decimal.NewFromInt(int64(r.PriceImpactBps)).
		Mul(in.AmountInUSD).
		Div(decimal.NewFromInt(10000))
	score = score.Sub(impact)
	score = score.Sub(in.ProtocolFeesUSD)
	penalty := in.HopPenaltyUSD.Mul(decimal.NewFromInt(int64(r.HopCount())))
	return score.Sub(penalty)
}

// Rank orders routes highest score first. Scores within 0.01% of each
// other are tied; ties prefer fewer hops, then lower slippage
// requirement, then path key for full determinism.
func Rank(routes []*domain.Route) {
	sort.SliceStable(routes, func(i, j int) bool {
		a, b := routes[i], routes[j]
		if !scoresTied(a.Score, b.Score) {
			return a.Score.GreaterThan(b.Score)
		}
		if a.HopCount() != b.HopCount() {
			return a.HopCount() < b.HopCount()
		}
		if a.SlippageBps != b.SlippageBps {
			return a.SlippageBps < b.SlippageBps
		}
		return a.PathKey() < b.PathKey()
	})
}

func scoresTied(a, b decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	scale := decimal.Max(a.Abs(), b.Abs())
	if scale.IsZero() {
		return true
	}
	return diff.LessThanOrEqual(scale.Mul(tieEpsilon))
}

// Dedupe collapses routes sharing an identical path, keeping the one
// with the higher verified output. Input order is preserved for the
// survivors.
func Dedupe(routes []*domain.Route) []*domain.Route {
	best := make(map[string]*domain.Route, len(routes))
	order := make([]string, 0, len(routes))
	for _, r := range routes {
		key := r.PathKey()
		prev, seen := best[key]
		if !seen {
			best[key] = r
			order = append(order, key)
			continue
		}
		if cmpBig(r.OutputAmount, prev.OutputAmount) > 0 {
			best[key] = r
		}
	}
	out := make([]*domain.Route, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func cmpBig(a, b *big.Int) int {
	if a == nil {
		if b == nil {
			return 0
		}
		return -1
	}
	if b == nil {
		return 1
	}
	return a.Cmp(b)
}

func amountToDecimal(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}
