package routefinder

import (
	"math/big"

	"github.com/holiman/uint256"
)

const bpsDenom = 10000

// GetAmountOutCP computes the constant-product output for a swap of
// amountIn against (reserveIn, reserveOut) with a venue fee in bps:
//
//	out = in*(10000-fee)*rOut / (rIn*10000 + in*(10000-fee))
//
// A uint256 fast path covers realistic reserves; amounts that overflow
// 256 bits fall back to math/big.
func GetAmountOutCP(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) *big.Int {
	if amountIn == nil || reserveIn == nil || reserveOut == nil {
		return new(big.Int)
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	if feeBps >= bpsDenom {
		return new(big.Int)
	}

	in, overflowIn := uint256.FromBig(amountIn)
	rIn, overflowRIn := uint256.FromBig(reserveIn)
	rOut, overflowROut := uint256.FromBig(reserveOut)
	if !overflowIn && !overflowRIn && !overflowROut {
		feeMul := uint256.NewInt(uint64(bpsDenom - feeBps))
		denomMul := uint256.NewInt(bpsDenom)

		inWithFee := new(uint256.Int).Mul(in, feeMul)
		numerator, overflow := new(uint256.Int).MulOverflow(inWithFee, rOut)
		if !overflow {
			denominator := new(uint256.Int).Mul(rIn, denomMul)
			denominator.Add(denominator, inWithFee)
			if !denominator.IsZero() {
				return new(uint256.Int).Div(numerator, denominator).ToBig()
			}
		}
	}

	inWithFee := new(big.Int).Mul(amountIn, big.NewInt(int64(bpsDenom-feeBps)))
	numerator := new(big.Int).Mul(inWithFee, reserveOut)
	denominator := new(big.Int).Mul(reserveIn, big.NewInt(bpsDenom))
	denominator.Add(denominator, inWithFee)
	if denominator.Sign() == 0 {
		return new(big.Int)
	}
	return numerator.Div(numerator, denominator)
}

// EstimatePriceImpactBps approximates the price impact of trading
// amountIn into a pool with reserveIn:
//
//	impact = amountIn / (reserveIn + amountIn)
//
// in bps, capped at the uint16 range. This is the pre-ranking estimate;
// the authoritative output always comes from on-chain verification.
func EstimatePriceImpactBps(amountIn, reserveIn *big.Int) uint16 {
	if amountIn == nil || reserveIn == nil {
		return 0
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 {
		return 0
	}
	denom := new(big.Int).Add(reserveIn, amountIn)
	impact := new(big.Int).Mul(amountIn, big.NewInt(bpsDenom))
	impact.Div(impact, denom)
	if !impact.IsUint64() || impact.Uint64() > 65535 {
		return 65535
	}
	return uint16(impact.Uint64())
}

// sumImpactBps accumulates per-hop impacts, saturating at uint16.
func sumImpactBps(impacts []uint16) uint16 {
	total := 0
	for _, i := range impacts {
		total += int(i)
	}
	if total > 65535 {
		return 65535
	}
	return uint16(total)
}
