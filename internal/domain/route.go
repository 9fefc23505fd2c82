package domain

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnwrapVenueID marks the synthetic hop appended to routes that end in a
// native asset: the wrapped token is unwound 1:1 after the final swap.
const UnwrapVenueID = "unwrap"

// Hop is one token-to-token exchange leg on a single venue.
type Hop struct {
	VenueID    string   `json:"venueId"`
	FromToken  Token    `json:"fromToken"`
	ToToken    Token    `json:"toToken"`
	FromAmount *big.Int `json:"fromAmount"`
	ToAmount   *big.Int `json:"toAmount"`
}

// Route is an executable swap plan on one chain. Routes are value
// objects: re-quoting produces a new Route, never mutates an old one.
type Route struct {
	Path            []Token         `json:"path"`
	Steps           []Hop           `json:"steps"`
	SourceLabel     string          `json:"sourceLabel"`
	OutputAmount    *big.Int        `json:"outputAmount"`
	PriceImpactBps  uint16          `json:"priceImpactBps"`
	EstimatedGasUSD decimal.Decimal `json:"estimatedGasUsd"`
	Score           decimal.Decimal `json:"score"`
	SlippageBps     uint32          `json:"slippageBps"`
	NeedsUnwrap     bool            `json:"needsUnwrap"`
	ExpiresAt       time.Time       `json:"expiresAt"`
}

func (r *Route) ChainID() ChainID {
	if len(r.Path) == 0 {
		return 0
	}
	return r.Path[0].ChainID
}

// HopCount counts swap hops, excluding the synthetic unwrap step.
func (r *Route) HopCount() int {
	n := 0
	for _, h := range r.Steps {
		if h.VenueID != UnwrapVenueID {
			n++
		}
	}
	return n
}

func (r *Route) InputToken() Token {
	if len(r.Path) == 0 {
		return Token{}
	}
	return r.Path[0]
}

func (r *Route) OutputToken() Token {
	if len(r.Path) == 0 {
		return Token{}
	}
	return r.Path[len(r.Path)-1]
}

func (r *Route) InputAmount() *big.Int {
	if len(r.Steps) == 0 {
		return nil
	}
	return r.Steps[0].FromAmount
}

func (r *Route) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && now.After(r.ExpiresAt)
}

// PathKey is a deterministic identity for duplicate collapsing in the
// aggregator: two routes with the same key traverse the same tokens.
func (r *Route) PathKey() string {
	var sb strings.Builder
	sb.WriteString(r.ChainID().String())
	for _, t := range r.Path {
		sb.WriteByte('|')
		sb.WriteString(string(t.Address))
	}
	return sb.String()
}

// Validate checks the path continuity invariant: steps chain end to end
// and the path endpoints match the first and last hop.
func (r *Route) Validate() error {
	if len(r.Path) < 2 {
		return fmt.Errorf("route path must contain at least 2 tokens, got %d", len(r.Path))
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("route has no steps")
	}
	for i := 0; i < len(r.Steps)-1; i++ {
		if !r.Steps[i].ToToken.Equal(r.Steps[i+1].FromToken) {
			return fmt.Errorf("hop %d output %s does not feed hop %d input %s",
				i, r.Steps[i].ToToken.Address, i+1, r.Steps[i+1].FromToken.Address)
		}
	}
	if !r.Steps[0].FromToken.Equal(r.Path[0]) {
		return fmt.Errorf("first hop input %s does not match path start %s",
			r.Steps[0].FromToken.Address, r.Path[0].Address)
	}
	// The path terminates at the wrapped token when an unwrap step is
	// appended; the unwrap hop itself carries the native destination.
	last := r.Steps[len(r.Steps)-1]
	pathEnd := r.Path[len(r.Path)-1]
	if r.NeedsUnwrap {
		if last.VenueID != UnwrapVenueID {
			return fmt.Errorf("needsUnwrap set but final step is %q", last.VenueID)
		}
		if !last.FromToken.Equal(pathEnd) {
			return fmt.Errorf("unwrap hop input %s does not match path end %s",
				last.FromToken.Address, pathEnd.Address)
		}
	} else if !last.ToToken.Equal(pathEnd) {
		return fmt.Errorf("last hop output %s does not match path end %s",
			last.ToToken.Address, pathEnd.Address)
	}
	return nil
}

// MinOutputAfterSlippage applies the route's slippage tolerance:
// out * (10000 - bps) / 10000.
func (r *Route) MinOutputAfterSlippage() *big.Int {
	if r.OutputAmount == nil {
		return nil
	}
	bps := int64(r.SlippageBps)
	if bps >= 10000 {
		return new(big.Int)
	}
	min := new(big.Int).Mul(r.OutputAmount, big.NewInt(10000-bps))
	return min.Div(min, big.NewInt(10000))
}
