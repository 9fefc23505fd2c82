package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// BridgeQuote is one bridge provider's offer to move a token between
// two chains. Like routes, quotes are request-local values with a TTL.
type BridgeQuote struct {
	ProviderID       string          `json:"providerId"`
	FromChain        ChainID         `json:"fromChain"`
	ToChain          ChainID         `json:"toChain"`
	InputToken       Token           `json:"inputToken"`
	OutputToken      Token           `json:"outputToken"`
	InputAmount      *big.Int        `json:"inputAmount"`
	OutputAmount     *big.Int        `json:"outputAmount"`
	FeeUSD           decimal.Decimal `json:"feeUsd"`
	ETASeconds       int             `json:"etaSeconds"`
	ReliabilityScore float64         `json:"reliabilityScore"`
	ExpiresAt        time.Time       `json:"expiresAt"`
}

// CrossChainPlan composes up to three legs: a source-chain swap into the
// bridge input token, the bridge transfer, and a destination-chain swap
// out of the bridge output token. Plans are all-or-nothing; a partially
// resolved plan is never constructed.
type CrossChainPlan struct {
	SourceLeg *Route      `json:"sourceLeg,omitempty"`
	Bridge    BridgeQuote `json:"bridge"`
	DestLeg   *Route      `json:"destLeg,omitempty"`
}

// Validate enforces the leg-composition invariants: the source leg (when
// present) must end at the bridge input token, and the destination leg
// (when present) must start at the bridge output token.
func (p *CrossChainPlan) Validate() error {
	if p.SourceLeg != nil {
		if err := p.SourceLeg.Validate(); err != nil {
			return fmt.Errorf("source leg: %w", err)
		}
		if !p.SourceLeg.OutputToken().Equal(p.Bridge.InputToken) {
			return fmt.Errorf("source leg ends at %s but bridge expects %s",
				p.SourceLeg.OutputToken().Address, p.Bridge.InputToken.Address)
		}
	}
	if p.DestLeg != nil {
		if err := p.DestLeg.Validate(); err != nil {
			return fmt.Errorf("dest leg: %w", err)
		}
		if !p.DestLeg.InputToken().Equal(p.Bridge.OutputToken) {
			return fmt.Errorf("dest leg starts at %s but bridge delivers %s",
				p.DestLeg.InputToken().Address, p.Bridge.OutputToken.Address)
		}
	}
	return nil
}

// FinalOutput is the amount delivered by the last resolving leg.
func (p *CrossChainPlan) FinalOutput() *big.Int {
	if p.DestLeg != nil {
		return p.DestLeg.OutputAmount
	}
	return p.Bridge.OutputAmount
}

// Flatten collapses the plan into a single Route shape so it can enter
// the aggregator's candidate pool alongside same-chain routes.
func (p *CrossChainPlan) Flatten(sourceLabel string, slippageBps uint32) *Route {
	var (
		path  []Token
		steps []Hop
		gas   decimal.Decimal
	)
	if p.SourceLeg != nil {
		path = append(path, p.SourceLeg.Path...)
		steps = append(steps, p.SourceLeg.Steps...)
		gas = gas.Add(p.SourceLeg.EstimatedGasUSD)
	} else {
		path = append(path, p.Bridge.InputToken)
	}
	path = append(path, p.Bridge.OutputToken)
	steps = append(steps, Hop{
		VenueID:    "bridge:" + p.Bridge.ProviderID,
		FromToken:  p.Bridge.InputToken,
		ToToken:    p.Bridge.OutputToken,
		FromAmount: p.Bridge.InputAmount,
		ToAmount:   p.Bridge.OutputAmount,
	})
	if p.DestLeg != nil {
		path = append(path, p.DestLeg.Path[1:]...)
		steps = append(steps, p.DestLeg.Steps...)
		gas = gas.Add(p.DestLeg.EstimatedGasUSD)
	}
	expires := p.Bridge.ExpiresAt
	for _, leg := range []*Route{p.SourceLeg, p.DestLeg} {
		if leg != nil && !leg.ExpiresAt.IsZero() && leg.ExpiresAt.Before(expires) {
			expires = leg.ExpiresAt
		}
	}
	needsUnwrap := p.DestLeg != nil && p.DestLeg.NeedsUnwrap
	return &Route{
		Path:            path,
		Steps:           steps,
		SourceLabel:     sourceLabel,
		OutputAmount:    p.FinalOutput(),
		EstimatedGasUSD: gas.Add(p.Bridge.FeeUSD),
		SlippageBps:     slippageBps,
		NeedsUnwrap:     needsUnwrap,
		ExpiresAt:       expires,
	}
}
