package domain

import (
	"math/big"
	"time"
)

type SlippageMode string

const (
	SlippageModeAuto  SlippageMode = "auto"
	SlippageModeFixed SlippageMode = "fixed"
)

// SwapRequest is the resolution request accepted from the UI collaborator.
type SwapRequest struct {
	FromToken        Token        `json:"fromToken"`
	ToToken          Token        `json:"toToken"`
	AmountIn         *big.Int     `json:"amountIn"`
	SlippageMode     SlippageMode `json:"slippageMode"`
	SlippageBps      uint32       `json:"slippageBps,omitempty"`
	MaxHops          int          `json:"maxHops,omitempty"`
	RecipientAddress Address      `json:"recipientAddress"`
}

func (r *SwapRequest) IsCrossChain() bool {
	return r.FromToken.ChainID != r.ToToken.ChainID
}

// SwapResponse is the resolved plan returned to the caller for signing.
// Route is always set; for cross-chain swaps it is the flattened view
// of CrossChainPlan, which is also included.
type SwapResponse struct {
	Route              *Route            `json:"route,omitempty"`
	CrossChainPlan     *CrossChainPlan   `json:"crossChainPlan,omitempty"`
	AppliedSlippageBps uint32            `json:"appliedSlippageBps"`
	Simulation         *SimulationResult `json:"simulation,omitempty"`
	ExpiresAt          time.Time         `json:"expiresAt"`
}

// SlippageAttempt records one iteration of the auto-slippage controller.
// The set of attempts for a request is discarded once a winner is chosen.
type SlippageAttempt struct {
	AttemptNumber int
	SlippageBps   uint32
	Route         *Route
	Failed        bool
	FailureReason string
}
