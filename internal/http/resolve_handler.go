package http

import (
	"fmt"
	"math/big"

	"github.com/gin-gonic/gin"

	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/http/httputil"
	"github.com/swapmesh/route-resolver/internal/services/resolver"
	"github.com/swapmesh/route-resolver/internal/services/routefinder"
)

type ResolveHandler struct {
	resolverSvc *resolver.Service
}

func NewResolveHandler(resolverSvc *resolver.Service) *ResolveHandler {
	return &ResolveHandler{resolverSvc: resolverSvc}
}

func (h *ResolveHandler) Root() string {
	return "/resolve"
}

func (h *ResolveHandler) SetRoutes(pub *gin.RouterGroup, private *gin.RouterGroup, admin *gin.RouterGroup) {
	pub.POST("", h.resolve)
	pub.POST("/simulate", h.simulate)
}

// ResolveRequest represents the parameters for a swap resolution
type ResolveRequest struct {
	// Source chain ID
	FromChain uint64 `json:"fromChain" binding:"required" example:"1"`

	// Input token contract address; the zero address means the chain's
	// native coin
	FromToken string `json:"fromToken" binding:"required" example:"0x0000000000000000000000000000000000000000"`

	// Input token decimals (native coins use 18)
	FromDecimals uint8 `json:"fromDecimals" example:"18"`

	// Destination chain ID; differs from fromChain for cross-chain swaps
	ToChain uint64 `json:"toChain" binding:"required" example:"1"`

	// Output token contract address
	ToToken string `json:"toToken" binding:"required" example:"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"`

	// Output token decimals
	ToDecimals uint8 `json:"toDecimals" example:"6"`

	// Amount in the input token's smallest units
	AmountIn string `json:"amountIn" binding:"required" example:"1000000000000000000"`

	// Slippage handling:
	// - "auto": the engine picks and escalates tolerance from liquidity depth
	// - "fixed": slippageBps is used as-is, no escalation
	SlippageMode string `json:"slippageMode" enums:"auto,fixed" example:"auto"`

	// Slippage tolerance in basis points; required in fixed mode,
	// forbidden in auto mode
	SlippageBps uint32 `json:"slippageBps,omitempty" example:"50"`

	// Maximum swap hops to consider (default 3)
	MaxHops int `json:"maxHops,omitempty" example:"3"`

	// Signer address; when present the plan is simulated before returning
	Recipient string `json:"recipient,omitempty" example:"0x7bdef2a2d194bcd76e7fe1e09bb36f88f2d86d05"`
}

// HopInfo describes a single step of the resolved route
type HopInfo struct {
	// Venue the step executes on; "unwrap" and "bridge:<provider>" steps
	// are not venue swaps
	VenueID string `json:"venueId" example:"quickswap"`

	FromToken string `json:"fromToken" example:"0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270"`
	ToToken   string `json:"toToken" example:"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"`

	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"145320000"`
}

// ResolveResponse contains the executable plan for the caller to sign
type ResolveResponse struct {
	// Complete token path from input to output
	RoutePath []string `json:"routePath"`

	// Per-step breakdown, including unwrap and bridge steps
	Hops []HopInfo `json:"hops"`

	// Number of venue swaps (unwrap and bridge steps excluded)
	HopCount int `json:"hopCount" example:"2"`

	AmountIn  string `json:"amountIn" example:"1000000000000000000"`
	AmountOut string `json:"amountOut" example:"145320000"`

	// Minimum acceptable output after applying the slippage tolerance
	OtherAmountThreshold string `json:"otherAmountThreshold" example:"144593400"`

	// Price impact in basis points with severity classification
	PriceImpactBps      uint16 `json:"priceImpactBps" example:"25"`
	PriceImpactSeverity string `json:"priceImpactSeverity" enums:"none,low,moderate,high,extreme" example:"low"`
	PriceImpactWarning  string `json:"priceImpactWarning,omitempty"`

	// Tolerance the engine settled on, in basis points
	AppliedSlippageBps uint32 `json:"appliedSlippageBps" example:"100"`

	// True when the final step unwraps to the native coin
	NeedsUnwrap bool `json:"needsUnwrap"`

	// Present for cross-chain swaps
	CrossChainPlan *domain.CrossChainPlan `json:"crossChainPlan,omitempty"`

	// Present when a recipient was supplied
	Simulation *domain.SimulationResult `json:"simulation,omitempty"`

	// RFC 3339 instant after which the plan must not be submitted
	ExpiresAt string `json:"expiresAt" example:"2025-01-01T00:01:00Z"`
}

// resolve godoc
// @Summary      Resolve a swap route
// @Description  Finds, verifies and prices the best route for a swap, applying the slippage policy and optionally simulating the call.
// @Tags         resolve
// @Accept       json
// @Produce      json
// @Param        request  body      ResolveRequest  true  "Swap parameters"
// @Success      200      {object}  httputil.Response{data=ResolveResponse}
// @Failure      400      {object}  httputil.Response
// @Failure      404      {object}  httputil.Response
// @Failure      422      {object}  httputil.Response
// @Router       /resolve [post]
func (h *ResolveHandler) resolve(c *gin.Context) {
	req, ok := h.parseResolveRequest(c)
	if !ok {
		return
	}

	resp, err := h.resolverSvc.Resolve(c.Request.Context(), req)
	if err != nil {
		httputil.ResolveFailure(c, err)
		return
	}
	httputil.Success(c, buildResolveResponse(resp))
}

// SimulateRequest asks for a dry run of a previously resolved route
type SimulateRequest struct {
	Route  domain.Route `json:"route" binding:"required"`
	Signer string       `json:"signer" binding:"required" example:"0x7bdef2a2d194bcd76e7fe1e09bb36f88f2d86d05"`
}

// simulate godoc
// @Summary      Simulate a resolved route
// @Description  Re-runs balance and allowance preflight plus the on-chain dry run for a route the caller already holds.
// @Tags         resolve
// @Accept       json
// @Produce      json
// @Param        request  body      SimulateRequest  true  "Route and signer"
// @Success      200      {object}  httputil.Response{data=domain.SimulationResult}
// @Failure      400      {object}  httputil.Response
// @Failure      422      {object}  httputil.Response
// @Router       /resolve/simulate [post]
func (h *ResolveHandler) simulate(c *gin.Context) {
	var req SimulateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	signer := domain.NormalizeAddress(req.Signer)
	result, err := h.resolverSvc.SimulateRoute(c.Request.Context(), &req.Route, signer)
	if err != nil {
		httputil.ResolveFailure(c, err)
		return
	}
	httputil.Success(c, result)
}

func (h *ResolveHandler) parseResolveRequest(c *gin.Context) (*domain.SwapRequest, bool) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body: "+err.Error())
		return nil, false
	}

	amount, ok := new(big.Int).SetString(req.AmountIn, 10)
	if !ok || amount.Sign() <= 0 {
		httputil.BadRequest(c, "invalid amountIn: must be a positive integer")
		return nil, false
	}

	mode := domain.SlippageMode(req.SlippageMode)
	if mode == "" {
		mode = domain.SlippageModeAuto
	}
	switch mode {
	case domain.SlippageModeAuto:
		if req.SlippageBps != 0 {
			httputil.BadRequest(c, "slippageBps must be omitted in auto mode")
			return nil, false
		}
	case domain.SlippageModeFixed:
		if req.SlippageBps == 0 {
			httputil.BadRequest(c, "fixed mode requires slippageBps")
			return nil, false
		}
	default:
		httputil.BadRequest(c, "invalid slippageMode: must be auto or fixed")
		return nil, false
	}

	fromDecimals := req.FromDecimals
	if fromDecimals == 0 {
		fromDecimals = 18
	}
	toDecimals := req.ToDecimals
	if toDecimals == 0 {
		toDecimals = 18
	}

	return &domain.SwapRequest{
		FromToken: domain.Token{
			ChainID:  domain.ChainID(req.FromChain),
			Address:  domain.NormalizeAddress(req.FromToken),
			Decimals: fromDecimals,
		},
		ToToken: domain.Token{
			ChainID:  domain.ChainID(req.ToChain),
			Address:  domain.NormalizeAddress(req.ToToken),
			Decimals: toDecimals,
		},
		AmountIn:         amount,
		SlippageMode:     mode,
		SlippageBps:      req.SlippageBps,
		MaxHops:          req.MaxHops,
		RecipientAddress: domain.NormalizeAddress(req.Recipient),
	}, true
}

func buildResolveResponse(resp *domain.SwapResponse) ResolveResponse {
	route := resp.Route

	path := make([]string, 0, len(route.Path))
	for _, t := range route.Path {
		path = append(path, fmt.Sprintf("%s:%s", t.ChainID.String(), t.Address))
	}
	hops := make([]HopInfo, 0, len(route.Steps))
	for _, s := range route.Steps {
		hops = append(hops, HopInfo{
			VenueID:   s.VenueID,
			FromToken: string(s.FromToken.Address),
			ToToken:   string(s.ToToken.Address),
			AmountIn:  s.FromAmount.String(),
			AmountOut: s.ToAmount.String(),
		})
	}

	return ResolveResponse{
		RoutePath:            path,
		Hops:                 hops,
		HopCount:             route.HopCount(),
		AmountIn:             route.InputAmount().String(),
		AmountOut:            route.OutputAmount.String(),
		OtherAmountThreshold: route.MinOutputAfterSlippage().String(),
		PriceImpactBps:       route.PriceImpactBps,
		PriceImpactSeverity:  string(routefinder.ImpactBandFor(route.PriceImpactBps)),
		PriceImpactWarning:   routefinder.ImpactCaution(route.PriceImpactBps),
		AppliedSlippageBps:   resp.AppliedSlippageBps,
		NeedsUnwrap:          route.NeedsUnwrap,
		CrossChainPlan:       resp.CrossChainPlan,
		Simulation:           resp.Simulation,
		ExpiresAt:            resp.ExpiresAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
