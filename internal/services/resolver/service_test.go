package resolver

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services"
	"github.com/swapmesh/route-resolver/internal/services/aggregator"
	"github.com/swapmesh/route-resolver/internal/services/bridge"
	"github.com/swapmesh/route-resolver/internal/services/liquidity"
	"github.com/swapmesh/route-resolver/internal/services/slippage"
)

func validReq() *domain.SwapRequest {
	return &domain.SwapRequest{
		FromToken:    domain.Token{ChainID: 1, Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6, Symbol: "USDC"},
		ToToken:      domain.Token{ChainID: 1, Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Decimals: 18, Symbol: "WETH"},
		AmountIn:     big.NewInt(1_000_000),
		SlippageMode: domain.SlippageModeAuto,
	}
}

func TestValidateRequest(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*domain.SwapRequest)
		wantErr string
	}{
		{"valid auto", func(r *domain.SwapRequest) {}, ""},
		{"valid fixed", func(r *domain.SwapRequest) {
			r.SlippageMode = domain.SlippageModeFixed
			r.SlippageBps = 100
		}, ""},
		{"nil amount", func(r *domain.SwapRequest) { r.AmountIn = nil }, "amountIn"},
		{"zero amount", func(r *domain.SwapRequest) { r.AmountIn = big.NewInt(0) }, "amountIn"},
		{"negative amount", func(r *domain.SwapRequest) { r.AmountIn = big.NewInt(-5) }, "amountIn"},
		{"missing chain id", func(r *domain.SwapRequest) { r.FromToken.ChainID = 0 }, "chain id"},
		{"same token", func(r *domain.SwapRequest) { r.ToToken = r.FromToken }, "identical"},
		{"auto with explicit bps", func(r *domain.SwapRequest) { r.SlippageBps = 50 }, "omitted in auto mode"},
		{"fixed without bps", func(r *domain.SwapRequest) { r.SlippageMode = domain.SlippageModeFixed }, "requires slippageBps"},
		{"unknown mode", func(r *domain.SwapRequest) { r.SlippageMode = "moderate" }, "unknown slippage mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validReq()
			tc.mutate(req)
			err := validateRequest(req)
			if tc.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestIsCrossChain(t *testing.T) {
	req := validReq()
	require.False(t, req.IsCrossChain())
	req.ToToken.ChainID = 137
	require.True(t, req.IsCrossChain())
}

// scriptedSource is a canned aggregator source counting its invocations.
type scriptedSource struct {
	calls  int
	routes []*domain.Route
	err    error
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Budget() time.Duration { return time.Second }

func (s *scriptedSource) ProduceCandidates(_ context.Context, _ *domain.SwapRequest, _ uint32) ([]*domain.Route, error) {
	s.calls++
	return s.routes, s.err
}

type emptyPairs struct{}

func (emptyPairs) GetPairsForToken(context.Context, domain.ChainID, domain.Address) ([]domain.Edge, error) {
	return nil, nil
}

func quotedRoute(req *domain.SwapRequest, out int64) *domain.Route {
	return &domain.Route{
		Path: []domain.Token{req.FromToken, req.ToToken},
		Steps: []domain.Hop{{
			VenueID:    "uniswap-v2",
			FromToken:  req.FromToken,
			ToToken:    req.ToToken,
			FromAmount: req.AmountIn,
			ToAmount:   big.NewInt(out),
		}},
		SourceLabel:  "scripted",
		OutputAmount: big.NewInt(out),
		ExpiresAt:    time.Now().Add(time.Minute),
	}
}

func newFixedModeService(src aggregator.CandidateSource) *Service {
	agg := aggregator.NewService(decimal.NewFromFloat(0.15), time.Second)
	agg.RegisterSource(src)
	ctrl := &slippage.Controller{}
	ctrl.SetPolicy(slippage.DefaultPolicy(3050, 2, 3))
	registry := config.NewRegistryFromEntries([]config.ChainEntry{{
		ID:            1,
		Name:          "ethereum",
		WrappedNative: config.TokenEntry{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Decimals: 18},
		Venues:        []config.VenueEntry{{ID: "uniswap-v2", Router: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", FeeBps: 30}},
	}}, nil)
	return &Service{
		logger:          services.NewComponentLogger("resolver-test"),
		registry:        registry,
		oracle:          liquidity.NewOracle(emptyPairs{}, time.Minute, decimal.NewFromInt(1000), time.Second),
		aggregator:      agg,
		slippage:        ctrl,
		requestDeadline: 2 * time.Second,
	}
}

type stubBridgeProvider struct {
	quote *domain.BridgeQuote
}

func (p *stubBridgeProvider) ID() string { return "hopline" }

func (p *stubBridgeProvider) Quote(_ context.Context, fromChain, toChain domain.ChainID, _ domain.Token, amount *big.Int) (*domain.BridgeQuote, error) {
	q := *p.quote
	q.ProviderID = p.ID()
	q.FromChain = fromChain
	q.ToChain = toChain
	q.InputAmount = amount
	return &q, nil
}

// A cross-chain resolution flattens the plan under the bridge
// selector's label and applies the conservative auto-slippage bucket.
func TestResolveCrossChainFlattens(t *testing.T) {
	const (
		ethUSDC  = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
		polyUSDC = "0x2791bca1f2de4661ed88a30c99a7a9449aa84174"
	)
	registry := config.NewRegistryFromEntries([]config.ChainEntry{
		{
			ID:             1,
			Name:           "ethereum",
			WrappedNative:  config.TokenEntry{Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Symbol: "WETH", Decimals: 18},
			Intermediaries: []config.TokenEntry{{Address: ethUSDC, Symbol: "USDC", Decimals: 6, Class: config.ClassStablecoin}},
			Venues:         []config.VenueEntry{{ID: "uniswap-v2", Router: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d", FeeBps: 30}},
			Bridgeable:     []string{"USDC"},
		},
		{
			ID:             137,
			Name:           "polygon",
			WrappedNative:  config.TokenEntry{Address: "0x0d500b1d8e8ef31e21c99d1db9a6444d3adf1270", Symbol: "WPOL", Decimals: 18},
			Intermediaries: []config.TokenEntry{{Address: polyUSDC, Symbol: "USDC", Decimals: 6, Class: config.ClassStablecoin}},
			Venues:         []config.VenueEntry{{ID: "quickswap", Router: "0xa5e0829caced8ffdd4de3c43696c57f7d7a678ff", FeeBps: 30}},
			Bridgeable:     []string{"USDC"},
		},
	}, nil)

	sel := bridge.NewSelector(registry, time.Second)
	sel.RegisterProvider(&stubBridgeProvider{quote: &domain.BridgeQuote{
		OutputAmount: big.NewInt(997_000000),
		FeeUSD:       decimal.NewFromInt(2),
		ETASeconds:   120,
		ExpiresAt:    time.Now().Add(time.Minute),
	}})

	ctrl := &slippage.Controller{}
	ctrl.SetPolicy(slippage.DefaultPolicy(3050, 2, 3))
	svc := &Service{
		logger:          services.NewComponentLogger("resolver-test"),
		registry:        registry,
		oracle:          liquidity.NewOracle(emptyPairs{}, time.Minute, decimal.NewFromInt(1000), time.Second),
		bridges:         sel,
		slippage:        ctrl,
		requestDeadline: 2 * time.Second,
	}

	req := &domain.SwapRequest{
		FromToken:    domain.Token{ChainID: 1, Address: ethUSDC, Decimals: 6, Symbol: "USDC"},
		ToToken:      domain.Token{ChainID: 137, Address: polyUSDC, Decimals: 6, Symbol: "USDC"},
		AmountIn:     big.NewInt(1_000_000000),
		SlippageMode: domain.SlippageModeAuto,
	}
	resp, err := svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp.CrossChainPlan)
	require.Equal(t, uint32(500), resp.AppliedSlippageBps, "auto mode starts at the conservative bucket")
	require.Equal(t, bridge.SourceLabel, resp.Route.SourceLabel)
	require.Equal(t, "bridge:hopline", resp.Route.Steps[0].VenueID)
	require.Equal(t, big.NewInt(997_000000), resp.Route.OutputAmount)
}

// The dry run never sees a flattened cross-chain route: only the
// source leg is simulatable, and a bridge-only plan has no target.
func TestSimulationTarget(t *testing.T) {
	sameChain := &domain.SwapResponse{Route: &domain.Route{SourceLabel: "route-finder"}}
	require.Equal(t, sameChain.Route, simulationTarget(sameChain))

	leg := &domain.Route{SourceLabel: "route-finder"}
	withLeg := &domain.SwapResponse{
		CrossChainPlan: &domain.CrossChainPlan{SourceLeg: leg},
		Route:          &domain.Route{SourceLabel: bridge.SourceLabel},
	}
	require.Equal(t, leg, simulationTarget(withLeg))

	bridgeOnly := &domain.SwapResponse{
		CrossChainPlan: &domain.CrossChainPlan{},
		Route:          &domain.Route{SourceLabel: bridge.SourceLabel},
	}
	require.Nil(t, simulationTarget(bridgeOnly))
}

// Fixed mode quotes exactly once at the caller's tolerance; no
// escalation loop runs.
func TestResolveFixedModeSingleQuote(t *testing.T) {
	req := validReq()
	req.SlippageMode = domain.SlippageModeFixed
	req.SlippageBps = 250

	src := &scriptedSource{routes: []*domain.Route{quotedRoute(req, 990)}}
	svc := newFixedModeService(src)

	resp, err := svc.Resolve(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 1, src.calls, "fixed mode never re-quotes")
	require.Equal(t, uint32(250), resp.AppliedSlippageBps)
	require.Equal(t, uint32(250), resp.Route.SlippageBps)
	require.Equal(t, big.NewInt(990), resp.Route.OutputAmount)
}

// A fixed tolerance below the auto-mode starting bucket gets a hint to
// raise it instead of a bare not-found.
func TestResolveFixedModeTightToleranceHint(t *testing.T) {
	req := validReq()
	req.SlippageMode = domain.SlippageModeFixed
	req.SlippageBps = 100

	src := &scriptedSource{err: errors.New("no pool")}
	svc := newFixedModeService(src)

	_, err := svc.Resolve(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, common.KindNoRouteFound, common.KindOf(err))
	require.Contains(t, err.Error(), "auto mode would start at 500 bps")
}

// At or above the suggested bucket the failure is reported as missing
// liquidity, not tolerance.
func TestResolveFixedModeNoLiquidity(t *testing.T) {
	req := validReq()
	req.SlippageMode = domain.SlippageModeFixed
	req.SlippageBps = 3000

	src := &scriptedSource{err: errors.New("no pool")}
	svc := newFixedModeService(src)

	_, err := svc.Resolve(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, common.KindNoLiquidityFound, common.KindOf(err))
	require.Contains(t, err.Error(), "usable liquidity")
}

// Failures other than not-found pass through the fixed-mode rewrite
// untouched.
func TestResolveFixedModeKeepsOtherKinds(t *testing.T) {
	req := validReq()
	req.SlippageMode = domain.SlippageModeFixed
	req.SlippageBps = 100

	src := &scriptedSource{err: context.DeadlineExceeded}
	svc := newFixedModeService(src)

	_, err := svc.Resolve(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, common.KindUpstreamTimeout, common.KindOf(err))
}
