// Package resolver orchestrates a swap resolution end to end: route
// discovery, quote aggregation, slippage policy and optional
// pre-submission simulation, for same-chain and cross-chain requests.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
	"github.com/swapmesh/route-resolver/internal/services/aggregator"
	"github.com/swapmesh/route-resolver/internal/services/bridge"
	"github.com/swapmesh/route-resolver/internal/services/liquidity"
	"github.com/swapmesh/route-resolver/internal/services/routefinder"
	"github.com/swapmesh/route-resolver/internal/services/simulation"
	"github.com/swapmesh/route-resolver/internal/services/slippage"
)

const RESOLVER_SERVICE = "route-resolver"

type Service struct {
	container.BaseDIInstance

	logger     *services.ServiceLogger
	registry   *config.Registry
	oracle     *liquidity.Oracle
	finder     *routefinder.Finder
	aggregator *aggregator.Service
	bridges    *bridge.Selector
	slippage   *slippage.Controller
	validator  *simulation.Validator

	requestDeadline time.Duration
}

func (s *Service) ID() string {
	return RESOLVER_SERVICE
}

func (s *Service) Configure(c container.IContainer) error {
	s.logger = services.NewServiceLogger(s)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	s.registry = c.GetConfig(config.REGISTRY_CONFIG_KEY).(*config.Registry)
	s.requestDeadline = conf.RequestDeadline

	s.oracle = c.Instance(liquidity.ORACLE_SERVICE).(*liquidity.Oracle)
	s.finder = c.Instance(routefinder.FINDER_SERVICE).(*routefinder.Finder)
	s.aggregator = c.Instance(aggregator.AGGREGATOR_SERVICE).(*aggregator.Service)
	s.bridges = c.Instance(bridge.SELECTOR_SERVICE).(*bridge.Selector)
	s.slippage = c.Instance(slippage.CONTROLLER_SERVICE).(*slippage.Controller)
	s.validator = c.Instance(simulation.VALIDATOR_SERVICE).(*simulation.Validator)

	s.aggregator.RegisterSource(&finderSource{finder: s.finder, budget: conf.RequestDeadline / 2})
	return nil
}

// Resolve turns a swap request into an executable plan. The whole
// resolution runs under a single deadline so a slow upstream cannot
// hold the caller past the request budget.
func (s *Service) Resolve(ctx context.Context, req *domain.SwapRequest) (*domain.SwapResponse, error) {
	if err := validateRequest(req); err != nil {
		metrics.ResolveRequests.WithLabelValues(string(req.SlippageMode), "invalid").Inc()
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestDeadline)
	defer cancel()

	requestID := uuid.NewString()
	log := s.logger.WithRequest(requestID)
	start := time.Now()
	log.Info().
		Str("from", string(req.FromToken.Address)).
		Str("to", string(req.ToToken.Address)).
		Str("amount_in", req.AmountIn.String()).
		Str("mode", string(req.SlippageMode)).
		Bool("cross_chain", req.IsCrossChain()).
		Msg("resolving swap")

	var (
		resp *domain.SwapResponse
		err  error
	)
	if req.IsCrossChain() {
		resp, err = s.resolveCrossChain(ctx, req)
	} else {
		resp, err = s.resolveSameChain(ctx, req)
	}
	metrics.ResolveDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ResolveRequests.WithLabelValues(string(req.SlippageMode), "error").Inc()
		log.Warn().Err(err).Dur("elapsed", time.Since(start)).Msg("resolution failed")
		return nil, err
	}
	metrics.ResolveRequests.WithLabelValues(string(req.SlippageMode), "ok").Inc()
	log.Info().
		Dur("elapsed", time.Since(start)).
		Uint32("slippage_bps", resp.AppliedSlippageBps).
		Msg("resolution complete")

	if req.RecipientAddress != "" {
		if target := simulationTarget(resp); target != nil {
			simStart := time.Now()
			sim, simErr := s.validator.Simulate(ctx, target, req.RecipientAddress)
			metrics.ResolveDuration.WithLabelValues("simulate").Observe(time.Since(simStart).Seconds())
			if simErr != nil {
				log.Warn().Err(simErr).Msg("simulation unavailable, returning route unvalidated")
			} else {
				resp.Simulation = sim
			}
		}
	}
	return resp, nil
}

// simulationTarget picks what the dry run can actually exercise. A
// flattened cross-chain route contains a bridge hop no venue router
// understands, so only its source leg is simulatable; a bridge-only
// plan has nothing to dry-run at all.
func simulationTarget(resp *domain.SwapResponse) *domain.Route {
	if resp.CrossChainPlan != nil {
		return resp.CrossChainPlan.SourceLeg
	}
	return resp.Route
}

func (s *Service) resolveSameChain(ctx context.Context, req *domain.SwapRequest) (*domain.SwapResponse, error) {
	quote := func(ctx context.Context, req *domain.SwapRequest, slippageBps uint32) (*domain.Route, error) {
		start := time.Now()
		routes, err := s.aggregator.Aggregate(ctx, req, slippageBps, nil)
		metrics.ResolveDuration.WithLabelValues("aggregate").Observe(time.Since(start).Seconds())
		if err != nil {
			return nil, err
		}
		return routes[0], nil
	}

	if req.SlippageMode == domain.SlippageModeFixed {
		route, err := quote(ctx, req, req.SlippageBps)
		if err != nil {
			return nil, s.fixedModeError(ctx, req, err)
		}
		return &domain.SwapResponse{
			Route:              route,
			AppliedSlippageBps: req.SlippageBps,
			ExpiresAt:          route.ExpiresAt,
		}, nil
	}

	liquidityUSD := s.pairLiquidity(ctx, req)
	outcome, err := s.slippage.Resolve(ctx, req, liquidityUSD, quote)
	if err != nil {
		return nil, err
	}
	return &domain.SwapResponse{
		Route:              outcome.Route,
		AppliedSlippageBps: outcome.AppliedSlippageBps,
		ExpiresAt:          outcome.Route.ExpiresAt,
	}, nil
}

func (s *Service) resolveCrossChain(ctx context.Context, req *domain.SwapRequest) (*domain.SwapResponse, error) {
	slippageBps := req.SlippageBps
	if req.SlippageMode == domain.SlippageModeAuto {
		// Per-leg liquidity is unknown until the source leg is chosen,
		// so the conservative bucket applies.
		slippageBps = s.slippage.Policy().InitialSlippage(decimal.Zero)
	}

	start := time.Now()
	plan, err := s.bridges.BuildPlan(ctx, req.FromToken.ChainID, req.FromToken, req.ToToken.ChainID, req.ToToken, req.AmountIn, slippageBps)
	metrics.ResolveDuration.WithLabelValues("bridge").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	flat := plan.Flatten(bridge.SourceLabel, slippageBps)
	return &domain.SwapResponse{
		CrossChainPlan:     plan,
		Route:              flat,
		AppliedSlippageBps: slippageBps,
		ExpiresAt:          flat.ExpiresAt,
	}, nil
}

// fixedModeError rewrites a fixed-mode failure so the caller can tell
// "no liquidity exists" apart from "your tolerance is likely too tight".
func (s *Service) fixedModeError(ctx context.Context, req *domain.SwapRequest, err error) error {
	kind := common.KindOf(err)
	if kind != common.KindNoRouteFound {
		return err
	}
	suggested := s.slippage.Policy().InitialSlippage(s.pairLiquidity(ctx, req))
	if req.SlippageBps < suggested {
		return common.NewResolveError(common.KindNoRouteFound,
			"no route found at %d bps; auto mode would start at %d bps, consider switching or raising tolerance",
			req.SlippageBps, suggested)
	}
	return common.NewResolveError(common.KindNoLiquidityFound,
		"no venue holds usable liquidity for %s -> %s", req.FromToken.Address, req.ToToken.Address)
}

func (s *Service) pairLiquidity(ctx context.Context, req *domain.SwapRequest) decimal.Decimal {
	from := req.FromToken.Address
	to := req.ToToken.Address
	if req.FromToken.IsNative() || req.ToToken.IsNative() {
		if wrapped, ok := s.registry.WrappedNative(req.FromToken.ChainID); ok {
			if req.FromToken.IsNative() {
				from = wrapped.Address
			}
			if req.ToToken.IsNative() {
				to = wrapped.Address
			}
		}
	}
	return s.oracle.PairLiquidityUSD(ctx, req.FromToken.ChainID, from, to)
}

// Chains lists the configured chains for discovery endpoints.
func (s *Service) Chains() []*config.ChainEntry {
	out := make([]*config.ChainEntry, 0)
	for _, id := range s.registry.ChainIDs() {
		if c, ok := s.registry.Chain(id); ok {
			out = append(out, c)
		}
	}
	return out
}

// SimulateRoute runs only the pre-submission dry run for a route the
// caller already holds.
func (s *Service) SimulateRoute(ctx context.Context, route *domain.Route, signer domain.Address) (*domain.SimulationResult, error) {
	if route.Expired(time.Now()) {
		return nil, common.NewResolveError(common.KindQuoteExpired, "route expired at %s", route.ExpiresAt.Format(time.RFC3339))
	}
	if err := route.Validate(); err != nil {
		return nil, common.WrapResolveError(common.KindSimulationFailed, err, "route is not executable")
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestDeadline)
	defer cancel()
	return s.validator.Simulate(ctx, route, signer)
}

func validateRequest(req *domain.SwapRequest) error {
	if req.AmountIn == nil || req.AmountIn.Sign() <= 0 {
		return fmt.Errorf("amountIn must be positive")
	}
	if req.FromToken.ChainID == 0 || req.ToToken.ChainID == 0 {
		return fmt.Errorf("both tokens must carry a chain id")
	}
	if req.FromToken.Equal(req.ToToken) {
		return fmt.Errorf("fromToken and toToken are identical")
	}
	switch req.SlippageMode {
	case domain.SlippageModeAuto:
		if req.SlippageBps != 0 {
			return fmt.Errorf("slippageBps must be omitted in auto mode")
		}
	case domain.SlippageModeFixed:
		if req.SlippageBps == 0 {
			return fmt.Errorf("fixed mode requires slippageBps")
		}
	default:
		return fmt.Errorf("unknown slippage mode %q", req.SlippageMode)
	}
	return nil
}

// finderSource adapts the route finder to the aggregator's source
// contract. Discovery gets half the request deadline so other sources
// and scoring keep headroom.
type finderSource struct {
	finder *routefinder.Finder
	budget time.Duration
}

func (f *finderSource) Name() string { return routefinder.SourceLabel }

func (f *finderSource) Budget() time.Duration { return f.budget }

func (f *finderSource) ProduceCandidates(ctx context.Context, req *domain.SwapRequest, slippageBps uint32) ([]*domain.Route, error) {
	start := time.Now()
	route, err := f.finder.FindRoute(ctx, req.FromToken.ChainID, req.FromToken, req.ToToken, req.AmountIn, req.MaxHops)
	metrics.ResolveDuration.WithLabelValues("discover").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	route.SlippageBps = slippageBps
	return []*domain.Route{route}, nil
}
