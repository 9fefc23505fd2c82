// Package routefinder constructs and verifies candidate swap paths on a
// single chain: direct, 2-hop and 3-hop through the intermediary
// catalog, with a guaranteed wrapped-native fallback.
package routefinder

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
	"github.com/swapmesh/route-resolver/internal/services/liquidity"
)

const FINDER_SERVICE = "route-finder"

const SourceLabel = "route-finder"

var errZeroOutput = errors.New("venue quoted zero output")

// QuoteProvider is the authoritative on-chain quote dependency. A
// revert/failure means the path is invalid and must be discarded, not
// retried.
type QuoteProvider interface {
	GetAmountsOut(ctx context.Context, chainID domain.ChainID, venueID string, path []domain.Address, amountIn *big.Int) (*big.Int, error)
}

// Finder resolves a single-chain route for a token pair. All registry
// data is injected immutable configuration; the finder holds no
// cross-request state.
type Finder struct {
	container.BaseDIInstance

	logger   *services.ServiceLogger
	oracle   *liquidity.Oracle
	quoter   QuoteProvider
	registry *config.Registry

	verifyWorkers  int
	readTimeout    time.Duration
	routeTTL       time.Duration
	defaultMaxHops int

	now func() time.Time
}

func (f *Finder) ID() string {
	return FINDER_SERVICE
}

func (f *Finder) Configure(c container.IContainer) error {
	f.logger = services.NewServiceLogger(f)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	f.registry = c.GetConfig(config.REGISTRY_CONFIG_KEY).(*config.Registry)
	f.oracle = c.Instance(liquidity.ORACLE_SERVICE).(*liquidity.Oracle)
	f.verifyWorkers = conf.VerifyWorkers
	f.readTimeout = conf.ReadTimeout
	f.routeTTL = conf.RouteTTL
	f.defaultMaxHops = conf.DefaultMaxHops
	f.now = time.Now
	return nil
}

// SetQuoter injects the on-chain quote client.
func (f *Finder) SetQuoter(q QuoteProvider) {
	f.quoter = q
}

// FindRoute resolves a route from -> to for amountIn, trying stages in
// fixed order: direct, 2-hop by catalog priority, 3-hop, then the
// wrapped-native fallback. Every returned route passed on-chain
// verification.
func (f *Finder) FindRoute(ctx context.Context, chainID domain.ChainID, from, to domain.Token, amountIn *big.Int, maxHops int) (*domain.Route, error) {
	if maxHops <= 0 {
		maxHops = f.defaultMaxHops
	}
	wrapped, ok := f.registry.WrappedNative(chainID)
	if !ok {
		return nil, common.NewResolveError(common.KindNoRouteFound, "chain %d is not configured", chainID)
	}

	// Native destinations are searched as their wrapped form and flagged
	// for an unwrap step appended after verification.
	needsUnwrap := false
	graphTo := to
	if to.IsNative() {
		graphTo = wrapped
		needsUnwrap = true
	}
	fromGraphAddr := from.Address
	if from.IsNative() {
		fromGraphAddr = wrapped.Address
	}
	if fromGraphAddr == graphTo.Address {
		return nil, common.NewResolveError(common.KindNoRouteFound, "from and to resolve to the same token %s", graphTo.Address)
	}

	evaluated := 0
	defer func() { metrics.CandidatesEvaluated.Observe(float64(evaluated)) }()

	// Stage 1: direct edge. Lowest hop count always wins, so a verified
	// direct route returns immediately.
	if edge, found, err := f.oracle.DirectEdge(ctx, chainID, fromGraphAddr, graphTo.Address); err == nil && found {
		evaluated++
		cand := &candidate{
			path:   []domain.Token{from, graphTo},
			venues: []string{edge.VenueID},
			edges:  []*domain.Edge{&edge},
		}
		if vc := firstVerified(f.verifyAll(ctx, chainID, []*candidate{cand}, amountIn)); vc != nil {
			return f.buildRoute(chainID, vc, to, needsUnwrap), nil
		}
	} else if err != nil {
		f.logger.Warn().Err(err).Msg("direct edge lookup failed, continuing with multi-hop")
	}

	// Counterparty sets feed both multi-hop stages.
	fromSet, err := f.oracle.UsableCounterparties(ctx, chainID, fromGraphAddr)
	if err != nil {
		fromSet = map[domain.Address]domain.Edge{}
	}
	toSet, err := f.oracle.UsableCounterparties(ctx, chainID, graphTo.Address)
	if err != nil {
		toSet = map[domain.Address]domain.Edge{}
	}
	catalog := f.registry.Intermediaries(chainID)

	// Stage 2: one intermediary, in catalog priority order. Candidates
	// are screened by local constant-product estimate before any
	// verification call is spent.
	if maxHops >= 2 {
		cands := f.preselect(chainID, f.twoHopCandidates(from, graphTo, fromGraphAddr, catalog, fromSet, toSet), amountIn)
		evaluated += len(cands)
		if vc := firstVerified(f.verifyAll(ctx, chainID, cands, amountIn)); vc != nil {
			return f.buildRoute(chainID, vc, to, needsUnwrap), nil
		}
	}

	// Stage 3: two chained intermediaries, screened the same way.
	if maxHops >= 3 {
		cands := f.preselect(chainID, f.threeHopCandidates(ctx, chainID, from, graphTo, fromGraphAddr, catalog, fromSet, toSet), amountIn)
		evaluated += len(cands)
		if vc := firstVerified(f.verifyAll(ctx, chainID, cands, amountIn)); vc != nil {
			return f.buildRoute(chainID, vc, to, needsUnwrap), nil
		}
	}

	// Guaranteed fallback: the wrapped-native path is attempted even when
	// the oracle reports the legs as thin or unknown, so a token with any
	// pool against the wrapped native is never reported as isolated.
	if cand := f.fallbackCandidate(chainID, from, graphTo, fromGraphAddr, wrapped, fromSet, toSet); cand != nil {
		evaluated++
		if vc := firstVerified(f.verifyAll(ctx, chainID, []*candidate{cand}, amountIn)); vc != nil {
			return f.buildRoute(chainID, vc, to, needsUnwrap), nil
		}
	}

	return nil, common.NewResolveError(common.KindNoRouteFound,
		"no verifiable path from %s to %s on chain %d within %d hops", from.Address, to.Address, chainID, maxHops)
}

func (f *Finder) twoHopCandidates(from, graphTo domain.Token, fromGraphAddr domain.Address, catalog []domain.Token, fromSet, toSet map[domain.Address]domain.Edge) []*candidate {
	var cands []*candidate
	for _, mid := range catalog {
		if mid.Address == fromGraphAddr || mid.Address == graphTo.Address {
			continue
		}
		e1, ok1 := fromSet[mid.Address]
		e2, ok2 := toSet[mid.Address]
		if !ok1 || !ok2 {
			continue
		}
		edge1, edge2 := e1, e2
		cands = append(cands, &candidate{
			path:   []domain.Token{from, mid, graphTo},
			venues: []string{edge1.VenueID, edge2.VenueID},
			edges:  []*domain.Edge{&edge1, &edge2},
		})
	}
	return cands
}

func (f *Finder) threeHopCandidates(ctx context.Context, chainID domain.ChainID, from, graphTo domain.Token, fromGraphAddr domain.Address, catalog []domain.Token, fromSet, toSet map[domain.Address]domain.Edge) []*candidate {
	var cands []*candidate
	for _, m1 := range catalog {
		if m1.Address == fromGraphAddr || m1.Address == graphTo.Address {
			continue
		}
		e1, ok := fromSet[m1.Address]
		if !ok {
			continue
		}
		for _, m2 := range catalog {
			if m2.Address == m1.Address || m2.Address == fromGraphAddr || m2.Address == graphTo.Address {
				continue
			}
			e3, ok := toSet[m2.Address]
			if !ok {
				continue
			}
			mid, found, err := f.oracle.DirectEdge(ctx, chainID, m1.Address, m2.Address)
			if err != nil || !found {
				continue
			}
			edge1, edgeMid, edge3 := e1, mid, e3
			cands = append(cands, &candidate{
				path:   []domain.Token{from, m1, m2, graphTo},
				venues: []string{edge1.VenueID, edgeMid.VenueID, edge3.VenueID},
				edges:  []*domain.Edge{&edge1, &edgeMid, &edge3},
			})
		}
	}
	return cands
}

// fallbackCandidate builds the always-attempted wrapped-native path.
// Legs with a known edge use that venue; unknown legs use the chain's
// default venue and let on-chain verification decide.
func (f *Finder) fallbackCandidate(chainID domain.ChainID, from, graphTo domain.Token, fromGraphAddr domain.Address, wrapped domain.Token, fromSet, toSet map[domain.Address]domain.Edge) *candidate {
	if wrapped.Address == fromGraphAddr || wrapped.Address == graphTo.Address {
		return nil
	}
	def, ok := f.registry.DefaultVenue(chainID)
	if !ok {
		return nil
	}
	venue1, venue2 := def.ID, def.ID
	var edge1, edge2 *domain.Edge
	if e, ok := fromSet[wrapped.Address]; ok {
		e := e
		venue1, edge1 = e.VenueID, &e
	}
	if e, ok := toSet[wrapped.Address]; ok {
		e := e
		venue2, edge2 = e.VenueID, &e
	}
	return &candidate{
		path:   []domain.Token{from, wrapped, graphTo},
		venues: []string{venue1, venue2},
		edges:  []*domain.Edge{edge1, edge2},
	}
}

func (f *Finder) buildRoute(chainID domain.ChainID, vc *verifiedCandidate, to domain.Token, needsUnwrap bool) *domain.Route {
	path := vc.cand.path
	steps := vc.hops
	if needsUnwrap {
		// The path terminates at the wrapped token; the unwrap hop
		// carries the native destination and converts 1:1.
		wrappedEnd := path[len(path)-1]
		steps = append(steps, domain.Hop{
			VenueID:    domain.UnwrapVenueID,
			FromToken:  wrappedEnd,
			ToToken:    to,
			FromAmount: vc.output,
			ToAmount:   vc.output,
		})
	}
	gas := decimal.NewFromFloat(f.registry.GasPerSwapUSD(chainID)).
		Mul(decimal.NewFromInt(int64(len(vc.hops))))
	return &domain.Route{
		Path:            path,
		Steps:           steps,
		SourceLabel:     SourceLabel,
		OutputAmount:    vc.output,
		PriceImpactBps:  vc.impactBps,
		EstimatedGasUSD: gas,
		NeedsUnwrap:     needsUnwrap,
		ExpiresAt:       f.now().Add(f.routeTTL),
	}
}

// callAddress maps the native sentinel to the chain's wrapped token for
// venue calls; all other tokens pass through.
func (f *Finder) callAddress(t domain.Token) domain.Address {
	if !t.IsNative() {
		return t.Address
	}
	if wrapped, ok := f.registry.WrappedNative(t.ChainID); ok {
		return wrapped.Address
	}
	return t.Address
}
