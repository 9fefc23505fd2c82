// Package bridge composes cross-chain swap plans: source-chain swap,
// bridge transfer, destination-chain swap. Plans are all-or-nothing.
package bridge

import (
	"context"
	"math/big"
	"sort"
	"time"

	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
	"github.com/swapmesh/route-resolver/internal/services/routefinder"
)

const SELECTOR_SERVICE = "bridge-selector"

// SourceLabel marks routes flattened out of a cross-chain plan.
const SourceLabel = "bridge-selector"

// Provider is one bridge provider. A nil quote with nil error means the
// provider has no offer for this tuple ("unavailable"), which is a
// valid response.
type Provider interface {
	ID() string
	Quote(ctx context.Context, fromChain, toChain domain.ChainID, token domain.Token, amount *big.Int) (*domain.BridgeQuote, error)
}

// RouteFinder resolves a single-chain leg. Satisfied by the route
// finder service.
type RouteFinder interface {
	FindRoute(ctx context.Context, chainID domain.ChainID, from, to domain.Token, amountIn *big.Int, maxHops int) (*domain.Route, error)
}

type Selector struct {
	container.BaseDIInstance

	logger    *services.ServiceLogger
	registry  *config.Registry
	finder    RouteFinder
	providers []Provider

	bridgeTimeout time.Duration
}

func (s *Selector) ID() string {
	return SELECTOR_SERVICE
}

func (s *Selector) Configure(c container.IContainer) error {
	s.logger = services.NewServiceLogger(s)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	s.registry = c.GetConfig(config.REGISTRY_CONFIG_KEY).(*config.Registry)
	s.finder = c.Instance(routefinder.FINDER_SERVICE).(*routefinder.Finder)
	s.bridgeTimeout = conf.BridgeTimeout
	return nil
}

// NewSelector builds a selector outside the DI container.
func NewSelector(registry *config.Registry, bridgeTimeout time.Duration) *Selector {
	return &Selector{
		logger:        services.NewComponentLogger(SELECTOR_SERVICE),
		registry:      registry,
		bridgeTimeout: bridgeTimeout,
	}
}

// RegisterProvider appends a bridge provider client.
func (s *Selector) RegisterProvider(p Provider) {
	s.providers = append(s.providers, p)
}

// SetFinder injects the single-chain leg resolver.
func (s *Selector) SetFinder(f RouteFinder) {
	s.finder = f
}

// BuildPlan resolves a cross-chain plan. Failure of any leg is fatal to
// the whole plan; no partial plans are returned.
func (s *Selector) BuildPlan(ctx context.Context, fromChain domain.ChainID, fromToken domain.Token, toChain domain.ChainID, toToken domain.Token, amountIn *big.Int, slippageBps uint32) (*domain.CrossChainPlan, error) {
	pairs := s.registry.BridgeableTokens(fromChain, toChain)
	if len(pairs) == 0 {
		return nil, common.NewResolveError(common.KindBridgeUnavailable,
			"no bridgeable token shared between chains %d and %d", fromChain, toChain)
	}

	// Pick the bridgeable token: the input token itself when already
	// bridgeable, otherwise the highest-priority catalog entry reachable
	// by a source-chain swap.
	var (
		sourceLeg    *domain.Route
		bridgeIn     domain.Token
		bridgeOut    domain.Token
		bridgeAmount = amountIn
	)
	if src, dst, ok := matchBridgeable(pairs, fromToken); ok {
		bridgeIn, bridgeOut = src, dst
	} else {
		leg, src, dst, err := s.sourceLegTo(ctx, fromChain, fromToken, pairs, amountIn)
		if err != nil {
			return nil, err
		}
		// The leg's actual destination token, not an assumed one, becomes
		// the bridge input.
		sourceLeg, bridgeIn, bridgeOut = leg, src, dst
		bridgeAmount = leg.OutputAmount
	}

	quote, err := s.bestQuote(ctx, fromChain, toChain, bridgeIn, bridgeOut, bridgeAmount)
	if err != nil {
		return nil, err
	}

	var destLeg *domain.Route
	if !toToken.Equal(quote.OutputToken) {
		leg, err := s.finder.FindRoute(ctx, toChain, quote.OutputToken, toToken, quote.OutputAmount, 0)
		if err != nil {
			return nil, common.WrapResolveError(common.KindNoRouteFound, err,
				"destination leg unresolvable from "+quote.OutputToken.Address.String())
		}
		destLeg = leg
	}

	plan := &domain.CrossChainPlan{SourceLeg: sourceLeg, Bridge: *quote, DestLeg: destLeg}
	if err := plan.Validate(); err != nil {
		return nil, common.WrapResolveError(common.KindNoRouteFound, err, "cross-chain plan failed validation")
	}
	return plan, nil
}

// sourceLegTo finds a source-chain route into the first bridgeable
// token the finder can actually reach, in catalog priority order.
func (s *Selector) sourceLegTo(ctx context.Context, fromChain domain.ChainID, fromToken domain.Token, pairs [][2]domain.Token, amountIn *big.Int) (*domain.Route, domain.Token, domain.Token, error) {
	for _, pair := range pairs {
		leg, err := s.finder.FindRoute(ctx, fromChain, fromToken, pair[0], amountIn, 0)
		if err != nil {
			continue
		}
		return leg, pair[0], pair[1], nil
	}
	return nil, domain.Token{}, domain.Token{}, common.NewResolveError(common.KindNoRouteFound,
		"no source-chain path from %s into a bridgeable token", fromToken.Address)
}

// bestQuote queries all providers concurrently and ranks usable quotes
// by output amount, then fee, then time, then reliability.
func (s *Selector) bestQuote(ctx context.Context, fromChain, toChain domain.ChainID, bridgeIn, bridgeOut domain.Token, amount *big.Int) (*domain.BridgeQuote, error) {
	type outcome struct {
		quote *domain.BridgeQuote
		err   error
		id    string
	}
	outcomes := make([]outcome, len(s.providers))
	done := make(chan struct{}, len(s.providers))
	for i, p := range s.providers {
		go func(idx int, p Provider) {
			qctx, cancel := context.WithTimeout(ctx, s.bridgeTimeout)
			defer cancel()
			q, err := p.Quote(qctx, fromChain, toChain, bridgeIn, amount)
			outcomes[idx] = outcome{quote: q, err: err, id: p.ID()}
			done <- struct{}{}
		}(i, p)
	}
	for range s.providers {
		<-done
	}

	var quotes []*domain.BridgeQuote
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			metrics.BridgeQuotes.WithLabelValues(o.id, "error").Inc()
			s.logger.Debug().Err(o.err).Str("provider", o.id).Msg("bridge quote failed")
		case o.quote == nil:
			metrics.BridgeQuotes.WithLabelValues(o.id, "unavailable").Inc()
		default:
			metrics.BridgeQuotes.WithLabelValues(o.id, "ok").Inc()
			q := o.quote
			q.InputToken = bridgeIn
			q.OutputToken = bridgeOut
			quotes = append(quotes, q)
		}
	}
	if len(quotes) == 0 {
		return nil, common.NewResolveError(common.KindBridgeUnavailable,
			"no bridge provider quoted %s from chain %d to %d", bridgeIn.Symbol, fromChain, toChain)
	}
	RankQuotes(quotes)
	return quotes[0], nil
}

// RankQuotes orders bridge quotes best first: output amount desc, fee
// asc, eta asc, reliability desc, provider ID for determinism.
func RankQuotes(quotes []*domain.BridgeQuote) {
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if c := cmpBig(a.OutputAmount, b.OutputAmount); c != 0 {
			return c > 0
		}
		if !a.FeeUSD.Equal(b.FeeUSD) {
			return a.FeeUSD.LessThan(b.FeeUSD)
		}
		if a.ETASeconds != b.ETASeconds {
			return a.ETASeconds < b.ETASeconds
		}
		if a.ReliabilityScore != b.ReliabilityScore {
			return a.ReliabilityScore > b.ReliabilityScore
		}
		return a.ProviderID < b.ProviderID
	})
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

func matchBridgeable(pairs [][2]domain.Token, token domain.Token) (domain.Token, domain.Token, bool) {
	for _, pair := range pairs {
		if pair[0].Equal(token) {
			return pair[0], pair[1], true
		}
	}
	return domain.Token{}, domain.Token{}, false
}
