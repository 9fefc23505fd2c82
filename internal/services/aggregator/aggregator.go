// Package aggregator fans a quote request out to every candidate
// source, normalizes the results into one Route pool, and ranks it.
package aggregator

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/common"
	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
)

const AGGREGATOR_SERVICE = "quote-aggregator"

// CandidateSource is one strategy producing route candidates: the route
// finder, the bridge selector, or a per-venue adapter. Adding a new
// liquidity source means adding one implementation, not editing control
// flow.
type CandidateSource interface {
	Name() string
	// Budget is the per-call timebox for this source.
	Budget() time.Duration
	ProduceCandidates(ctx context.Context, req *domain.SwapRequest, slippageBps uint32) ([]*domain.Route, error)
}

// PriceProvider supplies USD prices for scoring. A failed lookup is not
// fatal: scoring falls back to a neutral price, which preserves the
// relative ranking because every candidate shares the same output token.
type PriceProvider interface {
	TokenPriceUSD(ctx context.Context, token domain.Token) (decimal.Decimal, error)
}

// SourceResult is one source's structured outcome. Failures are data,
// not exceptions: the decision logic is a pure function over these.
type SourceResult struct {
	Name     string
	Routes   []*domain.Route
	Err      error
	TimedOut bool
}

type Service struct {
	container.BaseDIInstance

	logger  *services.ServiceLogger
	sources []CandidateSource
	prices  PriceProvider

	hopPenaltyUSD decimal.Decimal
	readTimeout   time.Duration
}

func (s *Service) ID() string {
	return AGGREGATOR_SERVICE
}

// NewService builds an aggregator outside the DI container.
func NewService(hopPenaltyUSD decimal.Decimal, readTimeout time.Duration) *Service {
	return &Service{
		logger:        services.NewComponentLogger(AGGREGATOR_SERVICE),
		hopPenaltyUSD: hopPenaltyUSD,
		readTimeout:   readTimeout,
	}
}

func (s *Service) Configure(c container.IContainer) error {
	s.logger = services.NewServiceLogger(s)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	s.hopPenaltyUSD = decimal.NewFromFloat(conf.HopPenaltyUSD)
	s.readTimeout = conf.ReadTimeout
	return nil
}

// RegisterSource appends a candidate source. Sources are invoked
// concurrently on every Aggregate call.
func (s *Service) RegisterSource(src CandidateSource) {
	s.sources = append(s.sources, src)
}

func (s *Service) SetPriceProvider(p PriceProvider) {
	s.prices = p
}

// Aggregate runs every source with its own timebox, merges externally
// supplied adapter routes, scores, dedupes and ranks. A timed-out
// source simply contributes no candidates.
func (s *Service) Aggregate(ctx context.Context, req *domain.SwapRequest, slippageBps uint32, externalRoutes []*domain.Route) ([]*domain.Route, error) {
	results := s.collect(ctx, req, slippageBps)

	for _, res := range results {
		outcome := "ok"
		switch {
		case res.TimedOut:
			outcome = "timeout"
			metrics.UpstreamTimeouts.WithLabelValues(res.Name).Inc()
		case res.Err != nil:
			outcome = "error"
		}
		metrics.SourceResults.WithLabelValues(res.Name, outcome).Inc()
		if res.Err != nil && !res.TimedOut {
			s.logger.Debug().Err(res.Err).Str("source", res.Name).Msg("source produced no candidates")
		}
	}

	candidates, errKind := Decide(results, externalRoutes)
	if errKind != "" {
		return nil, common.NewResolveError(errKind,
			"no route candidates for %s -> %s", req.FromToken.Address, req.ToToken.Address)
	}

	s.scoreAll(ctx, req, slippageBps, candidates)
	candidates = Dedupe(candidates)
	Rank(candidates)
	return candidates, nil
}

// collect fans out to all sources and waits for every one to finish or
// time out, whichever comes first per source.
func (s *Service) collect(ctx context.Context, req *domain.SwapRequest, slippageBps uint32) []SourceResult {
	results := make([]SourceResult, len(s.sources))
	done := make(chan int, len(s.sources))

	for i, src := range s.sources {
		go func(idx int, src CandidateSource) {
			srcCtx, cancel := context.WithTimeout(ctx, src.Budget())
			defer cancel()
			routes, err := src.ProduceCandidates(srcCtx, req, slippageBps)
			results[idx] = SourceResult{
				Name:     src.Name(),
				Routes:   routes,
				Err:      err,
				TimedOut: errors.Is(err, context.DeadlineExceeded) || errors.Is(srcCtx.Err(), context.DeadlineExceeded),
			}
			done <- idx
		}(i, src)
	}
	for range s.sources {
		<-done
	}
	return results
}

// Decide merges per-source results and externally supplied routes into
// one candidate pool. Pure function: exhaustion with at least one
// timeout reports UpstreamTimeout, exhaustion without reports
// NoRouteFound, and any candidate at all clears both.
func Decide(results []SourceResult, external []*domain.Route) ([]*domain.Route, common.ErrorKind) {
	var pool []*domain.Route
	timedOut := false
	for _, res := range results {
		if res.TimedOut {
			timedOut = true
		}
		for _, r := range res.Routes {
			if r != nil && r.Validate() == nil {
				pool = append(pool, r)
			}
		}
	}
	for _, r := range external {
		if r != nil && r.Validate() == nil {
			pool = append(pool, r)
		}
	}
	if len(pool) == 0 {
		if timedOut {
			return nil, common.KindUpstreamTimeout
		}
		return nil, common.KindNoRouteFound
	}
	return pool, ""
}

// scoreAll stamps the applied slippage and score on every candidate.
func (s *Service) scoreAll(ctx context.Context, req *domain.SwapRequest, slippageBps uint32, routes []*domain.Route) {
	outPrice := s.priceOrNeutral(ctx, req.ToToken)
	inPrice := s.priceOrNeutral(ctx, req.FromToken)
	amountInUSD := amountToDecimal(req.AmountIn, req.FromToken.Decimals).Mul(inPrice)

	for _, r := range routes {
		if r.SlippageBps == 0 {
			r.SlippageBps = slippageBps
		}
		r.Score = ScoreRoute(r, ScoreInputs{
			OutputPriceUSD: outPrice,
			AmountInUSD:    amountInUSD,
			HopPenaltyUSD:  s.hopPenaltyUSD,
		})
	}
}

// priceOrNeutral falls back to 1 USD per whole token when the price
// provider is unavailable, keeping ranking well-defined.
func (s *Service) priceOrNeutral(ctx context.Context, token domain.Token) decimal.Decimal {
	if s.prices == nil {
		return decimal.NewFromInt(1)
	}
	pctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	price, err := s.prices.TokenPriceUSD(pctx, token)
	if err != nil || price.IsZero() {
		return decimal.NewFromInt(1)
	}
	return price
}
