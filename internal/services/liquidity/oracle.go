// Package liquidity implements the liquidity oracle: a TTL-cached view
// over the external pair-data provider answering "does a tradable pool
// exist between X and Y, and how liquid is it".
package liquidity

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/metrics"
	"github.com/swapmesh/route-resolver/internal/services"
)

const ORACLE_SERVICE = "liquidity-oracle"

// PairProvider is the upstream pair-data dependency. Absence of data is
// a valid ("unknown, assume illiquid") response, not an error.
type PairProvider interface {
	GetPairsForToken(ctx context.Context, chainID domain.ChainID, token domain.Address) ([]domain.Edge, error)
}

// Oracle caches pair lookups with a short TTL. Edges never outlive the
// TTL and are never persisted.
type Oracle struct {
	container.BaseDIInstance

	logger   *services.ServiceLogger
	provider PairProvider
	cache    *shardedEdgeCache

	minLiquidityUSD decimal.Decimal
	readTimeout     time.Duration

	sweepStop chan struct{}
}

// NewOracle builds an oracle outside the DI container, for embedding
// and tests. The DI path goes through Configure instead.
func NewOracle(provider PairProvider, cacheTTL time.Duration, minLiquidityUSD decimal.Decimal, readTimeout time.Duration) *Oracle {
	return &Oracle{
		logger:          services.NewComponentLogger(ORACLE_SERVICE),
		provider:        provider,
		cache:           newShardedEdgeCache(cacheTTL, nil),
		minLiquidityUSD: minLiquidityUSD,
		readTimeout:     readTimeout,
		sweepStop:       make(chan struct{}),
	}
}

func (o *Oracle) ID() string {
	return ORACLE_SERVICE
}

func (o *Oracle) Configure(c container.IContainer) error {
	o.logger = services.NewServiceLogger(o)
	conf := c.GetConfig(config.RESOLVER_CONFIG_KEY).(*config.ResolverConfig)
	o.cache = newShardedEdgeCache(conf.PairCacheTTL, nil)
	o.minLiquidityUSD = decimal.NewFromFloat(conf.MinLiquidityUSD)
	o.readTimeout = conf.ReadTimeout
	o.sweepStop = make(chan struct{})
	return nil
}

// SetProvider injects the upstream client. Wired from the resolver
// service because adapters are constructed outside the DI container.
func (o *Oracle) SetProvider(p PairProvider) {
	o.provider = p
}

func (o *Oracle) Start() error {
	go o.sweepLoop()
	return nil
}

func (o *Oracle) Stop() error {
	close(o.sweepStop)
	return nil
}

func (o *Oracle) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := o.cache.Sweep(); n > 0 {
				o.logger.Debug().Int("removed", n).Msg("swept expired pair entries")
			}
		case <-o.sweepStop:
			return
		}
	}
}

// PairsForToken returns every edge the token participates in, cached.
func (o *Oracle) PairsForToken(ctx context.Context, chainID domain.ChainID, token domain.Address) ([]domain.Edge, error) {
	key := domain.TokenKey(chainID, token)
	if edges, ok := o.cache.Get(key); ok {
		metrics.PairCacheHits.Inc()
		return edges, nil
	}
	metrics.PairCacheMisses.Inc()

	ctx, cancel := context.WithTimeout(ctx, o.readTimeout)
	defer cancel()
	edges, err := o.provider.GetPairsForToken(ctx, chainID, token)
	if err != nil {
		return nil, err
	}
	o.cache.Set(key, edges)
	return edges, nil
}

// DirectEdge looks for a usable pool between two tokens. The bool is
// false both when no pool exists and when the pool is below the
// liquidity floor.
func (o *Oracle) DirectEdge(ctx context.Context, chainID domain.ChainID, from, to domain.Address) (domain.Edge, bool, error) {
	edges, err := o.PairsForToken(ctx, chainID, from)
	if err != nil {
		return domain.Edge{}, false, err
	}
	var best domain.Edge
	found := false
	for i := range edges {
		other, ok := edges[i].Other(from)
		if !ok || other.Address != to {
			continue
		}
		if !edges[i].Usable(o.minLiquidityUSD) {
			continue
		}
		if !found || edges[i].LiquidityUSD.GreaterThan(best.LiquidityUSD) {
			best = edges[i]
			found = true
		}
	}
	return best, found, nil
}

// UsableCounterparties returns the set of token addresses the given
// token has a usable pool against, with the deepest edge per
// counterparty.
func (o *Oracle) UsableCounterparties(ctx context.Context, chainID domain.ChainID, token domain.Address) (map[domain.Address]domain.Edge, error) {
	edges, err := o.PairsForToken(ctx, chainID, token)
	if err != nil {
		return nil, err
	}
	out := make(map[domain.Address]domain.Edge)
	for i := range edges {
		other, ok := edges[i].Other(token)
		if !ok || !edges[i].Usable(o.minLiquidityUSD) {
			continue
		}
		if prev, seen := out[other.Address]; !seen || edges[i].LiquidityUSD.GreaterThan(prev.LiquidityUSD) {
			out[other.Address] = edges[i]
		}
	}
	return out, nil
}

// PairLiquidityUSD reports the deepest pool's liquidity for a pair, in
// USD. Zero when no pool is known; the slippage controller treats that
// as the lowest tier.
func (o *Oracle) PairLiquidityUSD(ctx context.Context, chainID domain.ChainID, from, to domain.Address) decimal.Decimal {
	edge, ok, err := o.DirectEdge(ctx, chainID, from, to)
	if err != nil || !ok {
		return decimal.Zero
	}
	return edge.LiquidityUSD
}

// MinLiquidityUSD exposes the usability floor for callers that filter
// edges themselves.
func (o *Oracle) MinLiquidityUSD() decimal.Decimal {
	return o.minLiquidityUSD
}

func (o *Oracle) CacheLen() int {
	return o.cache.Len()
}
