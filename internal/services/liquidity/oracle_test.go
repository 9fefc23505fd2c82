package liquidity

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/swapmesh/route-resolver/internal/domain"
)

var (
	tokA = domain.Token{ChainID: 1, Address: "0xaaaa000000000000000000000000000000000001", Decimals: 18, Symbol: "AAA"}
	tokB = domain.Token{ChainID: 1, Address: "0xbbbb000000000000000000000000000000000002", Decimals: 18, Symbol: "BBB"}
	tokC = domain.Token{ChainID: 1, Address: "0xcccc000000000000000000000000000000000003", Decimals: 6, Symbol: "CCC"}
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
	edges []domain.Edge
	err   error
}

func (p *countingProvider) GetPairsForToken(_ context.Context, _ domain.ChainID, _ domain.Address) ([]domain.Edge, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls += 1
	return p.edges, p.err
}

func testEdge(a, b domain.Token, venue string, liquidityUSD int64) domain.Edge {
	return domain.Edge{
		TokenA:       a,
		TokenB:       b,
		VenueID:      venue,
		LiquidityUSD: decimal.NewFromInt(liquidityUSD),
		ReserveA:     big.NewInt(1_000_000),
		ReserveB:     big.NewInt(1_000_000),
	}
}

func TestPairsForTokenCaches(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{testEdge(tokA, tokB, "uniswap-v2", 5000)}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	for i := 0; i < 4; i++ {
		edges, err := o.PairsForToken(context.Background(), 1, tokA.Address)
		require.NoError(t, err)
		require.Len(t, edges, 1)
	}
	require.Equal(t, 1, provider.calls)
	require.Equal(t, 1, o.CacheLen())
}

func TestPairsForTokenCacheExpiry(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{testEdge(tokA, tokB, "uniswap-v2", 5000)}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	clock := time.Now()
	o.cache.now = func() time.Time { return clock }

	_, err := o.PairsForToken(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	// Within TTL the provider is not consulted again.
	clock = clock.Add(30 * time.Second)
	_, err = o.PairsForToken(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls)

	// Past TTL the entry is dead and the provider is re-queried.
	clock = clock.Add(31 * time.Second)
	_, err = o.PairsForToken(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	require.Equal(t, 2, provider.calls)
}

func TestPairsForTokenProviderErrorNotCached(t *testing.T) {
	provider := &countingProvider{err: errors.New("upstream down")}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	_, err := o.PairsForToken(context.Background(), 1, tokA.Address)
	require.Error(t, err)
	require.Equal(t, 0, o.CacheLen())

	provider.err = nil
	provider.edges = []domain.Edge{testEdge(tokA, tokB, "uniswap-v2", 5000)}
	edges, err := o.PairsForToken(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	require.Len(t, edges, 1)
}

func TestDirectEdgePicksDeepestUsable(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{
		testEdge(tokA, tokB, "sushiswap", 3000),
		testEdge(tokA, tokB, "uniswap-v2", 90_000),
		testEdge(tokA, tokC, "uniswap-v2", 50_000),
	}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	edge, found, err := o.DirectEdge(context.Background(), 1, tokA.Address, tokB.Address)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "uniswap-v2", edge.VenueID)
	require.True(t, edge.LiquidityUSD.Equal(decimal.NewFromInt(90_000)))
}

func TestDirectEdgeBelowFloorIsNotFound(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{
		testEdge(tokA, tokB, "uniswap-v2", 400),
	}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	_, found, err := o.DirectEdge(context.Background(), 1, tokA.Address, tokB.Address)
	require.NoError(t, err)
	require.False(t, found)
}

func TestUsableCounterparties(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{
		testEdge(tokA, tokB, "sushiswap", 2000),
		testEdge(tokA, tokB, "uniswap-v2", 8000),
		testEdge(tokA, tokC, "uniswap-v2", 600), // below floor
	}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	set, err := o.UsableCounterparties(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	require.Len(t, set, 1)

	edge, ok := set[tokB.Address]
	require.True(t, ok)
	require.Equal(t, "uniswap-v2", edge.VenueID, "deepest edge per counterparty wins")
}

func TestPairLiquidityUSD(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{
		testEdge(tokA, tokB, "uniswap-v2", 12_345),
	}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	liq := o.PairLiquidityUSD(context.Background(), 1, tokA.Address, tokB.Address)
	require.True(t, liq.Equal(decimal.NewFromInt(12_345)))

	// Unknown pair reports zero rather than an error.
	liq = o.PairLiquidityUSD(context.Background(), 1, tokA.Address, tokC.Address)
	require.True(t, liq.IsZero())
}

func TestCacheSweepRemovesExpired(t *testing.T) {
	provider := &countingProvider{edges: []domain.Edge{testEdge(tokA, tokB, "uniswap-v2", 5000)}}
	o := NewOracle(provider, time.Minute, decimal.NewFromInt(1000), time.Second)

	clock := time.Now()
	o.cache.now = func() time.Time { return clock }

	_, err := o.PairsForToken(context.Background(), 1, tokA.Address)
	require.NoError(t, err)
	_, err = o.PairsForToken(context.Background(), 1, tokB.Address)
	require.NoError(t, err)
	require.Equal(t, 2, o.CacheLen())

	clock = clock.Add(2 * time.Minute)
	require.Equal(t, 2, o.cache.Sweep())
	require.Equal(t, 0, o.CacheLen())
}
