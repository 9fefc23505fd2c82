package aggregator

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/swapmesh/route-resolver/internal/domain"
)

var (
	scoreTokA = domain.Token{ChainID: 1, Address: "0xa000000000000000000000000000000000000001", Decimals: 6, Symbol: "AAA"}
	scoreTokM = domain.Token{ChainID: 1, Address: "0xd000000000000000000000000000000000000004", Decimals: 18, Symbol: "MID"}
	scoreTokB = domain.Token{ChainID: 1, Address: "0xe000000000000000000000000000000000000005", Decimals: 6, Symbol: "BBB"}
)

// scoredRoute builds a verified route over the given path with a single
// output amount. Intermediate amounts are irrelevant to scoring.
func scoredRoute(path []domain.Token, out int64) *domain.Route {
	steps := make([]domain.Hop, 0, len(path)-1)
	for i := 0; i+1 < len(path); i++ {
		steps = append(steps, domain.Hop{
			VenueID:    "uniswap-v2",
			FromToken:  path[i],
			ToToken:    path[i+1],
			FromAmount: big.NewInt(1_000_000),
			ToAmount:   big.NewInt(out),
		})
	}
	return &domain.Route{
		Path:         path,
		Steps:        steps,
		SourceLabel:  "route-finder",
		OutputAmount: big.NewInt(out),
		ExpiresAt:    time.Now().Add(time.Minute),
	}
}

func TestScoreRoute(t *testing.T) {
	r := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 3_000_000000) // 3000 BBB
	r.EstimatedGasUSD = decimal.NewFromInt(5)
	r.PriceImpactBps = 50

	score := ScoreRoute(r, ScoreInputs{
		OutputPriceUSD:  decimal.NewFromInt(1),
		AmountInUSD:     decimal.NewFromInt(3000),
		HopPenaltyUSD:   decimal.NewFromFloat(0.15),
		ProtocolFeesUSD: decimal.NewFromInt(2),
	})

	// 3000 − 5 − 50*3000/10000 − 2 − 1*0.15 = 2977.85
	require.True(t, score.Equal(decimal.NewFromFloat(2977.85)), "got %s", score)
}

func TestRankOrdersByScore(t *testing.T) {
	lo := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	lo.Score = decimal.NewFromInt(90)
	hi := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 120)
	hi.Score = decimal.NewFromInt(110)

	routes := []*domain.Route{lo, hi}
	Rank(routes)
	require.Same(t, hi, routes[0])
	require.Same(t, lo, routes[1])
}

func TestRankTieBreaks(t *testing.T) {
	// Scores within 0.01% are tied; the shorter path wins.
	short := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	short.Score = decimal.NewFromFloat(1000.00)
	long := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 100)
	long.Score = decimal.NewFromFloat(1000.05)

	routes := []*domain.Route{long, short}
	Rank(routes)
	require.Same(t, short, routes[0], "fewer hops wins inside the tie window")

	// Same hop count: the lower slippage requirement wins.
	calm := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	calm.Score = decimal.NewFromFloat(1000.00)
	calm.SlippageBps = 100
	jumpy := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 100)
	jumpy.Score = decimal.NewFromFloat(1000.00)
	jumpy.SlippageBps = 100
	wild := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	wild.Score = decimal.NewFromFloat(1000.04)
	wild.SlippageBps = 500

	routes = []*domain.Route{wild, jumpy, calm}
	Rank(routes)
	require.Same(t, calm, routes[0])
}

func TestRankDistinctScoresAreNotTied(t *testing.T) {
	// A 0.03% gap is outside the window, so the raw score decides even
	// against a shorter path.
	short := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	short.Score = decimal.NewFromFloat(1000.0)
	long := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 100)
	long.Score = decimal.NewFromFloat(1000.3)

	routes := []*domain.Route{short, long}
	Rank(routes)
	require.Same(t, long, routes[0])
}

func TestRankDeterministicOnFullTie(t *testing.T) {
	a := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	b := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 100)
	c := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)

	first := []*domain.Route{a, b, c}
	Rank(first)
	second := []*domain.Route{c, b, a}
	Rank(second)
	for i := range first {
		require.Equal(t, first[i].PathKey(), second[i].PathKey())
		require.Equal(t, first[i].HopCount(), second[i].HopCount())
	}
}

func TestDedupeKeepsHigherOutput(t *testing.T) {
	worse := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 100)
	better := scoredRoute([]domain.Token{scoreTokA, scoreTokB}, 120)
	other := scoredRoute([]domain.Token{scoreTokA, scoreTokM, scoreTokB}, 90)

	out := Dedupe([]*domain.Route{worse, other, better})
	require.Len(t, out, 2)
	require.Same(t, better, out[0], "first-seen order preserved, better duplicate kept")
	require.Same(t, other, out[1])
}

func TestScoresTiedZeroScale(t *testing.T) {
	require.True(t, scoresTied(decimal.Zero, decimal.Zero))
	require.False(t, scoresTied(decimal.Zero, decimal.NewFromInt(1)))
}
