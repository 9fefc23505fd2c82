package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	weth = Token{ChainID: 1, Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", Decimals: 18, Symbol: "WETH"}
	usdc = Token{ChainID: 1, Address: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6, Symbol: "USDC"}
	dai  = Token{ChainID: 1, Address: "0x6b175474e89094c44da98b954eedeac495271d0f", Decimals: 18, Symbol: "DAI"}
	eth  = Token{ChainID: 1, Address: NativeAddress, Decimals: 18, Symbol: "ETH"}
)

func swapRoute(path []Token, amounts []*big.Int) *Route {
	steps := make([]Hop, 0, len(path)-1)
	for i := 0; i < len(path)-1; i++ {
		steps = append(steps, Hop{
			VenueID:    "uniswap-v2",
			FromToken:  path[i],
			ToToken:    path[i+1],
			FromAmount: amounts[i],
			ToAmount:   amounts[i+1],
		})
	}
	return &Route{
		Path:         path,
		Steps:        steps,
		SourceLabel:  "test",
		OutputAmount: amounts[len(amounts)-1],
	}
}

func TestRouteValidateContinuity(t *testing.T) {
	r := swapRoute(
		[]Token{dai, weth, usdc},
		[]*big.Int{big.NewInt(1000), big.NewInt(500), big.NewInt(498)},
	)
	require.NoError(t, r.Validate())

	// Break the chain: second hop starts at the wrong token.
	r.Steps[1].FromToken = usdc
	require.Error(t, r.Validate())
}

func TestRouteValidateUnwrap(t *testing.T) {
	// Path ends at the wrapped token; the unwrap hop carries the native
	// destination.
	r := swapRoute([]Token{usdc, weth}, []*big.Int{big.NewInt(3000_000000), big.NewInt(1e18)})
	r.NeedsUnwrap = true
	require.Error(t, r.Validate(), "needsUnwrap without an unwrap step must fail")

	r.Steps = append(r.Steps, Hop{
		VenueID:    UnwrapVenueID,
		FromToken:  weth,
		ToToken:    eth,
		FromAmount: big.NewInt(1e18),
		ToAmount:   big.NewInt(1e18),
	})
	require.NoError(t, r.Validate())
	require.Equal(t, 1, r.HopCount(), "unwrap step must not count as a hop")
}

func TestRouteMinOutputAfterSlippage(t *testing.T) {
	r := swapRoute([]Token{weth, usdc}, []*big.Int{big.NewInt(1e18), big.NewInt(3000_000000)})

	r.SlippageBps = 50
	require.Equal(t, big.NewInt(2985_000000), r.MinOutputAfterSlippage())

	r.SlippageBps = 0
	require.Equal(t, big.NewInt(3000_000000), r.MinOutputAfterSlippage())

	r.SlippageBps = 10000
	require.Zero(t, r.MinOutputAfterSlippage().Sign())
}

func TestRoutePathKeyAndExpiry(t *testing.T) {
	a := swapRoute([]Token{weth, usdc}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	b := swapRoute([]Token{weth, usdc}, []*big.Int{big.NewInt(9), big.NewInt(8)})
	c := swapRoute([]Token{weth, dai}, []*big.Int{big.NewInt(1), big.NewInt(2)})
	require.Equal(t, a.PathKey(), b.PathKey())
	require.NotEqual(t, a.PathKey(), c.PathKey())

	now := time.Now()
	a.ExpiresAt = now.Add(time.Minute)
	require.False(t, a.Expired(now))
	require.True(t, a.Expired(now.Add(2*time.Minute)))
}

func TestCrossChainPlanValidate(t *testing.T) {
	polyUSDC := Token{ChainID: 137, Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6, Symbol: "USDC"}
	polyTarget := Token{ChainID: 137, Address: "0x1111111111111111111111111111111111111111", Decimals: 18}

	source := swapRoute([]Token{dai, usdc}, []*big.Int{big.NewInt(1000), big.NewInt(999)})
	dest := swapRoute([]Token{polyUSDC, polyTarget}, []*big.Int{big.NewInt(995), big.NewInt(990)})

	plan := &CrossChainPlan{
		SourceLeg: source,
		Bridge: BridgeQuote{
			ProviderID:   "hopline",
			FromChain:    1,
			ToChain:      137,
			InputToken:   usdc,
			OutputToken:  polyUSDC,
			InputAmount:  big.NewInt(999),
			OutputAmount: big.NewInt(995),
		},
		DestLeg: dest,
	}
	require.NoError(t, plan.Validate())
	require.Equal(t, big.NewInt(990), plan.FinalOutput())

	// Source leg ending at the wrong token breaks the composition.
	bad := *plan
	bad.Bridge.InputToken = dai
	require.Error(t, bad.Validate())
}

func TestCrossChainPlanFlatten(t *testing.T) {
	polyUSDC := Token{ChainID: 137, Address: "0x3c499c542cef5e3811e1192ce70d8cc03d5c3359", Decimals: 6, Symbol: "USDC"}
	polyTarget := Token{ChainID: 137, Address: "0x1111111111111111111111111111111111111111", Decimals: 18}

	source := swapRoute([]Token{dai, usdc}, []*big.Int{big.NewInt(1000), big.NewInt(999)})
	source.ExpiresAt = time.Now().Add(time.Minute)
	dest := swapRoute([]Token{polyUSDC, polyTarget}, []*big.Int{big.NewInt(995), big.NewInt(990)})
	dest.ExpiresAt = time.Now().Add(3 * time.Minute)

	plan := &CrossChainPlan{
		SourceLeg: source,
		Bridge: BridgeQuote{
			ProviderID:   "hopline",
			InputToken:   usdc,
			OutputToken:  polyUSDC,
			InputAmount:  big.NewInt(999),
			OutputAmount: big.NewInt(995),
			ExpiresAt:    time.Now().Add(2 * time.Minute),
		},
		DestLeg: dest,
	}

	flat := plan.Flatten("test", 100)
	require.NoError(t, flat.Validate())
	require.Len(t, flat.Steps, 3)
	require.Equal(t, "bridge:hopline", flat.Steps[1].VenueID)
	require.Equal(t, big.NewInt(990), flat.OutputAmount)
	require.Equal(t, uint32(100), flat.SlippageBps)
	// The tightest leg expiry bounds the whole plan.
	require.Equal(t, source.ExpiresAt, flat.ExpiresAt)
}
