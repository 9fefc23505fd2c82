package chain

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services/simulation"
)

func baseSwapCall(variant domain.CallVariant) simulation.SwapCall {
	return simulation.SwapCall{
		Variant:     variant,
		VenueRouter: "0x7a250d5630b4cf539739df2c5dacb4c659f2488d",
		Path: []domain.Address{
			"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
			"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
		},
		AmountIn:     big.NewInt(1_000_000),
		MinAmountOut: big.NewInt(990_000),
		Recipient:    "0x1111111111111111111111111111111111111111",
		From:         "0x1111111111111111111111111111111111111111",
	}
}

func TestEncodeSwapCallSelectors(t *testing.T) {
	cases := []struct {
		variant     domain.CallVariant
		selector    string
		carriesETH  bool
		headedWords int
	}{
		{domain.VariantNativeIn, "0x7ff36ab5", true, 4},
		{domain.VariantNativeInFeeSafe, "0xb6f9de95", true, 4},
		{domain.VariantNativeOut, "0x18cbafe5", false, 5},
		{domain.VariantNativeOutFeeSafe, "0x791ac947", false, 5},
		{domain.VariantTokenToToken, "0x38ed1739", false, 5},
		{domain.VariantTokenToTokenFeeSafe, "0x5c11d795", false, 5},
	}
	for _, tc := range cases {
		t.Run(string(tc.variant), func(t *testing.T) {
			data, value, err := encodeSwapCall(baseSwapCall(tc.variant))
			require.NoError(t, err)
			require.True(t, strings.HasPrefix(data, tc.selector), "got %s", data[:10])

			if tc.carriesETH {
				require.Equal(t, big.NewInt(1_000_000), value, "native input rides the call value")
			} else {
				require.Nil(t, value)
			}

			raw, err := decodeHex(data)
			require.NoError(t, err)
			// head words + array length word + 2 path elements
			require.Len(t, raw, 4+32*(tc.headedWords+3))
		})
	}
}

func TestEncodeSwapCallUnknownVariant(t *testing.T) {
	call := baseSwapCall("multicall")
	_, _, err := encodeSwapCall(call)
	require.Error(t, err)
}
