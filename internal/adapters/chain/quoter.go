package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/swapmesh/route-resolver/internal/domain"
)

// getAmountsOut(uint256,address[])
var selGetAmountsOut = []byte{0xd0, 0x6c, 0xa6, 0x1f}

// GetAmountsOut asks the venue's router what the path yields for
// amountIn. The returned value is the final path element's output.
func (c *Client) GetAmountsOut(ctx context.Context, chainID domain.ChainID, venueID string, path []domain.Address, amountIn *big.Int) (*big.Int, error) {
	if len(path) < 2 {
		return nil, fmt.Errorf("path needs at least 2 tokens, got %d", len(path))
	}
	venue, ok := c.registry.Venue(chainID, venueID)
	if !ok {
		return nil, fmt.Errorf("unknown venue %q on chain %d", venueID, chainID)
	}

	data := encodeCallData(selGetAmountsOut,
		wordUint(amountIn),
		wordUint(big.NewInt(64)), // offset of the path array
		packAddressArray(path),
	)
	raw, err := c.call(ctx, chainID, callParams{To: venue.Router, Data: data})
	if err != nil {
		return nil, err
	}
	amounts, err := unpackUintArray(raw)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut on %s: %w", venueID, err)
	}
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut on %s returned %d amounts for %d tokens", venueID, len(amounts), len(path))
	}
	return amounts[len(amounts)-1], nil
}
