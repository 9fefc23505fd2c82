package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services/simulation"
)

var (
	// balanceOf(address), allowance(address,address)
	selBalanceOf = []byte{0x70, 0xa0, 0x82, 0x31}
	selAllowance = []byte{0xdd, 0x62, 0xed, 0x3e}

	// v2-router swap families, standard and fee-on-transfer-safe.
	selSwapTokensForTokens        = []byte{0x38, 0xed, 0x17, 0x39}
	selSwapNativeForTokens        = []byte{0x7f, 0xf3, 0x6a, 0xb5}
	selSwapTokensForNative        = []byte{0x18, 0xcb, 0xaf, 0xe5}
	selSwapTokensForTokensFeeSafe = []byte{0x5c, 0x11, 0xd7, 0x95}
	selSwapNativeForTokensFeeSafe = []byte{0xb6, 0xf9, 0xde, 0x95}
	selSwapTokensForNativeFeeSafe = []byte{0x79, 0x1a, 0xc9, 0x47}
)

const simulationDeadline = 5 * time.Minute

// NativeBalance reads the signer's native coin balance.
func (c *Client) NativeBalance(ctx context.Context, chainID domain.ChainID, owner domain.Address) (*big.Int, error) {
	entry, ok := c.registry.Chain(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	raw, err := c.rpc(ctx, entry.RPCURL, "eth_getBalance", []interface{}{string(owner), "latest"})
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// TokenBalance reads the signer's balance of an ERC-20 token.
func (c *Client) TokenBalance(ctx context.Context, chainID domain.ChainID, token, owner domain.Address) (*big.Int, error) {
	data := encodeCallData(selBalanceOf, wordAddress(owner))
	raw, err := c.call(ctx, chainID, callParams{To: string(token), Data: data})
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// Allowance reads the amount the spender may pull from the owner.
func (c *Client) Allowance(ctx context.Context, chainID domain.ChainID, token, owner, spender domain.Address) (*big.Int, error) {
	data := encodeCallData(selAllowance, wordAddress(owner), wordAddress(spender))
	raw, err := c.call(ctx, chainID, callParams{To: string(token), Data: data})
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(raw), nil
}

// SimulateSwap dry-runs the swap call via eth_call from the signer's
// address. A revert is returned as *simulation.RevertError so the
// validator can classify the reason.
func (c *Client) SimulateSwap(ctx context.Context, chainID domain.ChainID, call simulation.SwapCall) error {
	data, value, err := encodeSwapCall(call)
	if err != nil {
		return err
	}
	params := callParams{
		From: string(call.From),
		To:   string(call.VenueRouter),
		Data: data,
	}
	if value != nil {
		params.Value = "0x" + value.Text(16)
	}
	_, err = c.call(ctx, chainID, params)
	var revert *revertError
	if errors.As(err, &revert) {
		return &simulation.RevertError{Reason: revert.reason}
	}
	return err
}

// encodeSwapCall packs the router calldata for a variant. Native-in
// variants carry the input amount as call value instead of an argument.
func encodeSwapCall(call simulation.SwapCall) (data string, value *big.Int, err error) {
	deadline := big.NewInt(time.Now().Add(simulationDeadline).Unix())

	switch call.Variant {
	case domain.VariantNativeIn, domain.VariantNativeInFeeSafe:
		sel := selSwapNativeForTokens
		if call.Variant.FeeSafe() == call.Variant {
			sel = selSwapNativeForTokensFeeSafe
		}
		// (amountOutMin, path, to, deadline), path offset after 4 head words
		data = encodeCallData(sel,
			wordUint(call.MinAmountOut),
			wordUint(big.NewInt(128)),
			wordAddress(call.Recipient),
			wordUint(deadline),
			packAddressArray(call.Path),
		)
		return data, call.AmountIn, nil

	case domain.VariantNativeOut, domain.VariantNativeOutFeeSafe:
		sel := selSwapTokensForNative
		if call.Variant.FeeSafe() == call.Variant {
			sel = selSwapTokensForNativeFeeSafe
		}
		data = encodeCallData(sel,
			wordUint(call.AmountIn),
			wordUint(call.MinAmountOut),
			wordUint(big.NewInt(160)),
			wordAddress(call.Recipient),
			wordUint(deadline),
			packAddressArray(call.Path),
		)
		return data, nil, nil

	case domain.VariantTokenToToken, domain.VariantTokenToTokenFeeSafe:
		sel := selSwapTokensForTokens
		if call.Variant.FeeSafe() == call.Variant {
			sel = selSwapTokensForTokensFeeSafe
		}
		data = encodeCallData(sel,
			wordUint(call.AmountIn),
			wordUint(call.MinAmountOut),
			wordUint(big.NewInt(160)),
			wordAddress(call.Recipient),
			wordUint(deadline),
			packAddressArray(call.Path),
		)
		return data, nil, nil
	}
	return "", nil, fmt.Errorf("unknown call variant %q", call.Variant)
}
