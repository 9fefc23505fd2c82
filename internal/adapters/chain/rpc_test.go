package chain

import (
	"encoding/hex"
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/swapmesh/route-resolver/internal/domain"
)

func TestDecodeHex(t *testing.T) {
	b, err := decodeHex("0x01ff")
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0xff}, b)

	// Quantities come back without a leading zero digit.
	b, err = decodeHex("0x0")
	require.NoError(t, err)
	require.Equal(t, []byte{0x00}, b)

	b, err = decodeHex("0xfde8")
	require.NoError(t, err)
	require.Equal(t, []byte{0xfd, 0xe8}, b)

	_, err = decodeHex("0xzz")
	require.Error(t, err)
}

func TestWordUint(t *testing.T) {
	w := wordUint(big.NewInt(1000))
	require.Len(t, w, 32)
	require.Equal(t, byte(0x03), w[30])
	require.Equal(t, byte(0xe8), w[31])
	require.Equal(t, make([]byte, 30), w[:30])
}

func TestWordAddress(t *testing.T) {
	w := wordAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	require.Len(t, w, 32)
	require.Equal(t, make([]byte, 12), w[:12], "addresses are right-aligned")
	require.Equal(t, "c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2", hex.EncodeToString(w[12:]))
}

func TestEncodeGetAmountsOutCallData(t *testing.T) {
	path := []domain.Address{
		"0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48",
		"0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2",
	}
	data := encodeCallData(selGetAmountsOut,
		wordUint(big.NewInt(1_000_000)),
		wordUint(big.NewInt(64)),
		packAddressArray(path),
	)

	require.True(t, strings.HasPrefix(data, "0xd06ca61f"))
	raw, err := decodeHex(data)
	require.NoError(t, err)
	// selector + amount + offset + length + 2 addresses
	require.Len(t, raw, 4+32*5)

	length := new(big.Int).SetBytes(raw[4+64 : 4+96])
	require.Equal(t, int64(2), length.Int64())
}

func TestUnpackUintArray(t *testing.T) {
	data := make([]byte, 0, 32*4)
	data = append(data, wordUint(big.NewInt(32))...) // offset
	data = append(data, wordUint(big.NewInt(2))...)  // length
	data = append(data, wordUint(big.NewInt(1_000_000))...)
	data = append(data, wordUint(big.NewInt(996_000))...)

	amounts, err := unpackUintArray(data)
	require.NoError(t, err)
	require.Len(t, amounts, 2)
	require.Equal(t, big.NewInt(1_000_000), amounts[0])
	require.Equal(t, big.NewInt(996_000), amounts[1])
}

func TestUnpackUintArrayMalformed(t *testing.T) {
	_, err := unpackUintArray([]byte{0x01})
	require.Error(t, err)

	// Offset pointing past the payload.
	data := append(wordUint(big.NewInt(4096)), wordUint(big.NewInt(2))...)
	_, err = unpackUintArray(data)
	require.Error(t, err)

	// Length claiming more elements than the body holds.
	data = append(wordUint(big.NewInt(32)), wordUint(big.NewInt(9))...)
	_, err = unpackUintArray(data)
	require.Error(t, err)

	// Offset word beyond 63 bits wraps negative through Int64 and must
	// be rejected, not sliced.
	huge := new(big.Int).Lsh(big.NewInt(1), 63)
	data = append(wordUint(huge), wordUint(big.NewInt(0))...)
	_, err = unpackUintArray(data)
	require.Error(t, err)

	// Length word beyond 63/32 bits must not wrap through the times-32
	// bound check.
	data = append(wordUint(big.NewInt(32)), wordUint(new(big.Int).Lsh(big.NewInt(1), 60))...)
	_, err = unpackUintArray(data)
	require.Error(t, err)
}

func TestDecodeRevertFromErrorData(t *testing.T) {
	reason := "UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"
	body := make([]byte, 0, 4+96+32)
	body = append(body, 0x08, 0xc3, 0x79, 0xa0)
	body = append(body, wordUint(big.NewInt(32))...)
	body = append(body, wordUint(big.NewInt(int64(len(reason))))...)
	padded := make([]byte, 64)
	copy(padded, reason)
	body = append(body, padded...)

	got, ok := decodeRevert(&rpcError{Code: 3, Message: "execution reverted", Data: "0x" + hex.EncodeToString(body)})
	require.True(t, ok)
	require.Equal(t, reason, got)
}

func TestDecodeRevertFromMessage(t *testing.T) {
	got, ok := decodeRevert(&rpcError{Code: 3, Message: "execution reverted: TransferHelper: TRANSFER_FROM_FAILED"})
	require.True(t, ok)
	require.Equal(t, "TransferHelper: TRANSFER_FROM_FAILED", got)

	_, ok = decodeRevert(&rpcError{Code: -32000, Message: "header not found"})
	require.False(t, ok)
}

func TestUnpackErrorStringRejectsOtherSelectors(t *testing.T) {
	_, ok := unpackErrorString([]byte{0xde, 0xad, 0xbe, 0xef})
	require.False(t, ok)
}
