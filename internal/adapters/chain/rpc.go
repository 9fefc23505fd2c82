// Package chain talks JSON-RPC to the per-chain query nodes: quote
// reads, balance and allowance reads, and swap-call simulation.
package chain

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services"
)

const rpcResponseLimit = 1 << 20

// Client multiplexes JSON-RPC calls across the chains the registry
// declares. One HTTP client is shared; endpoints come from the registry.
type Client struct {
	registry   *config.Registry
	httpClient *http.Client
	logger     *services.ServiceLogger
}

func NewClient(registry *config.Registry, timeout time.Duration) *Client {
	return &Client{
		registry: registry,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: services.NewComponentLogger("chain-client"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type callParams struct {
	From  string `json:"from,omitempty"`
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value,omitempty"`
}

// call performs eth_call against the chain's query node and returns the
// raw return data. A revert comes back as *revertError.
func (c *Client) call(ctx context.Context, chainID domain.ChainID, params callParams) ([]byte, error) {
	entry, ok := c.registry.Chain(chainID)
	if !ok {
		return nil, fmt.Errorf("chain %d is not configured", chainID)
	}
	return c.rpc(ctx, entry.RPCURL, "eth_call", []interface{}{params, "latest"})
}

func (c *Client) rpc(ctx context.Context, endpoint, method string, params []interface{}) ([]byte, error) {
	payload, err := sonic.Marshal(rpcRequest{JSONRPC: "2.0", ID: 1, Method: method, Params: params})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, rpcResponseLimit))
	if err != nil {
		return nil, fmt.Errorf("rpc %s read body: %w", method, err)
	}
	var decoded rpcResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("rpc %s decode: %w", method, err)
	}
	if decoded.Error != nil {
		if reason, ok := decodeRevert(decoded.Error); ok {
			return nil, &revertError{reason: reason}
		}
		return nil, decoded.Error
	}
	return decodeHex(decoded.Result)
}

// revertError is an eth_call execution revert with its decoded reason.
type revertError struct {
	reason string
}

func (e *revertError) Error() string {
	return "execution reverted: " + e.reason
}

// decodeRevert extracts a revert reason from an RPC error: either the
// standard Error(string) return data or the node's message text.
func decodeRevert(rpcErr *rpcError) (string, bool) {
	if rpcErr.Data != "" {
		if raw, err := decodeHex(rpcErr.Data); err == nil {
			if reason, ok := unpackErrorString(raw); ok {
				return reason, true
			}
		}
	}
	msg := strings.TrimPrefix(rpcErr.Message, "execution reverted")
	if msg != rpcErr.Message {
		return strings.TrimPrefix(strings.TrimSpace(msg), ": "), true
	}
	return "", false
}

// unpackErrorString decodes the Error(string) selector 0x08c379a0.
func unpackErrorString(data []byte) (string, bool) {
	if len(data) < 4+64 || !bytes.Equal(data[:4], []byte{0x08, 0xc3, 0x79, 0xa0}) {
		return "", false
	}
	body := data[4:]
	strLen := new(big.Int).SetBytes(body[32:64]).Int64()
	if strLen < 0 || 64+strLen > int64(len(body)) {
		return "", false
	}
	return string(body[64 : 64+strLen]), true
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	// Quantities come back without a leading zero.
	if len(s)%2 == 1 {
		s = "0" + s
	}
	return hex.DecodeString(s)
}

// ABI word helpers. Calls here are the handful of fixed v2-router
// shapes, packed by hand rather than through a full ABI dependency.

func wordUint(v *big.Int) []byte {
	w := make([]byte, 32)
	v.FillBytes(w)
	return w
}

func wordAddress(addr domain.Address) []byte {
	w := make([]byte, 32)
	raw, err := decodeHex(string(addr))
	if err == nil && len(raw) == 20 {
		copy(w[12:], raw)
	}
	return w
}

// packAddressArray encodes a dynamic address[] body: length word then
// one word per element. The caller writes the offset word.
func packAddressArray(addrs []domain.Address) []byte {
	out := wordUint(big.NewInt(int64(len(addrs))))
	for _, a := range addrs {
		out = append(out, wordAddress(a)...)
	}
	return out
}

// unpackUintArray decodes a dynamic uint256[] return value.
func unpackUintArray(data []byte) ([]*big.Int, error) {
	if len(data) < 64 {
		return nil, fmt.Errorf("return data too short: %d bytes", len(data))
	}
	// Int64 of a >63-bit word wraps negative, so the sign check guards
	// against a hostile or broken node, not against SetBytes.
	offset := new(big.Int).SetBytes(data[:32]).Int64()
	if offset < 0 || offset+32 > int64(len(data)) {
		return nil, fmt.Errorf("bad array offset %d", offset)
	}
	count := new(big.Int).SetBytes(data[offset : offset+32]).Int64()
	body := data[offset+32:]
	if count < 0 || count > int64(len(body))/32 {
		return nil, fmt.Errorf("bad array length %d", count)
	}
	out := make([]*big.Int, count)
	for i := int64(0); i < count; i++ {
		out[i] = new(big.Int).SetBytes(body[i*32 : (i+1)*32])
	}
	return out, nil
}

func encodeCallData(selector []byte, words ...[]byte) string {
	data := append([]byte{}, selector...)
	for _, w := range words {
		data = append(data, w...)
	}
	return "0x" + hex.EncodeToString(data)
}
