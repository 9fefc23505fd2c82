// Package bridgeapi is the REST client for external bridge providers.
// One Client instance per provider entry in the registry.
package bridgeapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/swapmesh/route-resolver/internal/config"
	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services"
)

const maxResponseBytes = 1 << 20

type Client struct {
	id          string
	endpoint    string
	reliability float64
	httpClient  *http.Client
	logger      *services.ServiceLogger
}

func NewClient(entry config.BridgeProviderEntry, timeout time.Duration) *Client {
	return &Client{
		id:          entry.ID,
		endpoint:    entry.Endpoint,
		reliability: entry.Reliability,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      services.NewComponentLogger("bridge-" + entry.ID),
	}
}

func (c *Client) ID() string {
	return c.id
}

type quoteRequest struct {
	FromChain string `json:"fromChain"`
	ToChain   string `json:"toChain"`
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Amount    string `json:"amount"`
}

type quoteResponse struct {
	Available    bool   `json:"available"`
	AmountOut    string `json:"amountOut"`
	FeeUSD       string `json:"feeUsd"`
	ETASeconds   int    `json:"etaSeconds"`
	ValidForSecs int    `json:"validForSecs"`
}

// Quote asks the provider for a transfer quote. A provider that does
// not serve the tuple answers available=false, which maps to (nil, nil)
// per the selector's contract.
func (c *Client) Quote(ctx context.Context, fromChain, toChain domain.ChainID, token domain.Token, amount *big.Int) (*domain.BridgeQuote, error) {
	payload, err := sonic.Marshal(quoteRequest{
		FromChain: fromChain.String(),
		ToChain:   toChain.String(),
		Token:     string(token.Address),
		Symbol:    token.Symbol,
		Amount:    amount.String(),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/quote", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: %w", c.id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge %s returned status %d", c.id, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("bridge %s read body: %w", c.id, err)
	}
	var decoded quoteResponse
	if err := sonic.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("bridge %s decode: %w", c.id, err)
	}
	if !decoded.Available {
		return nil, nil
	}

	amountOut, ok := new(big.Int).SetString(decoded.AmountOut, 10)
	if !ok {
		return nil, fmt.Errorf("bridge %s: bad amountOut %q", c.id, decoded.AmountOut)
	}
	fee, err := decimal.NewFromString(decoded.FeeUSD)
	if err != nil {
		return nil, fmt.Errorf("bridge %s: bad feeUsd %q: %w", c.id, decoded.FeeUSD, err)
	}
	validity := time.Duration(decoded.ValidForSecs) * time.Second
	if validity <= 0 {
		validity = 30 * time.Second
	}
	return &domain.BridgeQuote{
		ProviderID:       c.id,
		FromChain:        fromChain,
		ToChain:          toChain,
		InputToken:       token,
		InputAmount:      new(big.Int).Set(amount),
		OutputAmount:     amountOut,
		FeeUSD:           fee,
		ETASeconds:       decoded.ETASeconds,
		ReliabilityScore: c.reliability,
		ExpiresAt:        time.Now().Add(validity),
	}, nil
}
