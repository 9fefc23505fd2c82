// Package pairdata is the REST client for the pair-data provider, the
// off-chain source of pool reserves, liquidity depth and token prices.
package pairdata

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"

	"github.com/swapmesh/route-resolver/internal/domain"
	"github.com/swapmesh/route-resolver/internal/services"
)

const maxResponseBytes = 4 << 20

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *services.ServiceLogger
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: services.NewComponentLogger("pairdata-client"),
	}
}

type pairDTO struct {
	VenueID      string   `json:"venueId"`
	TokenA       tokenDTO `json:"tokenA"`
	TokenB       tokenDTO `json:"tokenB"`
	ReserveA     string   `json:"reserveA"`
	ReserveB     string   `json:"reserveB"`
	LiquidityUSD string   `json:"liquidityUsd"`
	UpdatedAt    int64    `json:"updatedAt"`
}

type tokenDTO struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type pairsResponse struct {
	Pairs []pairDTO `json:"pairs"`
}

type priceResponse struct {
	PriceUSD string `json:"priceUsd"`
}

// GetPairsForToken fetches every pool the token participates in on the
// chain. An empty list is a valid answer, not an error.
func (c *Client) GetPairsForToken(ctx context.Context, chainID domain.ChainID, token domain.Address) ([]domain.Edge, error) {
	endpoint := fmt.Sprintf("%s/v1/pairs?chain=%s&token=%s", c.baseURL, chainID.String(), url.QueryEscape(string(token)))
	var resp pairsResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, err
	}
	edges := make([]domain.Edge, 0, len(resp.Pairs))
	for _, p := range resp.Pairs {
		edge, err := p.toEdge(chainID)
		if err != nil {
			c.logger.Debug().Err(err).Str("venue", p.VenueID).Msg("skipping malformed pair")
			continue
		}
		edges = append(edges, edge)
	}
	return edges, nil
}

// TokenPriceUSD returns the token's USD price, zero when the provider
// does not track it.
func (c *Client) TokenPriceUSD(ctx context.Context, token domain.Token) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/v1/price?chain=%s&token=%s", c.baseURL, token.ChainID.String(), url.QueryEscape(string(token.Address)))
	var resp priceResponse
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return decimal.Zero, err
	}
	if resp.PriceUSD == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(resp.PriceUSD)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pairdata request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pairdata returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("pairdata read body: %w", err)
	}
	return sonic.Unmarshal(body, out)
}

func (p pairDTO) toEdge(chainID domain.ChainID) (domain.Edge, error) {
	reserveA, ok := new(big.Int).SetString(p.ReserveA, 10)
	if !ok {
		return domain.Edge{}, fmt.Errorf("bad reserveA %q", p.ReserveA)
	}
	reserveB, ok := new(big.Int).SetString(p.ReserveB, 10)
	if !ok {
		return domain.Edge{}, fmt.Errorf("bad reserveB %q", p.ReserveB)
	}
	liquidity, err := decimal.NewFromString(p.LiquidityUSD)
	if err != nil {
		return domain.Edge{}, fmt.Errorf("bad liquidityUsd %q: %w", p.LiquidityUSD, err)
	}
	return domain.Edge{
		TokenA: domain.Token{
			ChainID:  chainID,
			Address:  domain.NormalizeAddress(p.TokenA.Address),
			Symbol:   p.TokenA.Symbol,
			Decimals: p.TokenA.Decimals,
		},
		TokenB: domain.Token{
			ChainID:  chainID,
			Address:  domain.NormalizeAddress(p.TokenB.Address),
			Symbol:   p.TokenB.Symbol,
			Decimals: p.TokenB.Decimals,
		},
		VenueID:        p.VenueID,
		LiquidityUSD:   liquidity,
		ReserveA:       reserveA,
		ReserveB:       reserveB,
		LastVerifiedAt: time.Unix(p.UpdatedAt, 0),
	}, nil
}
