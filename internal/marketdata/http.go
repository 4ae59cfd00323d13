// Package marketdata implements the engine's market-data and simulator
// ports over an HTTP oracle. The client never retries inside one
// admission decision; a timeout or bad response surfaces as an error
// and fails the owning gate.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"trade-sentinel/internal/engine"
	"trade-sentinel/internal/gate"
)

// DefaultTimeout bounds one oracle request. Kept well under the
// admission decision deadline so a slow oracle fails one gate instead
// of the whole evaluation.
const DefaultTimeout = 1500 * time.Millisecond

// Client talks to the market-data oracle.
type Client struct {
	baseURL string
	client  *http.Client
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a client for the oracle at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile-time port checks.
var (
	_ engine.MarketData = (*Client)(nil)
	_ engine.Simulator  = (*Client)(nil)
)

// factsResponse mirrors MarketFacts on the wire; absent keys stay nil.
type factsResponse struct {
	Bid              *float64 `json:"bid"`
	Ask              *float64 `json:"ask"`
	PoolLiquidityUSD *float64 `json:"pool_liquidity_usd"`
	TokenCreatedAt   *int64   `json:"token_created_at"`
}

type simulateResponse struct {
	Honeypot           bool    `json:"honeypot"`
	BuyTaxPct          float64 `json:"buy_tax_pct"`
	SellTaxPct         float64 `json:"sell_tax_pct"`
	LiquidityImpactPct float64 `json:"liquidity_impact_pct"`
}

// Facts fetches price and liquidity observations for a token.
func (c *Client) Facts(ctx context.Context, token string) (*gate.MarketFacts, error) {
	var resp factsResponse
	if err := c.get(ctx, "/v1/facts", token, &resp); err != nil {
		return nil, err
	}
	return &gate.MarketFacts{
		Bid:              resp.Bid,
		Ask:              resp.Ask,
		PoolLiquidityUSD: resp.PoolLiquidityUSD,
		TokenCreatedAt:   resp.TokenCreatedAt,
	}, nil
}

// Simulate runs the pre-trade buy/sell simulation for a token.
func (c *Client) Simulate(ctx context.Context, token string) (*gate.SimulationResult, error) {
	var resp simulateResponse
	if err := c.get(ctx, "/v1/simulate", token, &resp); err != nil {
		return nil, err
	}
	return &gate.SimulationResult{
		Honeypot:           resp.Honeypot,
		BuyTaxPct:          resp.BuyTaxPct,
		SellTaxPct:         resp.SellTaxPct,
		LiquidityImpactPct: resp.LiquidityImpactPct,
	}, nil
}

func (c *Client) get(ctx context.Context, path, token string, out interface{}) error {
	u := fmt.Sprintf("%s%s?token=%s", c.baseURL, path, url.QueryEscape(token))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("oracle status %d: %s", resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode oracle response: %w", err)
	}
	return nil
}
