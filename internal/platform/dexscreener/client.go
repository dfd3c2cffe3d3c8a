// Package dexscreener implements the DEX quote source on top of the
// DexScreener public API.
package dexscreener

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// chainIDs maps chains to DexScreener chain identifiers.
var chainIDs = map[domain.Chain]string{
	domain.ChainEthereum: "ethereum",
	domain.ChainPolygon:  "polygon",
	domain.ChainBSC:      "bsc",
}

// Client is the REST client for the DexScreener API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a DexScreener client. baseURL is the API root, e.g.
// "https://api.dexscreener.com".
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type apiPair struct {
	ChainID   string `json:"chainId"`
	DexID     string `json:"dexId"`
	PriceUSD  string `json:"priceUsd"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
}

type apiTokenResponse struct {
	Pairs []apiPair `json:"pairs"`
}

// Quote returns the deepest pair for the given token contract on the given
// chain. It returns domain.ErrNoQuote when DexScreener knows no pair with a
// usable price on that chain.
func (c *Client) Quote(ctx context.Context, chain domain.Chain, contract string) (domain.DexQuote, error) {
	chainID, ok := chainIDs[chain]
	if !ok {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: %w: %s", domain.ErrUnsupportedChain, chain)
	}

	path := fmt.Sprintf("/latest/dex/tokens/%s", url.PathEscape(contract))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: unexpected status %d", resp.StatusCode)
	}

	var body apiTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: decode response: %w", err)
	}

	best, found := domain.DexQuote{}, false
	for _, p := range body.Pairs {
		if p.ChainID != chainID {
			continue
		}
		price, err := strconv.ParseFloat(p.PriceUSD, 64)
		if err != nil || price <= 0 {
			continue
		}
		if !found || p.Liquidity.USD > best.LiquidityUSD {
			best = domain.DexQuote{
				PriceUSD:     price,
				LiquidityUSD: p.Liquidity.USD,
				Venue:        p.DexID,
			}
			found = true
		}
	}
	if !found {
		return domain.DexQuote{}, fmt.Errorf("dexscreener: %s on %s: %w", contract, chain, domain.ErrNoQuote)
	}

	return best, nil
}
