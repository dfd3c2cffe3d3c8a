// Package coingecko implements the reference price source on top of the
// CoinGecko REST API.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/arbitrader/arbitrader/internal/domain"
)

// coinIDs maps tracked symbols to CoinGecko coin identifiers.
var coinIDs = map[domain.Symbol]string{
	domain.SymbolETH:   "ethereum",
	domain.SymbolUSDT:  "tether",
	domain.SymbolUSDC:  "usd-coin",
	domain.SymbolBNB:   "binancecoin",
	domain.SymbolMATIC: "matic-network",
}

// platformIDs maps chains to CoinGecko asset platform identifiers used by
// the contract-price endpoint.
var platformIDs = map[domain.Chain]string{
	domain.ChainEthereum: "ethereum",
	domain.ChainPolygon:  "polygon-pos",
	domain.ChainBSC:      "binance-smart-chain",
}

// Client is the REST client for the CoinGecko API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// contracts maps symbol -> chain -> contract address and determines
	// which chains a token is quoted on.
	contracts map[domain.Symbol]map[domain.Chain]string
}

// New creates a CoinGecko client. baseURL is the API root, e.g.
// "https://api.coingecko.com/api/v3". apiKey may be empty for the public
// tier.
func New(baseURL, apiKey string, contracts map[domain.Symbol]map[domain.Chain]string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		contracts:  contracts,
	}
}

// FetchPrices returns one ReferenceQuote per tracked token. Per-chain
// contract prices are used where available; chains without a contract quote
// fall back to the coin-level price. The coin-level fetch failing is fatal,
// a per-chain fetch failing is not.
func (c *Client) FetchPrices(ctx context.Context) ([]domain.ReferenceQuote, error) {
	base, err := c.simplePrices(ctx)
	if err != nil {
		return nil, err
	}

	byChain := make(map[domain.Chain]map[string]float64, len(platformIDs))
	for chain := range platformIDs {
		prices, err := c.contractPrices(ctx, chain)
		if err != nil {
			continue
		}
		byChain[chain] = prices
	}

	now := time.Now().UTC()
	quotes := make([]domain.ReferenceQuote, 0, len(coinIDs))
	for _, sym := range domain.SupportedSymbols() {
		chainPrices := make(map[domain.Chain]float64)
		for chain, addr := range c.contracts[sym] {
			if p, ok := byChain[chain][strings.ToLower(addr)]; ok && p > 0 {
				chainPrices[chain] = p
			} else if p, ok := base[sym]; ok && p > 0 {
				chainPrices[chain] = p
			}
		}
		if len(chainPrices) == 0 {
			continue
		}
		quotes = append(quotes, domain.ReferenceQuote{
			Symbol:      sym,
			ChainPrices: chainPrices,
			FetchedAt:   now,
		})
	}

	return quotes, nil
}

// simplePrices fetches the coin-level USD price for every tracked symbol.
func (c *Client) simplePrices(ctx context.Context) (map[domain.Symbol]float64, error) {
	ids := make([]string, 0, len(coinIDs))
	for _, id := range coinIDs {
		ids = append(ids, id)
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := c.doGet(ctx, "/simple/price?"+params.Encode(), &raw); err != nil {
		return nil, fmt.Errorf("coingecko: simple price: %w", err)
	}

	out := make(map[domain.Symbol]float64, len(coinIDs))
	for sym, id := range coinIDs {
		if entry, ok := raw[id]; ok && entry.USD > 0 {
			out[sym] = entry.USD
		}
	}
	return out, nil
}

// contractPrices fetches USD prices by contract address on one chain. Keys
// of the returned map are lowercased addresses.
func (c *Client) contractPrices(ctx context.Context, chain domain.Chain) (map[string]float64, error) {
	platform, ok := platformIDs[chain]
	if !ok {
		return nil, fmt.Errorf("coingecko: %w: %s", domain.ErrUnsupportedChain, chain)
	}

	var addrs []string
	for sym := range c.contracts {
		if addr := c.contracts[sym][chain]; addr != "" {
			addrs = append(addrs, strings.ToLower(addr))
		}
	}
	if len(addrs) == 0 {
		return map[string]float64{}, nil
	}

	params := url.Values{}
	params.Set("contract_addresses", strings.Join(addrs, ","))
	params.Set("vs_currencies", "usd")

	path := fmt.Sprintf("/simple/token_price/%s?%s", url.PathEscape(platform), params.Encode())

	var raw map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := c.doGet(ctx, path, &raw); err != nil {
		return nil, fmt.Errorf("coingecko: token price %s: %w", chain, err)
	}

	out := make(map[string]float64, len(raw))
	for addr, entry := range raw {
		if entry.USD > 0 {
			out[strings.ToLower(addr)] = entry.USD
		}
	}
	return out, nil
}

func (c *Client) doGet(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-cg-demo-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
