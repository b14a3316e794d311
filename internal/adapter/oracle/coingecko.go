package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const simplePricePath = "/api/v3/simple/price?ids=solana&vs_currencies=usd"

// CoinGeckoFetcher implements ports.PriceFetcher against the CoinGecko
// simple-price endpoint.
type CoinGeckoFetcher struct {
	baseURL string
	client  *http.Client
}

// NewCoinGeckoFetcher creates a fetcher for the given API base URL.
func NewCoinGeckoFetcher(baseURL string, timeout time.Duration) *CoinGeckoFetcher {
	return &CoinGeckoFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchSolPriceUSD retrieves the current SOL/USD price.
func (f *CoinGeckoFetcher) FetchSolPriceUSD(ctx context.Context) (decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+simplePricePath, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build price request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("fetch price: unexpected status %d", resp.StatusCode)
	}

	// Response shape: {"solana":{"usd":200.15}}
	var body struct {
		Solana struct {
			USD json.Number `json:"usd"`
		} `json:"solana"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode price response: %w", err)
	}

	price, err := decimal.NewFromString(body.Solana.USD.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", body.Solana.USD, err)
	}
	return price, nil
}
