package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// ClobClient is the REST client for the Polymarket CLOB API. Only the public
// market-data endpoints are used; no keys or signing are involved.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewClobClient creates a new CLOB API client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetOrderBook fetches the current book for a token and collapses it to
// dollar depth per side.
func (c *ClobClient) GetOrderBook(ctx context.Context, tokenID string) (BookDepth, error) {
	params := url.Values{}
	params.Set("token_id", tokenID)

	body, err := c.doGet(ctx, "/book?"+params.Encode())
	if err != nil {
		return BookDepth{}, fmt.Errorf("polymarket/clob: get book for %s: %w", tokenID, err)
	}

	var book APIBook
	if err := json.Unmarshal(body, &book); err != nil {
		return BookDepth{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}

	return book.ToDepth(), nil
}

// GetRecentTrades returns the most recent fills for a market, newest first.
func (c *ClobClient) GetRecentTrades(ctx context.Context, marketID string, limit int) ([]domain.MarketTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	params := url.Values{}
	params.Set("market", marketID)
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.doGet(ctx, "/trades?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("polymarket/clob: get trades for %s: %w", marketID, err)
	}

	var apiTrades []APITrade
	if err := json.Unmarshal(body, &apiTrades); err != nil {
		return nil, fmt.Errorf("polymarket/clob: decode trades: %w", err)
	}

	now := time.Now()
	trades := make([]domain.MarketTrade, 0, len(apiTrades))
	for i := range apiTrades {
		t := apiTrades[i].ToDomainTrade(now)
		if t.MarketID == "" {
			t.MarketID = marketID
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// doGet sends an unauthenticated GET request to the CLOB API.
func (c *ClobClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
