package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/whaletrack/engine/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// --------------------------------------------------------------------------
// Gamma API DTOs
// --------------------------------------------------------------------------

// APIMarket represents a market as returned by the Polymarket Gamma API.
// Numeric fields arrive as strings; malformed values parse to zero rather
// than failing the whole batch.
type APIMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug"`
	Category      string   `json:"category"`
	Active        flexBool `json:"active"` // API may send bool or "true"/"false" string
	Closed        bool     `json:"closed"`
	Volume        string   `json:"volume"`
	Liquidity     string   `json:"liquidity"`
	Outcomes      string   `json:"outcomes"`      // JSON-encoded: e.g. "[\"Yes\",\"No\"]"
	OutcomePrices string   `json:"outcomePrices"` // JSON-encoded: e.g. "[\"0.52\",\"0.48\"]"
	ClobTokenIDs  string   `json:"clobTokenIds"`  // JSON-encoded: e.g. "[\"123\",\"456\"]"
	CreatedAt     string   `json:"createdAt"`
	UpdatedAt     string   `json:"updatedAt"`
}

// ToDomainPoint converts a Gamma APIMarket into a point-in-time observation.
// YesPrice is the first element of outcomePrices; NoPrice is its complement.
// Order book depth is filled in later by the CLOB enrichment step.
func (m *APIMarket) ToDomainPoint(fetchedAt time.Time) domain.MarketPoint {
	p := domain.MarketPoint{
		ID:        m.ID,
		Question:  m.Question,
		Category:  m.Category,
		Slug:      m.Slug,
		FetchedAt: fetchedAt,
	}

	if v, err := strconv.ParseFloat(m.Volume, 64); err == nil {
		p.Volume = v
	}
	if l, err := strconv.ParseFloat(m.Liquidity, 64); err == nil {
		p.Liquidity = l
	}

	if prices := decodeStringArray(m.OutcomePrices); len(prices) > 0 {
		if yes, err := strconv.ParseFloat(prices[0], 64); err == nil {
			p.YesPrice = yes
			p.NoPrice = 1 - yes
		}
	}

	return p
}

// ToDomainMarket converts a Gamma APIMarket to market metadata.
func (m *APIMarket) ToDomainMarket() domain.Market {
	dm := domain.Market{
		ID:       m.ID,
		Question: m.Question,
		Category: m.Category,
		Slug:     m.Slug,
	}
	if dm.Question == "" {
		dm.Question = "Unknown"
	}

	for i, id := range decodeStringArray(m.ClobTokenIDs) {
		if i >= 2 {
			break
		}
		dm.TokenIDs[i] = id
	}

	if t, err := time.Parse(time.RFC3339, m.CreatedAt); err == nil {
		dm.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, m.UpdatedAt); err == nil {
		dm.UpdatedAt = t
	}

	return dm
}

// decodeStringArray parses Gamma's JSON-encoded string arrays (the API nests
// JSON inside JSON for outcomes, prices and token IDs).
func decodeStringArray(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// --------------------------------------------------------------------------
// CLOB API DTOs
// --------------------------------------------------------------------------

// APIBook represents an order book snapshot from the CLOB API.
type APIBook struct {
	Market  string          `json:"market"`
	AssetID string          `json:"asset_id"`
	Bids    []APIPriceLevel `json:"bids"`
	Asks    []APIPriceLevel `json:"asks"`
}

// APIPriceLevel is a single bid/ask level in the CLOB order book.
type APIPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookDepth summarizes an order book as dollar-weighted depth per side.
type BookDepth struct {
	BuyDepth  float64 // sum of price*size across bids
	SellDepth float64 // sum of price*size across asks
	BestBid   float64
	BestAsk   float64
}

// ToDepth collapses the book into per-side dollar depth.
func (b *APIBook) ToDepth() BookDepth {
	var d BookDepth
	for _, lvl := range b.Bids {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		d.BuyDepth += p * s
		if p > d.BestBid {
			d.BestBid = p
		}
	}
	for _, lvl := range b.Asks {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		s, _ := strconv.ParseFloat(lvl.Size, 64)
		d.SellDepth += p * s
		if d.BestAsk == 0 || p < d.BestAsk {
			d.BestAsk = p
		}
	}
	return d
}

// APITrade represents a fill reported by the CLOB trades endpoint.
type APITrade struct {
	Market    string `json:"market"`
	AssetID   string `json:"asset_id"`
	Side      string `json:"side"` // "BUY" or "SELL"
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"` // unix seconds as string
}

// ToDomainTrade converts an APITrade to a domain.MarketTrade. A trade with
// an unparseable timestamp gets the supplied fallback time.
func (t *APITrade) ToDomainTrade(fallback time.Time) domain.MarketTrade {
	mt := domain.MarketTrade{
		MarketID:  t.Market,
		Side:      t.Side,
		Timestamp: fallback,
	}
	mt.Price, _ = strconv.ParseFloat(t.Price, 64)
	mt.Size, _ = strconv.ParseFloat(t.Size, 64)
	if ts, err := strconv.ParseInt(t.Timestamp, 10, 64); err == nil {
		mt.Timestamp = time.Unix(ts, 0)
	}
	return mt
}
