// Package domain defines the core types of the whale tracker: market
// snapshots, whale signals, scored recommendations, the paper-trading ledger,
// and the store/cache interfaces their persistence is hidden behind.
package domain

import "time"

// Market is the slowly-changing metadata of a tracked prediction market.
type Market struct {
	ID        string
	Question  string
	Category  string
	Slug      string
	TokenIDs  [2]string // YES/NO ERC-1155 token IDs, may be empty
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarketPoint is one market's metric reading taken at a poll tick. Values
// come from the Gamma market listing, optionally enriched with CLOB order
// book depth. A point is immutable once its snapshot is written.
type MarketPoint struct {
	ID        string
	Question  string
	Category  string
	Slug      string
	Volume    float64 // lifetime traded volume, USD
	Liquidity float64 // current posted liquidity, USD
	YesPrice  float64 // in [0,1]; first element of outcomePrices
	NoPrice   float64 // 1 - YesPrice
	BuyDepth  float64 // total bid size on the YES book; 0 when book unavailable
	SellDepth float64 // total ask size on the YES book; 0 when book unavailable
	FetchedAt time.Time
}

// Snapshot is the full set of market readings for one poll tick, ordered as
// returned by the upstream listing. Snapshots are append-only and evicted
// oldest-first once the retention cap is exceeded.
type Snapshot struct {
	Timestamp time.Time
	Markets   []MarketPoint
}

// Point returns the reading for the given market ID, or false when the
// market was not present in this snapshot (e.g. a new listing).
func (s Snapshot) Point(marketID string) (MarketPoint, bool) {
	for i := range s.Markets {
		if s.Markets[i].ID == marketID {
			return s.Markets[i], true
		}
	}
	return MarketPoint{}, false
}

// MarketTrade is a single executed trade from the upstream CLOB trade feed,
// used by the large-order signal. Value is price*size in USD.
type MarketTrade struct {
	MarketID  string
	Price     float64
	Size      float64
	Side      string // "BUY" or "SELL"
	Timestamp time.Time
}

// Value returns the notional USD value of the trade.
func (t MarketTrade) Value() float64 {
	return t.Price * t.Size
}
