package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a single row of the CoinCap asset listing. Numeric fields arrive
// as decimal strings and are kept verbatim; use the accessors to parse them.
type Asset struct {
	ID                string `json:"id"`
	Rank              string `json:"rank,omitempty"`
	Symbol            string `json:"symbol"`
	Name              string `json:"name"`
	Supply            string `json:"supply,omitempty"`
	MaxSupply         string `json:"maxSupply,omitempty"`
	MarketCapUsd      string `json:"marketCapUsd,omitempty"`
	VolumeUsd24Hr     string `json:"volumeUsd24Hr,omitempty"`
	PriceUsd          string `json:"priceUsd,omitempty"`
	ChangePercent1Hr  string `json:"changePercent1Hr,omitempty"`
	ChangePercent24Hr string `json:"changePercent24Hr,omitempty"`
	ChangePercent7d   string `json:"changePercent7d,omitempty"`
	Vwap24Hr          string `json:"vwap24Hr,omitempty"`
	Explorer          string `json:"explorer,omitempty"`
}

// MarketCap returns the parsed market capitalization in USD.
func (a Asset) MarketCap() (decimal.Decimal, bool) { return ParseDecimal(a.MarketCapUsd) }

// Volume24h returns the parsed 24h trading volume in USD.
func (a Asset) Volume24h() (decimal.Decimal, bool) { return ParseDecimal(a.VolumeUsd24Hr) }

// Price returns the parsed price in USD.
func (a Asset) Price() (decimal.Decimal, bool) { return ParseDecimal(a.PriceUsd) }

// CirculatingSupply returns the parsed circulating supply.
func (a Asset) CirculatingSupply() (decimal.Decimal, bool) { return ParseDecimal(a.Supply) }

// Change1h returns the parsed 1h percent change.
func (a Asset) Change1h() (decimal.Decimal, bool) { return ParseDecimal(a.ChangePercent1Hr) }

// Change24h returns the parsed 24h percent change.
func (a Asset) Change24h() (decimal.Decimal, bool) { return ParseDecimal(a.ChangePercent24Hr) }

// Change7d returns the parsed 7d percent change.
func (a Asset) Change7d() (decimal.Decimal, bool) { return ParseDecimal(a.ChangePercent7d) }

// RankNumber returns the parsed rank.
func (a Asset) RankNumber() (decimal.Decimal, bool) { return ParseDecimal(a.Rank) }

// ParseDecimal parses a wire value. Empty, "null", NaN, Inf and other
// unparseable input report ok=false.
func ParseDecimal(s string) (decimal.Decimal, bool) {
	if s == "" || s == "null" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// HistoricalPoint is one point of an asset's price history.
type HistoricalPoint struct {
	PriceUsd string `json:"priceUsd"`
	Time     int64  `json:"time"` // ms since epoch
	Date     string `json:"date,omitempty"`
}

// Timestamp returns the point's instant.
func (p HistoricalPoint) Timestamp() time.Time { return time.UnixMilli(p.Time).UTC() }

// Price returns the parsed price in USD.
func (p HistoricalPoint) Price() (decimal.Decimal, bool) { return ParseDecimal(p.PriceUsd) }

// Favorites maps an asset identifier to its favorite flag.
type Favorites map[string]bool

// Clone returns a copy safe to hand to callers.
func (f Favorites) Clone() Favorites {
	out := make(Favorites, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Direction is the sign of an asset's 24h move.
type Direction string

const (
	DirectionUp      Direction = "up"
	DirectionDown    Direction = "down"
	DirectionNeutral Direction = "neutral"
)

// Snapshot is an immutable asset listing as returned by one successful fetch.
type Snapshot struct {
	Version   uint64    `json:"version"`
	FetchedAt time.Time `json:"fetched_at"`
	Assets    []Asset   `json:"assets"`
}

// Len returns the number of assets, tolerating a nil snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Assets)
}

// Find returns the first asset with the given symbol.
func (s *Snapshot) Find(symbol string) (Asset, bool) {
	if s == nil {
		return Asset{}, false
	}
	return FindAsset(s.Assets, symbol)
}

// FindAsset returns the first asset in assets with the given symbol.
func FindAsset(assets []Asset, symbol string) (Asset, bool) {
	for _, a := range assets {
		if a.Symbol == symbol {
			return a, true
		}
	}
	return Asset{}, false
}
