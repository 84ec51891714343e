// Package metrics derives market-wide aggregates from an asset listing:
// total market capitalization, total 24h volume, per-symbol dominance and
// the direction of a symbol's 24h move.
package metrics

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/cryptodash/pkg/models"
)

var (
	trillion = decimal.New(1, 12)
	billion  = decimal.New(1, 9)
	hundred  = decimal.NewFromInt(100)
)

// SumMarketCap returns the unscaled sum of market caps in USD.
// Unparseable values count as zero.
func SumMarketCap(assets []models.Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		if v, ok := a.MarketCap(); ok {
			total = total.Add(v)
		}
	}
	return total
}

// SumVolume returns the unscaled sum of 24h volumes in USD.
func SumVolume(assets []models.Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		if v, ok := a.Volume24h(); ok {
			total = total.Add(v)
		}
	}
	return total
}

// TotalMarketCap returns the total market capitalization in trillions of USD.
func TotalMarketCap(assets []models.Asset) float64 {
	return SumMarketCap(assets).Div(trillion).InexactFloat64()
}

// TotalVolume returns the total 24h volume in billions of USD, rounded to
// two decimals.
func TotalVolume(assets []models.Asset) string {
	return SumVolume(assets).Div(billion).StringFixed(2)
}

// Dominance returns symbol's share of the total market cap as a percentage
// with two decimals. It returns "0" when the symbol is absent, its cap is
// unparseable, or the total is zero.
func Dominance(assets []models.Asset, symbol string) string {
	return dominance(assets, SumMarketCap(assets), symbol)
}

func dominance(assets []models.Asset, total decimal.Decimal, symbol string) string {
	a, ok := models.FindAsset(assets, symbol)
	if !ok || total.IsZero() {
		return "0"
	}
	mc, ok := a.MarketCap()
	if !ok {
		return "0"
	}
	return mc.Div(total).Mul(hundred).StringFixed(2)
}

// MarketDirection reports whether symbol moved up or down over 24h.
// A missing symbol or a non-numeric change is neutral; zero counts as down.
func MarketDirection(assets []models.Asset, symbol string) models.Direction {
	a, ok := models.FindAsset(assets, symbol)
	if !ok {
		return models.DirectionNeutral
	}
	change, ok := a.Change24h()
	if !ok {
		return models.DirectionNeutral
	}
	if change.IsPositive() {
		return models.DirectionUp
	}
	return models.DirectionDown
}

// Summary is the set of aggregates shown in the dashboard header.
type Summary struct {
	Version         uint64           `json:"version"`
	AssetCount      int              `json:"asset_count"`
	TotalMarketCap  float64          `json:"total_market_cap"` // trillions USD
	TotalVolume     string           `json:"total_volume"`     // billions USD
	BTCDominance    string           `json:"btc_dominance"`
	ETHDominance    string           `json:"eth_dominance"`
	MarketDirection models.Direction `json:"market_direction"` // BTC 24h
}

// Summarize computes a Summary for the given snapshot.
func Summarize(snap *models.Snapshot) Summary {
	var assets []models.Asset
	var version uint64
	if snap != nil {
		assets = snap.Assets
		version = snap.Version
	}
	total := SumMarketCap(assets)
	return Summary{
		Version:         version,
		AssetCount:      len(assets),
		TotalMarketCap:  total.Div(trillion).InexactFloat64(),
		TotalVolume:     TotalVolume(assets),
		BTCDominance:    dominance(assets, total, "BTC"),
		ETHDominance:    dominance(assets, total, "ETH"),
		MarketDirection: MarketDirection(assets, "BTC"),
	}
}

// Engine memoizes the Summary of the most recent snapshot. It recomputes
// only when handed a snapshot with a different version.
type Engine struct {
	mu      sync.Mutex
	version uint64
	valid   bool
	summary Summary

	computations int
}

// NewEngine creates an empty engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Summary returns the aggregates for snap, reusing the cached result when
// snap has the version seen last time.
func (e *Engine) Summary(snap *models.Snapshot) Summary {
	var version uint64
	if snap != nil {
		version = snap.Version
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.valid && e.version == version {
		return e.summary
	}
	e.summary = Summarize(snap)
	e.version = version
	e.valid = true
	e.computations++
	return e.summary
}

// Computations returns how many times the summary was recomputed.
func (e *Engine) Computations() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.computations
}
