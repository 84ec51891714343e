// Package table builds the sortable, searchable asset table shown by the
// dashboard.
package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/cryptodash/pkg/models"
)

// SortKey names a sortable column.
type SortKey string

const (
	KeyRank      SortKey = "rank"
	KeyName      SortKey = "name"
	KeySymbol    SortKey = "symbol"
	KeyPrice     SortKey = "price"
	KeyMarketCap SortKey = "marketCap"
	KeyVolume    SortKey = "volume"
	KeyChange1h  SortKey = "change1h"
	KeyChange24h SortKey = "change24h"
	KeyChange7d  SortKey = "change7d"
	KeySupply    SortKey = "supply"
)

// SortDirection is ascending or descending.
type SortDirection string

const (
	Ascending  SortDirection = "ascending"
	Descending SortDirection = "descending"
)

// SortConfig is the current sort column and direction.
type SortConfig struct {
	Key       SortKey       `json:"key"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders by market cap, largest first.
var DefaultSort = SortConfig{Key: KeyMarketCap, Direction: Descending}

// RequestSort returns the config after the user clicks column key:
// clicking the active ascending column flips it to descending, anything
// else sorts ascending.
func RequestSort(current SortConfig, key SortKey) SortConfig {
	dir := Ascending
	if current.Key == key && current.Direction == Ascending {
		dir = Descending
	}
	return SortConfig{Key: key, Direction: dir}
}

// ParseSortKey accepts the column names used in query strings and flags.
func ParseSortKey(s string) (SortKey, error) {
	switch strings.ToLower(s) {
	case "", "marketcap", "market_cap", "mcap":
		return KeyMarketCap, nil
	case "rank":
		return KeyRank, nil
	case "name":
		return KeyName, nil
	case "symbol":
		return KeySymbol, nil
	case "price":
		return KeyPrice, nil
	case "volume", "volume24h":
		return KeyVolume, nil
	case "change1h", "1h":
		return KeyChange1h, nil
	case "change", "change24h", "24h":
		return KeyChange24h, nil
	case "change7d", "7d":
		return KeyChange7d, nil
	case "supply":
		return KeySupply, nil
	default:
		return "", fmt.Errorf("unknown sort key %q", s)
	}
}

// ParseDirection accepts asc/ascending and desc/descending.
func ParseDirection(s string) (SortDirection, error) {
	switch strings.ToLower(s) {
	case "asc", "ascending":
		return Ascending, nil
	case "", "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("unknown sort direction %q", s)
	}
}

func numeric(key SortKey, a models.Asset) (decimal.Decimal, bool) {
	switch key {
	case KeyRank:
		return a.RankNumber()
	case KeyPrice:
		return a.Price()
	case KeyMarketCap:
		return a.MarketCap()
	case KeyVolume:
		return a.Volume24h()
	case KeyChange1h:
		return a.Change1h()
	case KeyChange24h:
		return a.Change24h()
	case KeyChange7d:
		return a.Change7d()
	case KeySupply:
		return a.CirculatingSupply()
	}
	return decimal.Zero, false
}

// compare orders a and b by key. Rows with missing numbers sort last in
// either direction.
func compare(key SortKey, a, b models.Asset) (c int, missing int) {
	switch key {
	case KeyName:
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)), 0
	case KeySymbol:
		return strings.Compare(a.Symbol, b.Symbol), 0
	}
	va, okA := numeric(key, a)
	vb, okB := numeric(key, b)
	switch {
	case !okA && !okB:
		return 0, 0
	case !okA:
		return 0, 1
	case !okB:
		return 0, -1
	}
	return va.Cmp(vb), 0
}

// Sort returns a sorted copy of assets. Equal rows keep their input order.
func Sort(assets []models.Asset, cfg SortConfig) []models.Asset {
	out := make([]models.Asset, len(assets))
	copy(out, assets)
	sort.SliceStable(out, func(i, j int) bool {
		c, missing := compare(cfg.Key, out[i], out[j])
		if missing != 0 {
			return missing < 0
		}
		if cfg.Direction == Descending {
			return c > 0
		}
		return c < 0
	})
	return out
}

// Filter keeps assets whose name or symbol contains query, ignoring case.
// An empty query keeps everything.
func Filter(assets []models.Asset, query string) []models.Asset {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return assets
	}
	var out []models.Asset
	for _, a := range assets {
		if strings.Contains(strings.ToLower(a.Name), q) || strings.Contains(strings.ToLower(a.Symbol), q) {
			out = append(out, a)
		}
	}
	return out
}

// Options selects the rows of a View.
type Options struct {
	Query         string
	Sort          SortConfig
	FavoritesOnly bool
	Limit         int
}

// Row is an asset annotated with its favorite flag.
type Row struct {
	models.Asset
	Favorite bool `json:"favorite"`
}

// View filters, sorts and annotates assets. Favorites are keyed by asset id
// or symbol.
func View(assets []models.Asset, fav models.Favorites, opts Options) []Row {
	cfg := opts.Sort
	if cfg.Key == "" {
		cfg = DefaultSort
	}

	sorted := Sort(Filter(assets, opts.Query), cfg)
	rows := make([]Row, 0, len(sorted))
	for _, a := range sorted {
		isFav := fav[a.ID] || fav[a.Symbol]
		if opts.FavoritesOnly && !isFav {
			continue
		}
		rows = append(rows, Row{Asset: a, Favorite: isFav})
		if opts.Limit > 0 && len(rows) == opts.Limit {
			break
		}
	}
	return rows
}
