package api

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seenimoa/cryptodash/internal/metrics"
	"github.com/seenimoa/cryptodash/internal/table"
	"github.com/seenimoa/cryptodash/pkg/models"
)

// AssetsResponse is the body of GET /api/v1/assets.
type AssetsResponse struct {
	Version   uint64           `json:"version"`
	FetchedAt *time.Time       `json:"fetched_at,omitempty"`
	Sort      table.SortConfig `json:"sort"`
	Count     int              `json:"count"`
	Assets    []table.Row      `json:"assets"`
}

// AssetResponse is the body of GET /api/v1/assets/{symbol}.
type AssetResponse struct {
	models.Asset
	Favorite  bool             `json:"favorite"`
	Dominance string           `json:"dominance"`
	Direction models.Direction `json:"direction"`
}

// HistoryResponse is the body of GET /api/v1/history.
type HistoryResponse struct {
	Asset     string                   `json:"asset"`
	Interval  string                   `json:"interval"`
	FetchedAt *time.Time               `json:"fetched_at,omitempty"`
	Points    []models.HistoricalPoint `json:"points"`
}

// MetricsResponse is the body of GET /api/v1/metrics.
type MetricsResponse struct {
	metrics.Summary
	Symbol    string           `json:"symbol,omitempty"`
	Dominance string           `json:"dominance,omitempty"`
	Direction models.Direction `json:"direction,omitempty"`
}

// FavoritesResponse is the body of GET /api/v1/favorites.
type FavoritesResponse struct {
	Favorites models.Favorites `json:"favorites"`
	IDs       []string         `json:"ids"`
}

// ToggleResponse is the body of POST /api/v1/favorites/{id}/toggle.
type ToggleResponse struct {
	ID       string `json:"id"`
	Favorite bool   `json:"favorite"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	data := map[string]interface{}{
		"status":           "ok",
		"version":          s.version,
		"snapshot_version": snap.Version,
		"assets":           snap.Len(),
		"ws_clients":       s.wsHub.ClientCount(),
	}
	if !snap.FetchedAt.IsZero() {
		data["snapshot_fetched_at"] = snap.FetchedAt
	}
	if at, ok := s.svc.HistoryFetchedAt(); ok {
		data["history_fetched_at"] = at
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

// handleAssets serves the asset table. Query params:
//
//	q          case-insensitive name/symbol filter
//	sort, dir  sort column and direction (default marketCap desc; a
//	           column without dir sorts ascending)
//	favorites  "true" keeps only favorites
//	limit      maximum rows
func (s *Server) handleAssets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sortCfg := table.DefaultSort
	if raw := q.Get("sort"); raw != "" {
		key, err := table.ParseSortKey(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sortCfg = table.SortConfig{Key: key, Direction: table.Ascending}
	}
	if raw := q.Get("dir"); raw != "" {
		dir, err := table.ParseDirection(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		sortCfg.Direction = dir
	}

	favOnly := false
	if raw := q.Get("favorites"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "favorites must be a boolean")
			return
		}
		favOnly = v
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	snap := s.svc.Snapshot()
	rows := table.View(snap.Assets, s.svc.Favorites(), table.Options{
		Query:         q.Get("q"),
		Sort:          sortCfg,
		FavoritesOnly: favOnly,
		Limit:         limit,
	})

	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: AssetsResponse{
			Version:   snap.Version,
			FetchedAt: timePtr(snap.FetchedAt),
			Sort:      sortCfg,
			Count:     len(rows),
			Assets:    rows,
		},
	})
}

func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	asset, ok := s.svc.Snapshot().Find(symbol)
	if !ok {
		writeError(w, http.StatusNotFound, "asset not found: "+symbol)
		return
	}

	fav := s.svc.Favorites()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: AssetResponse{
			Asset:     asset,
			Favorite:  fav[asset.ID] || fav[asset.Symbol],
			Dominance: s.svc.Dominance(symbol),
			Direction: s.svc.Direction(symbol),
		},
	})
}

// handleRefresh runs an out-of-band snapshot fetch. With ?history=true it
// also runs the gated history fetch.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.RefreshAssets(r.Context()); err != nil {
		s.logger.Warn("Manual asset refresh failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "asset fetch failed: "+err.Error())
		return
	}

	data := map[string]interface{}{"snapshot_version": s.svc.Snapshot().Version}
	if withHistory, _ := strconv.ParseBool(r.URL.Query().Get("history")); withHistory {
		fetched, err := s.svc.RefreshHistory(r.Context())
		if err != nil {
			s.logger.Warn("Manual history refresh failed", slog.Any("error", err))
			writeError(w, http.StatusBadGateway, "history fetch failed: "+err.Error())
			return
		}
		data["history_fetched"] = fetched
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: data})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp := HistoryResponse{Points: s.svc.History()}
	if resp.Points == nil {
		resp.Points = []models.HistoricalPoint{}
	}
	if s.cfg != nil {
		resp.Asset = s.cfg.Market.HistoryAsset
		resp.Interval = s.cfg.Market.HistoryInterval
	}
	if at, ok := s.svc.HistoryFetchedAt(); ok {
		resp.FetchedAt = &at
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	resp := MetricsResponse{Summary: s.svc.Summary()}
	if symbol := strings.ToUpper(r.URL.Query().Get("symbol")); symbol != "" {
		resp.Symbol = symbol
		resp.Dominance = s.svc.Dominance(symbol)
		resp.Direction = s.svc.Direction(symbol)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	fav := s.svc.Favorites()
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    FavoritesResponse{Favorites: fav, IDs: favoriteIDs(fav)},
	})
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	on := s.svc.ToggleFavorite(r.Context(), id)
	resp := ToggleResponse{ID: id, Favorite: on}
	s.wsHub.Broadcast(WSMessage{Type: MsgFavorite, Data: resp})

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// ============================================================
// Helpers
// ============================================================

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// favoriteIDs returns the ids flagged true, sorted.
func favoriteIDs(fav models.Favorites) []string {
	ids := make([]string, 0, len(fav))
	for id, on := range fav {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
