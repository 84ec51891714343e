// Package market owns the dashboard's live state: the current asset
// snapshot, the reference asset's price history and the favorites set.
//
// A Service polls the asset listing on a fixed interval and refreshes the
// history at most once per freshness window. A failed fetch leaves the
// previous state in place; nothing is retried before the next tick.
package market

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/cryptodash/internal/favorites"
	"github.com/seenimoa/cryptodash/internal/metrics"
	"github.com/seenimoa/cryptodash/pkg/models"
)

// ErrAlreadyStarted is returned by Start on a running service.
var ErrAlreadyStarted = errors.New("market service already started")

// Source fetches market data. *datasource.CoinCap satisfies it.
type Source interface {
	GetAssets(ctx context.Context) ([]models.Asset, error)
	GetHistory(ctx context.Context, assetID, interval string, start, end time.Time) ([]models.HistoricalPoint, error)
}

// Config controls polling and the history freshness gate.
type Config struct {
	PollInterval    time.Duration
	HistoryAsset    string
	HistoryInterval string
	HistoryWindow   time.Duration
	HistoryTTL      time.Duration
}

// DefaultConfig polls every 10s and keeps 60 daily bitcoin points,
// refreshed at most once a day.
func DefaultConfig() Config {
	return Config{
		PollInterval:    10 * time.Second,
		HistoryAsset:    "bitcoin",
		HistoryInterval: "d1",
		HistoryWindow:   60 * 24 * time.Hour,
		HistoryTTL:      24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.HistoryAsset == "" {
		c.HistoryAsset = d.HistoryAsset
	}
	if c.HistoryInterval == "" {
		c.HistoryInterval = d.HistoryInterval
	}
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = d.HistoryWindow
	}
	if c.HistoryTTL <= 0 {
		c.HistoryTTL = d.HistoryTTL
	}
	return c
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service is the single owner of market state.
type Service struct {
	src    Source
	fav    *favorites.Store
	engine *metrics.Engine
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	snap    atomic.Pointer[models.Snapshot]
	pubMu   sync.Mutex // orders version bumps, stores and notifications
	version uint64

	histFetch sync.Mutex // held for a whole RefreshHistory call
	histMu    sync.RWMutex
	history   []models.HistoricalPoint
	histAt    time.Time

	listenMu  sync.RWMutex
	listeners map[int]func(*models.Snapshot)
	nextID    int

	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates a stopped service. fav may be nil.
func NewService(src Source, fav *favorites.Store, cfg Config, opts ...Option) *Service {
	s := &Service{
		src:       src,
		fav:       fav,
		engine:    metrics.NewEngine(),
		cfg:       cfg.withDefaults(),
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]func(*models.Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(&models.Snapshot{Assets: []models.Asset{}})
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() Config { return s.cfg }

// --- Lifecycle ---

// Start loads favorites, fetches the snapshot and history once, then polls
// the snapshot every PollInterval until Stop is called or ctx ends.
// Fetch failures are logged; Start only fails if already running.
func (s *Service) Start(ctx context.Context) error {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	if s.fav != nil {
		s.fav.Load(ctx)
	}

	ctx, s.cancel = context.WithCancel(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.RefreshAssets(gctx); err != nil {
			s.logger.Warn("Initial asset fetch failed", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.RefreshHistory(gctx); err != nil {
			s.logger.Warn("Initial history fetch failed", slog.Any("error", err))
		}
		return nil
	})
	_ = g.Wait()

	s.wg.Add(1)
	go s.poll(ctx)
	return nil
}

func (s *Service) poll(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Asset polling panic recovered", slog.Any("panic", r))
		}
	}()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Asset polling stopped")
			return
		case <-ticker.C:
			if err := s.RefreshAssets(ctx); err != nil {
				s.logger.Warn("Asset fetch failed", slog.Any("error", err))
			}
		}
	}
}

// Stop cancels polling and waits for the loop to exit. It is safe to call
// more than once.
func (s *Service) Stop() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.cancel = nil
}

// --- Fetching ---

// RefreshAssets fetches the asset listing once. On success the snapshot is
// replaced wholesale and listeners are notified; on failure the previous
// snapshot is kept and the error is returned.
func (s *Service) RefreshAssets(ctx context.Context) error {
	assets, err := s.src.GetAssets(ctx)
	if err != nil {
		return err
	}
	if assets == nil {
		assets = []models.Asset{}
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.version++
	snap := &models.Snapshot{
		Version:   s.version,
		FetchedAt: s.now(),
		Assets:    assets,
	}
	s.snap.Store(snap)
	s.logger.Debug("Asset snapshot replaced",
		slog.Uint64("version", snap.Version),
		slog.Int("assets", len(assets)))

	s.notify(snap)
	return nil
}

// RefreshHistory fetches the reference asset's history unless the last
// successful fetch is younger than HistoryTTL, in which case it returns
// (false, nil) without touching the network.
func (s *Service) RefreshHistory(ctx context.Context) (bool, error) {
	s.histFetch.Lock()
	defer s.histFetch.Unlock()

	now := s.now()
	if last, ok := s.HistoryFetchedAt(); ok && now.Sub(last) < s.cfg.HistoryTTL {
		return false, nil
	}

	points, err := s.src.GetHistory(ctx, s.cfg.HistoryAsset, s.cfg.HistoryInterval, now.Add(-s.cfg.HistoryWindow), now)
	if err != nil {
		return false, err
	}
	if points == nil {
		points = []models.HistoricalPoint{}
	}

	s.histMu.Lock()
	s.history = points
	s.histAt = now
	s.histMu.Unlock()

	s.logger.Info("Historical series refreshed",
		slog.String("asset", s.cfg.HistoryAsset),
		slog.Int("points", len(points)))
	return true, nil
}

// --- Readers ---

// Snapshot returns the current snapshot. It is never nil and must not be
// modified.
func (s *Service) Snapshot() *models.Snapshot { return s.snap.Load() }

// Assets returns the current asset list. Callers must not modify it.
func (s *Service) Assets() []models.Asset { return s.snap.Load().Assets }

// History returns the current historical series.
func (s *Service) History() []models.HistoricalPoint {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	return s.history
}

// HistoryFetchedAt returns when the history was last fetched successfully.
func (s *Service) HistoryFetchedAt() (time.Time, bool) {
	s.histMu.RLock()
	defer s.histMu.RUnlock()
	return s.histAt, !s.histAt.IsZero()
}

// Summary returns the memoized aggregates of the current snapshot.
func (s *Service) Summary() metrics.Summary { return s.engine.Summary(s.snap.Load()) }

// Dominance returns symbol's market cap share of the current snapshot.
func (s *Service) Dominance(symbol string) string {
	return metrics.Dominance(s.Assets(), symbol)
}

// Direction returns symbol's 24h direction in the current snapshot.
func (s *Service) Direction(symbol string) models.Direction {
	return metrics.MarketDirection(s.Assets(), symbol)
}

// --- Favorites ---

// Favorites returns a copy of the favorites map.
func (s *Service) Favorites() models.Favorites {
	if s.fav == nil {
		return models.Favorites{}
	}
	return s.fav.Snapshot()
}

// ToggleFavorite flips id's favorite flag and persists the map.
func (s *Service) ToggleFavorite(ctx context.Context, id string) bool {
	if s.fav == nil {
		return false
	}
	return s.fav.Toggle(ctx, id)
}

// --- Listeners ---

// Subscribe registers fn to run after every snapshot replacement. The
// returned func removes it. Listeners run synchronously in version order
// and must not call RefreshAssets.
func (s *Service) Subscribe(fn func(*models.Snapshot)) (unsubscribe func()) {
	s.listenMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenMu.Unlock()

	return func() {
		s.listenMu.Lock()
		delete(s.listeners, id)
		s.listenMu.Unlock()
	}
}

func (s *Service) notify(snap *models.Snapshot) {
	s.listenMu.RLock()
	fns := make([]func(*models.Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenMu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}
