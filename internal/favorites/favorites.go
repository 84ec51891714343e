// Package favorites persists the user's set of favorite assets.
//
// The in-memory map is authoritative for the lifetime of the process.
// Storage problems are logged and never surfaced: an unreadable store loads
// as an empty set, and a failed write leaves the in-memory set intact.
package favorites

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/seenimoa/cryptodash/pkg/models"
)

// DefaultKey is the storage key holding the serialized map.
const DefaultKey = "favorites"

// Store holds the favorites map and writes it through to a Backend.
type Store struct {
	backend Backend
	key     string
	logger  *slog.Logger

	saveMu sync.Mutex // serializes writes to the backend

	mu  sync.RWMutex
	fav models.Favorites
}

// NewStore creates a store over backend. An empty key selects DefaultKey.
func NewStore(backend Backend, key string, logger *slog.Logger) *Store {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		key:     key,
		logger:  logger,
		fav:     models.Favorites{},
	}
}

// Load reads the stored map, replacing the in-memory one. Missing, corrupt
// or unreadable data yields an empty map.
func (s *Store) Load(ctx context.Context) models.Favorites {
	fav := s.read(ctx)

	s.mu.Lock()
	s.fav = fav
	s.mu.Unlock()
	return fav.Clone()
}

func (s *Store) read(ctx context.Context) models.Favorites {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, ErrNotFound) {
		return models.Favorites{}
	}
	if err != nil {
		s.logger.Warn("Error reading favorites from storage", slog.Any("error", err))
		return models.Favorites{}
	}
	if len(data) == 0 {
		return models.Favorites{}
	}

	var fav models.Favorites
	if err := json.Unmarshal(data, &fav); err != nil {
		s.logger.Warn("Error reading favorites from storage", slog.Any("error", err))
		return models.Favorites{}
	}
	if fav == nil {
		fav = models.Favorites{}
	}
	return fav
}

// Save writes the whole map. Write failures are logged and ignored.
func (s *Store) Save(ctx context.Context) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	data, err := json.Marshal(s.fav)
	s.mu.RUnlock()
	if err != nil {
		s.logger.Warn("Error saving favorites to storage", slog.Any("error", err))
		return
	}
	if err := s.backend.Put(ctx, s.key, data); err != nil {
		s.logger.Warn("Error saving favorites to storage", slog.Any("error", err))
	}
}

// Toggle flips the flag for id and persists the map. An absent id counts
// as false and becomes true. It returns the new value.
func (s *Store) Toggle(ctx context.Context, id string) bool {
	s.mu.Lock()
	v := !s.fav[id]
	s.fav[id] = v
	s.mu.Unlock()

	s.Save(ctx)
	return v
}

// IsFavorite reports whether id is currently flagged.
func (s *Store) IsFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fav[id]
}

// Snapshot returns a copy of the map, including ids toggled off.
func (s *Store) Snapshot() models.Favorites {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fav.Clone()
}

// IDs returns the ids currently flagged true, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.fav))
	for id, on := range s.fav {
		if on {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
