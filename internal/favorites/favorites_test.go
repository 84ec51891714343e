package favorites

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// memBackend is an in-memory Backend that records writes and can be told
// to fail.
type memBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	puts   [][]byte
	getErr error
	putErr error
	closed bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (m *memBackend) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *memBackend) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.data[key] = append([]byte(nil), value...)
	m.puts = append(m.puts, m.data[key])
	return nil
}

func (m *memBackend) Close() error {
	m.closed = true
	return nil
}

func (m *memBackend) lastPut(t *testing.T) map[string]bool {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.puts) == 0 {
		t.Fatal("no writes recorded")
	}
	var got map[string]bool
	if err := json.Unmarshal(m.puts[len(m.puts)-1], &got); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	return got
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestToggleTwicePersistsBothStates(t *testing.T) {
	be := newMemBackend()
	s := NewStore(be, "", quietLogger())
	ctx := context.Background()

	if got := s.Toggle(ctx, "BTC"); !got {
		t.Fatal("first toggle should return true")
	}
	if got := be.lastPut(t); len(got) != 1 || got["BTC"] != true {
		t.Fatalf("after first toggle stored %v, want {BTC:true}", got)
	}

	if got := s.Toggle(ctx, "BTC"); got {
		t.Fatal("second toggle should return false")
	}
	got := be.lastPut(t)
	if v, ok := got["BTC"]; !ok || v {
		t.Fatalf("after second toggle stored %v, want {BTC:false}", got)
	}
}

func TestLoadCorruptDataYieldsEmptyMap(t *testing.T) {
	be := newMemBackend()
	be.data[DefaultKey] = []byte("{not json")

	var logBuf bytes.Buffer
	s := NewStore(be, "", slog.New(slog.NewTextHandler(&logBuf, nil)))
	fav := s.Load(context.Background())

	if len(fav) != 0 {
		t.Fatalf("Load() = %v, want empty", fav)
	}
	if !strings.Contains(logBuf.String(), "Error reading favorites") {
		t.Errorf("expected a logged read failure, got %q", logBuf.String())
	}
}

func TestLoadReadErrorYieldsEmptyMap(t *testing.T) {
	be := newMemBackend()
	be.getErr = errors.New("disk on fire")

	s := NewStore(be, "", quietLogger())
	if fav := s.Load(context.Background()); len(fav) != 0 {
		t.Fatalf("Load() = %v, want empty", fav)
	}

	// Store remains usable after a failed load.
	be.getErr = nil
	if !s.Toggle(context.Background(), "ETH") {
		t.Fatal("toggle after failed load should return true")
	}
}

func TestLoadMissingAndNullValues(t *testing.T) {
	for _, raw := range []string{"", "null"} {
		be := newMemBackend()
		if raw != "" {
			be.data[DefaultKey] = []byte(raw)
		}
		s := NewStore(be, "", quietLogger())
		fav := s.Load(context.Background())
		if fav == nil || len(fav) != 0 {
			t.Errorf("Load(%q) = %v, want empty non-nil map", raw, fav)
		}
	}
}

func TestLoadKeepsStaleEntries(t *testing.T) {
	be := newMemBackend()
	be.data["favs"] = []byte(`{"BTC":true,"LUNA":true,"ETH":false}`)

	s := NewStore(be, "favs", quietLogger())
	s.Load(context.Background())

	if !s.IsFavorite("LUNA") {
		t.Error("stale entry LUNA should be retained")
	}
	if s.IsFavorite("ETH") {
		t.Error("ETH is stored as false")
	}
	if ids := s.IDs(); strings.Join(ids, ",") != "BTC,LUNA" {
		t.Errorf("IDs() = %v, want [BTC LUNA]", ids)
	}
	if snap := s.Snapshot(); len(snap) != 3 {
		t.Errorf("Snapshot() = %v, want 3 entries", snap)
	}
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	be := newMemBackend()
	be.putErr = errors.New("quota exceeded")

	s := NewStore(be, "", quietLogger())
	if !s.Toggle(context.Background(), "SOL") {
		t.Fatal("toggle should return true")
	}
	if !s.IsFavorite("SOL") {
		t.Error("in-memory state should survive a failed write")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(newMemBackend(), "", quietLogger())
	s.Toggle(context.Background(), "BTC")

	snap := s.Snapshot()
	snap["BTC"] = false
	if !s.IsFavorite("BTC") {
		t.Error("mutating a snapshot must not affect the store")
	}
}

func TestFileBackendRoundTrip(t *testing.T) {
	dir := t.TempDir()
	be, err := NewFileBackend(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	ctx := context.Background()

	if _, err := be.Get(ctx, "favorites"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty dir = %v, want ErrNotFound", err)
	}
	if err := be.Put(ctx, "favorites", []byte(`{"BTC":true}`)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := be.Get(ctx, "favorites")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != `{"BTC":true}` {
		t.Errorf("Get = %s", got)
	}

	entries, _ := os.ReadDir(filepath.Join(dir, "store"))
	if len(entries) != 1 {
		t.Errorf("expected only the data file, found %d entries", len(entries))
	}

	if err := be.Put(ctx, "../escape", []byte("x")); err == nil {
		t.Error("expected invalid key error")
	}
}

func TestStoreSurvivesRestartWithFileBackend(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	be, err := Open("file", dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := NewStore(be, "", quietLogger())
	s.Load(ctx)
	s.Toggle(ctx, "BTC")
	s.Toggle(ctx, "ETH")
	s.Toggle(ctx, "ETH")
	s.Close()

	be2, err := Open("file", dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2 := NewStore(be2, "", quietLogger())
	fav := s2.Load(ctx)
	if !fav["BTC"] || fav["ETH"] {
		t.Errorf("reloaded favorites = %v, want BTC:true ETH:false", fav)
	}
	if _, ok := fav["ETH"]; !ok {
		t.Error("ETH:false should be persisted, not dropped")
	}
}

func TestCorruptFileLoadsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "favorites.json"), []byte("[1,2"), 0o644); err != nil {
		t.Fatal(err)
	}
	be, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(be, "", quietLogger())
	if fav := s.Load(context.Background()); len(fav) != 0 {
		t.Errorf("Load() = %v, want empty", fav)
	}
}

func TestSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cryptodash.db")
	be, err := Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer be.Close()
	ctx := context.Background()

	if _, err := be.Get(ctx, "favorites"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty db = %v, want ErrNotFound", err)
	}

	s := NewStore(be, "", quietLogger())
	s.Toggle(ctx, "BTC")
	s.Toggle(ctx, "DOGE")

	raw, err := be.Get(ctx, "favorites")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	var got map[string]bool
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("stored value: %v", err)
	}
	if !got["BTC"] || !got["DOGE"] {
		t.Errorf("stored %v", got)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("redis", t.TempDir()); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("Open(redis) = %v, want ErrUnknownBackend", err)
	}
}
