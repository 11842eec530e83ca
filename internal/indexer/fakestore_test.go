package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"kiwi/internal/database"
	"kiwi/internal/filesystem"
	"kiwi/internal/library"
)

var errInjected = errors.New("injected failure")

// fakeStore is an in-memory Store with failure injection.
type fakeStore struct {
	mu      sync.Mutex
	items   map[string]database.Item
	folders map[string]map[string]bool
	tags    map[string]map[string]bool
	cursor  time.Time
	count   int
	hasSync bool

	pingErr       error
	statesErr     error
	setStateErr   error
	failUpsert    map[string]bool
	failDelete    map[string]bool
	failRelate    map[string]bool
	upsertBatches int
	onUpsert      func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		items:      make(map[string]database.Item),
		folders:    make(map[string]map[string]bool),
		tags:       make(map[string]map[string]bool),
		failUpsert: make(map[string]bool),
		failDelete: make(map[string]bool),
		failRelate: make(map[string]bool),
	}
}

func (s *fakeStore) Ping(context.Context) error { return s.pingErr }

func (s *fakeStore) AllItemIDs(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *fakeStore) ItemStates(context.Context) (map[string]database.ItemState, error) {
	if s.statesErr != nil {
		return nil, s.statesErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	states := make(map[string]database.ItemState, len(s.items))
	for id, it := range s.items {
		states[id] = database.ItemState{ContentHash: it.ContentHash, LastWriteAt: it.LastWriteAt}
	}
	return states, nil
}

func (s *fakeStore) GetItem(_ context.Context, id string) (*database.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, database.ErrItemNotFound
	}
	it.Folders = keys(s.folders[id])
	it.Tags = keys(s.tags[id])
	return &it, nil
}

func (s *fakeStore) UpsertItems(_ context.Context, items []database.Item) ([]database.RowError, error) {
	if s.onUpsert != nil {
		s.onUpsert()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertBatches++
	var rejected []database.RowError
	for _, it := range items {
		if s.failUpsert[it.ID] {
			rejected = append(rejected, database.RowError{ID: it.ID, Err: errInjected})
			continue
		}
		it.Folders, it.Tags = nil, nil
		s.items[it.ID] = it
	}
	return rejected, nil
}

func (s *fakeStore) DeleteItems(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if s.failDelete[id] {
			return 0, errInjected
		}
	}
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			n++
		}
		delete(s.items, id)
		delete(s.folders, id)
		delete(s.tags, id)
	}
	return n, nil
}

func (s *fakeStore) table(kind database.RelationKind) map[string]map[string]bool {
	if kind == database.RelationFolders {
		return s.folders
	}
	return s.tags
}

func (s *fakeStore) DeleteRelationships(_ context.Context, kind database.RelationKind, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.table(kind), id)
	}
	return nil
}

func (s *fakeStore) InsertRelationships(_ context.Context, kind database.RelationKind, pairs []database.Pair) ([]database.RowError, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rejected []database.RowError
	t := s.table(kind)
	for _, p := range pairs {
		if s.failRelate[p.ItemID] {
			rejected = append(rejected, database.RowError{ID: p.ItemID, Err: errInjected})
			continue
		}
		if t[p.ItemID] == nil {
			t[p.ItemID] = make(map[string]bool)
		}
		t[p.ItemID][p.Value] = true
	}
	return rejected, nil
}

func (s *fakeStore) ClearContentHashes(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			it.ContentHash = ""
			s.items[id] = it
		}
	}
	return nil
}

func (s *fakeStore) GetCursor(context.Context) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor, nil
}

func (s *fakeStore) SetSyncState(_ context.Context, cursor time.Time, count int) error {
	if s.setStateErr != nil {
		return s.setStateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor, s.count, s.hasSync = cursor, count, true
	return nil
}

func (s *fakeStore) CountItems(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items), nil
}

func (s *fakeStore) GetItemCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count, nil
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ Store = (*fakeStore)(nil)

// Library fixtures

func testRetry() filesystem.RetryConfig {
	cfg := filesystem.DefaultRetryConfig()
	cfg.Timeout = 5 * time.Second
	return cfg
}

// past is an mtime safely before any cursor a test run produces.
var past = time.Now().Add(-24 * time.Hour).Truncate(time.Second)

// writeItem creates <root>/<id>.info with a jpg and a sidecar, all with
// mtimes set to past.
func writeItem(t *testing.T, root, id, sidecar string) library.Item {
	t.Helper()
	dir := filepath.Join(root, id+library.ItemSuffix)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	media := filepath.Join(dir, id+".jpg")
	if err := os.WriteFile(media, []byte("jpeg"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}
	sc := filepath.Join(dir, library.SidecarName)
	if err := os.WriteFile(sc, []byte(sidecar), 0o644); err != nil {
		t.Fatalf("write sidecar: %v", err)
	}
	for _, p := range []string{media, sc, dir} {
		setMTime(t, p, past)
	}
	return library.Item{ID: id, Dir: dir}
}

func sidecarJSON(name string, tags, folders []string) string {
	return fmt.Sprintf(`{"id":"ignored","name":%q,"ext":"jpg","size":4,"modificationTime":1700000000000,"tags":%s,"folders":%s}`,
		name, jsonList(tags), jsonList(folders))
}

func jsonList(vals []string) string {
	out := "["
	for i, v := range vals {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf("%q", v)
	}
	return out + "]"
}

func setMTime(t *testing.T, path string, mt time.Time) {
	t.Helper()
	if err := os.Chtimes(path, mt, mt); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

// rewriteSidecar replaces an item's sidecar and stamps it with mt, leaving
// the folder mtime at past.
func rewriteSidecar(t *testing.T, it library.Item, sidecar string, mt time.Time) {
	t.Helper()
	if err := os.WriteFile(it.SidecarPath(), []byte(sidecar), 0o644); err != nil {
		t.Fatalf("rewrite sidecar: %v", err)
	}
	setMTime(t, it.SidecarPath(), mt)
	setMTime(t, it.Dir, past)
}

func newTestIndexer(store Store, root string) *Indexer {
	return New(store, Config{
		LibraryDir: root,
		Workers:    4,
		ChunkSize:  3,
		BatchSize:  2,
		Retry:      testRetry(),
	})
}
