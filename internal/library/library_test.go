package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLibrary(t *testing.T, filenames []string, now func() time.Time) *Library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range filenames {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return New(Config{Dir: dir, URLPrefix: "/content", Now: now})
}

func TestItemsFilterAndOpaqueURLs(t *testing.T) {
	lib := newTestLibrary(t, []string{"river.jpg", "notes.txt", "bridge.svg", ".hidden.png"}, nil)

	items := lib.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 supported items, got %d", len(items))
	}
	for _, it := range items {
		if len(it.ID) != 12 {
			t.Errorf("expected 12-character opaque id, got %q", it.ID)
		}
		if it.URL != "/content/"+it.ID {
			t.Errorf("URL must be built from the opaque id, got %q", it.URL)
		}
	}
}

func TestOpaqueIDStableAcrossExtensions(t *testing.T) {
	if OpaqueID("river.jpg") != OpaqueID("river.png") {
		t.Errorf("id should derive from the stem, not the extension")
	}
	if OpaqueID("river.jpg") == OpaqueID("bridge.jpg") {
		t.Errorf("distinct stems must yield distinct ids")
	}
}

func TestResolve(t *testing.T) {
	lib := newTestLibrary(t, []string{"river.jpg"}, nil)
	items := lib.Items()

	name, ok := lib.Resolve(items[0].ID)
	if !ok {
		t.Fatalf("Resolve failed for a known id")
	}
	if name != "river.jpg" {
		t.Errorf("expected river.jpg, got %q", name)
	}
	if _, ok := lib.Resolve("unknown-id"); ok {
		t.Errorf("unknown id must not resolve")
	}
}

func TestShuffledDeterministic(t *testing.T) {
	names := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg", "f.jpg", "g.jpg", "h.jpg"}
	lib := newTestLibrary(t, names, nil)

	first := lib.Shuffled(42)
	second := lib.Shuffled(42)
	if len(first) != len(names) {
		t.Fatalf("expected %d items, got %d", len(names), len(first))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("same seed must give the same order, diverged at %d", i)
		}
	}

	other := lib.Shuffled(43)
	same := true
	for i := range first {
		if first[i].ID != other[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Errorf("different seeds should give different orders for 8 items")
	}
}

func TestPaginateClamping(t *testing.T) {
	names := []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg", "e.jpg"}
	lib := newTestLibrary(t, names, nil)

	p := lib.Paginate(1, 2, 2)
	if p.Page != 2 || p.TotalPages != 3 || p.Total != 5 || len(p.Items) != 2 {
		t.Errorf("unexpected middle page: %+v", p)
	}

	// Past the end clamps to the last page.
	p = lib.Paginate(1, 99, 2)
	if p.Page != 3 || len(p.Items) != 1 {
		t.Errorf("expected clamp to last page with 1 item, got page=%d items=%d", p.Page, len(p.Items))
	}

	// Below the start clamps to the first page.
	p = lib.Paginate(1, 0, 2)
	if p.Page != 1 || len(p.Items) != 2 {
		t.Errorf("expected clamp to first page, got page=%d items=%d", p.Page, len(p.Items))
	}
}

func TestPaginateEmptyDirectory(t *testing.T) {
	lib := newTestLibrary(t, nil, nil)

	p := lib.Paginate(1, 1, 20)
	if p.Total != 0 || p.TotalPages != 0 || p.Page != 1 || len(p.Items) != 0 {
		t.Errorf("unexpected empty page: %+v", p)
	}
}

func TestCacheTTLAndInvalidate(t *testing.T) {
	clock := time.Now()
	now := func() time.Time { return clock }

	lib := newTestLibrary(t, []string{"a.jpg"}, now)
	if got := lib.Count(); got != 1 {
		t.Fatalf("expected 1 item, got %d", got)
	}

	// Add a file behind the cache's back: still 1 inside the TTL.
	if err := os.WriteFile(filepath.Join(lib.dir, "b.jpg"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if got := lib.Count(); got != 1 {
		t.Errorf("expected cached count 1 inside TTL, got %d", got)
	}

	// Past the TTL the next read rescans.
	clock = clock.Add(DefaultTTL + time.Second)
	if got := lib.Count(); got != 2 {
		t.Errorf("expected rescan to find 2 items after TTL, got %d", got)
	}

	// Invalidate forces the next read to rescan regardless of TTL.
	if err := os.Remove(filepath.Join(lib.dir, "b.jpg")); err != nil {
		t.Fatalf("failed to remove: %v", err)
	}
	lib.Invalidate()
	if got := lib.Count(); got != 1 {
		t.Errorf("expected rescan after invalidate, got %d", got)
	}
}
