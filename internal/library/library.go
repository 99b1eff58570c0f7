// Package library discovers a shared pool of image content and serves it to
// each session in a deterministic per-seed order without ever revealing
// underlying filenames.
package library

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultTTL is how long a discovery scan stays fresh.
const DefaultTTL = 5 * time.Minute

var supportedExtensions = map[string]bool{
	".svg":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// Item is one piece of shared content. ID is an opaque handle derived from
// the filename; clients only ever see the ID and the servable URL.
type Item struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Config configures a Library.
type Config struct {
	Dir       string
	URLPrefix string        // Prepended to filenames to form servable URLs
	TTL       time.Duration // 0 means DefaultTTL
	Now       func() time.Time
}

// Library caches the discovered content set for a TTL and answers shuffled,
// paginated views of it. The cache is process-wide and safe for concurrent
// readers; concurrent refreshes race harmlessly since discovery is
// deterministic for an unchanged pool.
type Library struct {
	dir       string
	urlPrefix string
	ttl       time.Duration
	now       func() time.Time

	mu        sync.RWMutex
	items     []Item
	filenames map[string]string // opaque id -> real filename
	scannedAt time.Time
}

// New creates a Library over the given directory.
func New(cfg Config) *Library {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Library{
		dir:       cfg.Dir,
		urlPrefix: strings.TrimSuffix(cfg.URLPrefix, "/"),
		ttl:       cfg.TTL,
		now:       cfg.Now,
	}
}

// OpaqueID derives the stable opaque identifier for a content filename: a
// truncated SHA-256 of the base name without its extension. Collisions are
// treated as practically impossible at expected pool sizes.
func OpaqueID(filename string) string {
	stem := strings.TrimSuffix(filename, path.Ext(filename))
	hash := sha256.Sum256([]byte(stem))
	return hex.EncodeToString(hash[:])[:12]
}

// Items returns the discovered content set, rescanning the directory if the
// cache has expired. The returned slice is sorted by filename and must not
// be mutated by callers.
func (l *Library) Items() []Item {
	l.mu.RLock()
	if l.cacheValid() {
		items := l.items
		l.mu.RUnlock()
		return items
	}
	l.mu.RUnlock()
	return l.rescan()
}

func (l *Library) cacheValid() bool {
	return !l.scannedAt.IsZero() && l.now().Sub(l.scannedAt) < l.ttl
}

func (l *Library) rescan() []Item {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		// A missing or unreadable directory yields an empty pool; the next
		// call rescans.
		entries = nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if supportedExtensions[strings.ToLower(path.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	items := make([]Item, 0, len(names))
	filenames := make(map[string]string, len(names))
	for _, name := range names {
		// URLs carry only the opaque id; the file handler resolves it back
		// to the real name server-side.
		id := OpaqueID(name)
		items = append(items, Item{ID: id, URL: l.urlPrefix + "/" + id})
		filenames[id] = name
	}

	l.mu.Lock()
	l.items = items
	l.filenames = filenames
	l.scannedAt = l.now()
	l.mu.Unlock()

	return items
}

// Invalidate expires the cache so the next read rescans immediately.
func (l *Library) Invalidate() {
	l.mu.Lock()
	l.scannedAt = time.Time{}
	l.mu.Unlock()
}

// Resolve maps an opaque identifier back to its real filename for
// server-side use. The filename is never returned to clients directly.
func (l *Library) Resolve(id string) (string, bool) {
	l.Items() // Ensure the cache is warm
	l.mu.RLock()
	defer l.mu.RUnlock()
	name, ok := l.filenames[id]
	return name, ok
}

// Count returns the size of the discovered pool.
func (l *Library) Count() int {
	return len(l.Items())
}
