// Package rescache implements the static resource cache: it resolves a
// request path to file bytes beneath a root directory, keeping a bounded
// in-memory LRU of recently served files so repeat hits skip the disk.
//
// Grounded on the doubly-linked LRU in
// MiraiMindz-watt/capacitor/pkg/cache/memory/lru.go, monomorphized to a
// string key since a resource cache only ever keys on request path. Eviction
// differs from capacitor's plain LRU: entries whose hit counter places them
// in the top decile of the current working set are protected from eviction
// even when they sit at the back of the list, so a handful of very hot
// assets (a shared stylesheet, a favicon) don't get pushed out by a burst of
// one-off requests. Concurrent first-touch reads for the same path are
// coalesced with golang.org/x/sync/singleflight so a thundering herd of
// requests for a cold path results in one disk read, not N.
package rescache

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/sync/singleflight"

	"github.com/youfantan/Nexus/internal/mime"
)

// gzipMinSize is the smallest file size worth attempting compression for;
// below it the gzip header/footer overhead eats any savings.
const gzipMinSize = 4096

// gzipMaxRatio is the largest compressed/original size ratio that's worth
// keeping compressed. Above it the CPU cost of decompressing on every hit
// isn't buying back enough memory.
const gzipMaxRatio = 0.90

// DefaultCapacity is the entry count used when a Cache is built with
// capacity <= 0.
const DefaultCapacity = 4096

// Result is what Locate returns: the decoded bytes, the resolved MIME type,
// and whether the path resolved to a regular file at all.
type Result struct {
	Bytes []byte
	Mime  string
	Valid bool
}

type entry struct {
	node       *lruNode
	mime       string
	data       []byte
	compressed bool
	rawLen     int
	hits       uint64
}

// Cache is a bounded, path-keyed cache of static file contents rooted at a
// directory on disk.
type Cache struct {
	root     string
	capacity int

	mu      sync.Mutex
	entries map[string]*entry
	order   lruList

	group singleflight.Group
}

// New builds a Cache serving files beneath root. capacity <= 0 selects
// DefaultCapacity.
func New(root string, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		root:     root,
		capacity: capacity,
		entries:  make(map[string]*entry),
	}
}

// Locate resolves reqPath (already query-stripped; callers pass
// httpx.Parser.RoutePath()) to file content, serving from cache on a hit and
// loading from disk on a miss. A path that escapes root, doesn't exist, or
// names a directory yields Result{Valid: false}.
func (c *Cache) Locate(reqPath string) (Result, error) {
	key := normalize(reqPath)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		c.order.moveToFront(e.node)
		e.hits++
		data := e.data
		compressed := e.compressed
		mimeType := e.mime
		c.mu.Unlock()

		if !compressed {
			return Result{Bytes: data, Mime: mimeType, Valid: true}, nil
		}
		raw, err := gunzip(data)
		if err != nil {
			return Result{}, err
		}
		return Result{Bytes: raw, Mime: mimeType, Valid: true}, nil
	}
	c.mu.Unlock()

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.load(key)
	})
	if err != nil {
		return Result{}, err
	}
	return v.(Result), nil
}

func (c *Cache) load(key string) (Result, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return Result{Valid: false}, nil
	}
	full := filepath.Join(c.root, rel)
	if info, err := os.Stat(full); err == nil && info.IsDir() {
		return Result{Valid: false}, nil
	}
	raw, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Valid: false}, nil
		}
		return Result{}, err
	}

	mimeType := mime.ForPath(key)
	stored := raw
	compressed := false
	if len(raw) >= gzipMinSize {
		if z, ok := gzipIfWorthwhile(raw); ok {
			stored = z
			compressed = true
		}
	}

	c.insert(key, stored, mimeType, compressed, len(raw))
	return Result{Bytes: raw, Mime: mimeType, Valid: true}, nil
}

func (c *Cache) insert(key string, data []byte, mimeType string, compressed bool, rawLen int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return
	}

	node := c.order.pushFront(key)
	c.entries[key] = &entry{
		node:       node,
		mime:       mimeType,
		data:       data,
		compressed: compressed,
		rawLen:     rawLen,
	}

	c.evictIfNeeded()
}

// evictIfNeeded drops entries from the back of the LRU list until the cache
// is back within capacity, skipping over entries whose hit count places
// them in the protected top decile. If one pass over the list leaves the
// cache still over capacity, it falls back to strict LRU and evicts from
// the back regardless of hits. Caller holds c.mu.
func (c *Cache) evictIfNeeded() {
	if len(c.entries) <= c.capacity {
		return
	}

	threshold := c.hitThreshold()

	// Walk from the tail; protected entries are moved to the front so the
	// walk makes forward progress and eventually reaches an evictable one.
	scanned := 0
	for len(c.entries) > c.capacity && scanned < c.order.len() {
		victim := c.order.back()
		if victim == nil {
			return
		}
		e := c.entries[victim.key]
		if e != nil && threshold > 0 && e.hits >= threshold {
			c.order.moveToFront(victim)
			scanned++
			continue
		}
		c.order.remove(victim)
		delete(c.entries, victim.key)
		scanned++
	}
	for len(c.entries) > c.capacity {
		victim := c.order.back()
		if victim == nil {
			return
		}
		c.order.remove(victim)
		delete(c.entries, victim.key)
	}
}

// hitThreshold returns the hit count at the 90th percentile of the current
// working set, i.e. entries at or above it sit in the protected top decile.
// Caller holds c.mu.
func (c *Cache) hitThreshold() uint64 {
	n := len(c.entries)
	if n == 0 {
		return 0
	}
	counts := make([]uint64, 0, n)
	for _, e := range c.entries {
		counts = append(counts, e.hits)
	}
	sortUint64s(counts)
	idx := n - n/10
	if idx > n-1 {
		idx = n - 1
	}
	return counts[idx]
}

func sortUint64s(s []uint64) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

func normalize(p string) string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		p = "index.html"
	}
	return p
}

func gzipIfWorthwhile(raw []byte) ([]byte, bool) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, false
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return nil, false
	}
	if err := w.Close(); err != nil {
		return nil, false
	}
	if float64(buf.Len()) > float64(len(raw))*gzipMaxRatio {
		return nil, false
	}
	return buf.Bytes(), true
}

func gunzip(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
