package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/template"
	"github.com/emrgen/docgen/internal/vars"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPreviewTTL      = time.Hour
	DefaultPreviewMaxBytes = 64 << 20
)

// PreviewKey derives the cache key of a rendered preview.
func PreviewKey(templateID string, lang template.Language, variablesHash string) string {
	h := sha256.New()
	h.Write([]byte(templateID))
	h.Write([]byte{0})
	h.Write([]byte(lang))
	h.Write([]byte{0})
	h.Write([]byte(variablesHash))

	return hex.EncodeToString(h.Sum(nil))
}

type PreviewConfig struct {
	TTL      time.Duration
	MaxBytes int64
	Mirror   Mirror
}

type previewEntry struct {
	data       []byte
	insertedAt time.Time
	seq        uint64
}

// PreviewCache holds rendered previews in memory, bounded by TTL and total
// bytes, with an optional best-effort mirror behind it.
type PreviewCache struct {
	mu       sync.Mutex
	entries  map[string]*previewEntry
	size     int64
	seq      uint64
	ttl      time.Duration
	maxBytes int64
	mirror   Mirror
	now      func() time.Time
}

func NewPreviewCache(cfg PreviewConfig) *PreviewCache {
	c := &PreviewCache{
		entries:  make(map[string]*previewEntry),
		ttl:      cfg.TTL,
		maxBytes: cfg.MaxBytes,
		mirror:   cfg.Mirror,
		now:      time.Now,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultPreviewTTL
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultPreviewMaxBytes
	}

	return c
}

func (c *PreviewCache) TTL() time.Duration {
	return c.ttl
}

func (c *PreviewCache) Mirror() Mirror {
	return c.mirror
}

// Get looks up a preview, consulting the mirror on a memory miss.
func (c *PreviewCache) Get(ctx context.Context, templateID string, variables vars.List, lang template.Language) ([]byte, bool) {
	hash, err := vars.Hash(variables)
	if err != nil {
		return nil, false
	}

	return c.GetKey(ctx, PreviewKey(templateID, lang, hash))
}

func (c *PreviewCache) GetKey(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := c.lookup(key); ok {
		metrics.CacheLookups.WithLabelValues("preview", "memory", "hit").Inc()
		return data, true
	}
	metrics.CacheLookups.WithLabelValues("preview", "memory", "miss").Inc()

	if c.mirror == nil {
		return nil, false
	}

	data, storedAt, err := c.mirror.Load(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMirrorMiss) {
			logrus.WithField("key", key).Warnf("preview mirror load failed: %v", err)
			metrics.CacheLookups.WithLabelValues("preview", "mirror", "error").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("preview", "mirror", "miss").Inc()
		}
		return nil, false
	}

	// the mirror outlives the TTL until the lifecycle sweep reaches it
	if c.now().Sub(storedAt) >= c.ttl {
		metrics.CacheLookups.WithLabelValues("preview", "mirror", "expired").Inc()
		metrics.CacheEvictions.WithLabelValues("preview", "expired").Inc()
		if err := c.mirror.Remove(ctx, key); err != nil {
			logrus.WithField("key", key).Warnf("expired preview not removed from mirror: %v", err)
		}
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("preview", "mirror", "hit").Inc()
	c.insert(key, data, storedAt)

	return append([]byte(nil), data...), true
}

// Set stores a preview in memory and, best effort, in the mirror.
func (c *PreviewCache) Set(ctx context.Context, templateID string, variables vars.List, lang template.Language, data []byte) error {
	hash, err := vars.Hash(variables)
	if err != nil {
		return err
	}

	c.SetKey(ctx, PreviewKey(templateID, lang, hash), data)
	return nil
}

func (c *PreviewCache) SetKey(ctx context.Context, key string, data []byte) {
	c.insert(key, data, c.now())

	if c.mirror == nil {
		return
	}
	if err := c.mirror.Store(ctx, key, data); err != nil {
		logrus.WithField("key", key).Warnf("preview mirror store failed: %v", err)
	}
}

func (c *PreviewCache) lookup(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.insertedAt) >= c.ttl {
		c.remove(key, entry)
		metrics.CacheEvictions.WithLabelValues("preview", "expired").Inc()
		return nil, false
	}

	return append([]byte(nil), entry.data...), true
}

// insert stores data as of insertedAt, so mirrored entries keep their age.
func (c *PreviewCache) insert(key string, data []byte, insertedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.remove(key, old)
	}

	size := int64(len(data))
	if c.size+size > c.maxBytes && len(c.entries) > 0 {
		c.evictOldest()
	}

	c.seq++
	c.entries[key] = &previewEntry{
		data:       append([]byte(nil), data...),
		insertedAt: insertedAt,
		seq:        c.seq,
	}
	c.size += size
	metrics.PreviewCacheBytes.Set(float64(c.size))
}

// evictOldest drops the oldest quarter of the entries, rounded up.
func (c *PreviewCache) evictOldest() {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := c.entries[keys[i]], c.entries[keys[j]]
		if !a.insertedAt.Equal(b.insertedAt) {
			return a.insertedAt.Before(b.insertedAt)
		}
		return a.seq < b.seq
	})

	n := (len(keys) + 3) / 4
	for _, k := range keys[:n] {
		c.remove(k, c.entries[k])
	}
	metrics.CacheEvictions.WithLabelValues("preview", "capacity").Add(float64(n))
	logrus.Debugf("preview cache evicted %d entries", n)
}

func (c *PreviewCache) remove(key string, entry *previewEntry) {
	delete(c.entries, key)
	c.size -= int64(len(entry.data))
	metrics.PreviewCacheBytes.Set(float64(c.size))
}

// Size returns the bytes held in memory.
func (c *PreviewCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

func (c *PreviewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *PreviewCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Clear empties the memory tier. The mirror is left alone.
func (c *PreviewCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*previewEntry)
	c.size = 0
	metrics.PreviewCacheBytes.Set(0)
}
