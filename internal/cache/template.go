package cache

import (
	"sync"
	"time"

	"github.com/emrgen/docgen/internal/metrics"
	"github.com/emrgen/docgen/internal/model"
	"github.com/emrgen/docgen/internal/template"
	"github.com/sirupsen/logrus"
)

const DefaultTemplateTTL = time.Hour

type templateKey struct {
	category template.Category
	language template.Language
}

type templateEntry struct {
	template *model.Template
	storedAt time.Time
}

// TemplateCache remembers which template resolves a (category, language) pair.
type TemplateCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[templateKey]templateEntry
	now     func() time.Time
}

func NewTemplateCache(ttl time.Duration) *TemplateCache {
	if ttl <= 0 {
		ttl = DefaultTemplateTTL
	}

	return &TemplateCache{
		ttl:     ttl,
		entries: make(map[templateKey]templateEntry),
		now:     time.Now,
	}
}

// Get returns the cached template. Expired entries and entries that fail the
// shape check are dropped and reported as misses.
func (c *TemplateCache) Get(category template.Category, lang template.Language) (*model.Template, bool) {
	key := templateKey{category, lang}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		metrics.CacheLookups.WithLabelValues("template", "memory", "miss").Inc()
		return nil, false
	}

	if c.now().Sub(entry.storedAt) >= c.ttl {
		c.evict(key, entry, "expired")
		metrics.CacheLookups.WithLabelValues("template", "memory", "miss").Inc()
		return nil, false
	}

	if !entry.template.Usable() {
		logrus.WithFields(logrus.Fields{"category": category, "language": lang}).Warn("evicting corrupt template cache entry")
		c.evict(key, entry, "corrupt")
		metrics.CacheLookups.WithLabelValues("template", "memory", "corrupt").Inc()
		return nil, false
	}

	metrics.CacheLookups.WithLabelValues("template", "memory", "hit").Inc()
	return entry.template, true
}

// evict removes key unless it was replaced since entry was read.
func (c *TemplateCache) evict(key templateKey, entry templateEntry, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cur, ok := c.entries[key]; ok && cur.storedAt.Equal(entry.storedAt) && cur.template == entry.template {
		delete(c.entries, key)
		metrics.CacheEvictions.WithLabelValues("template", reason).Inc()
	}
}

func (c *TemplateCache) Set(category template.Category, lang template.Language, t *model.Template) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[templateKey{category, lang}] = templateEntry{template: t, storedAt: c.now()}
}

// Invalidate drops every language of category.
func (c *TemplateCache) Invalidate(category template.Category) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.entries {
		if key.category == category {
			delete(c.entries, key)
		}
	}
}

// Clear drops everything and returns how many entries were held.
func (c *TemplateCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[templateKey]templateEntry)

	return n
}

func (c *TemplateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
