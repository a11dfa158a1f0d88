package jobs

import (
	"github.com/emrgen/docgen/internal/cache"
	"github.com/sirupsen/logrus"
)

// CacheStatsTask logs the occupancy of the in-memory caches.
type CacheStatsTask struct {
	templates *cache.TemplateCache
	previews  *cache.PreviewCache
	cron      string
}

func NewCacheStatsTask(interval string, templates *cache.TemplateCache, previews *cache.PreviewCache) *CacheStatsTask {
	if interval == "" {
		interval = "@every 5m"
	}

	return &CacheStatsTask{
		templates: templates,
		previews:  previews,
		cron:      interval,
	}
}

func (c *CacheStatsTask) Name() string {
	return "cache_stats"
}

func (c *CacheStatsTask) Schedule() string {
	return c.cron
}

func (c *CacheStatsTask) Run() {
	logrus.WithFields(logrus.Fields{
		"templates":    c.templates.Len(),
		"previews":     c.previews.Len(),
		"previewBytes": c.previews.Size(),
	}).Debug("cache stats")
}
