package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"feedsift/app/feed"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo FeedReader, entryRepo EntryReader,
	generator GeneratorInterface, deduplicator *feed.Deduplicator, scheduler SchedulerInterface,
	feedCache CacheInterface) *Handler {
	return &Handler{
		feedRepo:     feedRepo,
		entryRepo:    entryRepo,
		generator:    generator,
		configCache:  configCache,
		deduplicator: deduplicator,
		scheduler:    scheduler,
		cache:        feedCache,
	}
}

// GetFeed serves the processed feed as RSS 2.0. Rendered documents are
// cached until the feed's next scheduled refresh.
func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.Status(http.StatusBadRequest)
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	if h.cache != nil {
		if rss, found, err := h.cache.GetFeedData(c.Request.Context(), name); err == nil && found {
			c.Header("Content-Type", "application/xml; charset=utf-8")
			c.Header("X-Cache", "HIT")
			c.String(http.StatusOK, rss)
			return
		} else if err != nil {
			slog.Warn("Cache lookup failed", "feed", name, "error", err)
		}
	}

	dbFeed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if dbFeed == nil {
		slog.Error("Feed not found in database", "feed", name)
		c.Status(http.StatusNotFound)
		return
	}

	entries, err := h.entryRepo.GetVisibleEntries(name, feedConfig.Settings.MaxEntries)
	if err != nil {
		slog.Error("Database error", "operation", "get_entries", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	rss, err := h.generator.Run(*dbFeed, entries)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		ttl := time.Duration(feedConfig.Settings.RefreshInterval) * time.Second
		if err := h.cache.SetFeedData(c.Request.Context(), name, rss, ttl); err != nil {
			slog.Warn("Cache store failed", "feed", name, "error", err)
		}
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.Header("X-Feed-Entries", strconv.Itoa(len(entries)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", dbFeed.UpdatedAt.Format(time.RFC3339))

	c.String(http.StatusOK, rss)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if feedCount, err := h.feedRepo.GetFeedCount(); err == nil {
		health["feeds"] = feedCount
	}

	health["loaded_configurations"] = h.configCache.GetConfigCount()

	if h.cache != nil {
		if err := h.cache.Ping(c.Request.Context()); err != nil {
			health["cache"] = "unhealthy"
		} else {
			health["cache"] = "healthy"
		}
	}

	c.JSON(http.StatusOK, health)
}

// GetStats reports aggregate pipeline counters.
func (h *Handler) GetStats(c *gin.Context) {
	stats := gin.H{}

	if total, err := h.feedRepo.GetFeedCount(); err == nil {
		stats["feeds_total"] = total
	}
	if enabled, err := h.feedRepo.GetEnabledFeedCount(); err == nil {
		stats["feeds_enabled"] = enabled
	}

	dedup := h.deduplicator.Stats()
	stats["deduplication"] = gin.H{
		"strategy":         string(h.deduplicator.Strategy()),
		"checks":           dedup.Checks,
		"duplicates_found": dedup.DuplicatesFound,
		"link_matches":     dedup.LinkMatches,
		"title_matches":    dedup.TitleMatches,
		"content_matches":  dedup.ContentMatches,
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	feeds := make([]gin.H, 0, len(configs))

	for _, feedConfig := range configs {
		feedInfo := gin.H{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"title":            "",
			"enabled":          feedConfig.Settings.Enabled,
			"max_entries":      feedConfig.Settings.MaxEntries,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(feedConfig.Filters),
		}

		if dbFeed, err := h.feedRepo.GetFeed(feedConfig.Name); err == nil && dbFeed != nil {
			feedInfo["title"] = dbFeed.Title
			feedInfo["last_fetched_at"] = dbFeed.LastFetchedAt
			feedInfo["next_fetch_at"] = dbFeed.NextFetchAt
			feedInfo["updated_at"] = dbFeed.UpdatedAt
			feedInfo["error_count"] = dbFeed.ErrorCount
			feedInfo["active"] = dbFeed.Enabled
		}

		if entryCount, err := h.entryRepo.GetEntryCount(feedConfig.Name); err == nil {
			feedInfo["entry_count"] = entryCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	dbFeed, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if dbFeed == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found in database"})
		return
	}

	details := gin.H{
		"name":             name,
		"url":              feedConfig.URL,
		"title":            dbFeed.Title,
		"enabled":          feedConfig.Settings.Enabled,
		"max_entries":      feedConfig.Settings.MaxEntries,
		"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
		"timeout":          (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"extract_content":  feedConfig.Settings.ExtractContent,
		"filters":          feedConfig.Filters,
	}

	details["database"] = gin.H{
		"id":              dbFeed.ID,
		"name":            dbFeed.Name,
		"active":          dbFeed.Enabled,
		"error_count":     dbFeed.ErrorCount,
		"last_error":      dbFeed.LastError,
		"last_fetched_at": dbFeed.LastFetchedAt,
		"next_fetch_at":   dbFeed.NextFetchAt,
		"created_at":      dbFeed.CreatedAt,
		"updated_at":      dbFeed.UpdatedAt,
	}

	if total, visible, filtered, err := h.entryRepo.GetEntryStats(name); err == nil {
		details["entries"] = gin.H{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, details)
}

// APIReloadFeed re-reads a feed's configuration from disk and enqueues
// a sync plus a refilter so stored entries follow the new rules.
func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing feed name parameter"})
		return
	}

	if _, err := h.configCache.GetConfig(name); err != nil {
		slog.Error("Feed configuration not found", "feed", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	if err := h.scheduler.EnqueueSync(feedConfig); err != nil {
		slog.Error("Error enqueueing sync task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue sync task",
			"details": err.Error(),
		})
		return
	}

	if err := h.scheduler.EnqueueRefilter(feedConfig); err != nil {
		slog.Error("Error enqueueing refilter task", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to enqueue refilter task",
			"details": err.Error(),
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.InvalidateFeed(c.Request.Context(), name); err != nil {
			slog.Warn("Cache invalidation failed", "feed", name, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued",
		"feed": gin.H{
			"name": name,
			"url":  feedConfig.URL,
		},
	})
}
