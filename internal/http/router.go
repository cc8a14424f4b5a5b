// Package http exposes the JSON API over the sync core.
package http

import (
	"github.com/gin-gonic/gin"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	health := NewHealthController(cfg.Database, cfg.Version)
	bookmarksController := NewBookmarksController(cfg.Service)

	// Health endpoints
	router.GET("/health", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "pong",
		})
	})

	// Bookmark API endpoints
	router.GET("/api/bookmarks", bookmarksController.List)
	router.GET("/api/bookmarks/:id", bookmarksController.Get)
	router.POST("/api/bookmarks", bookmarksController.Create)
	router.PATCH("/api/bookmarks/:id", bookmarksController.Update)
	router.DELETE("/api/bookmarks/:id", bookmarksController.Delete)

	// Sync endpoints
	if cfg.Scheduler != nil && cfg.SyncProgress != nil {
		syncController := NewSyncController(cfg.Scheduler, cfg.SyncProgress)
		router.POST("/api/sync", syncController.Trigger)
		router.GET("/api/sync/status", syncController.Status)
	}

	// Runtime statistics endpoints
	if cfg.Orchestrator != nil {
		statsController := NewStatsController(cfg.Orchestrator, cfg.Bookmarks)
		router.GET("/api/cache/stats", statsController.CacheStats)
		router.GET("/api/coordinator/stats", statsController.CoordinatorStats)
		if cfg.Bookmarks != nil {
			router.GET("/api/store/stats", statsController.StoreStats)
		}
	}

	return router
}
