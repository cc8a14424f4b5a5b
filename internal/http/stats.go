package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/readmirror/readmirror/internal/database/bookmarks"
	"github.com/readmirror/readmirror/internal/syncer"
)

// StatsController reports runtime statistics of the sync core.
type StatsController struct {
	orch      *syncer.Orchestrator
	bookmarks *bookmarks.Repository
}

func NewStatsController(orch *syncer.Orchestrator, repo *bookmarks.Repository) *StatsController {
	return &StatsController{orch: orch, bookmarks: repo}
}

// CacheStats handles GET /api/cache/stats.
func (s *StatsController) CacheStats(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.orch.CacheStats())
}

// CoordinatorStats handles GET /api/coordinator/stats.
func (s *StatsController) CoordinatorStats(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.orch.Coordinator().Stats())
}

// StoreStats handles GET /api/store/stats.
func (s *StatsController) StoreStats(c *gin.Context) {
	total, err := s.bookmarks.Count(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	modified, err := s.bookmarks.CountModified(c.Request.Context())
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.IndentedJSON(http.StatusOK, gin.H{
		"total_bookmarks":     total,
		"pending_local_edits": modified,
	})
}
