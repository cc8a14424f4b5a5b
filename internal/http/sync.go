package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/readmirror/readmirror/internal/database/syncprogress"
	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/scheduler"
)

// SyncController exposes sync triggering and progress reporting.
type SyncController struct {
	scheduler *scheduler.SyncScheduler
	progress  *syncprogress.Repository
}

func NewSyncController(sched *scheduler.SyncScheduler, progress *syncprogress.Repository) *SyncController {
	return &SyncController{scheduler: sched, progress: progress}
}

// Trigger handles POST /api/sync. The sync runs asynchronously through the
// task queue; poll /api/sync/status for progress.
func (sc *SyncController) Trigger(c *gin.Context) {
	running, err := sc.progress.IsSyncRunning()
	if err == nil && running {
		c.IndentedJSON(http.StatusConflict, gin.H{"error": "sync already in progress"})
		return
	}

	sc.scheduler.RunNow()
	c.IndentedJSON(http.StatusAccepted, gin.H{"message": "sync started"})
}

// SyncStatusResponse represents the state of the most recent sync run.
type SyncStatusResponse struct {
	Running     bool       `json:"running"`
	Status      string     `json:"status,omitempty"`
	Synced      int        `json:"synced,omitempty"`
	Conflicts   int        `json:"conflicts,omitempty"`
	Failed      int        `json:"failed,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
}

// Status handles GET /api/sync/status.
func (sc *SyncController) Status(c *gin.Context) {
	resp := SyncStatusResponse{NextRunAt: sc.scheduler.GetNextRunTime()}

	progress, err := sc.progress.GetSyncProgress()
	if err == nil {
		resp.Running = progress.Status == entities.SyncStatusRunning
		resp.Status = string(progress.Status)
		resp.Synced = progress.Synced
		resp.Conflicts = progress.Conflicts
		resp.Failed = progress.Failed
		resp.Error = progress.Error
		startedAt := progress.StartedAt
		resp.StartedAt = &startedAt
		resp.CompletedAt = progress.CompletedAt
	}

	c.IndentedJSON(http.StatusOK, resp)
}
