package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/readmirror/readmirror/internal/database/syncprogress"
	"github.com/readmirror/readmirror/internal/syncer"
)

// FullSyncTask pulls every remote bookmark into the local mirror.
type FullSyncTask struct {
	// Trigger records what started the run, "scheduled" or "manual".
	Trigger string `json:"trigger,omitempty"`
}

// Config returns the queue configuration for full sync tasks.
func (t FullSyncTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "full_sync",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// FullSyncProcessor creates a processor function for FullSyncTask. Progress
// is recorded in the sync_progress table so the HTTP API can report it.
func FullSyncProcessor(orch *syncer.Orchestrator, progress *syncprogress.Repository, logger *slog.Logger) backlite.QueueProcessor[FullSyncTask] {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, task FullSyncTask) error {
		if err := progress.StartSync(0); err != nil {
			return fmt.Errorf("start sync progress: %w", err)
		}

		result, err := orch.Sync(ctx, syncer.SyncParams{})
		if err != nil {
			_ = progress.CompleteSync(false, err.Error())
			return fmt.Errorf("full sync: %w", err)
		}

		if err := progress.UpdateProgress(result.SyncedCount, result.ConflictCount, result.PersistenceFailures); err != nil {
			logger.Warn("failed to record sync progress", "error", err)
		}
		if err := progress.CompleteSync(true, ""); err != nil {
			logger.Warn("failed to complete sync progress", "error", err)
		}

		logger.Info("full sync complete",
			"trigger", task.Trigger,
			"synced", result.SyncedCount,
			"conflicts", result.ConflictCount,
			"persistence_failures", result.PersistenceFailures)

		return nil
	}
}

// NewFullSyncQueue creates a backlite queue for full sync tasks.
func NewFullSyncQueue(orch *syncer.Orchestrator, progress *syncprogress.Repository, logger *slog.Logger) backlite.Queue {
	return backlite.NewQueue(FullSyncProcessor(orch, progress, logger))
}
