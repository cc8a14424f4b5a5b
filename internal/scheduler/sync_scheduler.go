// Package scheduler runs periodic full syncs against the remote bookmark
// service on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/readmirror/readmirror/internal/database/syncprogress"
	"github.com/readmirror/readmirror/internal/tasks"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// SyncScheduler manages periodic full syncs. Each tick enqueues a full sync
// task; the task queue serializes execution.
type SyncScheduler struct {
	tasks    *tasks.Client
	progress *syncprogress.Repository
	schedule string
	enabled  bool
	logger   *slog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// Config holds scheduler settings.
type Config struct {
	// Enabled turns scheduled syncs on. RunNow works regardless.
	Enabled bool
	// Schedule is a five-field cron expression.
	Schedule string
}

// NewSyncScheduler creates a new scheduler instance.
func NewSyncScheduler(taskClient *tasks.Client, progress *syncprogress.Repository, cfg Config, logger *slog.Logger) *SyncScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncScheduler{
		tasks:    taskClient,
		progress: progress,
		schedule: cfg.Schedule,
		enabled:  cfg.Enabled,
		logger:   logger,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// ValidateSchedule checks that a cron expression is parseable.
func ValidateSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// Start begins the scheduler if scheduled sync is enabled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.enabled {
		s.logger.Info("sync scheduler disabled")
		return nil
	}

	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.enqueueSync("scheduled")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("sync scheduler started", "schedule", s.schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running tick to finish.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil

	s.logger.Info("sync scheduler stopped")
}

// RunNow triggers an immediate sync regardless of the schedule.
func (s *SyncScheduler) RunNow() {
	go s.enqueueSync("manual")
}

// IsRunning returns whether the scheduler is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next scheduled sync will occur.
func (s *SyncScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *SyncScheduler) enqueueSync(trigger string) {
	running, err := s.progress.IsSyncRunning()
	if err != nil {
		s.logger.Warn("could not check sync progress", "error", err)
	}
	if running {
		s.logger.Info("sync skipped, already running", "trigger", trigger)
		return
	}

	if _, err := s.tasks.Add(tasks.FullSyncTask{Trigger: trigger}).Save(); err != nil {
		s.logger.Error("failed to enqueue full sync", "trigger", trigger, "error", err)
		return
	}

	s.logger.Info("full sync enqueued", "trigger", trigger)
}
