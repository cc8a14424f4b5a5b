package http

import (
	"context"

	"github.com/readmirror/readmirror/internal/database"
	"github.com/readmirror/readmirror/internal/database/bookmarks"
	"github.com/readmirror/readmirror/internal/database/syncprogress"
	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/scheduler"
	"github.com/readmirror/readmirror/internal/syncer"
)

// BookmarkService is the orchestrator surface the controllers depend on.
type BookmarkService interface {
	FetchList(ctx context.Context, params syncer.ListParams) (*syncer.Page, error)
	GetOne(ctx context.Context, id string) (*entities.Bookmark, error)
	Create(ctx context.Context, payload remote.CreatePayload) (*entities.Bookmark, error)
	Update(ctx context.Context, id string, patch entities.BookmarkPatch) (*entities.Bookmark, error)
	Delete(ctx context.Context, id string) error
}

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Service      BookmarkService
	Orchestrator *syncer.Orchestrator
	Database     *database.Database
	Bookmarks    *bookmarks.Repository
	SyncProgress *syncprogress.Repository
	Scheduler    *scheduler.SyncScheduler
	Version      string
}
