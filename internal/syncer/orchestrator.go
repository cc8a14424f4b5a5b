// Package syncer composes the cache, retry executor, conflict resolver and
// operation coordinator with the remote API and the local store into the
// offline-first synchronization engine. Every public operation either
// resolves with a fully populated domain value or fails with exactly one
// typed error.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/readmirror/readmirror/internal/cache"
	"github.com/readmirror/readmirror/internal/conflict"
	"github.com/readmirror/readmirror/internal/coordinator"
	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/retry"
)

// ErrNotFound is returned by LocalStore.Get for unknown ids.
var ErrNotFound = errors.New("bookmark not found")

// RemoteAPI is the remote bookmark service collaborator.
type RemoteAPI interface {
	List(ctx context.Context, filters remote.ListFilters) (*remote.ListResponse, error)
	Get(ctx context.Context, id string) (*remote.Bookmark, error)
	Create(ctx context.Context, payload remote.CreatePayload) (*remote.Bookmark, error)
	Update(ctx context.Context, id string, patch map[string]any) (*remote.Bookmark, error)
	Delete(ctx context.Context, id string) error
	FetchContent(ctx context.Context, src string) (string, error)
}

// LocalStore is the local persistence collaborator. A returned error is
// non-fatal: batch operations log it and continue with the remaining items.
type LocalStore interface {
	Create(ctx context.Context, b *entities.Bookmark) error
	Update(ctx context.Context, id string, b *entities.Bookmark) error
	Get(ctx context.Context, id string) (*entities.Bookmark, error)
}

// ListParams are the domain-level list filters.
type ListParams struct {
	Archived *bool
	Favorite *bool
	Read     *bool
	Tags     []string
	Search   string
	Page     int
	PerPage  int

	// WithContent backfills missing article bodies through the coordinator.
	WithContent bool
}

// Page is one page of bookmarks.
type Page struct {
	Items      []entities.Bookmark `json:"items"`
	Page       int                 `json:"page"`
	TotalPages int                 `json:"total_pages"`
	TotalItems int                 `json:"total_items"`
}

// SyncParams scope a bulk pull.
type SyncParams struct {
	Archived *bool
	Tags     []string
	PerPage  int
}

// SyncResult aggregates one sync run.
type SyncResult struct {
	SyncedCount         int `json:"synced_count"`
	ConflictCount       int `json:"conflict_count"`
	PersistenceFailures int `json:"persistence_failures"`
}

// Config wires an Orchestrator. The composition root constructs all
// collaborators explicitly; there are no shared package-level instances.
type Config struct {
	Remote RemoteAPI
	Store  LocalStore
	Cache  *cache.Cache[entities.Bookmark]
	Retry  retry.Policy
	Logger *slog.Logger

	// ContentTimeout bounds each coordinated content fetch.
	ContentTimeout time.Duration
	// SyncConcurrency bounds per-item workers during Sync.
	SyncConcurrency int
}

// Orchestrator implements the list/get/create/update/delete/sync operations.
type Orchestrator struct {
	remote RemoteAPI
	store  LocalStore
	cache  *cache.Cache[entities.Bookmark]
	coord  *coordinator.Coordinator[string]
	policy retry.Policy
	logger *slog.Logger

	contentTimeout  time.Duration
	syncConcurrency int
}

// New creates an orchestrator. The content coordinator is keyed by bookmark
// id; its fetch resolves the bookmark's content source and downloads the
// body when it is not inline.
func New(cfg Config) *Orchestrator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ContentTimeout <= 0 {
		cfg.ContentTimeout = 30 * time.Second
	}
	if cfg.SyncConcurrency <= 0 {
		cfg.SyncConcurrency = 4
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	o := &Orchestrator{
		remote:          cfg.Remote,
		store:           cfg.Store,
		cache:           cfg.Cache,
		policy:          cfg.Retry,
		logger:          cfg.Logger,
		contentTimeout:  cfg.ContentTimeout,
		syncConcurrency: cfg.SyncConcurrency,
	}
	o.coord = coordinator.New(o.fetchContentByID, cfg.Logger)
	return o
}

// Coordinator exposes coordinator introspection for the stats surface.
func (o *Orchestrator) Coordinator() *coordinator.Coordinator[string] {
	return o.coord
}

// CacheStats exposes the cache statistics surface.
func (o *Orchestrator) CacheStats() cache.Stats {
	return o.cache.Stats()
}

// Shutdown cancels all coordinated work.
func (o *Orchestrator) Shutdown() {
	o.coord.CancelAll()
}

// fetchContentByID is the coordinator's underlying fetch: load the bookmark
// payload, resolve its content source and download the body if needed.
func (o *Orchestrator) fetchContentByID(ctx context.Context, id string) (string, error) {
	payload, err := o.remote.Get(ctx, id)
	if err != nil {
		return "", err
	}
	src := remote.ResolveContentSource(*payload)
	switch {
	case src.Inline != "":
		return src.Inline, nil
	case src.URL != "":
		return o.remote.FetchContent(ctx, src.URL)
	default:
		return "", nil
	}
}

// FetchList pulls one page of bookmarks from the remote service.
func (o *Orchestrator) FetchList(ctx context.Context, params ListParams) (*Page, error) {
	resp, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*remote.ListResponse, error) {
		return o.remote.List(ctx, toRemoteFilters(params))
	})
	if err != nil {
		return nil, passThrough("List", err)
	}

	now := time.Now()
	items := make([]entities.Bookmark, 0, len(resp.Items))
	for _, wire := range resp.Items {
		items = append(items, fromWire(wire, now))
	}

	if params.WithContent {
		o.backfillContent(ctx, items)
	}

	// The server-side read filter has not proven reliable, so the read state
	// is re-filtered client-side as well.
	if params.Read != nil {
		filtered := items[:0]
		for _, item := range items {
			if item.IsRead == *params.Read {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	return &Page{
		Items:      items,
		Page:       resp.Page,
		TotalPages: resp.TotalPages,
		TotalItems: resp.TotalItems,
	}, nil
}

// backfillContent fills missing article bodies through the coordinator as
// user-initiated high-priority fetches. A failed backfill leaves the item's
// content empty rather than failing the list.
func (o *Orchestrator) backfillContent(ctx context.Context, items []entities.Bookmark) {
	for i := range items {
		if items[i].Content != "" {
			continue
		}
		content, err := o.coord.Request(ctx, items[i].ID, coordinator.Options{
			Kind:     coordinator.KindIndividual,
			Priority: coordinator.PriorityHigh,
			Timeout:  o.contentTimeout,
		})
		if err != nil {
			o.logger.Warn("content backfill failed", "id", items[i].ID, "error", err)
			continue
		}
		items[i].Content = content
	}
}

// GetOne returns a bookmark, cache first.
func (o *Orchestrator) GetOne(ctx context.Context, id string) (*entities.Bookmark, error) {
	if cached, ok := o.cache.Get(id); ok {
		return &cached, nil
	}

	wire, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*remote.Bookmark, error) {
		return o.remote.Get(ctx, id)
	})
	if err != nil {
		return nil, wrapOperation("Get", err)
	}

	b := fromWire(*wire, time.Now())
	o.cache.Set(id, b)
	return &b, nil
}

// Create saves a new bookmark remotely and caches the result.
func (o *Orchestrator) Create(ctx context.Context, payload remote.CreatePayload) (*entities.Bookmark, error) {
	wire, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*remote.Bookmark, error) {
		return o.remote.Create(ctx, payload)
	})
	if err != nil {
		return nil, wrapOperation("Create", err)
	}

	b := fromWire(*wire, time.Now())
	o.cache.Set(b.ID, b)
	return &b, nil
}

// Update applies a partial update remotely and refreshes the cache entry.
func (o *Orchestrator) Update(ctx context.Context, id string, patch entities.BookmarkPatch) (*entities.Bookmark, error) {
	wirePatch := toWirePatch(patch)

	wire, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*remote.Bookmark, error) {
		return o.remote.Update(ctx, id, wirePatch)
	})
	if err != nil {
		return nil, wrapOperation("Update", err)
	}

	b := fromWire(*wire, time.Now())
	o.cache.Set(id, b)
	return &b, nil
}

// LocalDeleter is implemented by stores that can drop a mirrored row. The
// orchestrator removes the local copy after a confirmed remote delete.
type LocalDeleter interface {
	Delete(ctx context.Context, id string) error
}

// Delete removes a bookmark remotely and invalidates its cache entry.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	_, err := retry.Do(ctx, o.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, o.remote.Delete(ctx, id)
	})
	if err != nil {
		return passThrough("Delete", err)
	}
	o.cache.Delete(id)

	if deleter, ok := o.store.(LocalDeleter); ok {
		if err := deleter.Delete(ctx, id); err != nil {
			o.logger.Warn("failed to delete local copy", "id", id, "error", err)
		}
	}
	return nil
}

// Sync bulk-pulls every page from the remote service and upserts into the
// local store. Per-item persistence failures are logged and skipped, never
// aborting the batch; conflictCount reflects items whose local copy had
// unpushed edits diverging from the pulled version. A page fetch that fails
// after retries aborts the run.
func (o *Orchestrator) Sync(ctx context.Context, params SyncParams) (*SyncResult, error) {
	perPage := params.PerPage
	if perPage <= 0 {
		perPage = 100
	}

	now := time.Now()
	result := &SyncResult{}
	var mu sync.Mutex

	totalPages := 1
	for page := 1; page <= totalPages; page++ {
		filters := remote.ListFilters{
			IsArchived: params.Archived,
			Tags:       params.Tags,
			Page:       page,
			PerPage:    perPage,
		}
		resp, err := retry.Do(ctx, o.policy, func(ctx context.Context) (*remote.ListResponse, error) {
			return o.remote.List(ctx, filters)
		})
		if err != nil {
			return nil, passThrough("Sync", err)
		}
		if resp.TotalPages > totalPages {
			totalPages = resp.TotalPages
		}
		// Items deleted mid-run can leave a trailing empty page.
		if len(resp.Items) == 0 {
			break
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.syncConcurrency)

		for _, wire := range resp.Items {
			wire := wire
			g.Go(func() error {
				incoming := fromWire(wire, now)
				conflicted, persistErr := o.upsert(gctx, incoming)

				mu.Lock()
				result.SyncedCount++
				if conflicted {
					result.ConflictCount++
				}
				if persistErr != nil {
					result.PersistenceFailures++
				}
				mu.Unlock()

				if persistErr != nil {
					o.logger.Warn("sync: persisting item failed, skipping",
						"id", incoming.ID, "error", persistErr)
				}
				// Item failures are isolated; the batch always continues.
				return nil
			})
		}
		_ = g.Wait()
	}

	o.logger.Info("sync completed",
		"synced", result.SyncedCount,
		"conflicts", result.ConflictCount,
		"failures", result.PersistenceFailures)
	return result, nil
}

// upsert stores one pulled item locally, resolving divergence against a
// locally modified copy first. Returns whether a conflict was detected and
// any persistence error.
func (o *Orchestrator) upsert(ctx context.Context, incoming entities.Bookmark) (bool, error) {
	conflicted := false
	record := incoming

	existing, err := o.store.Get(ctx, incoming.ID)
	if err == nil && existing != nil && existing.Modified {
		if details := conflict.Detect(*existing, incoming); len(details) > 0 {
			conflicted = true
			resolved, resolveErr := conflict.Resolve(*existing, incoming, conflict.StrategyLastWriteWins, nil)
			if resolveErr != nil {
				return conflicted, resolveErr
			}
			if violations := conflict.ValidateResolution(resolved); len(violations) > 0 {
				o.logger.Warn("sync: resolution rejected, keeping remote copy",
					"id", incoming.ID, "violations", len(violations))
			} else {
				record = resolved
			}
		}
	}

	if createErr := o.store.Create(ctx, &record); createErr != nil {
		if updateErr := o.store.Update(ctx, record.ID, &record); updateErr != nil {
			return conflicted, updateErr
		}
	}

	o.cache.Set(record.ID, record)
	return conflicted, nil
}

// wrapOperation shapes errors for the operations whose callers match on
// "<Operation> failed: <message>". The original error stays in the chain.
func wrapOperation(op string, err error) error {
	return fmt.Errorf("%s failed: %w", op, err)
}

// passThrough leaves structured remote errors and connectivity loss
// untouched so callers can surface their codes; anything unrecognized is
// wrapped into the uniform message shape.
func passThrough(op string, err error) error {
	var re *remote.Error
	if errors.As(err, &re) || errors.Is(err, remote.ErrNoConnectivity) {
		return err
	}
	return wrapOperation(op, err)
}
