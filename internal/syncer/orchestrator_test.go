package syncer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmirror/readmirror/internal/cache"
	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/remote"
	"github.com/readmirror/readmirror/internal/retry"
)

// fakeRemote is an in-memory RemoteAPI with per-call failure hooks.
type fakeRemote struct {
	mu        sync.Mutex
	bookmarks map[string]remote.Bookmark

	listCalls   atomic.Int64
	getCalls    atomic.Int64
	listErr     error
	getErr      error
	updateErr   error
	deleteErr   error
	lastPatch   map[string]any
	lastFilters remote.ListFilters
}

func newFakeRemote(items ...remote.Bookmark) *fakeRemote {
	f := &fakeRemote{bookmarks: map[string]remote.Bookmark{}}
	for _, b := range items {
		f.bookmarks[b.ID] = b
	}
	return f
}

func (f *fakeRemote) List(ctx context.Context, filters remote.ListFilters) (*remote.ListResponse, error) {
	f.listCalls.Add(1)
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilters = filters

	ids := make([]string, 0, len(f.bookmarks))
	for id := range f.bookmarks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	page := filters.Page
	if page < 1 {
		page = 1
	}
	perPage := filters.PerPage
	if perPage <= 0 || perPage > len(ids) {
		perPage = len(ids)
	}
	totalPages := 1
	if perPage > 0 {
		totalPages = (len(ids) + perPage - 1) / perPage
	}

	resp := &remote.ListResponse{Page: page, TotalPages: totalPages, TotalItems: len(ids)}
	start := (page - 1) * perPage
	if start > len(ids) {
		start = len(ids)
	}
	end := start + perPage
	if end > len(ids) {
		end = len(ids)
	}
	for _, id := range ids[start:end] {
		resp.Items = append(resp.Items, f.bookmarks[id])
	}
	return resp, nil
}

func (f *fakeRemote) Get(ctx context.Context, id string) (*remote.Bookmark, error) {
	f.getCalls.Add(1)
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookmarks[id]
	if !ok {
		return nil, &remote.Error{Code: remote.CodeNotFound, Message: "no such bookmark", StatusCode: 404, Timestamp: time.Now()}
	}
	return &b, nil
}

func (f *fakeRemote) Create(ctx context.Context, payload remote.CreatePayload) (*remote.Bookmark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := remote.Bookmark{
		ID:      fmt.Sprintf("bm-%d", len(f.bookmarks)+1),
		URL:     payload.URL,
		Title:   payload.Title,
		Labels:  payload.Labels,
		Created: time.Now(),
		Updated: time.Now(),
	}
	f.bookmarks[b.ID] = b
	return &b, nil
}

func (f *fakeRemote) Update(ctx context.Context, id string, patch map[string]any) (*remote.Bookmark, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPatch = patch
	b := f.bookmarks[id]
	if title, ok := patch["title"].(string); ok {
		b.Title = title
	}
	f.bookmarks[id] = b
	return &b, nil
}

func (f *fakeRemote) Delete(ctx context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookmarks, id)
	return nil
}

func (f *fakeRemote) FetchContent(ctx context.Context, src string) (string, error) {
	return "content from " + src, nil
}

// fakeStore is an in-memory LocalStore that can fail for selected ids.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]entities.Bookmark
	failIDs map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]entities.Bookmark{}, failIDs: map[string]bool{}}
}

func (s *fakeStore) Create(ctx context.Context, b *entities.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[b.ID] {
		return errors.New("disk full")
	}
	if _, exists := s.records[b.ID]; exists {
		return errors.New("already exists")
	}
	s.records[b.ID] = *b
	return nil
}

func (s *fakeStore) Update(ctx context.Context, id string, b *entities.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[id] {
		return errors.New("disk full")
	}
	s.records[id] = *b
	return nil
}

func (s *fakeStore) Get(ctx context.Context, id string) (*entities.Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func newTestOrchestrator(r *fakeRemote, s *fakeStore) *Orchestrator {
	return New(Config{
		Remote: r,
		Store:  s,
		Cache:  cache.New[entities.Bookmark](cache.Config{MaxEntries: 100, MaxMemory: 1 << 20, DefaultTTL: time.Minute}),
		Retry: retry.Policy{
			MaxAttempts:   3,
			BaseDelay:     time.Millisecond,
			MaxDelay:      5 * time.Millisecond,
			BackoffFactor: 2,
		},
	})
}

func wireBookmark(id string) remote.Bookmark {
	return remote.Bookmark{
		ID:      id,
		URL:     "https://example.com/" + id,
		Title:   "Title " + id,
		Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Updated: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestFetchList_EmptyRemote(t *testing.T) {
	o := newTestOrchestrator(newFakeRemote(), newFakeStore())

	page, err := o.FetchList(context.Background(), ListParams{})
	require.NoError(t, err)

	assert.Empty(t, page.Items)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 1, page.TotalPages)
	assert.Equal(t, 0, page.TotalItems)
}

func TestFetchList_ClientSideReadFilter(t *testing.T) {
	read := wireBookmark("bm-read")
	read.ReadProgress = 100
	unread := wireBookmark("bm-unread")

	r := newFakeRemote(read, unread)
	o := newTestOrchestrator(r, newFakeStore())

	wantRead := true
	page, err := o.FetchList(context.Background(), ListParams{Read: &wantRead})
	require.NoError(t, err)

	// Even if the server ignored the filter, the client re-applies it.
	require.Len(t, page.Items, 1)
	assert.Equal(t, "bm-read", page.Items[0].ID)
}

func TestFetchList_ContentBackfill(t *testing.T) {
	withBody := wireBookmark("bm-1")
	withBody.Body = "already inline"
	needsFetch := wireBookmark("bm-2")
	needsFetch.Resources.Article = &remote.Resource{Src: "/bm-2/article"}

	r := newFakeRemote(withBody, needsFetch)
	o := newTestOrchestrator(r, newFakeStore())

	page, err := o.FetchList(context.Background(), ListParams{WithContent: true})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)

	byID := map[string]entities.Bookmark{}
	for _, item := range page.Items {
		byID[item.ID] = item
	}
	assert.Equal(t, "already inline", byID["bm-1"].Content)
	assert.Equal(t, "content from /bm-2/article", byID["bm-2"].Content)
}

func TestFetchList_StructuredErrorPassesThrough(t *testing.T) {
	r := newFakeRemote()
	r.listErr = &remote.Error{Code: remote.CodeUnauthorized, Message: "bad token", StatusCode: 401, Timestamp: time.Now()}
	o := newTestOrchestrator(r, newFakeStore())

	_, err := o.FetchList(context.Background(), ListParams{})
	require.Error(t, err)

	var re *remote.Error
	require.ErrorAs(t, err, &re)
	assert.Equal(t, remote.CodeUnauthorized, re.Code)
	assert.NotContains(t, err.Error(), "failed:", "structured list errors must pass through unwrapped")
}

func TestGetOne_CacheFirst(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	o := newTestOrchestrator(r, newFakeStore())

	first, err := o.GetOne(context.Background(), "bm-1")
	require.NoError(t, err)

	second, err := o.GetOne(context.Background(), "bm-1")
	require.NoError(t, err)

	assert.Equal(t, *first, *second)
	assert.Equal(t, int64(1), r.getCalls.Load(), "second call must be served from cache")
}

func TestGetOne_WrapsErrors(t *testing.T) {
	r := newFakeRemote()
	o := newTestOrchestrator(r, newFakeStore())

	_, err := o.GetOne(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Get failed:")

	var re *remote.Error
	assert.ErrorAs(t, err, &re, "the structured error must stay in the chain")
}

func TestGetOne_RetriesTransientFailures(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	transient := &remote.Error{Code: remote.CodeServerError, Message: "boom", StatusCode: 502, Retryable: true, Timestamp: time.Now()}
	r.getErr = transient

	o := newTestOrchestrator(r, newFakeStore())

	go func() {
		time.Sleep(3 * time.Millisecond)
		r.getErr = nil
	}()

	// With MaxAttempts 3 and millisecond delays, the transient failure is
	// retried away.
	_, err := o.GetOne(context.Background(), "bm-1")
	if err != nil {
		// Retries may have raced the error clearing; either way the count
		// must respect the policy bound.
		assert.LessOrEqual(t, r.getCalls.Load(), int64(3))
		return
	}
	assert.GreaterOrEqual(t, r.getCalls.Load(), int64(2))
}

func TestUpdate_TranslatesPatchAndRefreshesCache(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	o := newTestOrchestrator(r, newFakeStore())

	title := "Renamed"
	read := true
	updated, err := o.Update(context.Background(), "bm-1", entities.BookmarkPatch{Title: &title, IsRead: &read})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	assert.Equal(t, map[string]any{"title": "Renamed", "read_progress": readProgressDone}, r.lastPatch)

	cached, err := o.GetOne(context.Background(), "bm-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", cached.Title)
	assert.Equal(t, int64(0), r.getCalls.Load(), "update must refresh the cache entry")
}

func TestUpdate_WrapsUnknownErrors(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	r.updateErr = errors.New("weird transport glitch")
	o := newTestOrchestrator(r, newFakeStore())

	_, err := o.Update(context.Background(), "bm-1", entities.BookmarkPatch{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Update failed: weird transport glitch")
}

func TestDelete_InvalidatesCache(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	o := newTestOrchestrator(r, newFakeStore())

	_, err := o.GetOne(context.Background(), "bm-1")
	require.NoError(t, err)

	require.NoError(t, o.Delete(context.Background(), "bm-1"))

	_, err = o.GetOne(context.Background(), "bm-1")
	require.Error(t, err, "deleted bookmark must not be served from cache")
}

func TestSync_PersistsAllItems(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"), wireBookmark("bm-2"), wireBookmark("bm-3"))
	s := newFakeStore()
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SyncedCount)
	assert.Equal(t, 0, result.ConflictCount)
	assert.Equal(t, 0, result.PersistenceFailures)
	assert.Len(t, s.records, 3)
}

func TestSync_WalksAllPages(t *testing.T) {
	r := newFakeRemote(
		wireBookmark("bm-1"), wireBookmark("bm-2"), wireBookmark("bm-3"),
		wireBookmark("bm-4"), wireBookmark("bm-5"), wireBookmark("bm-6"),
	)
	s := newFakeStore()
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{PerPage: 2})
	require.NoError(t, err)

	assert.Equal(t, 6, result.SyncedCount, "every page must be pulled, not just the first")
	assert.Len(t, s.records, 6)
	assert.GreaterOrEqual(t, r.listCalls.Load(), int64(3), "a 3-page listing needs at least 3 fetches")
}

func TestSync_IsolatesPersistenceFailures(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"), wireBookmark("bm-2"), wireBookmark("bm-3"), wireBookmark("bm-4"))
	s := newFakeStore()
	s.failIDs["bm-3"] = true
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{})
	require.NoError(t, err, "a single item's persistence failure must not abort the batch")

	assert.Equal(t, 4, result.SyncedCount)
	assert.Equal(t, 1, result.PersistenceFailures)
	assert.Len(t, s.records, 3, "the remaining items must still be persisted")
	_, failed := s.records["bm-3"]
	assert.False(t, failed)
}

func TestSync_FallsBackToUpdate(t *testing.T) {
	r := newFakeRemote(wireBookmark("bm-1"))
	s := newFakeStore()
	s.records["bm-1"] = entities.Bookmark{ID: "bm-1", Title: "stale"}
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, "Title bm-1", s.records["bm-1"].Title, "existing rows are updated when create fails")
}

func TestSync_CountsConflicts(t *testing.T) {
	incoming := wireBookmark("bm-1")
	incoming.Title = "Remote edit"
	incoming.Updated = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	r := newFakeRemote(incoming)
	s := newFakeStore()
	s.records["bm-1"] = entities.Bookmark{
		ID:        "bm-1",
		URL:       "https://example.com/bm-1",
		Title:     "Local edit",
		Modified:  true,
		UpdatedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.SyncedCount)
	assert.Equal(t, 1, result.ConflictCount)
	// Remote is newer, so last-write-wins keeps the remote edit.
	assert.Equal(t, "Remote edit", s.records["bm-1"].Title)
	assert.False(t, s.records["bm-1"].Modified)
}

func TestSync_UnmodifiedLocalCopyIsPurePull(t *testing.T) {
	incoming := wireBookmark("bm-1")
	incoming.Title = "Remote edit"

	r := newFakeRemote(incoming)
	s := newFakeStore()
	s.records["bm-1"] = entities.Bookmark{ID: "bm-1", Title: "old", Modified: false}
	o := newTestOrchestrator(r, s)

	result, err := o.Sync(context.Background(), SyncParams{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ConflictCount, "divergence without local edits is a pure pull, not a conflict")
	assert.Equal(t, "Remote edit", s.records["bm-1"].Title)
}
