package bookmarks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/syncer"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := "./test_bookmarks_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Bookmark{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	return repo, cleanup
}

func sampleBookmark(id string) *entities.Bookmark {
	return &entities.Bookmark{
		ID:        id,
		URL:       "https://example.com/article",
		Title:     "An Article",
		Summary:   "Summary text",
		Tags:      []string{"reading", "go"},
		SourceURL: "https://example.com/article",
		CreatedAt: time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC),
		SyncedAt:  time.Date(2026, 1, 12, 12, 0, 0, 0, time.UTC),
	}
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.Create(context.Background(), sampleBookmark("bm-1"))
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), "bm-1")
	require.NoError(t, err)
	assert.Equal(t, "An Article", got.Title)
	assert.Equal(t, []string{"reading", "go"}, got.Tags)
	assert.True(t, got.UpdatedAt.Equal(time.Date(2026, 1, 11, 12, 0, 0, 0, time.UTC)))
}

func TestRepository_Get_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, syncer.ErrNotFound)
}

func TestRepository_Create_DuplicateID(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Create(context.Background(), sampleBookmark("bm-1")))
	err := repo.Create(context.Background(), sampleBookmark("bm-1"))
	assert.Error(t, err)
}

func TestRepository_Update(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Create(context.Background(), sampleBookmark("bm-1")))

	updated := sampleBookmark("bm-1")
	updated.Title = "Renamed"
	updated.IsArchived = true
	updated.Modified = true
	err := repo.Update(context.Background(), "bm-1", updated)
	require.NoError(t, err)

	got, err := repo.Get(context.Background(), "bm-1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.True(t, got.IsArchived)
	assert.True(t, got.Modified)
}

func TestRepository_Update_PreservesRemoteTimestamps(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Create(context.Background(), sampleBookmark("bm-1")))

	remoteUpdated := time.Date(2026, 2, 1, 8, 30, 0, 0, time.UTC)
	updated := sampleBookmark("bm-1")
	updated.UpdatedAt = remoteUpdated
	require.NoError(t, repo.Update(context.Background(), "bm-1", updated))

	got, err := repo.Get(context.Background(), "bm-1")
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.Equal(remoteUpdated))
}

func TestRepository_Update_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	err := repo.Update(context.Background(), "missing", sampleBookmark("missing"))
	assert.ErrorIs(t, err, syncer.ErrNotFound)
}

func TestRepository_Delete(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Create(context.Background(), sampleBookmark("bm-1")))
	require.NoError(t, repo.Delete(context.Background(), "bm-1"))

	_, err := repo.Get(context.Background(), "bm-1")
	assert.ErrorIs(t, err, syncer.ErrNotFound)

	// Unknown ids are not an error
	assert.NoError(t, repo.Delete(context.Background(), "bm-1"))
}

func TestRepository_Counts(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.Create(context.Background(), sampleBookmark("bm-1")))
	modified := sampleBookmark("bm-2")
	modified.Modified = true
	require.NoError(t, repo.Create(context.Background(), modified))

	total, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	pending, err := repo.CountModified(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), pending)
}
