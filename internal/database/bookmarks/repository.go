// Package bookmarks provides database operations for locally mirrored
// bookmarks.
//
// The repository is the persistence collaborator of the sync orchestrator:
//
//	var _ syncer.LocalStore = (*Repository)(nil)
package bookmarks

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/syncer"
)

// Repository handles all bookmark database operations.
type Repository struct {
	db *gorm.DB
}

var (
	_ syncer.LocalStore   = (*Repository)(nil)
	_ syncer.LocalDeleter = (*Repository)(nil)
)

// NewRepository creates a new bookmark repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new bookmark row. Fails if the id already exists.
func (r *Repository) Create(ctx context.Context, b *entities.Bookmark) error {
	return r.db.WithContext(ctx).Create(b).Error
}

// Update overwrites the bookmark row with the given id.
func (r *Repository) Update(ctx context.Context, id string, b *entities.Bookmark) error {
	b.ID = id
	result := r.db.WithContext(ctx).Model(&entities.Bookmark{}).
		Where("id = ?", id).Select("*").Updates(b)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return syncer.ErrNotFound
	}
	return nil
}

// Get retrieves one bookmark by id.
func (r *Repository) Get(ctx context.Context, id string) (*entities.Bookmark, error) {
	var b entities.Bookmark
	err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, syncer.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes the local copy of a bookmark. Deleting an unknown id is not
// an error.
func (r *Repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&entities.Bookmark{}, "id = ?", id).Error
}

// Count reports how many bookmarks are mirrored locally.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Bookmark{}).Count(&n).Error
	return n, err
}

// CountModified reports how many local bookmarks carry unpushed edits.
func (r *Repository) CountModified(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Bookmark{}).
		Where("modified = ?", true).Count(&n).Error
	return n, err
}
