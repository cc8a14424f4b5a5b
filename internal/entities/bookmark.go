package entities

import (
	"time"
)

// Bookmark is the locally mirrored copy of a remote bookmark record.
//
// Modified is true whenever local edits have not yet been confirmed pushed to
// the remote service. It is cleared only by a successful push or by a conflict
// resolution that discards the local changes.
type Bookmark struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	URL        string    `gorm:"size:2048" json:"url"`
	Title      string    `gorm:"index;size:512" json:"title"`
	Summary    string    `gorm:"type:text" json:"summary"`
	Content    string    `gorm:"type:text" json:"content,omitempty"`
	ImageURL   string    `gorm:"size:2048" json:"image_url,omitempty"`
	ContentURL string    `gorm:"size:2048" json:"content_url,omitempty"`
	ReadTime   int       `json:"read_time"`
	IsArchived bool      `gorm:"index" json:"is_archived"`
	IsFavorite bool      `gorm:"index" json:"is_favorite"`
	IsRead     bool      `gorm:"index" json:"is_read"`
	Tags       []string  `gorm:"serializer:json" json:"tags"`
	SourceURL  string    `gorm:"size:2048" json:"source_url"`
	// Timestamps mirror the remote record, so gorm must not manage them.
	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
	SyncedAt  time.Time `json:"synced_at"`
	Modified  bool      `gorm:"index" json:"modified"`
}

func (Bookmark) TableName() string {
	return "bookmarks"
}

// BookmarkPatch carries a partial update. Nil fields were not set by the
// caller and must be omitted from the wire patch entirely.
type BookmarkPatch struct {
	Title      *string   `json:"title,omitempty"`
	Summary    *string   `json:"summary,omitempty"`
	IsArchived *bool     `json:"is_archived,omitempty"`
	IsFavorite *bool     `json:"is_favorite,omitempty"`
	IsRead     *bool     `json:"is_read,omitempty"`
	Tags       *[]string `json:"tags,omitempty"`
}

// IsEmpty reports whether the patch sets no fields at all.
func (p BookmarkPatch) IsEmpty() bool {
	return p.Title == nil && p.Summary == nil && p.IsArchived == nil &&
		p.IsFavorite == nil && p.IsRead == nil && p.Tags == nil
}
