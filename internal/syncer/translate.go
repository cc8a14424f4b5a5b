package syncer

import (
	"time"

	"github.com/readmirror/readmirror/internal/entities"
	"github.com/readmirror/readmirror/internal/remote"
)

// readProgressDone is the wire read_progress value meaning "read".
const readProgressDone = 100

// fromWire maps a remote bookmark payload to the domain model. Optional wire
// fields default to empty strings, empty slices or zero so the domain model
// stays total; no field is ever left undefined.
//
// Field table: title↔title, summary↔description, imageUrl↔resources.image.src
// (thumbnail fallback), readTime↔reading_time, isArchived↔is_archived,
// isFavorite↔is_marked, isRead↔read_progress>=100, tags↔labels,
// sourceUrl↔url, createdAt↔created, updatedAt↔updated,
// contentUrl↔resources.article.src.
func fromWire(b remote.Bookmark, now time.Time) entities.Bookmark {
	out := entities.Bookmark{
		ID:         b.ID,
		URL:        b.URL,
		SourceURL:  b.URL,
		Title:      b.Title,
		Summary:    b.Description,
		ReadTime:   b.ReadingTime,
		IsArchived: b.IsArchived,
		IsFavorite: b.IsMarked,
		IsRead:     b.ReadProgress >= readProgressDone,
		Tags:       b.Labels,
		CreatedAt:  b.Created,
		UpdatedAt:  b.Updated,
		SyncedAt:   now,
		Modified:   false,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}

	if b.Resources.Image != nil && b.Resources.Image.Src != "" {
		out.ImageURL = b.Resources.Image.Src
	} else if b.Resources.Thumbnail != nil && b.Resources.Thumbnail.Src != "" {
		out.ImageURL = b.Resources.Thumbnail.Src
	}

	src := remote.ResolveContentSource(b)
	out.Content = src.Inline
	out.ContentURL = src.URL

	return out
}

// toWirePatch translates a domain patch to the wire shape using the inverse
// field table. Fields the caller did not set are omitted entirely. Setting
// the read flag writes read_progress 100 (or 0 for unread).
func toWirePatch(patch entities.BookmarkPatch) map[string]any {
	wire := map[string]any{}
	if patch.Title != nil {
		wire["title"] = *patch.Title
	}
	if patch.Summary != nil {
		wire["description"] = *patch.Summary
	}
	if patch.IsArchived != nil {
		wire["is_archived"] = *patch.IsArchived
	}
	if patch.IsFavorite != nil {
		wire["is_marked"] = *patch.IsFavorite
	}
	if patch.IsRead != nil {
		if *patch.IsRead {
			wire["read_progress"] = readProgressDone
		} else {
			wire["read_progress"] = 0
		}
	}
	if patch.Tags != nil {
		wire["labels"] = *patch.Tags
	}
	return wire
}

// toRemoteFilters maps domain list parameters to the remote query filters.
func toRemoteFilters(params ListParams) remote.ListFilters {
	return remote.ListFilters{
		IsArchived: params.Archived,
		IsFavorite: params.Favorite,
		IsRead:     params.Read,
		Tags:       params.Tags,
		Search:     params.Search,
		Page:       params.Page,
		PerPage:    params.PerPage,
	}
}
