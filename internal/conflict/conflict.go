// Package conflict detects and resolves divergence between a local and a
// remote copy of a bookmark. All functions are pure apart from stamping the
// resolution time; nothing here touches the network or storage.
package conflict

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/readmirror/readmirror/internal/entities"
)

// Strategy selects how a conflict is resolved.
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins"
	StrategyLocalWins     Strategy = "local-wins"
	StrategyRemoteWins    Strategy = "remote-wins"
	StrategyThreeWayMerge Strategy = "three-way-merge"
	StrategyManual        Strategy = "manual"
)

// Type classifies which aspect of the record diverged.
type Type string

const (
	TypeContentModified Type = "content-modified"
	TypeStatusChanged   Type = "status-changed"
	TypeTagsUpdated     Type = "tags-updated"
)

// Severity is a fixed per-field classification.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Detail describes a single diverging field.
type Detail struct {
	Field       string   `json:"field"`
	LocalValue  any      `json:"local_value"`
	RemoteValue any      `json:"remote_value"`
	Type        Type     `json:"type"`
	Severity    Severity `json:"severity"`
}

// Violation is a resolution result that should not be written as-is.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrManualResolution signals that the manual strategy was requested: the
// resolver does not pick a winner and the caller must obtain external input.
var ErrManualResolution = errors.New("conflict requires manual resolution")

// ErrMergeBaseRequired signals a three-way merge without a common ancestor.
var ErrMergeBaseRequired = errors.New("three-way merge requires a base version")

// Detect compares the mutable fields of two copies of the same bookmark and
// returns one Detail per diverging field. Tags are compared order-independent
// but content-sensitive.
func Detect(local, remote entities.Bookmark) []Detail {
	var details []Detail

	if local.Title != remote.Title {
		details = append(details, Detail{"title", local.Title, remote.Title, TypeContentModified, SeverityMedium})
	}
	if local.Summary != remote.Summary {
		details = append(details, Detail{"summary", local.Summary, remote.Summary, TypeContentModified, SeverityMedium})
	}
	if local.Content != remote.Content {
		details = append(details, Detail{"content", local.Content, remote.Content, TypeContentModified, SeverityHigh})
	}
	if local.IsArchived != remote.IsArchived {
		details = append(details, Detail{"is_archived", local.IsArchived, remote.IsArchived, TypeStatusChanged, SeverityLow})
	}
	if local.IsFavorite != remote.IsFavorite {
		details = append(details, Detail{"is_favorite", local.IsFavorite, remote.IsFavorite, TypeStatusChanged, SeverityLow})
	}
	if local.IsRead != remote.IsRead {
		details = append(details, Detail{"is_read", local.IsRead, remote.IsRead, TypeStatusChanged, SeverityLow})
	}
	if !equalTags(local.Tags, remote.Tags) {
		details = append(details, Detail{"tags", local.Tags, remote.Tags, TypeTagsUpdated, SeverityLow})
	}

	return details
}

// Resolve combines two diverging copies according to the strategy. The base
// argument is only consulted by the three-way merge and may be nil otherwise.
func Resolve(local, remote entities.Bookmark, strategy Strategy, base *entities.Bookmark) (entities.Bookmark, error) {
	now := time.Now()

	switch strategy {
	case StrategyLastWriteWins:
		winner := remote
		if local.UpdatedAt.After(remote.UpdatedAt) {
			winner = local
		}
		winner.SyncedAt = now
		winner.Modified = false
		return winner, nil

	case StrategyLocalWins:
		result := local
		result.SyncedAt = now
		// Local edits still need pushing to the remote.
		result.Modified = true
		return result, nil

	case StrategyRemoteWins:
		result := remote
		result.SyncedAt = now
		result.Modified = false
		return result, nil

	case StrategyThreeWayMerge:
		if base == nil {
			return entities.Bookmark{}, ErrMergeBaseRequired
		}
		return threeWayMerge(local, remote, *base, now), nil

	case StrategyManual:
		return entities.Bookmark{}, ErrManualResolution

	default:
		return entities.Bookmark{}, fmt.Errorf("unknown conflict strategy %q", strategy)
	}
}

// threeWayMerge keeps, per mutable field, whichever side changed relative to
// the common base. Fields both sides changed to different values fall back to
// last-write-wins for that field only.
func threeWayMerge(local, remote, base entities.Bookmark, now time.Time) entities.Bookmark {
	localNewer := local.UpdatedAt.After(remote.UpdatedAt)

	result := remote
	result.Title = mergeField(local.Title, remote.Title, base.Title, localNewer)
	result.Summary = mergeField(local.Summary, remote.Summary, base.Summary, localNewer)
	result.Content = mergeField(local.Content, remote.Content, base.Content, localNewer)
	result.IsArchived = mergeField(local.IsArchived, remote.IsArchived, base.IsArchived, localNewer)
	result.IsFavorite = mergeField(local.IsFavorite, remote.IsFavorite, base.IsFavorite, localNewer)
	result.IsRead = mergeField(local.IsRead, remote.IsRead, base.IsRead, localNewer)
	result.Tags = mergeTags(local.Tags, remote.Tags, base.Tags, localNewer)

	result.UpdatedAt = maxTime(local.UpdatedAt, remote.UpdatedAt)
	result.SyncedAt = now
	result.Modified = false
	return result
}

func mergeField[V comparable](localV, remoteV, baseV V, localNewer bool) V {
	if localV == remoteV {
		return localV
	}
	if localV != baseV && remoteV == baseV {
		return localV
	}
	if remoteV != baseV && localV == baseV {
		return remoteV
	}
	// Both sides changed to different values.
	if localNewer {
		return localV
	}
	return remoteV
}

func mergeTags(localT, remoteT, baseT []string, localNewer bool) []string {
	if equalTags(localT, remoteT) {
		return localT
	}
	localChanged := !equalTags(localT, baseT)
	remoteChanged := !equalTags(remoteT, baseT)
	if localChanged && !remoteChanged {
		return localT
	}
	if remoteChanged && !localChanged {
		return remoteT
	}
	if localNewer {
		return localT
	}
	return remoteT
}

// ValidateResolution checks that a resolved record is safe to persist. It
// returns violations rather than failing, letting the caller decide whether
// to abort the write.
func ValidateResolution(result entities.Bookmark) []Violation {
	var violations []Violation

	if result.ID == "" {
		violations = append(violations, Violation{"id", "resolved record has no id"})
	}
	if result.Title == "" {
		violations = append(violations, Violation{"title", "resolved record has an empty title"})
	}
	if result.URL == "" && result.SourceURL == "" {
		violations = append(violations, Violation{"url", "resolved record has no url"})
	}

	now := time.Now()
	if result.CreatedAt.After(now) {
		violations = append(violations, Violation{"created_at", "timestamp is in the future"})
	}
	if result.UpdatedAt.After(now) {
		violations = append(violations, Violation{"updated_at", "timestamp is in the future"})
	}

	return violations
}

func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
