package conflict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/readmirror/readmirror/internal/entities"
)

func baseBookmark() entities.Bookmark {
	return entities.Bookmark{
		ID:        "bm-1",
		URL:       "https://example.com/article",
		SourceURL: "https://example.com/article",
		Title:     "Original title",
		Summary:   "Original summary",
		Content:   "Original content",
		Tags:      []string{"go", "reading"},
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestDetect_NoDivergence(t *testing.T) {
	b := baseBookmark()
	details := Detect(b, b)
	assert.Empty(t, details)
}

func TestDetect_ClassifiesFields(t *testing.T) {
	local := baseBookmark()
	remote := baseBookmark()
	local.Title = "Edited title"
	local.Content = "Edited content"
	remote.IsArchived = true
	remote.Tags = []string{"go"}

	details := Detect(local, remote)
	require.Len(t, details, 4)

	byField := map[string]Detail{}
	for _, d := range details {
		byField[d.Field] = d
	}

	assert.Equal(t, TypeContentModified, byField["title"].Type)
	assert.Equal(t, SeverityMedium, byField["title"].Severity)
	assert.Equal(t, SeverityHigh, byField["content"].Severity)
	assert.Equal(t, TypeStatusChanged, byField["is_archived"].Type)
	assert.Equal(t, SeverityLow, byField["is_archived"].Severity)
	assert.Equal(t, TypeTagsUpdated, byField["tags"].Type)
}

func TestDetect_TagsOrderIndependent(t *testing.T) {
	local := baseBookmark()
	remote := baseBookmark()
	local.Tags = []string{"reading", "go"}
	remote.Tags = []string{"go", "reading"}

	assert.Empty(t, Detect(local, remote))

	remote.Tags = []string{"go", "go"}
	assert.Len(t, Detect(local, remote), 1, "content-sensitive comparison must flag duplicates")
}

func TestResolve_LastWriteWins(t *testing.T) {
	local := baseBookmark()
	remote := baseBookmark()
	local.Title = "Local title"
	local.UpdatedAt = time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	remote.Title = "Remote title"
	remote.UpdatedAt = time.Date(2026, 1, 4, 0, 0, 0, 0, time.UTC)

	result, err := Resolve(local, remote, StrategyLastWriteWins, nil)
	require.NoError(t, err)

	assert.Equal(t, "Remote title", result.Title, "later record wins wholesale")
	assert.Equal(t, remote.UpdatedAt, result.UpdatedAt)
	assert.False(t, result.Modified)
	assert.False(t, result.SyncedAt.IsZero())
}

func TestResolve_LocalWins(t *testing.T) {
	local := baseBookmark()
	remote := baseBookmark()
	local.Title = "Local title"
	local.Modified = true
	remote.Title = "Remote title"

	result, err := Resolve(local, remote, StrategyLocalWins, nil)
	require.NoError(t, err)

	assert.Equal(t, "Local title", result.Title)
	assert.True(t, result.Modified, "local edits still need pushing")
}

func TestResolve_RemoteWins(t *testing.T) {
	local := baseBookmark()
	remote := baseBookmark()
	local.Modified = true
	remote.Title = "Remote title"

	result, err := Resolve(local, remote, StrategyRemoteWins, nil)
	require.NoError(t, err)

	assert.Equal(t, "Remote title", result.Title)
	assert.False(t, result.Modified)
}

func TestResolve_ThreeWayMerge_DisjointChanges(t *testing.T) {
	base := baseBookmark()
	local := baseBookmark()
	remote := baseBookmark()

	local.Title = "Local title"
	remote.Summary = "Remote summary"
	remote.UpdatedAt = local.UpdatedAt.Add(time.Hour)

	result, err := Resolve(local, remote, StrategyThreeWayMerge, &base)
	require.NoError(t, err)

	assert.Equal(t, "Local title", result.Title, "only local changed title")
	assert.Equal(t, "Remote summary", result.Summary, "only remote changed summary")
	assert.Equal(t, remote.UpdatedAt, result.UpdatedAt, "updatedAt = max(local, remote)")
	assert.False(t, result.Modified)
}

func TestResolve_ThreeWayMerge_BothChangedFallsBackToLWW(t *testing.T) {
	base := baseBookmark()
	local := baseBookmark()
	remote := baseBookmark()

	local.Title = "Local title"
	local.UpdatedAt = base.UpdatedAt.Add(2 * time.Hour)
	remote.Title = "Remote title"
	remote.UpdatedAt = base.UpdatedAt.Add(time.Hour)

	// Remote alone changed the read flag.
	remote.IsRead = true

	result, err := Resolve(local, remote, StrategyThreeWayMerge, &base)
	require.NoError(t, err)

	assert.Equal(t, "Local title", result.Title, "per-field LWW picks the newer side")
	assert.True(t, result.IsRead)
}

func TestResolve_ThreeWayMerge_RequiresBase(t *testing.T) {
	_, err := Resolve(baseBookmark(), baseBookmark(), StrategyThreeWayMerge, nil)
	assert.ErrorIs(t, err, ErrMergeBaseRequired)
}

func TestResolve_Manual(t *testing.T) {
	_, err := Resolve(baseBookmark(), baseBookmark(), StrategyManual, nil)
	assert.ErrorIs(t, err, ErrManualResolution)
}

func TestResolve_UnknownStrategy(t *testing.T) {
	_, err := Resolve(baseBookmark(), baseBookmark(), Strategy("bogus"), nil)
	assert.Error(t, err)
}

func TestValidateResolution(t *testing.T) {
	valid := baseBookmark()
	assert.Empty(t, ValidateResolution(valid))

	invalid := valid
	invalid.ID = ""
	invalid.Title = ""
	invalid.URL = ""
	invalid.SourceURL = ""
	invalid.UpdatedAt = time.Now().Add(time.Hour)

	violations := ValidateResolution(invalid)
	require.Len(t, violations, 4)

	fields := make([]string, 0, len(violations))
	for _, v := range violations {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"id", "title", "url", "updated_at"}, fields)
}
