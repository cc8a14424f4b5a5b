package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveContentSource_Precedence(t *testing.T) {
	full := Bookmark{
		Resources: Resources{Article: &Resource{Src: "/article"}},
		Content:   "inline content",
		Body:      "inline body",
		Text:      "inline text",
		Resource:  &Resource{Src: "/generic"},
	}

	// The article resource link outranks everything else.
	src := ResolveContentSource(full)
	assert.Equal(t, "/article", src.URL)
	assert.Empty(t, src.Inline)

	// Inline legacy fields are consulted in order once the link is absent.
	full.Resources.Article = nil
	assert.Equal(t, "inline content", ResolveContentSource(full).Inline)

	full.Content = ""
	assert.Equal(t, "inline body", ResolveContentSource(full).Inline)

	full.Body = ""
	assert.Equal(t, "inline text", ResolveContentSource(full).Inline)

	// The generic resource link is the last resort.
	full.Text = ""
	assert.Equal(t, "/generic", ResolveContentSource(full).URL)

	full.Resource = nil
	assert.True(t, ResolveContentSource(full).IsZero())
}

func TestResolveContentSource_IgnoresEmptySrc(t *testing.T) {
	b := Bookmark{
		Resources: Resources{Article: &Resource{Src: ""}},
		Body:      "fallback body",
	}
	assert.Equal(t, "fallback body", ResolveContentSource(b).Inline)
}
