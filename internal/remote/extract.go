package remote

// Older server versions delivered the article body in several different
// places. ContentSource resolution walks an explicit, ordered rule list and
// the first match wins: the article resource link, then the inline legacy
// fields, then the generic resource link.
//
// The precedence mirrors what deployed servers actually emit; treat the exact
// order of the inline fields as incidental rather than a documented contract.

// ContentSource says where the article body of a bookmark can be obtained:
// either already inline in the payload, or behind a URL to fetch.
type ContentSource struct {
	Inline string
	URL    string
}

// IsZero reports that no rule matched and the bookmark has no body content.
func (s ContentSource) IsZero() bool {
	return s.Inline == "" && s.URL == ""
}

type contentRule struct {
	name    string
	extract func(Bookmark) (ContentSource, bool)
}

var contentRules = []contentRule{
	{"article-resource", extractArticleResource},
	{"inline-content", extractInlineContent},
	{"inline-body", extractInlineBody},
	{"inline-text", extractInlineText},
	{"generic-resource", extractGenericResource},
}

// ResolveContentSource applies the extraction rules in order and returns the
// first match, or a zero ContentSource when the payload carries no body.
func ResolveContentSource(b Bookmark) ContentSource {
	for _, rule := range contentRules {
		if src, ok := rule.extract(b); ok {
			return src
		}
	}
	return ContentSource{}
}

func extractArticleResource(b Bookmark) (ContentSource, bool) {
	if b.Resources.Article != nil && b.Resources.Article.Src != "" {
		return ContentSource{URL: b.Resources.Article.Src}, true
	}
	return ContentSource{}, false
}

func extractInlineContent(b Bookmark) (ContentSource, bool) {
	if b.Content != "" {
		return ContentSource{Inline: b.Content}, true
	}
	return ContentSource{}, false
}

func extractInlineBody(b Bookmark) (ContentSource, bool) {
	if b.Body != "" {
		return ContentSource{Inline: b.Body}, true
	}
	return ContentSource{}, false
}

func extractInlineText(b Bookmark) (ContentSource, bool) {
	if b.Text != "" {
		return ContentSource{Inline: b.Text}, true
	}
	return ContentSource{}, false
}

func extractGenericResource(b Bookmark) (ContentSource, bool) {
	if b.Resource != nil && b.Resource.Src != "" {
		return ContentSource{URL: b.Resource.Src}, true
	}
	return ContentSource{}, false
}
