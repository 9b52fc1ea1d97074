package sitefix

import (
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/config"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func render(t *testing.T, doc *goquery.Document) string {
	t.Helper()
	html, err := doc.Html()
	require.NoError(t, err)
	return html
}

func TestFirstSrcSetCandidate(t *testing.T) {
	tests := []struct {
		name   string
		srcset string
		want   string
	}{
		{"DensityDescriptors", "imgA.jpg 1x, imgB.jpg 2x", "imgA.jpg"},
		{"WidthDescriptors", "https://cdn.example.com/a.jpg 640w,https://cdn.example.com/b.jpg 1280w", "https://cdn.example.com/a.jpg"},
		{"LeadingWhitespace", "   a.png 1x", "a.png"},
		{"SingleURL", "only.webp", "only.webp"},
		{"Empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FirstSrcSetCandidate(tt.srcset))
		})
	}
}

func TestRule_Matches(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
		url  string
		want bool
	}{
		{"HostExact", Rule{Host: "medium.com"}, "https://medium.com/@a/post", true},
		{"HostSubdomainIsNotExact", Rule{Host: "medium.com"}, "https://blog.medium.com/post", false},
		{"HostCaseInsensitive", Rule{Host: "medium.com"}, "https://MEDIUM.com/post", true},
		{"AllSubstrings", Rule{URLContains: []string{"archive.is", "nytimes.com"}}, "https://archive.is/newest/https://www.nytimes.com/2024/a.html", true},
		{"MissingSubstring", Rule{URLContains: []string{"archive.is", "nytimes.com"}}, "https://archive.is/newest/https://example.com", false},
		{"NoMatcher", Rule{}, "https://example.com", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(mustURL(t, tt.url)))
		})
	}
	assert.False(t, Rule{Host: "a.com"}.Matches(nil))
}

func TestTable_FirstMatchWins(t *testing.T) {
	var calls []string
	mark := func(name string) Transform {
		return func(*goquery.Document) { calls = append(calls, name) }
	}
	table := NewTable(testLogger(),
		Rule{Name: "first", URLContains: []string{"example.com"}, Transform: mark("first")},
		Rule{Name: "second", Host: "example.com", Transform: mark("second")},
	)

	doc := parse(t, "<html><body></body></html>")
	applied := table.Apply(doc, mustURL(t, "https://example.com/a"))

	assert.Equal(t, "first", applied)
	assert.Equal(t, []string{"first"}, calls)
}

func TestTable_NoMatchLeavesDocument(t *testing.T) {
	table := Default(testLogger())
	html := "<html><head></head><body><p>Hello</p></body></html>"
	doc := parse(t, html)
	before := render(t, doc)

	assert.Equal(t, "", table.Apply(doc, mustURL(t, "https://example.com/a")))
	assert.Equal(t, before, render(t, doc))
}

func TestTable_PanickingTransformIsContained(t *testing.T) {
	table := NewTable(testLogger(), Rule{
		Name:      "boom",
		Host:      "example.com",
		Transform: func(*goquery.Document) { panic("unexpected markup") },
	})
	doc := parse(t, "<html><body></body></html>")

	assert.NotPanics(t, func() {
		table.Apply(doc, mustURL(t, "https://example.com/"))
	})
}

func TestFromConfig(t *testing.T) {
	table, err := FromConfig(config.DefaultRules(), testLogger())
	require.NoError(t, err)

	names := make([]string, 0)
	for _, r := range table.Rules() {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{
		"medium-lazy-images",
		"nytimes-archive-mirror",
		"royalroad-banners",
		"campaign-archive-conditional-comments",
	}, names)

	_, err = FromConfig([]config.RuleConfig{{Name: "x", Action: "nope", Host: "a.com"}}, testLogger())
	assert.Error(t, err)
}

func TestFromConfig_PathPatterns(t *testing.T) {
	table, err := FromConfig([]config.RuleConfig{{
		Name:            "live-blogs",
		Action:          config.ActionRemoveElements,
		Host:            "news.example.com",
		PathPatterns:    []string{`^/live/`, `/\d{4}/\d{2}/live-`},
		RemoveSelectors: []string{".ticker"},
	}}, testLogger())
	require.NoError(t, err)

	page := `<html><body><div class="ticker">x</div><p>story</p></body></html>`
	tests := []struct {
		url      string
		stripped bool
	}{
		{"https://news.example.com/live/election", true},
		{"https://news.example.com/2024/05/live-results", true},
		{"https://news.example.com/2024/05/results", false},
		{"https://other.example.com/live/election", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			doc := parse(t, page)
			table.Apply(doc, mustURL(t, tt.url))
			assert.Equal(t, !tt.stripped, doc.Find(".ticker").Length() == 1)
		})
	}

	_, err = FromConfig([]config.RuleConfig{{Name: "bad", Action: config.ActionStripConditionalComments, PathPatterns: []string{`(`}}}, testLogger())
	assert.Error(t, err)
}

func TestDefaultTable_Routing(t *testing.T) {
	table := Default(testLogger())
	tests := []struct {
		url  string
		want string
	}{
		{"https://medium.com/@someone/story-123", "medium-lazy-images"},
		{"https://archive.is/newest/https://www.nytimes.com/2024/01/01/world/story.html", "nytimes-archive-mirror"},
		{"https://www.royalroad.com/fiction/1/chapter/2", "royalroad-banners"},
		{"https://us1.campaign-archive.com/?u=abc&id=def", "campaign-archive-conditional-comments"},
		{"https://www.nytimes.com/2024/01/01/world/story.html", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			r, ok := table.Match(mustURL(t, tt.url))
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.want, r.Name)
		})
	}
}
