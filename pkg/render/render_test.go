package render

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/models"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestWrap_Document(t *testing.T) {
	date := time.Date(2024, 2, 29, 12, 0, 0, 0, time.UTC)
	out, err := Wrap(Input{
		Title:     `Tom & Jerry <3`,
		BodyHTML:  `<p>Hello <a href="/about">reader</a>.</p>`,
		BaseURL:   mustURL(t, "https://blog.example.com"),
		Author:    models.StringPtr("Ada Lovelace"),
		HeroImage: models.StringPtr("https://cdn.example.com/hero.jpg"),
		Date:      &date,
		Theme:     models.DefaultTheme(),
		ExitURL:   mustURL(t, "https://blog.example.com/post/1"),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "<title>Tom &amp; Jerry &lt;3</title>")
	assert.Contains(t, out, `<base href="https://blog.example.com">`)
	assert.Contains(t, out, `<a id="__reader_exit" href="https://blog.example.com/post/1">`)
	assert.Contains(t, out, `<span class="author">Ada Lovelace</span>`)
	assert.Contains(t, out, "February 29, 2024")
	assert.Contains(t, out, `<img id="__reader_hero" src="https://cdn.example.com/hero.jpg"`)
	assert.Contains(t, out, `<p>Hello <a href="/about">reader</a>.</p>`)
	assert.Contains(t, out, "--size: 19px")
	assert.Contains(t, out, "2 words · 1 min read")
}

func TestWrap_OptionalParts(t *testing.T) {
	out, err := Wrap(Input{Title: "", BodyHTML: "<p>x</p>", Theme: models.DefaultTheme()})
	require.NoError(t, err)
	assert.NotContains(t, out, "__reader_exit\"")
	assert.NotContains(t, out, "<base")
	assert.NotContains(t, out, `id="__reader_byline"`)
	assert.NotContains(t, out, `id="__reader_hero"`)
}

func TestWrap_HeroAlreadyInBody(t *testing.T) {
	out, err := Wrap(Input{
		Title:     "T",
		BodyHTML:  `<figure><img src="/images/hero.jpg?w=600"></figure><p>text</p>`,
		BaseURL:   mustURL(t, "https://site.example"),
		HeroImage: models.StringPtr("https://site.example/images/hero.jpg"),
		Theme:     models.DefaultTheme(),
	})
	require.NoError(t, err)
	assert.NotContains(t, out, `id="__reader_hero"`)
}

func TestWrap_SanitizesBody(t *testing.T) {
	body := `<p onclick="steal()">Safe</p><script>alert(1)</script>` +
		`<a href="javascript:alert(1)">bad link</a><a href="https://ok.example">good link</a>` +
		`<iframe srcdoc="<script>x</script>"></iframe><form><input name="q"></form>`
	out, err := Wrap(Input{Title: "T", BodyHTML: body, Theme: models.DefaultTheme()})
	require.NoError(t, err)

	article := out[strings.Index(out, `<article id="__reader_content">`):]
	assert.Contains(t, article, "<p>Safe</p>")
	assert.NotContains(t, article, "onclick")
	assert.NotContains(t, article, "<script")
	assert.NotContains(t, article, "javascript:")
	assert.Contains(t, article, `<a href="https://ok.example">good link</a>`)
	assert.Contains(t, article, "bad link")
	assert.NotContains(t, article, "<iframe")
	assert.NotContains(t, article, "<input")
}

func TestWrap_SanitizesSVGAndStyleVectors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		avoid []string
	}{
		{
			name:  "svg animate",
			body:  `<svg><a><animate attributeName="href" values="javascript:alert(1)"/><text x="20" y="20">tap</text></a></svg>`,
			avoid: []string{"<svg", "<animate", "javascript:"},
		},
		{
			name:  "inline style",
			body:  `<p style="background:url(javascript:alert(1))">styled</p>`,
			avoid: []string{"style=", "javascript:"},
		},
		{
			name:  "data uri link",
			body:  `<a href="data:text/html;base64,PHNjcmlwdD5hbGVydCgxKTwvc2NyaXB0Pg==">x</a>`,
			avoid: []string{"data:text/html"},
		},
		{
			name:  "obfuscated scheme",
			body:  "<a href=\"jav&#x09;ascript:alert(1)\">x</a>",
			avoid: []string{"ascript:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Wrap(Input{Title: "T", BodyHTML: tt.body, Theme: models.DefaultTheme()})
			require.NoError(t, err)
			article := out[strings.Index(out, `<article id="__reader_content">`):]
			for _, a := range tt.avoid {
				assert.NotContains(t, article, a)
			}
		})
	}
}

func TestThemeCSS(t *testing.T) {
	tests := []struct {
		name  string
		theme models.Theme
		want  []string
		avoid []string
	}{
		{
			name:  "custom colors",
			theme: models.Theme{Foreground: "#eee", Background: "rgb(20, 20, 20)", Link: "orange", FontSize: 22, FontFamily: "Georgia, serif"},
			want:  []string{"--fg: #eee", "--bg: rgb(20, 20, 20)", "--link: orange", "--size: 22px", "--font: Georgia, serif"},
		},
		{
			name:  "injection falls back to defaults",
			theme: models.Theme{Foreground: "red; } body { display:none", FontFamily: "x; background:url(evil)"},
			want:  []string{"--fg: #1d1d1f"},
			avoid: []string{"display:none", "url(evil)"},
		},
		{
			name:  "font size out of range",
			theme: models.Theme{FontSize: 500},
			want:  []string{"--size: 19px"},
		},
		{
			name:  "additional css cannot close the style element",
			theme: models.Theme{AdditionalCSS: "p { margin: 0 } </style><script>x</script>"},
			want:  []string{"p { margin: 0 }"},
			avoid: []string{"</style>"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			css := themeCSS(tt.theme)
			for _, w := range tt.want {
				assert.Contains(t, css, w)
			}
			for _, a := range tt.avoid {
				assert.NotContains(t, css, a)
			}
		})
	}
}

func TestReadingTime(t *testing.T) {
	body := "<p>" + strings.Repeat("word ", 1500) + "</p>"
	out, err := Wrap(Input{Title: "T", BodyHTML: body, Theme: models.DefaultTheme()})
	require.NoError(t, err)
	assert.Contains(t, out, "1,500 words · 7 min read")
}
