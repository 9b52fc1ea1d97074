// Package render wraps extracted article HTML in a themed reader document.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"

	"github.com/Sriram-PR/readerview/pkg/models"
)

const wordsPerMinute = 230

// Input is everything the reader document is built from
type Input struct {
	Title     string
	BodyHTML  string
	BaseURL   *url.URL // Relative links in the body resolve against it
	Author    *string
	SiteName  *string
	HeroImage *string
	Date      *time.Time
	Theme     models.Theme
	ExitURL   *url.URL // Target of the "view original" link; nil omits it
}

type view struct {
	Title       string
	BaseHref    string
	ExitHref    string
	Author      string
	SiteName    string
	Date        string
	DateISO     string
	ReadingTime string
	HeroImage   string
	CSS         template.CSS
	Body        template.HTML
}

// Wrap renders the reader document
func Wrap(in Input) (string, error) {
	body, text, err := sanitize(in.BodyHTML)
	if err != nil {
		return "", err
	}

	v := view{
		Title:    in.Title,
		Author:   models.Deref(in.Author),
		SiteName: models.Deref(in.SiteName),
		CSS:      template.CSS(themeCSS(in.Theme)),
		Body:     template.HTML(body),
	}
	if in.BaseURL != nil {
		v.BaseHref = in.BaseURL.String()
	}
	if in.ExitURL != nil {
		v.ExitHref = in.ExitURL.String()
	}
	if in.Date != nil && !in.Date.IsZero() {
		v.Date = in.Date.Format("January 2, 2006")
		v.DateISO = in.Date.Format(time.RFC3339)
	}
	if words := len(strings.Fields(text)); words > 0 {
		minutes := (words + wordsPerMinute - 1) / wordsPerMinute
		v.ReadingTime = fmt.Sprintf("%s words · %d min read", humanize.Comma(int64(words)), minutes)
	}
	if hero := models.Deref(in.HeroImage); hero != "" && !containsImage(body, hero, in.BaseURL) {
		v.HeroImage = hero
	}

	var buf bytes.Buffer
	if err := readerTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render reader document: %w", err)
	}
	return buf.String(), nil
}

// bodyPolicy keeps article markup and drops anything active
var bodyPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(false)
	p.AllowElements("picture")
	p.AllowAttrs("sizes").OnElements("img")
	return p
}()

// sanitize returns the cleaned article body together with its text
func sanitize(body string) (string, string, error) {
	clean := bodyPolicy.Sanitize(body)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(clean))
	if err != nil {
		return "", "", fmt.Errorf("parse article body: %w", err)
	}
	return strings.TrimSpace(clean), doc.Find("body").Text(), nil
}

// containsImage reports whether body already shows the hero image
func containsImage(body, hero string, base *url.URL) bool {
	heroURL, err := url.Parse(hero)
	if err != nil {
		return false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return false
	}
	found := false
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src, err := url.Parse(strings.TrimSpace(s.AttrOr("src", "")))
		if err != nil {
			return true
		}
		if base != nil {
			src = base.ResolveReference(src)
		}
		if src.Host == heroURL.Host && src.Path == heroURL.Path {
			found = true
			return false
		}
		return true
	})
	return found
}

var (
	cssColor = regexp.MustCompile(`^(#[0-9a-fA-F]{3,8}|[a-zA-Z]{3,20}|(rgb|rgba|hsl|hsla)\([0-9.,%\s]+\))$`)
	cssFont  = regexp.MustCompile(`^[a-zA-Z0-9 ,"'\-]+$`)
)

// themeCSS turns the theme into CSS variables; values that are not plain
// colors or font lists are replaced by defaults.
func themeCSS(t models.Theme) string {
	def := models.DefaultTheme()
	pick := func(v, fallback string, re *regexp.Regexp) string {
		v = strings.TrimSpace(v)
		if v == "" || !re.MatchString(v) {
			return fallback
		}
		return v
	}
	size := t.FontSize
	if size <= 0 || size > 72 {
		size = def.FontSize
	}

	var b strings.Builder
	fmt.Fprintf(&b, ":root { --fg: %s; --bg: %s; --link: %s; --font: %s; --size: %dpx; }\n",
		pick(t.Foreground, def.Foreground, cssColor),
		pick(t.Background, def.Background, cssColor),
		pick(t.Link, def.Link, cssColor),
		pick(t.FontFamily, def.FontFamily, cssFont),
		size,
	)
	b.WriteString(baseCSS)
	if extra := strings.TrimSpace(t.AdditionalCSS); extra != "" {
		b.WriteString(strings.ReplaceAll(extra, "</", `<\/`))
		b.WriteString("\n")
	}
	return b.String()
}
