// Package metadata derives page-level information (title, hero image, site
// name, etc.) from <meta> tags, link relations and JSON-LD, independently of
// the article body.
package metadata

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
	"github.com/spf13/cast"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Extract parses html and collects its site metadata. URLs are resolved
// against baseURL. Fields that cannot be found are left absent; only
// unparseable input is an error.
func Extract(html string, baseURL *url.URL) (*models.SiteMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: metadata HTML: %v", utils.ErrParsing, err)
	}
	return FromDocument(doc, baseURL), nil
}

// FromDocument is Extract for an already parsed page
func FromDocument(doc *goquery.Document, baseURL *url.URL) *models.SiteMetadata {
	ld := collectLinkedData(doc)

	md := &models.SiteMetadata{
		Title: first(
			metaContent(doc, "og:title"),
			metaContent(doc, "twitter:title"),
			strings.TrimSpace(doc.Find("head title").First().Text()),
			ld.headline,
		),
		Description: first(
			metaContent(doc, "og:description"),
			metaContent(doc, "twitter:description"),
			metaContent(doc, "description"),
			ld.description,
		),
		SiteName: first(
			metaContent(doc, "og:site_name"),
			metaContent(doc, "application-name"),
			ld.publisher,
		),
	}

	hero := firstOf(
		metaContent(doc, "og:image"),
		metaContent(doc, "og:image:url"),
		metaContent(doc, "og:image:secure_url"),
		metaContent(doc, "twitter:image"),
		metaContent(doc, "twitter:image:src"),
		ld.image,
		attr(doc.Find(`link[rel="image_src"]`), "href"),
	)
	md.HeroImage = resolve(baseURL, hero)
	md.Favicon = resolve(baseURL, favicon(doc))

	published := firstOf(
		metaContent(doc, "article:published_time"),
		metaContent(doc, "og:published_time"),
		attr(doc.Find(`[itemprop="datePublished"]`), "content", "datetime"),
		ld.datePublished,
		metaContent(doc, "date"),
	)
	if published != "" {
		if t, err := cast.ToTimeE(published); err == nil {
			md.Published = models.TimePtr(t)
		}
	}

	if md.Title != nil {
		md.Title = models.StringPtr(strings.Join(strings.Fields(*md.Title), " "))
	}
	return md
}

// metaContent returns the content of <meta property=name> or <meta name=name>
func metaContent(doc *goquery.Document, name string) string {
	var out string
	doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		key, ok := s.Attr("property")
		if !ok || key == "" {
			key, _ = s.Attr("name")
		}
		if !strings.EqualFold(strings.TrimSpace(key), name) {
			return true
		}
		if c := strings.TrimSpace(s.AttrOr("content", "")); c != "" {
			out = c
			return false
		}
		return true
	})
	return out
}

// attr returns the first non-blank value among attrs on the first element of s
func attr(s *goquery.Selection, attrs ...string) string {
	s = s.First()
	for _, a := range attrs {
		if v := strings.TrimSpace(s.AttrOr(a, "")); v != "" {
			return v
		}
	}
	return ""
}

func favicon(doc *goquery.Document) string {
	var href string
	doc.Find("link[rel]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, rel := range strings.Fields(strings.ToLower(s.AttrOr("rel", ""))) {
			if rel == "icon" || rel == "apple-touch-icon" {
				href = strings.TrimSpace(s.AttrOr("href", ""))
				return href == ""
			}
		}
		return true
	})
	return href
}

func resolve(base *url.URL, ref string) *string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "data:") {
		return nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return nil
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil
	}
	return models.StringPtr(u.String())
}

func first(values ...string) *string {
	return models.StringPtr(firstOf(values...))
}

func firstOf(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// linkedData holds the fields read from JSON-LD blocks
type linkedData struct {
	headline      string
	description   string
	image         string
	datePublished string
	publisher     string
}

func collectLinkedData(doc *goquery.Document) linkedData {
	var ld linkedData
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := bytes.TrimSpace([]byte(s.Text()))
		if len(raw) == 0 {
			return
		}
		walkLinkedData(raw, &ld, 0)
	})
	return ld
}

// walkLinkedData visits objects, arrays and @graph containers, keeping the
// first value seen for each field.
func walkLinkedData(data []byte, ld *linkedData, depth int) {
	if depth > 4 {
		return
	}
	_, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return
	}
	switch typ {
	case jsonparser.Array:
		jsonparser.ArrayEach(data, func(v []byte, _ jsonparser.ValueType, _ int, _ error) {
			walkLinkedData(v, ld, depth+1)
		})
		return
	case jsonparser.Object:
	default:
		return
	}

	if graph, t, _, err := jsonparser.Get(data, "@graph"); err == nil && t == jsonparser.Array {
		walkLinkedData(graph, ld, depth+1)
	}

	setOnce(&ld.headline, stringValue(data, "headline"))
	setOnce(&ld.description, stringValue(data, "description"))
	setOnce(&ld.datePublished, stringValue(data, "datePublished"))
	setOnce(&ld.image, imageValue(data))
	setOnce(&ld.publisher, stringValue(data, "publisher", "name"))
}

func setOnce(dst *string, v string) {
	if *dst == "" {
		*dst = strings.TrimSpace(v)
	}
}

func stringValue(data []byte, keys ...string) string {
	v, err := jsonparser.GetString(data, keys...)
	if err != nil {
		return ""
	}
	return v
}

// imageValue understands "image" as a string, an ImageObject or a list of either
func imageValue(data []byte) string {
	v, typ, _, err := jsonparser.Get(data, "image")
	if err != nil {
		return ""
	}
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(v)
		if err != nil {
			return ""
		}
		return s
	case jsonparser.Object:
		return stringValue(v, "url")
	case jsonparser.Array:
		var out string
		jsonparser.ArrayEach(v, func(item []byte, t jsonparser.ValueType, _ int, _ error) {
			if out != "" {
				return
			}
			switch t {
			case jsonparser.String:
				out, _ = jsonparser.ParseString(item)
			case jsonparser.Object:
				out = stringValue(item, "url")
			}
		})
		return out
	}
	return ""
}

// PublishedOr returns t when set, otherwise the metadata published time
func PublishedOr(t *time.Time, md *models.SiteMetadata) *time.Time {
	if t != nil {
		return t
	}
	if md == nil {
		return nil
	}
	return md.Published
}
