package models

import (
	"encoding/json"
	"net/url"
	"strings"
	"time"
)

// ExtractedArticle is the structured result of one extraction call.
// Absent fields are nil; a present field is never an empty string.
type ExtractedArticle struct {
	Content       *string    `json:"content,omitempty"`
	Author        *string    `json:"author,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Excerpt       *string    `json:"excerpt,omitempty"`
	DatePublished *time.Time `json:"datePublished,omitempty"`
}

// SiteMetadata holds page-level information derived from <meta> and structured data tags
type SiteMetadata struct {
	Title       *string    `json:"title,omitempty"`
	HeroImage   *string    `json:"heroImage,omitempty"` // Absolute URL
	Description *string    `json:"description,omitempty"`
	SiteName    *string    `json:"siteName,omitempty"`
	Favicon     *string    `json:"favicon,omitempty"` // Absolute URL
	Published   *time.Time `json:"published,omitempty"`
}

// FetchAndExtractionResult is the merged view returned by the reader pipeline
type FetchAndExtractionResult struct {
	Metadata   *SiteMetadata
	Extracted  ExtractedArticle
	StyledHTML string
	BaseURL    *url.URL
}

// Title resolves to the extracted title, then the metadata title.
// An empty string means neither source had one.
func (r *FetchAndExtractionResult) Title() string {
	if t := Deref(r.Extracted.Title); t != "" {
		return t
	}
	if r.Metadata != nil {
		return Deref(r.Metadata.Title)
	}
	return ""
}

// MarshalJSON flattens the base URL and includes the derived title.
func (r FetchAndExtractionResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Title      string           `json:"title,omitempty"`
		Metadata   *SiteMetadata    `json:"metadata,omitempty"`
		Extracted  ExtractedArticle `json:"extracted"`
		StyledHTML string           `json:"styledHTML"`
		BaseURL    string           `json:"baseURL"`
	}{
		Title:      r.Title(),
		Metadata:   r.Metadata,
		Extracted:  r.Extracted,
		StyledHTML: r.StyledHTML,
	}
	if r.BaseURL != nil {
		out.BaseURL = r.BaseURL.String()
	}
	return json.Marshal(out)
}

// Theme is the styling configuration consumed by the reader renderer
type Theme struct {
	Foreground    string `yaml:"foreground" json:"foreground,omitempty"`
	Background    string `yaml:"background" json:"background,omitempty"`
	Link          string `yaml:"link" json:"link,omitempty"`
	FontSize      int    `yaml:"font_size" json:"fontSize,omitempty"` // Pixels
	FontFamily    string `yaml:"font_family" json:"fontFamily,omitempty"`
	AdditionalCSS string `yaml:"additional_css,omitempty" json:"additionalCSS,omitempty"`
}

// DefaultTheme returns the light reader theme
func DefaultTheme() Theme {
	return Theme{
		Foreground: "#1d1d1f",
		Background: "#ffffff",
		Link:       "#0a65c2",
		FontSize:   19,
		FontFamily: "-apple-system, BlinkMacSystemFont, \"Segoe UI\", Georgia, serif",
	}
}

// Heading is one entry of a digest outline
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Digest is an optional markdown rendition of extracted content
type Digest struct {
	Markdown   string    `json:"markdown"`
	Headings   []Heading `json:"headings,omitempty"`
	TokenCount int       `json:"tokenCount"`
	Chunks     []string  `json:"chunks,omitempty"`
}

// StringPtr returns nil for blank strings so absent and empty collapse to one state
func StringPtr(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// TimePtr returns nil for the zero time
func TimePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Deref returns the pointed-to string, or "" when absent
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
