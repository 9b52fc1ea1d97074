package reader

import "github.com/Sriram-PR/readerview/pkg/models"

type options struct {
	theme      *models.Theme
	kind       models.ExtractorKind
	webView    bool
	exitButton bool
}

// Option adjusts one FetchAndExtract call
type Option func(*options)

// WithTheme styles the reader document; the configured theme is used otherwise
func WithTheme(t models.Theme) Option {
	return func(o *options) { o.theme = &t }
}

// WithExtractor selects the engine variant; the empty kind keeps the default
func WithExtractor(kind models.ExtractorKind) Option {
	return func(o *options) { o.kind = kind }
}

// WithWebView fetches the page through the headless browser instead of plain HTTP
func WithWebView(on bool) Option {
	return func(o *options) { o.webView = on }
}

// WithoutExitButton leaves the "view original" link out of the document
func WithoutExitButton() Option {
	return func(o *options) { o.exitButton = false }
}

func collect(opts []Option) options {
	o := options{exitButton: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}
