package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	readeck "codeberg.org/readeck/go-readability/v2"
	shiori "github.com/go-shiori/go-readability"

	"github.com/Sriram-PR/readerview/pkg/models"
)

// Result keys shared by every runtime
const (
	KeyContent       = "content"
	KeyAuthor        = "author"
	KeyTitle         = "title"
	KeyExcerpt       = "excerpt"
	KeyDatePublished = "datePublished"
)

// NewNativeRuntime returns the compiled-in algorithm for kind: readeck's
// readability port backs mercury, go-shiori's port backs readability.
func NewNativeRuntime(kind models.ExtractorKind) (Runtime, error) {
	switch kind {
	case models.KindMercury:
		return &readeckRuntime{}, nil
	case models.KindReadability:
		return &shioriRuntime{}, nil
	}
	return nil, fmt.Errorf("no native runtime for extractor %q", kind)
}

type shioriRuntime struct {
	loaded bool
}

func (r *shioriRuntime) Load(ctx context.Context) error {
	r.loaded = true
	return ctx.Err()
}

func (r *shioriRuntime) Run(ctx context.Context, call Call) (Result, error) {
	if !r.loaded {
		return nil, fmt.Errorf("runtime not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	article, err := shiori.FromReader(strings.NewReader(call.HTML), call.URL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(article.Content) == "" && strings.TrimSpace(article.Title) == "" {
		return nil, nil
	}
	res := Result{
		KeyContent: article.Content,
		KeyAuthor:  article.Byline,
		KeyTitle:   article.Title,
		KeyExcerpt: distinctExcerpt(article.Excerpt, article.TextContent),
	}
	if article.PublishedTime != nil {
		res[KeyDatePublished] = *article.PublishedTime
	}
	return res, nil
}

type readeckRuntime struct {
	loaded bool
}

func (r *readeckRuntime) Load(ctx context.Context) error {
	r.loaded = true
	return ctx.Err()
}

func (r *readeckRuntime) Run(ctx context.Context, call Call) (Result, error) {
	if !r.loaded {
		return nil, fmt.Errorf("runtime not loaded")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	article, err := readeck.FromReader(strings.NewReader(call.HTML), call.URL)
	if err != nil {
		return nil, err
	}
	if article.Node == nil && strings.TrimSpace(article.Title()) == "" {
		return nil, nil
	}

	res := Result{
		KeyAuthor: article.Byline(),
		KeyTitle:  article.Title(),
	}
	if article.Node != nil {
		var content, text bytes.Buffer
		if err := article.RenderHTML(&content); err != nil {
			return nil, fmt.Errorf("render article: %w", err)
		}
		if err := article.RenderText(&text); err != nil {
			return nil, fmt.Errorf("render article text: %w", err)
		}
		res[KeyContent] = content.String()
		res[KeyExcerpt] = distinctExcerpt(article.Excerpt(), text.String())
	}
	if published, err := article.PublishedTime(); err == nil && !published.IsZero() {
		res[KeyDatePublished] = published
	}
	return res, nil
}

// distinctExcerpt drops an excerpt that merely repeats the whole article text
func distinctExcerpt(excerpt, text string) string {
	e := strings.Join(strings.Fields(excerpt), " ")
	if e == "" || e == strings.Join(strings.Fields(text), " ") {
		return ""
	}
	return excerpt
}
