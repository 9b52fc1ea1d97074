package engine

import (
	"strings"
	"time"

	"github.com/spf13/cast"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/sandbox"
)

// ArticleFromResult maps an algorithm result onto an article. Missing, blank
// or mistyped fields become absent; it never fails.
func ArticleFromResult(res sandbox.Result) *models.ExtractedArticle {
	return &models.ExtractedArticle{
		Content:       stringField(res, sandbox.KeyContent),
		Author:        stringField(res, sandbox.KeyAuthor),
		Title:         stringField(res, sandbox.KeyTitle),
		Excerpt:       stringField(res, sandbox.KeyExcerpt),
		DatePublished: timeField(res, sandbox.KeyDatePublished),
	}
}

func stringField(res sandbox.Result, key string) *string {
	s, ok := res[key].(string)
	if !ok {
		return nil
	}
	return models.StringPtr(s)
}

func timeField(res sandbox.Result, key string) *time.Time {
	switch v := res[key].(type) {
	case nil, bool:
		return nil
	case string:
		return ParseDate(v)
	case *time.Time:
		if v == nil {
			return nil
		}
		return models.TimePtr(*v)
	default:
		t, err := cast.ToTimeE(v)
		if err != nil {
			return nil
		}
		return models.TimePtr(t)
	}
}

// ParseDate parses the date formats commonly emitted by extractors. It
// returns nil for blank or unrecognized input.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := cast.ToTimeE(s)
	if err != nil {
		return nil
	}
	return models.TimePtr(t)
}
