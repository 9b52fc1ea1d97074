package main

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/reader"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

type fakeReader struct {
	err  error
	url  string
	opts int
}

func (f *fakeReader) FetchAndExtract(_ context.Context, rawURL string, opts ...reader.Option) (*models.FetchAndExtractionResult, error) {
	f.url, f.opts = rawURL, len(opts)
	if f.err != nil {
		return nil, f.err
	}
	base, _ := url.Parse("https://example.com")
	return &models.FetchAndExtractionResult{
		Extracted:  models.ExtractedArticle{Title: models.StringPtr("Why Go? A Retrospective"), Content: models.StringPtr("<p>x</p>")},
		StyledHTML: "<html>styled</html>",
		BaseURL:    base,
	}, nil
}

func (f *fakeReader) ExtractArticleContent(context.Context, string, string, models.ExtractorKind) (*models.ExtractedArticle, error) {
	return nil, nil
}

func (f *fakeReader) Warmup(models.ExtractorKind) error { return nil }

func (f *fakeReader) States() map[models.ExtractorKind]models.EngineState { return nil }

func (f *fakeReader) Digest(*models.FetchAndExtractionResult) (*models.Digest, error) {
	return &models.Digest{Markdown: "# Why Go\n", TokenCount: 1200, Headings: []models.Heading{{Level: 1, Text: "Why Go"}}}, nil
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestPrintUsageTo(t *testing.T) {
	var buf bytes.Buffer
	printUsageTo(&buf)

	out := buf.String()
	for _, cmd := range []string{"extract", "serve", "mcp-server", "validate", "version"} {
		assert.Contains(t, out, cmd)
	}
}

func TestDoValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := writeConfig(t, `
extractor:
  default: readability
cache:
  enabled: true
  ttl: 5m
`)
		var stdout, stderr bytes.Buffer
		code := doValidate(path, &stdout, &stderr)

		assert.Equal(t, 0, code, stderr.String())
		assert.Contains(t, stdout.String(), "Configuration OK")
		assert.Contains(t, stdout.String(), "readability (native sandbox)")
		assert.Contains(t, stdout.String(), "5m0s TTL")
		assert.Contains(t, stdout.String(), "nytimes.com")
	})

	t.Run("warnings are printed", func(t *testing.T) {
		path := writeConfig(t, "extractor:\n  default: bogus\n")
		var stdout, stderr bytes.Buffer
		code := doValidate(path, &stdout, &stderr)

		assert.Equal(t, 0, code)
		assert.Contains(t, stdout.String(), "WARN: unknown extractor")
	})

	t.Run("invalid", func(t *testing.T) {
		path := writeConfig(t, "extractor:\n  sandbox: wasm\n")
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doValidate(path, &stdout, &stderr))
		assert.Contains(t, stderr.String(), "extractor.sandbox")
	})

	t.Run("missing file", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		assert.Equal(t, 1, doValidate("/nonexistent/config.yaml", &stdout, &stderr))
		assert.Contains(t, stderr.String(), "read config")
	})
}

func TestDoExtract_BadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := doExtract(extractOptions{url: "https://example.com", extractor: "nope"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown extractor")

	stderr.Reset()
	code = doExtract(extractOptions{url: "https://example.com", configPath: "/nonexistent/config.yaml"}, &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Error loading config")
}

func TestExtractTo(t *testing.T) {
	t.Run("html to stdout", func(t *testing.T) {
		fr := &fakeReader{}
		var stdout, stderr bytes.Buffer
		code := extractTo(context.Background(), fr, models.KindMercury,
			extractOptions{url: "https://example.com/a", out: "-", noExit: true}, &stdout, &stderr)

		assert.Equal(t, 0, code, stderr.String())
		assert.Equal(t, "<html>styled</html>", stdout.String())
		assert.Equal(t, "https://example.com/a", fr.url)
		assert.Equal(t, 3, fr.opts)
		assert.Contains(t, stderr.String(), "written to stdout")
	})

	t.Run("markdown into directory", func(t *testing.T) {
		dir := t.TempDir()
		var stdout, stderr bytes.Buffer
		code := extractTo(context.Background(), &fakeReader{}, models.KindReadability,
			extractOptions{url: "https://example.com/a", out: dir, markdown: true}, &stdout, &stderr)

		require.Equal(t, 0, code, stderr.String())
		data, err := os.ReadFile(filepath.Join(dir, "Why_Go_A_Retrospective.md"))
		require.NoError(t, err)
		assert.Equal(t, "# Why Go\n", string(data))
		assert.Empty(t, stdout.String())
		assert.Contains(t, stderr.String(), "1,200 tokens")
	})

	t.Run("explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.html")
		var stdout, stderr bytes.Buffer
		code := extractTo(context.Background(), &fakeReader{}, "", extractOptions{url: "https://example.com/a", out: path}, &stdout, &stderr)

		require.Equal(t, 0, code, stderr.String())
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "<html>styled</html>", string(data))
	})

	t.Run("pipeline error", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := extractTo(context.Background(), &fakeReader{err: utils.ErrMissingExtractionData}, "",
			extractOptions{url: "https://example.com/a"}, &stdout, &stderr)

		assert.Equal(t, 1, code)
		assert.Contains(t, stderr.String(), "Extract_MissingContent")
		assert.Empty(t, stdout.String())
	})
}

func TestOutputName(t *testing.T) {
	base, _ := url.Parse("https://blog.example.com")
	tests := []struct {
		name string
		res  *models.FetchAndExtractionResult
		ext  string
		want string
	}{
		{"title", &models.FetchAndExtractionResult{Extracted: models.ExtractedArticle{Title: models.StringPtr("Hello: World")}}, ".html", "Hello_World.html"},
		{"host fallback", &models.FetchAndExtractionResult{BaseURL: base}, ".md", "blog.example.com.md"},
		{"nothing usable", &models.FetchAndExtractionResult{Extracted: models.ExtractedArticle{Title: models.StringPtr("???")}}, ".md", "article.md"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, outputName(tt.res, tt.ext))
		})
	}
}

func TestSetupLogger(t *testing.T) {
	log := setupLogger("debug", io.Discard)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log = setupLogger("chatty", io.Discard)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}
