// Package digest turns extracted article HTML into markdown with an outline,
// a token count and retrieval-sized chunks.
package digest

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"sync"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/tiktoken-go/tokenizer"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/Sriram-PR/readerview/pkg/models"
	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Config controls chunking and token counting
type Config struct {
	MaxChunkSize int    // Tokens; oversized sections are split recursively
	ChunkOverlap int    // Tokens shared between neighbouring chunks
	Encoding     string // tiktoken encoding name, cl100k_base when empty
}

// DefaultConfig returns chunk sizes suited to retrieval use
func DefaultConfig() Config {
	return Config{MaxChunkSize: 512, ChunkOverlap: 50, Encoding: "cl100k_base"}
}

// Digester builds digests. It is safe for concurrent use.
type Digester struct {
	cfg   Config
	codec tokenizer.Codec
}

var encodings = map[string]tokenizer.Encoding{
	"cl100k_base": tokenizer.Cl100kBase,
	"o200k_base":  tokenizer.O200kBase,
	"p50k_base":   tokenizer.P50kBase,
	"p50k_edit":   tokenizer.P50kEdit,
	"r50k_base":   tokenizer.R50kBase,
}

// New creates a Digester. Unknown encodings are an error.
func New(cfg Config) (*Digester, error) {
	def := DefaultConfig()
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = def.MaxChunkSize
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		cfg.ChunkOverlap = 0
	}
	if cfg.Encoding == "" {
		cfg.Encoding = def.Encoding
	}
	enc, ok := encodings[cfg.Encoding]
	if !ok {
		return nil, fmt.Errorf("unknown token encoding %q", cfg.Encoding)
	}
	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, fmt.Errorf("load token encoding %q: %w", cfg.Encoding, err)
	}
	return &Digester{cfg: cfg, codec: codec}, nil
}

var (
	sharedOnce sync.Once
	shared     *Digester
	sharedErr  error
)

// Shared returns a process-wide Digester with the default configuration
func Shared() (*Digester, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = New(DefaultConfig())
	})
	return shared, sharedErr
}

// Build converts html to a digest. Links are made absolute against base
// when it is set.
func (d *Digester) Build(html string, base *url.URL) (*models.Digest, error) {
	if base != nil {
		html = absolutize(html, base)
	}
	markdown, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", utils.ErrMarkdownConversion, err)
	}
	markdown = strings.TrimSpace(markdown)

	chunks, err := d.chunk(markdown)
	if err != nil {
		return nil, fmt.Errorf("%w: chunking: %v", utils.ErrMarkdownConversion, err)
	}
	return &models.Digest{
		Markdown:   markdown,
		Headings:   Headings([]byte(markdown)),
		TokenCount: d.CountTokens(markdown),
		Chunks:     chunks,
	}, nil
}

// absolutize resolves link and image targets against base. Unparseable
// input is returned unchanged and left to the converter.
func absolutize(html string, base *url.URL) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("a[href], img[src]").Each(func(_ int, s *goquery.Selection) {
		attr := "href"
		if goquery.NodeName(s) == "img" {
			attr = "src"
		}
		raw := strings.TrimSpace(s.AttrOr(attr, ""))
		if raw == "" || strings.HasPrefix(raw, "#") {
			return
		}
		if ref, err := url.Parse(raw); err == nil {
			s.SetAttr(attr, base.ResolveReference(ref).String())
		}
	})
	out, err := doc.Find("body").Html()
	if err != nil {
		return html
	}
	return out
}

// CountTokens returns the number of tokens in s, or -1 when it cannot be encoded
func (d *Digester) CountTokens(s string) int {
	ids, _, err := d.codec.Encode(s)
	if err != nil {
		return -1
	}
	return len(ids)
}

// chunk splits on markdown headings first, then recursively for sections
// that are still larger than MaxChunkSize.
func (d *Digester) chunk(markdown string) ([]string, error) {
	if markdown == "" {
		return nil, nil
	}
	lenFunc := func(s string) int {
		if n := d.CountTokens(s); n >= 0 {
			return n
		}
		return len(s)
	}
	recursive := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(d.cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(d.cfg.ChunkOverlap),
		textsplitter.WithLenFunc(lenFunc),
	)
	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithHeadingHierarchy(true),
		textsplitter.WithChunkSize(d.cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(d.cfg.ChunkOverlap),
		textsplitter.WithSecondSplitter(recursive),
		textsplitter.WithLenFunc(lenFunc),
	)
	parts, err := splitter.SplitText(markdown)
	if err != nil {
		return nil, err
	}
	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			chunks = append(chunks, p)
		}
	}
	return chunks, nil
}

// Headings returns the outline of a markdown document in document order
func Headings(markdown []byte) []models.Heading {
	doc := goldmark.DefaultParser().Parse(text.NewReader(markdown))

	var out []models.Heading
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		var buf bytes.Buffer
		_ = ast.Walk(h, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
			if t, ok := c.(*ast.Text); ok && entering {
				buf.Write(t.Segment.Value(markdown))
				if t.SoftLineBreak() {
					buf.WriteByte(' ')
				}
			}
			return ast.WalkContinue, nil
		})
		if s := strings.TrimSpace(buf.String()); s != "" {
			out = append(out, models.Heading{Level: h.Level, Text: s})
		}
		return ast.WalkSkipChildren, nil
	})
	return out
}
