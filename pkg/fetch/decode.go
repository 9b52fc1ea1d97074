package fetch

import (
	"bytes"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"

	"github.com/Sriram-PR/readerview/pkg/utils"
)

// Decoder turns a response body into text
type Decoder func(body []byte, contentType string) (string, error)

// DecodeBody decodes body using the charset from the Content-Type header,
// a BOM or <meta> declaration, falling back to windows-1252 when nothing
// is declared. Output that still is not text fails with utils.ErrDataIsNotString.
func DecodeBody(body []byte, contentType string) (string, error) {
	enc, name, _ := charset.DetermineEncoding(body, contentType)
	return decodeWith(body, enc, name)
}

// DecodeUTF8First keeps valid UTF-8 bodies as they are and otherwise
// falls back to DecodeBody.
func DecodeUTF8First(body []byte, contentType string) (string, error) {
	if utf8.Valid(body) {
		return checkText(string(bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))))
	}
	return DecodeBody(body, contentType)
}

func decodeWith(body []byte, enc encoding.Encoding, name string) (string, error) {
	if enc == nil {
		return checkText(string(body))
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return "", fmt.Errorf("%w: decode as %s: %v", utils.ErrDataIsNotString, name, err)
	}
	return checkText(string(out))
}

func checkText(s string) (string, error) {
	if strings.ContainsRune(s, 0) {
		return "", fmt.Errorf("%w: body contains NUL bytes", utils.ErrDataIsNotString)
	}
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: invalid UTF-8 after decoding", utils.ErrDataIsNotString)
	}
	return s, nil
}

// Media types accepted in direct mode
const (
	mediaHTML     = "text/html"
	mediaXHTML    = "application/xhtml+xml"
	mediaPlain    = "text/plain"
	mediaMarkdown = "text/markdown"
)

// mediaType returns the lowercased media type of a Content-Type header, or ""
func mediaType(contentType string) string {
	if strings.TrimSpace(contentType) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return strings.ToLower(mt)
}

func acceptedMediaType(mt string) bool {
	switch mt {
	case "", mediaHTML, mediaXHTML, mediaPlain, mediaMarkdown, "text/x-markdown":
		return true
	}
	return false
}

// markdownToHTML renders a markdown body as a minimal HTML page so it can go
// through the same extraction pipeline as any article.
func markdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	buf.WriteString("<html><body><article>")
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("%w: %v", utils.ErrParsing, err)
	}
	buf.WriteString("</article></body></html>")
	return buf.String(), nil
}

// plainToHTML wraps plain text paragraphs in markup
func plainToHTML(src string) string {
	var b strings.Builder
	b.WriteString("<html><body><article>")
	for _, para := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(htmlEscaper.Replace(para))
		b.WriteString("</p>")
	}
	b.WriteString("</article></body></html>")
	return b.String()
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&#34;", "'", "&#39;")
