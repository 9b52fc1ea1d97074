package sitefix

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstSrcSetCandidate returns the URL of the first candidate in a responsive
// source set: the text before the first comma, trimmed, up to the first space.
func FirstSrcSetCandidate(srcset string) string {
	first := strings.TrimSpace(strings.SplitN(srcset, ",", 2)[0])
	return strings.SplitN(first, " ", 2)[0]
}

// ResolvePictureSources fills empty <img> sources inside <picture> from the
// sibling <source> element's srcset. Lazy-loading sites ship these empty.
func ResolvePictureSources() Transform {
	return func(doc *goquery.Document) {
		doc.Find("picture > img").Each(func(_ int, img *goquery.Selection) {
			if src, _ := img.Attr("src"); src != "" {
				return
			}
			source := img.Parent().Find("source").First()
			if source.Length() == 0 {
				return
			}
			srcset, ok := source.Attr("srcset")
			if !ok {
				return
			}
			if candidate := FirstSrcSetCandidate(srcset); candidate != "" {
				img.SetAttr("src", candidate)
			}
		})
	}
}

// ArchiveMirrorCleanup removes mirror artifacts listed in removeSelectors and
// repoints root-relative images to the first candidate of srcsetAttr, which
// archive mirrors keep pointing at the original host.
func ArchiveMirrorCleanup(removeSelectors []string, srcsetAttr string) Transform {
	if srcsetAttr == "" {
		srcsetAttr = "srcset"
	}
	remove := RemoveElements(removeSelectors...)
	return func(doc *goquery.Document) {
		doc.Find("img[" + srcsetAttr + "]").Each(func(_ int, img *goquery.Selection) {
			src, _ := img.Attr("src")
			if !isRootRelative(src) {
				return
			}
			srcset, _ := img.Attr(srcsetAttr)
			if candidate := FirstSrcSetCandidate(srcset); candidate != "" {
				img.SetAttr("src", candidate)
			}
		})
		remove(doc)
	}
}

func isRootRelative(src string) bool {
	return strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//")
}

// RemoveElements deletes every element matching any of selectors.
// An invalid selector matches nothing.
func RemoveElements(selectors ...string) Transform {
	return func(doc *goquery.Document) {
		for _, sel := range selectors {
			if strings.TrimSpace(sel) == "" {
				continue
			}
			doc.Find(sel).Remove()
		}
	}
}

// conditionalComment matches downlevel-hidden and downlevel-revealed IE blocks
var conditionalComment = regexp.MustCompile(`(?is)<!--\[if[^\]]*\]>.*?<!(?:--)?\[?endif\]-->`)

// StripConditionalComments removes conditional-comment blocks from the body markup
func StripConditionalComments() Transform {
	return func(doc *goquery.Document) {
		body := doc.Find("body").First()
		if body.Length() == 0 {
			return
		}
		markup, err := body.Html()
		if err != nil || !conditionalComment.MatchString(markup) {
			return
		}
		body.SetHtml(conditionalComment.ReplaceAllString(markup, ""))
	}
}
