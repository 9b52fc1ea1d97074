package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	unsafeNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]+`)
	nameSeparators  = regexp.MustCompile(`[\s_]+`)
)

const maxFilenameBytes = 100

// SanitizeFilename turns an article title into a file name stem: path and
// shell metacharacters become separators, whitespace collapses to single
// underscores and the result is cut on a rune boundary. Blank input yields "".
func SanitizeFilename(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	s = nameSeparators.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_.")
	for len(s) > maxFilenameBytes {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return strings.TrimRight(s, "_.")
}
