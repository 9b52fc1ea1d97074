package utils

import (
	"regexp"
)

// CompilePatterns compiles configured regexps, skipping blank entries. The
// first invalid pattern fails the whole set.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for i, p := range patterns {
		if p == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, WrapErrorf(ErrConfigValidation, "pattern #%d %q: %v", i+1, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}
