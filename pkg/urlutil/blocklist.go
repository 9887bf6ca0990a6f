package urlutil

import (
	"regexp"
	"strings"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// DefaultKeywords are substrings that mark tracking pixels and non-content images
var DefaultKeywords = []string{"adServer", "scorecardresearch.com", "1px", "avatar", "profile", "logo", "static", ".svg"}

// Blocklist discards image sources containing a blocked keyword or matching a blocked pattern
type Blocklist struct {
	keywords        []string
	patterns        []*regexp.Regexp
	caseInsensitive bool
}

// NewBlocklist builds a Blocklist, returning an error if any regex pattern is invalid
func NewBlocklist(keywords, patterns []string, caseInsensitive bool) (*Blocklist, error) {
	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}
	b := &Blocklist{patterns: compiled, caseInsensitive: caseInsensitive}
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if caseInsensitive {
			kw = strings.ToLower(kw)
		}
		b.keywords = append(b.keywords, kw)
	}
	return b, nil
}

// Blocked reports whether src should be discarded. A nil Blocklist blocks nothing.
func (b *Blocklist) Blocked(src string) bool {
	if b == nil {
		return false
	}
	candidate := src
	if b.caseInsensitive {
		candidate = strings.ToLower(src)
	}
	for _, kw := range b.keywords {
		if strings.Contains(candidate, kw) {
			return true
		}
	}
	for _, re := range b.patterns {
		if re.MatchString(src) {
			return true
		}
	}
	return false
}
