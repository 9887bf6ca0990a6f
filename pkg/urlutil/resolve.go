package urlutil

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// StripFragment drops any "#..." suffix, fragments are never sent over HTTP
func StripFragment(raw string) string {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Resolve turns an image reference found in HTML into an absolute URL without a fragment
// base must be the page's final URL after redirects, otherwise relative references land in the wrong place
func Resolve(ref string, base *url.URL) (string, error) {
	if base == nil {
		return "", fmt.Errorf("%w: nil base URL for '%s'", utils.ErrParsing, ref)
	}
	refURL, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: invalid image URL '%s': %w", utils.ErrParsing, ref, err)
	}
	abs := base.ResolveReference(refURL)
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), nil
}

// IsFetchable returns true for absolute http(s) URLs with a host
func IsFetchable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Dedupe removes exact duplicates, keeping first-seen order
func Dedupe(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
