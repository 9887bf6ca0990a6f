package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Sriram-PR/img-rotator/pkg/urlutil"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Extraction is the result of scanning one page for images
type Extraction struct {
	URLs        []string // Absolute, fragment-free, deduplicated, first-seen order
	Blocked     int      // Dropped by the keyword blocklist
	Unfetchable int      // data: URIs, other schemes, unresolvable refs
}

// ExtractImageURLs finds every <img src> in markup and resolves it against the page's final URL.
// The blocklist is applied to the raw src attribute, before resolution.
func ExtractImageURLs(markup []byte, finalURL *url.URL, blocklist *urlutil.Blocklist) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("%w: HTML of '%s': %w", utils.ErrParsing, finalURL, err)
	}

	res := &Extraction{}
	var resolved []string
	doc.Find("img[src]").Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			res.Unfetchable++
			return
		}
		if blocklist.Blocked(src) {
			res.Blocked++
			return
		}
		abs, err := urlutil.Resolve(src, finalURL)
		if err != nil || !urlutil.IsFetchable(abs) {
			res.Unfetchable++
			return
		}
		resolved = append(resolved, abs)
	})

	// Different src values can collapse to the same URL after resolution and fragment removal
	res.URLs = urlutil.Dedupe(resolved)
	return res, nil
}
