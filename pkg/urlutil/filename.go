package urlutil

import (
	"fmt"
	"net/url"
	"path"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

const (
	filenameDelimiter = "--"
	maxFilenameLength = 240 // Leaves room under the common 255 byte limit for temp suffixes
	hashSuffixLength  = 16
)

// Dirname returns the hostname the image is stored under
func Dirname(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL '%s': %w", utils.ErrParsing, raw, err)
	}
	return u.Hostname(), nil
}

// Filename derives the deterministic local filename for an image URL:
// hostname, then the path without its leading slash, with the query moved in front of the extension,
// everything query-escaped so the result is a single path segment.
//
//	https://sub.example.org/images/SomeExample.jpg?SomeParam=1 => sub.example.org--images%2FSomeExample--SomeParam%3D1.jpg
func Filename(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: invalid URL '%s': %w", utils.ErrParsing, raw, err)
	}

	p := u.EscapedPath()
	if len(p) > 0 && p[0] == '/' {
		p = p[1:]
	}
	if u.RawQuery != "" {
		dir, file := path.Split(p)
		ext := path.Ext(file)
		stem := file[:len(file)-len(ext)]
		p = dir + stem + filenameDelimiter + u.RawQuery + ext
	}

	name := url.QueryEscape(u.Hostname() + filenameDelimiter + p)
	if len(name) > maxFilenameLength {
		// Keep the extension so the encoder can still be picked from the name
		ext := path.Ext(u.Path)
		if len(ext) > 10 {
			ext = ""
		}
		hash := utils.CalculateStringSHA256(name)[:hashSuffixLength]
		name = name[:maxFilenameLength-len(hash)-len(ext)-len(filenameDelimiter)] + filenameDelimiter + hash + ext
	}
	return name, nil
}
