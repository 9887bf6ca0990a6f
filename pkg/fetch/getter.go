package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// ErrBodyTooLarge is returned when a response exceeds the configured size limit
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// Response is a fully read GET response
type Response struct {
	Body        []byte
	FinalURL    *url.URL // After redirects
	ContentType string
}

// Getter issues bounded GET requests: shared limits, User-Agent, retry policy and a body size cap
type Getter struct {
	fetcher       HTTPFetcher
	limits        *Limits
	userAgent     string
	maxPageBytes  int64
	maxImageBytes int64
	log           *logrus.Entry
}

// GetterOptions holds the per-request settings of a Getter
type GetterOptions struct {
	UserAgent     string
	MaxPageBytes  int64 // 0 = unlimited
	MaxImageBytes int64 // 0 = unlimited
}

// NewGetter creates a Getter. limits may be nil for unbounded concurrency.
func NewGetter(fetcher HTTPFetcher, limits *Limits, opts GetterOptions, log *logrus.Entry) *Getter {
	return &Getter{
		fetcher:       fetcher,
		limits:        limits,
		userAgent:     opts.UserAgent,
		maxPageBytes:  opts.MaxPageBytes,
		maxImageBytes: opts.MaxImageBytes,
		log:           log,
	}
}

// FetchPage GETs an HTML page
func (g *Getter) FetchPage(ctx context.Context, rawURL string) (*Response, error) {
	return g.get(ctx, rawURL, g.maxPageBytes)
}

// FetchImage GETs image bytes
func (g *Getter) FetchImage(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := g.get(ctx, rawURL, g.maxImageBytes)
	if err != nil {
		if errors.Is(err, ErrBodyTooLarge) {
			return nil, fmt.Errorf("%w: %w", utils.ErrImageTooLarge, err)
		}
		return nil, err
	}
	return resp.Body, nil
}

func (g *Getter) get(ctx context.Context, rawURL string, maxBytes int64) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: for '%s': %w", utils.ErrRequestCreation, rawURL, err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	if g.limits != nil {
		release, err := g.limits.Acquire(ctx, req.URL.Hostname())
		if err != nil {
			return nil, err
		}
		defer release()
	}

	resp, err := g.fetcher.FetchWithRetry(ctx, req)
	if err != nil {
		drainAndClose(resp)
		return nil, err
	}
	defer resp.Body.Close()

	if maxBytes > 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if size, parseErr := strconv.ParseInt(cl, 10, 64); parseErr == nil && size > maxBytes {
				return nil, fmt.Errorf("%w: '%s' declares %d bytes, limit %d", ErrBodyTooLarge, rawURL, size, maxBytes)
			}
		}
	}

	var reader io.Reader = resp.Body
	if maxBytes > 0 {
		// One extra byte tells a body exactly at the limit from one over it
		reader = io.LimitReader(resp.Body, maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s': %w", utils.ErrResponseBodyRead, rawURL, err)
	}
	if maxBytes > 0 && int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: '%s' exceeds %d bytes", ErrBodyTooLarge, rawURL, maxBytes)
	}

	g.log.WithFields(logrus.Fields{"url": rawURL, "bytes": len(body)}).Trace("GET complete")
	return &Response{
		Body:        body,
		FinalURL:    resp.Request.URL,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
