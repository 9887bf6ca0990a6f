package fetch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// PageFetcher is the part of Getter FetchPages needs
type PageFetcher interface {
	FetchPage(ctx context.Context, rawURL string) (*Response, error)
}

// PageResult is the outcome for one listed site, in site list order
type PageResult struct {
	Site models.Site
	Body []byte
	Err  error // Wraps utils.ErrSiteFetch when set
}

// FetchPages GETs every listed site concurrently. A failing site only fails its own result.
func FetchPages(ctx context.Context, pf PageFetcher, sites []string, log *logrus.Entry) []PageResult {
	results := make([]PageResult, len(sites))
	var g errgroup.Group // No error propagation, per-site failures stay in results

	for i, site := range sites {
		results[i].Site = models.Site{URL: site}
		g.Go(func() error {
			siteLog := log.WithField("site", site)

			if u, err := url.Parse(site); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				results[i].Err = fmt.Errorf("%w: '%s' is not an http(s) URL", utils.ErrSiteFetch, site)
				siteLog.Warn(results[i].Err)
				return nil
			}

			resp, err := pf.FetchPage(ctx, site)
			if err != nil {
				results[i].Err = fmt.Errorf("%w: '%s': %w", utils.ErrSiteFetch, site, err)
				siteLog.WithField("error_type", utils.CategorizeError(err)).Warnf("Site fetch failed: %v", err)
				return nil
			}

			results[i].Site.FinalURL = resp.FinalURL
			results[i].Body = resp.Body
			if resp.FinalURL != nil && resp.FinalURL.String() != site {
				siteLog.Debugf("Redirected to %s", resp.FinalURL)
			}
			siteLog.WithField("bytes", len(resp.Body)).Info("Fetched site")
			return nil
		})
	}
	g.Wait()
	return results
}
