// Package job wires one end-to-end run: read the site list, fetch pages, extract and mix
// image candidates, process them against the quota, then report.
package job

import (
	"bytes"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/fetch"
	"github.com/Sriram-PR/img-rotator/pkg/fsutil"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/parse"
	"github.com/Sriram-PR/img-rotator/pkg/pipeline"
	"github.com/Sriram-PR/img-rotator/pkg/report"
	"github.com/Sriram-PR/img-rotator/pkg/rotate"
	"github.com/Sriram-PR/img-rotator/pkg/stats"
	"github.com/Sriram-PR/img-rotator/pkg/storage"
	"github.com/Sriram-PR/img-rotator/pkg/urlutil"
)

// Result summarizes a finished run
type Result struct {
	RunID    string
	Snapshot stats.Snapshot
	Records  []*models.ImageRecord
	Duration time.Duration
}

// QuotaReached reports whether the run processed its target count
func (r *Result) QuotaReached() bool {
	return r.Snapshot.Total.Processed >= r.Snapshot.Quota
}

// Job is one configured run
type Job struct {
	cfg   *config.AppConfig
	runID string
	log   *logrus.Entry
}

// New creates a Job with a fresh run id. cfg must already be validated.
func New(cfg *config.AppConfig, log *logrus.Entry) *Job {
	runID := uuid.NewString()
	return &Job{cfg: cfg, runID: runID, log: log.WithField("run_id", runID)}
}

// RunID returns the id tagging this run's store rows
func (j *Job) RunID() string { return j.runID }

// Run executes the job. Per-site and per-image failures are logged and counted, never
// returned; an error means the run could not start (site list, blocklist or store).
func (j *Job) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := j.cfg

	sites, err := fsutil.ReadSiteList(cfg.SitesFile)
	if err != nil {
		return nil, err
	}
	j.log.Infof("Loaded %d sites from %s (quota %d)", len(sites), cfg.SitesFile, cfg.Quota)

	blocklist, err := urlutil.NewBlocklist(cfg.KeywordBlocklist, cfg.BlocklistPatterns, cfg.BlocklistCaseInsensitive)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, cfg.Store, j.runID, j.log.WithField("component", "store"))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			j.log.Errorf("Error closing status store: %v", err)
		}
	}()

	metrics, err := stats.NewMetrics()
	if err != nil {
		return nil, err
	}
	runStats := stats.New(cfg.Quota, metrics)

	fetchLog := j.log.WithField("component", "fetch")
	client := fetch.NewClient(cfg.HTTPClientSettings, fetchLog)
	fetcher := fetch.NewFetcher(client, fetch.RetryPolicyFromConfig(cfg), fetchLog)
	limits := fetch.NewLimits(cfg.MaxRequests, cfg.MaxRequestsPerHost, cfg.DelayPerHost, cfg.SemaphoreAcquireTimeout, fetchLog)
	getter := fetch.NewGetter(fetcher, limits, fetch.GetterOptions{
		UserAgent:     cfg.UserAgent,
		MaxPageBytes:  cfg.MaxPageSizeBytes,
		MaxImageBytes: cfg.MaxImageSizeBytes,
	}, fetchLog)

	pages := fetch.FetchPages(ctx, getter, sites, fetchLog)
	groups := j.extract(pages, blocklist, runStats, metrics)
	candidates := urlutil.Mix(groups)
	j.log.WithFields(logrus.Fields{
		"candidates": len(candidates),
		"sites":      len(sites),
		"hosts":      limits.Hosts(),
	}).Info("Image candidates collected")

	layout := fsutil.Layout{OriginalDir: cfg.OriginalDir, RotatedDir: cfg.RotatedDir}
	processor := pipeline.NewProcessor(getter, rotate.New(cfg.JPEGQuality), layout, cfg.ForceRefetch, j.log.WithField("component", "pipeline"))
	coordinator := pipeline.NewCoordinator(processor, store, runStats, pipeline.CoordinatorOptions{
		MaxInFlight:   cfg.EffectiveMaxInFlight(),
		SkipProcessed: cfg.Store.SkipProcessed,
	}, j.log.WithField("component", "coordinator"))
	records := coordinator.Run(ctx, candidates)

	res := &Result{
		RunID:    j.runID,
		Snapshot: runStats.Snapshot(),
		Records:  records,
		Duration: time.Since(start),
	}
	j.finish(res, metrics)
	return res, nil
}

// extract turns page results into per-site candidate groups in site list order.
// Every listed site gets its own stats row, failed ones with zero candidates.
// Sites sharing a host still report separately and share only the output directory.
func (j *Job) extract(pages []fetch.PageResult, blocklist *urlutil.Blocklist, runStats *stats.RunStats, metrics *stats.Metrics) []models.CandidateGroup {
	groups := make([]models.CandidateGroup, 0, len(pages))
	for _, page := range pages {
		metrics.ObservePage(page.Err)
		site := page.Site.URL
		if page.Err != nil {
			runStats.AddSite(site, 0)
			continue
		}

		siteLog := j.log.WithField("site", page.Site.URL)
		ext, err := parse.ExtractImageURLs(page.Body, page.Site.FinalURL, blocklist)
		if err != nil {
			siteLog.WithField("error_type", "html-parse").Warnf("Failed to extract images: %v", err)
			runStats.AddSite(site, 0)
			continue
		}
		siteLog.WithFields(logrus.Fields{
			"images":      len(ext.URLs),
			"blocked":     ext.Blocked,
			"unfetchable": ext.Unfetchable,
		}).Info("Extracted image candidates")

		runStats.AddSite(site, len(ext.URLs))
		groups = append(groups, models.CandidateGroup{Site: site, Dirname: page.Site.Hostname(), URLs: ext.URLs})
	}
	return groups
}

// finish logs the report and writes the optional report file and metrics textfile.
// Failures here are logged only, the images are already on disk.
func (j *Job) finish(res *Result, metrics *stats.Metrics) {
	cfg := j.cfg
	var text bytes.Buffer
	if err := report.Write(&text, config.ReportFormatText, res.Snapshot); err != nil {
		j.log.Errorf("Failed to render report: %v", err)
	}
	j.log.Infof("Run report:\n%s", text.String())
	if s := report.Suggestion(res.Snapshot); s != "" {
		j.log.Warn(s)
	}

	if cfg.Report.Path != "" {
		var buf bytes.Buffer
		err := report.Write(&buf, cfg.Report.Format, res.Snapshot)
		if err == nil {
			err = fsutil.WriteFile(cfg.Report.Path, buf.Bytes())
		}
		if err != nil {
			j.log.Errorf("Failed to write %s report to %s: %v", cfg.Report.Format, cfg.Report.Path, err)
		} else {
			j.log.Infof("Wrote %s report to %s", cfg.Report.Format, cfg.Report.Path)
		}
	}

	if cfg.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			j.log.Errorf("Failed to write metrics: %v", err)
		}
	}

	j.log.WithFields(logrus.Fields{
		"processed": res.Snapshot.Total.Processed,
		"quota":     res.Snapshot.Quota,
		"duration":  res.Duration.Round(time.Millisecond),
	}).Infof("Run finished (quota reached: %v)", res.QuotaReached())
}
