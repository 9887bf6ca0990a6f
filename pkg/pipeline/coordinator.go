package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/stats"
	"github.com/Sriram-PR/img-rotator/pkg/storage"
	"github.com/Sriram-PR/img-rotator/pkg/urlutil"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Worker drives one admitted record to a terminal status
type Worker interface {
	Process(ctx context.Context, rec *models.ImageRecord)
}

// Coordinator admits candidates against the quota and is the only writer of RunStats
// and the status store.
type Coordinator struct {
	worker        Worker
	store         storage.StatusStore
	stats         *stats.RunStats
	maxInFlight   int
	skipProcessed bool
	log           *logrus.Entry
	now           func() time.Time
}

// CoordinatorOptions holds admission settings
type CoordinatorOptions struct {
	MaxInFlight   int  // <= 0 means bounded only by the quota
	SkipProcessed bool // Consult the store for URLs processed by earlier runs
}

// NewCoordinator creates a Coordinator. store may be storage.NopStore.
func NewCoordinator(worker Worker, store storage.StatusStore, runStats *stats.RunStats, opts CoordinatorOptions, log *logrus.Entry) *Coordinator {
	maxInFlight := opts.MaxInFlight
	if maxInFlight <= 0 || maxInFlight > runStats.Quota() {
		maxInFlight = runStats.Quota()
	}
	return &Coordinator{
		worker:        worker,
		store:         store,
		stats:         runStats,
		maxInFlight:   maxInFlight,
		skipProcessed: opts.SkipProcessed,
		log:           log,
		now:           time.Now,
	}
}

func (c *Coordinator) canAdmit() bool {
	return c.stats.Processed()+c.stats.InFlight() < c.stats.Quota() &&
		c.stats.InFlight() < c.maxInFlight
}

// Run processes candidates in order until the quota is reached, the list is exhausted or
// ctx is cancelled. In-flight work always finishes. Returns every admitted record.
func (c *Coordinator) Run(ctx context.Context, candidates []models.Candidate) []*models.ImageRecord {
	// Store writes must land even after cancellation so statuses stay accurate
	storeCtx := context.WithoutCancel(ctx)
	results := make(chan *models.ImageRecord, c.maxInFlight)
	targets := make(map[string]struct{}) // Output paths already admitted this run
	var records []*models.ImageRecord
	next, duplicates := 0, 0

	for {
		for ctx.Err() == nil && next < len(candidates) && c.canAdmit() {
			cand := candidates[next]
			next++
			rec := c.newRecord(cand)
			if rec.Filename != "" {
				target := filepath.Join(rec.Dirname, rec.Filename)
				if _, seen := targets[target]; seen {
					c.log.WithFields(logrus.Fields{"site": cand.Site, "img_url": cand.URL}).Debug("Skipping image already admitted from another site")
					duplicates++
					continue
				}
				targets[target] = struct{}{}
			}
			if c.skip(storeCtx, cand) {
				continue
			}
			c.admit(storeCtx, rec)
			records = append(records, rec)
			if rec.Status.IsTerminal() {
				c.complete(storeCtx, rec)
				continue
			}
			go func() {
				c.worker.Process(ctx, rec)
				results <- rec
			}()
		}

		if c.stats.InFlight() == 0 {
			break
		}
		rec := <-results
		c.complete(storeCtx, rec)
	}

	total := c.stats.Total()
	c.log.WithFields(logrus.Fields{
		"processed":  total.Processed,
		"failed":     total.Failed(),
		"skipped":    total.Skipped,
		"duplicates": duplicates,
		"quota":      c.stats.Quota(),
		"candidates": len(candidates),
		"unused":     len(candidates) - next,
	}).Info("Admission finished")
	return records
}

func (c *Coordinator) skip(ctx context.Context, cand models.Candidate) bool {
	if !c.skipProcessed {
		return false
	}
	done, err := c.store.WasProcessed(ctx, cand.URL)
	if err != nil {
		c.log.WithField("img_url", cand.URL).Warnf("Processed lookup failed, admitting anyway: %v", err)
		return false
	}
	if done {
		c.log.WithField("img_url", cand.URL).Debug("Skipping image processed by an earlier run")
		c.stats.Skip(cand.Site)
	}
	return done
}

// newRecord builds the record for a candidate.
// A URL that cannot yield a filename is returned already failed-to-fetch.
func (c *Coordinator) newRecord(cand models.Candidate) *models.ImageRecord {
	dirname := cand.Dirname
	if dirname == "" {
		dirname, _ = urlutil.Dirname(cand.Site)
	}
	rec := &models.ImageRecord{
		Site:      cand.Site,
		URL:       cand.URL,
		Dirname:   dirname,
		Status:    models.NotProcessed,
		CreatedAt: c.now(),
	}
	filename, err := urlutil.Filename(cand.URL)
	if err != nil {
		rec.Status = models.FailedToFetch
		rec.Err = utils.WrapErrorf(err, "deriving filename")
	}
	rec.Filename = filename
	return rec
}

// admit mirrors rec to the store and counts it in flight
func (c *Coordinator) admit(ctx context.Context, rec *models.ImageRecord) {
	id, err := c.store.Insert(ctx, rec)
	if err != nil {
		c.log.WithField("img_url", rec.URL).Errorf("Failed to record admitted image: %v", err)
	}
	rec.ID = id
	c.stats.Admit(rec.Site)
}

func (c *Coordinator) complete(ctx context.Context, rec *models.ImageRecord) {
	c.stats.Complete(rec.Site, rec.Status)
	if rec.ID == 0 {
		return
	}
	if err := c.store.UpdateStatus(ctx, rec.ID, rec.Status); err != nil {
		c.log.WithFields(logrus.Fields{"img_url": rec.URL, "row_id": rec.ID}).Errorf("Failed to record image status: %v", err)
	}
}
