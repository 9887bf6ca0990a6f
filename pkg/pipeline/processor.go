package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/fsutil"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/rotate"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// ImageFetcher downloads raw image bytes
type ImageFetcher interface {
	FetchImage(ctx context.Context, rawURL string) ([]byte, error)
}

// Transformer turns raw image bytes into the rotated encoding
type Transformer interface {
	Rotate180(data []byte) (*rotate.Result, error)
}

// Processor runs the per-image steps: load (cache or network), rotate, store
type Processor struct {
	fetcher      ImageFetcher
	rotator      Transformer
	layout       fsutil.Layout
	forceRefetch bool
	log          *logrus.Entry
}

// NewProcessor creates a Processor. With forceRefetch the original cache is never read.
func NewProcessor(fetcher ImageFetcher, rotator Transformer, layout fsutil.Layout, forceRefetch bool, log *logrus.Entry) *Processor {
	return &Processor{
		fetcher:      fetcher,
		rotator:      rotator,
		layout:       layout,
		forceRefetch: forceRefetch,
		log:          log,
	}
}

// Process drives rec to a terminal status. It never returns an error: failures are
// recorded on rec as the status of the failing stage plus rec.Err.
func (p *Processor) Process(ctx context.Context, rec *models.ImageRecord) {
	imgLog := p.log.WithFields(logrus.Fields{"site": rec.Dirname, "img_url": rec.URL})
	stage := models.StageFetch

	defer func() {
		if r := recover(); r != nil {
			rec.Status = models.Failed(stage)
			rec.Err = fmt.Errorf("panic processing img '%s': %v", rec.URL, r)
			imgLog.WithFields(logrus.Fields{"panic_info": r, "stack_trace": string(debug.Stack())}).Error("PANIC Recovered in Process")
		}
	}()

	rec.Status = models.NotProcessed
	rec.Err = nil

	data, err := p.load(ctx, rec, imgLog)
	if err != nil {
		p.fail(rec, stage, fmt.Errorf("%w: %w", utils.ErrImageFetch, err), imgLog)
		return
	}

	stage = models.StageRotate
	res, err := p.rotator.Rotate180(data)
	if err != nil {
		p.fail(rec, stage, fmt.Errorf("%w: %w", utils.ErrImageRotate, err), imgLog)
		return
	}

	stage = models.StageStore
	if err := fsutil.WriteFile(p.layout.RotatedPath(rec.Dirname, rec.Filename), res.Data); err != nil {
		p.fail(rec, stage, fmt.Errorf("%w: %w", utils.ErrImageStore, err), imgLog)
		return
	}

	rec.Status = models.Processed
	imgLog.WithFields(logrus.Fields{"source_format": res.SourceFormat, "output_format": res.OutputFormat}).Debug("Image rotated and stored")
}

// load returns the original bytes, preferring the on-disk copy unless forced to refetch.
// Downloaded bytes are cached; a cache write failure only logs.
func (p *Processor) load(ctx context.Context, rec *models.ImageRecord, imgLog *logrus.Entry) ([]byte, error) {
	originalPath := p.layout.OriginalPath(rec.Dirname, rec.Filename)
	if !p.forceRefetch && fsutil.Exists(originalPath) {
		data, err := fsutil.ReadFile(originalPath)
		if err == nil {
			imgLog.WithField("sha256", utils.CalculateBytesSHA256(data)).Debug("Using cached original")
			return data, nil
		}
		imgLog.Warnf("Cached original unreadable, refetching: %v", err)
	}

	data, err := p.fetcher.FetchImage(ctx, rec.URL)
	if err != nil {
		return nil, err
	}
	if err := fsutil.WriteFile(originalPath, data); err != nil {
		imgLog.Warnf("Failed to cache original: %v", err)
	} else {
		imgLog.WithFields(logrus.Fields{"bytes": len(data), "sha256": utils.CalculateBytesSHA256(data)}).Debug("Cached original")
	}
	return data, nil
}

func (p *Processor) fail(rec *models.ImageRecord, stage models.Stage, err error, imgLog *logrus.Entry) {
	rec.Status = models.Failed(stage)
	rec.Err = err
	imgLog.WithFields(logrus.Fields{
		"status":     rec.Status.String(),
		"error_type": utils.CategorizeError(err),
	}).Warnf("Image failed: %v", err)
}
