package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sriram-PR/img-rotator/pkg/fsutil"
	"github.com/Sriram-PR/img-rotator/pkg/models"
	"github.com/Sriram-PR/img-rotator/pkg/rotate"
	"github.com/Sriram-PR/img-rotator/pkg/stats"
	"github.com/Sriram-PR/img-rotator/pkg/storage"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	img.Set(1, 0, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fakeFetcher struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) FetchImage(_ context.Context, _ string) ([]byte, error) {
	f.calls.Add(1)
	return f.data, f.err
}

func newRecord() *models.ImageRecord {
	return &models.ImageRecord{
		URL:      "http://img.example/a.png",
		Dirname:  "site.example",
		Filename: "img.example--a.png",
		Status:   models.NotProcessed,
	}
}

func newLayout(t *testing.T) fsutil.Layout {
	dir := t.TempDir()
	return fsutil.Layout{OriginalDir: filepath.Join(dir, "img-original"), RotatedDir: filepath.Join(dir, "img-rotated")}
}

func TestProcessor_FetchRotateStore(t *testing.T) {
	layout := newLayout(t)
	fetcher := &fakeFetcher{data: pngBytes(t)}
	p := NewProcessor(fetcher, rotate.New(95), layout, false, testLogger())

	rec := newRecord()
	p.Process(context.Background(), rec)

	assert.Equal(t, models.Processed, rec.Status)
	assert.NoError(t, rec.Err)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.True(t, fsutil.Exists(layout.OriginalPath(rec.Dirname, rec.Filename)), "original cached")

	out, err := os.ReadFile(layout.RotatedPath(rec.Dirname, rec.Filename))
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	r, _, b, _ := img.At(0, 0).RGBA()
	assert.Zero(t, r)
	assert.NotZero(t, b, "pixels swapped by rotation")
}

func TestProcessor_CacheHitSkipsNetwork(t *testing.T) {
	layout := newLayout(t)
	rec := newRecord()
	require.NoError(t, fsutil.WriteFile(layout.OriginalPath(rec.Dirname, rec.Filename), pngBytes(t)))

	fetcher := &fakeFetcher{err: errors.New("network must not be used")}
	NewProcessor(fetcher, rotate.New(95), layout, false, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.Processed, rec.Status)
	assert.Zero(t, fetcher.calls.Load())
}

func TestProcessor_CorruptCacheFailsRotate(t *testing.T) {
	layout := newLayout(t)
	rec := newRecord()
	require.NoError(t, fsutil.WriteFile(layout.OriginalPath(rec.Dirname, rec.Filename), []byte("not an image")))

	fetcher := &fakeFetcher{data: pngBytes(t)}
	NewProcessor(fetcher, rotate.New(95), layout, false, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.FailedToRotate, rec.Status)
	assert.ErrorIs(t, rec.Err, utils.ErrImageRotate)
	assert.Zero(t, fetcher.calls.Load(), "no fetch when the cached copy exists")
	assert.False(t, fsutil.Exists(layout.RotatedPath(rec.Dirname, rec.Filename)))
}

func TestProcessor_ForceRefetchIgnoresCache(t *testing.T) {
	layout := newLayout(t)
	rec := newRecord()
	require.NoError(t, fsutil.WriteFile(layout.OriginalPath(rec.Dirname, rec.Filename), []byte("stale")))

	fetcher := &fakeFetcher{data: pngBytes(t)}
	NewProcessor(fetcher, rotate.New(95), layout, true, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.Processed, rec.Status)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	cached, err := os.ReadFile(layout.OriginalPath(rec.Dirname, rec.Filename))
	require.NoError(t, err)
	assert.Equal(t, pngBytes(t), cached, "cache overwritten with fresh bytes")
}

func TestProcessor_FetchFailure(t *testing.T) {
	layout := newLayout(t)
	rec := newRecord()
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: status 404 Not Found", utils.ErrClientHTTPError)}
	NewProcessor(fetcher, rotate.New(95), layout, false, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.FailedToFetch, rec.Status)
	assert.ErrorIs(t, rec.Err, utils.ErrImageFetch)
	assert.ErrorIs(t, rec.Err, utils.ErrClientHTTPError)
	assert.False(t, fsutil.Exists(layout.OriginalPath(rec.Dirname, rec.Filename)))
}

func TestProcessor_CacheHitStoreFailure(t *testing.T) {
	layout := newLayout(t)
	rec := newRecord()
	require.NoError(t, fsutil.WriteFile(layout.OriginalPath(rec.Dirname, rec.Filename), pngBytes(t)))
	require.NoError(t, os.WriteFile(layout.RotatedDir, []byte("x"), 0644))

	fetcher := &fakeFetcher{err: errors.New("network must not be used")}
	NewProcessor(fetcher, rotate.New(95), layout, false, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.FailedToStore, rec.Status)
	assert.ErrorIs(t, rec.Err, utils.ErrImageStore)
	assert.ErrorIs(t, rec.Err, utils.ErrFilesystem)
	assert.Zero(t, fetcher.calls.Load())
}

func TestProcessor_StoreFailure(t *testing.T) {
	layout := newLayout(t)
	// A regular file where the rotated directory should be
	require.NoError(t, os.WriteFile(layout.RotatedDir, []byte("x"), 0644))

	rec := newRecord()
	NewProcessor(&fakeFetcher{data: pngBytes(t)}, rotate.New(95), layout, false, testLogger()).Process(context.Background(), rec)

	assert.Equal(t, models.FailedToStore, rec.Status)
	assert.ErrorIs(t, rec.Err, utils.ErrImageStore)
}

type panicRotator struct{}

func (panicRotator) Rotate180([]byte) (*rotate.Result, error) { panic("boom") }

func TestProcessor_PanicMarksStage(t *testing.T) {
	rec := newRecord()
	NewProcessor(&fakeFetcher{data: []byte("x")}, panicRotator{}, newLayout(t), false, testLogger()).Process(context.Background(), rec)
	assert.Equal(t, models.FailedToRotate, rec.Status)
	assert.Error(t, rec.Err)
}

// quotaWorker fails URLs containing "bad" and checks the quota bound from the worker side
type quotaWorker struct {
	quota int

	mu        sync.Mutex
	active    int
	done      int
	maxActive int
	violation bool
}

func (w *quotaWorker) Process(_ context.Context, rec *models.ImageRecord) {
	w.mu.Lock()
	w.active++
	if w.active+w.done > w.quota {
		w.violation = true
	}
	w.maxActive = max(w.maxActive, w.active)
	w.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.active--
	if strings.Contains(rec.URL, "bad") {
		rec.Status = models.FailedToFetch
		return
	}
	rec.Status = models.Processed
	w.done++
}

func candidates(urls ...string) []models.Candidate {
	out := make([]models.Candidate, len(urls))
	for i, u := range urls {
		out[i] = models.Candidate{Site: "http://site.example/", Dirname: "site.example", URL: "http://img.example/" + u}
	}
	return out
}

func TestCoordinator_Admission(t *testing.T) {
	tests := []struct {
		name          string
		quota         int
		maxInFlight   int
		urls          []string
		wantProcessed int
		wantAttempted int
		wantMaxActive int
	}{
		{"quota reached", 4, 0, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}, 4, 4, 4},
		{"failures free slots", 3, 0, []string{"bad1", "1", "bad2", "2", "bad3", "3", "4"}, 3, 6, 3},
		{"list exhausted", 10, 0, []string{"1", "bad1", "2"}, 2, 3, 3},
		{"max in flight", 5, 1, []string{"1", "2", "3", "4", "5", "6"}, 5, 5, 1},
		{"empty list", 3, 0, nil, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := &quotaWorker{quota: tt.quota}
			runStats := stats.New(tt.quota, nil)
			c := NewCoordinator(w, storage.NopStore{}, runStats, CoordinatorOptions{MaxInFlight: tt.maxInFlight}, testLogger())

			records := c.Run(context.Background(), candidates(tt.urls...))

			assert.False(t, w.violation, "processed + in_flight exceeded quota")
			assert.Equal(t, tt.wantProcessed, runStats.Processed())
			assert.Equal(t, tt.wantAttempted, runStats.Total().Attempted)
			assert.Equal(t, 0, runStats.InFlight())
			assert.LessOrEqual(t, w.maxActive, tt.wantMaxActive)
			assert.Len(t, records, tt.wantAttempted)
			for _, rec := range records {
				assert.True(t, rec.Status.IsTerminal())
				assert.NotEmpty(t, rec.Filename)
				assert.Equal(t, "site.example", rec.Dirname)
			}
		})
	}
}

func TestCoordinator_CancelledContextAdmitsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runStats := stats.New(5, nil)
	c := NewCoordinator(&quotaWorker{quota: 5}, storage.NopStore{}, runStats, CoordinatorOptions{}, testLogger())
	records := c.Run(ctx, candidates("1", "2"))

	assert.Empty(t, records)
	assert.Zero(t, runStats.Total().Attempted)
}

// memStore is an in-memory StatusStore
type memStore struct {
	rows map[int64]*models.PersistedRow
	done map[string]bool
	next int64
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]*models.PersistedRow{}, done: map[string]bool{}}
}

func (m *memStore) Insert(_ context.Context, rec *models.ImageRecord) (int64, error) {
	m.next++
	row := models.NewPersistedRow(rec, "test")
	row.ID = m.next
	m.rows[row.ID] = &row
	return row.ID, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, status models.ImageStatus) error {
	row, ok := m.rows[id]
	if !ok {
		return utils.ErrDatabase
	}
	row.Status = status.String()
	if status == models.Processed {
		m.done[row.URL] = true
	}
	return nil
}

func (m *memStore) WasProcessed(_ context.Context, url string) (bool, error) { return m.done[url], nil }

func (m *memStore) Rows(context.Context) ([]models.PersistedRow, error) {
	out := make([]models.PersistedRow, 0, len(m.rows))
	for id := int64(1); id <= m.next; id++ {
		out = append(out, *m.rows[id])
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func TestCoordinator_MirrorsStatusToStore(t *testing.T) {
	store := newMemStore()
	c := NewCoordinator(&quotaWorker{quota: 5}, store, stats.New(5, nil), CoordinatorOptions{}, testLogger())
	c.Run(context.Background(), candidates("1", "bad1"))

	rows, err := store.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	statuses := []string{rows[0].Status, rows[1].Status}
	assert.ElementsMatch(t, []string{"processed", "failed-to-fetch"}, statuses)
}

func TestCoordinator_SkipProcessed(t *testing.T) {
	store := newMemStore()
	store.done["http://img.example/1"] = true

	runStats := stats.New(2, nil)
	c := NewCoordinator(&quotaWorker{quota: 2}, store, runStats, CoordinatorOptions{SkipProcessed: true}, testLogger())
	records := c.Run(context.Background(), candidates("1", "2", "3"))

	require.Len(t, records, 2)
	assert.Equal(t, 1, runStats.Total().Skipped)
	assert.Equal(t, 2, runStats.Processed())
	for _, rec := range records {
		assert.NotEqual(t, "http://img.example/1", rec.URL)
	}

	// Without the flag the earlier result is ignored
	runStats = stats.New(2, nil)
	c = NewCoordinator(&quotaWorker{quota: 2}, store, runStats, CoordinatorOptions{}, testLogger())
	c.Run(context.Background(), candidates("1", "2", "3"))
	assert.Zero(t, runStats.Total().Skipped)
}

func TestCoordinator_SameTargetAdmittedOnce(t *testing.T) {
	shared := "http://img.example/shared.png"
	cands := []models.Candidate{
		{Site: "http://site.example/p1", Dirname: "site.example", URL: shared},
		{Site: "http://site.example/p2", Dirname: "site.example", URL: shared},
		{Site: "http://site.example/p2", Dirname: "site.example", URL: "http://img.example/own.png"},
		// Same image under another site's directory is a distinct target
		{Site: "http://other.example/", Dirname: "other.example", URL: shared},
	}

	w := &quotaWorker{quota: 3}
	runStats := stats.New(3, nil)
	store := newMemStore()
	records := NewCoordinator(w, store, runStats, CoordinatorOptions{}, testLogger()).Run(context.Background(), cands)

	require.Len(t, records, 3)
	assert.Equal(t, 3, runStats.Processed())
	assert.Equal(t, 3, runStats.Total().Attempted)
	assert.Zero(t, runStats.Total().Skipped, "duplicates are not earlier-run skips")
	assert.Equal(t, 1, runStats.Site("http://site.example/p1").Processed)
	assert.Equal(t, 1, runStats.Site("http://site.example/p2").Processed)
	assert.Equal(t, 1, runStats.Site("http://other.example/").Processed)

	targets := map[string]bool{}
	for _, rec := range records {
		target := filepath.Join(rec.Dirname, rec.Filename)
		assert.False(t, targets[target], "target %s admitted twice", target)
		targets[target] = true
	}
	assert.Len(t, store.rows, 3)
}
