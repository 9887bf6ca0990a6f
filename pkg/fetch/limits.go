package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// hostEntry tracks one host's semaphore and when it was last hit
type hostEntry struct {
	sem         *semaphore.Weighted
	lastRequest time.Time
}

// Limits bounds concurrent requests globally and per host, and spaces out requests to the same host.
// One Limits is shared by page and image fetches so the bounds hold across both phases.
type Limits struct {
	global     *semaphore.Weighted
	perHost    int64
	delay      time.Duration
	semTimeout time.Duration

	mu    sync.Mutex
	hosts map[string]*hostEntry
	log   *logrus.Entry
}

// NewLimits creates Limits. Zero or negative bounds fall back to 1.
func NewLimits(maxRequests, maxPerHost int, delayPerHost, semTimeout time.Duration, log *logrus.Entry) *Limits {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	if maxPerHost <= 0 {
		maxPerHost = 1
	}
	return &Limits{
		global:     semaphore.NewWeighted(int64(maxRequests)),
		perHost:    int64(maxPerHost),
		delay:      delayPerHost,
		semTimeout: semTimeout,
		hosts:      make(map[string]*hostEntry),
		log:        log,
	}
}

func (l *Limits) entry(host string) *hostEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.hosts[host]
	if !ok {
		e = &hostEntry{sem: semaphore.NewWeighted(l.perHost)}
		l.hosts[host] = e
		l.log.WithFields(logrus.Fields{"host": host, "limit": l.perHost}).Debug("Created new host semaphore")
	}
	return e
}

func (l *Limits) acquire(ctx context.Context, sem *semaphore.Weighted, what, host string) error {
	acqCtx := ctx
	if l.semTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, l.semTimeout)
		defer cancel()
	}
	if err := sem.Acquire(acqCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w: acquiring %s semaphore for '%s': %w", utils.ErrSemaphoreTimeout, what, host, err)
		}
		return fmt.Errorf("acquiring %s semaphore for '%s': %w", what, host, err)
	}
	return nil
}

// Acquire takes the host permit, then the global permit, then waits out the per-host delay.
// The returned release must be called exactly once after the request attempt finishes.
func (l *Limits) Acquire(ctx context.Context, host string) (release func(), err error) {
	e := l.entry(host)
	if err := l.acquire(ctx, e.sem, "host", host); err != nil {
		return nil, err
	}
	if err := l.acquire(ctx, l.global, "global", host); err != nil {
		e.sem.Release(1)
		return nil, err
	}
	if err := l.waitDelay(ctx, host, e); err != nil {
		l.global.Release(1)
		e.sem.Release(1)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			e.lastRequest = time.Now()
			l.mu.Unlock()
			l.global.Release(1)
			e.sem.Release(1)
		})
	}, nil
}

// waitDelay sleeps until delay has passed since the host's last request, with +/- 10% jitter
func (l *Limits) waitDelay(ctx context.Context, host string, e *hostEntry) error {
	if l.delay <= 0 {
		return nil
	}
	l.mu.Lock()
	last := e.lastRequest
	l.mu.Unlock()
	if last.IsZero() {
		return nil
	}

	elapsed := time.Since(last)
	if elapsed >= l.delay {
		return nil
	}
	sleep := l.delay - elapsed
	if spread := int64(sleep) / 5; spread > 0 {
		sleep += time.Duration(rand.Int63n(spread)) - sleep/10
	}
	if sleep <= 0 {
		return nil
	}

	l.log.WithFields(logrus.Fields{"host": host, "sleep": sleep, "required_delay": l.delay}).Debug("Rate limit applying sleep")
	timer := time.NewTimer(sleep)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Hosts returns the number of hosts seen so far
func (l *Limits) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hosts)
}
