package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-rotator/pkg/config"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// HTTPFetcher performs one logical request, possibly over several attempts
type HTTPFetcher interface {
	FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error)
}

// RetryPolicy controls FetchWithRetry's backoff
type RetryPolicy struct {
	MaxRetries        int
	InitialRetryDelay time.Duration
	MaxRetryDelay     time.Duration
}

// RetryPolicyFromConfig extracts the retry settings from a validated config
func RetryPolicyFromConfig(cfg *config.AppConfig) RetryPolicy {
	return RetryPolicy{
		MaxRetries:        cfg.MaxRetries,
		InitialRetryDelay: cfg.InitialRetryDelay,
		MaxRetryDelay:     cfg.MaxRetryDelay,
	}
}

// backoff returns the jittered delay before retry attempt n (n >= 1)
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.InitialRetryDelay) * math.Pow(2, float64(attempt-1)))
	if delay <= 0 || (p.MaxRetryDelay > 0 && delay > p.MaxRetryDelay) {
		delay = p.MaxRetryDelay
	}
	if delay <= 0 {
		return 0
	}
	// +/- 10%
	var jitter time.Duration
	if spread := int64(delay) / 5; spread > 0 {
		jitter = time.Duration(rand.Int63n(spread)) - delay/10
	}
	return max(delay+jitter, 0)
}

// Fetcher handles making HTTP requests with retry logic, using an underlying http.Client
type Fetcher struct {
	client *http.Client
	policy RetryPolicy
	log    *logrus.Entry
}

// NewFetcher creates a new Fetcher instance
func NewFetcher(client *http.Client, policy RetryPolicy, log *logrus.Entry) *Fetcher {
	return &Fetcher{client: client, policy: policy, log: log}
}

func drainAndClose(resp *http.Response) {
	if resp == nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// FetchWithRetry performs req, retrying network errors, 5xx and 429 with exponential backoff and jitter.
// On success the caller owns the response body. Other 4xx and non-2xx statuses return the response
// together with an error; the caller must close that body too.
func (f *Fetcher) FetchWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	reqLog := f.log.WithField("url", req.URL.String())
	maxRetries := max(f.policy.MaxRetries, 0)

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, fmt.Errorf("context cancelled (%v) during retry backoff after error: %w", err, lastErr)
			}
			return nil, fmt.Errorf("context cancelled before first attempt: %w", err)
		}

		if attempt > 0 {
			delay := f.policy.backoff(attempt)
			reqLog.WithFields(logrus.Fields{"attempt": attempt, "max_retries": maxRetries, "delay": delay}).Warn("Retrying request...")
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("context cancelled (%v) during retry delay after error: %w", ctx.Err(), lastErr)
			}
		}

		resp, err := f.client.Do(req.WithContext(ctx))
		if err != nil {
			drainAndClose(resp)
			// Never retry our own cancellation or deadline
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			reqLog.WithField("attempt", attempt).Debugf("Network error: %v", err)
			lastErr = err
			continue
		}

		status := resp.StatusCode
		resLog := reqLog.WithFields(logrus.Fields{"status_code": status, "attempt": attempt})
		switch {
		case status >= 200 && status < 300:
			resLog.Debug("Successfully fetched")
			return resp, nil

		case status >= 500:
			resLog.Debug("Server error, will retry")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrServerHTTPError, resp.Status)
			drainAndClose(resp)

		case status == http.StatusTooManyRequests:
			resLog.Debug("Received 429 Too Many Requests, will retry")
			lastErr = fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, resp.Status)
			drainAndClose(resp)

		case status >= 400:
			return resp, fmt.Errorf("%w: status %s", utils.ErrClientHTTPError, resp.Status)

		default:
			return resp, fmt.Errorf("%w: status %s", utils.ErrOtherHTTPError, resp.Status)
		}
	}

	reqLog.Debugf("All %d fetch attempts failed. Last error: %v", maxRetries+1, lastErr)
	if lastErr == nil {
		return nil, utils.ErrRetryFailed
	}
	return nil, fmt.Errorf("%w: %w", utils.ErrRetryFailed, lastErr)
}
