package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/Sriram-PR/img-rotator/pkg/urlutil"
	"github.com/Sriram-PR/img-rotator/pkg/utils"
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// Quota
	if c.Quota <= 0 {
		warnings = append(warnings, fmt.Sprintf("quota should be > 0, defaulting to %d", DefaultQuota))
		c.Quota = DefaultQuota
	}

	if c.SitesFile == "" {
		c.SitesFile = DefaultSitesFile
	}

	// RequestTimeout
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	// Directories
	if c.OriginalDir == "" {
		c.OriginalDir = DefaultOriginalDir
	}
	if c.RotatedDir == "" {
		c.RotatedDir = DefaultRotatedDir
	}
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	if c.OriginalDir == c.RotatedDir {
		return warnings, fmt.Errorf("%w: original_dir and rotated_dir must differ (both '%s')", utils.ErrConfigValidation, c.OriginalDir)
	}

	// MaxInFlight
	if c.MaxInFlight < 0 {
		warnings = append(warnings, "max_in_flight cannot be negative, setting to 0 (bounded by quota)")
		c.MaxInFlight = 0
	}

	// MaxRequests
	if c.MaxRequests <= 0 {
		warnings = append(warnings, "max_requests should be > 0, defaulting to 16")
		c.MaxRequests = 16
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		warnings = append(warnings, "max_requests_per_host should be > 0, defaulting to 4")
		c.MaxRequestsPerHost = 4
	}
	if c.MaxRequestsPerHost > c.MaxRequests {
		warnings = append(warnings, fmt.Sprintf(
			"max_requests_per_host (%d) > max_requests (%d), capping per-host limit",
			c.MaxRequestsPerHost, c.MaxRequests))
		c.MaxRequestsPerHost = c.MaxRequests
	}

	if c.DelayPerHost < 0 {
		warnings = append(warnings, "delay_per_host cannot be negative, setting to 0")
		c.DelayPerHost = 0
	}

	// MaxRetries
	if c.MaxRetries < 0 {
		warnings = append(warnings, "max_retries cannot be negative, setting to 0")
		c.MaxRetries = 0
	}
	// Unset retry settings mean one retry; set initial_retry_delay with max_retries: 0 to disable
	if c.MaxRetries == 0 && c.InitialRetryDelay == 0 {
		c.MaxRetries = 1
	}

	// Retry delays (only if retries enabled)
	if c.MaxRetries > 0 {
		if c.InitialRetryDelay <= 0 {
			c.InitialRetryDelay = 500 * time.Millisecond
		}
		if c.MaxRetryDelay <= 0 {
			c.MaxRetryDelay = 5 * time.Second
		}
	}

	// InitialRetryDelay > MaxRetryDelay check
	if c.InitialRetryDelay > c.MaxRetryDelay && c.MaxRetryDelay > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"initial_retry_delay (%v) > max_retry_delay (%v), using max_retry_delay for initial",
			c.InitialRetryDelay, c.MaxRetryDelay))
		c.InitialRetryDelay = c.MaxRetryDelay
	}

	// SemaphoreAcquireTimeout, 0 waits until the run is cancelled
	if c.SemaphoreAcquireTimeout < 0 {
		warnings = append(warnings, "semaphore_acquire_timeout cannot be negative, setting to 0 (no timeout)")
		c.SemaphoreAcquireTimeout = 0
	}

	// Size limits, 0 means unlimited once explicitly negative
	if c.MaxImageSizeBytes < 0 {
		warnings = append(warnings, "max_image_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxImageSizeBytes = 0
	} else if c.MaxImageSizeBytes == 0 {
		c.MaxImageSizeBytes = DefaultMaxImageSizeBytes
	}
	if c.MaxPageSizeBytes < 0 {
		warnings = append(warnings, "max_page_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxPageSizeBytes = 0
	} else if c.MaxPageSizeBytes == 0 {
		c.MaxPageSizeBytes = DefaultMaxPageSizeBytes
	}

	// Blocklist
	if c.KeywordBlocklist == nil {
		c.KeywordBlocklist = slices.Clone(urlutil.DefaultKeywords)
	}
	if _, compileErr := utils.CompileRegexPatterns(c.BlocklistPatterns); compileErr != nil {
		return warnings, compileErr
	}

	// JPEGQuality
	if c.JPEGQuality == 0 {
		c.JPEGQuality = DefaultJPEGQuality
	} else if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		warnings = append(warnings, fmt.Sprintf("jpeg_quality %d out of range 1-100, defaulting to %d", c.JPEGQuality, DefaultJPEGQuality))
		c.JPEGQuality = DefaultJPEGQuality
	}

	storeWarnings, err := c.Store.Validate()
	warnings = append(warnings, storeWarnings...)
	if err != nil {
		return warnings, err
	}

	if err := c.Report.Validate(); err != nil {
		return warnings, err
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = c.RequestTimeout
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = c.MaxRequestsPerHost
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = min(10*time.Second, c.RequestTimeout)
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = c.RequestTimeout
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}

// Validate checks the durable store settings and applies defaults.
func (s *StoreConfig) Validate() (warnings []string, err error) {
	if s.Driver == "" {
		s.Driver = StoreDriverNone
	}
	switch s.Driver {
	case StoreDriverNone:
		if s.SkipProcessed {
			warnings = append(warnings, "store.skip_processed has no effect without a durable store driver")
			s.SkipProcessed = false
		}
	case StoreDriverSQLite:
		if s.Path == "" {
			s.Path = "img-rotator.db"
		}
	case StoreDriverBadger:
		if s.Path == "" {
			s.Path = "img-rotator-state"
		}
	default:
		return warnings, fmt.Errorf("%w: unknown store.driver '%s' (want none, sqlite or badger)", utils.ErrConfigValidation, s.Driver)
	}
	return warnings, nil
}

// Validate checks the report settings and applies defaults.
func (r *ReportConfig) Validate() error {
	if r.Format == "" {
		r.Format = ReportFormatText
	}
	switch r.Format {
	case ReportFormatText, ReportFormatMarkdown, ReportFormatHTML:
		return nil
	}
	return fmt.Errorf("%w: unknown report.format '%s' (want text, markdown or html)", utils.ErrConfigValidation, r.Format)
}
