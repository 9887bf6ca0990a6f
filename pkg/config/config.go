package config

import "time"

const (
	DefaultQuota             = 100
	DefaultSitesFile         = "sites.txt"
	DefaultRequestTimeout    = 5 * time.Second
	DefaultUserAgent         = "img-rotator/1.0 (+https://github.com/Sriram-PR/img-rotator)"
	DefaultOriginalDir       = "img-original"
	DefaultRotatedDir        = "img-rotated"
	DefaultLogDir            = "log"
	DefaultMaxImageSizeBytes = 20 << 20
	DefaultMaxPageSizeBytes  = 10 << 20
	DefaultJPEGQuality       = 95
)

// Store drivers
const (
	StoreDriverNone   = "none"
	StoreDriverSQLite = "sqlite"
	StoreDriverBadger = "badger"
)

// Report formats
const (
	ReportFormatText     = "text"
	ReportFormatMarkdown = "markdown"
	ReportFormatHTML     = "html"
)

// AppConfig holds the configuration for one run
type AppConfig struct {
	Quota                    int              `yaml:"quota"`
	SitesFile                string           `yaml:"sites_file"`
	RequestTimeout           time.Duration    `yaml:"request_timeout"`
	UserAgent                string           `yaml:"user_agent"`
	ForceRefetch             bool             `yaml:"force_refetch"`
	OriginalDir              string           `yaml:"original_dir"`
	RotatedDir               string           `yaml:"rotated_dir"`
	LogDir                   string           `yaml:"log_dir"`
	MaxInFlight              int              `yaml:"max_in_flight,omitempty"` // 0 = bounded only by quota
	MaxRequests              int              `yaml:"max_requests"`
	MaxRequestsPerHost       int              `yaml:"max_requests_per_host"`
	DelayPerHost             time.Duration    `yaml:"delay_per_host,omitempty"`
	MaxRetries               int              `yaml:"max_retries,omitempty"`
	InitialRetryDelay        time.Duration    `yaml:"initial_retry_delay,omitempty"`
	MaxRetryDelay            time.Duration    `yaml:"max_retry_delay,omitempty"`
	SemaphoreAcquireTimeout  time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"` // 0 = no timeout
	MaxImageSizeBytes        int64            `yaml:"max_image_size_bytes,omitempty"`
	MaxPageSizeBytes         int64            `yaml:"max_page_size_bytes,omitempty"`
	KeywordBlocklist         []string         `yaml:"keyword_blocklist,omitempty"`
	BlocklistPatterns        []string         `yaml:"blocklist_patterns,omitempty"` // Regex, matched against the raw src
	BlocklistCaseInsensitive bool             `yaml:"blocklist_case_insensitive,omitempty"`
	JPEGQuality              int              `yaml:"jpeg_quality,omitempty"`
	Store                    StoreConfig      `yaml:"store,omitempty"`
	Report                   ReportConfig     `yaml:"report,omitempty"`
	MetricsTextfile          string           `yaml:"metrics_textfile,omitempty"` // Prometheus text exposition written at run end
	HTTPClientSettings       HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// StoreConfig selects the optional durable status table
type StoreConfig struct {
	Driver        string `yaml:"driver"`
	Path          string `yaml:"path"`
	SkipProcessed bool   `yaml:"skip_processed,omitempty"` // Skip URLs a previous run already processed
}

// ReportConfig controls the end-of-run report
type ReportConfig struct {
	Format string `yaml:"format"`
	Path   string `yaml:"path,omitempty"` // Empty = log only
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout, defaults to request_timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// EffectiveMaxInFlight returns the admission bound for concurrent image work
func (c *AppConfig) EffectiveMaxInFlight() int {
	if c.MaxInFlight <= 0 || c.MaxInFlight > c.Quota {
		return c.Quota
	}
	return c.MaxInFlight
}
