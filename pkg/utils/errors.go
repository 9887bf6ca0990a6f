package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed     = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError  = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status

	ErrSiteFetch     = errors.New("site fetch failed")
	ErrImageFetch    = errors.New("image fetch failed")
	ErrImageRotate   = errors.New("image rotate failed")
	ErrImageStore    = errors.New("image store failed")
	ErrImageTooLarge = errors.New("image exceeds size limit")

	ErrParsing          = errors.New("parsing error")    // Wraps specific parsing error (HTML, URL)
	ErrFilesystem       = errors.New("filesystem error") // Wraps os errors
	ErrDatabase         = errors.New("database error")   // Wraps badger/gorm errors
	ErrSemaphoreTimeout = errors.New("timeout acquiring semaphore")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf prefixes err with a formatted context message, returns nil for a nil err
func WrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Stage sentinels carry the more specific cause underneath, check that first
	switch {
	case errors.Is(err, ErrImageTooLarge):
		return "Image_TooLarge"
	case errors.Is(err, ErrImageRotate):
		return "Image_Rotate"
	case errors.Is(err, ErrImageStore):
		return "Image_Store_" + categorizeFilesystem(err)
	}

	switch {
	case errors.Is(err, ErrRetryFailed):
		if errors.Is(err, ErrServerHTTPError) {
			return "RetryFailed_HTTPServer"
		}
		if errors.Is(err, ErrClientHTTPError) {
			return "RetryFailed_HTTPClient"
		}
		return "RetryFailed_" + categorizeNetwork(err)
	case errors.Is(err, ErrClientHTTPError):
		errMsg := err.Error()
		for _, code := range []string{"404", "403", "401", "429"} {
			if strings.Contains(errMsg, " "+code+" ") {
				return "HTTP_" + code
			}
		}
		return "HTTP_4xx"
	case errors.Is(err, ErrServerHTTPError):
		return "HTTP_5xx"
	case errors.Is(err, ErrOtherHTTPError):
		return "HTTP_OtherStatus"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrFilesystem):
		return categorizeFilesystem(err)
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrSemaphoreTimeout):
		return "Resource_SemaphoreTimeout"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Network_Timeout"
	}
	return categorizeNetwork(err)
}

func categorizeFilesystem(err error) string {
	switch {
	case errors.Is(err, os.ErrPermission):
		return "Filesystem_Permission"
	case errors.Is(err, os.ErrNotExist):
		return "Filesystem_NotExist"
	case errors.Is(err, os.ErrExist):
		return "Filesystem_Exist"
	}
	return "Filesystem_Other"
}

func categorizeNetwork(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Network_Timeout"
	}
	lowerErrMsg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lowerErrMsg, "timeout"), strings.Contains(lowerErrMsg, "deadline exceeded"):
		return "Network_Timeout"
	case strings.Contains(lowerErrMsg, "connection refused"):
		return "Network_ConnectionRefused"
	case strings.Contains(lowerErrMsg, "no such host"):
		return "Network_DNSLookup"
	case strings.Contains(lowerErrMsg, "tls"), strings.Contains(lowerErrMsg, "certificate"):
		return "Network_TLS"
	case strings.Contains(lowerErrMsg, "reset by peer"):
		return "Network_ConnectionReset"
	}
	return "Unknown"
}
