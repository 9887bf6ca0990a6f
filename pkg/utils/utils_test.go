package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	result := CategorizeError(nil)
	if result != "None" {
		t.Errorf("CategorizeError(nil) = %q, want %q", result, "None")
	}
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ImageTooLarge", ErrImageTooLarge, "Image_TooLarge"},
		{"ImageRotate", ErrImageRotate, "Image_Rotate"},
		{"ImageStore", ErrImageStore, "Image_Store_Filesystem_Other"},
		{"SemaphoreTimeout", ErrSemaphoreTimeout, "Resource_SemaphoreTimeout"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_StageWrapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "FetchWrapsHTTP404",
			err:      fmt.Errorf("%w: %w", ErrImageFetch, fmt.Errorf("%w: status 404 Not Found", ErrClientHTTPError)),
			expected: "HTTP_404",
		},
		{
			name:     "FetchWrapsTooLarge",
			err:      fmt.Errorf("%w: %w", ErrImageFetch, ErrImageTooLarge),
			expected: "Image_TooLarge",
		},
		{
			name:     "StorePermission",
			err:      fmt.Errorf("%w: %w", ErrImageStore, os.ErrPermission),
			expected: "Image_Store_Filesystem_Permission",
		},
		{
			name:     "RetryFailedServer",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)),
			expected: "RetryFailed_HTTPServer",
		},
		{
			name:     "RetryFailedNetwork",
			err:      fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused")),
			expected: "RetryFailed_Network_ConnectionRefused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"404", fmt.Errorf("HTTP status 404 : %w", ErrClientHTTPError), "HTTP_404"},
		{"403", fmt.Errorf("HTTP status 403 : %w", ErrClientHTTPError), "HTTP_403"},
		{"429", fmt.Errorf("HTTP status 429 : %w", ErrClientHTTPError), "HTTP_429"},
		{"Generic4xx", fmt.Errorf("HTTP status 400: %w", ErrClientHTTPError), "HTTP_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"URLParsing", fmt.Errorf("URL parsing failed: %w", ErrParsing), "Content_ParsingURL"},
		{"HTMLParsing", fmt.Errorf("HTML parsing failed: %w", ErrParsing), "Content_ParsingHTML"},
		{"GenericParsing", fmt.Errorf("parsing failed: %w", ErrParsing), "Content_ParsingOther"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

func TestCategorizeError_ContextAndNetwork(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContextCanceled", context.Canceled, "System_ContextCanceled"},
		{"ContextDeadlineExceeded", context.DeadlineExceeded, "Network_Timeout"},
		{"Timeout", errors.New("connection timeout occurred"), "Network_Timeout"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"Certificate", errors.New("certificate verify failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
		{"Unknown", errors.New("some completely unknown error"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CategorizeError(tt.err)
			if result != tt.expected {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, result, tt.expected)
			}
		})
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf_NilError(t *testing.T) {
	result := WrapErrorf(nil, "some context")
	if result != nil {
		t.Errorf("WrapErrorf(nil, ...) = %v, want nil", result)
	}
}

func TestWrapErrorf_WrapsError(t *testing.T) {
	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")

	if wrapped == nil {
		t.Fatal("WrapErrorf() returned nil, want error")
	}
	if !errors.Is(wrapped, original) {
		t.Error("WrapErrorf() result should wrap original error")
	}
	expectedMsg := "context value: original error"
	if wrapped.Error() != expectedMsg {
		t.Errorf("WrapErrorf() message = %q, want %q", wrapped.Error(), expectedMsg)
	}
}

func TestCalculateStringSHA256(t *testing.T) {
	got := CalculateStringSHA256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("CalculateStringSHA256(abc) = %s, want %s", got, want)
	}
	if CalculateBytesSHA256([]byte("abc")) != want {
		t.Error("CalculateBytesSHA256 should match CalculateStringSHA256 for the same content")
	}
}

func TestCompileRegexPatterns(t *testing.T) {
	compiled, err := CompileRegexPatterns([]string{`^data:`, "", `\.gif$`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(compiled) != 2 {
		t.Errorf("expected 2 compiled patterns (empty skipped), got %d", len(compiled))
	}

	_, err = CompileRegexPatterns([]string{`([a-z`})
	if !errors.Is(err, ErrConfigValidation) {
		t.Errorf("expected ErrConfigValidation for invalid pattern, got %v", err)
	}
}
