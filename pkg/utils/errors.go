package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// --- Extraction error kinds ---
var (
	ErrFailedToExtract       = errors.New("failed to extract article")           // Engine produced no usable result
	ErrDataIsNotString       = errors.New("fetched data is not decodable text")  // Body bytes could not be decoded
	ErrMissingExtractionData = errors.New("extraction returned no content body") // Extracted, but content absent
	ErrBadURL                = errors.New("bad URL")
	ErrSandboxTerminated     = errors.New("sandbox terminated")
	ErrAssetMissing          = errors.New("script asset missing")
	ErrNavigation            = errors.New("navigation failed")
)

// --- Sentinel Errors for Categorization ---
var (
	ErrRetryFailed        = errors.New("request failed after all retries") // Wraps the last underlying error
	ErrClientHTTPError    = errors.New("client HTTP error (4xx)")          // Wraps original error/status
	ErrServerHTTPError    = errors.New("server HTTP error (5xx)")          // Wraps original error/status
	ErrOtherHTTPError     = errors.New("other HTTP error (non-2xx)")       // Wraps original error/status
	ErrRobotsDisallowed   = errors.New("disallowed by robots.txt")
	ErrUnsupportedContent = errors.New("unsupported content type")
	ErrParsing            = errors.New("parsing error")  // Wraps specific parsing error (HTML, URL, JSON)
	ErrDatabase           = errors.New("database error") // Wraps badger errors
	ErrSemaphoreTimeout   = errors.New("timeout acquiring semaphore")
	ErrRequestCreation    = errors.New("failed to create HTTP request")
	ErrResponseBodyRead   = errors.New("failed to read response body")
	ErrMarkdownConversion = errors.New("failed to convert HTML to markdown")
	ErrConfigValidation   = errors.New("configuration validation error")
)

// WrapErrorf prefixes err with a formatted message. A nil err stays nil.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// categories pairs sentinels with their label, checked in order. A refine
// func, when present, narrows the label using the rest of the chain.
var categories = []struct {
	sentinel error
	label    string
	refine   func(err error) string
}{
	{ErrFailedToExtract, "Extract_Failed", nil},
	{ErrMissingExtractionData, "Extract_MissingContent", nil},
	{ErrDataIsNotString, "Content_NotText", nil},
	{ErrBadURL, "Input_BadURL", nil},
	{ErrSandboxTerminated, "Sandbox_Terminated", nil},
	{ErrAssetMissing, "Sandbox_AssetMissing", nil},
	{ErrNavigation, "Render_Navigation", nil},
	{ErrRetryFailed, "RetryFailed_Unknown", refineRetry},
	{ErrClientHTTPError, "HTTP_4xx", refineClientStatus},
	{ErrServerHTTPError, "HTTP_5xx", nil},
	{ErrOtherHTTPError, "HTTP_OtherStatus", nil},
	{ErrRobotsDisallowed, "Policy_Robots", nil},
	{ErrUnsupportedContent, "Content_Unsupported", nil},
	{ErrParsing, "Content_ParsingOther", refineParsing},
	{ErrMarkdownConversion, "Content_Markdown", nil},
	{ErrDatabase, "Database_Other", nil},
	{ErrSemaphoreTimeout, "Resource_SemaphoreTimeout", nil},
	{ErrRequestCreation, "Internal_RequestCreation", nil},
	{ErrResponseBodyRead, "Network_BodyRead", nil},
	{ErrConfigValidation, "Config_Validation", nil},
}

// CategorizeError maps an error to a short label for logs, metrics and API
// error bodies. nil maps to "None" and unrecognized errors to "Unknown".
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}
	for _, c := range categories {
		if !errors.Is(err, c.sentinel) {
			continue
		}
		if c.refine != nil {
			if label := c.refine(err); label != "" {
				return label
			}
		}
		return c.label
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "System_ContextCanceled"
	case errors.Is(err, context.DeadlineExceeded):
		if strings.Contains(err.Error(), "semaphore") {
			return "Resource_SemaphoreTimeout"
		}
		return "System_ContextDeadlineExceeded"
	}
	if kind := networkKind(err); kind != "" {
		return "Network_" + kind
	}
	return "Unknown"
}

func refineRetry(err error) string {
	switch {
	case errors.Is(err, ErrServerHTTPError):
		return "RetryFailed_HTTPServer"
	case errors.Is(err, ErrClientHTTPError):
		return "RetryFailed_HTTPClient"
	}
	// A bare ErrRetryFailed carries no cause
	if err == ErrRetryFailed {
		return ""
	}
	switch kind := networkKind(err); kind {
	case "Timeout", "TimeoutGeneric":
		return "RetryFailed_NetworkTimeout"
	case "ConnectionRefused", "DNSLookup":
		return "RetryFailed_" + kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "RetryFailed_NetworkTimeout"
	}
	return "RetryFailed_NetworkOther"
}

var clientStatuses = []string{"404", "403", "401", "429"}

func refineClientStatus(err error) string {
	msg := err.Error()
	for _, code := range clientStatuses {
		if strings.Contains(msg, " "+code+" ") || strings.HasSuffix(msg, " "+code) {
			return "HTTP_" + code
		}
	}
	return ""
}

func refineParsing(err error) string {
	msg := err.Error()
	for _, what := range []string{"URL", "HTML", "JSON"} {
		if strings.Contains(msg, what) {
			return "Content_Parsing" + what
		}
	}
	return ""
}

// networkKind classifies transport failures by type or message; "" when the
// error does not look like one.
func networkKind(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Timeout"
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "TimeoutGeneric"
	case strings.Contains(msg, "connection refused"):
		return "ConnectionRefused"
	case strings.Contains(msg, "no such host"):
		return "DNSLookup"
	case strings.Contains(msg, "tls") || strings.Contains(msg, "certificate"):
		return "TLS"
	case strings.Contains(msg, "reset by peer"):
		return "ConnectionReset"
	}
	return ""
}
