package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for cache operations
var (
	// ErrCacheNotFound indicates no cache entry exists at the resolved location
	ErrCacheNotFound = errors.New("camera cache not found")

	// ErrCacheCorrupt indicates the cache exists but failed validation
	ErrCacheCorrupt = errors.New("camera cache is corrupt")

	// ErrCacheWrite indicates the cache could not be persisted
	ErrCacheWrite = errors.New("camera cache write failed")

	// ErrCameraNotFound indicates the requested camera is not in the dataset
	ErrCameraNotFound = errors.New("camera not found")

	// ErrSensorModeNotFound indicates the requested sensor mode does not exist
	ErrSensorModeNotFound = errors.New("sensor mode not found")
)

// FetchErrorKind classifies remote retrieval failures.
type FetchErrorKind int

const (
	FetchUnreachable FetchErrorKind = iota // Network-level failure, no HTTP response
	FetchHTTPStatus                        // Non-2xx HTTP status
	FetchBadPayload                        // Response body could not be decoded
)

// FetchError is returned for any failed remote retrieval. It carries a
// short user-presentable message while retaining the underlying cause
// for diagnostic logging.
type FetchError struct {
	Kind   FetchErrorKind
	Op     string // Logical operation, e.g. "cameras", "sensors"
	Status int    // HTTP status code, set for FetchHTTPStatus
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.Op, e.Status)
	case FetchBadPayload:
		return fmt.Sprintf("fetch %s: malformed response: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Message returns the short user-facing description of the failure.
func (e *FetchError) Message() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("CamDB returned HTTP %d", e.Status)
	case FetchBadPayload:
		return "CamDB returned an unreadable response"
	default:
		return "CamDB is unreachable"
	}
}

// ConversionError is returned when a sensor mode cannot be translated
// into host parameters.
type ConversionError struct {
	ModeName string
	Reason   string
}

func (e *ConversionError) Error() string {
	if e.ModeName == "" {
		return "cannot convert sensor mode: " + e.Reason
	}
	return fmt.Sprintf("cannot convert sensor mode %q: %s", e.ModeName, e.Reason)
}
