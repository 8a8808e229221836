package domain

import (
	"fmt"
	"time"
)

// Camera represents a single catalog entry from CamDB. Cameras are
// immutable once fetched; a refresh replaces the full list wholesale.
type Camera struct {
	ID   int64  `json:"id"`       // Stable CamDB identifier
	Make string `json:"make"`     // Manufacturer, e.g. "ARRI"
	Name string `json:"name"`     // Model name, e.g. "Alexa Mini"
	Type string `json:"cam_type"` // Category tag, e.g. "cinema", "dslr"
}

// DisplayName returns the "Make Name" form used for listing and search.
func (c Camera) DisplayName() string {
	if c.Make == "" {
		return c.Name
	}
	return c.Make + " " + c.Name
}

// SensorMode is a named resolution + physical-sensor-size configuration
// belonging to exactly one camera. Sensor modes are fetched lazily per
// camera and cached independently of the camera list.
type SensorMode struct {
	ID           int64    `json:"id"`
	CameraID     int64    `json:"camera_id"`
	ModeName     string   `json:"mode_name"`
	ResWidth     int      `json:"res_width"`
	ResHeight    int      `json:"res_height"`
	SensorWidth  float64  `json:"sensor_width"`  // Physical width in mm (0 = unknown)
	SensorHeight float64  `json:"sensor_height"` // Physical height in mm (0 = unknown)
	FormatAspect *float64 `json:"format_aspect,omitempty"`
	Approved     bool     `json:"approve"`
}

// Describe returns the one-line summary used in mode listings,
// e.g. "Open Gate - 4448x3096 (28.2x19.6mm)".
func (m SensorMode) Describe() string {
	return fmt.Sprintf("%s - %dx%d (%gx%gmm)", m.ModeName, m.ResWidth, m.ResHeight, m.SensorWidth, m.SensorHeight)
}

// CameraParams is the host-application parameter set produced by the
// converter. The host object-creation routine consumes it as-is.
type CameraParams struct {
	Aperture float64  // Horizontal aperture in host units
	ResX     int      // Resolution width in pixels
	ResY     int      // Resolution height in pixels
	Aspect   *float64 // Pixel aspect ratio; nil means host default applies
}

// CacheMetadata describes the persisted camera dataset. It is written
// together with the dataset on every successful refresh and deleted when
// the cache is cleared.
type CacheMetadata struct {
	Version     string    `json:"cache_version"`
	Fingerprint string    `json:"fingerprint"` // sha256 of the serialized dataset bytes
	UpdatedAt   time.Time `json:"updated_at"`  // Last successful refresh
	SizeBytes   int64     `json:"size_bytes"`
}

// Summary formats the metadata for UI display, e.g.
// "Cached: 2026-08-25 14:02:11 (38.4 KB)".
func (m CacheMetadata) Summary() string {
	return fmt.Sprintf("Cached: %s (%.1f KB)", m.UpdatedAt.Format("2006-01-02 15:04:05"), float64(m.SizeBytes)/1024)
}

// SyncResult reports the outcome of a camera-list sync operation.
type SyncResult struct {
	Cameras   []Camera
	Count     int
	FromCache bool          // True when a valid cache short-circuited the fetch
	Changed   bool          // True when the dataset bytes were rewritten
	Meta      CacheMetadata // Metadata after the operation
}
