// Package convert translates a sensor mode into host-application camera
// parameters. Conversion is pure and deterministic: the same mode always
// yields bit-identical output, so callers may re-run it freely for
// previews.
package convert

import "github.com/matchmove/camdb/internal/domain"

const (
	// ReferenceFilmbackMm is the 35mm full-frame reference width the
	// host aperture unit is defined against.
	ReferenceFilmbackMm = 36.0

	// ApertureScale is the host aperture value corresponding to the
	// reference filmback width.
	ApertureScale = 41.4214
)

// Convert maps a sensor mode to host camera parameters. A mode without
// a positive physical sensor width cannot be converted.
func Convert(mode domain.SensorMode) (domain.CameraParams, error) {
	if mode.SensorWidth <= 0 {
		return domain.CameraParams{}, &domain.ConversionError{
			ModeName: mode.ModeName,
			Reason:   "sensor width is missing or non-positive",
		}
	}

	params := domain.CameraParams{
		Aperture: (mode.SensorWidth / ReferenceFilmbackMm) * ApertureScale,
		ResX:     mode.ResWidth,
		ResY:     mode.ResHeight,
	}
	if mode.FormatAspect != nil {
		aspect := *mode.FormatAspect
		params.Aspect = &aspect
	}
	return params, nil
}
