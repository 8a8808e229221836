package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matchmove/camdb/internal/domain"
)

func TestConvertReferenceFilmback(t *testing.T) {
	// A 36mm sensor is the reference filmback and must map exactly to
	// the aperture scale constant.
	mode := domain.SensorMode{ModeName: "FF", ResWidth: 4096, ResHeight: 2160, SensorWidth: 36.0}

	params, err := Convert(mode)
	require.NoError(t, err)
	assert.Equal(t, ApertureScale, params.Aperture)
	assert.Equal(t, 4096, params.ResX)
	assert.Equal(t, 2160, params.ResY)
	assert.Nil(t, params.Aspect)
}

func TestConvertScalesLinearly(t *testing.T) {
	mode := domain.SensorMode{ModeName: "S35", SensorWidth: 24.0}

	params, err := Convert(mode)
	require.NoError(t, err)
	assert.InDelta(t, 27.61426667, params.Aperture, 1e-6)
}

func TestConvertCopiesAspect(t *testing.T) {
	aspect := 1.5
	mode := domain.SensorMode{ModeName: "Anamorphic", SensorWidth: 28.25, FormatAspect: &aspect}

	params, err := Convert(mode)
	require.NoError(t, err)
	require.NotNil(t, params.Aspect)
	assert.Equal(t, 1.5, *params.Aspect)

	// The result must not alias the input.
	aspect = 2.0
	assert.Equal(t, 1.5, *params.Aspect)
}

func TestConvertRejectsUnusableWidth(t *testing.T) {
	for _, width := range []float64{0, -1} {
		_, err := Convert(domain.SensorMode{ModeName: "broken", SensorWidth: width})

		var ce *domain.ConversionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "broken", ce.ModeName)
	}
}

func TestConvertIsDeterministic(t *testing.T) {
	mode := domain.SensorMode{ModeName: "OG", ResWidth: 4448, ResHeight: 3096, SensorWidth: 28.25}

	a, err := Convert(mode)
	require.NoError(t, err)
	b, err := Convert(mode)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
