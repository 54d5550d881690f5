package specmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyCalibrationEqual(t *testing.T) {
	a, err := NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	b, err := NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	c, err := NewPolynomial(4, []float64{0, 3.1}, nil)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.True(t, a.Equal(a))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var nilCal *EnergyCalibration
	assert.True(t, nilCal.Equal(nil))
}

func TestEnergyCalibrationEqualDifferentKindsSameEdges(t *testing.T) {
	poly, err := NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	frf, err := poly.ToFullRangeFraction()
	require.NoError(t, err)

	// Same channel energies, different stored representation: Equal compares
	// the cache key (variant + raw coefficients), not derived edges.
	assert.False(t, poly.Equal(frf))
	assert.Equal(t, poly.Channels(), frf.Channels())
}

func TestEnergyCalibrationCacheKeyCollisionFree(t *testing.T) {
	poly, err := NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	sameCoeffs, err := NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	diffChannels, err := NewPolynomial(8, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	diffCoeffs, err := NewPolynomial(4, []float64{0, 3.0000001}, nil)
	require.NoError(t, err)
	withDev, err := NewPolynomial(4, []float64{0, 3.0}, []DeviationPair{{Energy: 100, Offset: 1}})
	require.NoError(t, err)

	assert.Equal(t, poly.CacheKey(), sameCoeffs.CacheKey())
	assert.NotEqual(t, poly.CacheKey(), diffChannels.CacheKey())
	assert.NotEqual(t, poly.CacheKey(), diffCoeffs.CacheKey())
	assert.NotEqual(t, poly.CacheKey(), withDev.CacheKey())
}

func TestEnergyCalibrationCacheKeyStable(t *testing.T) {
	cal, err := NewLowerChannelEdge(3, []float64{0, 10, 20, 30})
	require.NoError(t, err)
	first := cal.CacheKey()
	second := cal.CacheKey()
	assert.Equal(t, first, second)
}
