package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const spectrogramDoc = "Spectrogram:\tTime:2024-01-01\tTimestamp:100\tChannels:4\n" +
	"Spectrum:00000000b80b0000\n" +
	"2024-01-01T00:00:00Z\t1.0\t1 2 3 4\n" +
	"2024-01-01T00:00:01Z\t2.0\t2 4 6 8\n"

func TestDetectRadiaCodeSpectrogram(t *testing.T) {
	assert.True(t, DetectRadiaCodeSpectrogram([]byte(spectrogramDoc)))
	assert.False(t, DetectRadiaCodeSpectrogram([]byte("plain text")))
}

func TestLoadRadiaCodeSpectrogram(t *testing.T) {
	f, ok, err := LoadRadiaCodeSpectrogram([]byte(spectrogramDoc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)
	m := f.Measurements[0]
	assert.Equal(t, 1.0, m.RealTime)
	require.NotNil(t, m.Calibration())
	assert.InDelta(t, 3.0, m.ChannelEnergies()[1]-m.ChannelEnergies()[0], 1e-9)
}
