package minor

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTRACSRecord(t *testing.T, lat, lon float64, channels []float64) []byte {
	t.Helper()
	buf := new(bytes.Buffer)
	require.NoError(t, binary.Write(buf, binary.LittleEndian, lat))
	require.NoError(t, binary.Write(buf, binary.LittleEndian, lon))
	for i := 0; i < 4; i++ {
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint32(2*tracsTimeDivisor)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint32(2*tracsTimeDivisor)))
		require.NoError(t, binary.Write(buf, binary.LittleEndian, uint16(len(channels))))
		for _, c := range channels {
			require.NoError(t, binary.Write(buf, binary.LittleEndian, math.Float32bits(float32(c))))
		}
	}
	rec := buf.Bytes()
	require.LessOrEqual(t, len(rec), tracsRecordSize)
	rec = append(rec, make([]byte, tracsRecordSize-len(rec))...)
	return rec
}

func TestDetectTRACSMPS(t *testing.T) {
	rec := buildTRACSRecord(t, 35.0, -117.0, []float64{1, 2, 3})
	assert.True(t, DetectTRACSMPS(rec))
	assert.False(t, DetectTRACSMPS(rec[:len(rec)-1]))
	assert.False(t, DetectTRACSMPS(nil))
}

func TestLoadTRACSMPS(t *testing.T) {
	rec := buildTRACSRecord(t, 35.0, -117.0, []float64{1, 2, 3})
	f, ok, err := LoadTRACSMPS(rec)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 4)
	for i, name := range tracsPodDetectors {
		m := f.Measurements[i]
		assert.Equal(t, name, m.DetectorName)
		assert.Equal(t, 2.0, m.LiveTime)
		assert.Equal(t, 2.0, m.RealTime)
		require.NotNil(t, m.Location)
		assert.InDelta(t, 35.0, m.Location.GeoLocation.Latitude, 1e-9)
		assert.InDelta(t, -117.0, m.Location.GeoLocation.Longitude, 1e-9)
	}
}

func TestLoadTRACSMPSTwoRecords(t *testing.T) {
	rec := buildTRACSRecord(t, 35.0, -117.0, []float64{1, 2})
	data := append(append([]byte{}, rec...), rec...)
	f, ok, err := LoadTRACSMPS(data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, f.Measurements, 8)
}
