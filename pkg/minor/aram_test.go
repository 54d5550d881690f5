package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

const aramDoc = `ARAM Portable Detector
Site: Checkpoint 4
Lat: 35 12 30.0 N
Lon: 119 45 0.0 W
<event>
<Coefficients>0 3.0</Coefficients>
<Foreground>
<Spectrum>
<RealTime>30</RealTime>
<LiveTime>29</LiveTime>
<ChannelData>1 2 3 4</ChannelData>
</Spectrum>
</Foreground>
<Background>
<Spectrum>
<RealTime>60</RealTime>
<LiveTime>59</LiveTime>
<ChannelData>2 4 6 8</ChannelData>
</Spectrum>
</Background>
<NeutronGrossCounts>5 6</NeutronGrossCounts>
</event>
`

func TestDetectARAM(t *testing.T) {
	assert.True(t, DetectARAM([]byte(aramDoc)))
	assert.False(t, DetectARAM([]byte("plain text")))
}

func TestLoadARAM(t *testing.T) {
	f, ok, err := LoadARAM([]byte(aramDoc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)

	var fg *specmodel.Measurement
	for _, m := range f.Measurements {
		if m.SampleNumber == 1 {
			fg = m
		}
	}
	require.NotNil(t, fg)
	assert.Equal(t, "Checkpoint 4", f.MeasurementLocation)
	assert.True(t, fg.ContainedNeutron)
	assert.NotNil(t, fg.Location)
	assert.InDelta(t, 35.2083, fg.Location.GeoLocation.Latitude, 1e-3)
	assert.InDelta(t, -119.75, fg.Location.GeoLocation.Longitude, 1e-3)
	require.NotNil(t, fg.Calibration())
	assert.InDelta(t, 3.0, fg.ChannelEnergies()[1]-fg.ChannelEnergies()[0], 1e-9)
}
