package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

const radiaCodeDoc = `<?xml version="1.0"?>
<ResultDataFile>
<DeviceConfigReference>
<Name>RadiaCode-101</Name>
</DeviceConfigReference>
<EnergySpectrum>
<Duration>60</Duration>
<SpectrumData>1 2 3 4</SpectrumData>
<EnergyCalibration>
<Coefficients>0 3 0</Coefficients>
</EnergyCalibration>
</EnergySpectrum>
<BackgroundEnergySpectrum>
<Duration>120</Duration>
<SpectrumData>2 4 6 8</SpectrumData>
</BackgroundEnergySpectrum>
</ResultDataFile>`

func TestDetectRadiaCodeXML(t *testing.T) {
	assert.True(t, DetectRadiaCodeXML([]byte(radiaCodeDoc)))
	assert.False(t, DetectRadiaCodeXML([]byte("plain text")))
}

func TestLoadRadiaCodeXML(t *testing.T) {
	f, ok, err := LoadRadiaCodeXML([]byte(radiaCodeDoc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)
	assert.Equal(t, "RadiaCode-101", f.InstrumentID)

	var fg, bg *specmodel.Measurement
	for _, m := range f.Measurements {
		if m.Source == specmodel.SourceForeground {
			fg = m
		} else if m.Source == specmodel.SourceBackground {
			bg = m
		}
	}
	require.NotNil(t, fg)
	require.NotNil(t, bg)
	assert.Equal(t, "gamma", fg.DetectorName)
	assert.Equal(t, "gamma", bg.DetectorName)
	require.NotNil(t, fg.Calibration())
	require.NotNil(t, bg.Calibration())
	assert.True(t, bg.Calibration().Equal(fg.Calibration()))
}
