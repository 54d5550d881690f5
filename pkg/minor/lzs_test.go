package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const lzsDoc = `<nanoMCA>
<RealTime>100</RealTime>
<LiveTime>95</LiveTime>
<Channels>1 2 3 4 5</Channels>
<Calibration>
<ChannelA>0</ChannelA>
<EnergyA>0</EnergyA>
<ChannelB>100</ChannelB>
<EnergyB>300</EnergyB>
</Calibration>
</nanoMCA>`

func TestDetectLZS(t *testing.T) {
	assert.True(t, DetectLZS([]byte(lzsDoc)))
	assert.True(t, DetectLZS([]byte("<spectrum><Data>1 2</Data></spectrum>")))
	assert.False(t, DetectLZS([]byte("plain text")))
}

func TestLoadLZS(t *testing.T) {
	f, ok, err := LoadLZS([]byte(lzsDoc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)
	m := f.Measurements[0]
	assert.Equal(t, 95.0, m.LiveTime)
	assert.Equal(t, 100.0, m.RealTime)
	require.NotNil(t, m.Calibration())
	assert.InDelta(t, 3.0, m.ChannelEnergies()[1]-m.ChannelEnergies()[0], 1e-9)
}

func TestLoadLZSRejectsBadCalibration(t *testing.T) {
	doc := `<nanoMCA>
<RealTime>10</RealTime>
<LiveTime>10</LiveTime>
<Channels>1 2 3</Channels>
<Calibration>
<ChannelA>0</ChannelA>
<EnergyA>0</EnergyA>
<ChannelB>100</ChannelB>
<EnergyB>-400</EnergyB>
</Calibration>
</nanoMCA>`
	f, ok, err := LoadLZS([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	m := f.Measurements[0]
	assert.Nil(t, m.Calibration())
}
