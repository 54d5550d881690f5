package minor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

const scanDataDoc = `<?xml version="1.0"?>
<scanData>
<SegmentResults>
<RspId>1</RspId>
<GammaLastBackgroundTime>2024-01-01T00:00:00Z</GammaLastBackgroundTime>
<GammaBackground>10</GammaBackground>
<GammaBackground>11</GammaBackground>
<GammaBackground>12</GammaBackground>
<GammaBackground>13</GammaBackground>
<GammaBackground>14</GammaBackground>
<GammaBackground>15</GammaBackground>
<GammaBackground>16</GammaBackground>
<GammaBackground>17</GammaBackground>
<GammaBackground>18</GammaBackground>
<NeutronBackground1>2</NeutronBackground1>
</SegmentResults>
<SegmentResults>
<RspId>17</RspId>
<GammaBackground>999</GammaBackground>
</SegmentResults>
<PanelDataList>
<item>
<SampleDateTime>2024-01-01T00:01:00Z</SampleDateTime>
<SampleId>1</SampleId>
<GammaData>1</GammaData>
<GammaData>2</GammaData>
<GammaData>3</GammaData>
<GammaData>4</GammaData>
<GammaData>5</GammaData>
<GammaData>6</GammaData>
<GammaData>7</GammaData>
<GammaData>8</GammaData>
<GammaData>9</GammaData>
<NeutronData>1</NeutronData>
</item>
</PanelDataList>
</scanData>`

func TestDetectScanData(t *testing.T) {
	assert.True(t, DetectScanData([]byte(scanDataDoc)))
	assert.False(t, DetectScanData([]byte("plain text")))
}

func TestLoadScanData(t *testing.T) {
	f, ok, err := LoadScanData([]byte(scanDataDoc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)

	var bg, fg *specmodel.Measurement
	for _, m := range f.Measurements {
		if m.Source == specmodel.SourceBackground {
			bg = m
		} else {
			fg = m
		}
	}
	require.NotNil(t, bg)
	require.NotNil(t, fg)

	assert.Equal(t, "Aa1", bg.DetectorName)
	assert.Len(t, bg.GammaCounts(), 9)
	assert.True(t, bg.ContainedNeutron)
	require.NotNil(t, bg.Calibration())

	assert.Equal(t, "Aa1", fg.DetectorName)
	assert.Equal(t, 1, fg.SampleNumber)
	assert.Len(t, fg.GammaCounts(), 9)
	require.NotNil(t, fg.Calibration())
	assert.True(t, fg.Calibration().Equal(bg.Calibration()))
}
