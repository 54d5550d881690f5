package minor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func buildDailyFile(channels string) string {
	var b strings.Builder
	b.WriteString("S1,NaI,SPM,512,1.0\n")
	b.WriteString("S2,Aa1,0,0,100,300\n")
	b.WriteString("GB,Aa1," + channels + "\n")
	b.WriteString("NB,030,5\n")
	b.WriteString("BX,2024-01-01T00:00:00Z\n")
	b.WriteString("GS,Aa1,001," + channels + "\n")
	b.WriteString("NS,010,001,3\n")
	b.WriteString("GS,Aa1,002," + channels + "\n")
	b.WriteString("GX,Green,1,2024-01-01T00:01:00Z,file.n42,5,7\n")
	return b.String()
}

func TestDetectDailyFile(t *testing.T) {
	data := buildDailyFile("1,2,3,4")
	assert.True(t, DetectDailyFile([]byte(data)))
	assert.False(t, DetectDailyFile([]byte("plain text")))
}

func TestLoadDailyFileScenario(t *testing.T) {
	data := buildDailyFile("1,2,3,4")
	f, ok, err := LoadDailyFile([]byte(data))
	require.NoError(t, err)
	require.True(t, ok)

	var bg *specmodel.Measurement
	var fgs []*specmodel.Measurement
	for _, m := range f.Measurements {
		if m.Source == specmodel.SourceBackground {
			bg = m
		} else {
			fgs = append(fgs, m)
		}
	}
	require.NotNil(t, bg)
	require.Len(t, fgs, 2)

	assert.Equal(t, "Aa1", bg.DetectorName)
	require.NotNil(t, bg.Calibration())
	for _, fg := range fgs {
		require.NotNil(t, fg.Calibration())
		assert.True(t, fg.Calibration().Equal(bg.Calibration()))
	}

	withNeutron, withoutNeutron := 0, 0
	for _, fg := range fgs {
		if fg.ContainedNeutron && len(fg.NeutronCounts) > 0 {
			withNeutron++
		} else {
			withoutNeutron++
		}
	}
	assert.Equal(t, 1, withNeutron)
	assert.Equal(t, 1, withoutNeutron)

	for _, fg := range fgs {
		require.NotNil(t, fg.Location)
		assert.InDelta(t, 6.0, float64(fg.Location.Speed), 1e-6)
	}
}
