package loader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/pcf"
)

func TestLoadDispatchesToMinorReader(t *testing.T) {
	doc := `<nanoMCA>
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

	res, err := Load([]byte(doc))
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "lzs", res.Format)
	require.Len(t, res.File.Measurements, 1)
	assert.Equal(t, 95.0, res.File.Measurements[0].LiveTime)
}

func TestLoadDispatchesToPCF(t *testing.T) {
	hdr := &pcf.Header{NRPS: 5} // 64*(5-1) = 256 channels
	data := append([]byte(nil), pcf.EncodeHeader(hdr)...)

	channels := make([]float64, 256)
	for i := range channels {
		channels[i] = float64(i % 7)
	}
	rec := &pcf.Record{
		Title:     "Foreground Aa1 Distance=250 cm",
		Timestamp: time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC),
		TagByte:   ' ',
		LiveTime:  10,
		RealTime:  10.5,
		CalTerms:  [5]float64{0, 3000, 0, 0, 0},
		Channels:  channels,
	}
	buf, err := pcf.EncodeRecord(rec, 256*5)
	require.NoError(t, err)
	data = append(data, buf...)

	res, err := Load(data)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "pcf", res.Format)
	require.Len(t, res.File.Measurements, 1)
	assert.Equal(t, "Aa1", res.File.Measurements[0].DetectorName)
}

func TestLoadNoReaderRecognizesInput(t *testing.T) {
	res, err := Load([]byte("this is not any recognized spectrum format"))
	assert.Error(t, err)
	assert.Nil(t, res)
}

func TestLoadFileMissing(t *testing.T) {
	res, err := LoadFile("/nonexistent/path/to/a/file.n42")
	assert.Error(t, err)
	assert.Nil(t, res)
}
