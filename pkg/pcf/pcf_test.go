package pcf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func TestNameToCellRoundTrip(t *testing.T) {
	col, panel, mca, ok := NameToCell("Aa1")
	require.True(t, ok)
	assert.Equal(t, 0, col)
	assert.Equal(t, 0, panel)
	assert.Equal(t, 0, mca)
	assert.Equal(t, "Aa1", CellToName(col, panel, mca))

	col, panel, mca, ok = NameToCell("d8")
	require.True(t, ok)
	assert.Equal(t, 0, col) // two-char name assumes column 'a'
	assert.Equal(t, 3, panel)
	assert.Equal(t, 7, mca)

	_, _, _, ok = NameToCell("toolong1")
	assert.False(t, ok)
}

func TestVAXTimeRoundTrip(t *testing.T) {
	tm := time.Date(2024, time.March, 5, 13, 7, 42, 500000000, time.UTC)
	s := FormatVAXTime(tm)
	assert.Len(t, s, 23)
	parsed, err := ParseVAXTime(s)
	require.NoError(t, err)
	assert.Equal(t, tm.Unix(), parsed.Unix())
}

func TestRecordRoundTrip(t *testing.T) {
	rec := &Record{
		Title:     "Foreground Aa1 Distance=250 cm",
		Timestamp: time.Date(2020, time.January, 2, 3, 4, 5, 0, time.UTC),
		TagByte:   '-',
		LiveTime:  9.5,
		RealTime:  10,
		CalTerms:  [5]float64{0, 3.0, 0, 0, 0},
		Channels:  []float64{1, 2, 3, 4},
	}
	buf, err := EncodeRecord(rec, 512)
	require.NoError(t, err)
	assert.Len(t, buf, 512)

	got, err := DecodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, "Foreground Aa1 Distance=250 cm", got.Title)
	assert.Equal(t, byte('-'), got.TagByte)
	assert.InDelta(t, 9.5, got.LiveTime, 1e-4)
	assert.InDelta(t, 10, got.RealTime, 1e-4)
	assert.Equal(t, []float64{1, 2, 3, 4}, got.Channels)
}

func TestDeviationPairTableRoundTrip(t *testing.T) {
	pairs := []specmodel.DeviationPair{{Energy: 100, Offset: 1.5}, {Energy: 500, Offset: -2}}
	table := EncodeDeviationPairTable(nil, "Aa1", pairs, false)
	got := DecodeDeviationPairTable(table, "Aa1", false)
	require.Len(t, got, 2)
	assert.InDelta(t, 100, got[0].Energy, 1e-3)
	assert.InDelta(t, 1.5, got[0].Offset, 1e-3)
}

func TestDeviationPairTableSizeIsFixed(t *testing.T) {
	pairs := []specmodel.DeviationPair{{Energy: 100, Offset: 1.5}}
	uncompressed := EncodeDeviationPairTable(nil, "Aa1", pairs, false)
	assert.Len(t, uncompressed, 20480)
	compressed := EncodeDeviationPairTable(nil, "Aa1", pairs, true)
	assert.Len(t, compressed, 20480)
}

func TestLoadSimplePCF(t *testing.T) {
	hdr := &Header{NRPS: 5} // 64*(5-1) = 256 channels
	data := append([]byte(nil), EncodeHeader(hdr)...)

	channels := make([]float64, 256)
	for i := range channels {
		channels[i] = float64(i % 7)
	}
	rec := &Record{
		Title:     "Foreground Aa1 Distance=250 cm",
		Timestamp: time.Date(2021, time.June, 1, 0, 0, 0, 0, time.UTC),
		TagByte:   ' ',
		LiveTime:  10,
		RealTime:  10.5,
		CalTerms:  [5]float64{0, 3000, 0, 0, 0},
		Channels:  channels,
	}
	buf, err := EncodeRecord(rec, 256*5)
	require.NoError(t, err)
	data = append(data, buf...)

	f, ok, err := Load(data)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)

	m := f.Measurements[0]
	assert.Equal(t, "Aa1", m.DetectorName)
	require.NotNil(t, m.Location)
	require.NotNil(t, m.Location.RelativeLocation)
	assert.Equal(t, "250 cm", m.Location.RelativeLocation.OriginDescription)
	assert.Equal(t, specmodel.OccupancyOccupied, m.Occupancy)
	assert.Len(t, m.GammaCounts(), 256)
}

func TestLoadTruncatedReturnsNotOK(t *testing.T) {
	hdr := &Header{NRPS: 5}
	data := append([]byte(nil), EncodeHeader(hdr)...)
	data = append(data, make([]byte, 100)...) // not a multiple of record size

	_, ok, err := Load(data)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestEnergyPseudoRecord(t *testing.T) {
	hdr := &Header{NRPS: 5}
	data := append([]byte(nil), EncodeHeader(hdr)...)

	edges := make([]float64, 257)
	for i := range edges {
		edges[i] = float64(i) * 10
	}
	energyRec := &Record{Title: "Energy", Channels: edges}
	buf, err := EncodeRecord(energyRec, 256*5)
	require.NoError(t, err)
	data = append(data, buf...)

	channels := make([]float64, 256)
	spectrumRec := &Record{
		Title:    "Foreground Aa1",
		RealTime: 1, LiveTime: 1,
		Channels: channels,
	}
	buf2, err := EncodeRecord(spectrumRec, 256*5)
	require.NoError(t, err)
	data = append(data, buf2...)

	f, ok, err := Load(data)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)
	cal := f.Measurements[0].Calibration()
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationLowerChannelEdge, cal.Kind())
}

func TestWriteThenLoadRoundTrip(t *testing.T) {
	f := specmodel.New()
	m := specmodel.NewMeasurement()
	m.DetectorName = "Aa1"
	m.Source = specmodel.SourceForeground
	m.SetGammaCounts([]float64{1, 2, 3, 4}, 9, 10)
	cal, err := specmodel.NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	m.SetEnergyCalibration(cal)
	f.AddMeasurement(m)
	f.Reindex()

	data, err := Write(f)
	require.NoError(t, err)

	got, ok, err := Load(data)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Measurements, 1)
	assert.Equal(t, "Aa1", got.Measurements[0].DetectorName)
	assert.Len(t, got.Measurements[0].GammaCounts(), 64) // rounded up to next multiple of 64
}
