package n42

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func buildTestFile(t *testing.T) *specmodel.SpectrumFile {
	t.Helper()
	f := specmodel.New()
	f.InstrumentManufacturer = "Acme"
	f.InstrumentType = "Widget"

	cal, err := specmodel.NewPolynomial(4, []float64{0, 3.0}, nil)
	require.NoError(t, err)

	m := specmodel.NewMeasurement()
	m.DetectorName = "Gamma1"
	m.SampleNumber = 1
	m.Source = specmodel.SourceForeground
	m.SetGammaCounts([]float64{10, 20, 30, 40}, 0.9, 1.0)
	m.SetEnergyCalibration(cal)
	f.AddMeasurement(m)
	f.Reindex()
	return f
}

func TestWrite2012RoundTripsThroughLoad2012(t *testing.T) {
	f := buildTestFile(t)

	out, err := Write2012(f)
	require.NoError(t, err)
	assert.Contains(t, string(out), "RadInstrumentData")
	assert.Contains(t, string(out), "Gamma1")

	got, ok, err := Load2012(out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got.Measurements, 1)

	m := got.Measurements[0]
	assert.Equal(t, "Gamma1", m.DetectorName)
	assert.Len(t, m.GammaCounts(), 4)
	require.NotNil(t, m.Calibration())
	assert.True(t, m.Calibration().Valid())
}

func TestEncodeCountedZeroes(t *testing.T) {
	s := encodeCountedZeroes([]float64{0, 0, 0, 5, 0, 7})
	assert.Equal(t, "0 3 5 0 1 7", s)
}

func TestSampleIDsPassthroughBackground(t *testing.T) {
	f := specmodel.New()
	bg := specmodel.NewMeasurement()
	bg.SampleNumber = 0
	bg.RealTime = 30
	f.AddMeasurement(bg)
	s1 := specmodel.NewMeasurement()
	s1.SampleNumber = 1
	s1.RealTime = 1
	f.AddMeasurement(s1)
	s2 := specmodel.NewMeasurement()
	s2.SampleNumber = 2
	s2.RealTime = 1
	f.AddMeasurement(s2)
	f.Reindex()
	f.Passthrough = true

	bySample := map[int][]*specmodel.Measurement{0: {bg}, 1: {s1}, 2: {s2}}
	ids := sampleIDs(f, []int{0, 1, 2}, bySample)
	assert.Equal(t, "Background", ids[0])
	assert.Equal(t, "Survey1", ids[1])
	assert.Equal(t, "Survey2", ids[2])
}

func TestSampleIDsNonPassthrough(t *testing.T) {
	f := specmodel.New()
	bySample := map[int][]*specmodel.Measurement{1: {}, 2: {}}
	ids := sampleIDs(f, []int{1, 2}, bySample)
	assert.Equal(t, "Sample1", ids[1])
	assert.Equal(t, "Sample2", ids[2])
}
