package specmodel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasurementEqualEnoughTolerance(t *testing.T) {
	a := NewMeasurement()
	a.DetectorName = "Aa1"
	a.SampleNumber = 1
	a.StartTime = time.Date(2024, time.March, 5, 13, 7, 42, 0, time.UTC)
	a.SetGammaCounts([]float64{100, 200, 300}, 9.5, 10)

	b := NewMeasurement()
	b.DetectorName = "Aa1"
	b.SampleNumber = 1
	b.StartTime = a.StartTime.Add(400 * time.Millisecond)            // within 1-second truncation
	b.SetGammaCounts([]float64{100, 200, 300.000002}, 9.5, 10.00001) // within relative tolerance

	assert.NoError(t, a.EqualEnough(b))
}

func TestMeasurementEqualEnoughDetectsMismatches(t *testing.T) {
	base := NewMeasurement()
	base.DetectorName = "Aa1"
	base.SampleNumber = 1
	base.SetGammaCounts([]float64{100, 200}, 9.5, 10)

	diffDetector := NewMeasurement()
	diffDetector.DetectorName = "Ab1"
	diffDetector.SampleNumber = 1
	diffDetector.SetGammaCounts([]float64{100, 200}, 9.5, 10)
	assert.Error(t, base.EqualEnough(diffDetector))

	diffSample := NewMeasurement()
	diffSample.DetectorName = "Aa1"
	diffSample.SampleNumber = 2
	diffSample.SetGammaCounts([]float64{100, 200}, 9.5, 10)
	assert.Error(t, base.EqualEnough(diffSample))

	diffCounts := NewMeasurement()
	diffCounts.DetectorName = "Aa1"
	diffCounts.SampleNumber = 1
	diffCounts.SetGammaCounts([]float64{100, 250}, 9.5, 10)
	assert.Error(t, base.EqualEnough(diffCounts))

	diffLength := NewMeasurement()
	diffLength.DetectorName = "Aa1"
	diffLength.SampleNumber = 1
	diffLength.SetGammaCounts([]float64{100, 200, 300}, 9.5, 10)
	assert.Error(t, base.EqualEnough(diffLength))
}

func TestMeasurementEqualEnoughComparesNeutronCounts(t *testing.T) {
	a := NewMeasurement()
	a.DetectorName = "Na1"
	a.ContainedNeutron = true
	a.NeutronCounts = []float64{5, 6}
	a.RecomputeNeutronSum()

	b := NewMeasurement()
	b.DetectorName = "Na1"
	b.ContainedNeutron = true
	b.NeutronCounts = []float64{5, 6.00000001}
	b.RecomputeNeutronSum()
	assert.NoError(t, a.EqualEnough(b))

	c := NewMeasurement()
	c.DetectorName = "Na1"
	c.ContainedNeutron = true
	c.NeutronCounts = []float64{5, 9}
	c.RecomputeNeutronSum()
	assert.Error(t, a.EqualEnough(c))
}

func TestMeasurementSetEnergyCalibrationChannelCountMismatch(t *testing.T) {
	m := NewMeasurement()
	m.SetGammaCounts([]float64{1, 2, 3}, 1, 1)

	mismatched, err := NewPolynomial(8, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	m.SetEnergyCalibration(mismatched)
	assert.Nil(t, m.Calibration())
	require.Len(t, m.ParseWarnings, 1)

	matched, err := NewPolynomial(3, []float64{0, 3.0}, nil)
	require.NoError(t, err)
	m.SetEnergyCalibration(matched)
	assert.Same(t, matched, m.Calibration())
}
