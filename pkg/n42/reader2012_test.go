package n42

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specfile/pkg/specmodel"
)

func TestDetect2012(t *testing.T) {
	assert.True(t, Detect2012([]byte(`<?xml version="1.0"?><RadInstrumentData/>`)))
	assert.False(t, Detect2012([]byte("plain text")))
}

const portalDoc2012 = `<?xml version="1.0"?>
<RadInstrumentData n42DocUUID="11111111-1111-1111-1111-111111111111">
  <RadInstrumentInformation>
    <RadInstrumentManufacturerName>Acme</RadInstrumentManufacturerName>
    <RadInstrumentModel>Widget</RadInstrumentModel>
  </RadInstrumentInformation>
  <EnergyCalibration id="EnergyCal1">
    <CoefficientValues>0 3.0 0</CoefficientValues>
  </EnergyCalibration>
  <RadDetectorInformation id="Gamma1">
    <RadDetectorKindCode>Gamma</RadDetectorKindCode>
  </RadDetectorInformation>
  <RadMeasurement id="Background">
    <MeasurementClassCode>Background</MeasurementClassCode>
    <StartDateTime>2024-01-01T00:00:00Z</StartDateTime>
    <RealTimeDuration>PT30S</RealTimeDuration>
    <Spectrum id="BackgroundSp" radDetectorInformationReference="Gamma1" energyCalibrationReference="EnergyCal1">
      <LiveTimeDuration>PT29S</LiveTimeDuration>
      <ChannelData>1 2 3 4</ChannelData>
    </Spectrum>
  </RadMeasurement>
  <RadMeasurement id="Sample1">
    <MeasurementClassCode>Foreground</MeasurementClassCode>
    <StartDateTime>2024-01-01T00:01:00Z</StartDateTime>
    <RealTimeDuration>PT1S</RealTimeDuration>
    <Spectrum id="Sample1Sp" radDetectorInformationReference="Gamma1" energyCalibrationReference="EnergyCal1">
      <LiveTimeDuration>PT0.9S</LiveTimeDuration>
      <ChannelData>5 6 7 8</ChannelData>
    </Spectrum>
  </RadMeasurement>
</RadInstrumentData>`

func TestLoad2012Portal(t *testing.T) {
	f, ok, err := Load2012([]byte(portalDoc2012))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)

	assert.Equal(t, "11111111-1111-1111-1111-111111111111", f.UUID)
	assert.Equal(t, "Acme", f.InstrumentManufacturer)

	for _, m := range f.Measurements {
		assert.Equal(t, "Gamma1", m.DetectorName)
		require.NotNil(t, m.Calibration())
		assert.True(t, m.Calibration().Valid())
		assert.Equal(t, specmodel.CalibrationPolynomial, m.Calibration().Kind())
	}
}

func TestDecodeEnergyCalibrationLowerBoundary(t *testing.T) {
	doc := `<?xml version="1.0"?>
<RadInstrumentData>
  <EnergyCalibration id="EnergyCal1">
    <EnergyBoundaryValues>0 10 20 30</EnergyBoundaryValues>
  </EnergyCalibration>
  <RadDetectorInformation id="Gamma1"><RadDetectorKindCode>Gamma</RadDetectorKindCode></RadDetectorInformation>
  <RadMeasurement id="Sample1">
    <RealTimeDuration>PT1S</RealTimeDuration>
    <Spectrum id="Sp1" radDetectorInformationReference="Gamma1" energyCalibrationReference="EnergyCal1">
      <LiveTimeDuration>PT1S</LiveTimeDuration>
      <ChannelData>1 2 3</ChannelData>
    </Spectrum>
  </RadMeasurement>
</RadInstrumentData>`
	f, ok, err := Load2012([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)
	cal := f.Measurements[0].Calibration()
	require.NotNil(t, cal)
	assert.Equal(t, specmodel.CalibrationLowerChannelEdge, cal.Kind())
}

func TestDecodeGrossCountsNeutronMinMaxKeptWithoutTotal(t *testing.T) {
	doc := `<?xml version="1.0"?>
<RadInstrumentData>
  <RadDetectorInformation id="Neutron1"><RadDetectorKindCode>Neutron</RadDetectorKindCode></RadDetectorInformation>
  <RadMeasurement id="Sample1">
    <RealTimeDuration>PT1S</RealTimeDuration>
    <GrossCounts radDetectorInformationReference="Neutron1minimumNeutrons"><GrossCounts>3</GrossCounts></GrossCounts>
    <GrossCounts radDetectorInformationReference="Neutron1maximumNeutrons"><GrossCounts>9</GrossCounts></GrossCounts>
  </RadMeasurement>
</RadInstrumentData>`
	f, ok, err := Load2012([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 2)
}

func TestDecodeGrossCountsNeutronMinMaxDroppedWithTotal(t *testing.T) {
	doc := `<?xml version="1.0"?>
<RadInstrumentData>
  <RadDetectorInformation id="Neutron1"><RadDetectorKindCode>Neutron</RadDetectorKindCode></RadDetectorInformation>
  <RadMeasurement id="Sample1">
    <RealTimeDuration>PT1S</RealTimeDuration>
    <GrossCounts radDetectorInformationReference="Neutron1totalNeutrons"><GrossCounts>12</GrossCounts></GrossCounts>
    <GrossCounts radDetectorInformationReference="Neutron1minimumNeutrons"><GrossCounts>3</GrossCounts></GrossCounts>
    <GrossCounts radDetectorInformationReference="Neutron1maximumNeutrons"><GrossCounts>9</GrossCounts></GrossCounts>
  </RadMeasurement>
</RadInstrumentData>`
	f, ok, err := Load2012([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)
	assert.Equal(t, "Neutron1totalNeutrons", f.Measurements[0].DetectorName)
}

func TestParseSampleID(t *testing.T) {
	assert.Equal(t, 0, parseSampleID("Background"))
	assert.Equal(t, 1, parseSampleID("Sample1"))
	assert.Equal(t, 3, parseSampleID("Survey3"))
	assert.Equal(t, 0, parseSampleID("garbage"))
}

func TestFuseGammaNeutronPairs(t *testing.T) {
	f := specmodel.New()
	gamma := specmodel.NewMeasurement()
	gamma.SampleNumber = 1
	gamma.DetectorName = "GammaA"
	gamma.SetGammaCounts([]float64{1, 2, 3}, 1, 1)
	f.AddMeasurement(gamma)

	neutron := specmodel.NewMeasurement()
	neutron.SampleNumber = 1
	neutron.DetectorName = "NeutronA"
	neutron.ContainedNeutron = true
	neutron.NeutronCounts = []float64{7}
	neutron.RecomputeNeutronSum()
	f.AddMeasurement(neutron)

	fuseGammaNeutronPairs(f)
	require.Len(t, f.Measurements, 1)
	assert.True(t, f.Measurements[0].ContainedNeutron)
	assert.Equal(t, []float64{7}, f.Measurements[0].NeutronCounts)
}
