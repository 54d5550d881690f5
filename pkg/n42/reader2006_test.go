package n42

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetect2006(t *testing.T) {
	assert.True(t, Detect2006([]byte(`<?xml version="1.0"?><N42InstrumentData><Measurement/></N42InstrumentData>`)))
	assert.False(t, Detect2006([]byte("not xml at all")))
}

func TestLoad2006SpectrometerStyle(t *testing.T) {
	doc := `<?xml version="1.0"?>
<N42InstrumentData xmlns="foo">
  <InstrumentInformation>
    <InstrumentType>Spectrometer</InstrumentType>
    <Manufacturer>Acme</Manufacturer>
    <InstrumentModel>Widget</InstrumentModel>
  </InstrumentInformation>
  <Measurement>
    <Calibration>
      <Equation Model="Polynomial">
        <Coefficients>0 3.0</Coefficients>
      </Equation>
    </Calibration>
    <Spectrum DetectorName="Gamma">
      <StartTime>2024-01-02T03:04:05Z</StartTime>
      <LiveTime>PT9.5S</LiveTime>
      <RealTime>PT10S</RealTime>
      <SourceType>Foreground</SourceType>
      <ChannelData>1 2 3 4 5 6 7 8</ChannelData>
    </Spectrum>
  </Measurement>
</N42InstrumentData>`

	f, ok, err := Load2006([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)

	m := f.Measurements[0]
	assert.Equal(t, "Gamma", m.DetectorName)
	assert.InDelta(t, 9.5, m.LiveTime, 1e-6)
	assert.InDelta(t, 10, m.RealTime, 1e-6)
	assert.Len(t, m.GammaCounts(), 8)
	require.NotNil(t, m.Calibration())
	assert.True(t, m.Calibration().Valid())
	assert.Equal(t, "Acme", f.InstrumentManufacturer)
}

func TestLoad2006PortalStyleGammaNeutronPairing(t *testing.T) {
	doc := `<?xml version="1.0"?>
<N42InstrumentData>
  <Measurement>
    <DetectorData>
      <StartTime>2024-01-02T00:00:00Z</StartTime>
      <DetectorMeasurement DetectorName="GammaA">
        <SpectrumMeasurement>
          <Spectrum DetectorName="GammaA">
            <RealTime>PT1S</RealTime>
            <LiveTime>PT1S</LiveTime>
            <ChannelData>1 2 3 4</ChannelData>
          </Spectrum>
        </SpectrumMeasurement>
      </DetectorMeasurement>
      <DetectorMeasurement DetectorName="NeutronA">
        <GrossCountMeasurement>
          <GrossCounts>42</GrossCounts>
        </GrossCountMeasurement>
      </DetectorMeasurement>
    </DetectorData>
  </Measurement>
</N42InstrumentData>`

	f, ok, err := Load2006([]byte(doc))
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Measurements, 1)
	m := f.Measurements[0]
	assert.Equal(t, "GammaA", m.DetectorName)
	assert.True(t, m.ContainedNeutron)
	assert.Equal(t, []float64{42}, m.NeutronCounts)
}

func TestLoad2006NoMeasurementsIsError(t *testing.T) {
	doc := `<?xml version="1.0"?><N42InstrumentData><InstrumentInformation/></N42InstrumentData>`
	_, ok, err := Load2006([]byte(doc))
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestNamesPairGammaNeutron(t *testing.T) {
	assert.True(t, namesPairGammaNeutron("Gamma1", "Gamma1"))
	assert.True(t, namesPairGammaNeutron("Gamma1", "Gamma1N"))
	assert.True(t, namesPairGammaNeutron("GammaDetA", "NeutronDetA"))
	assert.False(t, namesPairGammaNeutron("GammaDetA", "UnrelatedB"))
}
