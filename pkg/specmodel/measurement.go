package specmodel

import (
	"fmt"
	"math"
	"time"
)

// OccupancyStatus is the portal-monitor occupancy state of a measurement.
type OccupancyStatus int

const (
	OccupancyUnknown OccupancyStatus = iota
	OccupancyOccupied
	OccupancyNotOccupied
)

// SourceType classifies why a measurement was acquired.
type SourceType int

const (
	SourceUnknown SourceType = iota
	SourceForeground
	SourceBackground
	SourceCalibration
	SourceIntrinsicActivity
)

// QualityStatus flags reader- or instrument-reported measurement quality.
type QualityStatus int

const (
	QualityMissing QualityStatus = iota
	QualityGood
	QualitySuspect
	QualityBad
)

// Measurement is one gamma spectrum and/or neutron reading from one
// detector over one time interval. Created by a reader; mutated only by
// that reader and by the reconciliation pass (pkg/reconcile). After
// reconciliation it is effectively read-only.
type Measurement struct {
	DetectorName   string // empty means "the only detector"
	DetectorNumber int    // assigned during reconciliation

	SampleNumber int // 1-based for foreground; 0 reserved for long pre-scan background

	RealTime  float64 // seconds
	LiveTime  float64 // seconds
	StartTime time.Time

	Occupancy OccupancyStatus
	Source    SourceType
	Quality   QualityStatus
	Title     string

	calibration *EnergyCalibration
	gammaCounts []float64

	GammaCountSum float64 // derived: recomputed at end of reconciliation

	ContainedNeutron  bool
	NeutronCounts     []float64 // per-tube or singleton
	NeutronCountSum   float64   // derived
	NeutronRealTime   float64   // open question #3: carried separately rather than folded into a remark

	DoseRate float64 // µSv/h; NaN if unset
	HasDoseRate bool

	Location *LocationState

	// OccupancyTag is the raw PCF byte-203 tag character, preserved verbatim
	// per open question #1: it is overloaded between occupancy status and a
	// calibration/nuclide hint, and the original format cannot disambiguate.
	OccupancyTag string

	Remarks      []string
	ParseWarnings []string
}

// NewMeasurement returns a zero-value Measurement with SampleNumber unset (0)
// and no calibration.
func NewMeasurement() *Measurement {
	return &Measurement{DoseRate: math.NaN()}
}

// Calibration returns the measurement's shared energy calibration, or nil
// for neutron-only records.
func (m *Measurement) Calibration() *EnergyCalibration { return m.calibration }

// GammaCounts returns the measurement's channel-count array. Callers must
// not mutate the returned slice.
func (m *Measurement) GammaCounts() []float64 { return m.gammaCounts }

// SetGammaCounts replaces the channel array and the two time fields. It does
// not touch the calibration, per the §4.2 contract.
func (m *Measurement) SetGammaCounts(counts []float64, liveTime, realTime float64) {
	cc := make([]float64, len(counts))
	copy(cc, counts)
	m.gammaCounts = cc
	m.LiveTime = liveTime
	m.RealTime = realTime
	m.recomputeGammaSum()
}

func (m *Measurement) recomputeGammaSum() {
	sum := 0.0
	for _, c := range m.gammaCounts {
		sum += c
	}
	m.GammaCountSum = sum
}

// SetEnergyCalibration requires cal's channel count to match the gamma-counts
// length (or length+1 for LowerChannelEdge); otherwise a parse warning is
// appended and the previous calibration is retained.
func (m *Measurement) SetEnergyCalibration(cal *EnergyCalibration) {
	if cal == nil {
		m.calibration = nil
		return
	}
	n := len(m.gammaCounts)
	ok := cal.NumChannels() == n
	if cal.Kind() == CalibrationLowerChannelEdge {
		ok = ok || cal.NumChannels() == n-1
	}
	if n == 0 {
		// Neutron-only measurement arriving after the fact: accept any
		// calibration, there is nothing to mismatch against yet.
		ok = true
	}
	if !ok {
		m.ParseWarnings = append(m.ParseWarnings, fmt.Sprintf(
			"energy calibration channel count (%d) does not match gamma counts length (%d); retaining previous calibration",
			cal.NumChannels(), n))
		return
	}
	m.calibration = cal
}

// ForceEnergyCalibration replaces the calibration without the channel-count
// check; used by reconciliation when synthesizing or interning calibrations
// it has already validated.
func (m *Measurement) ForceEnergyCalibration(cal *EnergyCalibration) {
	m.calibration = cal
}

// ChannelEnergies returns a read-only view of the measurement's channel
// energies by delegating to its shared calibration. Returns nil if there is
// no valid calibration.
func (m *Measurement) ChannelEnergies() []float64 {
	if m.calibration == nil || !m.calibration.Valid() {
		return nil
	}
	return m.calibration.Channels()
}

// RecomputeNeutronSum recomputes NeutronCountSum from NeutronCounts and
// clears it (along with the counts) if ContainedNeutron is false, per the
// §3 invariant "if contained_neutron is false, neutron counts are empty and
// neutron sum is zero".
func (m *Measurement) RecomputeNeutronSum() {
	if !m.ContainedNeutron {
		m.NeutronCounts = nil
		m.NeutronCountSum = 0
		return
	}
	sum := 0.0
	for _, c := range m.NeutronCounts {
		sum += c
	}
	m.NeutronCountSum = sum
}

// Key returns the (sample, detector) uniqueness key spec.md §3/§8 requires
// to be unique within a file.
type Key struct {
	Sample   int
	Detector string
}

// Key returns this measurement's (sample, detector) key.
func (m *Measurement) Key() Key {
	return Key{Sample: m.SampleNumber, Detector: m.DetectorName}
}

// EqualEnough implements the "equal enough" comparator from §4.2: floats
// compared with 1e-5 relative or 1e-4 absolute tolerance, deviation pairs
// sorted before comparison (already guaranteed by EnergyCalibration), time
// strings compared to second precision.
func (m *Measurement) EqualEnough(o *Measurement) error {
	if m.DetectorName != o.DetectorName {
		return fmt.Errorf("detector name mismatch: %q vs %q", m.DetectorName, o.DetectorName)
	}
	if m.SampleNumber != o.SampleNumber {
		return fmt.Errorf("sample number mismatch: %d vs %d", m.SampleNumber, o.SampleNumber)
	}
	if !floatEqualEnough(m.RealTime, o.RealTime) {
		return fmt.Errorf("real time mismatch: %v vs %v", m.RealTime, o.RealTime)
	}
	if !floatEqualEnough(m.LiveTime, o.LiveTime) {
		return fmt.Errorf("live time mismatch: %v vs %v", m.LiveTime, o.LiveTime)
	}
	if !m.StartTime.IsZero() || !o.StartTime.IsZero() {
		if m.StartTime.Truncate(time.Second) != o.StartTime.Truncate(time.Second) {
			return fmt.Errorf("start time mismatch: %v vs %v", m.StartTime, o.StartTime)
		}
	}
	if len(m.gammaCounts) != len(o.gammaCounts) {
		return fmt.Errorf("gamma counts length mismatch: %d vs %d", len(m.gammaCounts), len(o.gammaCounts))
	}
	for i := range m.gammaCounts {
		if !floatEqualEnough(m.gammaCounts[i], o.gammaCounts[i]) {
			return fmt.Errorf("gamma count[%d] mismatch: %v vs %v", i, m.gammaCounts[i], o.gammaCounts[i])
		}
	}
	if len(m.NeutronCounts) != len(o.NeutronCounts) {
		return fmt.Errorf("neutron counts length mismatch: %d vs %d", len(m.NeutronCounts), len(o.NeutronCounts))
	}
	for i := range m.NeutronCounts {
		if !floatEqualEnough(m.NeutronCounts[i], o.NeutronCounts[i]) {
			return fmt.Errorf("neutron count[%d] mismatch: %v vs %v", i, m.NeutronCounts[i], o.NeutronCounts[i])
		}
	}
	return nil
}

func floatEqualEnough(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	if diff <= 1e-4 {
		return true
	}
	largest := math.Max(math.Abs(a), math.Abs(b))
	return diff <= largest*1e-5
}
