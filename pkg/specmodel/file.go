package specmodel

import "sort"

// Properties is a bitset recording whether sample/detector numbering is
// dense, time-ordered, and uniquely keyed, per spec.md §3's SpectrumFile
// attributes.
type Properties struct {
	DenseSampleNumbers bool
	TimeOrdered        bool
	UniquelyKeyed      bool
}

// SpectrumFile is the ordered collection of Measurements plus file-level
// metadata: the central aggregate every reader populates and every writer
// consumes. Call Reindex (or let pkg/reconcile.Reconcile do it) after
// mutating Measurements to refresh the derived indices.
type SpectrumFile struct {
	Measurements []*Measurement

	FileName string
	UUID     string

	InstrumentType         string
	InstrumentModel        string
	InstrumentManufacturer string
	InstrumentID           string
	DetectorTypeHint       DetectorType

	ComponentVersions map[string]string

	LaneNumber          int
	InspectionKind      string
	MeasurementLocation string
	OperatorName        string

	Remarks       []string
	ParseWarnings []string

	Analysis *Analysis

	Properties Properties

	// Passthrough is true iff more than one sample number exists and at
	// least half of the samples have real_time < 5s (spec.md §4.10 step 4).
	// Per DESIGN NOTES, this is a post-reconciliation invariant of the
	// aggregate rather than a cached computation recomputed ad hoc by
	// writers; pkg/reconcile sets it once and callers may rely on it
	// being current for any SpectrumFile that has been reconciled.
	Passthrough bool

	AnyNeutron bool
	AllNeutron bool

	// derived indices, refreshed by Reindex
	sampleNumbers   map[int]struct{}
	detectorNames   []string
	neutronDetectors []string
	bySampleDetector map[Key]*Measurement
}

// New returns an empty SpectrumFile.
func New() *SpectrumFile {
	return &SpectrumFile{ComponentVersions: make(map[string]string)}
}

// AddMeasurement appends a measurement in file order. Readers must use this
// (or otherwise preserve first-occurrence order) rather than reordering
// later, per spec.md §5's ordering guarantee.
func (f *SpectrumFile) AddMeasurement(m *Measurement) {
	f.Measurements = append(f.Measurements, m)
}

// SampleNumbers returns the set of distinct sample numbers present.
func (f *SpectrumFile) SampleNumbers() map[int]struct{} {
	if f.sampleNumbers == nil {
		f.Reindex()
	}
	return f.sampleNumbers
}

// DetectorNames returns detector names in stable first-occurrence order.
func (f *SpectrumFile) DetectorNames() []string {
	if f.detectorNames == nil {
		f.Reindex()
	}
	return f.detectorNames
}

// NeutronDetectorNames returns, in first-occurrence order, the names of
// detectors that report neutron counts on at least one measurement.
func (f *SpectrumFile) NeutronDetectorNames() []string {
	if f.neutronDetectors == nil {
		f.Reindex()
	}
	return f.neutronDetectors
}

// Measurement looks up the unique measurement for (sample, detector).
func (f *SpectrumFile) Measurement(sample int, detector string) (*Measurement, bool) {
	if f.bySampleDetector == nil {
		f.Reindex()
	}
	m, ok := f.bySampleDetector[Key{Sample: sample, Detector: detector}]
	return m, ok
}

// SummedMeasurements returns, for every sample number, a synthetic
// measurement whose gamma counts are the channel-wise sum of every
// measurement at that sample (spec.md §4.3's "summed measurements" index).
// Measurements with mismatched channel counts are skipped from the sum.
func (f *SpectrumFile) SummedMeasurements() map[int]*Measurement {
	out := make(map[int]*Measurement)
	bySample := make(map[int][]*Measurement)
	for _, m := range f.Measurements {
		bySample[m.SampleNumber] = append(bySample[m.SampleNumber], m)
	}
	for sample, ms := range bySample {
		var sum []float64
		realTime, liveTime := 0.0, 0.0
		for _, m := range ms {
			if len(m.gammaCounts) == 0 {
				continue
			}
			if sum == nil {
				sum = make([]float64, len(m.gammaCounts))
			}
			if len(sum) != len(m.gammaCounts) {
				continue
			}
			for i, c := range m.gammaCounts {
				sum[i] += c
			}
			realTime += m.RealTime
			liveTime += m.LiveTime
		}
		if sum == nil {
			continue
		}
		summed := NewMeasurement()
		summed.SampleNumber = sample
		summed.SetGammaCounts(sum, liveTime, realTime)
		out[sample] = summed
	}
	return out
}

// Reindex recomputes all derived indices from Measurements. Callers that
// mutate Measurements directly (outside of pkg/reconcile) must call this
// before relying on any derived accessor.
func (f *SpectrumFile) Reindex() {
	f.sampleNumbers = make(map[int]struct{})
	f.bySampleDetector = make(map[Key]*Measurement)

	seenDetector := make(map[string]bool)
	f.detectorNames = f.detectorNames[:0]
	seenNeutron := make(map[string]bool)
	f.neutronDetectors = f.neutronDetectors[:0]

	anyNeutron, allNeutron := false, true
	anyForeground := false

	for _, m := range f.Measurements {
		f.sampleNumbers[m.SampleNumber] = struct{}{}
		f.bySampleDetector[m.Key()] = m

		if !seenDetector[m.DetectorName] {
			seenDetector[m.DetectorName] = true
			f.detectorNames = append(f.detectorNames, m.DetectorName)
		}
		if m.ContainedNeutron {
			anyNeutron = true
			if !seenNeutron[m.DetectorName] {
				seenNeutron[m.DetectorName] = true
				f.neutronDetectors = append(f.neutronDetectors, m.DetectorName)
			}
		}
		if m.Source == SourceForeground || m.Source == SourceUnknown {
			anyForeground = true
			if !m.ContainedNeutron {
				allNeutron = false
			}
		}
	}
	if !anyForeground {
		allNeutron = false
	}

	f.AnyNeutron = anyNeutron
	f.AllNeutron = allNeutron && anyNeutron
}

// SortedSampleNumbers returns SampleNumbers() as a sorted slice.
func (f *SpectrumFile) SortedSampleNumbers() []int {
	set := f.SampleNumbers()
	out := make([]int, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Ints(out)
	return out
}
