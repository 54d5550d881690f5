package n42

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"specfile/pkg/specmodel"
)

// Write2012 serializes f into a conformant N42-2012 document per spec.md
// §4.6/§6. There is no symmetrical teacher writer to generalize from (the
// teacher only reads N42); the shape below is inferred from what Load2012
// accepts, the usual trick when only one direction of a format is supplied.
func Write2012(f *specmodel.SpectrumFile) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")

	docUUID := f.UUID
	if docUUID == "" {
		docUUID = uuid.New().String()
	}
	fmt.Fprintf(&buf, `<RadInstrumentData n42DocUUID=%s n42DocDateTime=%s xmlns="http://physics.nist.gov/N42/2012/N42">`+"\n",
		xmlAttr(docUUID), xmlAttr(formatISO8601Time(time.Now().UTC())))

	for _, r := range f.Remarks {
		fmt.Fprintf(&buf, "  <Remark>%s</Remark>\n", xmlText(r))
	}

	calIDs, calOrder := assignCalibrationIDs(f)
	for _, id := range calOrder {
		writeEnergyCalibration(&buf, id, calIDs[id])
	}

	writeInstrumentInformation(&buf, f)

	detNames := f.DetectorNames()
	for _, name := range detNames {
		writeDetectorInformation(&buf, name, detectorKind(f, name))
	}

	groups := groupIntoRadMeasurements(f)
	for _, g := range groups {
		writeRadMeasurement(&buf, g, calIDs, calOrder)
	}

	if f.Analysis != nil && len(f.Analysis.Results) > 0 {
		writeAnalysisResults(&buf, f.Analysis)
	}

	buf.WriteString("</RadInstrumentData>\n")
	return buf.Bytes(), nil
}

func xmlAttr(s string) string {
	var b bytes.Buffer
	b.WriteByte('"')
	xml.EscapeText(&b, []byte(s))
	b.WriteByte('"')
	return b.String()
}

func xmlText(s string) string {
	var b bytes.Buffer
	xml.EscapeText(&b, []byte(s))
	return b.String()
}

// calBucket is one distinct channel-bins identity: every measurement whose
// calibration hashes the same (per EnergyCalibration.CacheKey) shares one
// <EnergyCalibration> element, per spec.md §4.6's dedup-by-identity rule.
type calBucket struct {
	cal *specmodel.EnergyCalibration
}

// assignCalibrationIDs groups the file's distinct calibrations by
// EnergyCalibration.Equal and assigns each a stable "EnergyCal{n}" id, in
// first-occurrence order.
func assignCalibrationIDs(f *specmodel.SpectrumFile) (map[string]calBucket, []string) {
	ids := make(map[string]calBucket)
	var order []string
	seen := make(map[[32]byte]string)
	n := 0
	for _, m := range f.Measurements {
		cal := m.Calibration()
		if cal == nil || !cal.Valid() {
			continue
		}
		key := cal.CacheKey()
		if _, ok := seen[key]; ok {
			continue
		}
		n++
		id := fmt.Sprintf("EnergyCal%d", n)
		seen[key] = id
		ids[id] = calBucket{cal: cal}
		order = append(order, id)
	}
	return ids, order
}

func calIDFor(ids map[string]calBucket, order []string, cal *specmodel.EnergyCalibration) string {
	if cal == nil || !cal.Valid() {
		return ""
	}
	key := cal.CacheKey()
	for _, id := range order {
		if bucket := ids[id]; bucket.cal != nil {
			bkey := bucket.cal.CacheKey()
			if bkey == key {
				return id
			}
		}
	}
	return ""
}

func writeEnergyCalibration(buf *bytes.Buffer, id string, bucket calBucket) {
	cal := bucket.cal
	fmt.Fprintf(buf, "  <EnergyCalibration id=%s>\n", xmlAttr(id))
	switch cal.Kind() {
	case specmodel.CalibrationLowerChannelEdge:
		fmt.Fprintf(buf, "    <EnergyBoundaryValues>%s</EnergyBoundaryValues>\n", formatFloatList(cal.Coefficients()))
	default:
		coeffs := cal.Coefficients()
		if len(coeffs) < 3 {
			padded := make([]float64, 3)
			copy(padded, coeffs)
			coeffs = padded
		}
		fmt.Fprintf(buf, "    <CoefficientValues>%s</CoefficientValues>\n", formatFloatList(coeffs))
	}
	if dev := cal.DeviationPairs(); len(dev) > 0 {
		energies := make([]float64, len(dev))
		offsets := make([]float64, len(dev))
		for i, p := range dev {
			energies[i] = p.Energy
			offsets[i] = p.Offset
		}
		fmt.Fprintf(buf, "    <EnergyValues>%s</EnergyValues>\n", formatFloatList(energies))
		fmt.Fprintf(buf, "    <EnergyDeviationValues>%s</EnergyDeviationValues>\n", formatFloatList(offsets))
	}
	buf.WriteString("  </EnergyCalibration>\n")
}

func formatFloatList(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%.8G", v)
	}
	return strings.Join(parts, " ")
}

func writeInstrumentInformation(buf *bytes.Buffer, f *specmodel.SpectrumFile) {
	buf.WriteString("  <RadInstrumentInformation>\n")
	if f.InstrumentType != "" {
		fmt.Fprintf(buf, "    <RadInstrumentModel>%s</RadInstrumentModel>\n", xmlText(f.InstrumentType))
	}
	if f.InstrumentManufacturer != "" {
		fmt.Fprintf(buf, "    <RadInstrumentManufacturerName>%s</RadInstrumentManufacturerName>\n", xmlText(f.InstrumentManufacturer))
	}
	if f.InstrumentID != "" {
		fmt.Fprintf(buf, "    <RadInstrumentIdentifier>%s</RadInstrumentIdentifier>\n", xmlText(f.InstrumentID))
	}
	buf.WriteString("  </RadInstrumentInformation>\n")
}

func detectorKind(f *specmodel.SpectrumFile, name string) string {
	hasGamma, hasNeutron := false, false
	for _, m := range f.Measurements {
		if m.DetectorName != name {
			continue
		}
		if len(m.GammaCounts()) > 0 {
			hasGamma = true
		}
		if m.ContainedNeutron {
			hasNeutron = true
		}
	}
	switch {
	case hasGamma && hasNeutron:
		return "GammaNeutron"
	case hasNeutron:
		return "Neutron"
	default:
		return "Gamma"
	}
}

func writeDetectorInformation(buf *bytes.Buffer, name, kind string) {
	fmt.Fprintf(buf, "  <RadDetectorInformation id=%s>\n", xmlAttr(name))
	fmt.Fprintf(buf, "    <RadDetectorCategoryCode>Gamma</RadDetectorCategoryCode>\n")
	fmt.Fprintf(buf, "    <RadDetectorKindCode>%s</RadDetectorKindCode>\n", kind)
	buf.WriteString("  </RadDetectorInformation>\n")
}

// radMeasurementGroup is the set of measurements that will be serialized
// under one <RadMeasurement> element.
type radMeasurementGroup struct {
	id           string
	startTime    time.Time
	realTime     float64
	source       specmodel.SourceType
	measurements []*specmodel.Measurement
}

// groupIntoRadMeasurements implements spec.md §4.6: one RadMeasurement per
// sample, split into per-(sample,detector) groups when measurements within a
// sample disagree on start time (>50ms), real time (>50ms), or source type.
func groupIntoRadMeasurements(f *specmodel.SpectrumFile) []radMeasurementGroup {
	samples := f.SortedSampleNumbers()
	bySample := make(map[int][]*specmodel.Measurement)
	for _, m := range f.Measurements {
		bySample[m.SampleNumber] = append(bySample[m.SampleNumber], m)
	}

	ids := sampleIDs(f, samples, bySample)

	var groups []radMeasurementGroup
	for _, sample := range samples {
		ms := bySample[sample]
		var subgroups [][]*specmodel.Measurement
		for _, m := range ms {
			placed := false
			for i, g := range subgroups {
				ref := g[0]
				if closeWithinMillis(m.StartTime, ref.StartTime, 50) &&
					closeWithin(m.RealTime, ref.RealTime, 0.05) &&
					m.Source == ref.Source {
					subgroups[i] = append(subgroups[i], m)
					placed = true
					break
				}
			}
			if !placed {
				subgroups = append(subgroups, []*specmodel.Measurement{m})
			}
		}
		if len(subgroups) > 1 {
			subgroups = nil
			for _, m := range ms {
				subgroups = append(subgroups, []*specmodel.Measurement{m})
			}
		}
		base := ids[sample]
		for i, sg := range subgroups {
			id := base
			if len(subgroups) > 1 {
				id = fmt.Sprintf("%s_%d", base, i+1)
			}
			groups = append(groups, radMeasurementGroup{
				id:           id,
				startTime:    sg[0].StartTime,
				realTime:     sg[0].RealTime,
				source:       sg[0].Source,
				measurements: sg,
			})
		}
	}
	return groups
}

func closeWithinMillis(a, b time.Time, millis int64) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d <= time.Duration(millis)*time.Millisecond
}

// sampleIDs implements the §4.6 sample-id conventions: Background/Survey{k}
// for passthrough files whose first sample is a long background, Sample{n}
// otherwise.
func sampleIDs(f *specmodel.SpectrumFile, samples []int, bySample map[int][]*specmodel.Measurement) map[int]string {
	ids := make(map[int]string)
	if f.Passthrough && len(samples) > 0 {
		first := samples[0]
		longBackground := false
		for _, m := range bySample[first] {
			if m.RealTime > 10 {
				longBackground = true
				break
			}
		}
		if longBackground {
			ids[first] = "Background"
			rest := samples[1:]
			sort.Ints(rest)
			for i, s := range rest {
				ids[s] = fmt.Sprintf("Survey%d", i+1)
			}
			return ids
		}
	}
	for _, s := range samples {
		ids[s] = fmt.Sprintf("Sample%d", s)
	}
	return ids
}

func writeRadMeasurement(buf *bytes.Buffer, g radMeasurementGroup, calIDs map[string]calBucket, calOrder []string) {
	fmt.Fprintf(buf, "  <RadMeasurement id=%s>\n", xmlAttr(g.id))
	fmt.Fprintf(buf, "    <MeasurementClassCode>%s</MeasurementClassCode>\n", measurementClassCode(g.source))
	if !g.startTime.IsZero() {
		fmt.Fprintf(buf, "    <StartDateTime>%s</StartDateTime>\n", formatISO8601Time(g.startTime))
	}
	fmt.Fprintf(buf, "    <RealTimeDuration>%s</RealTimeDuration>\n", formatISO8601Duration(g.realTime))

	for i, m := range g.measurements {
		if len(m.GammaCounts()) == 0 {
			continue
		}
		writeSpectrum(buf, m, fmt.Sprintf("%s_Sp%d", g.id, i+1), calIDFor(calIDs, calOrder, m.Calibration()))
	}
	for i, m := range g.measurements {
		if !m.ContainedNeutron || len(m.GammaCounts()) > 0 {
			continue
		}
		writeGrossCounts(buf, m, fmt.Sprintf("%s_Gc%d", g.id, i+1))
	}
	for _, m := range g.measurements {
		if m.ContainedNeutron && len(m.GammaCounts()) > 0 && len(m.NeutronCounts) > 0 {
			fmt.Fprintf(buf, "    <GrossCounts radDetectorInformationReference=%s>\n", xmlAttr(m.DetectorName))
			fmt.Fprintf(buf, "      <LiveTimeDuration>%s</LiveTimeDuration>\n", formatISO8601Duration(m.LiveTime))
			fmt.Fprintf(buf, "      <GrossCounts>%s</GrossCounts>\n", formatFloatList(m.NeutronCounts))
			buf.WriteString("    </GrossCounts>\n")
		}
	}

	for _, m := range g.measurements {
		if m.Quality == specmodel.QualitySuspect || m.Quality == specmodel.QualityBad || m.Quality == specmodel.QualityMissing {
			fmt.Fprintf(buf, "    <RadDetectorState radDetectorInformationReference=%s>%s</RadDetectorState>\n",
				xmlAttr(m.DetectorName), qualityCode(m.Quality))
		}
	}
	if anyOccupied, set := occupancyOf(g.measurements); set {
		fmt.Fprintf(buf, "    <OccupancyIndicator>%t</OccupancyIndicator>\n", anyOccupied)
	}

	buf.WriteString("  </RadMeasurement>\n")
}

func measurementClassCode(s specmodel.SourceType) string {
	switch s {
	case specmodel.SourceBackground:
		return "Background"
	case specmodel.SourceCalibration:
		return "Calibration"
	case specmodel.SourceIntrinsicActivity:
		return "IntrinsicActivity"
	default:
		return "Foreground"
	}
}

func qualityCode(q specmodel.QualityStatus) string {
	switch q {
	case specmodel.QualitySuspect:
		return "Suspect"
	case specmodel.QualityBad:
		return "Fault"
	default:
		return "Missing"
	}
}

func occupancyOf(ms []*specmodel.Measurement) (bool, bool) {
	for _, m := range ms {
		switch m.Occupancy {
		case specmodel.OccupancyOccupied:
			return true, true
		case specmodel.OccupancyNotOccupied:
			return false, true
		}
	}
	return false, false
}

func writeSpectrum(buf *bytes.Buffer, m *specmodel.Measurement, id, calRef string) {
	fmt.Fprintf(buf, "    <Spectrum id=%s radDetectorInformationReference=%s", xmlAttr(id), xmlAttr(m.DetectorName))
	if calRef != "" {
		fmt.Fprintf(buf, " energyCalibrationReference=%s", xmlAttr(calRef))
	}
	buf.WriteString(">\n")
	fmt.Fprintf(buf, "      <LiveTimeDuration>%s</LiveTimeDuration>\n", formatISO8601Duration(m.LiveTime))
	writeChannelData(buf, m.GammaCounts())
	buf.WriteString("    </Spectrum>\n")
}

func writeGrossCounts(buf *bytes.Buffer, m *specmodel.Measurement, id string) {
	fmt.Fprintf(buf, "    <GrossCounts id=%s radDetectorInformationReference=%s>\n", xmlAttr(id), xmlAttr(m.DetectorName))
	fmt.Fprintf(buf, "      <LiveTimeDuration>%s</LiveTimeDuration>\n", formatISO8601Duration(m.LiveTime))
	fmt.Fprintf(buf, "      <GrossCounts>%s</GrossCounts>\n", formatFloatList(m.NeutronCounts))
	buf.WriteString("    </GrossCounts>\n")
}

// writeChannelData implements the §4.6 zero-compression rule: when the gamma
// sum is under 15x the channel count, emit a CountedZeroes run-length
// encoding instead of the plain space-separated list.
func writeChannelData(buf *bytes.Buffer, counts []float64) {
	sum := 0.0
	for _, c := range counts {
		sum += c
	}
	if len(counts) > 0 && sum < 15*float64(len(counts)) {
		fmt.Fprintf(buf, `      <ChannelData compressionCode="CountedZeroes">%s</ChannelData>`+"\n", encodeCountedZeroes(counts))
		return
	}
	buf.WriteString("      <ChannelData>")
	for i, c := range counts {
		if i > 0 {
			if i%8 == 0 {
				buf.WriteString("\n")
			} else {
				buf.WriteString(" ")
			}
		}
		fmt.Fprintf(buf, "%.8G", c)
	}
	buf.WriteString("</ChannelData>\n")
}

// encodeCountedZeroes replaces every run of zero channels with a literal 0
// followed by the run length, per §4.6.
func encodeCountedZeroes(counts []float64) string {
	var parts []string
	i := 0
	for i < len(counts) {
		if counts[i] == 0 {
			run := 0
			for i < len(counts) && counts[i] == 0 {
				run++
				i++
			}
			parts = append(parts, "0", fmt.Sprintf("%d", run))
			continue
		}
		parts = append(parts, fmt.Sprintf("%.8G", counts[i]))
		i++
	}
	return strings.Join(parts, " ")
}

func writeAnalysisResults(buf *bytes.Buffer, a *specmodel.Analysis) {
	buf.WriteString("  <AnalysisResults>\n")
	if a.AlgorithmName != "" {
		fmt.Fprintf(buf, "    <Algorithm><AlgorithmName>%s</AlgorithmName></Algorithm>\n", xmlText(a.AlgorithmName))
	}
	for _, r := range a.Results {
		buf.WriteString("    <Nuclide>\n")
		fmt.Fprintf(buf, "      <NuclideName>%s</NuclideName>\n", xmlText(r.Nuclide))
		if r.NuclideCategory != "" {
			fmt.Fprintf(buf, "      <NuclideCategoryDescription>%s</NuclideCategoryDescription>\n", xmlText(r.NuclideCategory))
		}
		if r.Confidence != "" {
			fmt.Fprintf(buf, "      <NuclideIDConfidenceValue>%s</NuclideIDConfidenceValue>\n", xmlText(r.Confidence))
		}
		if r.ConfidenceIndication != "" {
			fmt.Fprintf(buf, "      <NuclideIDConfidenceIndication>%s</NuclideIDConfidenceIndication>\n", xmlText(r.ConfidenceIndication))
		}
		if r.HasActivity {
			fmt.Fprintf(buf, "      <NuclideActivityValue>%.6G</NuclideActivityValue>\n", r.ActivityBq)
		}
		if r.HasDoseRate {
			fmt.Fprintf(buf, "      <NuclideDoseRateValue>%.6G</NuclideDoseRateValue>\n", r.DoseRateUSvH)
		}
		buf.WriteString("    </Nuclide>\n")
	}
	buf.WriteString("  </AnalysisResults>\n")
}
