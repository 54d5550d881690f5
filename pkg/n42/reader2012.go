package n42

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	"specfile/pkg/specmodel"
)

// Detect2012 is the N42-2012 candidacy check: mostly non-null leading bytes
// and the string "RadInstrumentData" anywhere in the document. Load2012
// then requires the root element itself to be RadInstrumentData.
func Detect2012(data []byte) bool {
	if !isMostlyNonNull(data) {
		return false
	}
	return bytes.Contains(data, []byte("RadInstrumentData"))
}

type detectorInfo2012 struct {
	description string
	isGamma     bool
	isNeutron   bool
}

// Load2012 parses an N42-2012 document into a populated SpectrumFile.
func Load2012(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !Detect2012(data) {
		return nil, false, nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, false, nil
	}
	root := firstElement(doc)
	if root == nil || localName(root) != "RadInstrumentData" {
		return nil, false, nil
	}
	// A hardware-specific workaround for accidentally nested
	// <RadInstrumentData> chains (spec.md §4.5): rather than mutating the
	// tree to splice the inner document's children onto the outer, every
	// lookup below walks descendants() instead of direct children(), which
	// finds elements at any nesting depth and so tolerates the duplication
	// without needing to flatten it first.
	f = specmodel.New()
	if uuid, ok := attr(root, "n42DocUUID"); ok && uuid != "" {
		f.UUID = uuid
	} else if inner := firstOf(descendants(root, "RadInstrumentData")); inner != nil {
		f.UUID, _ = attr(inner, "n42DocUUID")
	}

	// Phase 1: energy calibrations.
	calibrations := make(map[string]*calSpec2012)
	for _, node := range descendants(root, "EnergyCalibration") {
		id, ok := attr(node, "id")
		if !ok {
			id, _ = attr(node, "Reference")
		}
		spec, warn := decodeEnergyCalibration2012(node)
		if spec != nil {
			calibrations[id] = spec
		}
		if warn != "" {
			f.ParseWarnings = append(f.ParseWarnings, warn)
		}
	}

	// Phase 2: detector information.
	detectors := make(map[string]detectorInfo2012)
	for _, node := range descendants(root, "RadDetectorInformation") {
		id, _ := attr(node, "id")
		kind := strings.ToLower(childText(node, "RadDetectorKindCode"))
		info := detectorInfo2012{description: childText(node, "RadDetectorDescription")}
		switch {
		case strings.Contains(kind, "gamma") && strings.Contains(kind, "neutron"):
			info.isGamma, info.isNeutron = true, true
		case strings.Contains(kind, "neutron"):
			info.isNeutron = true
		case strings.Contains(kind, "gamma"):
			info.isGamma = true
		default:
			info.isGamma = true
		}
		if strings.HasSuffix(id, "Ntr") {
			info.isGamma, info.isNeutron = false, true
		}
		detectors[id] = info
	}

	readInstrumentInfo2012(f, root)

	// Phase 3: measurements, one worker per <RadMeasurement>.
	radMeasurements := descendants(root, "RadMeasurement")
	slots := make([][]*specmodel.Measurement, len(radMeasurements))
	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for i, node := range radMeasurements {
		i, node := i, node
		g.Go(func() error {
			slots[i] = decodeRadMeasurement2012(node, calibrations, detectors)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, fmt.Errorf("n42-2012: %w", err)
	}
	for _, slot := range slots {
		for _, m := range slot {
			f.AddMeasurement(m)
		}
	}

	fuseGammaNeutronPairs(f)
	applyIntercalRenaming2012(f)

	f.Reindex()
	return f, true, nil
}

func readInstrumentInfo2012(f *specmodel.SpectrumFile, root *xmlquery.Node) {
	info := firstOf(descendants(root, "RadInstrumentInformation"))
	if info == nil {
		return
	}
	f.InstrumentType = childText(info, "RadInstrumentModel")
	f.InstrumentModel = childText(info, "RadInstrumentModel")
	f.InstrumentManufacturer = childText(info, "RadInstrumentManufacturerName")
	f.InstrumentID = childText(info, "RadInstrumentIdentifier")
}

// calSpec2012 carries an N42-2012 <EnergyCalibration> in a form that can be
// bound to a calibration object once the referencing Spectrum's channel
// count is known — CoefficientValues-based calibrations are Polynomial and
// need the channel count to derive their edge array, while
// EnergyBoundaryValues-based ones are already fully resolved.
type calSpec2012 struct {
	coeffs   []float64 // nil if resolved is set
	dev      []specmodel.DeviationPair
	resolved *specmodel.EnergyCalibration
}

func decodeEnergyCalibration2012(node *xmlquery.Node) (*calSpec2012, string) {
	var dev []specmodel.DeviationPair
	energies := parseFloats(childText(node, "EnergyValues"))
	offsets := parseFloats(childText(node, "EnergyDeviationValues"))
	n := len(energies)
	if len(offsets) < n {
		n = len(offsets)
	}
	for i := 0; i < n; i++ {
		dev = append(dev, specmodel.DeviationPair{Energy: energies[i], Offset: offsets[i]})
	}

	if coeffText := childText(node, "CoefficientValues"); coeffText != "" {
		coeffs := parseFloats(coeffText)
		if len(coeffs) < 2 {
			return nil, "EnergyCalibration has fewer than two coefficients"
		}
		return &calSpec2012{coeffs: coeffs, dev: dev}, ""
	}
	if edgesText := childText(node, "EnergyBoundaryValues"); edgesText != "" {
		edges := parseFloats(edgesText)
		if len(edges) < 2 {
			return nil, "EnergyCalibration EnergyBoundaryValues has fewer than two entries"
		}
		cal, err := specmodel.NewLowerChannelEdge(len(edges)-1, edges)
		if err != nil {
			return nil, err.Error()
		}
		return &calSpec2012{resolved: cal}, ""
	}
	return nil, "EnergyCalibration has neither CoefficientValues nor EnergyBoundaryValues"
}

var sampleIDRe = regexp.MustCompile(`^(?i)(Background|Sample(\d+)|Survey[_]?(\d+))$`)

func decodeRadMeasurement2012(node *xmlquery.Node, calibrations map[string]*calSpec2012, detectors map[string]detectorInfo2012) []*specmodel.Measurement {
	id, _ := attr(node, "id")
	sampleNumber := parseSampleID(id)
	realTime := parseISO8601Duration(childText(node, "RealTimeDuration"))
	startTime, _ := parseISO8601Time(childText(node, "StartDateTime"))

	var out []*specmodel.Measurement
	for _, sp := range children(node, "Spectrum") {
		m := specmodel.NewMeasurement()
		m.SampleNumber = sampleNumber
		m.StartTime = startTime
		m.RealTime = realTime
		if detRef, ok := attr(sp, "radDetectorInformationReference"); ok {
			m.DetectorName = detRef
		}

		channels := parseFloats(childText(sp, "ChannelData"))
		if code, _ := attr(child(sp, "ChannelData"), "compressionCode"); code == "CountedZeroes" {
			var expanded []float64
			for i := 0; i < len(channels); i++ {
				if channels[i] == 0 && i+1 < len(channels) {
					if run := int(channels[i+1]); run > 0 {
						expanded = append(expanded, make([]float64, run)...)
					}
					i++
					continue
				}
				expanded = append(expanded, channels[i])
			}
			channels = expanded
		}
		liveTime := parseISO8601Duration(childText(sp, "LiveTimeDuration"))
		if liveTime == 0 {
			liveTime = realTime
		}
		if len(channels) >= 2 {
			m.SetGammaCounts(channels, liveTime, realTime)
		} else {
			m.LiveTime = liveTime
		}

		if calRef, ok := attr(sp, "energyCalibrationReference"); ok {
			cal := resolveCalibrationForChannels(calRef, calibrations, len(channels))
			if cal != nil {
				m.SetEnergyCalibration(cal)
			}
		}
		out = append(out, m)
	}

	grossCounts := children(node, "GrossCounts")
	hasTotalNeutrons := false
	for _, gc := range grossCounts {
		detRef, _ := attr(gc, "radDetectorInformationReference")
		if strings.HasSuffix(detRef, "totalNeutrons") {
			hasTotalNeutrons = true
			break
		}
	}

	for _, gc := range grossCounts {
		detRef, _ := attr(gc, "radDetectorInformationReference")
		if info, ok := detectors[detRef]; ok && !info.isNeutron {
			continue
		}
		if hasTotalNeutrons && (strings.HasSuffix(detRef, "minimumNeutrons") || strings.HasSuffix(detRef, "maximumNeutrons")) {
			continue
		}
		m := specmodel.NewMeasurement()
		m.SampleNumber = sampleNumber
		m.StartTime = startTime
		m.RealTime = realTime
		m.DetectorName = detRef
		m.ContainedNeutron = true
		m.NeutronCounts = parseFloats(childText(gc, "GrossCounts"))
		m.RecomputeNeutronSum()
		out = append(out, m)
	}
	return out
}

// resolveCalibrationForChannels binds a calSpec2012 to its actual channel
// count, which for a Polynomial (CoefficientValues) calibration is only
// known once the referencing Spectrum's ChannelData has been parsed.
func resolveCalibrationForChannels(ref string, calibrations map[string]*calSpec2012, nChannels int) *specmodel.EnergyCalibration {
	spec, ok := calibrations[ref]
	if !ok || spec == nil || nChannels < 1 {
		return nil
	}
	if spec.resolved != nil {
		return spec.resolved
	}
	cal, err := specmodel.NewPolynomial(nChannels, spec.coeffs, spec.dev)
	if err != nil {
		return nil
	}
	return cal
}

func parseSampleID(id string) int {
	m := sampleIDRe.FindStringSubmatch(id)
	if m == nil {
		return 0
	}
	if strings.EqualFold(m[1], "Background") {
		return 0
	}
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		return n
	}
	if m[3] != "" {
		n, _ := strconv.Atoi(m[3])
		return n
	}
	return 0
}

// fuseGammaNeutronPairs implements §4.5 Phase 4: a gamma measurement absorbs
// the neutron counts of a sibling whose detector name matches under the
// same pairing rules as the 2006 reader; the neutron-only record is dropped.
func fuseGammaNeutronPairs(f *specmodel.SpectrumFile) {
	var kept []*specmodel.Measurement
	consumed := make(map[int]bool)
	for i, neutron := range f.Measurements {
		if !neutron.ContainedNeutron || len(neutron.GammaCounts()) > 0 {
			continue
		}
		for j, gamma := range f.Measurements {
			if i == j || consumed[j] || len(gamma.GammaCounts()) == 0 {
				continue
			}
			if gamma.SampleNumber != neutron.SampleNumber {
				continue
			}
			if !namesPairGammaNeutron(gamma.DetectorName, neutron.DetectorName) {
				continue
			}
			gamma.ContainedNeutron = true
			gamma.NeutronCounts = neutron.NeutronCounts
			gamma.RecomputeNeutronSum()
			consumed[i] = true
			break
		}
	}
	for i, m := range f.Measurements {
		if !consumed[i] {
			kept = append(kept, m)
		}
	}
	f.Measurements = kept
}

// applyIntercalRenaming2012 implements §4.5 Phase 5, ahead of the shared
// reconciliation pass which performs the equivalent step again (reconcile is
// idempotent: once renamed, distinct calibrations no longer collide on name
// so the second pass is a no-op).
func applyIntercalRenaming2012(f *specmodel.SpectrumFile) {
	type groupKey struct {
		name string
	}
	groups := make(map[groupKey][]*specmodel.Measurement)
	for _, m := range f.Measurements {
		groups[groupKey{m.DetectorName}] = append(groups[groupKey{m.DetectorName}], m)
	}
	for _, ms := range groups {
		if len(ms) < 2 {
			continue
		}
		ref := ms[0]
		for _, m := range ms[1:] {
			if m.StartTime.Equal(ref.StartTime) &&
				closeWithin(m.RealTime, ref.RealTime, 0.01) &&
				closeWithin(m.LiveTime, ref.LiveTime, 0.01) &&
				!calibrationsEqual(m.Calibration(), ref.Calibration()) {
				key := "unknown"
				if c := m.Calibration(); c != nil {
					ck := c.CacheKey()
					key = fmt.Sprintf("%x", ck[:4])
				}
				m.DetectorName = m.DetectorName + "_intercal_" + key
			}
		}
	}
}

func closeWithin(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func calibrationsEqual(a, b *specmodel.EnergyCalibration) bool {
	return a.Equal(b)
}
