package n42

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	"specfile/pkg/specmodel"
)

var n42_2006Sentinels = []string{
	"N42", "RadInstrumentData", "Measurement", "N42InstrumentData", "ICD1", "HPRDS",
}

// Detect2006 implements spec.md §4.4's candidacy check: at least 504 of the
// first 512 bytes non-null, and at least one of the root sentinels present
// anywhere in the document (a generous over-approximation of "root-or-first-
// child name contains" that costs nothing since Structural failures below
// still reject non-conforming documents).
func Detect2006(data []byte) bool {
	return isMostlyNonNull(data) && containsAnySentinel(data, n42_2006Sentinels)
}

// Load2006 parses an N42-2006 document into a populated SpectrumFile.
func Load2006(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !Detect2006(data) {
		return nil, false, nil
	}
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, false, nil // Structural: not well-formed XML, let caller try the next reader
	}
	root := firstElement(doc)
	if root == nil {
		return nil, false, nil
	}

	topMeasurements := children(root, "Measurement")
	if len(topMeasurements) == 0 {
		topMeasurements = descendants(root, "Measurement")
	}
	if len(topMeasurements) == 0 {
		return nil, false, fmt.Errorf("n42-2006: no Measurement elements found")
	}

	f = specmodel.New()
	readInstrumentInfo2006(f, root)
	devPairs := parseDeviationPairs2006(root)

	isPortal := len(topMeasurements) == 1 && len(children(topMeasurements[0], "DetectorData")) > 0

	var measurements []*specmodel.Measurement
	if isPortal {
		measurements, err = decodePortalMeasurements(topMeasurements[0], devPairs)
	} else {
		measurements, err = decodeSpectrometerMeasurements(topMeasurements, devPairs)
	}
	if err != nil {
		return nil, false, fmt.Errorf("n42-2006: %w", err)
	}

	appendICD2Measurements(f, root, &measurements)

	for _, m := range measurements {
		if m != nil {
			f.AddMeasurement(m)
		}
	}
	f.Reindex()
	return f, true, nil
}

func firstElement(n *xmlquery.Node) *xmlquery.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			return c
		}
	}
	return nil
}

func readInstrumentInfo2006(f *specmodel.SpectrumFile, root *xmlquery.Node) {
	info := child(root, "InstrumentInformation")
	if info == nil {
		info = firstOf(descendants(root, "InstrumentInformation"))
	}
	if info == nil {
		return
	}
	f.InstrumentType = childText(info, "InstrumentType")
	f.InstrumentModel = childText(info, "InstrumentModel")
	f.InstrumentManufacturer = childText(info, "Manufacturer")
	f.InstrumentID = childText(info, "InstrumentID")
}

func firstOf(nodes []*xmlquery.Node) *xmlquery.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

// decodeSpectrometerMeasurements handles the "multiple top-level
// <Measurement>" shape of spec.md §4.4, decoding each concurrently via a
// bounded worker pool with pre-assigned output slots.
func decodeSpectrometerMeasurements(nodes []*xmlquery.Node, devPairs map[string][]specmodel.DeviationPair) ([]*specmodel.Measurement, error) {
	slots := make([]*specmodel.Measurement, len(nodes))
	countDoses := make([]*xmlquery.Node, len(nodes))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for i, node := range nodes {
		i, node := i, node
		g.Go(func() error {
			spectrum := child(node, "Spectrum")
			if spectrum == nil {
				return nil
			}
			m, warn := decodeSpectrumNode(spectrum, nil, devPairs)
			if warn != "" {
				m.ParseWarnings = append(m.ParseWarnings, warn)
			}
			slots[i] = m
			countDoses[i] = child(node, "CountDoseData")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	matchNeutronsByStartTime(slots, countDoses)
	return slots, nil
}

// decodePortalMeasurements handles the passthrough-style shape: one
// <DetectorData> per time slice, each with paired <SpectrumMeasurement> and
// <GrossCountMeasurement> children.
func decodePortalMeasurements(measurementNode *xmlquery.Node, devPairs map[string][]specmodel.DeviationPair) ([]*specmodel.Measurement, error) {
	slices := children(measurementNode, "DetectorData")
	var out []*specmodel.Measurement
	type pending struct {
		gammaSlots   []*specmodel.Measurement
		gammaNames   []string
		neutronSlots []*xmlquery.Node
		neutronNames []string
	}
	results := make([]pending, len(slices))

	g, _ := errgroup.WithContext(context.Background())
	g.SetLimit(8)
	for i, slice := range slices {
		i, slice := i, slice
		g.Go(func() error {
			var p pending
			for _, dm := range children(slice, "DetectorMeasurement") {
				detName, _ := attr(dm, "DetectorName")
				if sm := child(dm, "SpectrumMeasurement"); sm != nil {
					if spectrum := child(sm, "Spectrum"); spectrum != nil {
						m, warn := decodeSpectrumNode(spectrum, nil, devPairs)
						m.DetectorName = detName
						if warn != "" {
							m.ParseWarnings = append(m.ParseWarnings, warn)
						}
						p.gammaSlots = append(p.gammaSlots, m)
						p.gammaNames = append(p.gammaNames, detName)
					}
				}
				if gc := child(dm, "GrossCountMeasurement"); gc != nil {
					p.neutronSlots = append(p.neutronSlots, gc)
					p.neutronNames = append(p.neutronNames, detName)
				}
			}
			results[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, p := range results {
		for gi, gm := range p.gammaSlots {
			for ni, neutronName := range p.neutronNames {
				if !namesPairGammaNeutron(p.gammaNames[gi], neutronName) {
					continue
				}
				applyGrossCountNeutron(gm, p.neutronSlots[ni])
			}
		}
		out = append(out, p.gammaSlots...)
	}
	return out, nil
}

// namesPairGammaNeutron implements spec.md §4.4's pairing rule: names equal,
// or neutron name equals gamma name with "N" suffix, or case-insensitive
// "Gamma"→"Neutron" substring substitution makes them equal.
func namesPairGammaNeutron(gamma, neutron string) bool {
	if gamma == neutron {
		return true
	}
	if neutron == gamma+"N" {
		return true
	}
	lowerGamma := strings.ToLower(gamma)
	lowerNeutron := strings.ToLower(neutron)
	substituted := strings.ReplaceAll(lowerGamma, "gamma", "neutron")
	return substituted == lowerNeutron
}

func applyGrossCountNeutron(m *specmodel.Measurement, gc *xmlquery.Node) {
	counts := parseFloats(childText(gc, "GrossCounts"))
	if len(counts) == 0 {
		return
	}
	m.ContainedNeutron = true
	m.NeutronCounts = counts
	m.RecomputeNeutronSum()
}

// matchNeutronsByStartTime applies each <CountDoseData> to the spectrum
// decoded from the same <Measurement> element. Start times are not
// compared: CountDoseData is not moved to the nearest foreground spectrum.
func matchNeutronsByStartTime(measurements []*specmodel.Measurement, countDoses []*xmlquery.Node) {
	// Special case called out by spec.md §4.4: exactly one foreground + one
	// background measurement, and the source node supplies a background
	// neutron rate — the foreground's neutron info populates both.
	if len(measurements) == 2 {
		fgIdx, bgIdx := -1, -1
		for i, m := range measurements {
			if m == nil {
				continue
			}
			switch m.Source {
			case specmodel.SourceForeground:
				fgIdx = i
			case specmodel.SourceBackground:
				bgIdx = i
			}
		}
		if fgIdx >= 0 && bgIdx >= 0 && countDoses[fgIdx] != nil {
			applyCountDoseData(measurements[fgIdx], countDoses[fgIdx])
			if bgRate := childText(countDoses[fgIdx], "BackgroundNeutronRate"); bgRate != "" {
				if rates := parseFloats(bgRate); len(rates) > 0 {
					measurements[bgIdx].ContainedNeutron = true
					measurements[bgIdx].NeutronCounts = []float64{rates[0] * measurements[bgIdx].RealTime}
					measurements[bgIdx].RecomputeNeutronSum()
				}
			}
			return
		}
	}

	for i, cd := range countDoses {
		if cd == nil || measurements[i] == nil {
			continue
		}
		applyCountDoseData(measurements[i], cd)
	}
}

func applyCountDoseData(m *specmodel.Measurement, cd *xmlquery.Node) {
	if counts := parseFloats(childText(cd, "Neutrons")); len(counts) > 0 {
		m.ContainedNeutron = true
		m.NeutronCounts = counts
		m.RecomputeNeutronSum()
	}
	if doseStr := childText(cd, "DoseRate"); doseStr != "" {
		if vals := parseFloats(doseStr); len(vals) > 0 {
			m.DoseRate = vals[0]
			m.HasDoseRate = true
		}
	}
	if occStr := childText(cd, "Occupied"); occStr != "" {
		switch strings.ToLower(occStr) {
		case "true", "1":
			m.Occupancy = specmodel.OccupancyOccupied
		case "false", "0":
			m.Occupancy = specmodel.OccupancyNotOccupied
		}
	}
}

// decodeSpectrumNode decodes one <Spectrum> element, pulling its sibling
// calibration list from parent if calibrations is nil.
func decodeSpectrumNode(spectrum *xmlquery.Node, calibrations []*xmlquery.Node, devPairs map[string][]specmodel.DeviationPair) (*specmodel.Measurement, string) {
	m := specmodel.NewMeasurement()
	m.DetectorName, _ = attr(spectrum, "DetectorName")
	channels := parseFloats(childText(spectrum, "ChannelData"))

	realTime := parseISO8601Duration(childText(spectrum, "RealTime"))
	liveTime := parseISO8601Duration(childText(spectrum, "LiveTime"))
	if st, ok := parseISO8601Time(childText(spectrum, "StartTime")); ok {
		m.StartTime = st
	}
	if st, ok := parseISO8601Time(childText(spectrum.Parent, "StartTime")); ok && m.StartTime.IsZero() {
		m.StartTime = st
	}

	m.Source = classifySourceFromText(childText(spectrum, "SourceType"))

	if len(channels) >= 2 {
		m.SetGammaCounts(channels, liveTime, realTime)
	} else {
		m.LiveTime, m.RealTime = liveTime, realTime
	}

	warn := ""
	if calibrations == nil {
		calibrations = children(spectrum.Parent, "Calibration")
	}
	if len(channels) >= 2 {
		if cal, werr := resolveCalibration2006(spectrum, calibrations, len(channels)); cal != nil {
			if dp, ok := devPairs[m.DetectorName]; ok && len(dp) > 0 {
				cal = withDeviationPairs(cal, dp)
			}
			m.SetEnergyCalibration(cal)
		} else if werr != "" {
			warn = werr
		}
	}
	return m, warn
}

func withDeviationPairs(cal *specmodel.EnergyCalibration, dev []specmodel.DeviationPair) *specmodel.EnergyCalibration {
	var rebuilt *specmodel.EnergyCalibration
	var err error
	switch cal.Kind() {
	case specmodel.CalibrationPolynomial:
		rebuilt, err = specmodel.NewPolynomial(cal.NumChannels(), cal.Coefficients(), dev)
	case specmodel.CalibrationFullRangeFraction:
		rebuilt, err = specmodel.NewFullRangeFraction(cal.NumChannels(), cal.Coefficients(), dev)
	default:
		return cal
	}
	if err != nil {
		return cal
	}
	return rebuilt
}

func classifySourceFromText(s string) specmodel.SourceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "background":
		return specmodel.SourceBackground
	case "foreground", "item":
		return specmodel.SourceForeground
	case "calibration":
		return specmodel.SourceCalibration
	case "intrinsicactivity":
		return specmodel.SourceIntrinsicActivity
	default:
		return specmodel.SourceUnknown
	}
}

// appendICD2Measurements implements spec.md §4.4's ICD2-embedded shape:
// <AnalysisResults>/<AnalyzedGammaData>/<BackgroundSpectrum> and
// <SpectrumSummed> nodes become measurements; a background whose own
// calibration is invalid inherits the next sibling's calibration.
func appendICD2Measurements(f *specmodel.SpectrumFile, root *xmlquery.Node, measurements *[]*specmodel.Measurement) {
	analyzed := descendants(root, "AnalyzedGammaData")
	for _, ag := range analyzed {
		var bg, summed *specmodel.Measurement
		if bgNode := child(ag, "BackgroundSpectrum"); bgNode != nil {
			if sp := child(bgNode, "Spectrum"); sp != nil {
				bg, _ = decodeSpectrumNode(sp, nil, nil)
				bg.Source = specmodel.SourceBackground
			}
		}
		if sumNode := child(ag, "SpectrumSummed"); sumNode != nil {
			sp := child(sumNode, "Spectrum")
			if sp == nil {
				sp = sumNode // SpectrumSummed itself carries ChannelData directly
			}
			summed, _ = decodeSpectrumNode(sp, nil, nil)
		}
		if bg != nil && summed != nil && !bg.Calibration().Valid() && summed.Calibration().Valid() {
			bg.ForceEnergyCalibration(summed.Calibration())
		}
		if bg != nil {
			*measurements = append(*measurements, bg)
		}
		if summed != nil {
			*measurements = append(*measurements, summed)
		}
	}

	if analysisNode := firstOf(descendants(root, "AnalysisResults")); analysisNode != nil {
		an := specmodel.NewAnalysis()
		for _, nuc := range descendants(analysisNode, "Nuclide") {
			res := specmodel.AnalysisResult{
				Nuclide: childText(nuc, "NuclideName"),
			}
			if conf := childText(nuc, "NuclideIDConfidenceIndication"); conf != "" {
				res.ConfidenceIndication = conf
			}
			an.Results = append(an.Results, res)
		}
		if len(an.Results) > 0 {
			f.Analysis = an
		}
	}
}
