package n42

import (
	"strings"

	"github.com/antchfx/xmlquery"

	"specfile/pkg/specmodel"
)

// energyUnitMultiplier maps an N42 "energyUnits"/"units" attribute to the
// power-of-ten multiplier needed to convert its coefficients to keV, per
// spec.md §4.4 "Energy-unit attribute multiplies coefficients by the
// appropriate power of ten."
func energyUnitMultiplier(unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "ev":
		return 1e-3
	case "kev", "":
		return 1
	case "mev":
		return 1e3
	default:
		return 1
	}
}

// parseEquationCalibration parses a 2006-style <Equation> node: a Model
// attribute selecting the variant, and a <Coefficients> child holding the
// space-separated coefficient or edge list.
func parseEquationCalibration(eq *xmlquery.Node, nChannels int) (*specmodel.EnergyCalibration, string) {
	model, _ := attr(eq, "Model")
	form, _ := attr(eq, "form")
	coeffText := childText(eq, "Coefficients")
	unit, _ := attr(eq, "energyUnits")
	mult := energyUnitMultiplier(unit)
	coeffs := parseFloats(coeffText)
	for i := range coeffs {
		coeffs[i] *= mult
	}

	lowerModel := strings.ToLower(model)
	isLowerEdge := lowerModel == "lowerchannelenergy" || lowerModel == "lower edge" ||
		lowerModel == "lower channel edge" ||
		(lowerModel == "other" && strings.EqualFold(strings.TrimSpace(form), "lower edge"))

	switch {
	case lowerModel == "fullrangefraction":
		cal, err := specmodel.NewFullRangeFraction(nChannels, coeffs, nil)
		if err != nil {
			return nil, err.Error()
		}
		return cal, ""
	case isLowerEdge:
		cal, err := specmodel.NewLowerChannelEdge(nChannels, coeffs)
		if err != nil {
			return nil, err.Error()
		}
		return cal, ""
	default: // "Polynomial" or unrecognized Model falls back to Polynomial
		cal, err := specmodel.NewPolynomial(nChannels, coeffs, nil)
		if err != nil {
			return nil, err.Error()
		}
		return cal, ""
	}
}

// parseArrayXYCalibration parses a 2006-style <ArrayXY> list of <PointXY>
// children per spec.md §4.4's fallback encoding.
func parseArrayXYCalibration(arr *xmlquery.Node, nChannels int) (*specmodel.EnergyCalibration, string) {
	points := children(arr, "PointXY")
	xs := make([]float64, 0, len(points))
	ys := make([]float64, 0, len(points))
	for _, p := range points {
		xs = append(xs, parseFloats(childText(p, "X"))...)
		ys = append(ys, parseFloats(childText(p, "Y"))...)
	}
	if len(xs) == 0 {
		return nil, "ArrayXY calibration has no points"
	}

	if len(points) <= 2 {
		gain := 0.0
		if len(ys) > 1 && xs[1] != xs[0] {
			gain = (ys[1] - ys[0]) / (xs[1] - xs[0])
		}
		cal, err := specmodel.NewPolynomial(nChannels, []float64{ys[0], gain}, nil)
		if err != nil {
			return nil, err.Error()
		}
		return cal, ""
	}

	if len(points) >= nChannels-2 && len(points) <= nChannels+2 && strictlyIncreasing(ys) {
		cal, err := specmodel.NewLowerChannelEdge(len(ys)-1, ys)
		if err != nil {
			return nil, err.Error()
		}
		return cal, ""
	}
	return nil, "ArrayXY calibration shape not recognized"
}

func strictlyIncreasing(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return false
		}
	}
	return true
}

// resolveCalibration2006 implements spec.md §4.4's "each <Spectrum> may
// carry a CalibrationIDs attribute" lookup rule against a sibling list of
// <Calibration> nodes.
func resolveCalibration2006(spectrum *xmlquery.Node, calibrations []*xmlquery.Node, nChannels int) (*specmodel.EnergyCalibration, string) {
	if len(calibrations) == 0 {
		return nil, ""
	}
	var chosen *xmlquery.Node
	if ids, ok := attr(spectrum, "CalibrationIDs"); ok && ids != "" {
		for _, c := range calibrations {
			if id, ok := attr(c, "ID"); ok && id == ids {
				chosen = c
				break
			}
		}
	}
	if chosen == nil && len(calibrations) == 1 {
		chosen = calibrations[0]
	}
	if chosen == nil {
		return nil, ""
	}
	if eq := child(chosen, "Equation"); eq != nil {
		return parseEquationCalibration(eq, nChannels)
	}
	if arr := child(chosen, "ArrayXY"); arr != nil {
		return parseArrayXYCalibration(arr, nChannels)
	}
	return nil, "Calibration node has neither Equation nor ArrayXY"
}

// parseDeviationPairs2006 reads a <dndons:NonlinearityCorrection>-style node
// (matched by local name "NonlinearityCorrection" regardless of prefix) into
// a deviation-pair list keyed by its "Detector" attribute.
func parseDeviationPairs2006(root *xmlquery.Node) map[string][]specmodel.DeviationPair {
	out := make(map[string][]specmodel.DeviationPair)
	for _, node := range descendants(root, "NonlinearityCorrection") {
		det, _ := attr(node, "Detector")
		energies := parseFloats(childText(node, "EnergyValues"))
		offsets := parseFloats(childText(node, "EnergyDeviationValues"))
		n := len(energies)
		if len(offsets) < n {
			n = len(offsets)
		}
		pairs := make([]specmodel.DeviationPair, n)
		for i := 0; i < n; i++ {
			pairs[i] = specmodel.DeviationPair{Energy: energies[i], Offset: offsets[i]}
		}
		out[det] = pairs
	}
	return out
}
