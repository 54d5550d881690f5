package minor

import (
	"bytes"
	"math"

	"github.com/antchfx/xmlquery"

	"specfile/pkg/specmodel"
)

// DetectLZS implements spec.md §4.8's LZS candidacy check: well-formed XML
// rooted at either "nanoMCA" (the nominal root) or "spectrum" (a tolerated
// variant).
func DetectLZS(data []byte) bool {
	return bytes.Contains(data, []byte("<nanoMCA")) || bytes.Contains(data, []byte("<spectrum"))
}

// LoadLZS parses a nanoMCA/LZS document: a single spectrum, a two-point
// energy calibration converted to a Polynomial (gain, offset), rejected if
// |offset| >= 350 keV or gain <= 0.
func LoadLZS(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectLZS(data) {
		return nil, false, nil
	}
	doc, perr := xmlquery.Parse(bytes.NewReader(data))
	if perr != nil {
		return nil, false, nil
	}
	root := firstElement(doc)
	if root == nil {
		return nil, false, nil
	}
	name := localName(root)
	if name != "nanoMCA" && name != "spectrum" {
		return nil, false, nil
	}

	channels := parseFloats(childText(root, "Channels"))
	if len(channels) < 2 {
		channels = parseFloats(childText(root, "Data"))
	}
	if len(channels) < 2 {
		return nil, false, nil
	}

	m := specmodel.NewMeasurement()
	real := firstNonZero(parseFloats(childText(root, "RealTime")))
	live := firstNonZero(parseFloats(childText(root, "LiveTime")))
	m.SetGammaCounts(channels, live, real)
	m.SampleNumber = 1
	m.Source = specmodel.SourceForeground

	if cal := decodeLZSCalibration(root, len(channels)); cal != nil {
		m.SetEnergyCalibration(cal)
	}

	f = specmodel.New()
	f.AddMeasurement(m)
	f.Reindex()
	return f, true, nil
}

func decodeLZSCalibration(root *xmlquery.Node, nChannels int) *specmodel.EnergyCalibration {
	calNode := child(root, "Calibration")
	if calNode == nil {
		return nil
	}
	chanA := firstNonZero(parseFloats(childText(calNode, "ChannelA")))
	enA := firstNonZero(parseFloats(childText(calNode, "EnergyA")))
	chanB := firstNonZero(parseFloats(childText(calNode, "ChannelB")))
	enB := firstNonZero(parseFloats(childText(calNode, "EnergyB")))
	if chanB == chanA {
		return nil
	}
	gain := (enB - enA) / (chanB - chanA)
	offset := enA - gain*chanA
	if gain <= 0 || math.Abs(offset) >= 350 {
		return nil
	}
	cal, err := specmodel.NewPolynomial(nChannels, []float64{offset, gain}, nil)
	if err != nil {
		return nil
	}
	return cal
}
