package minor

import (
	"bytes"

	"github.com/antchfx/xmlquery"

	"specfile/pkg/specmodel"
)

// DetectRadiaCodeXML implements the §4.8 candidacy check: an <EnergySpectrum>
// element anywhere in the document.
func DetectRadiaCodeXML(data []byte) bool {
	return bytes.Contains(data, []byte("<EnergySpectrum"))
}

// LoadRadiaCodeXML parses a RadiaCode export: sibling <EnergySpectrum> and
// optional <BackgroundEnergySpectrum> elements that both belong to a
// detector named "gamma"; the background inherits the foreground's
// calibration if its own element lacks one; the instrument id is
// cross-checked against <DeviceConfigReference>/<Name>.
func LoadRadiaCodeXML(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectRadiaCodeXML(data) {
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

	fgNode := firstOf(descendants(root, "EnergySpectrum"))
	if fgNode == nil {
		return nil, false, nil
	}

	f = specmodel.New()
	if devRef := firstOf(descendants(root, "DeviceConfigReference")); devRef != nil {
		f.InstrumentID = childText(devRef, "Name")
	}

	fg := decodeRadiaCodeSpectrum(fgNode)
	if fg == nil {
		return nil, false, nil
	}
	fg.DetectorName = "gamma"
	fg.Source = specmodel.SourceForeground
	fg.SampleNumber = 1
	f.AddMeasurement(fg)

	if bgNode := firstOf(descendants(root, "BackgroundEnergySpectrum")); bgNode != nil {
		if bg := decodeRadiaCodeSpectrum(bgNode); bg != nil {
			bg.DetectorName = "gamma"
			bg.Source = specmodel.SourceBackground
			bg.SampleNumber = 0
			if bg.Calibration() == nil || !bg.Calibration().Valid() {
				bg.ForceEnergyCalibration(fg.Calibration())
			}
			f.AddMeasurement(bg)
		}
	}

	f.Reindex()
	return f, true, nil
}

func decodeRadiaCodeSpectrum(node *xmlquery.Node) *specmodel.Measurement {
	channels := parseFloats(childText(node, "SpectrumData"))
	if len(channels) < 2 {
		channels = parseFloats(childText(node, "ChannelData"))
	}
	if len(channels) < 2 {
		return nil
	}
	m := specmodel.NewMeasurement()
	real := firstNonZero(parseFloats(childText(node, "Duration")))
	m.SetGammaCounts(channels, real, real)

	if calNode := child(node, "EnergyCalibration"); calNode != nil {
		coeffs := parseFloats(childText(calNode, "Coefficients"))
		if len(coeffs) >= 2 {
			if cal, cerr := specmodel.NewPolynomial(len(channels), coeffs, nil); cerr == nil {
				m.SetEnergyCalibration(cal)
			}
		}
	}
	return m
}
