package minor

import (
	"bytes"

	"github.com/antchfx/xmlquery"

	"specfile/pkg/specmodel"
)

// DetectMicroRaider implements the §4.8 candidacy check: a single
// <IdResult> measurement document.
func DetectMicroRaider(data []byte) bool {
	return bytes.Contains(data, []byte("<IdResult"))
}

// LoadMicroRaider parses a Micro-Raider export: exactly one measurement
// carrying a spectrum, an optional nuclide identification list, a dose
// rate with units, and a GPS fix in ASCII deg-min-sec form.
func LoadMicroRaider(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectMicroRaider(data) {
		return nil, false, nil
	}
	doc, perr := xmlquery.Parse(bytes.NewReader(data))
	if perr != nil {
		return nil, false, nil
	}
	top := firstElement(doc)
	root := top
	if localName(top) != "IdResult" {
		root = firstOf(descendants(top, "IdResult"))
	}
	if root == nil {
		return nil, false, nil
	}

	spNode := firstOf(descendants(root, "Spectrum"))
	if spNode == nil {
		return nil, false, nil
	}
	channels := parseFloats(childText(spNode, "ChannelData"))
	if len(channels) < 2 {
		return nil, false, nil
	}

	m := specmodel.NewMeasurement()
	real := firstNonZero(parseFloats(childText(spNode, "RealTime")))
	live := firstNonZero(parseFloats(childText(spNode, "LiveTime")))
	m.SetGammaCounts(channels, live, real)
	m.SampleNumber = 1
	m.Source = specmodel.SourceForeground
	m.DetectorName = "gamma"

	if calNode := child(spNode, "Calibration"); calNode != nil {
		coeffs := parseFloats(childText(calNode, "Coefficients"))
		if len(coeffs) >= 2 {
			if cal, cerr := specmodel.NewPolynomial(len(channels), coeffs, nil); cerr == nil {
				m.SetEnergyCalibration(cal)
			}
		}
	}

	f = specmodel.New()
	if doseNode := firstOf(descendants(root, "DoseRate")); doseNode != nil {
		if vals := parseFloats(text(doseNode)); len(vals) > 0 {
			m.DoseRate = vals[0]
			m.HasDoseRate = true
		}
	}

	if gpsNode := firstOf(descendants(root, "GPS")); gpsNode != nil {
		latStr := childText(gpsNode, "Latitude")
		lonStr := childText(gpsNode, "Longitude")
		lat, latOK := parseDegMinSec(latStr)
		lon, lonOK := parseDegMinSec(lonStr)
		if latOK && lonOK {
			loc := specmodel.NewLocationState(specmodel.LocationStateInstrument)
			loc.GeoLocation = &specmodel.GeographicPoint{Latitude: lat, Longitude: lon}
			m.Location = loc
		}
	}

	for _, nuc := range descendants(root, "Nuclide") {
		name, _ := attr(nuc, "Name")
		if name == "" {
			name = text(nuc)
		}
		if name == "" {
			continue
		}
		if f.Analysis == nil {
			f.Analysis = specmodel.NewAnalysis()
		}
		f.Analysis.Results = append(f.Analysis.Results, specmodel.AnalysisResult{
			Nuclide:      name,
			DetectorName: m.DetectorName,
		})
	}

	f.AddMeasurement(m)
	f.Reindex()
	return f, true, nil
}
