package minor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"specfile/pkg/specmodel"
)

// DetectARAM implements spec.md §4.8's ARAM candidacy check: a plain-text
// header followed by an XML island opened with "<event".
func DetectARAM(data []byte) bool {
	return bytes.Contains(data, []byte("<event"))
}

var (
	aramSiteRe   = regexp.MustCompile(`(?i)site\s*[:=]\s*(.+)`)
	aramCoordRe  = regexp.MustCompile(`(?i)(lat|lon)(?:itude)?\s*[:=]\s*([0-9 .\-NSEW]+)`)
	aramCoeffsRe = regexp.MustCompile(`(?is)<Coefficients>(.*?)</Coefficients>`)
)

// LoadARAM parses the ARAM hybrid text+XML format: a plain-text header
// (site name, ASCII deg-min-sec coordinates) before the first "<event" tag,
// an XML island between "<event>" and "</event>" holding one foreground
// spectrum, an optional background spectrum, and optional neutron gross
// counts, plus an energy calibration found by a text scan for
// "<Coefficients>" that may live outside the XML island entirely.
func LoadARAM(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectARAM(data) {
		return nil, false, nil
	}
	start := bytes.Index(data, []byte("<event"))
	header := string(data[:start])
	end := bytes.LastIndex(data, []byte("</event>"))
	if end < 0 || end < start {
		return nil, false, nil
	}
	island := data[start : end+len("</event>")]

	doc, perr := xmlquery.Parse(bytes.NewReader(island))
	if perr != nil {
		return nil, false, nil
	}
	root := firstElement(doc)
	if root == nil {
		return nil, false, nil
	}

	f = specmodel.New()

	if m := aramSiteRe.FindStringSubmatch(header); m != nil {
		f.MeasurementLocation = strings.TrimSpace(m[1])
	}
	var lat, lon float64
	var haveLat, haveLon bool
	for _, m := range aramCoordRe.FindAllStringSubmatch(header, -1) {
		v, pok := parseDegMinSec(m[2])
		if !pok {
			continue
		}
		switch strings.ToLower(m[1]) {
		case "lat":
			lat, haveLat = v, true
		case "lon":
			lon, haveLon = v, true
		}
	}

	var coeffs []float64
	if m := aramCoeffsRe.FindSubmatch(data); m != nil {
		coeffs = parseFloats(string(m[1]))
	}

	fg := decodeARAMSpectrum(child(root, "Foreground"), coeffs)
	if fg == nil {
		fg = decodeARAMSpectrum(firstOf(descendants(root, "Spectrum")), coeffs)
	}
	if fg == nil {
		return nil, false, nil
	}
	fg.Source = specmodel.SourceForeground
	fg.SampleNumber = 1
	if haveLat && haveLon {
		loc := specmodel.NewLocationState(specmodel.LocationStateInstrument)
		loc.GeoLocation = &specmodel.GeographicPoint{Latitude: lat, Longitude: lon}
		fg.Location = loc
	}
	f.AddMeasurement(fg)

	if bgNode := child(root, "Background"); bgNode != nil {
		if bg := decodeARAMSpectrum(bgNode, coeffs); bg != nil {
			bg.Source = specmodel.SourceBackground
			bg.SampleNumber = 0
			f.AddMeasurement(bg)
		}
	}

	if gc := firstOf(descendants(root, "NeutronGrossCounts")); gc != nil {
		if counts := parseFloats(text(gc)); len(counts) > 0 {
			fg.ContainedNeutron = true
			fg.NeutronCounts = counts
			fg.RecomputeNeutronSum()
		}
	}

	f.Reindex()
	return f, true, nil
}

func decodeARAMSpectrum(node *xmlquery.Node, fileCoeffs []float64) *specmodel.Measurement {
	if node == nil {
		return nil
	}
	sp := node
	if inner := child(node, "Spectrum"); inner != nil {
		sp = inner
	}
	channels := parseFloats(childText(sp, "ChannelData"))
	if len(channels) < 2 {
		return nil
	}
	m := specmodel.NewMeasurement()
	real := firstNonZero(parseFloats(childText(sp, "RealTime")))
	live := firstNonZero(parseFloats(childText(sp, "LiveTime")))
	m.SetGammaCounts(channels, live, real)

	coeffs := fileCoeffs
	if local := parseFloats(childText(sp, "Coefficients")); len(local) >= 2 {
		coeffs = local
	}
	if len(coeffs) >= 2 {
		if cal, cerr := specmodel.NewPolynomial(len(channels), coeffs, nil); cerr == nil {
			m.SetEnergyCalibration(cal)
		}
	}
	return m
}

func firstOf(nodes []*xmlquery.Node) *xmlquery.Node {
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func firstNonZero(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	return vals[0]
}
