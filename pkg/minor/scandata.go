package minor

import (
	"bytes"
	"strconv"

	"github.com/antchfx/xmlquery"
	"golang.org/x/sync/errgroup"

	"specfile/pkg/specmodel"
)

// DetectScanData implements the §4.8 candidacy check: a <scanData> root.
func DetectScanData(data []byte) bool {
	return bytes.Contains(data, []byte("<scanData>")) || bytes.Contains(data, []byte("<scanData "))
}

// scanDataRspNames maps an RSP panel number (1-8) to the N42 panel name
// convention, matching the original reader's best-guess mapping.
var scanDataRspNames = [8]string{"Aa1", "Aa2", "Ba1", "Ba2", "Ca1", "Ca2", "Da1", "Da2"}

// LoadScanData parses a ScanData XML export: <scanData>/<SegmentResults>
// yields one background measurement per RSP panel, and
// <scanData>/<PanelDataList>/<item> yields one foreground measurement per
// sample. Channel counts are always nine per spectrum; a fixed empirical
// lower-edge calibration is used for that channel count, and a flat
// default polynomial for any other.
func LoadScanData(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectScanData(data) {
		return nil, false, nil
	}
	doc, perr := xmlquery.Parse(bytes.NewReader(data))
	if perr != nil {
		return nil, false, nil
	}
	top := firstElement(doc)
	root := top
	if localName(top) != "scanData" {
		root = firstOf(descendants(top, "scanData"))
	}
	if root == nil {
		return nil, false, nil
	}

	f = specmodel.New()
	calCache := map[int]*specmodel.EnergyCalibration{}
	getCal := func(nChannels int) *specmodel.EnergyCalibration {
		if cal, found := calCache[nChannels]; found {
			return cal
		}
		var cal *specmodel.EnergyCalibration
		switch {
		case nChannels == 9:
			edges := []float64{0, 109, 167.6, 284.8, 519.1, 987.9, 1163.7, 1456.6, 2862.9, 3027.0}
			cal, _ = specmodel.NewLowerChannelEdge(nChannels, edges)
		case nChannels >= 2:
			cal, _ = specmodel.NewDefaultPolynomial(nChannels, []float64{0, 3000.0 / float64(nChannels)}, nil)
		}
		calCache[nChannels] = cal
		return cal
	}

	sample := 0
	for _, seg := range children(root, "SegmentResults") {
		rspID := childText(seg, "RspId")
		if rspID == "" || rspID == "17" {
			continue
		}
		name := rspName(rspID)
		gamma := parseFloats(concatChildTexts(seg, "GammaBackground"))
		if len(gamma) == 10 {
			gamma = gamma[:9]
		}
		var neutron []float64
		containedNeutron := false
		for i := 1; i <= 4; i++ {
			if nv := childText(seg, "NeutronBackground"+strconv.Itoa(i)); nv != "" {
				for len(neutron) < i {
					neutron = append(neutron, 0)
				}
				if v, perr := strconv.ParseFloat(nv, 64); perr == nil {
					neutron[i-1] = v
					containedNeutron = true
				}
			}
		}
		if len(gamma) == 0 && len(neutron) == 0 {
			continue
		}
		sample++
		m := specmodel.NewMeasurement()
		m.SampleNumber = 0
		m.DetectorName = name
		m.Source = specmodel.SourceBackground
		m.Occupancy = specmodel.OccupancyNotOccupied
		m.SetGammaCounts(gamma, 2.0, 2.0)
		if containedNeutron {
			m.ContainedNeutron = true
			m.NeutronCounts = neutron
			m.NeutronRealTime = 2.0
			m.RecomputeNeutronSum()
		}
		if cal := getCal(len(gamma)); cal != nil {
			m.ForceEnergyCalibration(cal)
		}
		if t, tok := parseISO8601Time(childText(seg, "GammaLastBackgroundTime")); tok {
			m.StartTime = t
		}
		f.AddMeasurement(m)
	}

	panelNum := 0
	for _, panelList := range children(root, "PanelDataList") {
		panelNum++
		name := strconv.Itoa(panelNum)
		if panelNum <= len(scanDataRspNames) {
			name = scanDataRspNames[panelNum-1]
		}
		for _, item := range children(panelList, "item") {
			gamma := parseFloats(concatChildTexts(item, "GammaData"))
			neutron := parseFloats(concatChildTexts(item, "NeutronData"))
			if len(gamma) == 0 && len(neutron) == 0 {
				continue
			}
			sample++
			m := specmodel.NewMeasurement()
			if sid := childText(item, "SampleId"); sid != "" {
				if n, perr := strconv.Atoi(sid); perr == nil {
					m.SampleNumber = n
				} else {
					m.SampleNumber = sample
				}
			} else {
				m.SampleNumber = sample
			}
			m.DetectorName = name
			m.Source = specmodel.SourceForeground
			m.Occupancy = specmodel.OccupancyOccupied
			m.SetGammaCounts(gamma, 0.1, 0.1)
			if len(neutron) > 0 {
				m.ContainedNeutron = true
				m.NeutronCounts = neutron
				m.NeutronRealTime = 0.1
				m.RecomputeNeutronSum()
			}
			if cal := getCal(len(gamma)); cal != nil {
				m.ForceEnergyCalibration(cal)
			}
			if t, tok := parseISO8601Time(childText(item, "SampleDateTime")); tok {
				m.StartTime = t
			}
			f.AddMeasurement(m)
		}
	}

	if len(f.Measurements) == 0 {
		return nil, false, nil
	}

	var g errgroup.Group
	for i := range f.Measurements {
		m := f.Measurements[i]
		g.Go(func() error {
			m.RecomputeNeutronSum()
			return nil
		})
	}
	_ = g.Wait()

	f.Reindex()
	return f, true, nil
}

func rspName(id string) string {
	n, err := strconv.Atoi(id)
	if err == nil && n >= 1 && n <= len(scanDataRspNames) {
		return scanDataRspNames[n-1]
	}
	return id
}

func concatChildTexts(node *xmlquery.Node, tag string) string {
	var b []string
	for _, c := range children(node, tag) {
		b = append(b, text(c))
	}
	out := ""
	for i, s := range b {
		if i > 0 {
			out += " "
		}
		out += s
	}
	return out
}
