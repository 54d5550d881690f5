package specmodel

// DetectorType is a coarse, vendor-recognized instrument-family tag, inferred
// during reconciliation from manufacturer/model strings (spec.md §4.10 step
// 7). This is a SUPPLEMENTED feature (SPEC_FULL.md item 4): a real lookup
// table rather than a stub "Unknown" default.
type DetectorType int

const (
	DetectorUnknown DetectorType = iota
	DetectorOrtecDetective
	DetectorIdentiFINDER
	DetectorRadSeeker
	DetectorSAM940
	DetectorSAM945
	DetectorASP
	DetectorPedestrianG
	DetectorPredator
	DetectorRadiaCode
	DetectorMicroRaider
	DetectorRPM // generic radiation portal monitor, inferred from RPM-style detector names
)

func (t DetectorType) String() string {
	switch t {
	case DetectorOrtecDetective:
		return "Ortec Detective"
	case DetectorIdentiFINDER:
		return "FLIR identiFINDER"
	case DetectorRadSeeker:
		return "Smiths RadSeeker"
	case DetectorSAM940:
		return "Berkeley SAM 940"
	case DetectorSAM945:
		return "Berkeley SAM 945"
	case DetectorASP:
		return "Canberra ASP"
	case DetectorPedestrianG:
		return "Mirion Pedestrian G"
	case DetectorPredator:
		return "Nucsafe Predator"
	case DetectorRadiaCode:
		return "RadiaCode"
	case DetectorMicroRaider:
		return "Micro-Raider"
	case DetectorRPM:
		return "Radiation Portal Monitor"
	default:
		return "Unknown"
	}
}
