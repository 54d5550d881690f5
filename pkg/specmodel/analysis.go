package specmodel

import "time"

// AnalysisResult is one nuclide identification or quantification result,
// mirroring spec.md §3's "Detector analysis result" and
// original_source/src/SpecFile_xml_other.cpp's AnalysisResults/AnalyzedGammaData
// handling.
type AnalysisResult struct {
	Nuclide           string
	NuclideCategory   string // e.g. "Industrial", "Medical", "NORM", "SNM"

	// Confidence and ConfidenceIndication are both kept — open question #2:
	// N42-2012 can carry AnalysisConfidenceValue (Confidence, numeric/textual)
	// and NuclideIDConfidenceIndication (a coarse textual bucket) separately;
	// the original silently picks one. We keep both.
	Confidence           string
	ConfidenceIndication string

	ActivityBq     float64
	HasActivity    bool
	DoseRateUSvH   float64
	HasDoseRate    bool
	DistanceMM     float64
	HasDistance    bool

	RealTimeStart time.Time
	RealTimeEnd   time.Time

	DetectorName string
	Remark       string
}

// Analysis holds an ordered list of AnalysisResult plus the algorithm
// metadata that produced them.
type Analysis struct {
	AlgorithmName        string
	AlgorithmCreator     string
	AlgorithmDescription string
	ComponentVersions    map[string]string

	Results []AnalysisResult
}

// NewAnalysis returns an empty Analysis ready to accumulate results.
func NewAnalysis() *Analysis {
	return &Analysis{ComponentVersions: make(map[string]string)}
}
