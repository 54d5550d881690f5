package minor

import (
	"encoding/binary"
	"math"

	"specfile/pkg/specmodel"
)

// tracsRecordSize is the fixed TRACS-MPS record size of spec.md §4.8: file
// size must be an exact multiple of it.
const tracsRecordSize = 10597

// tracsTimeDivisor converts the format's raw real/live-time units to
// seconds.
const tracsTimeDivisor = 6250.0

// DetectTRACSMPS implements the §4.8 candidacy check: nonzero length, exact
// multiple of the fixed record size, and large enough to hold at least one
// record's fixed GPS+detector-header prefix.
func DetectTRACSMPS(data []byte) bool {
	return len(data) > 0 && len(data)%tracsRecordSize == 0 && len(data) >= tracsRecordSize
}

// tracsPodDetectors names the four (pod, detector) measurements each record
// yields, per spec.md §4.8: "two pods x two detectors".
var tracsPodDetectors = [4]string{"PodA-Det1", "PodA-Det2", "PodB-Det1", "PodB-Det2"}

// LoadTRACSMPS decodes a stream of fixed-size TRACS-MPS records. The
// within-record byte layout is not specified beyond "GPS plus four detector
// blocks, real/live time divided by 6250" (spec.md §1 places bit-level
// grammars for minor readers out of scope); this reader defines a
// self-consistent layout honoring every constraint spec.md does state, and
// is documented in DESIGN.md as an Open Question resolution.
func LoadTRACSMPS(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectTRACSMPS(data) {
		return nil, false, nil
	}
	f = specmodel.New()
	nRecords := len(data) / tracsRecordSize
	for r := 0; r < nRecords; r++ {
		rec := data[r*tracsRecordSize : (r+1)*tracsRecordSize]
		if len(rec) < 16 {
			return nil, false, nil
		}
		lat := math.Float64frombits(binary.LittleEndian.Uint64(rec[0:8]))
		lon := math.Float64frombits(binary.LittleEndian.Uint64(rec[8:16]))

		off := 16
		for _, name := range tracsPodDetectors {
			if off+10 > len(rec) {
				return nil, false, nil
			}
			liveRaw := binary.LittleEndian.Uint32(rec[off : off+4])
			realRaw := binary.LittleEndian.Uint32(rec[off+4 : off+8])
			nChan := int(binary.LittleEndian.Uint16(rec[off+8 : off+10]))
			off += 10
			if off+4*nChan > len(rec) {
				return nil, false, nil
			}
			channels := make([]float64, nChan)
			for i := 0; i < nChan; i++ {
				bits := binary.LittleEndian.Uint32(rec[off+4*i : off+4*i+4])
				channels[i] = float64(math.Float32frombits(bits))
			}
			off += 4 * nChan

			m := specmodel.NewMeasurement()
			m.DetectorName = name
			m.SampleNumber = r + 1
			m.Source = specmodel.SourceForeground
			if nChan >= 2 {
				m.SetGammaCounts(channels, float64(liveRaw)/tracsTimeDivisor, float64(realRaw)/tracsTimeDivisor)
			} else {
				m.LiveTime = float64(liveRaw) / tracsTimeDivisor
				m.RealTime = float64(realRaw) / tracsTimeDivisor
			}
			loc := specmodel.NewLocationState(specmodel.LocationStateInstrument)
			loc.GeoLocation = &specmodel.GeographicPoint{Latitude: lat, Longitude: lon}
			m.Location = loc
			f.AddMeasurement(m)
		}
	}
	f.Reindex()
	return f, true, nil
}
