package pcf

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"specfile/pkg/specmodel"
)

// radiaCodeDeadTime is the RadiaCode-101/-102 dead-time constant (5 µs) used
// by the live-time inference formula of spec.md §4.7.
const radiaCodeDeadTime = 5e-6

// Load parses a complete PCF byte stream into a populated SpectrumFile.
// Per spec.md §7, a Structural failure (truncated body, inconsistent NRPS)
// returns ok=false with err describing why, and the caller should try the
// next reader. Load does not run reconciliation; call pkg/reconcile.Reconcile
// on the result.
func Load(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if len(data) < headerSize {
		return nil, false, nil // not a candidate
	}
	hdr, err := DecodeHeader(data)
	if err != nil {
		return nil, false, nil
	}
	if hdr.NRPS < 1 {
		return nil, false, nil
	}
	recordSize := 256 * hdr.NRPS

	offset := headerSize
	var devTable []byte
	if hdr.HasDeviationPairs {
		if offset+devTableBytes32 > len(data) {
			return nil, false, fmt.Errorf("pcf: truncated deviation-pair table")
		}
		size := devTableBytes32
		if hdr.CompressedPairs {
			size = devTableBytes16
		}
		if offset+size > len(data) {
			return nil, false, fmt.Errorf("pcf: truncated deviation-pair table")
		}
		devTable = data[offset : offset+size]
		offset += size
	}

	if offset >= len(data) {
		return nil, false, fmt.Errorf("pcf: no spectrum records present")
	}
	if (len(data)-offset)%recordSize != 0 {
		return nil, false, fmt.Errorf("pcf: trailing data is not a multiple of the record size")
	}

	var records []*Record
	for ; offset+recordSize <= len(data); offset += recordSize {
		rec, err := DecodeRecord(data[offset : offset+recordSize])
		if err != nil {
			return nil, false, fmt.Errorf("pcf: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, false, fmt.Errorf("pcf: no spectrum records present")
	}

	f = specmodel.New()
	f.InspectionKind = hdr.InspectionKind
	f.LaneNumber = hdr.LaneNumber
	f.InstrumentID = hdr.InstrumentID
	f.InstrumentModel = hdr.InstrumentModel
	if hdr.UUID != "" {
		f.UUID = hdr.UUID
	}
	if hdr.LocationName != "" {
		f.MeasurementLocation = hdr.LocationName
	}

	var energyEdges []float64
	start := 0
	if records[0].Title == "Energy" && len(records[0].Channels) > 1 && strictlyIncreasingFloats(records[0].Channels) {
		energyEdges = records[0].Channels
		start = 1
	}

	for _, rec := range records[start:] {
		m, warn := convertRecord(rec, hdr, devTable, energyEdges)
		if warn != "" {
			m.ParseWarnings = append(m.ParseWarnings, warn)
		}
		f.AddMeasurement(m)
	}

	f.Reindex()
	return f, true, nil
}

func strictlyIncreasingFloats(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}

var titleSuffixRe = regexp.MustCompile(`(?i)\bDistance\s*=\s*([0-9.]+)\s*cm\b`)

func convertRecord(rec *Record, hdr *Header, devTable []byte, energyEdges []float64) (*specmodel.Measurement, string) {
	m := specmodel.NewMeasurement()
	m.Title = rec.Title
	m.StartTime = rec.Timestamp
	m.OccupancyTag = string(rec.TagByte)

	switch rec.TagByte {
	case '-':
		m.Occupancy = specmodel.OccupancyNotOccupied
	case ' ':
		m.Occupancy = specmodel.OccupancyOccupied
	default:
		m.Occupancy = specmodel.OccupancyUnknown
	}

	title := rec.Title
	lowerTitle := strings.ToLower(title)
	switch {
	case strings.Contains(lowerTitle, "background"):
		m.Source = specmodel.SourceBackground
	case strings.Contains(lowerTitle, "foreground"):
		m.Source = specmodel.SourceForeground
	default:
		m.Source = specmodel.SourceUnknown
	}

	name, loc := parseTitleNameAndLocation(title)
	m.DetectorName = name
	if loc != "" {
		rl := &specmodel.RelativeLocation{OriginDescription: loc}
		ls := specmodel.NewLocationState(specmodel.LocationStateDetector)
		ls.RelativeLocation = rl
		m.Location = ls
	}

	liveTime := rec.LiveTime
	warn := ""
	if liveTime == 0 && rec.RealTime > 0 && isRadiaCodeModel(hdr.InstrumentModel) {
		gammaRate := sumChannels(rec.Channels) / rec.RealTime
		denom := gammaRate / (1 - gammaRate*radiaCodeDeadTime)
		if denom > 0 {
			estimated := rec.RealTime * gammaRate / denom
			if rec.RealTime > 0 && absf(estimated-rec.RealTime) > 0.001*rec.RealTime {
				warn = "inferred RadiaCode live time deviates from real time by more than 0.1%"
			}
			liveTime = estimated
		}
	}

	m.SetGammaCounts(rec.Channels, liveTime, rec.RealTime)

	if len(energyEdges) == len(rec.Channels)+1 {
		if cal, err := specmodel.NewLowerChannelEdge(len(rec.Channels), energyEdges); err == nil {
			m.SetEnergyCalibration(cal)
		}
	} else if len(rec.Channels) > 0 {
		var dev []specmodel.DeviationPair
		if devTable != nil && name != "" {
			dev = DecodeDeviationPairTable(devTable, name, hdr.CompressedPairs)
		}
		coeffs := rec.CalTerms[:]
		if cal, err := specmodel.NewFullRangeFraction(len(rec.Channels), trimTrailingZeroTerms(coeffs), dev); err == nil {
			m.SetEnergyCalibration(cal)
		} else {
			warn = appendWarn(warn, fmt.Sprintf("invalid energy calibration: %v", err))
		}
	}

	if rec.NeutronCounts != 0 {
		m.ContainedNeutron = true
		m.NeutronCounts = []float64{rec.NeutronCounts}
		m.RecomputeNeutronSum()
	}

	return m, warn
}

func appendWarn(existing, next string) string {
	if existing == "" {
		return next
	}
	return existing + "; " + next
}

func isRadiaCodeModel(model string) bool {
	model = strings.ToLower(model)
	return strings.Contains(model, "radiacode-101") || strings.Contains(model, "radiacode-102") || strings.Contains(model, "radiacode")
}

func sumChannels(ch []float64) float64 {
	sum := 0.0
	for _, c := range ch {
		sum += c
	}
	return sum
}

func absf(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// trimTrailingZeroTerms drops trailing all-zero calibration terms down to a
// floor of two, since NewFullRangeFraction requires at least two coefficients
// but a PCF record always carries all five slots whether or not they're used.
func trimTrailingZeroTerms(terms []float64) []float64 {
	n := len(terms)
	for n > 2 && terms[n-1] == 0 {
		n--
	}
	return append([]float64(nil), terms[:n]...)
}

// parseTitleNameAndLocation splits a PCF record title of the shape
// "Foreground Aa1 Distance=250 cm" into its RPM detector name and an
// optional relative-location description, per spec.md §8 scenario 3.
func parseTitleNameAndLocation(title string) (name, locationDesc string) {
	rest := title
	if m := titleSuffixRe.FindStringSubmatch(rest); m != nil {
		locationDesc = m[1] + " cm"
		rest = strings.TrimSpace(titleSuffixRe.ReplaceAllString(rest, ""))
	}
	fields := strings.Fields(rest)
	for _, f := range fields {
		if _, _, _, ok := NameToCell(f); ok {
			name = f
			return
		}
	}
	return "", locationDesc
}

// Write serializes f as a PCF byte stream. NRPS, record size, and channel
// count are derived from the widest gamma-counts array among f's
// measurements, rounded up to the next multiple of 64 per spec.md §4.7.
func Write(f *specmodel.SpectrumFile) ([]byte, error) {
	maxChannels := 0
	for _, m := range f.Measurements {
		if n := len(m.GammaCounts()); n > maxChannels {
			maxChannels = n
		}
	}
	if maxChannels == 0 {
		return nil, fmt.Errorf("pcf: no measurements with gamma counts to write")
	}
	nchan := roundUp64(maxChannels)
	nrps := nchan/64 + 1
	recordSize := 256 * nrps

	hasDevPairs := false
	for _, m := range f.Measurements {
		if c := m.Calibration(); c != nil && len(c.DeviationPairs()) > 0 {
			hasDevPairs = true
			break
		}
	}

	hdr := &Header{
		NRPS:              nrps,
		HasDeviationPairs: hasDevPairs,
		CompressedPairs:   false,
		UUID:              f.UUID,
		InspectionKind:    f.InspectionKind,
		LaneNumber:        f.LaneNumber,
		InstrumentID:      f.InstrumentID,
		InstrumentModel:   f.InstrumentModel,
		LocationName:      f.MeasurementLocation,
		Extended:          f.UUID != "" || f.InspectionKind != "" || f.LaneNumber != 0,
	}

	out := append([]byte(nil), EncodeHeader(hdr)...)

	var devTable []byte
	if hasDevPairs {
		for _, m := range f.Measurements {
			c := m.Calibration()
			if c == nil || len(c.DeviationPairs()) == 0 {
				continue
			}
			devTable = EncodeDeviationPairTable(devTable, m.DetectorName, c.DeviationPairs(), hdr.CompressedPairs)
		}
	}
	out = append(out, devTable...)

	for _, m := range f.Measurements {
		rec := &Record{
			Title:     measurementTitle(m),
			Timestamp: m.StartTime,
			TagByte:   occupancyTagByte(m),
			LiveTime:  m.LiveTime,
			RealTime:  m.RealTime,
			Channels:  padChannels(m.GammaCounts(), nchan),
		}
		if m.ContainedNeutron && len(m.NeutronCounts) > 0 {
			rec.NeutronCounts = m.NeutronCounts[0]
		}
		if c := m.Calibration(); c != nil && c.Valid() {
			frf := c
			if c.Kind() != specmodel.CalibrationFullRangeFraction {
				if converted, err := c.ToFullRangeFraction(); err == nil {
					frf = converted
				}
			}
			copy(rec.CalTerms[:], frf.Coefficients())
		}
		buf, err := EncodeRecord(rec, recordSize)
		if err != nil {
			return nil, fmt.Errorf("pcf: %w", err)
		}
		out = append(out, buf...)
	}

	return out, nil
}

func roundUp64(n int) int {
	if n%64 == 0 {
		return n
	}
	return ((n / 64) + 1) * 64
}

func padChannels(ch []float64, n int) []float64 {
	if len(ch) >= n {
		return ch[:n]
	}
	out := make([]float64, n)
	copy(out, ch)
	return out
}

func occupancyTagByte(m *specmodel.Measurement) byte {
	switch m.Occupancy {
	case specmodel.OccupancyNotOccupied:
		return '-'
	case specmodel.OccupancyOccupied:
		return ' '
	default:
		if len(m.OccupancyTag) == 1 {
			return m.OccupancyTag[0]
		}
		return '-'
	}
}

func measurementTitle(m *specmodel.Measurement) string {
	if m.Title != "" {
		return m.Title
	}
	prefix := "Foreground"
	if m.Source == specmodel.SourceBackground {
		prefix = "Background"
	}
	if m.DetectorName == "" {
		return prefix
	}
	title := prefix + " " + m.DetectorName
	if m.Location != nil && m.Location.RelativeLocation != nil && m.Location.RelativeLocation.OriginDescription != "" {
		desc := m.Location.RelativeLocation.OriginDescription
		desc = strings.TrimSuffix(strings.TrimSpace(desc), "cm")
		desc = strings.TrimSpace(desc)
		if _, err := strconv.ParseFloat(desc, 64); err == nil {
			title += " Distance=" + desc + " cm"
		}
	}
	return title
}
