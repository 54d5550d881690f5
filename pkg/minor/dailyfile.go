package minor

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"

	"specfile/pkg/specmodel"
)

// DetectDailyFile implements the §4.8 candidacy check: a CSV-style text
// stream containing at least one "S1," setup line.
func DetectDailyFile(data []byte) bool {
	return bytes.Contains(data, []byte("S1,")) || bytes.Contains(data, []byte("S1 ,"))
}

type dailyS1 struct {
	nChannels int
}

type dailyS2 struct {
	coeffsByDetector map[string][]float64
}

// LoadDailyFile parses a spectroscopic daily file: a CSV-style stream of
// labeled line types (S1, S2, GB, NB, BX, GS, NS, ID, AB, GX). It tracks
// the current setup (S1) and deviation-pair/calibration set (S2), a
// rolling background number bumped at BX, and an occupancy number bumped
// at GX; gamma and neutron signals are keyed by occupancy + detector name
// + time chunk and merged by time chunk into one measurement each.
func LoadDailyFile(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectDailyFile(data) {
		return nil, false, nil
	}

	var curS1 *dailyS1
	var curS2 *dailyS2
	backgroundNum := 0
	occupancyNum := 0

	type gammaBG struct {
		detector string
		counts   []float64
	}
	type neutronBG struct {
		duration float64
		counts   []float64
	}
	gammaBGs := map[int][]gammaBG{}
	neutronBGs := map[int]neutronBG{}
	bgS1 := map[int]*dailyS1{}
	bgS2 := map[int]*dailyS2{}

	type gammaSig struct {
		detector string
		chunk    int
		counts   []float64
	}
	type neutronSig struct {
		chunk  int
		counts []float64
	}
	gammaSigs := map[int][]gammaSig{}
	neutronSigs := map[int][]neutronSig{}
	occS1 := map[int]*dailyS1{}
	occS2 := map[int]*dailyS2{}
	entrySpeed := map[int]float64{}
	exitSpeed := map[int]float64{}
	haveSpeed := map[int]bool{}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 32*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		fields := splitDailyLine(line)
		if len(fields) < 2 {
			continue
		}
		switch strings.TrimSpace(fields[0]) {
		case "S1":
			n := 0
			if len(fields) > 3 {
				n, _ = strconv.Atoi(strings.TrimSpace(fields[3]))
			}
			curS1 = &dailyS1{nChannels: n}
		case "S2":
			curS2 = &dailyS2{coeffsByDetector: parseDailyS2(fields[1:])}
		case "GB":
			if len(fields) < 3 {
				continue
			}
			det := strings.TrimSpace(fields[1])
			counts := parseDailyFloats(fields[2:])
			gammaBGs[backgroundNum] = append(gammaBGs[backgroundNum], gammaBG{detector: det, counts: counts})
			bgS1[backgroundNum] = curS1
			bgS2[backgroundNum] = curS2
		case "NB":
			if len(fields) < 3 {
				continue
			}
			dur, _ := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			neutronBGs[backgroundNum] = neutronBG{duration: dur, counts: parseDailyFloats(fields[2:])}
		case "BX":
			backgroundNum++
		case "GS":
			if len(fields) < 4 {
				continue
			}
			det := strings.TrimSpace(fields[1])
			chunk, _ := strconv.Atoi(strings.TrimSpace(fields[2]))
			counts := parseDailyFloats(fields[3:])
			gammaSigs[occupancyNum] = append(gammaSigs[occupancyNum], gammaSig{detector: det, chunk: chunk, counts: counts})
			occS1[occupancyNum] = curS1
			occS2[occupancyNum] = curS2
		case "NS":
			if len(fields) < 4 {
				continue
			}
			chunk, _ := strconv.Atoi(strings.TrimSpace(fields[2]))
			neutronSigs[occupancyNum] = append(neutronSigs[occupancyNum], neutronSig{chunk: chunk, counts: parseDailyFloats(fields[3:])})
		case "GX":
			if len(fields) >= 6 {
				if v, perr := strconv.ParseFloat(strings.TrimSpace(fields[5]), 64); perr == nil {
					entrySpeed[occupancyNum] = v
					haveSpeed[occupancyNum] = true
				}
			}
			if len(fields) >= 7 {
				if v, perr := strconv.ParseFloat(strings.TrimSpace(fields[6]), 64); perr == nil {
					exitSpeed[occupancyNum] = v
				}
			}
			occupancyNum++
		}
	}

	if len(gammaSigs) == 0 && len(gammaBGs) == 0 {
		return nil, false, nil
	}

	f = specmodel.New()
	sample := 0

	for bgNum, recs := range gammaBGs {
		s2 := bgS2[bgNum]
		nb := neutronBGs[bgNum]
		for _, rec := range recs {
			sample++
			m := specmodel.NewMeasurement()
			m.SampleNumber = sample
			m.DetectorName = rec.detector
			m.Source = specmodel.SourceBackground
			dur := nb.duration
			m.SetGammaCounts(rec.counts, dur, dur)
			if len(nb.counts) > 0 {
				m.ContainedNeutron = true
				m.NeutronCounts = nb.counts
				m.NeutronRealTime = dur
				m.RecomputeNeutronSum()
			}
			applyDailyCalibration(m, s2, rec.detector, len(rec.counts))
			f.AddMeasurement(m)
		}
	}

	for occNum, recs := range gammaSigs {
		s2 := occS2[occNum]
		neutronByChunk := map[int][]float64{}
		for _, ns := range neutronSigs[occNum] {
			neutronByChunk[ns.chunk] = ns.counts
		}
		for _, rec := range recs {
			sample++
			m := specmodel.NewMeasurement()
			m.SampleNumber = sample
			m.DetectorName = rec.detector
			m.Source = specmodel.SourceForeground
			m.SetGammaCounts(rec.counts, 1, 1)
			if nc, found := neutronByChunk[rec.chunk]; found {
				m.ContainedNeutron = true
				m.NeutronCounts = nc
				m.NeutronRealTime = 1
				m.RecomputeNeutronSum()
			}
			applyDailyCalibration(m, s2, rec.detector, len(rec.counts))
			if haveSpeed[occNum] {
				loc := specmodel.NewLocationState(specmodel.LocationStateInstrument)
				loc.Speed = float32((entrySpeed[occNum] + exitSpeed[occNum]) / 2)
				m.Location = loc
			}
			f.AddMeasurement(m)
		}
	}

	if len(f.Measurements) == 0 {
		return nil, false, nil
	}
	f.Reindex()
	return f, true, nil
}

// applyDailyCalibration builds a two-point Polynomial from the S2 line's
// per-detector coefficients, sized to the channel count actually present
// in this record (not the S1 line's nominal channel count, which may not
// match a given fixture's row length).
func applyDailyCalibration(m *specmodel.Measurement, s2 *dailyS2, detector string, nChannels int) {
	if s2 == nil || nChannels < 2 {
		return
	}
	coeffs, found := s2.coeffsByDetector[detector]
	if !found || len(coeffs) < 2 {
		return
	}
	if cal, cerr := specmodel.NewPolynomial(nChannels, coeffs, nil); cerr == nil {
		m.SetEnergyCalibration(cal)
	}
}

// splitDailyLine splits a comma-separated daily-file line, trimming
// trailing carriage returns.
func splitDailyLine(line string) []string {
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil
	}
	return strings.Split(line, ",")
}

func parseDailyFloats(fields []string) []float64 {
	out := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// parseDailyS2 decodes an S2 line's per-detector two-point calibration
// runs: a detector name followed by alternating (channel, energy) pairs,
// repeated for each detector.
func parseDailyS2(fields []string) map[string][]float64 {
	out := make(map[string][]float64)
	i := 0
	for i < len(fields) {
		name := strings.TrimSpace(fields[i])
		i++
		var pts []float64
		for i+1 < len(fields) {
			a, aerr := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
			if aerr != nil {
				break
			}
			b, berr := strconv.ParseFloat(strings.TrimSpace(fields[i+1]), 64)
			if berr != nil {
				break
			}
			pts = append(pts, a, b)
			i += 2
		}
		if len(pts) >= 4 {
			chanA, enA, chanB, enB := pts[0], pts[1], pts[2], pts[3]
			if chanB != chanA {
				gain := (enB - enA) / (chanB - chanA)
				offset := enA - gain*chanA
				out[name] = []float64{offset, gain}
			}
		}
	}
	return out
}
