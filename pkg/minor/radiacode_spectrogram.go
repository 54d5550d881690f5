package minor

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"strconv"
	"strings"

	"specfile/pkg/specmodel"
)

// DetectRadiaCodeSpectrogram implements the §4.8 candidacy check: a
// tab-separated text header line carrying the literal "Spectrogram:" key.
func DetectRadiaCodeSpectrogram(data []byte) bool {
	return bytes.Contains(data, []byte("Spectrogram:"))
}

// LoadRadiaCodeSpectrogram parses the RadiaCode spectrogram text format: a
// first line of key/value fields ("Spectrogram:", "Time:", "Timestamp:",
// "Channels:"), subsequent lines of (timestamp, seconds, channel counts),
// and an optional "Spectrum:" line carrying a hex-encoded bootstrap
// calibration.
func LoadRadiaCodeSpectrogram(data []byte) (f *specmodel.SpectrumFile, ok bool, err error) {
	if !DetectRadiaCodeSpectrogram(data) {
		return nil, false, nil
	}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, false, nil
	}
	header := parseSpectrogramHeader(scanner.Text())
	nChannels, _ := strconv.Atoi(header["Channels"])
	if nChannels < 1 {
		return nil, false, nil
	}

	f = specmodel.New()
	var bootstrapCal []float64
	sample := 0
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Spectrum:") {
			bootstrapCal = decodeSpectrogramBootstrap(strings.TrimPrefix(line, "Spectrum:"))
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 3 {
			continue
		}
		seconds, perr := strconv.ParseFloat(fields[1], 64)
		if perr != nil {
			continue
		}
		counts := parseFloats(strings.Join(fields[2:], " "))
		if len(counts) < 2 {
			continue
		}
		sample++
		m := specmodel.NewMeasurement()
		m.SampleNumber = sample
		m.Source = specmodel.SourceForeground
		m.SetGammaCounts(counts, seconds, seconds)
		if len(bootstrapCal) >= 2 {
			if cal, cerr := specmodel.NewPolynomial(len(counts), bootstrapCal, nil); cerr == nil {
				m.SetEnergyCalibration(cal)
			}
		}
		f.AddMeasurement(m)
	}
	if len(f.Measurements) == 0 {
		return nil, false, nil
	}
	f.Reindex()
	return f, true, nil
}

func parseSpectrogramHeader(line string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Split(line, "\t") {
		kv := strings.SplitN(field, ":", 2)
		if len(kv) == 2 {
			out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return out
}

// decodeSpectrogramBootstrap decodes a hex-encoded pair of little-endian
// int32 calibration terms (offset, gain), each scaled by 1000, into the
// coefficient sequence NewPolynomial expects.
func decodeSpectrogramBootstrap(hexStr string) []float64 {
	raw, err := hex.DecodeString(strings.TrimSpace(hexStr))
	if err != nil || len(raw) < 8 {
		return nil
	}
	offset := float64(int32(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24))
	gain := float64(int32(uint32(raw[4]) | uint32(raw[5])<<8 | uint32(raw[6])<<16 | uint32(raw[7])<<24))
	return []float64{offset / 1000, gain / 1000}
}
