package pcf

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	titleAreaLen    = 180 // offsets 0..180
	timestampOffset = 180
	timestampLen    = 23 // offsets 180..203
	tagOffset       = 203
	// floatsOffset..floatsOffset+44 (11 f32): live, real, halflife, molecular
	// weight, spectrum multiplier, 5 energy-calibration terms, one reserved
	// slot. spec.md names "nine" values across a 44-byte span, which holds
	// eleven 4-byte floats, and it also lists five named scalars plus five
	// calibration terms (ten), so the parts of spec.md's own description
	// don't add up to a single consistent count. We resolve it by keeping all five named scalars,
	// all five calibration terms, and one reserved/spare float to fill the
	// declared 44-byte span exactly; the reserved float is always written
	// zero and ignored on read.
	floatsOffset    = 204
	numFloats       = 11
	spareOffset     = 248
	neutronOffset   = 252
	channelCountOff = 256
	channelDataOff  = 260
)

// OccupancyFromTag decodes the PCF byte-203 tag character into an
// OccupancyStatus; '-' is not-occupied, ' ' is occupied, anything else is
// Unknown (open question #1: the byte is overloaded and the raw value is
// always additionally preserved as a string).
func OccupancyFromTag(tag byte) int {
	switch tag {
	case '-':
		return 2 // NotOccupied
	case ' ':
		return 1 // Occupied
	default:
		return 0 // Unknown
	}
}

// Record is one decoded PCF spectrum record (or the "Energy" pseudo-record).
type Record struct {
	Title       string
	Description string
	Source      string

	Timestamp time.Time
	TagByte   byte // raw byte 203, preserved verbatim per open question #1

	LiveTime          float64
	RealTime          float64
	HalfLife          float64
	MolecularWeight   float64
	SpectrumMultiplier float64
	CalTerms          [5]float64 // FullRangeFraction coefficients c0..c4; c4 is the "low-energy" term

	NeutronCounts float64

	Channels []float64
}

// EncodeRecord serializes r into a buffer of exactly recordSize bytes,
// zero-padding the remainder per spec.md §4.7.
func EncodeRecord(r *Record, recordSize int) ([]byte, error) {
	if recordSize < channelDataOff {
		return nil, fmt.Errorf("encode pcf record: record size %d too small", recordSize)
	}
	buf := make([]byte, recordSize)

	writeDelimitedStrings(buf[:titleAreaLen], r.Title, r.Description, r.Source)
	copy(buf[timestampOffset:timestampOffset+timestampLen], []byte(FormatVAXTime(r.Timestamp)))
	buf[tagOffset] = r.TagByte

	floats := [numFloats]float64{
		r.LiveTime, r.RealTime, r.HalfLife, r.MolecularWeight, r.SpectrumMultiplier,
		r.CalTerms[0], r.CalTerms[1], r.CalTerms[2], r.CalTerms[3], r.CalTerms[4],
		0, // reserved
	}
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[floatsOffset+i*4:], math.Float32bits(float32(f)))
	}

	binary.LittleEndian.PutUint32(buf[neutronOffset:], math.Float32bits(float32(r.NeutronCounts)))
	binary.LittleEndian.PutUint32(buf[channelCountOff:], uint32(int32(len(r.Channels))))

	for i, c := range r.Channels {
		off := channelDataOff + i*4
		if off+4 > recordSize {
			return nil, fmt.Errorf("encode pcf record: channel data overflows record size %d", recordSize)
		}
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(float32(c)))
	}

	return buf, nil
}

// DecodeRecord parses one PCF spectrum record from buf (exactly one
// record's worth of bytes).
func DecodeRecord(buf []byte) (*Record, error) {
	if len(buf) < channelDataOff {
		return nil, fmt.Errorf("decode pcf record: buffer too short (%d bytes)", len(buf))
	}
	r := &Record{}
	r.Title, r.Description, r.Source = readDelimitedStrings(buf[:titleAreaLen])

	ts, err := ParseVAXTime(string(buf[timestampOffset : timestampOffset+timestampLen]))
	if err == nil {
		r.Timestamp = ts
	}
	r.TagByte = buf[tagOffset]

	var floats [numFloats]float64
	for i := range floats {
		bits := binary.LittleEndian.Uint32(buf[floatsOffset+i*4:])
		floats[i] = float64(math.Float32frombits(bits))
	}
	r.LiveTime = floats[0]
	r.RealTime = floats[1]
	r.HalfLife = floats[2]
	r.MolecularWeight = floats[3]
	r.SpectrumMultiplier = floats[4]
	copy(r.CalTerms[:], floats[5:10])

	r.NeutronCounts = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[neutronOffset:])))

	nchan := int(int32(binary.LittleEndian.Uint32(buf[channelCountOff:])))
	if nchan < 0 {
		return nil, fmt.Errorf("decode pcf record: negative channel count %d", nchan)
	}
	r.Channels = make([]float64, nchan)
	for i := 0; i < nchan; i++ {
		off := channelDataOff + i*4
		if off+4 > len(buf) {
			return nil, fmt.Errorf("decode pcf record: channel count %d overflows record buffer", nchan)
		}
		r.Channels[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])))
	}
	return r, nil
}

// writeDelimitedStrings packs up to three strings into area using 0xFF
// delimiters, per spec.md §4.7's "three 0xFF-delimited variable-length
// strings" representation.
func writeDelimitedStrings(area []byte, parts ...string) {
	pos := 0
	for i, p := range parts {
		n := copy(area[pos:], p)
		pos += n
		if pos >= len(area) {
			return
		}
		if i != len(parts)-1 {
			area[pos] = 0xFF
			pos++
		}
	}
}

// readDelimitedStrings accepts either the 0xFF-delimited variable-length
// encoding or three fixed 60-byte slots, matching whichever the bytes show:
// if no 0xFF byte is present, each 60-byte slot is read independently and
// trimmed at its first NUL.
func readDelimitedStrings(area []byte) (title, description, source string) {
	hasDelim := false
	for _, b := range area {
		if b == 0xFF {
			hasDelim = true
			break
		}
	}
	if !hasDelim {
		title = trimNulAndSpace(sliceOrEmpty(area, 0, 60))
		description = trimNulAndSpace(sliceOrEmpty(area, 60, 120))
		source = trimNulAndSpace(sliceOrEmpty(area, 120, 180))
		return
	}
	fields := splitOnByte(area, 0xFF)
	out := []string{"", "", ""}
	for i := 0; i < len(fields) && i < 3; i++ {
		out[i] = trimNulAndSpace(fields[i])
	}
	return out[0], out[1], out[2]
}

func sliceOrEmpty(b []byte, lo, hi int) []byte {
	if hi > len(b) {
		hi = len(b)
	}
	if lo > hi {
		return nil
	}
	return b[lo:hi]
}

func splitOnByte(b []byte, delim byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == delim {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	out = append(out, b[start:])
	return out
}

func trimNulAndSpace(b []byte) string {
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	s := string(b)
	return trimSpace(s)
}

func trimSpace(s string) string {
	start, end := 0, len(s)
	for start < end && isSpaceByte(s[start]) {
		start++
	}
	for end > start && isSpaceByte(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpaceByte(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
