// Package specmodel holds the in-memory data model shared by every reader
// and writer: energy calibrations, locations, measurements, and the
// spectrum-file aggregate that owns them.
package specmodel

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// CalibrationKind identifies the variant of an EnergyCalibration.
type CalibrationKind int

const (
	// CalibrationInvalid marks a calibration that failed its invariants;
	// callers should treat the measurement as uncalibrated.
	CalibrationInvalid CalibrationKind = iota
	// CalibrationPolynomial is Energy(channel) = sum(coeffs[i] * channel^i).
	CalibrationPolynomial
	// CalibrationFullRangeFraction is Energy(channel) = sum(coeffs[i] * (channel/nchan)^i).
	CalibrationFullRangeFraction
	// CalibrationLowerChannelEdge stores one energy per channel boundary,
	// nchan+1 monotonically non-decreasing values.
	CalibrationLowerChannelEdge
	// CalibrationUnspecifiedDefaultPolynomial is a Polynomial synthesized by
	// a reader or by reconciliation rather than read from the file; writers
	// may choose not to persist it.
	CalibrationUnspecifiedDefaultPolynomial
)

func (k CalibrationKind) String() string {
	switch k {
	case CalibrationPolynomial:
		return "Polynomial"
	case CalibrationFullRangeFraction:
		return "FullRangeFraction"
	case CalibrationLowerChannelEdge:
		return "LowerChannelEdge"
	case CalibrationUnspecifiedDefaultPolynomial:
		return "UnspecifiedDefaultPolynomial"
	default:
		return "Invalid"
	}
}

// DeviationPair is a non-linearity correction applied on top of a
// Polynomial or FullRangeFraction calibration.
type DeviationPair struct {
	Energy float64
	Offset float64
}

// EnergyCalibration is an immutable value object mapping channel index to
// energy. Construct one with the New* functions; once built it must not be
// mutated — callers replace the reference on a Measurement instead.
type EnergyCalibration struct {
	kind        CalibrationKind
	coeffs      []float64
	devPairs    []DeviationPair
	nChannels   int
	lowerEdges  []float64 // derived, length nChannels+1 for all valid kinds
}

// Kind returns the calibration's variant.
func (c *EnergyCalibration) Kind() CalibrationKind { return c.kind }

// Coefficients returns the calibration's raw coefficient (or lower-edge)
// sequence. Callers must not mutate the returned slice.
func (c *EnergyCalibration) Coefficients() []float64 { return c.coeffs }

// DeviationPairs returns the calibration's deviation pairs, sorted ascending
// by energy. Callers must not mutate the returned slice.
func (c *EnergyCalibration) DeviationPairs() []DeviationPair { return c.devPairs }

// NumChannels returns the channel count this calibration was constructed for.
func (c *EnergyCalibration) NumChannels() int { return c.nChannels }

// Valid reports whether the calibration satisfies its invariants.
func (c *EnergyCalibration) Valid() bool {
	return c != nil && c.kind != CalibrationInvalid
}

// Channels returns the per-channel lower-edge energy array (length
// nChannels+1), derived once at construction time.
func (c *EnergyCalibration) Channels() []float64 { return c.lowerEdges }

// ChannelEnergy returns the lower-edge energy of channel i, or 0 if the
// calibration is invalid or i is out of range.
func (c *EnergyCalibration) ChannelEnergy(i int) float64 {
	if !c.Valid() || i < 0 || i >= len(c.lowerEdges) {
		return 0
	}
	return c.lowerEdges[i]
}

func sortDeviationPairs(pairs []DeviationPair) []DeviationPair {
	if len(pairs) == 0 {
		return nil
	}
	out := make([]DeviationPair, len(pairs))
	copy(out, pairs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Energy < out[j].Energy })
	return out
}

func applyDeviationPairs(energy float64, pairs []DeviationPair) float64 {
	if len(pairs) == 0 {
		return energy
	}
	// Piecewise-linear interpolation of the offset curve defined by the
	// deviation pairs, extrapolated flat past the ends.
	if energy <= pairs[0].Energy {
		return energy + pairs[0].Offset
	}
	last := pairs[len(pairs)-1]
	if energy >= last.Energy {
		return energy + last.Offset
	}
	for i := 0; i < len(pairs)-1; i++ {
		a, b := pairs[i], pairs[i+1]
		if energy >= a.Energy && energy <= b.Energy {
			frac := (energy - a.Energy) / (b.Energy - a.Energy)
			offset := a.Offset + frac*(b.Offset-a.Offset)
			return energy + offset
		}
	}
	return energy
}

func polynomialEnergy(coeffs []float64, x float64) float64 {
	e := 0.0
	p := 1.0
	for _, c := range coeffs {
		e += c * p
		p *= x
	}
	return e
}

func strictlyIncreasing(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] <= vals[i-1] {
			return false
		}
	}
	return true
}

func nonDecreasing(vals []float64) bool {
	for i := 1; i < len(vals); i++ {
		if vals[i] < vals[i-1] {
			return false
		}
	}
	return true
}

// InvalidCoefficientsError is returned by the New* constructors when the
// derived lower-edge sequence is not strictly increasing, or too few
// coefficients were supplied.
type InvalidCoefficientsError struct {
	Reason string
}

func (e *InvalidCoefficientsError) Error() string {
	return fmt.Sprintf("invalid calibration coefficients: %s", e.Reason)
}

func deriveEdges(kind CalibrationKind, nChannels int, coeffs []float64) ([]float64, error) {
	edges := make([]float64, nChannels+1)
	switch kind {
	case CalibrationPolynomial, CalibrationUnspecifiedDefaultPolynomial:
		for ch := 0; ch <= nChannels; ch++ {
			edges[ch] = polynomialEnergy(coeffs, float64(ch))
		}
	case CalibrationFullRangeFraction:
		for ch := 0; ch <= nChannels; ch++ {
			frac := float64(ch) / float64(nChannels)
			edges[ch] = polynomialEnergy(coeffs, frac)
		}
	case CalibrationLowerChannelEdge:
		copy(edges, coeffs)
	default:
		return nil, &InvalidCoefficientsError{Reason: "unknown kind"}
	}
	if !strictlyIncreasing(edges) {
		return nil, &InvalidCoefficientsError{Reason: "derived channel energies are not strictly increasing"}
	}
	return edges, nil
}

func newPolyLike(kind CalibrationKind, nChannels int, coeffs []float64, dev []DeviationPair) (*EnergyCalibration, error) {
	if len(coeffs) < 2 {
		return nil, &InvalidCoefficientsError{Reason: "fewer than two coefficients"}
	}
	if nChannels < 1 {
		return nil, &InvalidCoefficientsError{Reason: "non-positive channel count"}
	}
	edges, err := deriveEdges(kind, nChannels, coeffs)
	if err != nil {
		return nil, err
	}
	cc := make([]float64, len(coeffs))
	copy(cc, coeffs)
	return &EnergyCalibration{
		kind:       kind,
		coeffs:     cc,
		devPairs:   sortDeviationPairs(dev),
		nChannels:  nChannels,
		lowerEdges: edges,
	}, nil
}

// NewPolynomial constructs a Polynomial calibration. Fails with
// InvalidCoefficientsError when coeffs has fewer than two entries or the
// derived lower-edge sequence is not strictly increasing on [0, nChannels].
func NewPolynomial(nChannels int, coeffs []float64, dev []DeviationPair) (*EnergyCalibration, error) {
	return newPolyLike(CalibrationPolynomial, nChannels, coeffs, dev)
}

// NewFullRangeFraction constructs a FullRangeFraction calibration with the
// same failure model as NewPolynomial.
func NewFullRangeFraction(nChannels int, coeffs []float64, dev []DeviationPair) (*EnergyCalibration, error) {
	return newPolyLike(CalibrationFullRangeFraction, nChannels, coeffs, dev)
}

// NewDefaultPolynomial behaves like NewPolynomial but marks the result as
// "unspecified/default" so a writer can choose not to persist it.
func NewDefaultPolynomial(nChannels int, coeffs []float64, dev []DeviationPair) (*EnergyCalibration, error) {
	return newPolyLike(CalibrationUnspecifiedDefaultPolynomial, nChannels, coeffs, dev)
}

// NewLowerChannelEdge constructs a LowerChannelEdge calibration. Requires
// exactly nChannels+1 edges, monotonically non-decreasing.
func NewLowerChannelEdge(nChannels int, edges []float64) (*EnergyCalibration, error) {
	if nChannels < 1 {
		return nil, &InvalidCoefficientsError{Reason: "non-positive channel count"}
	}
	if len(edges) != nChannels+1 {
		return nil, &InvalidCoefficientsError{Reason: fmt.Sprintf("expected %d edges, got %d", nChannels+1, len(edges))}
	}
	if !nonDecreasing(edges) {
		return nil, &InvalidCoefficientsError{Reason: "lower-channel-edge energies are not monotonically non-decreasing"}
	}
	cc := make([]float64, len(edges))
	copy(cc, edges)
	return &EnergyCalibration{
		kind:       CalibrationLowerChannelEdge,
		coeffs:     cc,
		nChannels:  nChannels,
		lowerEdges: cc,
	}, nil
}

// ToFullRangeFraction converts a Polynomial calibration into an equivalent
// FullRangeFraction calibration for the same channel count. Lossless for a
// fixed channel count.
func (c *EnergyCalibration) ToFullRangeFraction() (*EnergyCalibration, error) {
	if c.kind != CalibrationPolynomial && c.kind != CalibrationUnspecifiedDefaultPolynomial {
		return nil, fmt.Errorf("ToFullRangeFraction: calibration is %s, not Polynomial", c.kind)
	}
	n := float64(c.nChannels)
	frf := make([]float64, len(c.coeffs))
	p := 1.0
	for i, a := range c.coeffs {
		frf[i] = a * p
		p *= n
	}
	return newPolyLike(CalibrationFullRangeFraction, c.nChannels, frf, c.devPairs)
}

// ToPolynomial converts a FullRangeFraction calibration back to Polynomial
// form for the same channel count. Lossless for a fixed channel count.
func (c *EnergyCalibration) ToPolynomial() (*EnergyCalibration, error) {
	if c.kind != CalibrationFullRangeFraction {
		return nil, fmt.Errorf("ToPolynomial: calibration is %s, not FullRangeFraction", c.kind)
	}
	n := float64(c.nChannels)
	poly := make([]float64, len(c.coeffs))
	p := 1.0
	for i, a := range c.coeffs {
		poly[i] = a / p
		p *= n
	}
	return newPolyLike(CalibrationPolynomial, c.nChannels, poly, c.devPairs)
}

// ToLowerChannelEdge produces a new LowerChannelEdge calibration with the
// same channel energies as c.
func (c *EnergyCalibration) ToLowerChannelEdge() (*EnergyCalibration, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("ToLowerChannelEdge: calibration is invalid")
	}
	return NewLowerChannelEdge(c.nChannels, c.lowerEdges)
}

// cacheKey returns a content-addressed key for calibration interning: a
// blake2b-256 digest over the variant, coefficients, deviation pairs, and
// channel count, so equality is bit-for-bit on the serialized form rather
// than float equality (two calibrations that print identically but carry an
// ULP-different coefficient must not collide, and the same calibration must
// always hash the same way so the reconciliation cache can avoid re-parsing).
func (c *EnergyCalibration) cacheKey() [32]byte {
	h, _ := blake2b.New256(nil)
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(c.kind))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(c.nChannels))
	h.Write(buf[:])
	for _, v := range c.coeffs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	for _, p := range c.devPairs {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Energy))
		h.Write(buf[:])
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(p.Offset))
		h.Write(buf[:])
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// CacheKey exposes the calibration's content-addressed interning key as a
// hex-comparable byte array, for use by reconciliation's dedup pass.
func (c *EnergyCalibration) CacheKey() [32]byte { return c.cacheKey() }

// Equal reports whether two calibrations are equal: same variant, same
// coefficient sequence, same deviation-pair sequence, same channel
// count. Comparison is bit-for-bit via the cache key, not float tolerance.
func (c *EnergyCalibration) Equal(o *EnergyCalibration) bool {
	if c == o {
		return true
	}
	if c == nil || o == nil {
		return false
	}
	ck, ok := c.cacheKey(), o.cacheKey()
	return bytes.Equal(ck[:], ok[:])
}
