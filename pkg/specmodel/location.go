package specmodel

import "math"

// GeographicPoint is a GPS position, with NaN fields meaning "not set" —
// mirroring original_source/SpecUtils/SpecFile_location.h's GeographicPoint.
type GeographicPoint struct {
	Latitude                float64
	Longitude                float64
	Elevation                float32
	ElevationOffset          float32
	CoordsAccuracy           float32
	ElevationAccuracy        float32
	ElevationOffsetAccuracy  float32
}

// HasCoordinates reports whether both latitude and longitude are set.
func (g *GeographicPoint) HasCoordinates() bool {
	if g == nil {
		return false
	}
	return !math.IsNaN(g.Latitude) && !math.IsNaN(g.Longitude)
}

// NewGeographicPoint returns a point with every field set to "not specified".
func NewGeographicPoint() *GeographicPoint {
	nan := math.NaN()
	return &GeographicPoint{
		Latitude: nan, Longitude: nan,
		Elevation: float32(nan), ElevationOffset: float32(nan),
		CoordsAccuracy: float32(nan), ElevationAccuracy: float32(nan),
		ElevationOffsetAccuracy: float32(nan),
	}
}

// RelativeCoordinateType distinguishes Cartesian from Polar RelativeLocation
// representations; a RelativeLocation may carry one or the other, never both.
type RelativeCoordinateType int

const (
	// RelativeUndefined means neither Cartesian nor Polar coordinates were set.
	RelativeUndefined RelativeCoordinateType = iota
	RelativeCartesian
	RelativePolar
)

// RelativeLocation describes a position relative to a reference origin,
// either as Cartesian (dx,dy,dz) or Polar (azimuth,inclination,distance).
// Mirrors original_source's RelativeLocation; the x/y/z vs
// azimuth/inclination/distance axis swap documented there is preserved.
type RelativeLocation struct {
	coordType    RelativeCoordinateType
	coordinates  [3]float32 // Cartesian: [dx,dy,dz]; Polar: [azimuth,inclination,distance]

	OriginDescription string
	OriginGeoPoint    *GeographicPoint
}

// FromCartesian sets the location from a displacement triple.
func (r *RelativeLocation) FromCartesian(dx, dy, dz float32) {
	r.coordType = RelativeCartesian
	r.coordinates = [3]float32{dx, dy, dz}
}

// FromPolar sets the location from azimuth/inclination/distance.
// azimuth, inclination in degrees in [-180,180]/[-90,90]; distance in mm.
func (r *RelativeLocation) FromPolar(azimuth, inclination, distance float32) {
	r.coordType = RelativePolar
	r.coordinates = [3]float32{azimuth, inclination, distance}
}

// Type reports which coordinate system is populated.
func (r *RelativeLocation) Type() RelativeCoordinateType { return r.coordType }

// DX returns the horizontal displacement, converting from Polar if needed.
// Returns 0 if neither representation is set.
func (r *RelativeLocation) DX() float32 {
	switch r.coordType {
	case RelativeCartesian:
		return r.coordinates[0]
	case RelativePolar:
		az, incl, dist := r.polar()
		return dist * cosf(incl) * sinf(az)
	default:
		return 0
	}
}

// DY returns the vertical displacement, converting from Polar if needed.
func (r *RelativeLocation) DY() float32 {
	switch r.coordType {
	case RelativeCartesian:
		return r.coordinates[1]
	case RelativePolar:
		_, incl, dist := r.polar()
		return dist * sinf(incl)
	default:
		return 0
	}
}

// DZ returns the detector-axis displacement, converting from Polar if needed.
func (r *RelativeLocation) DZ() float32 {
	switch r.coordType {
	case RelativeCartesian:
		return r.coordinates[2]
	case RelativePolar:
		az, incl, dist := r.polar()
		return dist * cosf(incl) * cosf(az)
	default:
		return 0
	}
}

func (r *RelativeLocation) polar() (azimuth, inclination, distance float32) {
	return r.coordinates[0], r.coordinates[1], r.coordinates[2]
}

// Azimuth returns the horizontal angle in degrees, NaN if not set or Cartesian.
func (r *RelativeLocation) Azimuth() float32 {
	if r.coordType != RelativePolar {
		return float32(math.NaN())
	}
	return r.coordinates[0]
}

// Inclination returns the vertical angle in degrees, NaN if not set or Cartesian.
func (r *RelativeLocation) Inclination() float32 {
	if r.coordType != RelativePolar {
		return float32(math.NaN())
	}
	return r.coordinates[1]
}

// Distance returns the distance in millimeters, NaN if not set or Cartesian.
func (r *RelativeLocation) Distance() float32 {
	if r.coordType != RelativePolar {
		return float32(math.NaN())
	}
	return r.coordinates[2]
}

func sinf(deg float32) float32 { return float32(math.Sin(float64(deg) * math.Pi / 180)) }
func cosf(deg float32) float32 { return float32(math.Cos(float64(deg) * math.Pi / 180)) }

// Orientation is the azimuth/inclination/roll of an instrument, detector, or
// measured item, in degrees. Mirrors original_source's Orientation.
type Orientation struct {
	Azimuth     float32
	Inclination float32
	Roll        float32
}

// LocationStateType distinguishes which N42-2012 state element a
// LocationState came from.
type LocationStateType int

const (
	LocationStateUndefined LocationStateType = iota
	LocationStateDetector
	LocationStateInstrument
	LocationStateItem
)

// LocationState bundles optional geographic position, relative position, and
// orientation, plus a speed reading, mirroring original_source's
// LocationState (an approximation of N42-2012's <StateVector>).
type LocationState struct {
	Type             LocationStateType
	Speed            float32 // NaN if not set; meters/second
	GeoLocation      *GeographicPoint
	RelativeLocation *RelativeLocation
	Orientation      *Orientation
}

// NewLocationState returns a LocationState with Speed set to NaN.
func NewLocationState(t LocationStateType) *LocationState {
	return &LocationState{Type: t, Speed: float32(math.NaN())}
}
