package coord

import (
	"fmt"
	"strings"
)

// Hemisphere is the direction letter pair used on the input form:
// BT (bujur timur, east), BB (bujur barat, west), LU (lintang utara, north), LS (lintang selatan, south)
type Hemisphere string

const (
	East  Hemisphere = "BT"
	West  Hemisphere = "BB"
	North Hemisphere = "LU"
	South Hemisphere = "LS"
)

// ParseHemisphere normalizes a hemisphere letter pair, ignoring case and surrounding spaces
func ParseHemisphere(s string) (Hemisphere, error) {
	h := Hemisphere(strings.ToUpper(strings.TrimSpace(s)))
	switch h {
	case East, West, North, South:
		return h, nil
	}
	return "", fmt.Errorf("%w: unknown hemisphere %q", ErrInvalidInput, s)
}

// Negative reports whether the hemisphere flips the sign of the angle
func (h Hemisphere) Negative() bool {
	return h == South || h == West
}

// IsLongitude reports whether the hemisphere belongs to a longitude (bujur)
func (h Hemisphere) IsLongitude() bool {
	return h == East || h == West
}

// IsLatitude reports whether the hemisphere belongs to a latitude (lintang)
func (h Hemisphere) IsLatitude() bool {
	return h == North || h == South
}

// ToDecimalDegrees converts degrees/minutes/seconds to signed decimal degrees.
// Out-of-range minutes or seconds are not rejected here; the result is still
// numerically defined and range checks belong to the caller.
func ToDecimalDegrees(degree, minute, second float64, h Hemisphere) float64 {
	dd := degree + minute/60 + second/3600
	if h.Negative() {
		dd = -dd
	}
	return dd
}
