package coord

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidInput marks every validation failure on a submitted batch
var ErrInvalidInput = errors.New("invalid input")

// Row is one submitted coordinate record. Either the DMS sextuple for both axes
// or the decimal X/Y pair must be present; the decimal pair wins when both are.
type Row struct {
	ID string `json:"id"`

	LonDegree     *float64 `json:"bujur_derajat,omitempty"`
	LonMinute     *float64 `json:"bujur_menit,omitempty"`
	LonSecond     *float64 `json:"bujur_detik,omitempty"`
	LonHemisphere string   `json:"BT_BB,omitempty"`
	LatDegree     *float64 `json:"lintang_derajat,omitempty"`
	LatMinute     *float64 `json:"lintang_menit,omitempty"`
	LatSecond     *float64 `json:"lintang_detik,omitempty"`
	LatHemisphere string   `json:"LU_LS,omitempty"`

	X *float64 `json:"x,omitempty"`
	Y *float64 `json:"y,omitempty"`
}

// Position is a resolved row: decimal longitude/latitude in EPSG:4326
type Position struct {
	ID  string  `json:"id"`
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// IsDecimal reports whether the row carries a direct decimal pair
func (r Row) IsDecimal() bool {
	return r.X != nil && r.Y != nil
}

// Position converts the row to decimal degrees and checks value ranges
func (r Row) Position() (Position, error) {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		return Position{}, fmt.Errorf("%w: missing id", ErrInvalidInput)
	}

	var lon, lat float64
	if r.IsDecimal() {
		lon, lat = *r.X, *r.Y
	} else {
		var err error
		lon, err = axis(id, "bujur", r.LonDegree, r.LonMinute, r.LonSecond, r.LonHemisphere, Hemisphere.IsLongitude)
		if err != nil {
			return Position{}, err
		}
		lat, err = axis(id, "lintang", r.LatDegree, r.LatMinute, r.LatSecond, r.LatHemisphere, Hemisphere.IsLatitude)
		if err != nil {
			return Position{}, err
		}
	}

	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return Position{}, fmt.Errorf("%w: row %s: coordinate is not a finite number", ErrInvalidInput, id)
	}
	if lon < -180 || lon > 180 {
		return Position{}, fmt.Errorf("%w: row %s: longitude %.6f outside [-180, 180]", ErrInvalidInput, id, lon)
	}
	if lat < -90 || lat > 90 {
		return Position{}, fmt.Errorf("%w: row %s: latitude %.6f outside [-90, 90]", ErrInvalidInput, id, lat)
	}

	return Position{ID: id, Lon: lon, Lat: lat}, nil
}

func axis(id, name string, deg, mnt, sec *float64, hemi string, fits func(Hemisphere) bool) (float64, error) {
	if deg == nil || mnt == nil || sec == nil || strings.TrimSpace(hemi) == "" {
		return 0, fmt.Errorf("%w: row %s: missing %s columns (need degree, minute, second and hemisphere, or x/y)", ErrInvalidInput, id, name)
	}
	if *deg < 0 || *mnt < 0 || *sec < 0 {
		return 0, fmt.Errorf("%w: row %s: %s degree, minute and second must be non-negative", ErrInvalidInput, id, name)
	}
	h, err := ParseHemisphere(hemi)
	if err != nil {
		return 0, fmt.Errorf("row %s: %w", id, err)
	}
	if !fits(h) {
		return 0, fmt.Errorf("%w: row %s: hemisphere %s is not valid for %s", ErrInvalidInput, id, h, name)
	}
	return ToDecimalDegrees(*deg, *mnt, *sec, h), nil
}

// Resolve converts a whole batch, enforcing a non-empty batch and unique ids
func Resolve(rows []Row) ([]Position, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(rows))
	positions := make([]Position, 0, len(rows))
	for _, row := range rows {
		p, err := row.Position()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidInput, p.ID)
		}
		seen[p.ID] = struct{}{}
		positions = append(positions, p)
	}
	return positions, nil
}

// Truncate caps the batch at limit rows; limit <= 0 disables the ceiling.
// The second return value is true when rows were dropped.
func Truncate(rows []Row, limit int) ([]Row, bool) {
	if limit <= 0 || len(rows) <= limit {
		return rows, false
	}
	return rows[:limit], true
}
