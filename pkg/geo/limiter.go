package geo

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrRegionTooLarge means the box exceeds the area limit and cannot be shrunk
	// to a compliant sub-box. Callers should skip the region for this attempt.
	ErrRegionTooLarge = errors.New("region too large for query area limit")
	ErrInvalidBox     = errors.New("invalid bounding box")
)

// RandomSource supplies uniform floats in [0, 1).
type RandomSource interface {
	Float64() float64
}

// Limiter derives boxes that satisfy the image API's maximum query area.
type Limiter struct {
	areaLimit float64
	precision int
	side      float64
	rand      RandomSource
}

// NewLimiter returns a Limiter for areaLimit square degrees whose output is
// snapped to precision decimal places.
func NewLimiter(areaLimit float64, precision int, src RandomSource) (*Limiter, error) {
	if areaLimit <= 0 || math.IsNaN(areaLimit) || math.IsInf(areaLimit, 0) {
		return nil, fmt.Errorf("area limit must be positive, got %v", areaLimit)
	}
	if precision < 0 || precision > 10 {
		return nil, fmt.Errorf("precision must be within [0, 10], got %d", precision)
	}
	if src == nil {
		return nil, errors.New("random source is required")
	}
	// Flooring the edge keeps side*side <= areaLimit once coordinates are on the grid.
	side := floorTo(math.Sqrt(areaLimit), precision)
	if side <= 0 {
		return nil, fmt.Errorf("precision %d too coarse for area limit %v", precision, areaLimit)
	}
	return &Limiter{areaLimit: areaLimit, precision: precision, side: side, rand: src}, nil
}

func (l *Limiter) AreaLimit() float64  { return l.areaLimit }
func (l *Limiter) SideLength() float64 { return l.side }

// Limit returns a box that can be sent to the image API. The result is on the
// precision grid, inside b, and no larger than the area limit.
//
// When b is larger than the square edge in both dimensions a side x side box
// is placed at a uniformly random offset inside b. Otherwise b is snapped
// inward onto the grid, provided its raw area is within the limit; if not,
// the error wraps ErrRegionTooLarge. A box too thin to survive snapping
// fails with ErrInvalidBox.
func (l *Limiter) Limit(b BoundingBox) (BoundingBox, error) {
	if !b.Valid() {
		return BoundingBox{}, fmt.Errorf("%w: %s", ErrInvalidBox, b)
	}

	var out BoundingBox
	lonSlack := b.Width() - l.side
	latSlack := b.Height() - l.side
	if lonSlack <= 0 || latSlack <= 0 {
		if area := b.Area(); area > l.areaLimit {
			return BoundingBox{}, fmt.Errorf("%w: area %.6f > %.6f", ErrRegionTooLarge, area, l.areaLimit)
		}
		out = b.RoundInward(l.precision)
	} else {
		out.MinLon, out.MaxLon = l.place(b.MinLon, b.MaxLon)
		out.MinLat, out.MaxLat = l.place(b.MinLat, b.MaxLat)
	}

	if !out.Valid() {
		return BoundingBox{}, fmt.Errorf("%w: %s collapses on the %d-decimal grid", ErrInvalidBox, b, l.precision)
	}
	if area := out.Area(); area > l.areaLimit {
		return BoundingBox{}, fmt.Errorf("%w: snapped area %.6f > %.6f", ErrRegionTooLarge, area, l.areaLimit)
	}
	return out, nil
}

// place picks a side-length span on the grid inside [lo, hi]. When the slack
// is narrower than one grid step there is no room to move, and the whole
// range is snapped inward instead; that span is a grid multiple below
// side + step, so it is at most side long.
func (l *Limiter) place(lo, hi float64) (float64, float64) {
	eps := gridEpsilon(l.precision)
	first := ceilTo(lo-eps, l.precision)
	last := floorTo(hi-l.side+eps, l.precision)
	if last < first {
		return first, floorTo(hi+eps, l.precision)
	}
	start := roundTo(first+l.rand.Float64()*(last-first), l.precision)
	return start, roundTo(start+l.side, l.precision)
}

// gridEpsilon absorbs float noise so values already on the grid stay put.
func gridEpsilon(precision int) float64 {
	return math.Pow10(-precision) * 1e-6
}
