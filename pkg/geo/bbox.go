// Package geo holds planar longitude/latitude boxes and the query-area limiter
// used to keep image searches inside the external API's area cap.
package geo

import (
	"fmt"
	"math"
	"strconv"

	"github.com/golang/geo/r1"
	"github.com/golang/geo/r2"
)

// BoundingBox is a rectangle in degrees, X = longitude and Y = latitude.
type BoundingBox struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// NewBoundingBox builds a box from the catalog's [minLon, minLat, maxLon, maxLat] order.
func NewBoundingBox(minLon, minLat, maxLon, maxLat float64) BoundingBox {
	return BoundingBox{MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat}
}

func (b BoundingBox) rect() r2.Rect {
	return r2.Rect{
		X: r1.Interval{Lo: b.MinLon, Hi: b.MaxLon},
		Y: r1.Interval{Lo: b.MinLat, Hi: b.MaxLat},
	}
}

// Valid reports whether the box is non-degenerate and finite.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinLon < b.MaxLon && b.MinLat < b.MaxLat
}

func (b BoundingBox) Width() float64  { return b.rect().X.Length() }
func (b BoundingBox) Height() float64 { return b.rect().Y.Length() }

// Area is the raw area in square degrees.
func (b BoundingBox) Area() float64 {
	size := b.rect().Size()
	return size.X * size.Y
}

// Contains reports whether other lies entirely inside b.
func (b BoundingBox) Contains(other BoundingBox) bool {
	return b.rect().Contains(other.rect())
}

// RoundInward snaps the box onto the precision grid without growing it: the
// minimums round up and the maximums round down. Coordinates already on the
// grid are left alone. The result may be degenerate when b is thinner than
// one grid step.
func (b BoundingBox) RoundInward(precision int) BoundingBox {
	eps := gridEpsilon(precision)
	return BoundingBox{
		MinLon: ceilTo(b.MinLon-eps, precision),
		MinLat: ceilTo(b.MinLat-eps, precision),
		MaxLon: floorTo(b.MaxLon+eps, precision),
		MaxLat: floorTo(b.MaxLat+eps, precision),
	}
}

// String renders the box the way the image API expects it: minLon,minLat,maxLon,maxLat.
func (b BoundingBox) String() string {
	return fmt.Sprintf("%s,%s,%s,%s", formatDegrees(b.MinLon), formatDegrees(b.MinLat), formatDegrees(b.MaxLon), formatDegrees(b.MaxLat))
}

func formatDegrees(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}

func floorTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Floor(v*p) / p
}

func ceilTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Ceil(v*p) / p
}
