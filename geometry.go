package gojp2

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Geometry describes an image as seen by the streaming I/O: its extent,
// pass-through physical placement and pixel layout. For reads it is filled
// in by ReadImageInformation; for writes the caller sets it.
type Geometry struct {
	Dimensions    []int
	Origin        []float64
	Spacing       []float64
	Components    int
	ComponentType ComponentType
	PixelType     PixelType
	BitDepth      int

	// Intrinsic layout reported by the codec. TileSize is the tile size
	// of the file for reads; it is ignored for writes.
	TileSize       []int
	NumResolutions int
	NumTiles       int
}

// NewGeometry2D returns a 2-D geometry with unit spacing and zero origin.
func NewGeometry2D(width, height, components int, ct ComponentType) Geometry {
	return Geometry{
		Dimensions:    []int{width, height},
		Origin:        []float64{0, 0},
		Spacing:       []float64{1, 1},
		Components:    components,
		ComponentType: ct,
		PixelType:     pixelTypeFor(components),
		BitDepth:      8 * ct.Size(),
	}
}

// LargestPossibleRegion returns the full extent of the image.
func (g Geometry) LargestPossibleRegion() Region {
	return Region{Index: make([]int, len(g.Dimensions)), Size: cloneInts(g.Dimensions)}
}

// PixelBytes returns the number of bytes of one pixel in a buffer.
func (g Geometry) PixelBytes() int {
	return g.Components * g.ComponentType.Size()
}

// BufferSize returns the number of bytes a buffer covering region must have.
func (g Geometry) BufferSize(region Region) int {
	return region.NumPixels() * g.PixelBytes()
}

// Clone returns a deep copy.
func (g Geometry) Clone() Geometry {
	c := g
	c.Dimensions = cloneInts(g.Dimensions)
	c.TileSize = cloneInts(g.TileSize)
	if g.Origin != nil {
		c.Origin = append([]float64(nil), g.Origin...)
	}
	if g.Spacing != nil {
		c.Spacing = append([]float64(nil), g.Spacing...)
	}
	return c
}

func (g Geometry) validate() error {
	if len(g.Dimensions) != 2 {
		return fmt.Errorf("%w: %d-dimensional images are not supported", ErrInvalidRegion, len(g.Dimensions))
	}
	for d, s := range g.Dimensions {
		if s <= 0 {
			return fmt.Errorf("%w: size %d in dimension %d", ErrInvalidRegion, s, d)
		}
	}
	return nil
}

func (g Geometry) origin(d int) float64 {
	if d < len(g.Origin) {
		return g.Origin[d]
	}
	return 0
}

func (g Geometry) spacing(d int) float64 {
	if d < len(g.Spacing) && g.Spacing[d] != 0 {
		return g.Spacing[d]
	}
	return 1
}

// PointFromIndex converts a pixel index to a physical point.
func (g Geometry) PointFromIndex(x, y int) orb.Point {
	return orb.Point{
		g.origin(0) + float64(x)*g.spacing(0),
		g.origin(1) + float64(y)*g.spacing(1),
	}
}

// IndexFromPoint converts a physical point to the nearest pixel index.
func (g Geometry) IndexFromPoint(p orb.Point) (int, int) {
	x := math.Round((p[0] - g.origin(0)) / g.spacing(0))
	y := math.Round((p[1] - g.origin(1)) / g.spacing(1))
	return int(x), int(y)
}

// RegionBound returns the physical bounding box of a 2-D region, measured
// from the first pixel's index to one past the last.
func (g Geometry) RegionBound(r Region) orb.Bound {
	if r.Dimensions() < 2 {
		return orb.Bound{}
	}
	a := g.PointFromIndex(r.Start(0), r.Start(1))
	b := g.PointFromIndex(r.End(0), r.End(1))
	return orb.Bound{
		Min: orb.Point{math.Min(a[0], b[0]), math.Min(a[1], b[1])},
		Max: orb.Point{math.Max(a[0], b[0]), math.Max(a[1], b[1])},
	}
}

// RegionFromBound returns the smallest region of whole pixels covering
// bound, clipped to the image extent.
func (g Geometry) RegionFromBound(bound orb.Bound) Region {
	x0 := math.Floor((bound.Min[0] - g.origin(0)) / g.spacing(0))
	x1 := math.Ceil((bound.Max[0] - g.origin(0)) / g.spacing(0))
	y0 := math.Floor((bound.Min[1] - g.origin(1)) / g.spacing(1))
	y1 := math.Ceil((bound.Max[1] - g.origin(1)) / g.spacing(1))
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	r := NewRegion2D(int(x0), int(y0), int(x1-x0), int(y1-y0))
	return r.Intersect(g.LargestPossibleRegion())
}

// RegionPolygon returns the physical outline of a 2-D region.
func (g Geometry) RegionPolygon(r Region) orb.Polygon {
	return PolygonFromBounds(g.RegionBound(r))
}

// PolygonFromBounds creates a polygon from a bounding box. Bounds without
// area give an empty polygon.
func PolygonFromBounds(bound orb.Bound) orb.Polygon {
	if bound.IsEmpty() || bound.Left() == bound.Right() || bound.Bottom() == bound.Top() {
		return orb.Polygon{}
	}

	ring := orb.Ring{
		{bound.Min[0], bound.Min[1]},
		{bound.Max[0], bound.Min[1]},
		{bound.Max[0], bound.Max[1]},
		{bound.Min[0], bound.Max[1]},
		{bound.Min[0], bound.Min[1]},
	}

	return orb.Polygon{ring}
}
