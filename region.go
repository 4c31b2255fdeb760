package gojp2

import (
	"fmt"
	"image"
	"strings"
)

// Region is an N-dimensional axis-aligned box given by a start index and a
// size per dimension. Regions are values; methods never modify the receiver.
type Region struct {
	Index []int
	Size  []int
}

// NewRegion returns a region with copies of index and size.
func NewRegion(index, size []int) (Region, error) {
	if len(index) != len(size) {
		return Region{}, fmt.Errorf("%w: index has %d dimensions, size has %d", ErrInvalidRegion, len(index), len(size))
	}
	for d, s := range size {
		if s < 0 {
			return Region{}, fmt.Errorf("%w: negative size %d in dimension %d", ErrInvalidRegion, s, d)
		}
	}
	return Region{Index: cloneInts(index), Size: cloneInts(size)}, nil
}

// NewRegion2D returns the 2-D region starting at (x, y) with the given width and height.
// Negative sizes are clamped to zero, which yields an empty region.
func NewRegion2D(x, y, width, height int) Region {
	return Region{Index: []int{x, y}, Size: []int{max(width, 0), max(height, 0)}}
}

// RegionFromRectangle converts an image.Rectangle to a 2-D region.
func RegionFromRectangle(r image.Rectangle) Region {
	return NewRegion2D(r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Dimensions returns the number of dimensions.
func (r Region) Dimensions() int {
	return len(r.Size)
}

// Start returns the first index in dimension d.
func (r Region) Start(d int) int {
	return r.Index[d]
}

// End returns the index one past the last index in dimension d.
func (r Region) End(d int) int {
	return r.Index[d] + r.Size[d]
}

// IsEmpty reports whether the region covers no pixels.
func (r Region) IsEmpty() bool {
	if len(r.Size) == 0 {
		return true
	}
	for _, s := range r.Size {
		if s <= 0 {
			return true
		}
	}
	return false
}

// NumPixels returns the number of pixels in the region.
func (r Region) NumPixels() int {
	if r.IsEmpty() {
		return 0
	}
	n := 1
	for _, s := range r.Size {
		n *= s
	}
	return n
}

// Contains reports whether other lies entirely within r.
// An empty other is contained in any region of the same dimensionality.
func (r Region) Contains(other Region) bool {
	if r.Dimensions() != other.Dimensions() || !r.wellFormed() || !other.wellFormed() {
		return false
	}
	if other.IsEmpty() {
		return true
	}
	for d := range r.Size {
		if other.Start(d) < r.Start(d) || other.End(d) > r.End(d) {
			return false
		}
	}
	return true
}

// wellFormed reports whether the index and size have the same length.
func (r Region) wellFormed() bool {
	return len(r.Index) == len(r.Size)
}

// IsInside reports whether r lies within extent.
func (r Region) IsInside(extent Region) bool {
	return extent.Contains(r)
}

// Intersect returns the overlap of the two regions; the result is empty
// when they do not overlap.
func (r Region) Intersect(other Region) Region {
	if r.Dimensions() != other.Dimensions() || !r.wellFormed() || !other.wellFormed() {
		return Region{}
	}
	out := Region{Index: make([]int, r.Dimensions()), Size: make([]int, r.Dimensions())}
	for d := range r.Size {
		start := max(r.Start(d), other.Start(d))
		end := min(r.End(d), other.End(d))
		out.Index[d] = start
		out.Size[d] = max(end-start, 0)
	}
	return out
}

// Union returns the smallest region containing both regions. An empty
// region contributes nothing.
func (r Region) Union(other Region) Region {
	if other.IsEmpty() || !other.wellFormed() {
		return r.Clone()
	}
	if r.IsEmpty() || r.Dimensions() != other.Dimensions() || !r.wellFormed() {
		return other.Clone()
	}
	out := Region{Index: make([]int, r.Dimensions()), Size: make([]int, r.Dimensions())}
	for d := range r.Size {
		start := min(r.Start(d), other.Start(d))
		out.Index[d] = start
		out.Size[d] = max(r.End(d), other.End(d)) - start
	}
	return out
}

// Equal reports whether both regions have the same index and size.
func (r Region) Equal(other Region) bool {
	if r.Dimensions() != other.Dimensions() || len(r.Index) != len(other.Index) {
		return false
	}
	for d := range r.Size {
		if r.Index[d] != other.Index[d] || r.Size[d] != other.Size[d] {
			return false
		}
	}
	return true
}

// Rectangle returns the first two dimensions as an image.Rectangle.
func (r Region) Rectangle() image.Rectangle {
	if r.Dimensions() < 2 {
		return image.Rectangle{}
	}
	return image.Rect(r.Index[0], r.Index[1], r.End(0), r.End(1))
}

// Clone returns a deep copy.
func (r Region) Clone() Region {
	return Region{Index: cloneInts(r.Index), Size: cloneInts(r.Size)}
}

func (r Region) String() string {
	var sb strings.Builder
	sb.WriteString("index=(")
	for d, v := range r.Index {
		if d > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteString(") size=(")
	for d, v := range r.Size {
		if d > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "%d", v)
	}
	sb.WriteString(")")
	return sb.String()
}

func cloneInts(v []int) []int {
	if v == nil {
		return nil
	}
	out := make([]int, len(v))
	copy(out, v)
	return out
}
