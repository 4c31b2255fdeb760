package gojp2

import "fmt"

// AlignToTiles returns the streamable region for requested: the smallest
// region that contains requested, starts and ends on tile boundaries of the
// grid anchored at index 0, and is clipped to fullExtent.
//
// requested must be non-empty and inside fullExtent, and every tile size
// must be at least 1. AlignToTiles touches no shared state.
func AlignToTiles(requested, fullExtent Region, tileSize []int) (Region, error) {
	if !requested.wellFormed() || !fullExtent.wellFormed() {
		return Region{}, fmt.Errorf("%w: index and size lengths differ (requested %s, extent %s)",
			ErrInvalidRegion, requested, fullExtent)
	}
	if requested.IsEmpty() {
		return Region{}, fmt.Errorf("%w: requested region %s is empty", ErrInvalidRegion, requested)
	}
	dims := requested.Dimensions()
	if fullExtent.Dimensions() != dims || len(tileSize) != dims {
		return Region{}, fmt.Errorf("%w: dimension mismatch (requested %d, extent %d, tile %d)",
			ErrInvalidRegion, dims, fullExtent.Dimensions(), len(tileSize))
	}
	if !requested.IsInside(fullExtent) {
		return Region{}, fmt.Errorf("%w: requested region %s is outside %s", ErrInvalidRegion, requested, fullExtent)
	}

	aligned := Region{Index: make([]int, dims), Size: make([]int, dims)}
	for d := 0; d < dims; d++ {
		ts := tileSize[d]
		if ts < 1 {
			return Region{}, fmt.Errorf("%w: tile size %d in dimension %d", ErrInvalidRegion, ts, d)
		}
		start := floorDiv(requested.Start(d), ts) * ts
		end := ceilDiv(requested.End(d), ts) * ts
		// The grid is anchored at 0, but the extent may not be.
		start = max(start, fullExtent.Start(d))
		end = min(end, fullExtent.End(d))
		aligned.Index[d] = start
		aligned.Size[d] = end - start
	}
	return aligned, nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}

// TileGrid is the rectangular tile layout of an image.
type TileGrid struct {
	Extent   Region
	TileSize []int
}

// NewTileGrid returns the grid covering extent. Tile sizes below 1 are
// replaced by the extent size in that dimension, i.e. a single tile.
func NewTileGrid(extent Region, tileSize []int) TileGrid {
	ts := make([]int, extent.Dimensions())
	for d := range ts {
		if d < len(tileSize) && tileSize[d] > 0 {
			ts[d] = tileSize[d]
		} else {
			ts[d] = max(extent.Size[d], 1)
		}
	}
	return TileGrid{Extent: extent.Clone(), TileSize: ts}
}

// NumTiles returns the number of tiles along dimension d.
func (g TileGrid) NumTiles(d int) int {
	if g.Extent.Size[d] == 0 {
		return 0
	}
	return ceilDiv(g.Extent.End(d), g.TileSize[d]) - floorDiv(g.Extent.Start(d), g.TileSize[d])
}

// Count returns the total number of tiles.
func (g TileGrid) Count() int {
	n := 1
	for d := range g.TileSize {
		n *= g.NumTiles(d)
	}
	return n
}

// TileRegion returns the pixels covered by the tile at coord, clipped to the extent.
func (g TileGrid) TileRegion(coord []int) Region {
	r := Region{Index: make([]int, len(coord)), Size: make([]int, len(coord))}
	for d, c := range coord {
		r.Index[d] = (floorDiv(g.Extent.Start(d), g.TileSize[d]) + c) * g.TileSize[d]
		r.Size[d] = g.TileSize[d]
	}
	return r.Intersect(g.Extent)
}

// TileIndex returns the row-major index of the tile at coord, dimension 0 varying fastest.
func (g TileGrid) TileIndex(coord []int) int {
	idx := 0
	stride := 1
	for d, c := range coord {
		idx += c * stride
		stride *= g.NumTiles(d)
	}
	return idx
}

// TilesIntersecting returns the coordinates of every tile overlapping region,
// dimension 0 varying fastest.
func (g TileGrid) TilesIntersecting(region Region) [][]int {
	clipped := region.Intersect(g.Extent)
	if clipped.IsEmpty() {
		return nil
	}
	dims := clipped.Dimensions()
	first := make([]int, dims)
	last := make([]int, dims)
	total := 1
	for d := 0; d < dims; d++ {
		origin := floorDiv(g.Extent.Start(d), g.TileSize[d])
		first[d] = floorDiv(clipped.Start(d), g.TileSize[d]) - origin
		last[d] = floorDiv(clipped.End(d)-1, g.TileSize[d]) - origin
		total *= last[d] - first[d] + 1
	}

	coords := make([][]int, 0, total)
	current := cloneInts(first)
	for {
		coords = append(coords, cloneInts(current))
		d := 0
		for ; d < dims; d++ {
			if current[d] < last[d] {
				current[d]++
				break
			}
			current[d] = first[d]
		}
		if d == dims {
			return coords
		}
	}
}

// copyRegion copies the overlap of srcRegion and dstRegion from src to dst.
// Both buffers are laid out over their own region with dimension 0 varying
// fastest and pixelBytes bytes per pixel. It returns the number of pixels copied.
func copyRegion(dst []byte, dstRegion Region, src []byte, srcRegion Region, pixelBytes int) int {
	overlap := dstRegion.Intersect(srcRegion)
	if overlap.IsEmpty() {
		return 0
	}
	dims := overlap.Dimensions()
	rowBytes := overlap.Size[0] * pixelBytes

	pos := cloneInts(overlap.Index)
	copied := 0
	for {
		srcOff := pixelOffset(srcRegion, pos) * pixelBytes
		dstOff := pixelOffset(dstRegion, pos) * pixelBytes
		copy(dst[dstOff:dstOff+rowBytes], src[srcOff:srcOff+rowBytes])
		copied += overlap.Size[0]

		d := 1
		for ; d < dims; d++ {
			if pos[d] < overlap.End(d)-1 {
				pos[d]++
				break
			}
			pos[d] = overlap.Start(d)
		}
		if d >= dims {
			return copied
		}
	}
}

// pixelOffset returns the linear pixel offset of pos inside a buffer laid out over region.
func pixelOffset(region Region, pos []int) int {
	off := 0
	stride := 1
	for d := range region.Size {
		off += (pos[d] - region.Index[d]) * stride
		stride *= region.Size[d]
	}
	return off
}
