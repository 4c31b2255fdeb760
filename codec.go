package gojp2

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	jpeg2000 "github.com/mrjoshuak/go-jpeg2000"
)

const decodeBufferSize = 64 * 1024

// codecHandle owns the codec state of one open file: a decode source with
// its metadata, or an encode raster with its temporary output file.
type codecHandle struct {
	// decode
	src      source
	meta     *jpeg2000.Metadata
	format   Format
	header   int64
	complete bool // codestream ends with EOC

	// encode
	path     string
	tmp      *os.File
	geom     Geometry
	tileSize []int
	writer   WriterConfig
	raster   []byte
	written  map[int]bool

	closed bool
}

// openDecode reads the metadata and header offset of src. The handle takes
// ownership of src, also on failure.
func openDecode(src source) (*codecHandle, error) {
	h := &codecHandle{src: src}
	if err := h.readHeader(); err != nil {
		src.Close()
		return nil, err
	}
	return h, nil
}

func (h *codecHandle) readHeader() error {
	if _, err := h.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, h.src.Name(), err)
	}
	h.format = sniffReader(h.src)
	if h.format == FormatUnknown {
		return fmt.Errorf("%w: %s has no JPEG 2000 signature", ErrUnsupportedFormat, h.src.Name())
	}

	if _, err := h.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileOpen, h.src.Name(), err)
	}
	meta, err := jpeg2000.DecodeMetadata(bufio.NewReaderSize(h.src, decodeBufferSize))
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnsupportedFormat, h.src.Name(), err)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return fmt.Errorf("%w: %s: image size %dx%d", ErrUnsupportedFormat, h.src.Name(), meta.Width, meta.Height)
	}
	if meta.NumComponents < 1 || meta.NumComponents > 4 {
		return fmt.Errorf("%w: %s: %d components", ErrUnsupportedFormat, h.src.Name(), meta.NumComponents)
	}
	h.meta = meta

	h.header, err = headerOffset(h.src)
	if err != nil {
		return fmt.Errorf("%s: %w", h.src.Name(), err)
	}
	h.complete, err = codestreamComplete(h.src)
	if err != nil {
		return fmt.Errorf("%s: %w", h.src.Name(), err)
	}
	return nil
}

// geometry describes the open file. A tile size of zero reported by the
// codec means the whole image is a single tile.
func (h *codecHandle) geometry() (Geometry, error) {
	m := h.meta
	bits, signed := 0, false
	for _, b := range m.BitsPerComponent {
		bits = max(bits, b)
	}
	if bits == 0 {
		bits = 8
	}
	if len(m.Signed) > 0 {
		signed = m.Signed[0]
	}
	ct, err := componentTypeFor(bits, signed)
	if err != nil {
		return Geometry{}, err
	}

	g := NewGeometry2D(m.Width, m.Height, m.NumComponents, ct)
	g.BitDepth = bits

	tw, th := m.TileWidth, m.TileHeight
	if tw <= 0 || tw > m.Width {
		tw = m.Width
	}
	if th <= 0 || th > m.Height {
		th = m.Height
	}
	g.TileSize = []int{tw, th}
	g.NumResolutions = m.NumResolutions
	g.NumTiles = NewTileGrid(g.LargestPossibleRegion(), g.TileSize).Count()
	return g, nil
}

// decodeRegion decodes region of the image into a buffer laid out over region.
func (h *codecHandle) decodeRegion(region Region, comps int, ct ComponentType) ([]byte, error) {
	if h.src == nil || h.closed {
		return nil, fmt.Errorf("%w: no open decode stream", ErrState)
	}
	if !h.complete {
		return nil, fmt.Errorf("%w: %s: codestream is truncated (no EOC marker)", ErrDecode, h.src.Name())
	}
	if _, err := h.src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, h.src.Name(), err)
	}
	area := region.Rectangle()
	img, err := jpeg2000.DecodeConfig(bufio.NewReaderSize(h.src, decodeBufferSize), &jpeg2000.Config{DecodeArea: &area})
	if err != nil {
		return nil, fmt.Errorf("%w: %s region %s: %w", ErrDecode, h.src.Name(), region, err)
	}
	return imageToBuffer(unassociated(img), area, comps, ct)
}

// unassociated relabels the RGBA images returned by the codec, which hold
// straight alpha, as their non-premultiplied equivalents.
func unassociated(img image.Image) image.Image {
	switch m := img.(type) {
	case *image.RGBA:
		return &image.NRGBA{Pix: m.Pix, Stride: m.Stride, Rect: m.Rect}
	case *image.RGBA64:
		return &image.NRGBA64{Pix: m.Pix, Stride: m.Stride, Rect: m.Rect}
	}
	return img
}

// openEncode prepares an encode of an image with geometry g into path. The
// output goes to a temporary file in the same directory until close.
func openEncode(path string, g Geometry, tileSize []int, w WriterConfig) (*codecHandle, error) {
	if err := g.validate(); err != nil {
		return nil, err
	}
	if err := checkEncodable(g); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileCreate, path, err)
	}
	return &codecHandle{
		path:     path,
		tmp:      tmp,
		geom:     g.Clone(),
		tileSize: cloneInts(tileSize),
		writer:   w,
		raster:   make([]byte, g.BufferSize(g.LargestPossibleRegion())),
		written:  make(map[int]bool),
	}, nil
}

// encodeTile stores the pixels of piece, which lies inside tile tileIndex,
// into the encode raster. data is laid out over piece.
func (h *codecHandle) encodeTile(tileIndex int, piece Region, data []byte) error {
	if h.tmp == nil || h.closed {
		return fmt.Errorf("%w: no open encode stream", ErrState)
	}
	if len(data) != h.geom.BufferSize(piece) {
		return fmt.Errorf("%w: tile %d needs %d bytes, got %d", ErrBufferSize, tileIndex, h.geom.BufferSize(piece), len(data))
	}
	copyRegion(h.raster, h.geom.LargestPossibleRegion(), data, piece, h.geom.PixelBytes())
	h.written[tileIndex] = true
	return nil
}

func (h *codecHandle) encodeOptions() *jpeg2000.Options {
	opts := jpeg2000.DefaultOptions()
	opts.Format = jpeg2000.FormatJP2
	f := formatFromName(h.path)
	if h.writer.Format != "" {
		f, _ = ParseFormat(h.writer.Format)
	}
	if f == FormatJ2K {
		opts.Format = jpeg2000.FormatJ2K
	}
	opts.Lossless = h.writer.Lossless
	if h.writer.Quality > 0 {
		opts.Quality = h.writer.Quality
	}
	opts.TileSize.X = min(h.tileSize[0], h.geom.Dimensions[0])
	opts.TileSize.Y = min(h.tileSize[1], h.geom.Dimensions[1])
	opts.NumResolutions = clampResolutions(h.writer.Resolutions, opts.TileSize.X, opts.TileSize.Y)
	opts.Comment = h.writer.Comment
	return opts
}

// clampResolutions limits the number of resolution levels so the smallest
// one of a tile is still at least one pixel wide.
func clampResolutions(want, tileWidth, tileHeight int) int {
	if want <= 0 {
		want = 6
	}
	n := 1
	for side := min(tileWidth, tileHeight); side > 1 && n < want; side >>= 1 {
		n++
	}
	return n
}

// close releases the handle. Encode handles with written tiles are encoded
// and renamed over the target path; the temporary file never survives.
func (h *codecHandle) close() error {
	if h == nil || h.closed {
		return nil
	}
	h.closed = true
	if h.src != nil {
		return h.src.Close()
	}
	if h.tmp == nil {
		return nil
	}

	tmpName := h.tmp.Name()
	err := h.flush()
	if cerr := h.tmp.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("%w: %w", ErrEncode, cerr)
	}
	h.raster = nil
	if err == nil && len(h.written) > 0 {
		if rerr := os.Rename(tmpName, h.path); rerr != nil {
			err = fmt.Errorf("%w: %s: %w", ErrFileCreate, h.path, rerr)
		}
	}
	if err != nil || len(h.written) == 0 {
		if rerr := os.Remove(tmpName); rerr != nil && !errors.Is(rerr, os.ErrNotExist) && err == nil {
			err = rerr
		}
	}
	return err
}

func (h *codecHandle) flush() error {
	if len(h.written) == 0 {
		return nil
	}
	g := h.geom
	img, err := bufferToImage(h.raster, image.Rect(0, 0, g.Dimensions[0], g.Dimensions[1]), g)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(h.tmp, decodeBufferSize)
	if err := jpeg2000.Encode(bw, img, h.encodeOptions()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, h.path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, h.path, err)
	}
	// CreateTemp makes the file private
	if err := h.tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileCreate, h.path, err)
	}
	if err := h.tmp.Sync(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, h.path, err)
	}
	return nil
}

// tilesWritten returns the number of distinct tiles stored so far.
func (h *codecHandle) tilesWritten() int {
	return len(h.written)
}
