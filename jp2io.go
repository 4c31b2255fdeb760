package gojp2

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/valyala/fasthttp"
)

// JP2ImageIO reads and writes JPEG 2000 files (JP2 or raw codestream) one
// region at a time. Reads decode only the tiles overlapping the IO region;
// writes accumulate tiles and encode on Close.
//
// A JP2ImageIO is not safe for concurrent use. Use one instance per file.
type JP2ImageIO struct {
	fileName string
	geom     Geometry
	ioRegion Region
	tileSize []int // write tile size; nil uses the configured default

	state      State
	infoRead   bool
	handle     *codecHandle
	headerSize int64
	identity   string

	config     *Config
	log        Logger
	ownsLogger bool
	cache      *TileCache
	client     *fasthttp.Client
}

var _ ImageIO = (*JP2ImageIO)(nil)

// NewJP2ImageIO returns an image I/O in the closed state.
func NewJP2ImageIO(opts ...Option) *JP2ImageIO {
	o := options{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	j := &JP2ImageIO{
		config: o.config,
		log:    o.logger,
		cache:  o.cache,
		client: o.client,
	}
	if j.log == nil {
		j.log = o.config.Logging.NewLogger()
		j.ownsLogger = true
	}
	return j
}

// SetFileName sets the file or http(s) URL used by the next open.
func (j *JP2ImageIO) SetFileName(name string) {
	j.fileName = name
}

// FileName returns the current file name.
func (j *JP2ImageIO) FileName() string {
	return j.fileName
}

// Geometry returns a copy of the image geometry.
func (j *JP2ImageIO) Geometry() Geometry {
	return j.geom.Clone()
}

// SetGeometry sets the geometry of the image to write. It cannot change
// while an encode is open.
func (j *JP2ImageIO) SetGeometry(g Geometry) error {
	if j.state == StateReadyToWrite {
		return fmt.Errorf("%w: geometry cannot change during an encode", ErrState)
	}
	j.geom = g.Clone()
	j.infoRead = false
	return nil
}

// SetIORegion sets the region transferred by the next Read or Write.
func (j *JP2ImageIO) SetIORegion(r Region) {
	j.ioRegion = r.Clone()
}

// IORegion returns the region transferred by the next Read or Write.
func (j *JP2ImageIO) IORegion() Region {
	return j.ioRegion.Clone()
}

// SetTileSize sets the tile size of the next encode.
func (j *JP2ImageIO) SetTileSize(x, y int) error {
	if j.state == StateReadyToWrite {
		return fmt.Errorf("%w: tile size cannot change during an encode", ErrState)
	}
	if x < 1 || y < 1 {
		return fmt.Errorf("%w: tile size %dx%d", ErrInvalidRegion, x, y)
	}
	j.tileSize = []int{x, y}
	return nil
}

// TileSize returns the tile size used for writing: the one set with
// SetTileSize, or the configured default.
func (j *JP2ImageIO) TileSize() []int {
	if j.tileSize != nil {
		return cloneInts(j.tileSize)
	}
	return j.config.Writer.tileSize()
}

// State returns the stream state.
func (j *JP2ImageIO) State() State {
	return j.state
}

// CanRead reports whether path starts with a JPEG 2000 signature.
func (j *JP2ImageIO) CanRead(path string) bool {
	if !isURL(path) {
		return sniffFile(path) != FormatUnknown
	}
	src, err := openSource(path, j.client)
	if err != nil {
		return false
	}
	defer src.Close()
	return sniffReader(src) != FormatUnknown
}

// CanWrite reports whether path has a JPEG 2000 file extension.
func (j *JP2ImageIO) CanWrite(path string) bool {
	return !isURL(path) && formatFromName(path) != FormatUnknown
}

// ReadImageInformation opens the file for reading and reads its geometry,
// tile layout and header size. Any previously open stream is closed first.
// The IO region is reset to the whole image.
func (j *JP2ImageIO) ReadImageInformation() error {
	j.reset()

	src, err := openSource(j.fileName, j.client)
	if err != nil {
		return err
	}
	h, err := openDecode(src)
	if err != nil {
		return err
	}
	g, err := h.geometry()
	if err != nil {
		h.close()
		return fmt.Errorf("%s: %w", j.fileName, err)
	}

	j.handle = h
	j.geom = g
	j.headerSize = h.header
	j.identity = src.Identity()
	j.ioRegion = g.LargestPossibleRegion()
	j.state = StateReadyToRead
	j.infoRead = true

	j.log.Infof("Opened %s (%s, %s): %dx%d, %d x %s, tiles %dx%d (%d), %d resolutions\n",
		j.fileName, h.format, humanize.Bytes(uint64(src.Size())), g.Dimensions[0], g.Dimensions[1],
		g.Components, g.ComponentType, g.TileSize[0], g.TileSize[1], g.NumTiles, g.NumResolutions)
	if !h.complete {
		j.log.Warningf("%s is truncated, reads will fail\n", j.fileName)
	}
	return nil
}

// GenerateStreamableReadRegion returns the tile-aligned region enclosing
// requested and makes it the IO region of the next Read.
func (j *JP2ImageIO) GenerateStreamableReadRegion(requested Region) (Region, error) {
	if j.state == StateReadyToWrite {
		return Region{}, fmt.Errorf("%w: GenerateStreamableReadRegion in state %s", ErrState, j.state)
	}
	if !j.infoRead {
		return Region{}, fmt.Errorf("%w: image information has not been read", ErrInvalidRegion)
	}
	aligned, err := AlignToTiles(requested, j.geom.LargestPossibleRegion(), j.geom.TileSize)
	if err != nil {
		return Region{}, err
	}
	j.ioRegion = aligned
	j.log.Debugf("Streamable region for %s is %s\n", requested, aligned)
	return aligned.Clone(), nil
}

// HeaderSize returns the file offset of the first tile-part.
func (j *JP2ImageIO) HeaderSize() (int64, error) {
	if !j.infoRead {
		return 0, fmt.Errorf("%w: header size is unknown before ReadImageInformation", ErrState)
	}
	return j.headerSize, nil
}

// Read decodes the IO region into buffer, which must hold exactly the
// region's pixels. Tiles are taken from the tile cache when possible; the
// rest are decoded in one codec call over their bounding box.
func (j *JP2ImageIO) Read(buffer []byte) error {
	if j.state != StateReadyToRead {
		return fmt.Errorf("%w: Read in state %s", ErrState, j.state)
	}
	region := j.ioRegion
	extent := j.geom.LargestPossibleRegion()
	if region.IsEmpty() || !region.IsInside(extent) {
		return fmt.Errorf("%w: IO region %s is not inside %s", ErrInvalidRegion, region, extent)
	}
	if want := j.geom.BufferSize(region); len(buffer) != want {
		return fmt.Errorf("%w: region %s needs %d bytes, got %d", ErrBufferSize, region, want, len(buffer))
	}

	pixelBytes := j.geom.PixelBytes()
	grid := NewTileGrid(extent, j.geom.TileSize)

	type pending struct {
		index  int
		region Region
	}
	var missing []pending
	hits := 0
	for _, coord := range grid.TilesIntersecting(region) {
		tile := grid.TileRegion(coord)
		index := grid.TileIndex(coord)
		if data, ok := j.cache.get(j.identity, index); ok && len(data) == j.geom.BufferSize(tile) {
			copyRegion(buffer, region, data, tile, pixelBytes)
			hits++
			continue
		}
		missing = append(missing, pending{index, tile})
	}
	if len(missing) == 0 {
		j.log.Debugf("Read %s entirely from cache (%d tiles)\n", region, hits)
		return nil
	}

	bound := missing[0].region
	for _, m := range missing[1:] {
		bound = bound.Union(m.region)
	}
	decoded, err := j.handle.decodeRegion(bound, j.geom.Components, j.geom.ComponentType)
	if err != nil {
		return err
	}
	copyRegion(buffer, region, decoded, bound, pixelBytes)

	if j.cache != nil {
		for _, m := range missing {
			scratch := getBuffer(j.geom.BufferSize(m.region))
			copyRegion(scratch, m.region, decoded, bound, pixelBytes)
			if err := j.cache.put(j.identity, m.index, scratch); err != nil {
				j.log.Warningf("%v\n", err)
			}
			putBuffer(scratch)
		}
	}
	j.log.Debugf("Read %s: decoded %s (%d tiles), %d cached tiles\n", region, bound, len(missing), hits)
	return nil
}

// WriteImageInformation opens an encode of the image described by the
// current geometry into the file name. Any previously open stream is closed
// first. If no IO region matching the image is set, it becomes the whole image.
func (j *JP2ImageIO) WriteImageInformation() error {
	g := j.geom
	j.reset()
	j.geom = g

	if j.fileName == "" || isURL(j.fileName) {
		return fmt.Errorf("%w: cannot write to %q", ErrFileCreate, j.fileName)
	}
	tileSize := j.TileSize()
	h, err := openEncode(j.fileName, j.geom, tileSize, j.config.Writer)
	if err != nil {
		return err
	}

	j.handle = h
	j.geom.TileSize = []int{min(tileSize[0], g.Dimensions[0]), min(tileSize[1], g.Dimensions[1])}
	j.geom.NumTiles = NewTileGrid(j.geom.LargestPossibleRegion(), j.geom.TileSize).Count()
	if j.ioRegion.Dimensions() != len(g.Dimensions) || j.ioRegion.IsEmpty() {
		j.ioRegion = j.geom.LargestPossibleRegion()
	}
	j.state = StateReadyToWrite

	j.log.Infof("Writing %s: %dx%d, %d x %s, tiles %dx%d (%d), raster %s\n",
		j.fileName, g.Dimensions[0], g.Dimensions[1], g.Components, g.ComponentType,
		j.geom.TileSize[0], j.geom.TileSize[1], j.geom.NumTiles,
		humanize.Bytes(uint64(len(h.raster))))
	return nil
}

// Write stores buffer, laid out over the IO region, tile by tile. Nothing
// is stored if the geometry or buffer size is rejected.
func (j *JP2ImageIO) Write(buffer []byte) error {
	if j.state != StateReadyToWrite {
		return fmt.Errorf("%w: Write in state %s", ErrState, j.state)
	}
	if err := checkEncodable(j.geom); err != nil {
		return err
	}
	region := j.ioRegion
	extent := j.geom.LargestPossibleRegion()
	if region.IsEmpty() || !region.IsInside(extent) {
		return fmt.Errorf("%w: IO region %s is not inside %s", ErrInvalidRegion, region, extent)
	}
	if want := j.geom.BufferSize(region); len(buffer) != want {
		return fmt.Errorf("%w: region %s needs %d bytes, got %d", ErrBufferSize, region, want, len(buffer))
	}

	pixelBytes := j.geom.PixelBytes()
	grid := NewTileGrid(extent, j.handle.tileSize)
	tiles := grid.TilesIntersecting(region)
	for _, coord := range tiles {
		piece := grid.TileRegion(coord).Intersect(region)
		scratch := getBuffer(j.geom.BufferSize(piece))
		copyRegion(scratch, piece, buffer, region, pixelBytes)
		err := j.handle.encodeTile(grid.TileIndex(coord), piece, scratch)
		putBuffer(scratch)
		if err != nil {
			return err
		}
	}
	j.log.Debugf("Wrote %s (%d tiles) to %s\n", region, len(tiles), j.fileName)
	return nil
}

// Close releases the open stream. A pending encode is written out; if it
// fails no partial file is left behind. Close may be called repeatedly.
func (j *JP2ImageIO) Close() error {
	err := j.closeHandle()
	if j.ownsLogger {
		j.log.Shutdown()
	}
	return err
}

// ReadRegion reads the tile-aligned region enclosing requested and returns
// its pixels along with the region they cover.
func (j *JP2ImageIO) ReadRegion(requested Region) ([]byte, Region, error) {
	aligned, err := j.GenerateStreamableReadRegion(requested)
	if err != nil {
		return nil, Region{}, err
	}
	buf := make([]byte, j.geom.BufferSize(aligned))
	if err := j.Read(buf); err != nil {
		return nil, Region{}, err
	}
	return buf, aligned, nil
}

// reset closes any open stream and forgets what was read from it.
func (j *JP2ImageIO) reset() {
	if err := j.closeHandle(); err != nil {
		j.log.Errorf("Closing %s before reopen: %v\n", j.fileName, err)
	}
	j.geom = Geometry{}
	j.infoRead = false
	j.headerSize = 0
	j.identity = ""
}

func (j *JP2ImageIO) closeHandle() error {
	if j.handle == nil {
		j.state = StateClosed
		return nil
	}
	h := j.handle
	j.handle = nil
	j.state = StateClosed

	written := h.tilesWritten()
	err := h.close()
	switch {
	case err != nil:
		j.log.Errorf("Closing %s: %v\n", j.fileName, err)
	case h.tmp != nil && written == 0:
		j.log.Warningf("Nothing written to %s, no file created\n", j.fileName)
	case h.tmp != nil:
		j.log.Infof("Encoded %d tiles to %s\n", written, j.fileName)
	}
	return err
}

// String describes the image I/O and its current stream.
func (j *JP2ImageIO) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "JP2ImageIO %q\n", j.fileName)
	fmt.Fprintf(&b, "  State: %s\n", j.state)
	if len(j.geom.Dimensions) > 0 {
		g := j.geom
		fmt.Fprintf(&b, "  Dimensions: %v\n", g.Dimensions)
		fmt.Fprintf(&b, "  Pixel: %s, %d x %s (%d bits)\n", g.PixelType, g.Components, g.ComponentType, g.BitDepth)
		fmt.Fprintf(&b, "  Tile size: %v (%d tiles)\n", g.TileSize, g.NumTiles)
		fmt.Fprintf(&b, "  Resolutions: %d\n", g.NumResolutions)
	}
	if j.infoRead {
		fmt.Fprintf(&b, "  Header size: %d\n", j.headerSize)
	}
	fmt.Fprintf(&b, "  Write tile size: %v\n", j.TileSize())
	fmt.Fprintf(&b, "  IO region: %s\n", j.ioRegion)
	if j.cache != nil {
		s := j.cache.Stats()
		fmt.Fprintf(&b, "  Tile cache: %s, %d tiles, hit rate %.2f\n", humanize.Bytes(uint64(j.cache.Size())), s.Entries, s.HitRate)
	}
	return b.String()
}
