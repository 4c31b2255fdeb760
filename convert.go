package gojp2

import (
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
)

// imageToBuffer copies area of a decoded image into a pixel-interleaved
// buffer with dimension 0 fastest. The codec may return the area either at
// its absolute position or rebased to the origin; both are accepted.
func imageToBuffer(img image.Image, area image.Rectangle, comps int, ct ComponentType) ([]byte, error) {
	b := img.Bounds()
	var shift image.Point
	switch {
	case area.In(b):
	case b.Size() == area.Size():
		shift = b.Min.Sub(area.Min)
	default:
		return nil, fmt.Errorf("%w: codec returned bounds %v for area %v", ErrDecode, b, area)
	}
	if comps < 1 || comps > 4 || ct.Size() == 0 {
		return nil, fmt.Errorf("%w: %d x %s components", ErrDecode, comps, ct)
	}

	size := ct.Size()
	buf := make([]byte, area.Dx()*area.Dy()*comps*size)

	// Fast path for the common single-band 8-bit case
	if g, ok := img.(*image.Gray); ok && comps == 1 && ct == UInt8 {
		w := area.Dx()
		for y := 0; y < area.Dy(); y++ {
			off := g.PixOffset(area.Min.X+shift.X, area.Min.Y+y+shift.Y)
			copy(buf[y*w:(y+1)*w], g.Pix[off:off+w])
		}
		return buf, nil
	}

	off := 0
	for y := area.Min.Y; y < area.Max.Y; y++ {
		for x := area.Min.X; x < area.Max.X; x++ {
			s := samplesAt(img, x+shift.X, y+shift.Y, comps)
			for c := 0; c < comps; c++ {
				putSample(buf[off:], s[c], ct)
				off += size
			}
		}
	}
	return buf, nil
}

// samplesAt returns the first comps samples of a pixel scaled to 16 bits.
// Gray sources are replicated across colour samples; colour sources are
// reduced to luminance for one or two components.
func samplesAt(img image.Image, x, y, comps int) [4]uint16 {
	var c color.NRGBA64
	gray := false
	switch m := img.(type) {
	case *image.Gray:
		v := uint16(m.Pix[m.PixOffset(x, y)]) * 0x101
		c, gray = color.NRGBA64{v, v, v, 0xffff}, true
	case *image.Gray16:
		i := m.PixOffset(x, y)
		v := uint16(m.Pix[i])<<8 | uint16(m.Pix[i+1])
		c, gray = color.NRGBA64{v, v, v, 0xffff}, true
	case *image.NRGBA:
		i := m.PixOffset(x, y)
		p := m.Pix[i : i+4]
		c = color.NRGBA64{uint16(p[0]) * 0x101, uint16(p[1]) * 0x101, uint16(p[2]) * 0x101, uint16(p[3]) * 0x101}
	case *image.NRGBA64:
		c = m.NRGBA64At(x, y)
	default:
		c = color.NRGBA64Model.Convert(img.At(x, y)).(color.NRGBA64)
		gray = img.ColorModel() == color.GrayModel || img.ColorModel() == color.Gray16Model
	}

	switch comps {
	case 1, 2:
		l := c.R
		if !gray {
			l = color.Gray16Model.Convert(color.NRGBA64{c.R, c.G, c.B, 0xffff}).(color.Gray16).Y
		}
		return [4]uint16{l, c.A}
	default:
		return [4]uint16{c.R, c.G, c.B, c.A}
	}
}

// putSample stores a 16-bit scaled sample. Signed types are stored in two's
// complement, re-centred from the codec's offset representation.
func putSample(dst []byte, v uint16, ct ComponentType) {
	switch ct {
	case UInt8:
		dst[0] = byte(v >> 8)
	case Int8:
		dst[0] = byte(v>>8) ^ 0x80
	case UInt16:
		binary.LittleEndian.PutUint16(dst, v)
	case Int16:
		binary.LittleEndian.PutUint16(dst, v^0x8000)
	}
}

// checkEncodable reports whether the encoder accepts images of this layout.
// Only 8-bit samples are written: the codec does not round-trip 16-bit
// samples exactly.
func checkEncodable(g Geometry) error {
	switch g.Components {
	case 1, 3, 4:
	default:
		return fmt.Errorf("%w: %d components (want 1, 3 or 4)", ErrEncode, g.Components)
	}
	if g.ComponentType != UInt8 {
		return fmt.Errorf("%w: component type %s (want %s)", ErrEncode, g.ComponentType, UInt8)
	}
	return nil
}

// bufferToImage wraps a raster laid out over rect as an image.Image.
// 8-bit single-band and RGBA rasters are shared, everything else is converted.
// Three components give an rgbImage, which the encoder writes as three
// components because its colour model has no alpha.
func bufferToImage(raster []byte, rect image.Rectangle, g Geometry) (image.Image, error) {
	switch g.Components {
	case 1, 3, 4:
	default:
		return nil, fmt.Errorf("%w: %d components", ErrUnsupportedFormat, g.Components)
	}
	if g.ComponentType != UInt8 && g.ComponentType != UInt16 {
		return nil, fmt.Errorf("%w: component type %s", ErrUnsupportedFormat, g.ComponentType)
	}
	width := rect.Dx()
	n := width * rect.Dy()

	switch {
	case g.Components == 1 && g.ComponentType == UInt8:
		return &image.Gray{Pix: raster, Stride: width, Rect: rect}, nil

	case g.Components == 1:
		img := image.NewGray16(rect)
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(img.Pix[2*i:], binary.LittleEndian.Uint16(raster[2*i:]))
		}
		return img, nil

	case g.Components == 3 && g.ComponentType == UInt8:
		return &rgbImage{Pix: raster, Stride: 3 * width, Rect: rect}, nil

	case g.Components == 3:
		img := image.NewRGBA64(rect)
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				binary.BigEndian.PutUint16(img.Pix[8*i+2*c:], binary.LittleEndian.Uint16(raster[6*i+2*c:]))
			}
			img.Pix[8*i+6], img.Pix[8*i+7] = 0xff, 0xff
		}
		return img, nil

	case g.ComponentType == UInt8:
		return &image.NRGBA{Pix: raster, Stride: 4 * width, Rect: rect}, nil

	default:
		img := image.NewNRGBA64(rect)
		for i := 0; i < 4*n; i++ {
			binary.BigEndian.PutUint16(img.Pix[2*i:], binary.LittleEndian.Uint16(raster[2*i:]))
		}
		return img, nil
	}
}

// rgbImage is an opaque 8-bit RGB image with 3 bytes per pixel.
type rgbImage struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
}

var rgbModel = color.ModelFunc(func(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), 0xff}
})

func (p *rgbImage) ColorModel() color.Model { return rgbModel }

func (p *rgbImage) Bounds() image.Rectangle { return p.Rect }

func (p *rgbImage) At(x, y int) color.Color {
	if !(image.Point{x, y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
	return color.RGBA{p.Pix[i], p.Pix[i+1], p.Pix[i+2], 0xff}
}

func (p *rgbImage) Opaque() bool { return true }

// Reduce8 converts a UInt16 buffer to UInt8 by keeping the high byte of
// each sample, so that it can be written. Other buffers are returned as is.
func Reduce8(g Geometry, buf []byte) (Geometry, []byte) {
	if g.ComponentType != UInt16 {
		return g, buf
	}
	out := make([]byte, len(buf)/2)
	for i := range out {
		out[i] = byte(binary.LittleEndian.Uint16(buf[2*i:]) >> 8)
	}
	g = g.Clone()
	g.ComponentType = UInt8
	g.BitDepth = 8
	return g, out
}

// BufferFromImage converts an image to a geometry and a pixel-interleaved
// buffer covering the whole image. Opaque colour images get 3 components.
func BufferFromImage(img image.Image) (Geometry, []byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return Geometry{}, nil, fmt.Errorf("%w: empty image", ErrInvalidRegion)
	}
	comps, ct := 4, UInt8
	switch img.ColorModel() {
	case color.GrayModel:
		comps = 1
	case color.Gray16Model:
		comps, ct = 1, UInt16
	case color.RGBA64Model, color.NRGBA64Model:
		ct = UInt16
	}
	if o, ok := img.(interface{ Opaque() bool }); ok && comps == 4 && o.Opaque() {
		comps = 3
	}
	buf, err := imageToBuffer(img, b, comps, ct)
	if err != nil {
		return Geometry{}, nil, err
	}
	return NewGeometry2D(b.Dx(), b.Dy(), comps, ct), buf, nil
}

// ImageFromBuffer wraps a buffer laid out over a 2-D region as an image
// positioned at the region's index.
func ImageFromBuffer(buf []byte, region Region, g Geometry) (image.Image, error) {
	if region.Dimensions() != 2 || region.IsEmpty() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRegion, region)
	}
	if len(buf) != g.BufferSize(region) {
		return nil, fmt.Errorf("%w: region %s needs %d bytes, got %d", ErrBufferSize, region, g.BufferSize(region), len(buf))
	}
	return bufferToImage(buf, region.Rectangle(), g)
}
