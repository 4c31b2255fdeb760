package gojp2

import "fmt"

// ComponentType is the storage type of one pixel component in a buffer.
type ComponentType uint8

const (
	UnknownComponent ComponentType = iota
	UInt8
	Int8
	UInt16
	Int16
)

// Size returns the number of bytes per component.
func (c ComponentType) Size() int {
	switch c {
	case UInt8, Int8:
		return 1
	case UInt16, Int16:
		return 2
	default:
		return 0
	}
}

// Signed reports whether the component type is signed.
func (c ComponentType) Signed() bool {
	return c == Int8 || c == Int16
}

func (c ComponentType) String() string {
	switch c {
	case UInt8:
		return "uint8"
	case Int8:
		return "int8"
	case UInt16:
		return "uint16"
	case Int16:
		return "int16"
	default:
		return "unknown"
	}
}

// componentTypeFor maps a codec precision to the smallest component type holding it.
func componentTypeFor(bitDepth int, signed bool) (ComponentType, error) {
	switch {
	case bitDepth >= 1 && bitDepth <= 8 && signed:
		return Int8, nil
	case bitDepth >= 1 && bitDepth <= 8:
		return UInt8, nil
	case bitDepth > 8 && bitDepth <= 16 && signed:
		return Int16, nil
	case bitDepth > 8 && bitDepth <= 16:
		return UInt16, nil
	default:
		return UnknownComponent, fmt.Errorf("%w: %d-bit components", ErrUnsupportedFormat, bitDepth)
	}
}

// PixelType describes how the components of a pixel are interpreted.
type PixelType uint8

const (
	UnknownPixel PixelType = iota
	Scalar
	RGB
	RGBA
	Vector
)

func (p PixelType) String() string {
	switch p {
	case Scalar:
		return "scalar"
	case RGB:
		return "rgb"
	case RGBA:
		return "rgba"
	case Vector:
		return "vector"
	default:
		return "unknown"
	}
}

func pixelTypeFor(components int) PixelType {
	switch components {
	case 1:
		return Scalar
	case 3:
		return RGB
	case 4:
		return RGBA
	case 0:
		return UnknownPixel
	default:
		return Vector
	}
}
