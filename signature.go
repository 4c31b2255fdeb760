package gojp2

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Format identifies the JPEG 2000 file flavour.
type Format int

const (
	FormatUnknown Format = iota
	FormatJ2K            // raw codestream
	FormatJP2            // JP2 box container
)

func (f Format) String() string {
	switch f {
	case FormatJ2K:
		return "j2k"
	case FormatJP2:
		return "jp2"
	default:
		return "unknown"
	}
}

// ParseFormat parses "jp2" or "j2k" (case-insensitive, "j2c" accepted).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jp2":
		return FormatJP2, nil
	case "j2k", "j2c":
		return FormatJ2K, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: format %q", ErrUnsupportedFormat, s)
	}
}

// Signatures and markers
var (
	jp2Signature = []byte{0x00, 0x00, 0x00, 0x0C, 'j', 'P', ' ', ' ', 0x0D, 0x0A, 0x87, 0x0A}
	j2kSignature = []byte{0xFF, 0x4F, 0xFF, 0x51} // SOC followed by SIZ
)

const (
	signatureLength = 12

	markerSOC = 0xFF4F
	markerSOT = 0xFF90
	markerEOC = 0xFFD9

	boxTypeJP2C = 0x6A703263 // "jp2c"

	maxBoxes          = 4096
	maxMarkerSegments = 65536
)

// fileExtensions lists the file extensions the plugin claims for reading and writing.
var fileExtensions = map[string]Format{
	".jp2": FormatJP2,
	".j2k": FormatJ2K,
	".j2c": FormatJ2K,
	".jpc": FormatJ2K,
}

// sniffFormat identifies a file from its leading bytes.
func sniffFormat(prefix []byte) Format {
	if bytes.HasPrefix(prefix, jp2Signature) {
		return FormatJP2
	}
	if bytes.HasPrefix(prefix, j2kSignature) {
		return FormatJ2K
	}
	return FormatUnknown
}

// formatFromName returns the format implied by a file extension.
func formatFromName(name string) Format {
	return fileExtensions[strings.ToLower(filepath.Ext(name))]
}

// sniffFile reads only the signature bytes of a local file.
func sniffFile(path string) Format {
	f, err := os.Open(path)
	if err != nil {
		return FormatUnknown
	}
	defer f.Close()
	return sniffReader(f)
}

func sniffReader(r io.Reader) Format {
	prefix := make([]byte, signatureLength)
	n, err := io.ReadFull(r, prefix)
	if err != nil && err != io.ErrUnexpectedEOF {
		return FormatUnknown
	}
	return sniffFormat(prefix[:n])
}

// headerOffset returns the absolute file offset of the first tile-part
// (SOT marker), i.e. where compressed payload begins.
func headerOffset(r io.ReadSeeker) (int64, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to start: %w", err)
	}
	switch sniffReader(r) {
	case FormatJ2K:
		return payloadOffset(r, 0)
	case FormatJP2:
		start, _, err := findBox(r, boxTypeJP2C)
		if err != nil {
			return 0, err
		}
		return payloadOffset(r, start)
	default:
		return 0, fmt.Errorf("%w: no JPEG 2000 signature", ErrUnsupportedFormat)
	}
}

// codestreamComplete reports whether the codestream ends with an EOC marker.
// The codec decodes missing tile data as empty, so a file cut short would
// otherwise read back without error.
func codestreamComplete(r io.ReadSeeker) (bool, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("failed to seek to start: %w", err)
	}
	var end int64
	switch sniffReader(r) {
	case FormatJ2K:
		var err error
		if end, err = r.Seek(0, io.SeekEnd); err != nil {
			return false, fmt.Errorf("failed to find end of file: %w", err)
		}
	case FormatJP2:
		_, boxEnd, err := findBox(r, boxTypeJP2C)
		if err != nil {
			return false, err
		}
		fileEnd, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return false, fmt.Errorf("failed to find end of file: %w", err)
		}
		if boxEnd > fileEnd {
			return false, nil
		}
		end = boxEnd
	default:
		return false, fmt.Errorf("%w: no JPEG 2000 signature", ErrUnsupportedFormat)
	}
	if end < 2 {
		return false, nil
	}
	var buf [2]byte
	if _, err := r.Seek(end-2, io.SeekStart); err != nil {
		return false, fmt.Errorf("failed to seek to %d: %w", end-2, err)
	}
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return false, nil
	}
	return binary.BigEndian.Uint16(buf[:]) == markerEOC, nil
}

// findBox walks the top-level JP2 boxes and returns the offsets of the
// contents and of the end of the first box of the given type.
func findBox(r io.ReadSeeker, boxType uint32) (start, end int64, err error) {
	var header [16]byte
	pos := int64(0)
	for i := 0; i < maxBoxes; i++ {
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return 0, 0, fmt.Errorf("failed to seek to box at %d: %w", pos, err)
		}
		if _, err := io.ReadFull(r, header[:8]); err != nil {
			return 0, 0, fmt.Errorf("%w: truncated box header at %d", ErrUnsupportedFormat, pos)
		}
		length := int64(binary.BigEndian.Uint32(header[0:4]))
		typ := binary.BigEndian.Uint32(header[4:8])
		headerLen := int64(8)

		switch length {
		case 0:
			// Box extends to the end of the file
			fileEnd, err := r.Seek(0, io.SeekEnd)
			if err != nil {
				return 0, 0, fmt.Errorf("failed to find end of file: %w", err)
			}
			length = fileEnd - pos
		case 1:
			if _, err := io.ReadFull(r, header[8:16]); err != nil {
				return 0, 0, fmt.Errorf("%w: truncated extended box length at %d", ErrUnsupportedFormat, pos)
			}
			length = int64(binary.BigEndian.Uint64(header[8:16]))
			headerLen = 16
		}

		if typ == boxType {
			return pos + headerLen, pos + length, nil
		}
		if length < headerLen {
			return 0, 0, fmt.Errorf("%w: invalid box length %d at %d", ErrUnsupportedFormat, length, pos)
		}
		pos += length
	}
	return 0, 0, fmt.Errorf("%w: too many boxes before codestream", ErrUnsupportedFormat)
}

// payloadOffset walks the main header marker segments of a codestream
// starting at start and returns the offset of the first SOT marker.
func payloadOffset(r io.ReadSeeker, start int64) (int64, error) {
	if _, err := r.Seek(start, io.SeekStart); err != nil {
		return 0, fmt.Errorf("failed to seek to codestream: %w", err)
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:2]); err != nil || binary.BigEndian.Uint16(buf[:2]) != markerSOC {
		return 0, fmt.Errorf("%w: codestream does not start with SOC", ErrUnsupportedFormat)
	}

	pos := start + 2
	for i := 0; i < maxMarkerSegments; i++ {
		if _, err := io.ReadFull(r, buf[:4]); err != nil {
			return 0, fmt.Errorf("%w: truncated main header at %d", ErrUnsupportedFormat, pos)
		}
		marker := binary.BigEndian.Uint16(buf[0:2])
		switch {
		case marker == markerSOT:
			return pos, nil
		case marker == markerEOC:
			return 0, fmt.Errorf("%w: codestream has no tile-parts", ErrUnsupportedFormat)
		case marker>>8 != 0xFF:
			return 0, fmt.Errorf("%w: invalid marker 0x%04X at %d", ErrUnsupportedFormat, marker, pos)
		}
		segLen := int64(binary.BigEndian.Uint16(buf[2:4]))
		if segLen < 2 {
			return 0, fmt.Errorf("%w: invalid segment length %d at %d", ErrUnsupportedFormat, segLen, pos)
		}
		pos += 2 + segLen
		if _, err := r.Seek(pos, io.SeekStart); err != nil {
			return 0, fmt.Errorf("failed to seek to marker at %d: %w", pos, err)
		}
	}
	return 0, fmt.Errorf("%w: too many main header segments", ErrUnsupportedFormat)
}
