package gojp2

import "errors"

// Errors returned by the streaming image I/O. They are always wrapped with
// context; test for them with errors.Is.
var (
	ErrInvalidRegion     = errors.New("gojp2: invalid region")
	ErrFileOpen          = errors.New("gojp2: cannot open file")
	ErrFileCreate        = errors.New("gojp2: cannot create file")
	ErrUnsupportedFormat = errors.New("gojp2: unsupported format")
	ErrDecode            = errors.New("gojp2: decode failed")
	ErrEncode            = errors.New("gojp2: encode failed")
	ErrBufferSize        = errors.New("gojp2: buffer size mismatch")
	ErrState             = errors.New("gojp2: operation not valid in current state")
)
