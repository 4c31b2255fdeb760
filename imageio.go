package gojp2

import "github.com/valyala/fasthttp"

// ImageIO is the capability set a streaming image format plugin provides.
//
// A reader calls ReadImageInformation, asks GenerateStreamableReadRegion for
// the region it actually wants, and then reads a buffer sized for the
// returned region. A writer sets the geometry and IO region, calls
// WriteImageInformation and then Write once per region. Close releases the
// file on both paths.
type ImageIO interface {
	SetFileName(name string)
	CanRead(path string) bool
	CanWrite(path string) bool
	ReadImageInformation() error
	Read(buffer []byte) error
	WriteImageInformation() error
	Write(buffer []byte) error
	GenerateStreamableReadRegion(requested Region) (Region, error)
	HeaderSize() (int64, error)
	Close() error
}

// State is the stream state of an image I/O.
type State int

const (
	StateClosed State = iota
	StateReadyToRead
	StateReadyToWrite
)

func (s State) String() string {
	switch s {
	case StateReadyToRead:
		return "ready-to-read"
	case StateReadyToWrite:
		return "ready-to-write"
	default:
		return "closed"
	}
}

// Option configures a JP2ImageIO.
type Option func(*options)

type options struct {
	config *Config
	logger Logger
	cache  *TileCache
	client *fasthttp.Client
}

// WithConfig sets the writer and logging configuration.
func WithConfig(cfg *Config) Option {
	return func(o *options) {
		if cfg != nil {
			o.config = cfg
		}
	}
}

// WithLogger overrides the logger built from the configuration.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTileCache enables caching of decoded tiles. The cache may be shared
// between instances; without it every Read decodes.
func WithTileCache(c *TileCache) Option {
	return func(o *options) {
		o.cache = c
	}
}

// WithHTTPClient sets the client used for http(s) file names.
func WithHTTPClient(c *fasthttp.Client) Option {
	return func(o *options) {
		o.client = c
	}
}
