package gojp2

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// source is a seekable, closable view of an image file, local or remote.
type source interface {
	io.ReadSeeker
	io.Closer
	Name() string
	Size() int64
	// Identity changes whenever the underlying file content may have changed.
	Identity() string
}

type fileSource struct {
	*os.File
	size     int64
	identity string
}

func (f *fileSource) Size() int64 {
	return f.size
}

func (f *fileSource) Identity() string {
	return f.identity
}

func isURL(pathOrURL string) bool {
	return strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://")
}

func defaultHTTPClient() *fasthttp.Client {
	return &fasthttp.Client{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// openSource opens a local file or, for http(s) URLs, a range reader.
func openSource(pathOrURL string, client *fasthttp.Client) (source, error) {
	if isURL(pathOrURL) {
		if client == nil {
			client = defaultHTTPClient()
		}
		rr, err := NewHTTPRangeReader(pathOrURL, client)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
		}
		return rr, nil
	}

	f, err := os.Open(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrFileOpen, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is a directory", ErrFileOpen, pathOrURL)
	}
	abs, err := filepath.Abs(pathOrURL)
	if err != nil {
		abs = pathOrURL
	}
	return &fileSource{
		File:     f,
		size:     info.Size(),
		identity: fmt.Sprintf("%s|%d|%d", abs, info.Size(), info.ModTime().UnixNano()),
	}, nil
}
