package gojp2

import (
	"fmt"
	"io"
	"sync"

	"github.com/valyala/fasthttp"
)

// Default read-ahead buffer size (64KB). Header walking issues many tiny
// reads, so the first range request pulls in the whole main header.
const defaultReadAheadSize = 64 * 1024

// HTTPRangeReader is an io.ReadSeeker over a remote JPEG 2000 file using
// HTTP range requests, with a read-ahead buffer for sequential access.
type HTTPRangeReader struct {
	url          string
	client       *fasthttp.Client
	size         int64
	lastModified string

	mu     sync.Mutex
	pos    int64
	buffer []byte
	bufPos int64 // file offset of buffer[0]; -1 when empty

	readAheadSize int
}

// NewHTTPRangeReader issues a HEAD request to learn the size of url.
// The server must report a content length.
func NewHTTPRangeReader(url string, client *fasthttp.Client) (*HTTPRangeReader, error) {
	rr := &HTTPRangeReader{
		url:           url,
		client:        client,
		bufPos:        -1,
		readAheadSize: defaultReadAheadSize,
	}
	if err := rr.stat(); err != nil {
		return nil, err
	}
	return rr, nil
}

// SetReadAheadSize sets the minimum number of bytes fetched per request.
func (rr *HTTPRangeReader) SetReadAheadSize(size int) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	if size > 0 {
		rr.readAheadSize = size
	}
}

func (rr *HTTPRangeReader) stat() error {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodHead)

	if err := rr.client.Do(req, resp); err != nil {
		return fmt.Errorf("HEAD %s: %w", rr.url, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return fmt.Errorf("HEAD %s: unexpected status code %d", rr.url, resp.StatusCode())
	}
	if resp.Header.ContentLength() <= 0 {
		return fmt.Errorf("HEAD %s: no content length", rr.url)
	}
	rr.size = int64(resp.Header.ContentLength())
	rr.lastModified = string(resp.Header.Peek(fasthttp.HeaderLastModified))
	return nil
}

// Read reads from the current position, serving from the read-ahead buffer when possible.
func (rr *HTTPRangeReader) Read(p []byte) (int, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	if rr.pos >= rr.size {
		return 0, io.EOF
	}
	want := min(int64(len(p)), rr.size-rr.pos)
	if want == 0 {
		return 0, nil
	}

	if !rr.buffered(rr.pos, want) {
		fetch := max(want, int64(rr.readAheadSize))
		end := min(rr.pos+fetch, rr.size)
		data, err := rr.fetchRange(rr.pos, end-1)
		if err != nil {
			return 0, err
		}
		if len(data) == 0 {
			return 0, io.EOF
		}
		rr.buffer = data
		rr.bufPos = rr.pos
	}

	off := rr.pos - rr.bufPos
	n := copy(p[:want], rr.buffer[off:])
	rr.pos += int64(n)
	return n, nil
}

func (rr *HTTPRangeReader) buffered(pos, n int64) bool {
	return rr.bufPos >= 0 && pos >= rr.bufPos && pos+n <= rr.bufPos+int64(len(rr.buffer))
}

// fetchRange fetches the inclusive byte range [start, end].
func (rr *HTTPRangeReader) fetchRange(start, end int64) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(rr.url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderRange, fmt.Sprintf("bytes=%d-%d", start, end))

	if err := rr.client.Do(req, resp); err != nil {
		return nil, fmt.Errorf("GET %s range %d-%d: %w", rr.url, start, end, err)
	}

	body := resp.Body()
	switch resp.StatusCode() {
	case fasthttp.StatusPartialContent:
	case fasthttp.StatusOK:
		// Server ignored the range and sent the whole file
		if int64(len(body)) <= start {
			return nil, nil
		}
		body = body[start:min(int64(len(body)), end+1)]
	default:
		return nil, fmt.Errorf("GET %s: unexpected status code %d", rr.url, resp.StatusCode())
	}

	// Copy since the response is released
	out := make([]byte, len(body))
	copy(out, body)
	return out, nil
}

// Seek sets the offset for the next Read.
func (rr *HTTPRangeReader) Seek(offset int64, whence int) (int64, error) {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = rr.pos + offset
	case io.SeekEnd:
		pos = rr.size + offset
	default:
		return 0, fmt.Errorf("invalid whence: %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative position: %d", pos)
	}
	rr.pos = pos
	return pos, nil
}

// Close drops the read-ahead buffer. The client is owned by the caller.
func (rr *HTTPRangeReader) Close() error {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.buffer = nil
	rr.bufPos = -1
	return nil
}

// Size returns the remote file size.
func (rr *HTTPRangeReader) Size() int64 {
	return rr.size
}

// Name returns the URL.
func (rr *HTTPRangeReader) Name() string {
	return rr.url
}

// Identity identifies this version of the remote file for caching.
func (rr *HTTPRangeReader) Identity() string {
	return fmt.Sprintf("%s|%d|%s", rr.url, rr.size, rr.lastModified)
}
