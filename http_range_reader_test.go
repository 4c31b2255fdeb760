package gojp2

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

// rangeServer serves data over an in-memory listener, honouring Range
// headers unless ignoreRange is set. It counts GET requests.
type rangeServer struct {
	data        []byte
	ignoreRange bool
	gets        atomic.Int32
}

func (s *rangeServer) handle(ctx *fasthttp.RequestCtx) {
	ctx.Response.Header.Set(fasthttp.HeaderLastModified, "Wed, 21 Oct 2025 07:28:00 GMT")
	if ctx.IsHead() {
		// The server drops the body but keeps its length
		ctx.SetBody(s.data)
		return
	}
	s.gets.Add(1)
	rng := string(ctx.Request.Header.Peek(fasthttp.HeaderRange))
	if rng == "" || s.ignoreRange {
		ctx.SetBody(s.data)
		return
	}
	start, end, ok := parseRange(rng)
	if !ok || start >= len(s.data) {
		ctx.SetStatusCode(fasthttp.StatusRequestedRangeNotSatisfiable)
		return
	}
	end = min(end, len(s.data)-1)
	ctx.SetStatusCode(fasthttp.StatusPartialContent)
	ctx.SetBody(s.data[start : end+1])
}

func parseRange(h string) (int, int, bool) {
	ranges, found := strings.CutPrefix(h, "bytes=")
	if !found {
		return 0, 0, false
	}
	a, b, found := strings.Cut(ranges, "-")
	if !found {
		return 0, 0, false
	}
	start, err1 := strconv.Atoi(a)
	end, err2 := strconv.Atoi(b)
	return start, end, err1 == nil && err2 == nil && end >= start
}

func startRangeServer(t *testing.T, s *rangeServer) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: s.handle}
	go server.Serve(ln)
	t.Cleanup(func() { ln.Close() })
	return &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return ln.Dial()
		},
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestHTTPRangeReader(t *testing.T) {
	s := &rangeServer{data: testData(10000)}
	client := startRangeServer(t, s)

	rr, err := NewHTTPRangeReader("http://example.test/image.jp2", client)
	if err != nil {
		t.Fatalf("NewHTTPRangeReader error: %v", err)
	}
	rr.SetReadAheadSize(4096)
	if rr.Size() != 10000 {
		t.Fatalf("Size = %d", rr.Size())
	}

	// Small sequential reads come from one range request
	head := make([]byte, 12)
	for i := 0; i < 4; i++ {
		if _, err := io.ReadFull(rr, head); err != nil {
			t.Fatalf("read %d: %v", i, err)
		}
	}
	if n := s.gets.Load(); n != 1 {
		t.Errorf("%d GET requests for sequential reads, want 1", n)
	}
	if !bytes.Equal(head, s.data[36:48]) {
		t.Error("sequential read returned wrong bytes")
	}

	if _, err := rr.Seek(9000, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	rest, err := io.ReadAll(rr)
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	if !bytes.Equal(rest, s.data[9000:]) {
		t.Errorf("tail read %d bytes", len(rest))
	}

	if pos, err := rr.Seek(-10, io.SeekEnd); err != nil || pos != 9990 {
		t.Errorf("Seek from end = %d, %v", pos, err)
	}
	if _, err := rr.Seek(-1, io.SeekStart); err == nil {
		t.Error("negative seek should fail")
	}
	if !strings.HasPrefix(rr.Identity(), "http://example.test/image.jp2|10000|Wed") {
		t.Errorf("Identity = %q", rr.Identity())
	}
	if err := rr.Close(); err != nil {
		t.Errorf("Close error: %v", err)
	}
}

func TestHTTPRangeReaderIgnoredRange(t *testing.T) {
	s := &rangeServer{data: testData(3000), ignoreRange: true}
	client := startRangeServer(t, s)

	rr, err := NewHTTPRangeReader("http://example.test/full.j2k", client)
	if err != nil {
		t.Fatal(err)
	}
	rr.SetReadAheadSize(100)
	rr.Seek(2500, io.SeekStart)
	buf := make([]byte, 50)
	if _, err := io.ReadFull(rr, buf); err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(buf, s.data[2500:2550]) {
		t.Error("wrong bytes when the server ignores Range")
	}
}

func TestOpenSourceURL(t *testing.T) {
	s := &rangeServer{data: testData(64)}
	client := startRangeServer(t, s)

	src, err := openSource("http://example.test/a.jp2", client)
	if err != nil {
		t.Fatalf("openSource error: %v", err)
	}
	defer src.Close()
	if src.Name() != "http://example.test/a.jp2" || src.Size() != 64 {
		t.Errorf("source %s of %d bytes", src.Name(), src.Size())
	}
}

func TestOpenSourceMissing(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}}
	go server.Serve(ln)
	defer ln.Close()
	client := &fasthttp.Client{Dial: func(string) (net.Conn, error) { return ln.Dial() }}

	if _, err := openSource("http://example.test/missing.jp2", client); err == nil {
		t.Error("expected error for 404")
	} else if !strings.Contains(err.Error(), fmt.Sprint(fasthttp.StatusNotFound)) {
		t.Errorf("error %v does not mention the status", err)
	}
}
