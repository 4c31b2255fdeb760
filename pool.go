package gojp2

import "sync"

// Scratch buffers for tile pieces, bucketed by capacity so that a buffer
// taken for a 256x256 RGB tile can be reused for any smaller piece.

const (
	smallBufferSize  = 64 * 1024       // 256x256 gray
	mediumBufferSize = 256 * 1024      // 256x256 RGBA
	largeBufferSize  = 1024 * 1024     // 512x512 RGBA
	xlargeBufferSize = 4 * 1024 * 1024 // 1024x1024 RGBA
)

var bufferBuckets = []struct {
	size int
	pool *sync.Pool
}{
	{smallBufferSize, newBucket(smallBufferSize)},
	{mediumBufferSize, newBucket(mediumBufferSize)},
	{largeBufferSize, newBucket(largeBufferSize)},
	{xlargeBufferSize, newBucket(xlargeBufferSize)},
}

func newBucket(size int) *sync.Pool {
	return &sync.Pool{
		New: func() interface{} {
			buf := make([]byte, size)
			return &buf
		},
	}
}

// getBuffer returns a byte slice of length size, pooled when it fits a bucket.
// Its contents are undefined.
func getBuffer(size int) []byte {
	for _, b := range bufferBuckets {
		if size <= b.size {
			bufPtr := b.pool.Get().(*[]byte)
			return (*bufPtr)[:size]
		}
	}
	return make([]byte, size)
}

// putBuffer returns a buffer obtained from getBuffer. Other sizes are dropped.
func putBuffer(buf []byte) {
	c := cap(buf)
	for _, b := range bufferBuckets {
		if c == b.size {
			buf = buf[:c]
			b.pool.Put(&buf)
			return
		}
	}
}
