package gojp2

import (
	"image"
	"math/rand"
	"testing"
)

// generateTestTileData creates random pixel data for benchmarking
func generateTestTileData(width, height, pixelBytes int) []byte {
	data := make([]byte, width*height*pixelBytes)
	for i := range data {
		data[i] = byte(rand.Intn(256))
	}
	return data
}

// =============================================================================
// Benchmarks for region alignment
// =============================================================================

func BenchmarkAlignToTiles(b *testing.B) {
	extent := NewRegion2D(0, 0, 40000, 30000)
	requested := NewRegion2D(12345, 23456, 777, 555)
	tileSize := []int{256, 256}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = AlignToTiles(requested, extent, tileSize)
	}
}

func BenchmarkTilesIntersecting_Small(b *testing.B) {
	benchmarkTilesIntersecting(b, NewRegion2D(1000, 1000, 300, 300))
}

func BenchmarkTilesIntersecting_Large(b *testing.B) {
	benchmarkTilesIntersecting(b, NewRegion2D(0, 0, 8192, 8192))
}

func benchmarkTilesIntersecting(b *testing.B, region Region) {
	grid := NewTileGrid(NewRegion2D(0, 0, 40000, 30000), []int{256, 256})

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = grid.TilesIntersecting(region)
	}
}

// =============================================================================
// Benchmarks for tile compositing
// =============================================================================

func BenchmarkCopyRegion_Gray(b *testing.B) {
	benchmarkCopyRegion(b, 1)
}

func BenchmarkCopyRegion_RGB(b *testing.B) {
	benchmarkCopyRegion(b, 3)
}

func BenchmarkCopyRegion_RGBA16(b *testing.B) {
	benchmarkCopyRegion(b, 8)
}

func benchmarkCopyRegion(b *testing.B, pixelBytes int) {
	tile := NewRegion2D(256, 256, 256, 256)
	dstRegion := NewRegion2D(0, 0, 1024, 1024)
	src := generateTestTileData(256, 256, pixelBytes)
	dst := make([]byte, 1024*1024*pixelBytes)

	b.SetBytes(int64(len(src)))
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		copyRegion(dst, dstRegion, src, tile, pixelBytes)
	}
}

// =============================================================================
// Benchmarks for decoded image conversion
// =============================================================================

func BenchmarkImageToBuffer_Gray(b *testing.B) {
	img := image.NewGray(image.Rect(0, 0, 512, 512))
	copy(img.Pix, generateTestTileData(512, 512, 1))
	area := image.Rect(128, 128, 384, 384)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = imageToBuffer(img, area, 1, UInt8)
	}
}

func BenchmarkImageToBuffer_RGB(b *testing.B) {
	img := image.NewNRGBA(image.Rect(0, 0, 512, 512))
	copy(img.Pix, generateTestTileData(512, 512, 4))
	area := image.Rect(128, 128, 384, 384)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_, _ = imageToBuffer(img, area, 3, UInt8)
	}
}

// =============================================================================
// Benchmarks for byte buffer operations
// =============================================================================

func BenchmarkByteBufferAlloc(b *testing.B) {
	size := 256 * 256 * 3 // Typical tile size

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf := make([]byte, size)
		_ = buf
	}
}

func BenchmarkByteBufferPooled(b *testing.B) {
	size := 256 * 256 * 3 // Typical tile size

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		buf := getBuffer(size)
		_ = buf
		putBuffer(buf)
	}
}

// =============================================================================
// Benchmarks for the tile cache
// =============================================================================

func BenchmarkTileCache_Hit(b *testing.B) {
	c := NewTileCache(64)
	tile := generateTestTileData(128, 128, 1)
	if err := c.put("bench.jp2|1|1", 7, tile); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, ok := c.get("bench.jp2|1|1", 7); !ok {
			b.Fatal("tile evicted")
		}
	}
}
