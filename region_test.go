package gojp2_test

import (
	"errors"
	"image"
	"testing"

	"github.com/tingold/gojp2"
)

func TestNewRegion(t *testing.T) {
	index := []int{1, 2, 3}
	size := []int{4, 5, 6}
	r, err := gojp2.NewRegion(index, size)
	if err != nil {
		t.Fatalf("NewRegion error: %v", err)
	}
	index[0], size[0] = 100, 100
	if r.Index[0] != 1 || r.Size[0] != 4 {
		t.Errorf("NewRegion kept references to its arguments: %s", r)
	}
	if r.Dimensions() != 3 || r.NumPixels() != 120 {
		t.Errorf("got %d dimensions, %d pixels", r.Dimensions(), r.NumPixels())
	}

	if _, err := gojp2.NewRegion([]int{0, 0}, []int{1}); !errors.Is(err, gojp2.ErrInvalidRegion) {
		t.Errorf("mismatched dimensions: expected ErrInvalidRegion, got %v", err)
	}
	if _, err := gojp2.NewRegion([]int{0, 0}, []int{1, -1}); !errors.Is(err, gojp2.ErrInvalidRegion) {
		t.Errorf("negative size: expected ErrInvalidRegion, got %v", err)
	}
}

func TestRegionEmpty(t *testing.T) {
	tests := []struct {
		name  string
		r     gojp2.Region
		empty bool
	}{
		{"zero value", gojp2.Region{}, true},
		{"zero width", gojp2.NewRegion2D(0, 0, 0, 5), true},
		{"negative clamped", gojp2.NewRegion2D(0, 0, -3, 5), true},
		{"single pixel", gojp2.NewRegion2D(7, 7, 1, 1), false},
	}
	for _, tt := range tests {
		if got := tt.r.IsEmpty(); got != tt.empty {
			t.Errorf("%s: IsEmpty = %v, want %v", tt.name, got, tt.empty)
		}
		if tt.empty && tt.r.NumPixels() != 0 {
			t.Errorf("%s: empty region has %d pixels", tt.name, tt.r.NumPixels())
		}
	}
}

func TestRegionContainment(t *testing.T) {
	outer := gojp2.NewRegion2D(0, 0, 100, 100)
	tests := []struct {
		name   string
		inner  gojp2.Region
		inside bool
	}{
		{"same", outer, true},
		{"inner", gojp2.NewRegion2D(10, 10, 20, 20), true},
		{"touching edge", gojp2.NewRegion2D(90, 90, 10, 10), true},
		{"overflow", gojp2.NewRegion2D(90, 90, 11, 10), false},
		{"negative", gojp2.NewRegion2D(-1, 0, 10, 10), false},
		{"short index", gojp2.Region{Index: []int{0}, Size: []int{5, 5}}, false},
	}
	for _, tt := range tests {
		if got := tt.inner.IsInside(outer); got != tt.inside {
			t.Errorf("%s: IsInside = %v, want %v", tt.name, got, tt.inside)
		}
		if got := outer.Contains(tt.inner); got != tt.inside {
			t.Errorf("%s: Contains = %v, want %v", tt.name, got, tt.inside)
		}
	}
}

func TestRegionIntersectUnion(t *testing.T) {
	a := gojp2.NewRegion2D(0, 0, 10, 10)
	b := gojp2.NewRegion2D(5, 8, 10, 10)

	if got := a.Intersect(b); !got.Equal(gojp2.NewRegion2D(5, 8, 5, 2)) {
		t.Errorf("Intersect = %s", got)
	}
	if got := a.Union(b); !got.Equal(gojp2.NewRegion2D(0, 0, 15, 18)) {
		t.Errorf("Union = %s", got)
	}
	if got := a.Intersect(gojp2.NewRegion2D(20, 20, 5, 5)); !got.IsEmpty() {
		t.Errorf("disjoint Intersect = %s, want empty", got)
	}
	if got := a.Union(gojp2.Region{}); !got.Equal(a) {
		t.Errorf("Union with empty = %s, want %s", got, a)
	}
}

func TestRegionRectangle(t *testing.T) {
	r := gojp2.NewRegion2D(3, 4, 10, 20)
	want := image.Rect(3, 4, 13, 24)
	if got := r.Rectangle(); got != want {
		t.Errorf("Rectangle = %v, want %v", got, want)
	}
	if back := gojp2.RegionFromRectangle(want); !back.Equal(r) {
		t.Errorf("RegionFromRectangle = %s, want %s", back, r)
	}
	if s := r.String(); s != "index=(3,4) size=(10,20)" {
		t.Errorf("String = %q", s)
	}
}

func TestRegionClone(t *testing.T) {
	r := gojp2.NewRegion2D(1, 2, 3, 4)
	c := r.Clone()
	c.Index[0] = 99
	if r.Index[0] != 1 {
		t.Error("Clone shares storage with the original")
	}
}
