package gojp2_test

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tingold/gojp2"
)

func TestDefaultRegistry(t *testing.T) {
	plugins := gojp2.DefaultRegistry.Plugins()
	if len(plugins) != 1 || plugins[0].Name != "jpeg2000" {
		t.Fatalf("default plugins %v", plugins)
	}
	if got := strings.Join(plugins[0].Extensions, ","); got != ".j2c,.j2k,.jp2,.jpc" {
		t.Errorf("extensions %s", got)
	}

	io, err := gojp2.DefaultRegistry.WriterFor("out.jp2")
	if err != nil {
		t.Fatalf("WriterFor(out.jp2) error: %v", err)
	}
	if jp2, ok := io.(*gojp2.JP2ImageIO); !ok || jp2.FileName() != "out.jp2" {
		t.Errorf("WriterFor returned %T", io)
	}
	if _, err := gojp2.DefaultRegistry.WriterFor("out.png"); !errors.Is(err, gojp2.ErrUnsupportedFormat) {
		t.Errorf("WriterFor(out.png) error = %v", err)
	}
	if _, err := gojp2.DefaultRegistry.ReaderFor(filepath.Join(t.TempDir(), "missing.jp2")); !errors.Is(err, gojp2.ErrUnsupportedFormat) {
		t.Errorf("ReaderFor(missing) error = %v", err)
	}
}

type stubIO struct {
	gojp2.ImageIO
	name string
}

func (s *stubIO) SetFileName(name string) { s.name = name }

func TestRegistryRegister(t *testing.T) {
	r := gojp2.NewRegistry()
	stub := gojp2.Plugin{
		Name:     "stub",
		CanRead:  func(path string) bool { return strings.HasSuffix(path, ".stub") },
		CanWrite: func(path string) bool { return false },
		New:      func() gojp2.ImageIO { return &stubIO{} },
	}
	if err := r.Register(stub); err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if err := r.Register(stub); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := r.Register(gojp2.Plugin{Name: "nameless constructor"}); err == nil {
		t.Error("Register without constructor should fail")
	}
	if err := r.Register(gojp2.JP2Plugin()); err != nil {
		t.Fatalf("Register(jpeg2000) error: %v", err)
	}

	io, err := r.ReaderFor("a.stub")
	if err != nil {
		t.Fatalf("ReaderFor error: %v", err)
	}
	if s, ok := io.(*stubIO); !ok || s.name != "a.stub" {
		t.Errorf("ReaderFor returned %#v", io)
	}
	if _, err := r.WriterFor("a.stub"); err == nil {
		t.Error("stub cannot write")
	}
	if names := len(r.Plugins()); names != 2 {
		t.Errorf("%d plugins registered", names)
	}
}
