package gojp2

import (
	"fmt"
	"sort"
	"sync"
)

// Plugin describes an image format handler.
type Plugin struct {
	Name       string
	Extensions []string
	CanRead    func(path string) bool
	CanWrite   func(path string) bool
	New        func() ImageIO
}

// Registry holds the known image format plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

// DefaultRegistry is the process-wide registry. It holds the JPEG 2000 plugin.
var DefaultRegistry = NewRegistry()

func init() {
	if err := DefaultRegistry.Register(JP2Plugin()); err != nil {
		panic(err)
	}
}

// JP2Plugin returns the JPEG 2000 plugin. New instances use the default configuration.
func JP2Plugin() Plugin {
	probe := NewJP2ImageIO(WithLogger(NewLogger(SilentMode)))
	exts := make([]string, 0, len(fileExtensions))
	for ext := range fileExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return Plugin{
		Name:       "jpeg2000",
		Extensions: exts,
		CanRead:    probe.CanRead,
		CanWrite:   probe.CanWrite,
		New:        func() ImageIO { return NewJP2ImageIO() },
	}
}

// Register adds a plugin. Names must be unique.
func (r *Registry) Register(p Plugin) error {
	if p.Name == "" || p.New == nil {
		return fmt.Errorf("plugin needs a name and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, found := r.plugins[p.Name]; found {
		return fmt.Errorf("plugin %q already registered", p.Name)
	}
	r.plugins[p.Name] = p
	return nil
}

// ReaderFor returns a new ImageIO for path from the first plugin, by name,
// that can read it.
func (r *Registry) ReaderFor(path string) (ImageIO, error) {
	for _, p := range r.Plugins() {
		if p.CanRead != nil && p.CanRead(path) {
			io := p.New()
			io.SetFileName(path)
			return io, nil
		}
	}
	return nil, fmt.Errorf("%w: no plugin can read %s", ErrUnsupportedFormat, path)
}

// WriterFor returns a new ImageIO for path from the first plugin, by name,
// that can write it.
func (r *Registry) WriterFor(path string) (ImageIO, error) {
	for _, p := range r.Plugins() {
		if p.CanWrite != nil && p.CanWrite(path) {
			io := p.New()
			io.SetFileName(path)
			return io, nil
		}
	}
	return nil, fmt.Errorf("%w: no plugin can write %s", ErrUnsupportedFormat, path)
}

// Plugins returns the registered plugins sorted by name.
func (r *Registry) Plugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}
