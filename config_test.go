package gojp2

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	ts := cfg.Writer.tileSize()
	if ts[0] != DefaultTileSize[0] || ts[1] != DefaultTileSize[1] {
		t.Errorf("default tile size %v", ts)
	}
	if !cfg.Writer.Lossless {
		t.Error("default writer should be lossless")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gojp2.toml")
	data := `
[writer]
tile_width = 128
tile_height = 64
lossless = false
quality = 40
format = "j2k"
comment = "made by a test"

[cache]
size_mb = 16

[logging]
logfile = "/tmp/gojp2.log"
max_log_size = 10
max_log_age = 7
level = "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	w := cfg.Writer
	if w.TileWidth != 128 || w.TileHeight != 64 || w.Lossless || w.Quality != 40 || w.Format != "j2k" {
		t.Errorf("writer config %+v", w)
	}
	if w.Resolutions != 6 {
		t.Errorf("unset resolutions should keep default, got %d", w.Resolutions)
	}
	if cfg.Cache.SizeMB != 16 {
		t.Errorf("cache size %d", cfg.Cache.SizeMB)
	}
	l := cfg.Logging
	if l.Logfile != "/tmp/gojp2.log" || l.MaxSize != 10 || l.MaxAge != 7 || l.Level != "debug" {
		t.Errorf("logging config %+v", l)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("missing file should give defaults, got %v", err)
	}
	if cfg.Writer.TileWidth != DefaultTileSize[0] {
		t.Errorf("tile width %d", cfg.Writer.TileWidth)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":      "[writer\ntile_width = 1",
		"quality":     "[writer]\nlossless = false\nquality = 101",
		"format":      "[writer]\nformat = \"png\"",
		"tile":        "[writer]\ntile_width = -4",
		"cache":       "[cache]\nsize_mb = -1",
		"log level":   "[logging]\nlevel = \"chatty\"",
		"resolutions": "[writer]\nresolutions = 40",
	}
	dir := t.TempDir()
	for name, data := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".toml")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadConfig(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]ModeFlag{
		"debug":   DebugMode,
		"INFO":    InfoMode,
		"warning": WarningMode,
		"warn":    WarningMode,
		"error":   ErrorMode,
		"silent":  SilentMode,
	}
	for s, want := range tests {
		got, err := ParseLogLevel(s)
		if err != nil || got != want {
			t.Errorf("ParseLogLevel(%q) = %d, %v", s, got, err)
		}
	}
}

func TestLogConfigNewLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gojp2.log")
	cfg := &LogConfig{Logfile: path, MaxSize: 1, Level: "info"}
	l := cfg.NewLogger()
	l.Debugf("hidden %d\n", 1)
	l.Infof("shown %d\n", 2)
	l.Shutdown()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "INFO shown 2") || strings.Contains(string(data), "hidden") {
		t.Errorf("unexpected log contents %q", data)
	}
}
