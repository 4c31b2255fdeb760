package gojp2

import (
	"fmt"
	"log"
	"strings"

	"github.com/natefinch/lumberjack"
)

// ModeFlag is the minimum severity a message needs to be logged.
type ModeFlag uint

const (
	DebugMode ModeFlag = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

// Logger provides a way for the image I/O to log messages at different severities.
type Logger interface {
	// Debugf formats its arguments analogous to fmt.Printf and records the text as a log
	// message at Debug level.
	Debugf(format string, args ...interface{})

	// Infof is like Debugf, but at Info level.
	Infof(format string, args ...interface{})

	// Warningf is like Debugf, but at Warning level.
	Warningf(format string, args ...interface{})

	// Errorf is like Debugf, but at Error level.
	Errorf(format string, args ...interface{})

	// Shutdown makes sure logs are closed.
	Shutdown()
}

// ParseLogLevel maps "debug", "info", "warning", "error" or "silent" to a ModeFlag.
func ParseLogLevel(s string) (ModeFlag, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DebugMode, nil
	case "info":
		return InfoMode, nil
	case "warning", "warn":
		return WarningMode, nil
	case "error":
		return ErrorMode, nil
	case "silent", "none":
		return SilentMode, nil
	default:
		return WarningMode, fmt.Errorf("unknown log level %q", s)
	}
}

type stdLogger struct {
	mode ModeFlag
	out  *log.Logger
	file *lumberjack.Logger
}

// NewLogger returns a logger writing through the standard log package at
// the given minimum severity.
func NewLogger(mode ModeFlag) Logger {
	return &stdLogger{mode: mode, out: log.Default()}
}

// LogConfig selects the log level and an optional rotating log file.
type LogConfig struct {
	Logfile string
	MaxSize int `toml:"max_log_size"` // megabytes
	MaxAge  int `toml:"max_log_age"`  // days
	Level   string
}

// NewLogger creates a logger from the configuration. Without a log file,
// messages go to the standard logger.
func (c *LogConfig) NewLogger() Logger {
	mode := WarningMode
	if c != nil && c.Level != "" {
		if m, err := ParseLogLevel(c.Level); err == nil {
			mode = m
		}
	}
	if c == nil || c.Logfile == "" {
		return NewLogger(mode)
	}
	l := &lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	}
	return &stdLogger{
		mode: mode,
		out:  log.New(l, "", log.LstdFlags),
		file: l,
	}
}

func (l *stdLogger) logf(level ModeFlag, tag, format string, args ...interface{}) {
	if l.mode > level {
		return
	}
	l.out.Printf(" "+tag+" "+format, args...)
}

func (l *stdLogger) Debugf(format string, args ...interface{}) {
	l.logf(DebugMode, "DEBUG", format, args...)
}

func (l *stdLogger) Infof(format string, args ...interface{}) {
	l.logf(InfoMode, "INFO", format, args...)
}

func (l *stdLogger) Warningf(format string, args ...interface{}) {
	l.logf(WarningMode, "WARNING", format, args...)
}

func (l *stdLogger) Errorf(format string, args ...interface{}) {
	l.logf(ErrorMode, "ERROR", format, args...)
}

func (l *stdLogger) Shutdown() {
	if l.file != nil {
		l.file.Close()
	}
}
