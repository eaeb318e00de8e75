// Package logging provides the small leveled logger used across zdb's
// storage layers. It is observational only: nothing here ever changes
// control flow, only what gets written to an io.Writer.
//
// Grounded on the embedded-storage-engine logger shape retrieved in the
// example pack (a four-level Errorf/Warnf/Infof/Debugf interface backed by
// the standard log.Logger), trimmed to zdb's needs.
package logging

import (
	"io"
	"log"
	"os"
)

// Level controls which calls actually reach the underlying writer.
type Level int8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	// LevelSilent disables all output.
	LevelSilent
)

// Logger is the leveled logging interface used by walog, pager and the
// Database facade.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// simpleLogger is a log.Logger-backed Logger, one line per call, prefixed
// with the level name.
type simpleLogger struct {
	l     *log.Logger
	level Level
}

// New returns a Logger that writes to out at the given minimum level.
func New(out io.Writer, level Level) Logger {
	return &simpleLogger{l: log.New(out, "", log.LstdFlags), level: level}
}

// NewStderr returns a Logger writing to os.Stderr at LevelInfo.
func NewStderr() Logger {
	return New(os.Stderr, LevelInfo)
}

func (s *simpleLogger) Debugf(format string, args ...interface{}) {
	if s.level <= LevelDebug {
		s.l.Printf("DEBUG "+format, args...)
	}
}

func (s *simpleLogger) Infof(format string, args ...interface{}) {
	if s.level <= LevelInfo {
		s.l.Printf("INFO  "+format, args...)
	}
}

func (s *simpleLogger) Warnf(format string, args ...interface{}) {
	if s.level <= LevelWarn {
		s.l.Printf("WARN  "+format, args...)
	}
}

func (s *simpleLogger) Errorf(format string, args ...interface{}) {
	if s.level <= LevelError {
		s.l.Printf("ERROR "+format, args...)
	}
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...interface{}) {}
func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}

// Nop is a Logger that discards everything.
var Nop Logger = nopLogger{}

// OrNop returns l, or Nop if l is nil. Used at package boundaries so
// callers never have to nil-check before logging.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop
	}
	return l
}
