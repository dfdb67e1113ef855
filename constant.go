// FILE: lixenwraith/seglog/constant.go
package seglog

import (
	"strings"
	"time"
)

// Level identifies the severity or kind of a log record
type Level int

// Log levels, ordered by severity. Crash and JSON are special-purpose levels.
const (
	LevelVerbose Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
	LevelCrash
	LevelJSON
)

var levelNames = [...]string{
	LevelVerbose: "VERBOSE",
	LevelDebug:   "DEBUG",
	LevelInfo:    "INFO",
	LevelWarn:    "WARN",
	LevelError:   "ERROR",
	LevelFatal:   "FATAL",
	LevelCrash:   "CRASH",
	LevelJSON:    "JSON",
}

// String returns the upper-case level name used in file lines
func (lv Level) String() string {
	if lv < LevelVerbose || int(lv) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[lv]
}

// ParseLevel converts a level name to its Level, case-insensitive
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verbose", "v":
		return LevelVerbose, nil
	case "debug", "d":
		return LevelDebug, nil
	case "info", "i":
		return LevelInfo, nil
	case "warn", "warning", "w":
		return LevelWarn, nil
	case "error", "e":
		return LevelError, nil
	case "fatal", "wtf":
		return LevelFatal, nil
	case "crash":
		return LevelCrash, nil
	case "json":
		return LevelJSON, nil
	default:
		return 0, fmtErrorf("invalid level string: '%s' (use verbose, debug, info, warn, error, fatal, crash, json)", s)
	}
}

// File naming
const (
	logExt      = ".log"
	zipExt      = ".zip"
	crashSuffix = "_crash"
	dateLayout  = "2006-01-02"
)

// Write queue
const (
	// Entries buffered per target file before an implicit flush
	defaultBufferEntries int64 = 20
	// Console messages longer than this are split into several sink calls
	maxConsoleChunk = 4000
)

// Timers
const (
	// Minimum wait time used throughout the package
	minWaitTime = 10 * time.Millisecond
	// Default cadence of the upload trigger
	DefaultUploadInterval = 15 * time.Minute
)

// validSegmentWidths lists the hour widths that evenly divide a day
var validSegmentWidths = map[int64]bool{1: true, 2: true, 3: true, 4: true, 6: true, 12: true, 24: true}

// Zone offset bounds in milliseconds, -12:00 to +14:00
const (
	minZoneOffsetMs int64 = -12 * 3600 * 1000
	maxZoneOffsetMs int64 = 14 * 3600 * 1000
)
