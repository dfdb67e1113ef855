// FILE: lixenwraith/seglog/default.go
package seglog

import (
	"sync"
	"sync/atomic"
	"time"
)

// Global instance for package-level functions
var (
	defaultLogger     atomic.Pointer[Logger]
	defaultLoggerOnce sync.Once
)

// Default returns the package-level logger, built from DefaultConfig on first use
func Default() *Logger {
	defaultLoggerOnce.Do(func() {
		if defaultLogger.Load() != nil {
			return
		}
		l, err := New(DefaultConfig())
		if err != nil {
			// Defaults always validate
			panic(err)
		}
		defaultLogger.CompareAndSwap(nil, l)
	})
	return defaultLogger.Load()
}

// SetDefault replaces the package-level logger
func SetDefault(l *Logger) {
	if l == nil {
		return
	}
	defaultLogger.Store(l)
}

// Init replaces the package-level logger with one built from cfg
func Init(cfg *Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// InitFromFile replaces the package-level logger with one loaded from a TOML file
// with optional "key=value" overrides
func InitFromFile(path string, overrides ...string) error {
	cfg, err := NewConfigFromFile(path)
	if err != nil {
		return err
	}
	l, err := NewBuilder().Config(cfg).Override(overrides...).Build()
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// Default package-level functions that delegate to the default logger.
// Each calls dispatch directly so call-site depth matches the methods.

// Verbose logs at verbose level
func Verbose(args ...any) {
	Default().dispatch(LevelVerbose, "", 0, args)
}

// Debug logs at debug level
func Debug(args ...any) {
	Default().dispatch(LevelDebug, "", 0, args)
}

// Info logs at info level
func Info(args ...any) {
	Default().dispatch(LevelInfo, "", 0, args)
}

// Warn logs at warn level
func Warn(args ...any) {
	Default().dispatch(LevelWarn, "", 0, args)
}

// Error logs at error level
func Error(args ...any) {
	Default().dispatch(LevelError, "", 0, args)
}

// Fatal logs at fatal level
func Fatal(args ...any) {
	Default().dispatch(LevelFatal, "", 0, args)
}

// JSON logs a JSON message
func JSON(args ...any) {
	Default().dispatch(LevelJSON, "", 0, args)
}

// Crash logs a crash record and waits for it to reach disk
func Crash(args ...any) {
	Default().dispatch(LevelCrash, "", 0, args)
}

// Flush waits until everything queued by the default logger is on disk
func Flush(timeout time.Duration) error {
	return Default().Flush(timeout)
}

// Shutdown flushes the default logger and stops the process-wide write queues.
// Loggers sharing those queues drop records afterwards.
func Shutdown(timeout time.Duration) error {
	err := Default().Shutdown(timeout)
	return combineErrors(err, stopSharedQueues(timeout))
}
