// FILE: lixenwraith/seglog/sink.go
package seglog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleSink receives formatted console text for a record
type ConsoleSink interface {
	Write(level Level, tag, text string)
}

// ConsoleSinkFunc adapts a function to ConsoleSink
type ConsoleSinkFunc func(level Level, tag, text string)

// Write calls f
func (f ConsoleSinkFunc) Write(level Level, tag, text string) { f(level, tag, text) }

// levelLetters are the single-letter prefixes used by WriterSink
var levelLetters = [...]byte{
	LevelVerbose: 'V',
	LevelDebug:   'D',
	LevelInfo:    'I',
	LevelWarn:    'W',
	LevelError:   'E',
	LevelFatal:   'F',
	LevelCrash:   'C',
	LevelJSON:    'J',
}

// WriterSink writes "L/tag: text" lines to an io.Writer
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterSink creates a sink over w
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

// Write prints one console chunk
func (s *WriterSink) Write(level Level, tag, text string) {
	letter := byte('?')
	if level >= 0 && int(level) < len(levelLetters) {
		letter = levelLetters[level]
	}
	s.mu.Lock()
	fmt.Fprintf(s.w, "%c/%s: %s\n", letter, tag, text)
	s.mu.Unlock()
}

// ZapSink forwards console text to a zap logger, named by tag
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink wraps logger. A nil logger gets a console encoder on target.
func NewZapSink(logger *zap.Logger, target io.Writer) *ZapSink {
	if logger == nil {
		if target == nil {
			target = os.Stdout
		}
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(zapcore.AddSync(target)),
			zapcore.DebugLevel,
		)
		logger = zap.New(core)
	}
	return &ZapSink{logger: logger}
}

// Write logs text at the zap level matching level
func (s *ZapSink) Write(level Level, tag, text string) {
	if ce := s.logger.Check(zapLevel(level), text); ce != nil {
		ce.Write(zap.String("tag", tag), zap.String("level", level.String()))
	}
}

// Sync flushes the underlying zap core
func (s *ZapSink) Sync() error {
	return s.logger.Sync()
}

// zapLevel maps record levels, fatal and crash never terminate through zap
func zapLevel(level Level) zapcore.Level {
	switch level {
	case LevelVerbose, LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError, LevelFatal, LevelCrash:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newConsoleSink builds the sink selected by console_format and console_target
func newConsoleSink(cfg *Config) ConsoleSink {
	var target io.Writer = os.Stdout
	if cfg.ConsoleTarget == "stderr" {
		target = os.Stderr
	}
	if cfg.ConsoleFormat == "zap" {
		return NewZapSink(nil, target)
	}
	return NewWriterSink(target)
}
