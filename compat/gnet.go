package compat

import (
	"fmt"
	"os"
	"time"

	"github.com/lixenwraith/seglog"
	"github.com/panjf2000/gnet/v2/pkg/logging"
)

// gnetTag is the record tag of everything gnet logs
const gnetTag = "gnet"

var _ logging.Logger = (*GnetAdapter)(nil)

// GnetAdapter wraps seglog.Logger to implement gnet logging.Logger interface.
// Records are attributed to the gnet code that called the adapter.
type GnetAdapter struct {
	logger       *seglog.Logger
	entry        *seglog.Entry
	fatalHandler func(msg string) // Customizable fatal behavior
}

// NewGnetAdapter creates a new gnet-compatible logger adapter
func NewGnetAdapter(logger *seglog.Logger, opts ...GnetOption) *GnetAdapter {
	adapter := &GnetAdapter{
		logger: logger,
		entry:  logger.Tag(gnetTag).Skip(1),
		fatalHandler: func(msg string) {
			os.Exit(1) // Default behavior matches gnet expectations
		},
	}

	for _, opt := range opts {
		opt(adapter)
	}

	return adapter
}

// GnetOption allows customizing adapter behavior
type GnetOption func(*GnetAdapter)

// WithFatalHandler sets a custom fatal handler
func WithFatalHandler(handler func(string)) GnetOption {
	return func(a *GnetAdapter) {
		a.fatalHandler = handler
	}
}

// WithGnetTag replaces the "gnet" record tag
func WithGnetTag(tag string) GnetOption {
	return func(a *GnetAdapter) {
		a.entry = a.entry.Tag(tag)
	}
}

// Debugf logs at debug level with printf-style formatting
func (a *GnetAdapter) Debugf(format string, args ...any) {
	a.entry.Debug(fmt.Sprintf(format, args...))
}

// Infof logs at info level with printf-style formatting
func (a *GnetAdapter) Infof(format string, args ...any) {
	a.entry.Info(fmt.Sprintf(format, args...))
}

// Warnf logs at warn level with printf-style formatting
func (a *GnetAdapter) Warnf(format string, args ...any) {
	a.entry.Warn(fmt.Sprintf(format, args...))
}

// Errorf logs at error level with printf-style formatting
func (a *GnetAdapter) Errorf(format string, args ...any) {
	a.entry.Error(fmt.Sprintf(format, args...))
}

// Fatalf logs at fatal level and triggers fatal handler
func (a *GnetAdapter) Fatalf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	a.entry.Fatal(msg)

	// Ensure log is flushed before exit
	_ = a.logger.Flush(100 * time.Millisecond)

	if a.fatalHandler != nil {
		a.fatalHandler(msg)
	}
}
