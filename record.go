// FILE: lixenwraith/seglog/record.go
package seglog

import (
	"time"

	"github.com/lixenwraith/seglog/formatter"
)

// LogRecord is one logged event, immutable once built
type LogRecord struct {
	Level      Level
	Tag        string
	Message    string
	SourceFile string
	SourceLine int
	Method     string
	Thread     string
	Time       time.Time // Wall clock in the configured zone
}

// composeMessage renders the call arguments into a message. The first error
// argument is the attached error and contributes its trace; the rest form the
// text. ok is false when there is neither text nor an error.
func composeMessage(args []any) (msg string, ok bool) {
	msg, attached := splitArgs(args)
	switch {
	case msg == "" && attached == nil:
		return "", false
	case msg == "":
		msg = formatter.ErrorTrace(attached)
	case attached != nil:
		msg = msg + "\n" + formatter.ErrorTrace(attached)
	}
	return msg, true
}

// newRecord builds a record for a resolved call site, deriving the tag when absent
func newRecord(level Level, tag string, cs CallSite, now time.Time, msg string) LogRecord {
	if tag == "" {
		tag = cs.Tag()
	}
	return LogRecord{
		Level:      level,
		Tag:        tag,
		Message:    msg,
		SourceFile: cs.File,
		SourceLine: cs.Line,
		Method:     cs.Function,
		Thread:     goroutineLabel(),
		Time:       now,
	}
}

// splitArgs separates the attached error from the message arguments
func splitArgs(args []any) (string, error) {
	var attached error
	rest := args
	for i, arg := range args {
		if err, isErr := arg.(error); isErr && err != nil {
			attached = err
			rest = make([]any, 0, len(args)-1)
			rest = append(rest, args[:i]...)
			rest = append(rest, args[i+1:]...)
			break
		}
	}
	return formatter.Args(rest...), attached
}

// entry converts the record for the formatter
func (r LogRecord) entry() formatter.Entry {
	return formatter.Entry{
		Level:   r.Level.String(),
		Time:    r.Time,
		File:    r.SourceFile,
		Line:    r.SourceLine,
		Method:  r.Method,
		Thread:  r.Thread,
		Message: r.Message,
	}
}
