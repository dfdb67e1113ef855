// Package formatter renders log records into console lines, file lines and the
// per-file header block.
package formatter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	"github.com/lixenwraith/seglog/sanitizer"
	"golang.org/x/text/encoding/htmlindex"
)

// jsonIndent is the indentation used when pretty-printing JSON messages
const jsonIndent = "    "

// Entry carries the fields a formatter needs from a log record
type Entry struct {
	Level   string
	Time    time.Time
	File    string
	Line    int
	Method  string
	Thread  string
	Message string
}

// Field is one labeled line of the file header block
type Field struct {
	Label string
	Value string
}

// dumper renders composite values in a stable, address-free form
var dumper = &spew.ConfigState{
	Indent:                  " ",
	MaxDepth:                10,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Formatter renders entries. Safe for concurrent use.
type Formatter struct {
	policy        sanitizer.PolicyPreset
	consolePolicy sanitizer.PolicyPreset
	timeFormat    string
	pool          sync.Pool // *sanitizer.Sanitizer for file lines
	consolePool   sync.Pool // *sanitizer.Sanitizer for console lines
}

// New creates a formatter applying the sanitization policy to file lines.
// Console messages are passed through until ConsolePolicy is set.
func New(policy sanitizer.PolicyPreset) *Formatter {
	f := &Formatter{
		policy:        policy,
		consolePolicy: sanitizer.PolicyRaw,
		timeFormat:    time.DateTime,
	}
	f.pool.New = func() any { return sanitizer.ForPolicy(f.policy) }
	f.consolePool.New = func() any { return sanitizer.ForPolicy(f.consolePolicy) }
	return f
}

// ConsolePolicy sets the sanitization policy for console messages. Must be
// called before the formatter is shared.
func (f *Formatter) ConsolePolicy(policy sanitizer.PolicyPreset) *Formatter {
	f.consolePolicy = policy
	return f
}

// TimeFormat sets the Go layout used for file line timestamps
func (f *Formatter) TimeFormat(layout string) *Formatter {
	if layout != "" {
		f.timeFormat = layout
	}
	return f
}

// Console renders "[(file:line)#method Thread:thread]\nmessage"
func (f *Formatter) Console(e Entry) string {
	msg := e.Message
	if f.consolePolicy != sanitizer.PolicyRaw {
		san := f.consolePool.Get().(*sanitizer.Sanitizer)
		msg = san.Sanitize(msg)
		f.consolePool.Put(san)
	}

	var sb strings.Builder
	sb.Grow(len(e.File) + len(e.Method) + len(e.Thread) + len(msg) + 32)
	sb.WriteString("[(")
	sb.WriteString(e.File)
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(e.Line))
	sb.WriteString(")#")
	sb.WriteString(e.Method)
	sb.WriteString(" Thread:")
	sb.WriteString(e.Thread)
	sb.WriteString("]\n")
	sb.WriteString(msg)
	return sb.String()
}

// File renders "[time LEVEL file:line Thread:thread]\nmessage\n\n"
func (f *Formatter) File(e Entry) string {
	msg := f.sanitize(e.Message)

	buf := make([]byte, 0, len(e.File)+len(e.Thread)+len(msg)+64)
	buf = append(buf, '[')
	buf = e.Time.AppendFormat(buf, f.timeFormat)
	buf = append(buf, ' ')
	buf = append(buf, e.Level...)
	buf = append(buf, ' ')
	buf = append(buf, e.File...)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(e.Line), 10)
	buf = append(buf, " Thread:"...)
	buf = append(buf, e.Thread...)
	buf = append(buf, "]\n"...)
	buf = append(buf, msg...)
	buf = append(buf, "\n\n"...)
	return string(buf)
}

func (f *Formatter) sanitize(s string) string {
	san := f.pool.Get().(*sanitizer.Sanitizer)
	defer f.pool.Put(san)
	return san.Sanitize(s)
}

// Header renders the block written at the top of every new log file,
// one "Label: value" line per field followed by two blank lines
func Header(fields []Field) string {
	var sb strings.Builder
	for _, fd := range fields {
		sb.WriteString(fd.Label)
		sb.WriteString(": ")
		sb.WriteString(fd.Value)
		sb.WriteByte('\n')
	}
	sb.WriteString("\n\n")
	return sb.String()
}

// Args joins message arguments with single spaces
func Args(args ...any) string {
	buf := make([]byte, 0, 64)
	for i, arg := range args {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = appendValue(buf, arg)
	}
	return string(buf)
}

// appendValue provides unified type conversion
func appendValue(buf []byte, v any) []byte {
	switch val := v.(type) {
	case string:
		return append(buf, val...)
	case []byte:
		return append(buf, val...)
	case rune:
		return utf8.AppendRune(buf, val)
	case int:
		return strconv.AppendInt(buf, int64(val), 10)
	case int64:
		return strconv.AppendInt(buf, val, 10)
	case uint:
		return strconv.AppendUint(buf, uint64(val), 10)
	case uint64:
		return strconv.AppendUint(buf, val, 10)
	case float32:
		return strconv.AppendFloat(buf, float64(val), 'f', -1, 32)
	case float64:
		return strconv.AppendFloat(buf, val, 'f', -1, 64)
	case bool:
		return strconv.AppendBool(buf, val)
	case nil:
		return append(buf, "nil"...)
	case time.Time:
		return val.AppendFormat(buf, time.RFC3339Nano)
	case time.Duration:
		return append(buf, val.String()...)
	case error:
		return append(buf, val.Error()...)
	case fmt.Stringer:
		return append(buf, val.String()...)
	default:
		var b bytes.Buffer
		dumper.Fdump(&b, val)
		return append(buf, bytes.TrimSpace(b.Bytes())...)
	}
}

// ErrorTrace renders an error with its full cause chain. Errors that format
// extra detail under %+v contribute it to the first line.
func ErrorTrace(err error) string {
	if err == nil {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%+v", err))
	seen := err.Error()
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		msg := cause.Error()
		if msg == seen {
			continue
		}
		sb.WriteString("\ncaused by: ")
		sb.WriteString(msg)
		seen = msg
	}
	return sb.String()
}

// PrettyJSON indents a JSON object or array message. Anything that is not a
// valid object or array is returned unchanged with ok=false.
func PrettyJSON(message string) (pretty string, ok bool) {
	trimmed := strings.TrimSpace(message)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return message, false
	}
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(trimmed), "", jsonIndent); err != nil {
		return message, false
	}
	return out.String(), true
}

// Chunks splits s into pieces of at most max bytes without breaking a UTF-8 sequence
func Chunks(s string, max int) []string {
	if max <= 0 || len(s) <= max {
		return []string{s}
	}
	chunks := make([]string, 0, len(s)/max+1)
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = max
		}
		chunks = append(chunks, s[:cut])
		s = s[cut:]
	}
	if len(s) > 0 {
		chunks = append(chunks, s)
	}
	return chunks
}

// Encode converts UTF-8 text into the named charset. UTF-8 labels pass through.
func Encode(charset, text string) (string, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", fmt.Errorf("unsupported charset '%s': %w", charset, err)
	}
	if name, _ := htmlindex.Name(enc); name == "utf-8" {
		return text, nil
	}
	out, err := enc.NewEncoder().String(text)
	if err != nil {
		return "", fmt.Errorf("failed to encode text as %s: %w", charset, err)
	}
	return out, nil
}
