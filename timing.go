package seglog

import (
	"strconv"
	"sync"
	"time"
)

// timingTag is the tag of records written by TimingLogger
const timingTag = "timing"

// TimingLogger records named splits of an operation and dumps them as info records
//
//	t := logger.Timing("load")
//	readConfig()
//	t.AddSplit("config")
//	openDB()
//	t.AddSplit("db")
//	t.DumpToLog()
type TimingLogger struct {
	mu     sync.Mutex
	l      *Logger
	tag    string
	label  string
	splits []time.Time
	labels []string
	now    func() time.Time
}

// Timing starts a timing session labeled label
func (l *Logger) Timing(label string) *TimingLogger {
	t := &TimingLogger{l: l, tag: timingTag, now: time.Now}
	t.Reset(label)
	return t
}

// WithTag changes the tag of dumped records
func (t *TimingLogger) WithTag(tag string) *TimingLogger {
	t.mu.Lock()
	t.tag = tag
	t.mu.Unlock()
	return t
}

// Reset clears all splits and restarts the session under label
func (t *TimingLogger) Reset(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.label = label
	t.splits = append(t.splits[:0], t.now())
	t.labels = append(t.labels[:0], "")
}

// AddSplit marks the end of a named step
func (t *TimingLogger) AddSplit(label string) {
	t.mu.Lock()
	t.splits = append(t.splits, t.now())
	t.labels = append(t.labels, label)
	t.mu.Unlock()
}

// Lines renders the dump: a begin line, one line per split, then the total
func (t *TimingLogger) Lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	lines := make([]string, 0, len(t.splits)+1)
	lines = append(lines, t.label+" begin")
	first := t.splits[0]
	last := first
	for i := 1; i < len(t.splits); i++ {
		last = t.splits[i]
		elapsed := t.splits[i].Sub(t.splits[i-1]).Milliseconds()
		lines = append(lines, t.label+" "+strconv.FormatInt(elapsed, 10)+" ms, "+t.labels[i])
	}
	lines = append(lines, t.label+" end, "+strconv.FormatInt(last.Sub(first).Milliseconds(), 10)+" ms")
	return lines
}

// DumpToLog writes the dump at info level, attributed to the caller
func (t *TimingLogger) DumpToLog() {
	t.mu.Lock()
	tag := t.tag
	t.mu.Unlock()
	for _, line := range t.Lines() {
		t.l.dispatch(LevelInfo, tag, 0, []any{line})
	}
}
