package seglog

// Entry is a logger view with a fixed tag and extra call-site skip, for
// wrappers and components that want their own tag
type Entry struct {
	l    *Logger
	tag  string
	skip int
}

// Tag returns a view logging under tag instead of the derived one
func (l *Logger) Tag(tag string) *Entry {
	return &Entry{l: l, tag: tag}
}

// Skip returns a view that resolves the caller n frames further up the stack,
// for code that wraps the logger in its own helpers. Added to call_site_skip_depth.
func (l *Logger) Skip(n int) *Entry {
	return &Entry{l: l, skip: max(n, 0)}
}

// Tag returns a copy of the view with a different tag
func (e *Entry) Tag(tag string) *Entry {
	return &Entry{l: e.l, tag: tag, skip: e.skip}
}

// Skip returns a copy of the view with n more frames skipped
func (e *Entry) Skip(n int) *Entry {
	return &Entry{l: e.l, tag: e.tag, skip: max(e.skip+n, 0)}
}

// Logger returns the underlying logger
func (e *Entry) Logger() *Logger { return e.l }

func (e *Entry) Verbose(args ...any) { e.l.dispatch(LevelVerbose, e.tag, e.skip, args) }
func (e *Entry) Debug(args ...any)   { e.l.dispatch(LevelDebug, e.tag, e.skip, args) }
func (e *Entry) Info(args ...any)    { e.l.dispatch(LevelInfo, e.tag, e.skip, args) }
func (e *Entry) Warn(args ...any)    { e.l.dispatch(LevelWarn, e.tag, e.skip, args) }
func (e *Entry) Error(args ...any)   { e.l.dispatch(LevelError, e.tag, e.skip, args) }
func (e *Entry) Fatal(args ...any)   { e.l.dispatch(LevelFatal, e.tag, e.skip, args) }
func (e *Entry) JSON(args ...any)    { e.l.dispatch(LevelJSON, e.tag, e.skip, args) }
func (e *Entry) Crash(args ...any)   { e.l.dispatch(LevelCrash, e.tag, e.skip, args) }

// Log logs at an explicit level
func (e *Entry) Log(level Level, args ...any) { e.l.dispatch(level, e.tag, e.skip, args) }
