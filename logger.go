// FILE: lixenwraith/seglog/logger.go
package seglog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/seglog/formatter"
	"github.com/lixenwraith/seglog/sanitizer"
)

// ErrNoStorage is returned by Upload on a logger without a storage
var ErrNoStorage = errors.New("logger has no storage configured")

// snapshot is everything a log call reads, swapped as a whole on reconfiguration
type snapshot struct {
	cfg       *Config
	formatter *formatter.Formatter
	sink      ConsoleSink
	header    HeaderFunc
}

// State holds the logger's runtime counters
type State struct {
	ShutdownCalled atomic.Bool

	Records          atomic.Uint64 // Records built and routed
	ConsoleLines     atomic.Uint64 // Records written to the console sink
	Persisted        atomic.Uint64 // Records accepted by the write queue
	Dropped          atomic.Uint64 // Records the write queue rejected
	Crashes          atomic.Uint64 // Crash records written
	CrashTimeouts    atomic.Uint64 // Crash records not confirmed on disk in time
	CrashWriteErrors atomic.Uint64 // Crash records the queue failed to write
	CallSiteErrors   atomic.Uint64 // Records dropped on resolver failure
	Evictions        atomic.Uint64 // Retention evictions performed
	Archives         atomic.Uint64 // Zip archives written
}

// Stats is a point-in-time snapshot of logger and queue counters
type Stats struct {
	Records          uint64
	ConsoleLines     uint64
	Persisted        uint64
	Dropped          uint64
	Crashes          uint64
	CrashTimeouts    uint64
	CrashWriteErrors uint64
	CallSiteErrors   uint64
	Evictions        uint64
	Archives         uint64
	Queue            QueueStats
}

// queueMode decides how a queue_size change is honored
type queueMode int

const (
	queueShared queueMode = iota // Process-wide queue picked by queue_size
	queueOwned                   // Created for this logger, rebuilt on resize
	queuePinned                  // Injected through Builder.Queue, capacity fixed
)

// Logger routes records to the console and to time-segmented files
type Logger struct {
	current atomic.Value // stores *snapshot
	state   State
	cfgMu   sync.Mutex

	queue      atomic.Pointer[WriteQueue]
	queueMode  queueMode
	clock      Clock
	device     DeviceInfo
	sinkOption ConsoleSink // Fixed sink from the builder, nil selects from config

	storageMu sync.RWMutex
	storage   Storage
}

// New creates a logger from cfg using the shared write queue and registers it
// in the default registry
func New(cfg *Config) (*Logger, error) {
	return NewBuilder().Config(cfg).Build()
}

// newLogger wires a logger; the builder applies the configuration
func newLogger(queue *WriteQueue, mode queueMode, clock Clock, device DeviceInfo, sink ConsoleSink, storage Storage) *Logger {
	if queue == nil {
		queue = DefaultQueue()
		mode = queueShared
	}
	if clock == nil {
		clock = SystemClock()
	}
	l := &Logger{
		queueMode:  mode,
		clock:      clock,
		device:     device,
		sinkOption: sink,
		storage:    storage,
	}
	l.queue.Store(queue)
	return l
}

// ApplyConfig validates cfg and swaps it in. Calls in flight finish with the
// previous configuration.
func (l *Logger) ApplyConfig(cfg *Config) error {
	if cfg == nil {
		return fmtErrorf("configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmtErrorf("invalid configuration: %w", err)
	}

	l.cfgMu.Lock()
	defer l.cfgMu.Unlock()

	if prev, ok := l.current.Load().(*snapshot); ok && prev.cfg.QueueSize != cfg.QueueSize {
		if err := l.resizeQueue(prev.cfg, cfg); err != nil {
			return err
		}
	}

	l.current.Store(l.buildSnapshot(cfg.Clone()))
	return nil
}

// resizeQueue moves the logger onto a queue with cfg.QueueSize capacity.
// Records accepted by the previous queue reach disk before it returns.
func (l *Logger) resizeQueue(prev, cfg *Config) error {
	old := l.queue.Load()
	switch l.queueMode {
	case queuePinned:
		return fmtErrorf("queue_size is fixed at %d by the injected write queue", old.Capacity())
	case queueOwned:
		l.queue.Store(queueFor(cfg))
		timeout := 2*millis(prev.FlushIntervalMs) + minWaitTime
		if err := old.Stop(timeout); err != nil {
			internalLogf(prev.InternalErrorsToStderr, "previous write queue did not stop cleanly: %v", err)
		}
	default:
		l.queue.Store(sharedQueue(int(cfg.QueueSize)))
		if err := old.Flush(minWaitTime); err != nil && !errors.Is(err, ErrQueueStopped) {
			internalLogf(prev.InternalErrorsToStderr, "previous write queue did not flush: %v", err)
		}
	}
	return nil
}

// buildSnapshot prepares formatter, sink and header for cfg
func (l *Logger) buildSnapshot(cfg *Config) *snapshot {
	sink := l.sinkOption
	if sink == nil {
		sink = newConsoleSink(cfg)
	}

	header := l.device.Header()
	if encoded, err := formatter.Encode(cfg.Charset, header); err == nil {
		header = encoded
	}

	f := formatter.New(sanitizer.PolicyPreset(cfg.Sanitization)).
		ConsolePolicy(sanitizer.PolicyPreset(cfg.ConsoleSanitization)).
		TimeFormat(cfg.TimeFormat)

	return &snapshot{
		cfg:       cfg,
		formatter: f,
		sink:      sink,
		header:    func() string { return header },
	}
}

// GetConfig returns a copy of the current configuration
func (l *Logger) GetConfig() *Config {
	return l.getConfig().Clone()
}

func (l *Logger) getConfig() *Config {
	return l.loadSnapshot().cfg
}

func (l *Logger) loadSnapshot() *snapshot {
	return l.current.Load().(*snapshot)
}

// Name returns the registry key of the logger
func (l *Logger) Name() string {
	return l.getConfig().Name
}

// Storage returns the upload collaborator, nil when none is set
func (l *Logger) Storage() Storage {
	l.storageMu.RLock()
	defer l.storageMu.RUnlock()
	return l.storage
}

// SetStorage replaces the upload collaborator
func (l *Logger) SetStorage(s Storage) {
	l.storageMu.Lock()
	l.storage = s
	l.storageMu.Unlock()
}

// Upload runs the storage collaborator once for this logger
func (l *Logger) Upload(ctx context.Context) error {
	s := l.Storage()
	if s == nil {
		return fmtErrorf("%w: '%s'", ErrNoStorage, l.Name())
	}
	return s.Upload(ctx, l)
}

// Verbose logs at verbose level
func (l *Logger) Verbose(args ...any) {
	l.dispatch(LevelVerbose, "", 0, args)
}

// Debug logs at debug level
func (l *Logger) Debug(args ...any) {
	l.dispatch(LevelDebug, "", 0, args)
}

// Info logs at info level
func (l *Logger) Info(args ...any) {
	l.dispatch(LevelInfo, "", 0, args)
}

// Warn logs at warn level
func (l *Logger) Warn(args ...any) {
	l.dispatch(LevelWarn, "", 0, args)
}

// Error logs at error level
func (l *Logger) Error(args ...any) {
	l.dispatch(LevelError, "", 0, args)
}

// Fatal logs at fatal level. It does not exit the process.
func (l *Logger) Fatal(args ...any) {
	l.dispatch(LevelFatal, "", 0, args)
}

// JSON logs a JSON object or array, pretty-printed on the console
func (l *Logger) JSON(args ...any) {
	l.dispatch(LevelJSON, "", 0, args)
}

// Crash logs a crash record to the crash file and waits until it is on disk
// or crash_flush_timeout_ms passes
func (l *Logger) Crash(args ...any) {
	l.dispatch(LevelCrash, "", 0, args)
}

// Log logs at an explicit level
func (l *Logger) Log(level Level, args ...any) {
	l.dispatch(level, "", 0, args)
}

// dispatch is the single entry behind every public logging method. Public
// methods must call it directly: call-site resolution counts frames from here.
func (l *Logger) dispatch(level Level, tag string, skip int, args []any) {
	if l.state.ShutdownCalled.Load() {
		return
	}

	snap := l.loadSnapshot()
	cfg := snap.cfg

	console := shouldConsole(level, cfg)
	persist := level == LevelCrash || shouldPersist(level, cfg)
	if !console && !persist {
		return
	}

	msg, ok := composeMessage(args)
	if !ok {
		return
	}

	cs, err := resolveCallSite(int(cfg.CallSiteSkipDepth) + skip)
	if err != nil {
		l.state.CallSiteErrors.Add(1)
		if cfg.StrictCallSite {
			panic(err)
		}
		internalLogf(cfg.InternalErrorsToStderr, "record dropped: %v", err)
		return
	}

	l.emit(snap, newRecord(level, tag, cs, InZone(l.clock.Now(), cfg.zoneOffset()), msg), console, persist)
}

// emit writes a built record to its routes
func (l *Logger) emit(snap *snapshot, rec LogRecord, console, persist bool) {
	l.state.Records.Add(1)
	if console {
		l.writeConsole(snap, rec)
	}
	if persist {
		l.writeFile(snap, rec)
	}
}

// writeConsole renders and splits the console text into sink-sized chunks
func (l *Logger) writeConsole(snap *snapshot, rec LogRecord) {
	e := rec.entry()
	if rec.Level == LevelJSON {
		if pretty, ok := formatter.PrettyJSON(e.Message); ok {
			e.Message = pretty
		}
	}

	for _, chunk := range formatter.Chunks(snap.formatter.Console(e), maxConsoleChunk) {
		snap.sink.Write(rec.Level, rec.Tag, chunk)
	}
	l.state.ConsoleLines.Add(1)
}

// writeFile hands the file text to the write queue; crash records wait for the flush
func (l *Logger) writeFile(snap *snapshot, rec LogRecord) {
	cfg := snap.cfg

	text := snap.formatter.File(rec.entry())
	if encoded, err := formatter.Encode(cfg.Charset, text); err == nil {
		text = encoded
	} else {
		internalLogf(cfg.InternalErrorsToStderr, "writing record as utf-8: %v", err)
	}

	item := queueItem{
		dir:        cfg.LogDir,
		text:       text,
		header:     snap.header,
		batch:      int(cfg.BufferEntries),
		interval:   millis(cfg.FlushIntervalMs),
		dropOnFull: cfg.DropOnFull,
	}

	if rec.Level == LevelCrash {
		item.file = CrashFileName(cfg, rec.Time)
		err := l.submitSync(item, millis(cfg.CrashFlushTimeoutMs))
		switch {
		case err == nil:
			l.state.Crashes.Add(1)
		case errors.Is(err, ErrFlushTimeout):
			l.state.CrashTimeouts.Add(1)
			internalLogf(cfg.InternalErrorsToStderr, "crash record not confirmed on disk: %v", err)
		default:
			l.state.CrashWriteErrors.Add(1)
			internalLogf(cfg.InternalErrorsToStderr, "crash record not written: %v", err)
		}
		return
	}

	item.file = FileName(cfg, rec.Time)
	if l.submit(item) {
		l.state.Persisted.Add(1)
	} else {
		l.state.Dropped.Add(1)
	}
}

// submit hands item to the current queue, following a queue swapped in by
// ApplyConfig while the handoff was in flight
func (l *Logger) submit(item queueItem) bool {
	for {
		q := l.queue.Load()
		if q.submit(item) {
			return true
		}
		if l.queue.Load() == q {
			return false
		}
	}
}

// submitSync is submit for crash records, waiting for the flush result
func (l *Logger) submitSync(item queueItem, timeout time.Duration) error {
	for {
		q := l.queue.Load()
		err := q.submitSync(item, timeout)
		if !errors.Is(err, ErrQueueStopped) || l.queue.Load() == q {
			return err
		}
	}
}

// Flush waits until everything queued so far is on disk
func (l *Logger) Flush(timeout time.Duration) error {
	return l.queue.Load().Flush(timeout)
}

// Shutdown stops accepting records and flushes pending ones. A queue created
// for this logger is stopped; the shared queue is only flushed.
// If no timeout is provided, uses a default of 2x flush interval.
func (l *Logger) Shutdown(timeout ...time.Duration) error {
	if !l.state.ShutdownCalled.CompareAndSwap(false, true) {
		return nil
	}

	cfg := l.getConfig()
	effectiveTimeout := 2 * millis(cfg.FlushIntervalMs)
	if len(timeout) > 0 {
		effectiveTimeout = timeout[0]
	}
	if effectiveTimeout < minWaitTime {
		effectiveTimeout = minWaitTime
	}

	var finalErr error
	queue := l.queue.Load()
	if l.queueMode == queueOwned {
		finalErr = combineErrors(finalErr, queue.Stop(effectiveTimeout))
	} else if err := queue.Flush(effectiveTimeout); err != nil && !errors.Is(err, ErrQueueStopped) {
		finalErr = combineErrors(finalErr, err)
	}

	if zs, ok := l.loadSnapshot().sink.(*ZapSink); ok {
		// Sync on a terminal fd reports EINVAL on some platforms
		_ = zs.Sync()
	}

	return finalErr
}

// Stats returns the logger counters together with its queue's counters
func (l *Logger) Stats() Stats {
	return Stats{
		Records:          l.state.Records.Load(),
		ConsoleLines:     l.state.ConsoleLines.Load(),
		Persisted:        l.state.Persisted.Load(),
		Dropped:          l.state.Dropped.Load(),
		Crashes:          l.state.Crashes.Load(),
		CrashTimeouts:    l.state.CrashTimeouts.Load(),
		CrashWriteErrors: l.state.CrashWriteErrors.Load(),
		CallSiteErrors:   l.state.CallSiteErrors.Load(),
		Evictions:        l.state.Evictions.Load(),
		Archives:         l.state.Archives.Load(),
		Queue:            l.queue.Load().Stats(),
	}
}

// CheckAndEvict runs retention against the current configuration
func (l *Logger) CheckAndEvict() (bool, error) {
	evicted, err := CheckAndEvict(l.getConfig())
	if evicted {
		l.state.Evictions.Add(1)
	}
	return evicted, err
}

// ArchiveExpired zips every log segment older than the active one
func (l *Logger) ArchiveExpired() ([]string, error) {
	archived, err := ArchiveExpired(l.getConfig(), l.clock.Now())
	l.state.Archives.Add(uint64(len(archived)))
	return archived, err
}

// ArchiveDirectory zips the whole log directory into one timestamped archive
func (l *Logger) ArchiveDirectory() (string, error) {
	dest, err := ArchiveDirectory(l.getConfig(), l.clock.Now())
	if err == nil {
		l.state.Archives.Add(1)
	}
	return dest, err
}
