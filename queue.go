// FILE: lixenwraith/seglog/queue.go
package seglog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Write queue failures
var (
	ErrQueueStopped = errors.New("write queue stopped")
	ErrFlushTimeout = errors.New("timed out waiting for flush")
)

// HeaderFunc renders the block prepended to a file the first time it is created
type HeaderFunc func() string

// QueueOptions configures a WriteQueue. BatchSize, FlushInterval and
// DropOnFull are the defaults for Enqueue; loggers bring their own per entry.
type QueueOptions struct {
	BatchSize     int           // Entries per file before an implicit flush
	QueueSize     int           // Channel capacity
	FlushInterval time.Duration // Max age of a partial buffer, 0 disables
	DropOnFull    bool          // Drop instead of waiting when the channel is full
	Header        HeaderFunc    // Header for Enqueue calls that do not bring their own
	ReportErrors  bool          // Report I/O errors on stderr
}

// QueueStats is a point-in-time snapshot of queue counters
type QueueStats struct {
	Enqueued    uint64 // Entries accepted by the channel
	Dropped     uint64 // Entries rejected on a full or stopped queue, or lost to I/O errors
	Flushed     uint64 // Entries written to disk
	Flushes     uint64 // Append operations performed
	WriteErrors uint64 // Failed append operations
	FilesOpened uint64 // Files created, each one received a header
	Capacity    int    // Channel capacity
}

// queueItem is one pending line, its target and the flush rules of its producer
type queueItem struct {
	dir        string
	file       string
	text       string
	header     HeaderFunc
	batch      int           // Flush the file buffer at this many entries
	interval   time.Duration // Flush a partial buffer this long after its first entry, 0 disables
	dropOnFull bool
	force      bool
	done       chan error // Receives the result of the item's flush, buffered
}

// fileBuffer holds pending lines of one target file
type fileBuffer struct {
	path    string
	header  HeaderFunc
	batch   int
	due     time.Time // Zero when no periodic flush is pending
	entries []string
}

// WriteQueue serializes all file appends through a single consumer goroutine.
// Producers hand entries over a buffered channel and never touch the disk.
// A full channel makes producers wait unless the entry opted into dropping.
//
// Lines for a given file are written in the order the consumer received them.
// Entries racing from different goroutines are ordered by channel arrival, not
// by the time the log call was issued.
type WriteQueue struct {
	opts QueueOptions

	ch       chan queueItem
	flushReq chan chan struct{}
	exited   chan struct{}

	started   atomic.Bool
	stopped   atomic.Bool
	lifeMu    sync.Mutex
	flushMu   sync.Mutex
	buffers   map[string]*fileBuffer // Consumer-owned
	enqueued  atomic.Uint64
	dropped   atomic.Uint64
	flushed   atomic.Uint64
	flushes   atomic.Uint64
	writeErrs atomic.Uint64
	opened    atomic.Uint64
}

// NewWriteQueue creates a queue; call Start before enqueueing
func NewWriteQueue(opts QueueOptions) *WriteQueue {
	if opts.BatchSize <= 0 {
		opts.BatchSize = int(defaultBufferEntries)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = int(defaultConfig.QueueSize)
	}
	return &WriteQueue{
		opts:     opts,
		ch:       make(chan queueItem, opts.QueueSize),
		flushReq: make(chan chan struct{}, 1),
		exited:   make(chan struct{}),
		buffers:  make(map[string]*fileBuffer),
	}
}

var (
	defaultQueue     *WriteQueue
	defaultQueueOnce sync.Once
)

// DefaultQueue returns the process-wide queue shared by all loggers that were
// not given their own and keep the default queue_size. It is started on first use.
func DefaultQueue() *WriteQueue {
	defaultQueueOnce.Do(func() {
		defaultQueue = NewWriteQueue(QueueOptions{
			BatchSize:     int(defaultConfig.BufferEntries),
			QueueSize:     int(defaultConfig.QueueSize),
			FlushInterval: millis(defaultConfig.FlushIntervalMs),
			ReportErrors:  defaultConfig.InternalErrorsToStderr,
		})
		defaultQueue.Start()
	})
	return defaultQueue
}

// sizedQueues holds the shared queues created for non-default queue_size values
var sizedQueues = struct {
	sync.Mutex
	m map[int]*WriteQueue
}{m: make(map[int]*WriteQueue)}

// sharedQueue returns the process-wide queue with the given capacity. Loggers
// asking for the same queue_size share one consumer.
func sharedQueue(size int) *WriteQueue {
	def := DefaultQueue()
	if size <= 0 || size == def.Capacity() {
		return def
	}

	sizedQueues.Lock()
	defer sizedQueues.Unlock()
	q, ok := sizedQueues.m[size]
	if !ok {
		q = NewWriteQueue(QueueOptions{
			BatchSize:     int(defaultConfig.BufferEntries),
			QueueSize:     size,
			FlushInterval: millis(defaultConfig.FlushIntervalMs),
			ReportErrors:  defaultConfig.InternalErrorsToStderr,
		})
		q.Start()
		sizedQueues.m[size] = q
	}
	return q
}

// stopSharedQueues stops the default queue and every sized shared queue
func stopSharedQueues(timeout time.Duration) error {
	sizedQueues.Lock()
	queues := make([]*WriteQueue, 0, len(sizedQueues.m))
	for _, q := range sizedQueues.m {
		queues = append(queues, q)
	}
	sizedQueues.Unlock()

	err := DefaultQueue().Stop(timeout)
	for _, q := range queues {
		err = combineErrors(err, q.Stop(timeout))
	}
	return err
}

// Start launches the consumer goroutine. Safe to call multiple times.
func (q *WriteQueue) Start() {
	q.lifeMu.Lock()
	defer q.lifeMu.Unlock()
	if q.stopped.Load() || !q.started.CompareAndSwap(false, true) {
		return
	}
	go q.run()
}

// Capacity returns the channel capacity
func (q *WriteQueue) Capacity() int {
	return cap(q.ch)
}

// Enqueue hands a line to the consumer, waiting for channel space when the
// queue is full. With DropOnFull set, regular entries are dropped and counted
// instead. Forced entries always wait and flush pending buffers as soon as
// they are received. Returns false if the entry was dropped.
func (q *WriteQueue) Enqueue(dir, filename, text string, force bool) bool {
	item := q.item(dir, filename, text)
	item.force = force
	return q.submit(item)
}

// EnqueueSync enqueues a forced entry and waits until it is on disk or the
// timeout expires. A failed write is returned.
func (q *WriteQueue) EnqueueSync(dir, filename, text string, timeout time.Duration) error {
	return q.submitSync(q.item(dir, filename, text), timeout)
}

// item builds an entry carrying the queue's own defaults
func (q *WriteQueue) item(dir, filename, text string) queueItem {
	return queueItem{
		dir:        dir,
		file:       filename,
		text:       text,
		header:     q.opts.Header,
		batch:      q.opts.BatchSize,
		interval:   q.opts.FlushInterval,
		dropOnFull: q.opts.DropOnFull,
	}
}

// submit performs the channel handoff
func (q *WriteQueue) submit(item queueItem) (ok bool) {
	defer func() {
		if r := recover(); r != nil { // Send on a channel closed by Stop
			q.dropped.Add(1)
			ok = false
		}
	}()

	if q.stopped.Load() || !q.started.Load() {
		q.dropped.Add(1)
		return false
	}

	if item.dropOnFull && !item.force {
		select {
		case q.ch <- item:
			q.enqueued.Add(1)
			return true
		default:
			q.dropped.Add(1)
			return false
		}
	}

	select {
	case q.ch <- item:
		q.enqueued.Add(1)
		return true
	case <-q.exited:
		q.dropped.Add(1)
		return false
	}
}

// submitSync sends a forced item and waits for the result of its flush
func (q *WriteQueue) submitSync(item queueItem, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = minWaitTime
	}
	item.force = true
	item.done = make(chan error, 1)

	if !q.submit(item) {
		return ErrQueueStopped
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-item.done:
		return err
	case <-timer.C:
		return fmtErrorf("%w after %v", ErrFlushTimeout, timeout)
	}
}

// Flush writes every pending buffer and waits for completion or timeout
func (q *WriteQueue) Flush(timeout time.Duration) error {
	q.flushMu.Lock()
	defer q.flushMu.Unlock()

	if q.stopped.Load() || !q.started.Load() {
		return ErrQueueStopped
	}

	confirmChan := make(chan struct{})

	select {
	case q.flushReq <- confirmChan:
	case <-time.After(minWaitTime):
		return fmtErrorf("failed to send flush request to write queue (possible deadlock or high load)")
	}

	select {
	case <-confirmChan:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("%w after %v", ErrFlushTimeout, timeout)
	}
}

// Stop closes the queue, drains everything already accepted to disk and waits
// for the consumer to exit. Entries submitted afterwards are dropped.
func (q *WriteQueue) Stop(timeout time.Duration) error {
	q.lifeMu.Lock()
	if !q.stopped.CompareAndSwap(false, true) {
		q.lifeMu.Unlock()
		return nil
	}
	wasStarted := q.started.Load()
	close(q.ch)
	q.lifeMu.Unlock()

	if !wasStarted {
		return nil
	}

	select {
	case <-q.exited:
		return nil
	case <-time.After(timeout):
		return fmtErrorf("write queue consumer did not exit within timeout (%v)", timeout)
	}
}

// Stats returns the current queue counters
func (q *WriteQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued:    q.enqueued.Load(),
		Dropped:     q.dropped.Load(),
		Flushed:     q.flushed.Load(),
		Flushes:     q.flushes.Load(),
		WriteErrors: q.writeErrs.Load(),
		FilesOpened: q.opened.Load(),
		Capacity:    cap(q.ch),
	}
}

// run is the consumer loop, the only goroutine touching buffers and files
func (q *WriteQueue) run() {
	defer close(q.exited)

	// One timer tracks the oldest partial buffer of any file
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	var due <-chan time.Time

	for {
		select {
		case item, ok := <-q.ch:
			if !ok {
				q.flushAll()
				return
			}
			q.accept(item)

		case now := <-due:
			q.flushDue(now)

		case confirmChan := <-q.flushReq:
			q.drainPending()
			q.flushAll()
			close(confirmChan)
		}

		if next, ok := q.nextDue(); ok {
			timer.Reset(time.Until(next))
			due = timer.C
		} else {
			timer.Stop()
			due = nil
		}
	}
}

// nextDue returns the earliest pending periodic flush
func (q *WriteQueue) nextDue() (time.Time, bool) {
	var next time.Time
	for _, buf := range q.buffers {
		if buf.due.IsZero() || len(buf.entries) == 0 {
			continue
		}
		if next.IsZero() || buf.due.Before(next) {
			next = buf.due
		}
	}
	return next, !next.IsZero()
}

// flushDue writes out the buffers whose periodic flush time has passed
func (q *WriteQueue) flushDue(now time.Time) {
	for path, buf := range q.buffers {
		if !buf.due.IsZero() && !buf.due.After(now) {
			_ = q.flushBuffer(buf)
			delete(q.buffers, path)
		}
	}
}

// drainPending accepts items already sitting in the channel so a Flush covers
// everything enqueued before it was requested
func (q *WriteQueue) drainPending() {
	for {
		select {
		case item, ok := <-q.ch:
			if !ok {
				return
			}
			q.accept(item)
		default:
			return
		}
	}
}

// accept buffers one item and flushes when required
func (q *WriteQueue) accept(item queueItem) {
	batch := item.batch
	if batch <= 0 {
		batch = q.opts.BatchSize
	}

	path := filepath.Join(item.dir, item.file)
	buf, ok := q.buffers[path]
	if !ok {
		buf = &fileBuffer{path: path, header: item.header, entries: make([]string, 0, batch)}
		q.buffers[path] = buf
	}
	// The latest producer settings apply to the whole buffer
	buf.batch = batch
	if len(buf.entries) == 0 && item.interval > 0 {
		buf.due = time.Now().Add(item.interval)
	}
	buf.entries = append(buf.entries, item.text)

	var err error
	switch {
	case item.force:
		err = q.flushBuffer(buf)
		// The host may be going down, persist everything still pending
		q.flushAll()
	case len(buf.entries) >= buf.batch:
		err = q.flushBuffer(buf)
	}

	if item.done != nil {
		item.done <- err
	}
}

// flushAll writes out every non-empty buffer
func (q *WriteQueue) flushAll() {
	for path, buf := range q.buffers {
		_ = q.flushBuffer(buf)
		delete(q.buffers, path)
	}
}

// flushBuffer appends the buffer to its file in a single write and clears it.
// On failure the entries are dropped and counted, there is no retry.
func (q *WriteQueue) flushBuffer(buf *fileBuffer) error {
	n := len(buf.entries)
	buf.due = time.Time{}
	if n == 0 {
		return nil
	}
	data := strings.Join(buf.entries, "")
	buf.entries = buf.entries[:0]

	q.flushes.Add(1)
	if err := q.appendFile(buf.path, buf.header, data); err != nil {
		q.writeErrs.Add(1)
		q.dropped.Add(uint64(n))
		internalLogf(q.opts.ReportErrors, "failed to write %d entries to '%s': %v", n, buf.path, err)
		return err
	}
	q.flushed.Add(uint64(n))
	return nil
}

// appendFile opens path for append, prepending the header if the file is new
func (q *WriteQueue) appendFile(path string, header HeaderFunc, data string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmtErrorf("failed to create log directory: %w", err)
	}

	_, statErr := os.Stat(path)
	isNew := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmtErrorf("failed to open log file: %w", err)
	}

	if isNew {
		q.opened.Add(1)
		if header != nil {
			data = header() + data
		}
	}

	_, writeErr := f.WriteString(data)
	closeErr := f.Close()
	if writeErr != nil {
		return fmtErrorf("failed to append to log file: %w", writeErr)
	}
	if closeErr != nil {
		return fmtErrorf("failed to close log file: %w", closeErr)
	}
	return nil
}
