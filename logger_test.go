// FILE: lixenwraith/seglog/logger_test.go
package seglog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow is 2024-01-02 11:04:05 in the default +08:00 zone
var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

var testDevice = DeviceInfo{
	AppVersionName: "1.2.0",
	AppVersionCode: "120",
	OSVersionName:  "linux",
	OSVersionCode:  "6",
	OSDisplayName:  "test-host",
	Brand:          "acme",
	Product:        "seglog-test",
	Model:          "x1",
	Manufacturer:   "acme",
}

type capturedLine struct {
	level Level
	tag   string
	text  string
}

// consoleCapture records everything the logger sends to its console sink
type consoleCapture struct {
	mu    sync.Mutex
	lines []capturedLine
}

func (c *consoleCapture) sink() ConsoleSink {
	return ConsoleSinkFunc(func(level Level, tag, text string) {
		c.mu.Lock()
		c.lines = append(c.lines, capturedLine{level: level, tag: tag, text: text})
		c.mu.Unlock()
	})
}

func (c *consoleCapture) all() []capturedLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]capturedLine(nil), c.lines...)
}

// createTestLogger creates a file-writing logger in a temp directory with a
// fixed clock, a captured console and its own write queue
func createTestLogger(t testing.TB, overrides ...string) (*Logger, *consoleCapture) {
	tmpDir := t.TempDir()
	capture := &consoleCapture{}

	logger, err := NewBuilder().
		Name(t.Name()).
		LogDir(filepath.Join(tmpDir, "logs")).
		ArchiveDir(filepath.Join(tmpDir, "archive")).
		WriteToFile(true).
		Override(overrides...).
		Clock(ClockFunc(func() time.Time { return fixedNow })).
		Device(testDevice).
		Sink(capture.sink()).
		DedicatedQueue().
		Registry(NewRegistry()).
		Build()
	require.NoError(t, err)

	t.Cleanup(func() { _ = logger.Shutdown(time.Second) })
	return logger, capture
}

// readActive returns the active log file of logger, flushing first
func readActive(t *testing.T, logger *Logger) string {
	t.Helper()
	require.NoError(t, logger.Flush(time.Second))
	cfg := logger.GetConfig()
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, FileName(cfg, fixedNow)))
	require.NoError(t, err)
	return string(data)
}

func TestLogger_ConsoleOnlyForUnlistedLevel(t *testing.T) {
	logger, capture := createTestLogger(t, "file_levels=error,fatal", "debug=true")

	_, _, line, _ := runtime.Caller(0)
	logger.Info("hello")

	lines := capture.all()
	require.Len(t, lines, 1)
	assert.Equal(t, LevelInfo, lines[0].level)
	assert.Equal(t, "seglog", lines[0].tag)
	assert.True(t, strings.HasPrefix(lines[0].text,
		fmt.Sprintf("[(logger_test.go:%d)#TestLogger_ConsoleOnlyForUnlistedLevel Thread:goroutine-", line+1)))
	assert.True(t, strings.HasSuffix(lines[0].text, "]\nhello"))

	require.NoError(t, logger.Flush(time.Second))
	_, err := os.Stat(logger.GetConfig().LogDir)
	assert.True(t, os.IsNotExist(err), "no file should be written for info")
	assert.Equal(t, uint64(0), logger.Stats().Persisted)
}

func TestLogger_PersistsListedLevels(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false")

	logger.Info("not persisted")
	_, _, line, _ := runtime.Caller(0)
	logger.Error("boom")

	content := readActive(t, logger)
	assert.True(t, strings.HasPrefix(content, testDevice.Header()), "new file starts with the device header")
	assert.Contains(t, content, fmt.Sprintf("[2024-01-02 11:04:05 ERROR logger_test.go:%d Thread:goroutine-", line+1))
	assert.True(t, strings.HasSuffix(content, "]\nboom\n\n"))
	assert.NotContains(t, content, "not persisted")
	assert.Equal(t, uint64(1), logger.Stats().Persisted)
}

func TestLogger_FileNameFollowsConfig(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "log_prefix=app", "segment_width_hours=6")

	logger.Fatal("down")
	require.NoError(t, logger.Flush(time.Second))

	cfg := logger.GetConfig()
	_, err := os.Stat(filepath.Join(cfg.LogDir, "app_2024-01-02_0612.log"))
	assert.NoError(t, err)
}

func TestLogger_BatchFlushAtThreshold(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "flush_interval_ms=0")
	cfg := logger.GetConfig()
	path := filepath.Join(cfg.LogDir, FileName(cfg, fixedNow))

	for i := 0; i < int(defaultBufferEntries)-1; i++ {
		logger.Error("entry", i)
	}
	assert.Never(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 100*time.Millisecond, 10*time.Millisecond, "partial batch must stay in memory")

	logger.Error("entry", defaultBufferEntries-1)
	assert.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && strings.Count(string(data), " ERROR ") == int(defaultBufferEntries)
	}, time.Second, 10*time.Millisecond)
}

func TestLogger_CrashFlushesImmediately(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "flush_interval_ms=0")
	cfg := logger.GetConfig()

	logger.Error("pending")
	logger.Crash("fatal state")

	// Crash returns once its file is on disk, the pending entry is flushed with it
	crash, err := os.ReadFile(filepath.Join(cfg.LogDir, CrashFileName(cfg, fixedNow)))
	require.NoError(t, err)
	assert.Contains(t, string(crash), " CRASH logger_test.go:")
	assert.Contains(t, string(crash), "]\nfatal state\n\n")

	active, err := os.ReadFile(filepath.Join(cfg.LogDir, FileName(cfg, fixedNow)))
	require.NoError(t, err)
	assert.Contains(t, string(active), "]\npending\n\n")

	stats := logger.Stats()
	assert.Equal(t, uint64(1), stats.Crashes)
	assert.Equal(t, uint64(0), stats.CrashTimeouts)
}

func TestLogger_CrashPersistsWithFileOutputOff(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "write_to_file=false")
	cfg := logger.GetConfig()

	logger.Crash("still written")

	_, err := os.Stat(filepath.Join(cfg.LogDir, CrashFileName(cfg, fixedNow)))
	assert.NoError(t, err)
}

func TestLogger_AttachedError(t *testing.T) {
	logger, capture := createTestLogger(t)
	cause := errors.New("inner")
	err := fmtErrorf("outer: %w", cause)

	logger.Error("request failed", err)
	logger.Error(err)

	content := readActive(t, logger)
	assert.Contains(t, content, "]\nrequest failed\nseglog: outer: inner\ncaused by: inner\n\n")
	assert.Contains(t, content, "]\nseglog: outer: inner\ncaused by: inner\n\n")
	assert.Len(t, capture.all(), 2)
}

func TestLogger_EmptyCallIsNoop(t *testing.T) {
	logger, capture := createTestLogger(t)

	logger.Error()
	logger.Error("")

	assert.Empty(t, capture.all())
	assert.Equal(t, uint64(0), logger.Stats().Records)
}

func TestLogger_CallSiteSkipTooLarge(t *testing.T) {
	t.Run("strict panics with CallSiteError", func(t *testing.T) {
		logger, capture := createTestLogger(t)

		var recovered any
		func() {
			defer func() { recovered = recover() }()
			logger.Skip(1000).Error("never written")
		}()

		err, ok := recovered.(error)
		require.True(t, ok, "panic value should be an error, got %v", recovered)
		var cse *CallSiteError
		require.True(t, errors.As(err, &cse))
		assert.ErrorIs(t, err, ErrCallSiteDepth)
		assert.Contains(t, err.Error(), "call_site_skip_depth")
		assert.Empty(t, capture.all())
	})

	t.Run("lenient drops and counts", func(t *testing.T) {
		logger, capture := createTestLogger(t, "strict_call_site=false", "internal_errors_to_stderr=false")

		assert.NotPanics(t, func() {
			logger.Skip(1000).Error("never written")
		})
		assert.Empty(t, capture.all())
		assert.Equal(t, uint64(1), logger.Stats().CallSiteErrors)
		assert.Equal(t, uint64(0), logger.Stats().Records)
	})
}

// logThrough is a helper wrapping the logger one level deep
func logThrough(e *Entry, msg string) {
	e.Warn(msg)
}

func TestLogger_SkipAttributesWrapperCaller(t *testing.T) {
	logger, capture := createTestLogger(t)

	_, _, line, _ := runtime.Caller(0)
	logThrough(logger.Skip(1), "wrapped")
	logThrough(logger.Tag("plain"), "unwrapped")

	lines := capture.all()
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0].text, fmt.Sprintf("(logger_test.go:%d)#TestLogger_SkipAttributesWrapperCaller ", line+1))
	assert.Contains(t, lines[1].text, ")#logThrough ")
	assert.Equal(t, "plain", lines[1].tag)
}

func TestLogger_SkipDepthFromConfig(t *testing.T) {
	logger, capture := createTestLogger(t, "call_site_skip_depth=1")

	logThrough(logger.Tag("cfg"), "wrapped")

	lines := capture.all()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].text, ")#TestLogger_SkipDepthFromConfig ")
}

func TestLogger_TagOverride(t *testing.T) {
	logger, capture := createTestLogger(t)

	logger.Tag("net").Warn("slow")
	logger.Tag("net").Tag("db").Log(LevelDebug, "query")

	lines := capture.all()
	require.Len(t, lines, 2)
	assert.Equal(t, "net", lines[0].tag)
	assert.Equal(t, LevelWarn, lines[0].level)
	assert.Equal(t, "db", lines[1].tag)
	assert.Equal(t, LevelDebug, lines[1].level)
}

func TestLogger_JSONPrettyOnConsoleOnly(t *testing.T) {
	logger, capture := createTestLogger(t, "file_levels=json")

	logger.JSON(`{"a":1,"b":[true]}`)
	logger.JSON("not json")

	lines := capture.all()
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0].text, "]\n{\n    \"a\": 1,\n    \"b\": [\n        true\n    ]\n}"))
	assert.True(t, strings.HasSuffix(lines[1].text, "]\nnot json"))

	content := readActive(t, logger)
	assert.Contains(t, content, "]\n{\"a\":1,\"b\":[true]}\n\n")
}

func TestLogger_ConsoleChunking(t *testing.T) {
	logger, capture := createTestLogger(t, "write_to_file=false")

	logger.Info(strings.Repeat("x", 2*maxConsoleChunk+500))

	lines := capture.all()
	require.Len(t, lines, 3)
	var joined strings.Builder
	for _, l := range lines {
		assert.LessOrEqual(t, len(l.text), maxConsoleChunk)
		joined.WriteString(l.text)
	}
	assert.Equal(t, 2*maxConsoleChunk+500, strings.Count(joined.String(), "x"))
	assert.Equal(t, uint64(1), logger.Stats().ConsoleLines)
}

func TestLogger_TxtSanitization(t *testing.T) {
	logger, capture := createTestLogger(t, "sanitization=txt")

	logger.Error("bell\x07here")

	content := readActive(t, logger)
	assert.Contains(t, content, "]\nbell<07>here\n\n")
	require.Len(t, capture.all(), 1)
	assert.True(t, strings.HasSuffix(capture.all()[0].text, "]\nbellhere"), "console strips control runes by default")
}

func TestLogger_ConsoleSanitization(t *testing.T) {
	t.Run("escape sequences stripped by default", func(t *testing.T) {
		logger, capture := createTestLogger(t, "write_to_file=false")

		logger.Warn("\x1b]0;owned\x07title\nsecond line")

		lines := capture.all()
		require.Len(t, lines, 1)
		assert.True(t, strings.HasSuffix(lines[0].text, "]\n]0;ownedtitle\nsecond line"))
	})

	t.Run("raw passes console text through", func(t *testing.T) {
		logger, capture := createTestLogger(t, "write_to_file=false", "console_sanitization=raw")

		logger.Warn("\x1b[1mbold")

		lines := capture.all()
		require.Len(t, lines, 1)
		assert.True(t, strings.HasSuffix(lines[0].text, "]\n\x1b[1mbold"))
	})
}

func TestLogger_ApplyOverride(t *testing.T) {
	logger, capture := createTestLogger(t)

	require.NoError(t, logger.ApplyOverride("debug=false"))
	logger.Info("quiet")
	assert.Empty(t, capture.all())

	err := logger.ApplyOverride("segment_width_hours=5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "segment_width_hours")
	assert.Equal(t, int64(24), logger.GetConfig().SegmentWidthHours, "failed override leaves config unchanged")
}

func TestLogger_GetConfigReturnsCopy(t *testing.T) {
	logger, _ := createTestLogger(t)

	cfg := logger.GetConfig()
	cfg.FileLevels[0] = "verbose"
	cfg.Debug = false

	fresh := logger.GetConfig()
	assert.Equal(t, "error", fresh.FileLevels[0])
	assert.True(t, fresh.Debug)
}

func TestLogger_Shutdown(t *testing.T) {
	logger, capture := createTestLogger(t, "flush_interval_ms=0")

	logger.Error("before")
	require.NoError(t, logger.Shutdown(time.Second))
	logger.Error("after")

	cfg := logger.GetConfig()
	data, err := os.ReadFile(filepath.Join(cfg.LogDir, FileName(cfg, fixedNow)))
	require.NoError(t, err)
	assert.Contains(t, string(data), "before")
	assert.NotContains(t, string(data), "after")
	assert.Len(t, capture.all(), 1)

	assert.NoError(t, logger.Shutdown(), "second shutdown is a no-op")
}

func TestLogger_ConcurrentWriters(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "queue_size=2048")

	const writers, perWriter = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				logger.Error("writer", w, "entry", i)
			}
		}()
	}
	wg.Wait()

	content := readActive(t, logger)
	assert.Equal(t, writers*perWriter, strings.Count(content, " ERROR "))
	assert.Equal(t, uint64(writers*perWriter), logger.Stats().Persisted)
}

func TestNew_UsesSharedQueue(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Name = t.Name()
	cfg.Debug = false
	cfg.WriteToFile = true
	cfg.LogDir = t.TempDir()

	logger, err := New(cfg)
	require.NoError(t, err)
	defer logger.Shutdown()

	assert.Same(t, DefaultQueue(), logger.queue.Load())
	registered, ok := DefaultRegistry().Get(t.Name())
	require.True(t, ok)
	assert.Same(t, logger, registered)

	logger.Error("shared")
	require.NoError(t, logger.Flush(time.Second))
	entries, err := os.ReadDir(cfg.LogDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLogger_BurstLargerThanQueue(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "queue_size=16", "buffer_entries=5")

	const total = 2000
	for i := 0; i < total; i++ {
		logger.Error("line", i)
	}

	content := readActive(t, logger)
	matches := regexp.MustCompile(`\]\nline (\d+)\n\n`).FindAllStringSubmatch(content, -1)
	require.Len(t, matches, total, "every record reaches the file")
	for i, m := range matches {
		n, err := strconv.Atoi(m[1])
		require.NoError(t, err)
		require.Equal(t, i, n, "records keep submission order")
	}

	stats := logger.Stats()
	assert.Equal(t, uint64(total), stats.Persisted)
	assert.Zero(t, stats.Dropped)
	assert.Zero(t, stats.Queue.Dropped)
}

func TestLogger_DropOnFullOptIn(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false", "drop_on_full=true", "queue_size=1", "buffer_entries=1")

	const total = 500
	for i := 0; i < total; i++ {
		logger.Error("line", i)
	}
	require.NoError(t, logger.Flush(time.Second))

	stats := logger.Stats()
	assert.Equal(t, uint64(total), stats.Persisted+stats.Dropped, "every record is accounted for")
	assert.Equal(t, stats.Dropped, stats.Queue.Dropped)
	assert.Equal(t, stats.Persisted, stats.Queue.Flushed)
}

func TestLogger_QueueSettingsPerLogger(t *testing.T) {
	newShared := func(t *testing.T, cfg *Config) *Logger {
		cfg.Name = t.Name()
		cfg.Debug = false
		cfg.WriteToFile = true
		cfg.LogDir = t.TempDir()
		logger, err := NewBuilder().
			Config(cfg).
			Clock(ClockFunc(func() time.Time { return fixedNow })).
			Registry(NewRegistry()).
			Build()
		require.NoError(t, err)
		t.Cleanup(func() { _ = logger.Shutdown(time.Second) })
		return logger
	}
	countInFile := func(logger *Logger) func() int {
		cfg := logger.GetConfig()
		path := filepath.Join(cfg.LogDir, FileName(cfg, fixedNow))
		return func() int {
			data, err := os.ReadFile(path)
			if err != nil {
				return 0
			}
			return strings.Count(string(data), " ERROR ")
		}
	}

	t.Run("buffer_entries on the shared queue", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BufferEntries = 3
		cfg.FlushIntervalMs = 0
		logger := newShared(t, cfg)
		require.Same(t, DefaultQueue(), logger.queue.Load())
		count := countInFile(logger)

		logger.Error("a")
		logger.Error("b")
		assert.Never(t, func() bool { return count() > 0 }, 100*time.Millisecond, 10*time.Millisecond)
		logger.Error("c")
		assert.Eventually(t, func() bool { return count() == 3 }, time.Second, 10*time.Millisecond)
	})

	t.Run("flush_interval_ms on the shared queue", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.BufferEntries = 500
		cfg.FlushIntervalMs = 20
		logger := newShared(t, cfg)
		count := countInFile(logger)

		logger.Error("partial")
		assert.Eventually(t, func() bool { return count() == 1 }, time.Second, 10*time.Millisecond)
	})

	t.Run("queue_size picks a shared queue of that size", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.QueueSize = 512
		logger := newShared(t, cfg)

		assert.Same(t, sharedQueue(512), logger.queue.Load())
		assert.Equal(t, 512, logger.Stats().Queue.Capacity)

		require.NoError(t, logger.ApplyOverride("queue_size=1024"))
		assert.Same(t, DefaultQueue(), logger.queue.Load())
	})

	t.Run("buffer_entries override", func(t *testing.T) {
		logger, _ := createTestLogger(t, "debug=false", "flush_interval_ms=0", "buffer_entries=50")
		count := countInFile(logger)

		require.NoError(t, logger.ApplyOverride("buffer_entries=2"))
		logger.Error("one")
		logger.Error("two")
		assert.Eventually(t, func() bool { return count() == 2 }, time.Second, 10*time.Millisecond)
	})

	t.Run("queue_size override rebuilds an owned queue", func(t *testing.T) {
		logger, _ := createTestLogger(t, "debug=false", "flush_interval_ms=0")
		old := logger.queue.Load()

		logger.Error("before resize")
		require.NoError(t, logger.ApplyOverride("queue_size=32"))
		logger.Error("after resize")

		current := logger.queue.Load()
		assert.NotSame(t, old, current)
		assert.Equal(t, 32, current.Capacity())
		assert.ErrorIs(t, old.Flush(time.Second), ErrQueueStopped, "previous queue is stopped")

		content := readActive(t, logger)
		require.Contains(t, content, "]\nbefore resize\n\n")
		require.Contains(t, content, "]\nafter resize\n\n")
		assert.Less(t, strings.Index(content, "before resize"), strings.Index(content, "after resize"))
	})
}

func TestLogger_CrashWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	logger, _ := createTestLogger(t, "debug=false", "log_dir="+filepath.Join(blocker, "logs"), "internal_errors_to_stderr=false")
	logger.Crash("boom")

	stats := logger.Stats()
	assert.Zero(t, stats.Crashes, "a crash that never reached disk is not counted as written")
	assert.Equal(t, uint64(1), stats.CrashWriteErrors)
	assert.Zero(t, stats.CrashTimeouts)
	assert.Equal(t, uint64(1), stats.Queue.WriteErrors)
}

// deepLog recurses depth frames before logging through e
func deepLog(e *Entry, depth int, msg string) {
	if depth == 0 {
		e.Warn(msg)
		return
	}
	deepLog(e, depth-1, msg)
}

func TestLogger_LargeSkip(t *testing.T) {
	logger, capture := createTestLogger(t)

	deepLog(logger.Skip(maxStackScan+6), maxStackScan+20, "deep")

	lines := capture.all()
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].text, ")#deepLog ")
	assert.Zero(t, logger.Stats().CallSiteErrors)
}
