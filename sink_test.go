package seglog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(&buf)

	sink.Write(LevelError, "net", "dial failed")
	sink.Write(LevelVerbose, "db", "query")
	sink.Write(Level(42), "x", "odd")

	assert.Equal(t, "E/net: dial failed\nV/db: query\n?/x: odd\n", buf.String())
}

func TestZapSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sink := NewZapSink(zap.New(core), nil)

	sink.Write(LevelWarn, "net", "slow")
	sink.Write(LevelCrash, "app", "down")
	sink.Write(LevelJSON, "api", `{"a":1}`)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "slow", entries[0].Message)
	assert.Equal(t, "net", entries[0].ContextMap()["tag"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "CRASH", entries[1].ContextMap()["level"])
	assert.Equal(t, zapcore.InfoLevel, entries[2].Level)
}

func TestZapSink_DefaultCore(t *testing.T) {
	var buf bytes.Buffer
	sink := NewZapSink(nil, &buf)

	sink.Write(LevelInfo, "boot", "ready")
	_ = sink.Sync()

	out := buf.String()
	assert.Contains(t, out, "INFO")
	assert.Contains(t, out, "ready")
	assert.Contains(t, out, `"tag": "boot"`)
}

func TestNewConsoleSink(t *testing.T) {
	cfg := DefaultConfig()
	assert.IsType(t, &WriterSink{}, newConsoleSink(cfg))

	cfg.ConsoleFormat = "zap"
	cfg.ConsoleTarget = "stderr"
	assert.IsType(t, &ZapSink{}, newConsoleSink(cfg))
}

func TestLogger_ZapConsole(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger, err := NewBuilder().
		Name(t.Name()).
		LogDir(t.TempDir()).
		Sink(NewZapSink(zap.New(core), nil)).
		Registry(NewRegistry()).
		Build()
	require.NoError(t, err)

	logger.Tag("svc").Warn("through zap")
	require.NoError(t, logger.Shutdown())

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, ")#TestLogger_ZapConsole ")
	assert.Contains(t, entries[0].Message, "\nthrough zap")
	assert.Equal(t, "svc", entries[0].ContextMap()["tag"])
}
