package seglog

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zipContents maps entry names to their decompressed content
func zipContents(t *testing.T, path string) map[string]string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer zr.Close()

	contents := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		contents[f.Name] = string(data)
	}
	return contents
}

func archiveConfig(t *testing.T) *Config {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.LogDir = filepath.Join(dir, "logs")
	cfg.ArchiveDir = filepath.Join(dir, "archive")
	cfg.ZoneOffsetMs = 0
	return cfg
}

func TestExpiredFiles(t *testing.T) {
	cfg := archiveConfig(t)
	for _, name := range []string{"2024-01-01.log", "2024-01-02.log", "2023-12-31_crash.log", "notes.txt"} {
		writeSized(t, filepath.Join(cfg.LogDir, name), 10)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.LogDir, "2023-01-01.log"), 0755))

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	expired, err := ExpiredFiles(cfg.LogDir, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"2023-12-31_crash.log", "2024-01-01.log"}, expired)

	missing, err := ExpiredFiles(filepath.Join(t.TempDir(), "absent"), cfg, now)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestExpiredFiles_SharedDirectory(t *testing.T) {
	cfg := archiveConfig(t)
	cfg.LogPrefix = "b"
	for _, name := range []string{
		"a_2024-01-01.log", "a_2024-01-02.log",
		"b_2024-01-01.log", "b_2024-01-01_crash.log", "b_2024-01-02.log",
		"2023-12-31.log",
		"b_notes.log", "b_2024-01-01_ab.log",
	} {
		writeSized(t, filepath.Join(cfg.LogDir, name), 10)
	}

	now := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	expired, err := ExpiredFiles(cfg.LogDir, cfg, now)
	require.NoError(t, err)
	assert.Equal(t, []string{"b_2024-01-01.log", "b_2024-01-01_crash.log"}, expired)

	archived, err := ArchiveExpired(cfg, now)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
	assert.FileExists(t, filepath.Join(cfg.LogDir, "a_2024-01-02.log"))
	assert.FileExists(t, filepath.Join(cfg.LogDir, "a_2024-01-01.log"))
	assert.FileExists(t, filepath.Join(cfg.LogDir, "2023-12-31.log"))
}

func TestIsSegmentFile(t *testing.T) {
	plain := DefaultConfig()
	prefixed := DefaultConfig()
	prefixed.LogPrefix = "app"

	testCases := []struct {
		cfg  *Config
		name string
		want bool
	}{
		{plain, "2024-01-02.log", true},
		{plain, "2024-01-02_0006.log", true},
		{plain, "2024-01-02_1800_crash.log", true},
		{plain, "2024-01-02_crash.log", true},
		{plain, "app_2024-01-02.log", false},
		{plain, "2024-13-02.log", false},
		{plain, "2024-01-02.zip", false},
		{prefixed, "app_2024-01-02_0612.log", true},
		{prefixed, "2024-01-02.log", false},
		{prefixed, "apple_2024-01-02.log", false},
		{prefixed, "app_2024-01-02_06.log", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.want, isSegmentFile(tc.cfg, tc.name), "prefix %q name %q", tc.cfg.LogPrefix, tc.name)
	}
}

func TestArchiveExpired(t *testing.T) {
	cfg := archiveConfig(t)
	require.NoError(t, os.MkdirAll(cfg.LogDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.LogDir, "2024-01-01.log"), []byte("old segment\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.LogDir, "2024-01-02.log"), []byte("active segment\n"), 0644))

	archived, err := ArchiveExpired(cfg, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	dest := filepath.Join(cfg.ArchiveDir, "2024-01-01.zip")
	assert.Equal(t, []string{dest}, archived)

	assert.Equal(t, map[string]string{"2024-01-01.log": "old segment\n"}, zipContents(t, dest))
	assert.NoFileExists(t, filepath.Join(cfg.LogDir, "2024-01-01.log"))
	assert.FileExists(t, filepath.Join(cfg.LogDir, "2024-01-02.log"))
}

func TestZip(t *testing.T) {
	t.Run("directory with nested files", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "logs")
		writeSized(t, filepath.Join(src, "a.log"), 3)
		writeSized(t, filepath.Join(src, "sub", "b.log"), 5)
		dest := filepath.Join(t.TempDir(), "out", "logs.zip")

		require.NoError(t, Zip(src, dest, false))

		contents := zipContents(t, dest)
		names := make([]string, 0, len(contents))
		for name := range contents {
			names = append(names, name)
		}
		sort.Strings(names)
		assert.Equal(t, []string{"a.log", "sub/b.log"}, names)
		assert.Equal(t, "xxxxx", contents["sub/b.log"])
		assert.DirExists(t, src)
	})

	t.Run("archive inside its source is skipped", func(t *testing.T) {
		src := t.TempDir()
		writeSized(t, filepath.Join(src, "a.log"), 3)
		dest := filepath.Join(src, "self.zip")

		require.NoError(t, Zip(src, dest, false))

		contents := zipContents(t, dest)
		assert.Len(t, contents, 1)
		assert.Contains(t, contents, "a.log")

		entries, err := os.ReadDir(src)
		require.NoError(t, err)
		assert.Len(t, entries, 2, "no temporary file left behind")
	})

	t.Run("delete after", func(t *testing.T) {
		src := filepath.Join(t.TempDir(), "one.log")
		writeSized(t, src, 7)
		dest := filepath.Join(t.TempDir(), "one.zip")

		require.NoError(t, Zip(src, dest, true))
		assert.NoFileExists(t, src)
		assert.Equal(t, map[string]string{"one.log": "xxxxxxx"}, zipContents(t, dest))
	})

	t.Run("missing source leaves nothing", func(t *testing.T) {
		outDir := t.TempDir()
		err := Zip(filepath.Join(t.TempDir(), "absent"), filepath.Join(outDir, "x.zip"), true)
		require.Error(t, err)

		entries, err := os.ReadDir(outDir)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestArchiveDirectory(t *testing.T) {
	cfg := archiveConfig(t)
	cfg.LogPrefix = "app"
	writeSized(t, filepath.Join(cfg.LogDir, "app_2024-01-02.log"), 4)

	dest, err := ArchiveDirectory(cfg, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ArchiveDir, "app_logs_20240102_030405.zip"), dest)
	assert.Contains(t, zipContents(t, dest), "app_2024-01-02.log")
	assert.FileExists(t, filepath.Join(cfg.LogDir, "app_2024-01-02.log"))

	cfg.LogDir = filepath.Join(t.TempDir(), "absent")
	_, err = ArchiveDirectory(cfg, fixedNow)
	assert.Error(t, err)
}

func TestLogger_ArchiveExpired(t *testing.T) {
	logger, _ := createTestLogger(t, "debug=false")
	cfg := logger.GetConfig()
	writeSized(t, filepath.Join(cfg.LogDir, "2024-01-01.log"), 10)

	logger.Error("active")
	require.NoError(t, logger.Flush(time.Second))

	archived, err := logger.ArchiveExpired()
	require.NoError(t, err)
	assert.Len(t, archived, 1)
	assert.Equal(t, uint64(1), logger.Stats().Archives)
	assert.FileExists(t, filepath.Join(cfg.LogDir, FileName(cfg, fixedNow)))
}
