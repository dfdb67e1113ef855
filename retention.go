// FILE: lixenwraith/seglog/retention.go
package seglog

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// Eviction policies
const (
	EvictWipe   = "wipe"   // Remove the whole log directory tree
	EvictOldest = "oldest" // Remove oldest-named log files until under the threshold
)

// DirSize returns the total size of regular files under dir, recursively.
// A missing directory has size 0.
func DirSize(dir string) (int64, error) {
	var size int64
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, errInfo := d.Info()
		if errInfo != nil {
			return nil // Vanished between listing and stat
		}
		size += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmtErrorf("failed to size log directory '%s': %w", dir, err)
	}
	return size, nil
}

// CheckAndEvict measures log_dir and evicts when its size reaches retention_bytes.
// Reports whether an eviction happened. With the default wipe policy the entire
// directory tree is removed, including the newest files. Retention 0 disables it.
func CheckAndEvict(cfg *Config) (bool, error) {
	if cfg.RetentionBytes <= 0 {
		return false, nil
	}

	size, err := DirSize(cfg.LogDir)
	if err != nil {
		return false, err
	}
	if size < cfg.RetentionBytes {
		return false, nil
	}

	switch cfg.EvictionPolicy {
	case EvictOldest:
		return evictOldest(cfg, size)
	default:
		if err := os.RemoveAll(cfg.LogDir); err != nil {
			return false, fmtErrorf("failed to remove log directory '%s': %w", cfg.LogDir, err)
		}
		return true, nil
	}
}

// evictOldest removes log files in name order until the directory is below the threshold
func evictOldest(cfg *Config, size int64) (bool, error) {
	type logFileMeta struct {
		path string
		name string
		size int64
	}

	var logs []logFileMeta
	err := filepath.WalkDir(cfg.LogDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), logExt) {
			return nil
		}
		info, errInfo := d.Info()
		if errInfo != nil {
			return nil
		}
		logs = append(logs, logFileMeta{path: path, name: d.Name(), size: info.Size()})
		return nil
	})
	if err != nil {
		return false, fmtErrorf("failed to read log directory '%s' for eviction: %w", cfg.LogDir, err)
	}

	if len(logs) == 0 {
		return false, fmtErrorf("no log files available to evict in '%s', size %d bytes", cfg.LogDir, size)
	}

	// Names sort chronologically
	sort.Slice(logs, func(i, j int) bool { return logs[i].name < logs[j].name })

	var removed int
	var removeErrs error
	for _, lf := range logs {
		if size < cfg.RetentionBytes {
			break
		}
		if err := os.Remove(lf.path); err != nil {
			removeErrs = combineErrors(removeErrs, fmtErrorf("failed to remove '%s': %w", lf.path, err))
			continue
		}
		size -= lf.size
		removed++
	}

	if size >= cfg.RetentionBytes {
		removeErrs = combineErrors(removeErrs,
			fmtErrorf("could not evict enough in '%s': %d bytes remain, limit %d", cfg.LogDir, size, cfg.RetentionBytes))
	}
	return removed > 0, removeErrs
}

// DiskFree returns the bytes available to unprivileged users on the volume holding path
func DiskFree(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmtErrorf("failed to stat '%s': %w", path, err)
	}
	if !info.IsDir() {
		path = filepath.Dir(path)
	}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(path, &stat); err != nil {
		return 0, fmtErrorf("failed to get disk stats for '%s': %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
