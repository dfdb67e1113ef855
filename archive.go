// FILE: lixenwraith/seglog/archive.go
package seglog

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"
)

// archiveStampLayout names whole-directory archives
const archiveStampLayout = "20060102_150405"

// Zip compresses source into a zip at dest. A directory is walked recursively and
// its files are stored under slash-separated paths relative to it; a single file
// is stored under its base name.
//
// The archive is written to a temporary file next to dest and renamed into place.
// On error the temporary file is removed and source is untouched. Source is only
// removed when deleteAfter is set and the archive is complete.
func Zip(source, dest string, deleteAfter bool) (err error) {
	info, err := os.Stat(source)
	if err != nil {
		return fmtErrorf("failed to stat archive source '%s': %w", source, err)
	}

	destDir := filepath.Dir(dest)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmtErrorf("failed to create archive directory '%s': %w", destDir, err)
	}

	tmp, err := os.CreateTemp(destDir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return fmtErrorf("failed to create temporary archive: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	zw := zip.NewWriter(tmp)
	if info.IsDir() {
		err = zipDir(zw, source, tmpPath, dest)
	} else {
		err = zipFile(zw, source, filepath.Base(source), info)
	}
	if err != nil {
		return err
	}

	if err = zw.Close(); err != nil {
		return fmtErrorf("failed to finalize archive '%s': %w", dest, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmtErrorf("failed to sync archive '%s': %w", dest, err)
	}
	if err = tmp.Close(); err != nil {
		return fmtErrorf("failed to close archive '%s': %w", dest, err)
	}
	if err = os.Rename(tmpPath, dest); err != nil {
		return fmtErrorf("failed to move archive into place '%s': %w", dest, err)
	}

	if deleteAfter {
		if rmErr := os.RemoveAll(source); rmErr != nil {
			// The archive exists, report but keep it
			return fmtErrorf("archive '%s' written but source removal failed: %w", dest, rmErr)
		}
	}
	return nil
}

// zipDir adds every regular file under root, skipping the archive being written
func zipDir(zw *zip.Writer, root, tmpPath, dest string) error {
	absTmp, _ := filepath.Abs(tmpPath)
	absDest, _ := filepath.Abs(dest)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmtErrorf("failed to walk '%s': %w", path, err)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if abs, _ := filepath.Abs(path); abs == absTmp || abs == absDest {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return fmtErrorf("failed to relativize '%s': %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmtErrorf("failed to stat '%s': %w", path, err)
		}
		return zipFile(zw, path, filepath.ToSlash(rel), info)
	})
}

// zipFile copies one file into the archive as a deflated entry
func zipFile(zw *zip.Writer, path, name string, info fs.FileInfo) error {
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmtErrorf("failed to build zip header for '%s': %w", path, err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmtErrorf("failed to add zip entry '%s': %w", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmtErrorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmtErrorf("failed to compress '%s': %w", path, err)
	}
	return nil
}

// ExpiredFiles lists the segment files of cfg's prefix directly under dir whose
// names sort strictly before the active file name for now. File names order
// chronologically, so these are segments that can no longer receive writes.
// Files of other prefixes sharing the directory are left alone.
func ExpiredFiles(dir string, cfg *Config, now time.Time) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmtErrorf("failed to read log directory '%s': %w", dir, err)
	}

	current := FileName(cfg, now)
	var expired []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isSegmentFile(cfg, name) {
			continue
		}
		if name < current {
			expired = append(expired, name)
		}
	}
	sort.Strings(expired)
	return expired, nil
}

// ArchiveExpired zips each expired log file into archive_dir as <name>.zip and
// removes the source. Files that fail are kept and their errors combined.
// Returns the archives written.
func ArchiveExpired(cfg *Config, now time.Time) ([]string, error) {
	expired, err := ExpiredFiles(cfg.LogDir, cfg, now)
	if err != nil {
		return nil, err
	}

	var archived []string
	var errs error
	for _, name := range expired {
		dest := filepath.Join(cfg.ArchiveDir, archiveName(name))
		if err := Zip(filepath.Join(cfg.LogDir, name), dest, true); err != nil {
			errs = combineErrors(errs, err)
			continue
		}
		archived = append(archived, dest)
	}
	return archived, errs
}

// ArchiveDirectory zips the whole log directory into one timestamped archive
// under archive_dir, leaving the logs in place
func ArchiveDirectory(cfg *Config, now time.Time) (string, error) {
	if _, err := os.Stat(cfg.LogDir); err != nil {
		return "", fmtErrorf("log directory '%s' unavailable: %w", cfg.LogDir, err)
	}

	name := "logs_" + InZone(now, cfg.zoneOffset()).Format(archiveStampLayout) + zipExt
	if cfg.LogPrefix != "" {
		name = cfg.LogPrefix + "_" + name
	}
	dest := filepath.Join(cfg.ArchiveDir, name)

	if err := Zip(cfg.LogDir, dest, false); err != nil {
		return "", err
	}
	return dest, nil
}
