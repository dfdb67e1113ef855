// Package httpstore ships a logger's zip archives to an HTTP endpoint.
//
// Each archive is POSTed as application/zip to <endpoint>/<logger>/<archive>
// and removed once the server answers 2xx. Archives that fail stay in
// archive_dir and are retried on the next upload round.
package httpstore

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/seglog"
	"github.com/valyala/fasthttp"
	"go.uber.org/multierr"
)

// LoggerHeader carries the logger name on every upload request
const LoggerHeader = "X-Seglog-Logger"

const defaultTimeout = 30 * time.Second

var _ seglog.Storage = (*Store)(nil)

// Store is a seglog.Storage backed by a fasthttp client
type Store struct {
	client   *fasthttp.Client
	endpoint string
	timeout  time.Duration
	keep     bool

	uploaded atomic.Uint64
	failed   atomic.Uint64
}

// Option configures a Store
type Option func(*Store)

// WithClient replaces the HTTP client
func WithClient(c *fasthttp.Client) Option {
	return func(s *Store) {
		s.client = c
	}
}

// WithTimeout bounds each request when the context has no earlier deadline
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// KeepArchives leaves uploaded archives in archive_dir
func KeepArchives() Option {
	return func(s *Store) {
		s.keep = true
	}
}

// New creates a store posting to endpoint, e.g. "https://logs.example.com/ingest"
func New(endpoint string, opts ...Option) *Store {
	s := &Store{
		client:   &fasthttp.Client{Name: "seglog-httpstore"},
		endpoint: strings.TrimRight(endpoint, "/"),
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload archives the logger's expired segments and sends every pending archive
func (s *Store) Upload(ctx context.Context, logger *seglog.Logger) error {
	var errs error
	if _, err := logger.ArchiveExpired(); err != nil {
		// Archives that were written are still sent
		errs = multierr.Append(errs, err)
	}

	cfg := logger.GetConfig()
	pending, err := Pending(cfg.ArchiveDir)
	if err != nil {
		return multierr.Append(errs, err)
	}

	for _, path := range pending {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		if err := s.send(ctx, logger.Name(), path); err != nil {
			s.failed.Add(1)
			errs = multierr.Append(errs, err)
			continue
		}
		s.uploaded.Add(1)
		if !s.keep {
			if err := os.Remove(path); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("httpstore: uploaded '%s' but removal failed: %w", path, err))
			}
		}
	}
	return errs
}

// Uploaded returns how many archives were accepted by the server
func (s *Store) Uploaded() uint64 { return s.uploaded.Load() }

// Failed returns how many archive uploads failed
func (s *Store) Failed() uint64 { return s.failed.Load() }

// send posts one archive
func (s *Store) send(ctx context.Context, name, path string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("httpstore: failed to read archive '%s': %w", path, err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(s.endpoint + "/" + url.PathEscape(name) + "/" + url.PathEscape(filepath.Base(path)))
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/zip")
	req.Header.Set(LoggerHeader, name)
	req.SetBody(body)

	timeout := s.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if timeout <= 0 {
		return fmt.Errorf("httpstore: deadline passed before uploading '%s': %w", path, context.DeadlineExceeded)
	}

	if err := s.client.DoTimeout(req, resp, timeout); err != nil {
		return fmt.Errorf("httpstore: upload of '%s' failed: %w", path, err)
	}
	if code := resp.StatusCode(); code < 200 || code > 299 {
		return fmt.Errorf("httpstore: upload of '%s' rejected with status %d", path, code)
	}
	return nil
}

// Pending lists the zip archives in dir, oldest name first. A missing dir has none.
func Pending(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("httpstore: failed to read archive directory '%s': %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".zip") {
			continue
		}
		paths = append(paths, filepath.Join(dir, name))
	}
	sort.Strings(paths)
	return paths, nil
}
