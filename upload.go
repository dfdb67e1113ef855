// FILE: lixenwraith/seglog/upload.go
package seglog

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Storage ships a logger's files off the host. Implementations decide what to
// send, typically the archives produced by ArchiveExpired.
type Storage interface {
	Upload(ctx context.Context, logger *Logger) error
}

// StorageFunc adapts a function to Storage
type StorageFunc func(ctx context.Context, logger *Logger) error

// Upload calls f
func (f StorageFunc) Upload(ctx context.Context, logger *Logger) error { return f(ctx, logger) }

// Registry tracks loggers by name for the upload trigger
type Registry interface {
	Register(logger *Logger)
	Get(name string) (*Logger, bool)
	Loggers() []*Logger
}

// MapRegistry is an in-memory Registry. Registering a name again replaces the entry.
type MapRegistry struct {
	mu      sync.RWMutex
	loggers map[string]*Logger
}

// NewRegistry creates an empty registry
func NewRegistry() *MapRegistry {
	return &MapRegistry{loggers: make(map[string]*Logger)}
}

// Register adds or replaces logger under its name
func (r *MapRegistry) Register(logger *Logger) {
	r.mu.Lock()
	r.loggers[logger.Name()] = logger
	r.mu.Unlock()
}

// Get looks a logger up by name
func (r *MapRegistry) Get(name string) (*Logger, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.loggers[name]
	return l, ok
}

// Loggers returns the registered loggers ordered by name
func (r *MapRegistry) Loggers() []*Logger {
	r.mu.RLock()
	list := make([]*Logger, 0, len(r.loggers))
	for _, l := range r.loggers {
		list = append(list, l)
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })
	return list
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry loggers join when built
func DefaultRegistry() Registry {
	return defaultRegistry
}

// Ticker delivers upload ticks
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// timeTicker binds Ticker to time.Ticker
type timeTicker struct {
	t *time.Ticker
}

// NewTimeTicker returns a wall-clock Ticker firing every d
func NewTimeTicker(d time.Duration) Ticker {
	if d <= 0 {
		d = DefaultUploadInterval
	}
	return &timeTicker{t: time.NewTicker(d)}
}

func (t *timeTicker) C() <-chan time.Time { return t.t.C }
func (t *timeTicker) Stop()               { t.t.Stop() }

// ManualTicker fires only when told to
type ManualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

// NewManualTicker creates a ticker driven by Tick
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Tick delivers one tick, blocking until the trigger receives it or ctx ends
func (m *ManualTicker) Tick(ctx context.Context, t time.Time) bool {
	if m.stopped.Load() {
		return false
	}
	select {
	case m.ch <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }
func (m *ManualTicker) Stop()               { m.stopped.Store(true) }

// Stopped reports whether Stop was called
func (m *ManualTicker) Stopped() bool { return m.stopped.Load() }

// UploadTrigger calls each registered logger's storage on every tick.
// Failures are reported and left for the next tick, there is no retry.
type UploadTrigger struct {
	registry    Registry
	ticker      Ticker
	concurrency int
	report      bool

	fired atomic.Uint64
}

// NewUploadTrigger creates a trigger over registry driven by ticker.
// concurrency bounds parallel uploads, 0 or less means one at a time.
func NewUploadTrigger(registry Registry, ticker Ticker, concurrency int) *UploadTrigger {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &UploadTrigger{
		registry:    registry,
		ticker:      ticker,
		concurrency: concurrency,
		report:      true,
	}
}

// ReportErrors toggles stderr reporting of upload failures during Run
func (u *UploadTrigger) ReportErrors(enabled bool) *UploadTrigger {
	u.report = enabled
	return u
}

// Run fires on every tick until ctx is done, then stops the ticker
func (u *UploadTrigger) Run(ctx context.Context) error {
	defer u.ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-u.ticker.C():
			if err := u.Fire(ctx); err != nil {
				internalLogf(u.report, "upload round failed: %v", err)
			}
		}
	}
}

// Fire runs one upload round over every registered logger that has a storage.
// All failures are combined into the returned error.
func (u *UploadTrigger) Fire(ctx context.Context) error {
	defer u.fired.Add(1)

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	g.SetLimit(u.concurrency)

	for _, logger := range u.registry.Loggers() {
		storage := logger.Storage()
		if storage == nil {
			continue
		}
		g.Go(func() error {
			if err := storage.Upload(ctx, logger); err != nil {
				mu.Lock()
				errs = combineErrors(errs, fmtErrorf("upload for logger '%s' failed: %w", logger.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Rounds returns how many upload rounds have run
func (u *UploadTrigger) Rounds() uint64 {
	return u.fired.Load()
}
