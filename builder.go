// FILE: lixenwraith/seglog/builder.go
package seglog

// Builder provides a fluent API for building loggers.
// It wraps a Config instance and the collaborators a logger is wired with.
type Builder struct {
	cfg       *Config
	queue     *WriteQueue
	dedicated bool
	clock     Clock
	device    *DeviceInfo
	sink      ConsoleSink
	storage   Storage
	registry  Registry
	err       error // Accumulate errors for deferred handling
}

// NewBuilder creates a new logger builder with default values.
func NewBuilder() *Builder {
	return &Builder{
		cfg:      DefaultConfig(),
		registry: DefaultRegistry(),
	}
}

// Build validates the configuration, creates the logger and registers it.
func (b *Builder) Build() (*Logger, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		queue *WriteQueue
		mode  queueMode
	)
	switch {
	case b.queue != nil:
		// An injected queue decides the capacity
		queue, mode = b.queue, queuePinned
		b.cfg.QueueSize = int64(queue.Capacity())
	case b.dedicated:
		queue, mode = queueFor(b.cfg), queueOwned
	default:
		queue, mode = sharedQueue(int(b.cfg.QueueSize)), queueShared
	}

	device := HostDeviceInfo()
	if b.device != nil {
		device = *b.device
	}

	logger := newLogger(queue, mode, b.clock, device, b.sink, b.storage)
	if err := logger.ApplyConfig(b.cfg); err != nil {
		if mode == queueOwned {
			_ = queue.Stop(minWaitTime)
		}
		return nil, err
	}

	if b.registry != nil {
		b.registry.Register(logger)
	}
	return logger, nil
}

// queueFor creates and starts a queue sized by cfg
func queueFor(cfg *Config) *WriteQueue {
	q := NewWriteQueue(QueueOptions{
		BatchSize:     int(cfg.BufferEntries),
		QueueSize:     int(cfg.QueueSize),
		FlushInterval: millis(cfg.FlushIntervalMs),
		DropOnFull:    cfg.DropOnFull,
		ReportErrors:  cfg.InternalErrorsToStderr,
	})
	q.Start()
	return q
}

// Config replaces the whole configuration. A nil config is an error at Build.
func (b *Builder) Config(cfg *Config) *Builder {
	if cfg == nil {
		if b.err == nil {
			b.err = fmtErrorf("configuration cannot be nil")
		}
		return b
	}
	b.cfg = cfg.Clone()
	return b
}

// Override applies "key=value" overrides to the configuration being built.
func (b *Builder) Override(overrides ...string) *Builder {
	if b.err != nil {
		return b
	}
	b.err = applyOverrideStrings(b.cfg, overrides)
	return b
}

// Name sets the registry key.
func (b *Builder) Name(name string) *Builder {
	b.cfg.Name = name
	return b
}

// Debug enables console output.
func (b *Builder) Debug(enable bool) *Builder {
	b.cfg.Debug = enable
	return b
}

// WriteToFile enables file output.
func (b *Builder) WriteToFile(enable bool) *Builder {
	b.cfg.WriteToFile = enable
	return b
}

// FileLevels sets the levels eligible for persistence.
func (b *Builder) FileLevels(levels ...Level) *Builder {
	names := make([]string, 0, len(levels))
	for _, lv := range levels {
		names = append(names, lv.String())
	}
	b.cfg.FileLevels = names
	return b
}

// LogDir sets the log directory.
func (b *Builder) LogDir(dir string) *Builder {
	b.cfg.LogDir = dir
	return b
}

// ArchiveDir sets the directory zip archives are written to.
func (b *Builder) ArchiveDir(dir string) *Builder {
	b.cfg.ArchiveDir = dir
	return b
}

// Prefix sets the file name prefix.
func (b *Builder) Prefix(prefix string) *Builder {
	b.cfg.LogPrefix = prefix
	return b
}

// SegmentWidthHours sets the rotation segment width.
func (b *Builder) SegmentWidthHours(hours int64) *Builder {
	b.cfg.SegmentWidthHours = hours
	return b
}

// ZoneOffsetMs sets the zone offset used for timestamps and file names.
func (b *Builder) ZoneOffsetMs(ms int64) *Builder {
	b.cfg.ZoneOffsetMs = ms
	return b
}

// TimeFormat sets the file line timestamp layout.
func (b *Builder) TimeFormat(layout string) *Builder {
	b.cfg.TimeFormat = layout
	return b
}

// RetentionBytes sets the eviction threshold, 0 disables eviction.
func (b *Builder) RetentionBytes(n int64) *Builder {
	b.cfg.RetentionBytes = n
	return b
}

// SkipDepth sets the number of wrapper frames above the logger to skip.
func (b *Builder) SkipDepth(n int64) *Builder {
	b.cfg.CallSiteSkipDepth = n
	return b
}

// StrictCallSite chooses panic (true) or report-and-drop (false) on resolver failure.
func (b *Builder) StrictCallSite(strict bool) *Builder {
	b.cfg.StrictCallSite = strict
	return b
}

// Queue shares an existing write queue instead of the process-wide one.
// queue_size then follows the queue's capacity and cannot be changed later.
func (b *Builder) Queue(q *WriteQueue) *Builder {
	b.queue = q
	return b
}

// DedicatedQueue gives the logger its own queue sized by the configuration,
// stopped on Shutdown.
func (b *Builder) DedicatedQueue() *Builder {
	b.dedicated = true
	return b
}

// Clock replaces the wall clock.
func (b *Builder) Clock(c Clock) *Builder {
	b.clock = c
	return b
}

// Device replaces the host metadata written in file headers.
func (b *Builder) Device(d DeviceInfo) *Builder {
	b.device = &d
	return b
}

// Sink fixes the console sink, ignoring console_format and console_target.
func (b *Builder) Sink(s ConsoleSink) *Builder {
	b.sink = s
	return b
}

// Storage sets the upload collaborator.
func (b *Builder) Storage(s Storage) *Builder {
	b.storage = s
	return b
}

// Registry sets the registry the logger joins, nil skips registration.
func (b *Builder) Registry(r Registry) *Builder {
	b.registry = r
	return b
}

// Example usage:
// logger, err := seglog.NewBuilder().
//
//	Name("app").
//	LogDir("/var/log/app").
//	WriteToFile(true).
//	FileLevels(seglog.LevelWarn, seglog.LevelError, seglog.LevelFatal).
//	SegmentWidthHours(6).
//	Build()
//
// if err == nil {
//
//	 defer logger.Shutdown()
//	 logger.Info("logger initialized")
//
// }
