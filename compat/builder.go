package compat

import (
	"fmt"
	"time"

	"github.com/lixenwraith/seglog"
)

// Builder resolves the seglog logger behind the gnet and fasthttp adapters.
//
// Resolution order: an explicit logger from WithLogger, then a logger already
// registered under the requested name, then a new logger built from the
// configuration and joined to the registry so later builders and the upload
// trigger find it.
type Builder struct {
	logger    *seglog.Logger
	cfg       *seglog.Config
	name      string
	registry  seglog.Registry
	overrides []string
	dedicated bool
	created   bool
	err       error
}

// NewBuilder creates a builder resolving names against seglog.DefaultRegistry
func NewBuilder() *Builder {
	return &Builder{registry: seglog.DefaultRegistry()}
}

// WithLogger pins the logger the adapters write through. Name, registry and
// configuration settings are ignored afterwards.
func (b *Builder) WithLogger(l *seglog.Logger) *Builder {
	if l == nil {
		b.err = fmt.Errorf("seglog/compat: provided logger cannot be nil")
		return b
	}
	b.logger = l
	return b
}

// WithConfig sets the configuration used when no registered logger matches
func (b *Builder) WithConfig(cfg *seglog.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithName selects the logger registered under name, building one with that
// name when none exists
func (b *Builder) WithName(name string) *Builder {
	if name == "" {
		b.err = fmt.Errorf("seglog/compat: logger name cannot be empty")
		return b
	}
	b.name = name
	return b
}

// WithRegistry replaces the registry used for lookup and registration
func (b *Builder) WithRegistry(r seglog.Registry) *Builder {
	if r == nil {
		b.err = fmt.Errorf("seglog/compat: registry cannot be nil")
		return b
	}
	b.registry = r
	return b
}

// WithOverride applies key=value overrides to a newly built logger
func (b *Builder) WithOverride(overrides ...string) *Builder {
	b.overrides = append(b.overrides, overrides...)
	return b
}

// WithDedicatedQueue gives a newly built logger its own write queue, so a
// chatty network server does not share backpressure with the application
func (b *Builder) WithDedicatedQueue() *Builder {
	b.dedicated = true
	return b
}

// targetName is the name a lookup or a new logger uses
func (b *Builder) targetName() string {
	if b.name != "" {
		return b.name
	}
	if b.cfg != nil && b.cfg.Name != "" {
		return b.cfg.Name
	}
	return seglog.DefaultConfig().Name
}

func (b *Builder) getLogger() (*seglog.Logger, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.logger != nil {
		return b.logger, nil
	}

	name := b.targetName()
	if l, ok := b.registry.Get(name); ok {
		b.logger = l
		return l, nil
	}

	cfg := b.cfg
	if cfg == nil {
		cfg = seglog.DefaultConfig()
	}
	sb := seglog.NewBuilder().
		Config(cfg).
		Override(b.overrides...).
		Name(name).
		Registry(b.registry)
	if b.dedicated {
		sb = sb.DedicatedQueue()
	}

	l, err := sb.Build()
	if err != nil {
		return nil, fmt.Errorf("seglog/compat: build logger %q: %w", name, err)
	}
	b.logger = l
	b.created = true
	return l, nil
}

// BuildGnet creates a gnet adapter over the resolved logger
func (b *Builder) BuildGnet(opts ...GnetOption) (*GnetAdapter, error) {
	l, err := b.getLogger()
	if err != nil {
		return nil, err
	}
	return NewGnetAdapter(l, opts...), nil
}

// BuildFastHTTP creates a fasthttp adapter over the resolved logger
func (b *Builder) BuildFastHTTP(opts ...FastHTTPOption) (*FastHTTPAdapter, error) {
	l, err := b.getLogger()
	if err != nil {
		return nil, err
	}
	return NewFastHTTPAdapter(l, opts...), nil
}

// GetLogger returns the resolved logger, building it on first use
func (b *Builder) GetLogger() (*seglog.Logger, error) {
	return b.getLogger()
}

// Close shuts down the logger if this builder created it. Loggers passed in
// or found in the registry belong to someone else and are left running.
func (b *Builder) Close(timeout time.Duration) error {
	if !b.created || b.logger == nil {
		return nil
	}
	b.created = false
	return b.logger.Shutdown(timeout)
}
