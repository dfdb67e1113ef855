// FILE: lixenwraith/seglog/config.go
package seglog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lixenwraith/config"
	"golang.org/x/text/encoding/htmlindex"
)

// Config holds all logger configuration values
type Config struct {
	// Identity
	Name string `toml:"name"` // Registry key, one logger per name

	// Routing
	Debug       bool     `toml:"debug"`         // Console output on/off
	WriteToFile bool     `toml:"write_to_file"` // File output on/off
	FileLevels  []string `toml:"file_levels"`   // Levels eligible for persistence

	// File naming and placement
	LogDir            string `toml:"log_dir"`
	ArchiveDir        string `toml:"archive_dir"`
	LogPrefix         string `toml:"log_prefix"`
	SegmentWidthHours int64  `toml:"segment_width_hours"` // 1, 2, 3, 4, 6, 12 or 24

	// Time and encoding
	ZoneOffsetMs int64  `toml:"zone_offset_ms"` // Offset applied to wall clock for names and timestamps
	TimeFormat   string `toml:"time_format"`    // Go layout for the file line timestamp
	Charset      string `toml:"charset"`        // Encoding of file output

	// Retention
	RetentionBytes int64  `toml:"retention_bytes"` // Evict when log_dir reaches this size (0=disabled)
	EvictionPolicy string `toml:"eviction_policy"` // "wipe" or "oldest"

	// Call site
	CallSiteSkipDepth int64 `toml:"call_site_skip_depth"` // Extra wrapper frames to skip (0-10)
	StrictCallSite    bool  `toml:"strict_call_site"`     // Panic on resolver failure instead of dropping

	// Write queue
	BufferEntries       int64 `toml:"buffer_entries"`         // Per-file entries before implicit flush
	QueueSize           int64 `toml:"queue_size"`             // Channel capacity, loggers with equal sizes share a queue
	FlushIntervalMs     int64 `toml:"flush_interval_ms"`      // Max age of a partial file buffer (0=disabled)
	CrashFlushTimeoutMs int64 `toml:"crash_flush_timeout_ms"` // Max wait for crash record persistence
	DropOnFull          bool  `toml:"drop_on_full"`           // Drop records on a full queue instead of waiting

	// Output shaping
	Sanitization        string `toml:"sanitization"`         // File lines: "raw" or "txt"
	ConsoleSanitization string `toml:"console_sanitization"` // Console lines: "raw" or "console"
	ConsoleFormat       string `toml:"console_format"`       // "text" or "zap"
	ConsoleTarget       string `toml:"console_target"`       // "stdout" or "stderr"

	// Internal error handling
	InternalErrorsToStderr bool `toml:"internal_errors_to_stderr"` // Write internal errors to stderr
}

// defaultConfig is the single source for all configurable default values
var defaultConfig = Config{
	Name: "seglog",

	Debug:       true,
	WriteToFile: false,
	FileLevels:  []string{"error", "fatal"},

	LogDir:            "./seglog",
	ArchiveDir:        "./seglog_archive",
	LogPrefix:         "",
	SegmentWidthHours: 24,

	ZoneOffsetMs: 8 * 3600 * 1000,
	TimeFormat:   time.DateTime,
	Charset:      "utf-8",

	RetentionBytes: 0,
	EvictionPolicy: "wipe",

	CallSiteSkipDepth: 0,
	StrictCallSite:    true,

	BufferEntries:       defaultBufferEntries,
	QueueSize:           1024,
	FlushIntervalMs:     1000,
	CrashFlushTimeoutMs: 1000,
	DropOnFull:          false,

	Sanitization:        "raw",
	ConsoleSanitization: "console",
	ConsoleFormat:       "text",
	ConsoleTarget:       "stdout",

	InternalErrorsToStderr: true,
}

// DefaultConfig returns a copy of the default configuration
func DefaultConfig() *Config {
	return defaultConfig.Clone()
}

// NewConfigFromFile loads configuration from a TOML file and returns a validated Config
func NewConfigFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Use lixenwraith/config as a loader
	loader := config.New()

	if err := loader.RegisterStruct("seglog.", *cfg); err != nil {
		return nil, fmt.Errorf("failed to register config struct: %w", err)
	}

	// Load from file (handles file not found gracefully)
	if err := loader.Load(path, nil); err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}

	if err := extractConfig(loader, "seglog.", cfg); err != nil {
		return nil, fmt.Errorf("failed to extract config values: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewConfigFromDefaults creates a Config with default values and applies overrides
func NewConfigFromDefaults(overrides map[string]any) (*Config, error) {
	cfg := DefaultConfig()

	if err := applyOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("failed to apply overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// extractConfig extracts values from lixenwraith/config into our Config struct
func extractConfig(loader *config.Config, prefix string, cfg *Config) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldValue := v.Field(i)

		tomlTag := field.Tag.Get("toml")
		if tomlTag == "" {
			continue
		}

		val, found := loader.Get(prefix + tomlTag)
		if !found {
			continue // Use default value
		}

		if err := setFieldValue(fieldValue, val); err != nil {
			return fmt.Errorf("failed to set field %s: %w", field.Name, err)
		}
	}

	return nil
}

// applyOverrides applies a map of overrides to the Config struct
func applyOverrides(cfg *Config, overrides map[string]any) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()

	fieldMap := make(map[string]reflect.Value)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tomlTag := field.Tag.Get("toml")
		if tomlTag != "" {
			fieldMap[tomlTag] = v.Field(i)
		}
	}

	for key, value := range overrides {
		fieldValue, exists := fieldMap[key]
		if !exists {
			return fmt.Errorf("unknown config key: %s", key)
		}

		if err := setFieldValue(fieldValue, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	return nil
}

// setFieldValue sets a reflect.Value with proper type conversion
func setFieldValue(field reflect.Value, value any) error {
	switch field.Kind() {
	case reflect.String:
		strVal, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		field.SetString(strVal)

	case reflect.Int64:
		switch v := value.(type) {
		case int64:
			field.SetInt(v)
		case int:
			field.SetInt(int64(v))
		default:
			return fmt.Errorf("expected int64, got %T", value)
		}

	case reflect.Bool:
		boolVal, ok := value.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", value)
		}
		field.SetBool(boolVal)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %v", field.Type())
		}
		var items []string
		switch v := value.(type) {
		case []string:
			items = append(items, v...)
		case []any:
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return fmt.Errorf("expected string list element, got %T", item)
				}
				items = append(items, s)
			}
		case string:
			items = splitList(v)
		default:
			return fmt.Errorf("expected string list, got %T", value)
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %v", field.Kind())
	}

	return nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	// String validations
	if strings.TrimSpace(c.Name) == "" {
		return fmtErrorf("logger name cannot be empty")
	}

	if strings.TrimSpace(c.LogDir) == "" {
		return fmtErrorf("log_dir cannot be empty")
	}

	if strings.ContainsAny(c.LogPrefix, `/\`) {
		return fmtErrorf("log_prefix cannot contain path separators: %s", c.LogPrefix)
	}

	if strings.TrimSpace(c.TimeFormat) == "" {
		return fmtErrorf("time_format cannot be empty")
	}

	if _, err := htmlindex.Get(c.Charset); err != nil {
		return fmtErrorf("unsupported charset: '%s'", c.Charset)
	}

	if c.EvictionPolicy != "wipe" && c.EvictionPolicy != "oldest" {
		return fmtErrorf("invalid eviction_policy: '%s' (use wipe or oldest)", c.EvictionPolicy)
	}

	if c.Sanitization != "raw" && c.Sanitization != "txt" {
		return fmtErrorf("invalid sanitization: '%s' (use raw or txt)", c.Sanitization)
	}

	if c.ConsoleSanitization != "raw" && c.ConsoleSanitization != "console" {
		return fmtErrorf("invalid console_sanitization: '%s' (use raw or console)", c.ConsoleSanitization)
	}

	if c.ConsoleFormat != "text" && c.ConsoleFormat != "zap" {
		return fmtErrorf("invalid console_format: '%s' (use text or zap)", c.ConsoleFormat)
	}

	if c.ConsoleTarget != "stdout" && c.ConsoleTarget != "stderr" {
		return fmtErrorf("invalid console_target: '%s' (use stdout or stderr)", c.ConsoleTarget)
	}

	for _, name := range c.FileLevels {
		if _, err := ParseLevel(name); err != nil {
			return fmtErrorf("invalid file_levels entry: %w", err)
		}
	}

	// Numeric validations
	if !validSegmentWidths[c.SegmentWidthHours] {
		return fmtErrorf("segment_width_hours must divide 24 (1, 2, 3, 4, 6, 12, 24): %d", c.SegmentWidthHours)
	}

	if c.ZoneOffsetMs < minZoneOffsetMs || c.ZoneOffsetMs > maxZoneOffsetMs {
		return fmtErrorf("zone_offset_ms out of range [-12h, +14h]: %d", c.ZoneOffsetMs)
	}

	if c.CallSiteSkipDepth < 0 || c.CallSiteSkipDepth > 10 {
		return fmtErrorf("call_site_skip_depth must be between 0 and 10: %d", c.CallSiteSkipDepth)
	}

	if c.RetentionBytes < 0 {
		return fmtErrorf("retention_bytes cannot be negative: %d", c.RetentionBytes)
	}

	if c.BufferEntries <= 0 {
		return fmtErrorf("buffer_entries must be positive: %d", c.BufferEntries)
	}

	if c.QueueSize <= 0 {
		return fmtErrorf("queue_size must be positive: %d", c.QueueSize)
	}

	if c.FlushIntervalMs < 0 || c.CrashFlushTimeoutMs < 0 {
		return fmtErrorf("interval settings cannot be negative")
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	copiedConfig := *c
	copiedConfig.FileLevels = append([]string(nil), c.FileLevels...)
	return &copiedConfig
}

// persistsLevel reports whether level is listed in FileLevels
func (c *Config) persistsLevel(level Level) bool {
	for _, name := range c.FileLevels {
		if lv, err := ParseLevel(name); err == nil && lv == level {
			return true
		}
	}
	return false
}

// zoneOffset returns the configured offset as a duration
func (c *Config) zoneOffset() time.Duration {
	return time.Duration(c.ZoneOffsetMs) * time.Millisecond
}

// splitList splits a comma-separated list, dropping empty items
func splitList(s string) []string {
	var items []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			items = append(items, p)
		}
	}
	return items
}
