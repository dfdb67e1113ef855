// FILE: lixenwraith/seglog/override.go
package seglog

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyOverride applies string key-value overrides to the logger's current configuration.
// Each override should be in the format "key=value".
// The configuration is cloned before modification and swapped in as a whole.
//
// Example:
//
//	logger, _ := seglog.New(seglog.DefaultConfig())
//	err := logger.ApplyOverride(
//	    "write_to_file=true",
//	    "file_levels=warn,error,fatal",
//	    "segment_width_hours=6",
//	)
func (l *Logger) ApplyOverride(overrides ...string) error {
	cfg := l.getConfig().Clone()
	if err := applyOverrideStrings(cfg, overrides); err != nil {
		return err
	}
	return l.ApplyConfig(cfg)
}

// applyOverrideStrings applies every override to cfg, collecting all failures
func applyOverrideStrings(cfg *Config, overrides []string) error {
	var errs []error
	for _, override := range overrides {
		key, value, err := parseKeyValue(override)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := applyConfigField(cfg, key, value); err != nil {
			errs = append(errs, err)
		}
	}
	return combineConfigErrors(errs)
}

// combineConfigErrors combines multiple configuration errors into a single error.
func combineConfigErrors(errors []error) error {
	if len(errors) == 0 {
		return nil
	}
	if len(errors) == 1 {
		return errors[0]
	}

	var sb strings.Builder
	sb.WriteString("seglog: multiple configuration errors:")
	for i, err := range errors {
		errMsg := strings.TrimPrefix(err.Error(), "seglog: ")
		sb.WriteString(fmt.Sprintf("\n  %d. %s", i+1, errMsg))
	}
	return fmt.Errorf("%s", sb.String())
}

// applyConfigField applies a single key-value override to a Config.
func applyConfigField(cfg *Config, key, value string) error {
	switch key {
	// Identity and routing
	case "name":
		cfg.Name = value
	case "debug":
		return setBool(&cfg.Debug, key, value)
	case "write_to_file":
		return setBool(&cfg.WriteToFile, key, value)
	case "file_levels":
		levels := splitList(value)
		for _, lv := range levels {
			if _, err := ParseLevel(lv); err != nil {
				return fmtErrorf("invalid file_levels entry '%s': %w", lv, err)
			}
		}
		cfg.FileLevels = levels

	// File naming and placement
	case "log_dir":
		cfg.LogDir = value
	case "archive_dir":
		cfg.ArchiveDir = value
	case "log_prefix":
		cfg.LogPrefix = value
	case "segment_width_hours":
		return setInt(&cfg.SegmentWidthHours, key, value)

	// Time and encoding
	case "zone_offset_ms":
		return setInt(&cfg.ZoneOffsetMs, key, value)
	case "time_format":
		cfg.TimeFormat = value
	case "charset":
		cfg.Charset = value

	// Retention
	case "retention_bytes":
		return setInt(&cfg.RetentionBytes, key, value)
	case "eviction_policy":
		cfg.EvictionPolicy = value

	// Call site
	case "call_site_skip_depth":
		return setInt(&cfg.CallSiteSkipDepth, key, value)
	case "strict_call_site":
		return setBool(&cfg.StrictCallSite, key, value)

	// Write queue
	case "buffer_entries":
		return setInt(&cfg.BufferEntries, key, value)
	case "queue_size":
		return setInt(&cfg.QueueSize, key, value)
	case "flush_interval_ms":
		return setInt(&cfg.FlushIntervalMs, key, value)
	case "crash_flush_timeout_ms":
		return setInt(&cfg.CrashFlushTimeoutMs, key, value)
	case "drop_on_full":
		return setBool(&cfg.DropOnFull, key, value)

	// Output shaping
	case "sanitization":
		cfg.Sanitization = value
	case "console_sanitization":
		cfg.ConsoleSanitization = value
	case "console_format":
		cfg.ConsoleFormat = value
	case "console_target":
		cfg.ConsoleTarget = value

	// Internal error handling
	case "internal_errors_to_stderr":
		return setBool(&cfg.InternalErrorsToStderr, key, value)

	default:
		return fmtErrorf("unknown configuration key '%s'", key)
	}

	return nil
}

func setBool(dst *bool, key, value string) error {
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return fmtErrorf("invalid boolean value for %s '%s': %w", key, value, err)
	}
	*dst = boolVal
	return nil
}

func setInt(dst *int64, key, value string) error {
	intVal, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmtErrorf("invalid integer value for %s '%s': %w", key, value, err)
	}
	*dst = intVal
	return nil
}
