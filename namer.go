package seglog

import (
	"strings"
	"time"
)

// SegmentCode returns the zero-padded "SSEE" bounds of the segment containing hour.
// The end bound wraps to 00 for the last segment of the day.
func SegmentCode(hour int, widthHours int64) string {
	width := int(widthHours)
	start := hour - hour%width
	end := (start + width) % 24
	return twoDigits(start) + twoDigits(end)
}

// FileName returns the active log file name for now under cfg.
// now is converted into the configured zone before the date and hour are read.
func FileName(cfg *Config, now time.Time) string {
	return segmentName(cfg, now, false)
}

// CrashFileName returns the crash file name sharing the active segment
func CrashFileName(cfg *Config, now time.Time) string {
	return segmentName(cfg, now, true)
}

// segmentName builds [prefix_]date[_SSEE][_crash].log
func segmentName(cfg *Config, now time.Time, crash bool) string {
	local := InZone(now, cfg.zoneOffset())

	var sb strings.Builder
	sb.Grow(len(cfg.LogPrefix) + 32)
	if cfg.LogPrefix != "" {
		sb.WriteString(cfg.LogPrefix)
		sb.WriteByte('_')
	}
	sb.WriteString(local.Format(dateLayout))
	if cfg.SegmentWidthHours != 24 {
		sb.WriteByte('_')
		sb.WriteString(SegmentCode(local.Hour(), cfg.SegmentWidthHours))
	}
	if crash {
		sb.WriteString(crashSuffix)
	}
	sb.WriteString(logExt)
	return sb.String()
}

// isSegmentFile reports whether name was produced by segmentName for cfg's
// prefix, with any segment width and with or without the crash suffix
func isSegmentFile(cfg *Config, name string) bool {
	rest, ok := strings.CutSuffix(name, logExt)
	if !ok {
		return false
	}
	if cfg.LogPrefix != "" {
		if rest, ok = strings.CutPrefix(rest, cfg.LogPrefix+"_"); !ok {
			return false
		}
	}
	if len(rest) < len(dateLayout) {
		return false
	}
	if _, err := time.Parse(dateLayout, rest[:len(dateLayout)]); err != nil {
		return false
	}

	rest = strings.TrimSuffix(rest[len(dateLayout):], crashSuffix)
	switch {
	case rest == "":
		return true
	case len(rest) == 5 && rest[0] == '_':
		for _, c := range rest[1:] {
			if c < '0' || c > '9' {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// archiveName maps a log file name to its zip artifact name
func archiveName(logName string) string {
	return strings.TrimSuffix(logName, logExt) + zipExt
}

func twoDigits(n int) string {
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}
