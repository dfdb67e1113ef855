package seglog

import (
	"sync"
	"time"

	"github.com/agilira/go-timecache"
)

// Clock supplies wall-clock time to the logger
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a plain function to the Clock interface
type ClockFunc func() time.Time

// Now calls f
func (f ClockFunc) Now() time.Time { return f() }

var (
	sharedCache     *timecache.TimeCache
	sharedCacheOnce sync.Once
)

// cachedClock reads a millisecond-resolution cached clock shared by all loggers
type cachedClock struct{}

func (cachedClock) Now() time.Time {
	sharedCacheOnce.Do(func() {
		sharedCache = timecache.NewWithResolution(time.Millisecond)
	})
	return sharedCache.CachedTime()
}

// SystemClock returns the default clock, a cached wall clock with millisecond resolution
func SystemClock() Clock {
	return cachedClock{}
}

// InZone converts t into the fixed zone described by offset.
// The result has the same instant as t; only the presentation changes.
func InZone(t time.Time, offset time.Duration) time.Time {
	return t.In(zoneFor(offset))
}

var (
	zoneMu    sync.RWMutex
	zoneCache = make(map[time.Duration]*time.Location)
)

// zoneFor returns a cached fixed location for the offset
func zoneFor(offset time.Duration) *time.Location {
	zoneMu.RLock()
	loc, ok := zoneCache[offset]
	zoneMu.RUnlock()
	if ok {
		return loc
	}

	loc = time.FixedZone(zoneName(offset), int(offset/time.Second))
	zoneMu.Lock()
	zoneCache[offset] = loc
	zoneMu.Unlock()
	return loc
}

// zoneName renders an offset as UTC+hh:mm
func zoneName(offset time.Duration) string {
	sign := byte('+')
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	h := int(offset / time.Hour)
	m := int((offset % time.Hour) / time.Minute)
	return string([]byte{'U', 'T', 'C', sign,
		byte('0' + h/10), byte('0' + h%10), ':',
		byte('0' + m/10), byte('0' + m%10)})
}
