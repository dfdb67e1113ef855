package seglog

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// RecoverCrash records a panic as a crash record, waits for it to reach disk
// and re-panics. Use it deferred at the top of a goroutine:
//
//	defer logger.RecoverCrash()
func (l *Logger) RecoverCrash() {
	r := recover()
	if r == nil {
		return
	}
	l.capturePanic(r, debug.Stack())
	panic(r)
}

// capturePanic emits the crash record attributed to the frame that panicked
func (l *Logger) capturePanic(r any, stack []byte) {
	if l.state.ShutdownCalled.Load() {
		return
	}
	snap := l.loadSnapshot()
	cfg := snap.cfg

	msg := fmt.Sprintf("panic: %v\n%s", r, strings.TrimSpace(string(stack)))
	rec := newRecord(LevelCrash, "", panicSite(), InZone(l.clock.Now(), cfg.zoneOffset()), msg)
	l.emit(snap, rec, shouldConsole(LevelCrash, cfg), true)
}

// panicSite returns the first frame below the runtime panic machinery
func panicSite() CallSite {
	var pcs [maxStackScan]uintptr
	n := runtime.Callers(1, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	inPanic := false
	for {
		frame, more := frames.Next()
		isRuntime := strings.HasPrefix(frame.Function, "runtime.")
		if frame.Function == "runtime.gopanic" {
			inPanic = true
		} else if inPanic && !isRuntime {
			return newCallSite(frame)
		}
		if !more {
			break
		}
	}
	return CallSite{File: "unknown", Function: "unknown", tag: "crash"}
}
