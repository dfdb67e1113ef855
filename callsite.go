package seglog

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
)

// Call-site resolution failures
var (
	ErrCallSiteDepth    = errors.New("call site skip depth exceeds stack depth")
	ErrCallSiteNotFound = errors.New("logging facade frame not found on stack")
)

// CallSiteError reports why the caller of a logging call could not be resolved.
// It indicates a configuration problem: the skip depth is larger than the stack,
// or the facade frame was renamed away.
type CallSiteError struct {
	Skip       int
	StackDepth int
	Err        error
}

func (e *CallSiteError) Error() string {
	return fmt.Sprintf("seglog: call site resolution failed (skip=%d, stack=%d): %v; reduce call_site_skip_depth",
		e.Skip, e.StackDepth, e.Err)
}

func (e *CallSiteError) Unwrap() error { return e.Err }

// CallSite is the frame that issued a logging call
type CallSite struct {
	File     string // Base name of the source file
	Line     int
	Function string // Short function or method name
	Package  string // Last element of the import path

	tag string
}

// Tag derives the default record tag from the call site, the receiver type
// for methods and the package name otherwise
func (cs CallSite) Tag() string {
	return cs.tag
}

// dispatchFunc is the fully qualified name of the facade dispatch method
var dispatchFunc = reflect.TypeOf((*Logger)(nil)).Elem().PkgPath() + ".(*Logger).dispatch"

// maxStackScan is the stack capture kept off the heap, larger skips allocate
const maxStackScan = 64

// resolveCallSite finds the frame skip levels above the public entry point that
// called dispatch. Must be called directly from dispatch.
func resolveCallSite(skip int) (CallSite, error) {
	var buf [maxStackScan]uintptr
	pcs := buf[:]
	// dispatch, the public entry method and the caller come first
	if need := skip + 3; need > len(pcs) {
		pcs = make([]uintptr, need)
	}
	n := runtime.Callers(2, pcs) // skip runtime.Callers and resolveCallSite
	frames := runtime.CallersFrames(pcs[:n])

	var stack []runtime.Frame
	found := -1
	for {
		frame, more := frames.Next()
		stack = append(stack, frame)
		if found < 0 && frame.Function == dispatchFunc {
			found = len(stack) - 1
		}
		if found >= 0 && len(stack) > found+2+skip {
			break
		}
		if !more {
			break
		}
	}

	if found < 0 {
		return CallSite{}, &CallSiteError{Skip: skip, StackDepth: len(stack), Err: ErrCallSiteNotFound}
	}
	// dispatch -> public entry method -> caller
	index := found + 2 + skip
	if index >= len(stack) {
		return CallSite{}, &CallSiteError{Skip: skip, StackDepth: len(stack), Err: ErrCallSiteDepth}
	}

	return newCallSite(stack[index]), nil
}

// newCallSite splits a runtime frame into its printable parts
func newCallSite(frame runtime.Frame) CallSite {
	cs := CallSite{
		File: filepath.Base(frame.File),
		Line: frame.Line,
	}

	// frame.Function is "import/path/pkg.(*Type).Method" or "import/path/pkg.Func.func1"
	fn := frame.Function
	if slash := strings.LastIndexByte(fn, '/'); slash >= 0 {
		fn = fn[slash+1:]
	}
	pkg, rest, ok := strings.Cut(fn, ".")
	if !ok {
		cs.Function = fn
		cs.tag = fn
		return cs
	}
	cs.Package = pkg

	parts := strings.Split(rest, ".")
	cs.Function = parts[len(parts)-1]
	if isAnonymous(cs.Function) && len(parts) > 1 {
		cs.Function = parts[len(parts)-2] + "." + cs.Function
	}

	cs.tag = pkg
	// "(*T).M" and "T.M" carry a receiver, "F.func1" is a closure inside F
	if len(parts) > 1 && (strings.HasPrefix(parts[0], "(") || !isAnonymous(parts[1])) {
		if recv := strings.Trim(parts[0], "(*)"); recv != "" {
			cs.tag = recv
		}
	}
	if cs.tag == "" {
		cs.tag = "seglog"
	}
	return cs
}

// isAnonymous reports whether name is a compiler-generated closure name like func1
func isAnonymous(name string) bool {
	if !strings.HasPrefix(name, "func") || len(name) == 4 {
		return false
	}
	for _, r := range name[4:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
