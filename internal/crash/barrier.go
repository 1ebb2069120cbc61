// Package crash isolates calls into user code and decodes what went wrong
// when they fail.
//
// Guard is the barrier: in Safe mode every panic, runtime.Goexit or returned
// error becomes an inert *Failure value; in Strict mode failures propagate to
// the caller untouched. Decode turns a captured failure into a Diagnostic for
// humans and never fails itself.
package crash

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Mode selects whether Guard isolates failures.
type Mode int

const (
	// Safe converts failures into values. This is the default.
	Safe Mode = iota
	// Strict lets failures propagate (the "allow-crash" escape hatch).
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "safe"
}

// Kind classifies a captured failure.
type Kind string

const (
	KindPanic        Kind = "panic"
	KindRuntimeError Kind = "runtime_error"
	KindError        Kind = "returned_error"
	KindExit         Kind = "exit"
)

// Site locates a user function: its package, name and declaration line.
type Site struct {
	Module   string
	Function string
	Line     int
}

// Locate returns the site itself.
func (s Site) Locate() Site { return s }

// IsZero reports whether the site carries no location.
func (s Site) IsZero() bool {
	return s.Module == "" && s.Function == ""
}

// SiteOf derives the site of a compiled function value. It returns the zero
// Site for anything that is not a non-nil func.
func SiteOf(fn any) Site {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return Site{}
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return Site{}
	}
	_, line := rf.FileLine(rf.Entry())
	name := rf.Name()
	return Site{Module: packageOf(name), Function: functionOf(name), Line: line}
}

// Locator resolves where a guarded function lives. Guard asks only after a
// failure, so a locator may report where execution actually stopped.
type Locator interface {
	Locate() Site
}

// Failure is the inert form of a crash captured by Guard in Safe mode.
type Failure struct {
	Kind Kind
	// Payload is the value passed to panic, or the error returned by the
	// guarded function. It is nil for KindExit.
	Payload any
	// Site is where the guarded user function lives. Decode uses it when no
	// user frame can be found on the captured stack.
	Site Site

	pcs []uintptr
}

func (f *Failure) Error() string {
	switch f.Kind {
	case KindExit:
		return "exit: runtime.Goexit called"
	case KindError:
		return fmt.Sprintf("returned error: %v", f.Payload)
	default:
		return fmt.Sprintf("%s: %v", f.Kind, unwrapValue(f.Payload))
	}
}

// Unwrap exposes the payload when it is an error.
func (f *Failure) Unwrap() error {
	if err, ok := unwrapValue(f.Payload).(error); ok {
		return err
	}
	return nil
}

// Frames returns the stack captured when the failure was recovered.
func (f *Failure) Frames() []runtime.Frame {
	if len(f.pcs) == 0 {
		return nil
	}
	var out []runtime.Frame
	frames := runtime.CallersFrames(f.pcs)
	for {
		frame, more := frames.Next()
		out = append(out, frame)
		if !more {
			break
		}
	}
	return out
}

// Guard runs fn under the barrier selected by mode. at is consulted for the
// failure's Site; a plain Site works as its own Locator.
//
// In Strict mode fn runs on the caller's goroutine; a panic unwinds through
// Guard and a returned error is re-raised with panic. In Safe mode the result
// is either fn's value or a *Failure.
func Guard(mode Mode, at Locator, fn func() (any, error)) (any, error) {
	if mode == Strict {
		v, err := fn()
		if err != nil {
			panic(err)
		}
		return v, nil
	}
	return guardSafe(at, fn)
}

type guarded struct {
	value any
	err   error
}

// guardSafe runs fn on its own goroutine so that runtime.Goexit in user code
// terminates that goroutine instead of the caller's.
func guardSafe(at Locator, fn func() (any, error)) (any, error) {
	done := make(chan guarded, 1)

	go func() {
		returned := false
		defer func() {
			if returned {
				return
			}
			r := recover()
			done <- guarded{err: recovered(r, at.Locate())}
		}()

		v, err := fn()
		returned = true
		if err != nil {
			done <- guarded{err: &Failure{Kind: KindError, Payload: err, Site: at.Locate()}}
			return
		}
		done <- guarded{value: v}
	}()

	res := <-done
	return res.value, res.err
}

// recovered builds a failure from a recover() result. A nil value means the
// goroutine is exiting through runtime.Goexit.
func recovered(r any, site Site) *Failure {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)

	r = unwrapValue(r)
	f := &Failure{Payload: r, Site: site, pcs: pcs[:n]}
	switch r.(type) {
	case nil:
		f.Kind = KindExit
	case runtime.Error:
		f.Kind = KindRuntimeError
	default:
		f.Kind = KindPanic
	}
	return f
}

// unwrapValue returns the value held by a reflect.Value. Interpreted code
// panics with its argument boxed that way.
func unwrapValue(v any) any {
	rv, ok := v.(reflect.Value)
	if !ok || !rv.IsValid() || !rv.CanInterface() {
		return v
	}
	if inner := rv.Interface(); inner != nil {
		return inner
	}
	return v
}

// packageOf extracts the import path from a qualified function name such as
// "github.com/x/y/pkg.(*T).Method.func1".
func packageOf(name string) string {
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return name
	}
	return name[:slash+1+dot]
}

func functionOf(name string) string {
	pkg := packageOf(name)
	if len(name) <= len(pkg)+1 {
		return name
	}
	return name[len(pkg)+1:]
}
